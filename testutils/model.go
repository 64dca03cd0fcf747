package testutils

import (
	_ "embed"
	"testing"

	"go.viam.com/test"

	"go.viam.com/motionkit/robotmodel"
)

// ArmBaseModelJSON describes a planar mobile base carrying a three joint arm. Its variables, in
// order, are base/x, base/y, base/theta, shoulder, wrist and slide. The wrist is continuous.
//
//go:embed data/arm_base.json
var ArmBaseModelJSON []byte

// ArmBaseModel parses ArmBaseModelJSON and fails the test if it cannot.
func ArmBaseModel(tb testing.TB) *robotmodel.RobotModel {
	tb.Helper()
	model, err := robotmodel.UnmarshalModelJSON(ArmBaseModelJSON, "")
	test.That(tb, err, test.ShouldBeNil)
	return model
}
