package spatialmath

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestComposeInverse(t *testing.T) {
	a := NewPoseFromPlanar(1, 2, math.Pi/2)
	b := NewPoseFromPoint(r3.Vector{X: 1})

	composed := Compose(a, b)
	test.That(t, composed.Point().X, test.ShouldAlmostEqual, 1)
	test.That(t, composed.Point().Y, test.ShouldAlmostEqual, 3)
	test.That(t, Yaw(composed.Orientation()), test.ShouldAlmostEqual, math.Pi/2)

	identity := Compose(a, PoseInverse(a))
	test.That(t, PoseAlmostEqual(identity, NewZeroPose()), test.ShouldBeTrue)

	between := PoseBetween(a, composed)
	test.That(t, PoseAlmostEqual(between, b), test.ShouldBeTrue)
}

func TestInterpolate(t *testing.T) {
	from := NewPoseFromPlanar(0, 0, 0)
	to := NewPoseFromPlanar(2, -2, math.Pi/2)

	mid := Interpolate(from, to, 0.5)
	test.That(t, mid.Point().X, test.ShouldAlmostEqual, 1)
	test.That(t, mid.Point().Y, test.ShouldAlmostEqual, -1)
	test.That(t, Yaw(mid.Orientation()), test.ShouldAlmostEqual, math.Pi/4)

	test.That(t, PoseAlmostEqual(Interpolate(from, to, 0), from), test.ShouldBeTrue)
	test.That(t, PoseAlmostEqual(Interpolate(from, to, 1), to), test.ShouldBeTrue)
}

func TestAxisAngleRoundTrip(t *testing.T) {
	aa := &R4AA{Theta: 1.2, RX: 0, RY: 3, RZ: 4}
	back := QuatToR4AA(aa.ToQuat())
	test.That(t, back.Theta, test.ShouldAlmostEqual, 1.2)
	test.That(t, back.RY, test.ShouldAlmostEqual, 0.6)
	test.That(t, back.RZ, test.ShouldAlmostEqual, 0.8)

	zero := QuatToR4AA(IdentityQuaternion)
	test.That(t, zero.Theta, test.ShouldEqual, 0)
	test.That(t, zero.RZ, test.ShouldEqual, 1)
}

func TestQuaternionSignEquivalence(t *testing.T) {
	q := QuatFromYaw(0.3)
	neg := q
	neg.Real, neg.Imag, neg.Jmag, neg.Kmag = -q.Real, -q.Imag, -q.Jmag, -q.Kmag
	test.That(t, QuaternionAlmostEqual(q, neg, 1e-9), test.ShouldBeTrue)
	test.That(t, QuaternionAlmostEqual(q, QuatFromYaw(0.31), 1e-9), test.ShouldBeFalse)
}
