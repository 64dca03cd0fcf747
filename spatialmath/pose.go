// Package spatialmath defines the rigid transforms used by joint models and the transform buffer.
package spatialmath

import (
	"fmt"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Pose represents a 6dof pose: a translation followed by a rotation, both relative to a parent frame.
type Pose interface {
	Point() r3.Vector
	Orientation() quat.Number
}

type pose struct {
	point       r3.Vector
	orientation quat.Number
}

// NewPose returns a pose at the given point with the given orientation. The orientation is
// normalized.
func NewPose(point r3.Vector, orientation quat.Number) Pose {
	return &pose{point: point, orientation: Normalize(orientation)}
}

// NewZeroPose returns a pose at (0,0,0) with no rotation.
func NewZeroPose() Pose {
	return &pose{orientation: IdentityQuaternion}
}

// NewPoseFromPoint returns a pose at the given point with no rotation.
func NewPoseFromPoint(point r3.Vector) Pose {
	return &pose{point: point, orientation: IdentityQuaternion}
}

// NewPoseFromPlanar returns the pose of a planar (x, y, theta) configuration in the XY plane.
func NewPoseFromPlanar(x, y, theta float64) Pose {
	return &pose{point: r3.Vector{X: x, Y: y}, orientation: QuatFromYaw(theta)}
}

func (p *pose) Point() r3.Vector {
	return p.point
}

func (p *pose) Orientation() quat.Number {
	return p.orientation
}

func (p *pose) String() string {
	return fmt.Sprintf("{X:%.3f Y:%.3f Z:%.3f W:%.3f I:%.3f J:%.3f K:%.3f}",
		p.point.X, p.point.Y, p.point.Z,
		p.orientation.Real, p.orientation.Imag, p.orientation.Jmag, p.orientation.Kmag)
}

// Compose returns the pose of b expressed in the parent frame of a, where b is relative to a.
func Compose(a, b Pose) Pose {
	return &pose{
		point:       a.Point().Add(RotateVector(a.Orientation(), b.Point())),
		orientation: Normalize(quat.Mul(a.Orientation(), b.Orientation())),
	}
}

// PoseInverse returns the pose that undoes p.
func PoseInverse(p Pose) Pose {
	inv := quat.Conj(p.Orientation())
	return &pose{point: RotateVector(inv, p.Point()).Mul(-1), orientation: inv}
}

// PoseBetween returns the pose which, composed onto a, yields b.
func PoseBetween(a, b Pose) Pose {
	return Compose(PoseInverse(a), b)
}

// Interpolate returns the pose `by` of the way from `from` to `to`, linear in translation and
// spherical in rotation.
func Interpolate(from, to Pose, by float64) Pose {
	return &pose{
		point:       from.Point().Add(to.Point().Sub(from.Point()).Mul(by)),
		orientation: Slerp(from.Orientation(), to.Orientation(), by),
	}
}

// PoseAlmostEqual returns whether two poses are within 1e-8 in translation and 1e-5 in rotation.
func PoseAlmostEqual(a, b Pose) bool {
	return PoseAlmostEqualEps(a, b, 1e-8)
}

// PoseAlmostEqualEps returns whether two poses are within epsilon in translation and 1e-5 in rotation.
func PoseAlmostEqualEps(a, b Pose, epsilon float64) bool {
	return R3VectorAlmostEqual(a.Point(), b.Point(), epsilon) &&
		QuaternionAlmostEqual(a.Orientation(), b.Orientation(), 1e-5)
}

// R3VectorAlmostEqual compares two r3.Vector objects and returns if the all elementwise differences are less than epsilon.
func R3VectorAlmostEqual(a, b r3.Vector, epsilon float64) bool {
	return a.Sub(b).Norm() < epsilon
}
