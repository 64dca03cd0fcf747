package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// IdentityQuaternion is the quaternion representing no rotation.
var IdentityQuaternion = quat.Number{Real: 1}

// Normalize scales q to unit length. The zero quaternion becomes the identity.
func Normalize(q quat.Number) quat.Number {
	norm := quat.Abs(q)
	if norm == 0 {
		return IdentityQuaternion
	}
	return quat.Scale(1/norm, q)
}

// QuaternionAlmostEqual returns whether two quaternions represent the same rotation within tol.
// q and -q describe the same rotation.
func QuaternionAlmostEqual(a, b quat.Number, tol float64) bool {
	same := math.Abs(a.Real-b.Real) < tol && math.Abs(a.Imag-b.Imag) < tol &&
		math.Abs(a.Jmag-b.Jmag) < tol && math.Abs(a.Kmag-b.Kmag) < tol
	flipped := math.Abs(a.Real+b.Real) < tol && math.Abs(a.Imag+b.Imag) < tol &&
		math.Abs(a.Jmag+b.Jmag) < tol && math.Abs(a.Kmag+b.Kmag) < tol
	return same || flipped
}

// Slerp spherically interpolates between two unit quaternions along the shortest arc.
func Slerp(from, to quat.Number, by float64) quat.Number {
	dot := from.Real*to.Real + from.Imag*to.Imag + from.Jmag*to.Jmag + from.Kmag*to.Kmag
	if dot < 0 {
		to = quat.Scale(-1, to)
		dot = -dot
	}
	const linearThreshold = 0.9995
	if dot > linearThreshold {
		return Normalize(quat.Add(from, quat.Scale(by, quat.Sub(to, from))))
	}
	theta := math.Acos(dot)
	sinTheta := math.Sin(theta)
	wFrom := math.Sin((1-by)*theta) / sinTheta
	wTo := math.Sin(by*theta) / sinTheta
	return quat.Add(quat.Scale(wFrom, from), quat.Scale(wTo, to))
}

// Yaw returns the rotation of q about the Z axis in radians.
func Yaw(q quat.Number) float64 {
	return math.Atan2(2*(q.Real*q.Kmag+q.Imag*q.Jmag), 1-2*(q.Jmag*q.Jmag+q.Kmag*q.Kmag))
}

// QuatFromYaw returns the quaternion rotating by theta radians about the Z axis.
func QuatFromYaw(theta float64) quat.Number {
	return (&R4AA{Theta: theta, RZ: 1}).ToQuat()
}

// RotateVector rotates v by the unit quaternion q.
func RotateVector(q quat.Number, v r3.Vector) r3.Vector {
	rotated := quat.Mul(quat.Mul(q, quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}), quat.Conj(q))
	return r3.Vector{X: rotated.Imag, Y: rotated.Jmag, Z: rotated.Kmag}
}
