package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// R4AA represents an R4 axis angle: a rotation of Theta radians about the axis (RX, RY, RZ).
type R4AA struct {
	Theta float64 `json:"th"`
	RX    float64 `json:"x"`
	RY    float64 `json:"y"`
	RZ    float64 `json:"z"`
}

// NewR4AA creates an R4AA with no rotation about the Z axis.
func NewR4AA() *R4AA {
	return &R4AA{Theta: 0, RX: 0, RY: 0, RZ: 1}
}

// Normalize scales the axis to unit length. A zero axis becomes the Z axis.
func (r4 *R4AA) Normalize() {
	norm := math.Sqrt(r4.RX*r4.RX + r4.RY*r4.RY + r4.RZ*r4.RZ)
	if norm == 0 {
		r4.RX, r4.RY, r4.RZ = 0, 0, 1
		return
	}
	r4.RX /= norm
	r4.RY /= norm
	r4.RZ /= norm
}

// ToR3 converts an R4 angle axis to R3.
func (r4 *R4AA) ToR3() r3.Vector {
	return r3.Vector{X: r4.RX * r4.Theta, Y: r4.RY * r4.Theta, Z: r4.RZ * r4.Theta}
}

// ToQuat converts an R4 axis angle to a unit quaternion
// See: https://www.euclideanspace.com/maths/geometry/rotations/conversions/angleToQuaternion/index.htm
func (r4 *R4AA) ToQuat() quat.Number {
	axis := *r4
	axis.Normalize()
	sinA := math.Sin(axis.Theta / 2)
	return quat.Number{Real: math.Cos(axis.Theta / 2), Imag: axis.RX * sinA, Jmag: axis.RY * sinA, Kmag: axis.RZ * sinA}
}

// QuatToR4AA converts a quaternion to an R4 axis angle. The identity rotation maps to the Z axis.
func QuatToR4AA(q quat.Number) *R4AA {
	q = Normalize(q)
	if q.Real < 0 {
		q = quat.Scale(-1, q)
	}
	denom := math.Sqrt(1 - q.Real*q.Real)
	if denom < 1e-9 {
		return NewR4AA()
	}
	return &R4AA{Theta: 2 * math.Acos(math.Min(1, q.Real)), RX: q.Imag / denom, RY: q.Jmag / denom, RZ: q.Kmag / denom}
}
