package robotmodel

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/motionkit/spatialmath"
	"go.viam.com/motionkit/utils"
)

// JointType enumerates the kinds of joint a RobotModel may contain.
type JointType int

const (
	// UnknownJoint is the zero JointType.
	UnknownJoint JointType = iota
	// FixedJoint has no variables.
	FixedJoint
	// RevoluteJoint rotates about an axis. It is continuous when it has no position bounds.
	RevoluteJoint
	// PrismaticJoint translates along an axis.
	PrismaticJoint
	// PlanarJoint moves in the XY plane with variables x, y and theta.
	PlanarJoint
	// FloatingJoint moves freely in space with a translation and a quaternion.
	FloatingJoint
)

func (jt JointType) String() string {
	switch jt {
	case FixedJoint:
		return "fixed"
	case RevoluteJoint:
		return "revolute"
	case PrismaticJoint:
		return "prismatic"
	case PlanarJoint:
		return "planar"
	case FloatingJoint:
		return "floating"
	case UnknownJoint:
	}
	return "unknown"
}

// Limit represents the limits of motion of a single joint variable. Zero velocity or acceleration
// limits mean the variable is not bounded in that derivative.
type Limit struct {
	Min             float64 `json:"min"`
	Max             float64 `json:"max"`
	MaxVelocity     float64 `json:"max_velocity,omitempty"`
	MaxAcceleration float64 `json:"max_acceleration,omitempty"`
}

// PositionBounded returns whether either end of the position range is finite.
func (l Limit) PositionBounded() bool {
	return !math.IsInf(l.Min, -1) || !math.IsInf(l.Max, 1)
}

var (
	planarLocalNames   = []string{"x", "y", "theta"}
	floatingLocalNames = []string{"trans_x", "trans_y", "trans_z", "rot_x", "rot_y", "rot_z", "rot_w"}
)

// JointModel describes a single joint and the variables it owns within a RobotModel.
type JointModel struct {
	name               string
	jointType          JointType
	continuous         bool
	parent             string
	axis               r3.Vector
	localVariableNames []string
	variableNames      []string
	bounds             []Limit
	firstVariableIndex int
	jointIndex         int
	// weight of the rotational component in planar/floating distances.
	angularDistanceWeight float64
}

// Name returns the name of the joint.
func (jm *JointModel) Name() string {
	return jm.name
}

// Type returns the kind of joint.
func (jm *JointModel) Type() JointType {
	return jm.jointType
}

// IsContinuous returns whether the joint is a revolute joint that wraps around.
func (jm *JointModel) IsContinuous() bool {
	return jm.continuous
}

// Parent returns the name of the link or frame this joint is attached to.
func (jm *JointModel) Parent() string {
	return jm.parent
}

// Axis returns the unit axis of a revolute or prismatic joint.
func (jm *JointModel) Axis() r3.Vector {
	return jm.axis
}

// VariableCount returns the number of variables the joint owns.
func (jm *JointModel) VariableCount() int {
	return len(jm.variableNames)
}

// VariableNames returns the fully qualified variable names, e.g. "base/x".
func (jm *JointModel) VariableNames() []string {
	return jm.variableNames
}

// LocalVariableNames returns the variable names without the joint prefix, e.g. "x".
func (jm *JointModel) LocalVariableNames() []string {
	return jm.localVariableNames
}

// Bounds returns the limits for each variable of the joint.
func (jm *JointModel) Bounds() []Limit {
	return jm.bounds
}

// FirstVariableIndex returns the index of the joint's first variable within the model.
func (jm *JointModel) FirstVariableIndex() int {
	return jm.firstVariableIndex
}

// JointIndex returns the index of the joint within the model.
func (jm *JointModel) JointIndex() int {
	return jm.jointIndex
}

// DefaultPositions returns the zero configuration for this joint: zero everywhere, except the
// identity rotation for floating joints and the clamped zero for bounded joints.
func (jm *JointModel) DefaultPositions() []float64 {
	values := make([]float64, jm.VariableCount())
	if jm.jointType == FloatingJoint {
		values[6] = 1
	}
	jm.EnforcePositionBounds(values)
	return values
}

// Distance returns the distance between two configurations of this joint. Continuous joints use
// the shortest angular distance; planar and floating joints add translational and weighted
// rotational distance.
func (jm *JointModel) Distance(from, to []float64) float64 {
	switch jm.jointType {
	case RevoluteJoint:
		if jm.continuous {
			return math.Abs(utils.AngleDiff(from[0], to[0]))
		}
		return math.Abs(to[0] - from[0])
	case PrismaticJoint:
		return math.Abs(to[0] - from[0])
	case PlanarJoint:
		dx, dy := to[0]-from[0], to[1]-from[1]
		return math.Hypot(dx, dy) + jm.angularDistanceWeight*math.Abs(utils.AngleDiff(from[2], to[2]))
	case FloatingJoint:
		dt := r3.Vector{X: to[0] - from[0], Y: to[1] - from[1], Z: to[2] - from[2]}.Norm()
		return dt + jm.angularDistanceWeight*rotationDistance(floatingQuat(from), floatingQuat(to))
	case FixedJoint, UnknownJoint:
	}
	return 0
}

// rotationDistance is half the angle between two unit quaternions.
func rotationDistance(a, b quat.Number) float64 {
	dot := math.Abs(a.Real*b.Real + a.Imag*b.Imag + a.Jmag*b.Jmag + a.Kmag*b.Kmag)
	if dot+1e-9 >= 1 {
		return 0
	}
	return math.Acos(dot)
}

// Interpolate writes into out the configuration `t` of the way from `from` to `to`. Continuous
// angles interpolate along the shorter direction and the result is wrapped into [-pi, pi].
func (jm *JointModel) Interpolate(from, to []float64, t float64, out []float64) {
	switch jm.jointType {
	case RevoluteJoint:
		if jm.continuous {
			out[0] = interpolateAngle(from[0], to[0], t)
			return
		}
		out[0] = from[0] + (to[0]-from[0])*t
	case PrismaticJoint:
		out[0] = from[0] + (to[0]-from[0])*t
	case PlanarJoint:
		out[0] = from[0] + (to[0]-from[0])*t
		out[1] = from[1] + (to[1]-from[1])*t
		out[2] = interpolateAngle(from[2], to[2], t)
	case FloatingJoint:
		for i := 0; i < 3; i++ {
			out[i] = from[i] + (to[i]-from[i])*t
		}
		q := spatialmath.Slerp(floatingQuat(from), floatingQuat(to), t)
		out[3], out[4], out[5], out[6] = q.Imag, q.Jmag, q.Kmag, q.Real
	case FixedJoint, UnknownJoint:
	}
}

func interpolateAngle(from, to, t float64) float64 {
	diff := to - from
	if math.Abs(diff) <= math.Pi {
		return from + diff*t
	}
	if diff > 0 {
		diff = 2*math.Pi - diff
	} else {
		diff = -2*math.Pi - diff
	}
	value := from - diff*t
	if value > math.Pi {
		value -= 2 * math.Pi
	} else if value < -math.Pi {
		value += 2 * math.Pi
	}
	return value
}

// EnforcePositionBounds modifies values in place so they satisfy the joint bounds and reports
// whether anything changed. Continuous angles are wrapped into [-pi, pi]; everything else is
// clamped. Floating rotations are normalized.
func (jm *JointModel) EnforcePositionBounds(values []float64) bool {
	changed := false
	switch jm.jointType {
	case RevoluteJoint:
		if jm.continuous {
			if values[0] < -math.Pi || values[0] > math.Pi {
				values[0] = utils.WrapAngle(values[0])
				changed = true
			}
			return changed
		}
		changed = clampInto(&values[0], jm.bounds[0])
	case PrismaticJoint:
		changed = clampInto(&values[0], jm.bounds[0])
	case PlanarJoint:
		changed = clampInto(&values[0], jm.bounds[0])
		changed = clampInto(&values[1], jm.bounds[1]) || changed
		if values[2] < -math.Pi || values[2] > math.Pi {
			values[2] = utils.WrapAngle(values[2])
			changed = true
		}
	case FloatingJoint:
		for i := 0; i < 3; i++ {
			changed = clampInto(&values[i], jm.bounds[i]) || changed
		}
		q := floatingQuat(values)
		norm := quat.Abs(q)
		if math.Abs(norm-1) > 1e-9 {
			q = spatialmath.Normalize(q)
			values[3], values[4], values[5], values[6] = q.Imag, q.Jmag, q.Kmag, q.Real
			changed = true
		}
	case FixedJoint, UnknownJoint:
	}
	return changed
}

func clampInto(value *float64, limit Limit) bool {
	clamped := utils.Clamp(*value, limit.Min, limit.Max)
	if clamped != *value {
		*value = clamped
		return true
	}
	return false
}

// SatisfiesPositionBounds returns whether values are within the joint bounds, widened by margin.
// Continuous angles always satisfy their bounds.
func (jm *JointModel) SatisfiesPositionBounds(values []float64, margin float64) bool {
	if jm.continuous {
		return true
	}
	for i, limit := range jm.bounds {
		if jm.jointType == PlanarJoint && i == 2 {
			continue
		}
		if values[i] < limit.Min-margin || values[i] > limit.Max+margin {
			return false
		}
	}
	return true
}

// TransformFromVariables returns the pose the joint applies for the given configuration.
func (jm *JointModel) TransformFromVariables(values []float64) spatialmath.Pose {
	switch jm.jointType {
	case RevoluteJoint:
		aa := &spatialmath.R4AA{Theta: values[0], RX: jm.axis.X, RY: jm.axis.Y, RZ: jm.axis.Z}
		return spatialmath.NewPose(r3.Vector{}, aa.ToQuat())
	case PrismaticJoint:
		return spatialmath.NewPoseFromPoint(jm.axis.Mul(values[0]))
	case PlanarJoint:
		return spatialmath.NewPoseFromPlanar(values[0], values[1], values[2])
	case FloatingJoint:
		return spatialmath.NewPose(r3.Vector{X: values[0], Y: values[1], Z: values[2]}, floatingQuat(values))
	case FixedJoint, UnknownJoint:
	}
	return spatialmath.NewZeroPose()
}

// VariablesFromTransform writes into out the configuration that best reproduces the pose.
// Revolute and prismatic joints project the pose onto their axis.
func (jm *JointModel) VariablesFromTransform(pose spatialmath.Pose, out []float64) {
	pt := pose.Point()
	q := pose.Orientation()
	switch jm.jointType {
	case RevoluteJoint:
		aa := spatialmath.QuatToR4AA(q)
		out[0] = aa.Theta * r3.Vector{X: aa.RX, Y: aa.RY, Z: aa.RZ}.Dot(jm.axis)
	case PrismaticJoint:
		out[0] = pt.Dot(jm.axis)
	case PlanarJoint:
		out[0], out[1], out[2] = pt.X, pt.Y, spatialmath.Yaw(q)
	case FloatingJoint:
		out[0], out[1], out[2] = pt.X, pt.Y, pt.Z
		out[3], out[4], out[5], out[6] = q.Imag, q.Jmag, q.Kmag, q.Real
	case FixedJoint, UnknownJoint:
	}
}

// floating joint rotations are stored x, y, z, w after the translation.
func floatingQuat(values []float64) quat.Number {
	return quat.Number{Real: values[6], Imag: values[3], Jmag: values[4], Kmag: values[5]}
}
