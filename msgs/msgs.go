// Package msgs contains the wire messages exchanged between planners, controllers and state
// publishers. Field names follow the JSON encoding used on topics and in stored trajectories.
package msgs

import (
	"time"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Header stamps a message with a time and the frame it is expressed in.
type Header struct {
	Stamp   time.Time `json:"stamp"`
	FrameID string    `json:"frame_id"`
}

// Vector3 is a vector in a message.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// NewVector3 converts an r3.Vector.
func NewVector3(v r3.Vector) Vector3 {
	return Vector3{X: v.X, Y: v.Y, Z: v.Z}
}

// R3 converts the message vector to an r3.Vector.
func (v Vector3) R3() r3.Vector {
	return r3.Vector{X: v.X, Y: v.Y, Z: v.Z}
}

// Quaternion is a rotation in a message.
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// NewQuaternion converts a quat.Number.
func NewQuaternion(q quat.Number) Quaternion {
	return Quaternion{X: q.Imag, Y: q.Jmag, Z: q.Kmag, W: q.Real}
}

// Quat converts the message quaternion to a quat.Number.
func (q Quaternion) Quat() quat.Number {
	return quat.Number{Real: q.W, Imag: q.X, Jmag: q.Y, Kmag: q.Z}
}

// Transform is a translation followed by a rotation.
type Transform struct {
	Translation Vector3    `json:"translation"`
	Rotation    Quaternion `json:"rotation"`
}

// Twist is a linear and angular velocity.
type Twist struct {
	Linear  Vector3 `json:"linear"`
	Angular Vector3 `json:"angular"`
}

// JointTrajectoryPoint holds the values of every joint of a JointTrajectory at one instant.
// Velocities, Accelerations and Effort are either empty or as long as Positions.
type JointTrajectoryPoint struct {
	Positions     []float64     `json:"positions"`
	Velocities    []float64     `json:"velocities,omitempty"`
	Accelerations []float64     `json:"accelerations,omitempty"`
	Effort        []float64     `json:"effort,omitempty"`
	TimeFromStart time.Duration `json:"time_from_start"`
}

// JointTrajectory is a trajectory of single variable joints.
type JointTrajectory struct {
	Header     Header                 `json:"header"`
	JointNames []string               `json:"joint_names"`
	Points     []JointTrajectoryPoint `json:"points"`
}

// MultiDOFJointTrajectoryPoint holds one transform per joint and, optionally, their velocities.
type MultiDOFJointTrajectoryPoint struct {
	Transforms    []Transform   `json:"transforms"`
	Velocities    []Twist       `json:"velocities,omitempty"`
	Accelerations []Twist       `json:"accelerations,omitempty"`
	TimeFromStart time.Duration `json:"time_from_start"`
}

// MultiDOFJointTrajectory is a trajectory of planar and floating joints.
type MultiDOFJointTrajectory struct {
	Header     Header                         `json:"header"`
	JointNames []string                       `json:"joint_names"`
	Points     []MultiDOFJointTrajectoryPoint `json:"points"`
}

// RobotTrajectory carries both halves of a robot's trajectory.
type RobotTrajectory struct {
	JointTrajectory         JointTrajectory         `json:"joint_trajectory"`
	MultiDOFJointTrajectory MultiDOFJointTrajectory `json:"multi_dof_joint_trajectory"`
}

// Empty returns whether neither half has points.
func (rt RobotTrajectory) Empty() bool {
	return len(rt.JointTrajectory.Points) == 0 && len(rt.MultiDOFJointTrajectory.Points) == 0
}

// JointNames returns the joints of both halves.
func (rt RobotTrajectory) JointNames() []string {
	names := make([]string, 0, len(rt.JointTrajectory.JointNames)+len(rt.MultiDOFJointTrajectory.JointNames))
	names = append(names, rt.JointTrajectory.JointNames...)
	return append(names, rt.MultiDOFJointTrajectory.JointNames...)
}

// Duration returns the largest time_from_start of either half.
func (rt RobotTrajectory) Duration() time.Duration {
	var d time.Duration
	if n := len(rt.JointTrajectory.Points); n > 0 {
		d = rt.JointTrajectory.Points[n-1].TimeFromStart
	}
	if n := len(rt.MultiDOFJointTrajectory.Points); n > 0 {
		d = max(d, rt.MultiDOFJointTrajectory.Points[n-1].TimeFromStart)
	}
	return d
}

// JointState reports the state of single variable joints. Velocity and Effort are either empty or
// as long as Name.
type JointState struct {
	Header   Header    `json:"header"`
	Name     []string  `json:"name"`
	Position []float64 `json:"position"`
	Velocity []float64 `json:"velocity,omitempty"`
	Effort   []float64 `json:"effort,omitempty"`
}

// MultiDOFJointState reports the state of planar and floating joints.
type MultiDOFJointState struct {
	Header     Header      `json:"header"`
	JointNames []string    `json:"joint_names"`
	Transforms []Transform `json:"transforms"`
	Twist      []Twist     `json:"twist,omitempty"`
}

// RobotState is the full state of a robot. When IsDiff is set, only the named joints are applied
// onto an existing state.
type RobotState struct {
	JointState         JointState         `json:"joint_state"`
	MultiDOFJointState MultiDOFJointState `json:"multi_dof_joint_state"`
	IsDiff             bool               `json:"is_diff,omitempty"`
}

// PlanningSceneUpdate carries the state of a monitored scene after it changed.
type PlanningSceneUpdate struct {
	Header Header `json:"header"`
	Name   string `json:"name"`
	// Type names what changed, e.g. "state".
	Type            string                    `json:"type"`
	RobotState      RobotState                `json:"robot_state"`
	AttachedObjects []AttachedCollisionObject `json:"attached_collision_objects,omitempty"`
}

// AttachedCollisionObject attaches a named object to a link of the robot.
type AttachedCollisionObject struct {
	LinkName  string   `json:"link_name"`
	ObjectID  string   `json:"object_id"`
	TouchLink []string `json:"touch_links,omitempty"`
	Detach    bool     `json:"detach,omitempty"`
}
