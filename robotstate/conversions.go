package robotstate

import (
	"time"

	"github.com/pkg/errors"

	"go.viam.com/motionkit/msgs"
	"go.viam.com/motionkit/robotmodel"
	"go.viam.com/motionkit/spatialmath"
)

// JointMsgTransform converts the pose jm applies in values into a message transform.
func JointMsgTransform(jm *robotmodel.JointModel, values []float64) msgs.Transform {
	pose := jm.TransformFromVariables(values)
	return msgs.Transform{
		Translation: msgs.NewVector3(pose.Point()),
		Rotation:    msgs.NewQuaternion(pose.Orientation()),
	}
}

// PlanarTwist maps the velocities of a planar joint onto a twist: x and y become linear velocity
// and theta angular velocity about Z. It returns false for any other kind of joint.
func PlanarTwist(jm *robotmodel.JointModel, velocities []float64) (msgs.Twist, bool) {
	if jm.Type() != robotmodel.PlanarJoint || velocities == nil {
		return msgs.Twist{}, false
	}
	var twist msgs.Twist
	for i, local := range jm.LocalVariableNames() {
		switch local {
		case "x":
			twist.Linear.X = velocities[i]
		case "y":
			twist.Linear.Y = velocities[i]
		case "theta":
			twist.Angular.Z = velocities[i]
		}
	}
	return twist, true
}

// ToMsg converts the state into a message. Single variable joints fill the joint state and every
// other active joint fills the multi-DOF joint state.
func (s *RobotState) ToMsg(stamp time.Time) msgs.RobotState {
	frame := s.model.ModelFrame()
	msg := msgs.RobotState{
		JointState:         msgs.JointState{Header: msgs.Header{Stamp: stamp, FrameID: frame}},
		MultiDOFJointState: msgs.MultiDOFJointState{Header: msgs.Header{Stamp: stamp, FrameID: frame}},
	}
	js := &msg.JointState
	mdof := &msg.MultiDOFJointState
	for _, jm := range s.model.ActiveJointModels() {
		if jm.VariableCount() == 1 {
			idx := jm.FirstVariableIndex()
			js.Name = append(js.Name, jm.Name())
			js.Position = append(js.Position, s.positions[idx])
			if s.velocities != nil {
				js.Velocity = append(js.Velocity, s.velocities[idx])
			}
			if s.effort != nil {
				js.Effort = append(js.Effort, s.effort[idx])
			}
			continue
		}
		mdof.JointNames = append(mdof.JointNames, jm.Name())
		mdof.Transforms = append(mdof.Transforms, JointMsgTransform(jm, s.JointPositions(jm)))
		if twist, ok := PlanarTwist(jm, s.JointVelocities(jm)); ok {
			mdof.Twist = append(mdof.Twist, twist)
		}
	}
	if len(mdof.Twist) != len(mdof.JointNames) {
		mdof.Twist = nil
	}
	return msg
}

// ApplyJointState sets positions, and velocities and efforts when they are complete, from a joint
// state message.
func (s *RobotState) ApplyJointState(js msgs.JointState) error {
	if len(js.Name) != len(js.Position) {
		return errors.Errorf("joint state has %d names but %d positions", len(js.Name), len(js.Position))
	}
	if err := s.SetVariablePositions(js.Name, js.Position); err != nil {
		return err
	}
	if len(js.Velocity) == len(js.Name) && len(js.Velocity) > 0 {
		if err := s.SetVariableVelocities(js.Name, js.Velocity); err != nil {
			return err
		}
	}
	if len(js.Effort) == len(js.Name) && len(js.Effort) > 0 {
		return s.SetVariableEffort(js.Name, js.Effort)
	}
	return nil
}

// ApplyMultiDOFJointState sets multi-DOF joint positions from their transforms.
func (s *RobotState) ApplyMultiDOFJointState(mdof msgs.MultiDOFJointState) error {
	if len(mdof.JointNames) != len(mdof.Transforms) {
		return errors.Errorf("multi-DOF joint state has %d names but %d transforms",
			len(mdof.JointNames), len(mdof.Transforms))
	}
	for i, name := range mdof.JointNames {
		jm, err := s.model.JointModel(name)
		if err != nil {
			return err
		}
		tf := mdof.Transforms[i]
		s.SetJointTransform(jm, spatialmath.NewPose(tf.Translation.R3(), tf.Rotation.Quat()))
	}
	return nil
}

// ApplyMsg applies a state message onto s. A message that is not a diff must name at least one
// joint.
func (s *RobotState) ApplyMsg(msg msgs.RobotState) error {
	if !msg.IsDiff && len(msg.JointState.Name) == 0 && len(msg.MultiDOFJointState.JointNames) == 0 {
		return errors.New("robot state message is not a diff and names no joints")
	}
	if err := s.ApplyJointState(msg.JointState); err != nil {
		return err
	}
	return s.ApplyMultiDOFJointState(msg.MultiDOFJointState)
}

// FromMsg returns a new state at the model's default positions with msg applied.
func FromMsg(model *robotmodel.RobotModel, msg msgs.RobotState) (*RobotState, error) {
	s := New(model)
	if err := s.ApplyMsg(msg); err != nil {
		return nil, err
	}
	return s, nil
}
