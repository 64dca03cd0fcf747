package trajectory

import (
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/motionkit/msgs"
	"go.viam.com/motionkit/robotmodel"
	"go.viam.com/motionkit/robotstate"
	"go.viam.com/motionkit/spatialmath"
)

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

func (rt *RobotTrajectory) activeJoints() []*robotmodel.JointModel {
	if rt.group != nil {
		return rt.group.ActiveJointModels()
	}
	return rt.model.ActiveJointModels()
}

// RobotTrajectoryMsg converts the trajectory into a message. Single variable joints go into the
// joint trajectory and every other active joint into the multi-DOF trajectory. When jointFilter is
// not empty only the joints it names are included. Velocities, accelerations and efforts are
// included for a point only when the waypoint has them for every joint.
func (rt *RobotTrajectory) RobotTrajectoryMsg(jointFilter ...string) msgs.RobotTrajectory {
	var msg msgs.RobotTrajectory
	if rt.Empty() {
		return msg
	}

	var onedof, mdof []*robotmodel.JointModel
	for _, jm := range rt.activeJoints() {
		if len(jointFilter) > 0 && !lo.Contains(jointFilter, jm.Name()) {
			continue
		}
		if jm.VariableCount() == 1 {
			msg.JointTrajectory.JointNames = append(msg.JointTrajectory.JointNames, jm.Name())
			onedof = append(onedof, jm)
		} else {
			msg.MultiDOFJointTrajectory.JointNames = append(msg.MultiDOFJointTrajectory.JointNames, jm.Name())
			mdof = append(mdof, jm)
		}
	}

	if len(onedof) > 0 {
		msg.JointTrajectory.Header.FrameID = rt.model.ModelFrame()
		msg.JointTrajectory.Points = make([]msgs.JointTrajectoryPoint, len(rt.waypoints))
	}
	if len(mdof) > 0 {
		msg.MultiDOFJointTrajectory.Header.FrameID = rt.model.ModelFrame()
		msg.MultiDOFJointTrajectory.Points = make([]msgs.MultiDOFJointTrajectoryPoint, len(rt.waypoints))
	}

	total := 0.
	for i, wp := range rt.waypoints {
		var timeFromStart time.Duration
		if i < len(rt.durations) {
			total += rt.durations[i]
			timeFromStart = secondsToDuration(total)
		}

		if len(onedof) > 0 {
			point := &msg.JointTrajectory.Points[i]
			point.Positions = make([]float64, len(onedof))
			for j, jm := range onedof {
				point.Positions[j] = wp.Positions()[jm.FirstVariableIndex()]
			}
			point.Velocities = pickVariables(wp.Velocities(), onedof)
			point.Accelerations = pickVariables(wp.Accelerations(), onedof)
			point.Effort = pickVariables(wp.Effort(), onedof)
			point.TimeFromStart = timeFromStart
		}

		if len(mdof) > 0 {
			point := &msg.MultiDOFJointTrajectory.Points[i]
			point.Transforms = make([]msgs.Transform, len(mdof))
			for j, jm := range mdof {
				point.Transforms[j] = robotstate.JointMsgTransform(jm, wp.JointPositions(jm))
				if twist, ok := robotstate.PlanarTwist(jm, wp.JointVelocities(jm)); ok {
					point.Velocities = append(point.Velocities, twist)
				}
			}
			point.TimeFromStart = timeFromStart
		}
	}
	return msg
}

func pickVariables(values []float64, joints []*robotmodel.JointModel) []float64 {
	if values == nil {
		return nil
	}
	out := make([]float64, len(joints))
	for j, jm := range joints {
		out[j] = values[jm.FirstVariableIndex()]
	}
	return out
}

// SetJointTrajectoryMsg replaces the waypoints with the points of msg applied onto copies of
// reference. The trajectory is left unchanged on error.
func (rt *RobotTrajectory) SetJointTrajectoryMsg(reference *robotstate.RobotState, msg msgs.JointTrajectory) error {
	ref := reference.Copy()
	out := NewForJointModelGroup(rt.model, rt.group)
	last := msg.Header.Stamp
	for i, point := range msg.Points {
		st := ref.Copy()
		if err := applyJointPoint(st, msg.JointNames, point); err != nil {
			return errors.Wrapf(err, "point %d", i)
		}
		this := msg.Header.Stamp.Add(point.TimeFromStart)
		out.AddSuffixWayPoint(st, this.Sub(last).Seconds())
		last = this
	}
	rt.waypoints, rt.durations = out.waypoints, out.durations
	return nil
}

// SetRobotTrajectoryMsg replaces the waypoints with the points of msg applied onto copies of
// reference. When the two halves of msg have different lengths the longer one sets the number of
// waypoints. The trajectory is left unchanged on error.
func (rt *RobotTrajectory) SetRobotTrajectoryMsg(reference *robotstate.RobotState, msg msgs.RobotTrajectory) error {
	ref := reference.Copy()
	out := NewForJointModelGroup(rt.model, rt.group)
	jt := msg.JointTrajectory
	mt := msg.MultiDOFJointTrajectory

	mdofJoints := make([]*robotmodel.JointModel, len(mt.JointNames))
	for j, name := range mt.JointNames {
		jm, err := rt.model.JointModel(name)
		if err != nil {
			return err
		}
		mdofJoints[j] = jm
	}

	count := max(len(jt.Points), len(mt.Points))
	last := jt.Header.Stamp
	if len(jt.Points) == 0 {
		last = mt.Header.Stamp
	}
	this := last
	for i := 0; i < count; i++ {
		st := ref.Copy()
		if i < len(jt.Points) {
			if err := applyJointPoint(st, jt.JointNames, jt.Points[i]); err != nil {
				return errors.Wrapf(err, "joint trajectory point %d", i)
			}
			this = jt.Header.Stamp.Add(jt.Points[i].TimeFromStart)
		}
		if i < len(mt.Points) {
			point := mt.Points[i]
			if len(point.Transforms) != len(mdofJoints) {
				return errors.Errorf("multi-DOF trajectory point %d has %d transforms for %d joints",
					i, len(point.Transforms), len(mdofJoints))
			}
			for j, jm := range mdofJoints {
				tf := point.Transforms[j]
				st.SetJointTransform(jm, spatialmath.NewPose(tf.Translation.R3(), tf.Rotation.Quat()))
			}
			this = mt.Header.Stamp.Add(point.TimeFromStart)
		}
		out.AddSuffixWayPoint(st, this.Sub(last).Seconds())
		last = this
	}
	rt.waypoints, rt.durations = out.waypoints, out.durations
	return nil
}

// SetRobotTrajectoryMsgWithState is SetRobotTrajectoryMsg with state applied onto a copy of
// reference first.
func (rt *RobotTrajectory) SetRobotTrajectoryMsgWithState(
	reference *robotstate.RobotState,
	state msgs.RobotState,
	msg msgs.RobotTrajectory,
) error {
	ref := reference.Copy()
	if err := ref.ApplyMsg(state); err != nil {
		return err
	}
	return rt.SetRobotTrajectoryMsg(ref, msg)
}

func applyJointPoint(st *robotstate.RobotState, names []string, point msgs.JointTrajectoryPoint) error {
	if err := st.SetVariablePositions(names, point.Positions); err != nil {
		return err
	}
	if len(point.Velocities) > 0 {
		if err := st.SetVariableVelocities(names, point.Velocities); err != nil {
			return err
		}
	}
	if len(point.Accelerations) > 0 {
		if err := st.SetVariableAccelerations(names, point.Accelerations); err != nil {
			return err
		}
	}
	if len(point.Effort) > 0 {
		return st.SetVariableEffort(names, point.Effort)
	}
	return nil
}
