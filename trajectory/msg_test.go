package trajectory

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.viam.com/test"

	"go.viam.com/motionkit/msgs"
	"go.viam.com/motionkit/robotstate"
	"go.viam.com/motionkit/testutils"
)

func TestRobotTrajectoryMsg(t *testing.T) {
	model := testutils.ArmBaseModel(t)
	test.That(t, New(model).RobotTrajectoryMsg().Empty(), test.ShouldBeTrue)

	rt := New(model)
	first := newState(t, model, 1, 2, 0, 0.1, 0.2, 0.3)
	test.That(t, first.SetVelocities([]float64{0.5, 0.25, 0.125, 1, 2, 3}), test.ShouldBeNil)
	rt.AddSuffixWayPoint(first, 0.5)
	rt.AddSuffixWayPoint(newState(t, model, 0, 0, 0, 0.4, 0.5, 0.6), 1.5)

	msg := rt.RobotTrajectoryMsg()
	expected := msgs.RobotTrajectory{
		JointTrajectory: msgs.JointTrajectory{
			Header:     msgs.Header{FrameID: "odom"},
			JointNames: []string{"shoulder", "wrist", "slide"},
			Points: []msgs.JointTrajectoryPoint{
				{Positions: []float64{0.1, 0.2, 0.3}, Velocities: []float64{1, 2, 3}, TimeFromStart: 500 * time.Millisecond},
				{Positions: []float64{0.4, 0.5, 0.6}, TimeFromStart: 2 * time.Second},
			},
		},
		MultiDOFJointTrajectory: msgs.MultiDOFJointTrajectory{
			Header:     msgs.Header{FrameID: "odom"},
			JointNames: []string{"base"},
			Points: []msgs.MultiDOFJointTrajectoryPoint{
				{
					Transforms: []msgs.Transform{{
						Translation: msgs.Vector3{X: 1, Y: 2},
						Rotation:    msgs.Quaternion{W: 1},
					}},
					Velocities: []msgs.Twist{{
						Linear:  msgs.Vector3{X: 0.5, Y: 0.25},
						Angular: msgs.Vector3{Z: 0.125},
					}},
					TimeFromStart: 500 * time.Millisecond,
				},
				{
					Transforms:    []msgs.Transform{{Rotation: msgs.Quaternion{W: 1}}},
					TimeFromStart: 2 * time.Second,
				},
			},
		},
	}
	test.That(t, cmp.Diff(expected, msg), test.ShouldBeEmpty)
	test.That(t, msg.Duration(), test.ShouldEqual, 2*time.Second)
	test.That(t, msg.JointNames(), test.ShouldResemble, []string{"shoulder", "wrist", "slide", "base"})

	filtered := rt.RobotTrajectoryMsg("wrist")
	test.That(t, filtered.JointTrajectory.JointNames, test.ShouldResemble, []string{"wrist"})
	test.That(t, filtered.JointTrajectory.Points[0].Positions, test.ShouldResemble, []float64{0.2})
	test.That(t, filtered.MultiDOFJointTrajectory.Points, test.ShouldBeNil)
	test.That(t, filtered.MultiDOFJointTrajectory.Header.FrameID, test.ShouldEqual, "")

	test.That(t, rt.SetGroupName("arm"), test.ShouldBeNil)
	grouped := rt.RobotTrajectoryMsg()
	test.That(t, grouped.MultiDOFJointTrajectory.JointNames, test.ShouldBeNil)
	test.That(t, len(grouped.JointTrajectory.Points), test.ShouldEqual, 2)

	// waypoints past the end of the durations start at zero
	rt.SetWayPointDurationFromPrevious(0, 0.5)
	rt.AddSuffixWayPoint(newState(t, model, 0, 0, 0, 0, 0, 0), 1)
	rt.durations = rt.durations[:2]
	test.That(t, rt.RobotTrajectoryMsg().JointTrajectory.Points[2].TimeFromStart, test.ShouldEqual, time.Duration(0))
}

func TestSetJointTrajectoryMsg(t *testing.T) {
	model := testutils.ArmBaseModel(t)
	reference := newState(t, model, 1, 1, 1, 0, 0, 0)
	stamp := time.Unix(1000, 0)
	jt := msgs.JointTrajectory{
		Header:     msgs.Header{Stamp: stamp},
		JointNames: []string{"wrist", "shoulder"},
		Points: []msgs.JointTrajectoryPoint{
			{Positions: []float64{0.1, 0.2}, TimeFromStart: time.Second},
			{Positions: []float64{0.3, 0.4}, Velocities: []float64{1, 2}, TimeFromStart: 3 * time.Second},
		},
	}

	rt := New(model)
	test.That(t, rt.SetJointTrajectoryMsg(reference, jt), test.ShouldBeNil)
	test.That(t, rt.Size(), test.ShouldEqual, 2)
	test.That(t, rt.WayPointDurations(), test.ShouldResemble, []float64{1, 2})
	test.That(t, rt.WayPoint(0).Positions(), test.ShouldResemble, []float64{1, 1, 1, 0.2, 0.1, 0})
	test.That(t, rt.WayPoint(0).HasVelocities(), test.ShouldBeFalse)
	test.That(t, rt.WayPoint(1).Velocities(), test.ShouldResemble, []float64{0, 0, 0, 2, 1, 0})
	test.That(t, rt.WayPoint(0), test.ShouldNotEqual, reference)

	jt.Points = append(jt.Points, msgs.JointTrajectoryPoint{Positions: []float64{1}})
	err := rt.SetJointTrajectoryMsg(reference, jt)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "point 2")
	// unchanged on error
	test.That(t, rt.Size(), test.ShouldEqual, 2)
}

func TestRobotTrajectoryMsgRoundTrip(t *testing.T) {
	model := testutils.ArmBaseModel(t)
	rt := New(model)
	rt.AddSuffixWayPoint(newState(t, model, 1, 2, 0.5, 0.1, 0.2, 0.3), 0)
	rt.AddSuffixWayPoint(newState(t, model, 2, 3, -0.5, 0.4, -3, 0.6), 0.25)
	rt.AddSuffixWayPoint(newState(t, model, 3, 4, 1, 0.7, 3, 0.9), 0.75)

	msg := rt.RobotTrajectoryMsg()
	back := New(model)
	test.That(t, back.SetRobotTrajectoryMsg(robotstate.New(model), msg), test.ShouldBeNil)
	test.That(t, back.Size(), test.ShouldEqual, 3)
	for i := 0; i < 3; i++ {
		test.That(t, back.WayPointDurationFromPrevious(i), test.ShouldAlmostEqual, rt.WayPointDurationFromPrevious(i))
		for j, v := range rt.WayPoint(i).Positions() {
			test.That(t, back.WayPoint(i).Positions()[j], test.ShouldAlmostEqual, v)
		}
	}
}

func TestSetRobotTrajectoryMsgUnevenHalves(t *testing.T) {
	model := testutils.ArmBaseModel(t)
	stamp := time.Unix(50, 0)
	msg := msgs.RobotTrajectory{
		JointTrajectory: msgs.JointTrajectory{
			Header:     msgs.Header{Stamp: stamp},
			JointNames: []string{"slide"},
			Points:     []msgs.JointTrajectoryPoint{{Positions: []float64{0.5}, TimeFromStart: time.Second}},
		},
		MultiDOFJointTrajectory: msgs.MultiDOFJointTrajectory{
			Header:     msgs.Header{Stamp: stamp},
			JointNames: []string{"base"},
			Points: []msgs.MultiDOFJointTrajectoryPoint{
				{Transforms: []msgs.Transform{{Translation: msgs.Vector3{X: 1}, Rotation: msgs.Quaternion{W: 1}}}, TimeFromStart: time.Second},
				{Transforms: []msgs.Transform{{Translation: msgs.Vector3{X: 2}, Rotation: msgs.Quaternion{W: 1}}}, TimeFromStart: 4 * time.Second},
			},
		},
	}
	rt := New(model)
	test.That(t, rt.SetRobotTrajectoryMsg(robotstate.New(model), msg), test.ShouldBeNil)
	test.That(t, rt.Size(), test.ShouldEqual, 2)
	test.That(t, rt.WayPointDurations(), test.ShouldResemble, []float64{1, 3})
	test.That(t, rt.WayPoint(0).Positions()[0], test.ShouldAlmostEqual, 1)
	test.That(t, rt.WayPoint(0).Positions()[5], test.ShouldEqual, 0.5)
	test.That(t, rt.WayPoint(1).Positions()[0], test.ShouldAlmostEqual, 2)
	test.That(t, rt.WayPoint(1).Positions()[5], test.ShouldEqual, 0.)

	// the multi-DOF half alone sets its own start stamp
	msg.JointTrajectory.Points = nil
	msg.JointTrajectory.Header.Stamp = time.Time{}
	test.That(t, rt.SetRobotTrajectoryMsg(robotstate.New(model), msg), test.ShouldBeNil)
	test.That(t, rt.WayPointDurations(), test.ShouldResemble, []float64{1, 3})

	msg.MultiDOFJointTrajectory.JointNames = []string{"hover"}
	test.That(t, rt.SetRobotTrajectoryMsg(robotstate.New(model), msg), test.ShouldNotBeNil)
}

func TestSetRobotTrajectoryMsgWithState(t *testing.T) {
	model := testutils.ArmBaseModel(t)
	state := msgs.RobotState{JointState: msgs.JointState{Name: []string{"slide"}, Position: []float64{0.75}}}
	msg := msgs.RobotTrajectory{JointTrajectory: msgs.JointTrajectory{
		JointNames: []string{"shoulder"},
		Points:     []msgs.JointTrajectoryPoint{{Positions: []float64{1}, TimeFromStart: time.Second}},
	}}
	rt := New(model)
	reference := robotstate.New(model)
	test.That(t, rt.SetRobotTrajectoryMsgWithState(reference, state, msg), test.ShouldBeNil)
	test.That(t, rt.WayPoint(0).Positions()[3], test.ShouldEqual, 1.)
	test.That(t, rt.WayPoint(0).Positions()[5], test.ShouldEqual, 0.75)
	test.That(t, reference.Positions()[5], test.ShouldEqual, 0.)

	state.JointState.Name = []string{"elbow"}
	test.That(t, rt.SetRobotTrajectoryMsgWithState(reference, state, msg), test.ShouldNotBeNil)
}
