// Package planning turns motion plan requests into time-parameterized trajectories using
// registered planners arranged into named pipelines.
package planning

import (
	"time"

	"go.viam.com/motionkit/robotstate"
	"go.viam.com/motionkit/trajectory"
)

// ErrorCode classifies the outcome of a planning request.
type ErrorCode int

// Error codes returned in a MotionPlanResponse.
const (
	Success ErrorCode = iota
	Failure
	PlanningFailed
	InvalidGroupName
	InvalidGoalConstraints
	InvalidRobotState
	TimedOut
	Preempted
)

func (c ErrorCode) String() string {
	switch c {
	case Success:
		return "SUCCESS"
	case Failure:
		return "FAILURE"
	case PlanningFailed:
		return "PLANNING_FAILED"
	case InvalidGroupName:
		return "INVALID_GROUP_NAME"
	case InvalidGoalConstraints:
		return "INVALID_GOAL_CONSTRAINTS"
	case InvalidRobotState:
		return "INVALID_ROBOT_STATE"
	case TimedOut:
		return "TIMED_OUT"
	case Preempted:
		return "PREEMPTED"
	}
	return "UNKNOWN"
}

// MotionPlanRequest asks for a trajectory that moves the variables of a group from a start state
// to goal values.
type MotionPlanRequest struct {
	// GroupName selects the joints that may move. Empty means the whole robot.
	GroupName  string
	StartState *robotstate.RobotState
	// GoalJointValues maps variable names to target positions. Variables not named keep their
	// start value.
	GoalJointValues map[string]float64
	// MaxVelocityScalingFactor scales every joint's velocity limit. Values outside (0, 1] mean 1.
	MaxVelocityScalingFactor float64
	// AllowedPlanningTime bounds how long planning may take. Zero means no limit.
	AllowedPlanningTime time.Duration
}

// MotionPlanResponse is the result of a planning request.
type MotionPlanResponse struct {
	Trajectory   *trajectory.RobotTrajectory
	PlanningTime time.Duration
	ErrorCode    ErrorCode
}
