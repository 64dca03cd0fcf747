package planning

import "github.com/pkg/errors"

var (
	// ErrInvalidGoal is returned when the goal of a request cannot be reached by any state.
	ErrInvalidGoal = errors.New("invalid goal")
	// ErrTerminated is the cause of a plan cancelled by Pipeline.Terminate.
	ErrTerminated = errors.New("planning pipeline terminated")
)

// NewUnknownPlannerError returns an error indicating no planner is registered under name.
func NewUnknownPlannerError(name string) error {
	return errors.Errorf("no planner registered as %q", name)
}

// NewInvalidGoalError wraps the reason a goal is invalid so that errors.Is matches ErrInvalidGoal.
func NewInvalidGoalError(reason error) error {
	return errors.Wrap(ErrInvalidGoal, reason.Error())
}
