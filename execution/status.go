// Package execution sends trajectories to the controllers that drive a robot's joints and
// reports how the execution ended.
package execution

import "github.com/pkg/errors"

// ExecutionStatus is the outcome of executing a trajectory.
type ExecutionStatus int

// The possible execution outcomes.
const (
	Unknown ExecutionStatus = iota
	Running
	Succeeded
	Preempted
	TimedOut
	Aborted
	Failed
)

func (s ExecutionStatus) String() string {
	switch s {
	case Running:
		return "RUNNING"
	case Succeeded:
		return "SUCCEEDED"
	case Preempted:
		return "PREEMPTED"
	case TimedOut:
		return "TIMED_OUT"
	case Aborted:
		return "ABORTED"
	case Failed:
		return "FAILED"
	case Unknown:
	}
	return "UNKNOWN"
}

var (
	// ErrBusy is returned when a trajectory is sent while another is executing.
	ErrBusy = errors.New("another trajectory is executing")
	// ErrPreempted is the cause of an execution cancelled by Manager.Stop.
	ErrPreempted = errors.New("execution preempted")
)

// NewUnknownControllerError returns an error indicating no controller has the given name.
func NewUnknownControllerError(name string) error {
	return errors.Errorf("unknown controller %q", name)
}

// NewUncoveredJointsError returns an error indicating no controller drives the given joints.
func NewUncoveredJointsError(joints []string) error {
	return errors.Errorf("no controller drives joints %v", joints)
}
