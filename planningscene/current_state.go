package planningscene

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"go.viam.com/motionkit/robotstate"
)

// missingSince returns the variables of active joints that have not been updated at or after t.
// A zero t asks for variables never updated. Callers hold mu.
func (m *Monitor) missingSince(t time.Time) []string {
	var missing []string
	for _, jm := range m.model.ActiveJointModels() {
		if jm.VariableCount() > 1 && m.tfBuffer == nil {
			continue
		}
		for i, name := range jm.VariableNames() {
			stamp := m.stamps[jm.FirstVariableIndex()+i]
			if stamp.IsZero() || stamp.Before(t) {
				missing = append(missing, name)
			}
		}
	}
	return missing
}

// MissingVariables returns the variables no joint state has named yet. Planar and floating joints
// only count when a transform buffer is set.
func (m *Monitor) MissingVariables() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateMultiDOFJoints()
	return m.missingSince(time.Time{})
}

// HaveCompleteState returns whether every variable has been updated at least once.
func (m *Monitor) HaveCompleteState() bool {
	return len(m.MissingVariables()) == 0
}

// WaitForCompleteState waits up to wait on the monitor's clock for every variable to be updated
// at least once.
func (m *Monitor) WaitForCompleteState(ctx context.Context, wait time.Duration) error {
	return m.waitForStateSince(ctx, time.Time{}, wait)
}

// WaitForCurrentState waits up to wait for every variable to be updated at or after t.
func (m *Monitor) WaitForCurrentState(ctx context.Context, t time.Time, wait time.Duration) error {
	return m.waitForStateSince(ctx, t, wait)
}

func (m *Monitor) waitForStateSince(ctx context.Context, t time.Time, wait time.Duration) error {
	timer := m.clk.Timer(wait)
	defer timer.Stop()

	var tfChanged <-chan struct{}
	for {
		m.mu.Lock()
		m.updateMultiDOFJoints()
		missing := m.missingSince(t)
		changed := m.changed
		if m.tfBuffer != nil {
			tfChanged = m.tfBuffer.Changed()
		}
		m.mu.Unlock()
		if len(missing) == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return errors.Errorf("timed out after %s waiting for %v", wait, missing)
		case <-changed:
		case <-tfChanged:
		}
	}
}

// CurrentState returns a copy of the current state. When wait is positive it first waits that
// long for every variable to be updated after the call was made, and fails if they are not.
func (m *Monitor) CurrentState(ctx context.Context, wait time.Duration) (*robotstate.RobotState, error) {
	if wait > 0 {
		if err := m.WaitForCurrentState(ctx, m.clk.Now(), wait); err != nil {
			return nil, errors.Wrap(err, "did not receive robot state")
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateMultiDOFJoints()
	return m.state.Copy(), nil
}
