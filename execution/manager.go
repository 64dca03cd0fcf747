package execution

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"go.viam.com/motionkit/logging"
	"go.viam.com/motionkit/node"
	"go.viam.com/motionkit/trajectory"
	"go.viam.com/motionkit/utils"
)

// ManagerOptions configures how long an execution may take. They are read from the node
// parameters under "trajectory_execution".
type ManagerOptions struct {
	// ExecutionDurationMonitoring enables the time limit.
	ExecutionDurationMonitoring bool `json:"execution_duration_monitoring"`
	// AllowedExecutionDurationScaling multiplies the trajectory duration.
	AllowedExecutionDurationScaling float64 `json:"allowed_execution_duration_scaling"`
	// AllowedGoalDurationMargin is added to the scaled duration.
	AllowedGoalDurationMargin time.Duration `json:"allowed_goal_duration_margin"`
}

// DefaultManagerOptions returns the options used for parameters that are not set.
func DefaultManagerOptions() ManagerOptions {
	return ManagerOptions{
		ExecutionDurationMonitoring:     true,
		AllowedExecutionDurationScaling: 1.2,
		AllowedGoalDurationMargin:       500 * time.Millisecond,
	}
}

// Load reads the options from n, keeping the current value of any parameter that is not set.
func (opts *ManagerOptions) Load(n *node.Node) error {
	return n.DecodeParameters("trajectory_execution", opts)
}

// AllowedDuration returns how long a trajectory of the given duration may take to execute.
func (opts ManagerOptions) AllowedDuration(trajectoryDuration time.Duration) time.Duration {
	return time.Duration(float64(trajectoryDuration)*opts.AllowedExecutionDurationScaling) + opts.AllowedGoalDurationMargin
}

// Manager sends trajectories to the controllers that drive their joints, one trajectory at a time.
type Manager struct {
	opts   ManagerOptions
	clk    clock.Clock
	logger logging.Logger

	mu          sync.Mutex
	controllers map[string]Controller
	current     context.CancelCauseFunc
	currentID   uuid.UUID
	lastStatus  ExecutionStatus
}

// NewManager returns a manager with no controllers.
func NewManager(opts ManagerOptions, clk clock.Clock, logger logging.Logger) *Manager {
	return &Manager{
		opts:        opts,
		clk:         clk,
		logger:      logger,
		controllers: map[string]Controller{},
	}
}

// Options returns the options the manager was created with.
func (m *Manager) Options() ManagerOptions {
	return m.opts
}

// AddController makes c available for execution.
func (m *Manager) AddController(c Controller) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.controllers[c.Name()]; ok {
		return errors.Errorf("controller %q already exists", c.Name())
	}
	m.controllers[c.Name()] = c
	m.logger.Debugw("added controller", "controller", c.Name(), "joints", c.Joints())
	return nil
}

// Controllers returns the names of every controller, sorted.
func (m *Manager) Controllers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := lo.Keys(m.controllers)
	slices.Sort(names)
	return names
}

// Controller returns the named controller.
func (m *Manager) Controller(name string) (Controller, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.controllers[name]
	return c, ok
}

// LastExecutionStatus returns the status of the most recent execution, or Running while one is
// in progress.
func (m *Manager) LastExecutionStatus() ExecutionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastStatus
}

// CurrentExecutionID returns the id of the execution in progress, or uuid.Nil.
func (m *Manager) CurrentExecutionID() uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentID
}

// selectControllers picks the controllers that will drive joints. Named controllers must exist
// and together cover joints. Without names, a single controller covering every joint is
// preferred, then the fewest controllers found by repeatedly taking the one covering the most
// remaining joints. Callers hold mu.
func (m *Manager) selectControllers(joints, names []string) ([]Controller, error) {
	if len(names) > 0 {
		selected := make([]Controller, 0, len(names))
		for _, name := range lo.Uniq(names) {
			c, ok := m.controllers[name]
			if !ok {
				return nil, NewUnknownControllerError(name)
			}
			selected = append(selected, c)
		}
		covered := lo.FlatMap(selected, func(c Controller, _ int) []string { return c.Joints() })
		if missing, _ := lo.Difference(joints, covered); len(missing) > 0 {
			return nil, NewUncoveredJointsError(missing)
		}
		return selected, nil
	}

	candidates := lo.Values(m.controllers)
	slices.SortFunc(candidates, func(a, b Controller) int {
		if d := len(a.Joints()) - len(b.Joints()); d != 0 {
			return d
		}
		return compareNames(a.Name(), b.Name())
	})
	remaining := slices.Clone(joints)
	var selected []Controller
	for len(remaining) > 0 {
		var best Controller
		bestCount := 0
		for _, c := range candidates {
			if lo.Contains(selected, c) {
				continue
			}
			if count := len(lo.Intersect(remaining, c.Joints())); count > bestCount {
				best, bestCount = c, count
			}
		}
		if best == nil {
			return nil, NewUncoveredJointsError(remaining)
		}
		selected = append(selected, best)
		remaining, _ = lo.Difference(remaining, best.Joints())
	}
	return selected, nil
}

func compareNames(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Execute sends rt to controllers and blocks until every one of them finishes. When controllers
// is empty they are chosen by the joints rt moves. Each controller only receives the joints it
// drives. When duration monitoring is on, execution is cancelled once it takes longer than the
// allowed duration. The returned error explains any status other than Succeeded.
func (m *Manager) Execute(ctx context.Context, rt *trajectory.RobotTrajectory, controllers []string) (ExecutionStatus, error) {
	msg := rt.RobotTrajectoryMsg()
	joints := msg.JointNames()

	m.mu.Lock()
	if m.current != nil {
		m.mu.Unlock()
		return Failed, ErrBusy
	}
	selected, err := m.selectControllers(joints, controllers)
	if err != nil {
		m.mu.Unlock()
		m.logger.Warnw("cannot execute trajectory", "error", err)
		return Failed, err
	}
	execCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	id := uuid.New()
	m.current, m.currentID, m.lastStatus = cancel, id, Running
	m.mu.Unlock()

	status, err := m.run(ctx, execCtx, id, rt, selected)

	m.mu.Lock()
	m.current, m.currentID, m.lastStatus = nil, uuid.Nil, status
	m.mu.Unlock()
	return status, err
}

func (m *Manager) run(
	ctx, execCtx context.Context,
	id uuid.UUID,
	rt *trajectory.RobotTrajectory,
	selected []Controller,
) (ExecutionStatus, error) {
	logger := m.logger.With("execution", id)
	if rt.Empty() {
		logger.Debugw("nothing to execute")
		return Succeeded, nil
	}
	duration := time.Duration(rt.Duration() * float64(time.Second))
	runCtx := execCtx
	if m.opts.ExecutionDurationMonitoring {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = m.clk.WithTimeout(execCtx, m.opts.AllowedDuration(duration))
		defer cancelTimeout()
	}
	names := lo.Map(selected, func(c Controller, _ int) string { return c.Name() })
	logger.CDebugw(ctx, "executing trajectory", "controllers", names,
		"waypoints", rt.WayPointCount(), "duration", duration)
	stopSlowLogger := utils.SlowLogger(runCtx, m.clk, "waiting for trajectory execution", logger)
	defer stopSlowLogger()

	group, groupCtx := errgroup.WithContext(runCtx)
	for _, c := range selected {
		part := rt.RobotTrajectoryMsg(c.Joints()...)
		if part.Empty() {
			continue
		}
		group.Go(func() error {
			return errors.Wrapf(c.Execute(groupCtx, part), "controller %q", c.Name())
		})
	}
	err := group.Wait()

	status := Succeeded
	switch {
	case errors.Is(context.Cause(execCtx), ErrPreempted):
		status, err = Preempted, ErrPreempted
	case ctx.Err() != nil:
		status, err = Preempted, ctx.Err()
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		status = TimedOut
		err = errors.Errorf("execution took longer than the allowed %s", m.opts.AllowedDuration(duration))
	case err != nil:
		status = Aborted
	}
	if status != Succeeded {
		logger.Warnw("trajectory execution ended early", "status", status, "error", err)
		err = multierr.Combine(err, stopAll(selected))
	}
	return status, err
}

// stopAll stops every controller with a fresh context, since the execution context may be done.
func stopAll(controllers []Controller) error {
	var errs error
	for _, c := range controllers {
		errs = multierr.Combine(errs, errors.Wrapf(c.Stop(context.Background()), "failed to stop controller %q", c.Name()))
	}
	return errs
}

// Stop preempts the execution in progress, if any.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.logger.Infow("preempting execution", "execution", m.currentID)
		m.current(ErrPreempted)
	}
}
