// Package mover ties together everything needed to plan and execute motions for one robot: a
// planning scene monitor tracking the current state, named planning pipelines, a transform buffer
// and a trajectory execution manager.
package mover

import (
	"context"
	"maps"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"go.viam.com/motionkit/execution"
	"go.viam.com/motionkit/logging"
	"go.viam.com/motionkit/node"
	"go.viam.com/motionkit/planning"
	"go.viam.com/motionkit/planningscene"
	"go.viam.com/motionkit/robotmodel"
	"go.viam.com/motionkit/robotstate"
	"go.viam.com/motionkit/tf"
	"go.viam.com/motionkit/trajectory"
	"go.viam.com/motionkit/utils"
)

// Mover owns the components it creates and must be closed. Always use it through the pointer
// returned by New.
type Mover struct {
	node   *node.Node
	logger logging.Logger

	monitor   *planningscene.Monitor
	tfBuffer  *tf.Buffer
	pipelines map[string]*planning.Pipeline
	manager   *execution.Manager

	closed atomic.Bool
}

// New loads Options from the parameters of n and constructs a Mover running on the real clock.
func New(ctx context.Context, n *node.Node, logger logging.Logger) (*Mover, error) {
	opts, err := NewOptions(n)
	if err != nil {
		return nil, err
	}
	return NewWithOptions(ctx, n, opts, clock.New(), logger)
}

// NewWithOptions starts the planning scene monitor, loads the planning pipelines and the
// controllers listed in the "controllers" parameter of n. It fails if the robot model cannot be
// loaded or no planning pipeline loads.
func NewWithOptions(
	ctx context.Context,
	n *node.Node,
	opts Options,
	clk clock.Clock,
	logger logging.Logger,
) (*Mover, error) {
	logger.CDebugw(ctx, "initializing mover", "node", n.Name())
	tfBuffer := tf.NewBuffer(logger.Sublogger("tf"), clk, 0)

	monitor, err := planningscene.NewMonitor(n, opts.PlanningSceneMonitor.monitorOptions(), clk,
		logger.Sublogger("planning_scene_monitor"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to configure planning scene monitor")
	}
	guard := utils.NewGuard(monitor.Stop)
	defer guard.OnFail()
	monitor.SetTFBuffer(tfBuffer)
	if err := monitor.StartSceneMonitor(); err != nil {
		return nil, errors.Wrap(err, "failed to start scene monitor")
	}
	if err := monitor.StartStateMonitor(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to start state monitor")
	}
	monitor.StartPublishingPlanningScene()
	model := monitor.RobotModel()

	pipelines, err := planning.LoadPipelines(opts.PlanningPipelines.PipelineNames, opts.PlanningPipelines.Namespace,
		model, n, clk, logger.Sublogger("planning"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to load planning pipelines")
	}

	manager := execution.NewManager(opts.TrajectoryExecution, clk, logger.Sublogger("execution"))
	guard.Add(manager.Stop)
	err = manager.LoadControllers(n, execution.FakeControllerConfig{
		Node:            n,
		JointStateTopic: monitor.Options().JointStateTopic,
		TFBuffer:        tfBuffer,
		Model:           model,
		Clock:           clk,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to load controllers")
	}

	guard.Success()
	logger.Infow("mover ready", "model", model.Name(), "pipelines", len(pipelines),
		"controllers", manager.Controllers())
	return &Mover{
		node:      n,
		logger:    logger,
		monitor:   monitor,
		tfBuffer:  tfBuffer,
		pipelines: pipelines,
		manager:   manager,
	}, nil
}

// RobotModel returns the model of the robot being moved.
func (m *Mover) RobotModel() *robotmodel.RobotModel {
	return m.monitor.RobotModel()
}

// Node returns the node the mover reads parameters from and communicates on.
func (m *Mover) Node() *node.Node {
	return m.node
}

// CurrentState returns a copy of the robot's current state. When wait is positive it waits that
// long for a state received after the call.
func (m *Mover) CurrentState(ctx context.Context, wait time.Duration) (*robotstate.RobotState, error) {
	st, err := m.monitor.CurrentState(ctx, wait)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get current state")
	}
	return st, nil
}

// PlanningPipelines returns the loaded pipelines by name.
func (m *Mover) PlanningPipelines() map[string]*planning.Pipeline {
	return maps.Clone(m.pipelines)
}

// PlanningSceneMonitor returns the monitor tracking the robot's state.
func (m *Mover) PlanningSceneMonitor() *planningscene.Monitor {
	return m.monitor
}

// TFBuffer returns the transform buffer shared by the monitor and the controllers.
func (m *Mover) TFBuffer() *tf.Buffer {
	return m.tfBuffer
}

// TrajectoryExecutionManager returns the manager that runs trajectories on controllers.
func (m *Mover) TrajectoryExecutionManager() *execution.Manager {
	return m.manager
}

// Plan runs req through the named pipeline. A request without a start state starts from the
// current state.
func (m *Mover) Plan(ctx context.Context, pipelineName string, req planning.MotionPlanRequest) (planning.MotionPlanResponse, error) {
	p, ok := m.pipelines[pipelineName]
	if !ok {
		return planning.MotionPlanResponse{ErrorCode: planning.Failure},
			errors.Errorf("no planning pipeline named %q", pipelineName)
	}
	if req.StartState == nil {
		st, err := m.CurrentState(ctx, 0)
		if err != nil {
			return planning.MotionPlanResponse{ErrorCode: planning.InvalidRobotState}, err
		}
		req.StartState = st
	}
	return p.Generate(ctx, req)
}

// Execute runs rt on the given controllers, or on controllers chosen by the joints it moves when
// none are given, and blocks until execution ends.
func (m *Mover) Execute(ctx context.Context, rt *trajectory.RobotTrajectory, controllers []string) (execution.ExecutionStatus, error) {
	if rt == nil {
		return execution.Failed, errors.New("robot trajectory is undefined")
	}
	if m.closed.Load() {
		return execution.Failed, errors.New("mover is closed")
	}
	status, err := m.manager.Execute(ctx, rt, controllers)
	m.logger.CDebugw(ctx, "execution finished", "status", status, "group", rt.GroupName())
	return status, err
}

// TerminatePlanningPipeline stops any plan the named pipeline is working on. It reports whether
// the pipeline exists.
func (m *Mover) TerminatePlanningPipeline(name string) bool {
	p, ok := m.pipelines[name]
	if !ok {
		m.logger.Errorw("cannot terminate unknown planning pipeline", "pipeline", name)
		return false
	}
	if p.IsActive() {
		p.Terminate()
	}
	return true
}

// Close preempts any execution, stops every controller and stops monitoring. The node is left
// open.
func (m *Mover) Close(ctx context.Context) error {
	if m.closed.Swap(true) {
		return nil
	}
	for _, p := range m.pipelines {
		p.Terminate()
	}
	m.manager.Stop()
	var errs error
	for _, name := range m.manager.Controllers() {
		c, ok := m.manager.Controller(name)
		if !ok {
			continue
		}
		errs = multierr.Combine(errs, errors.Wrapf(c.Stop(ctx), "failed to stop controller %q", name))
	}
	m.monitor.Stop()
	return errs
}
