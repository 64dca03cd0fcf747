package planning

import (
	"context"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"go.viam.com/motionkit/logging"
	"go.viam.com/motionkit/node"
	"go.viam.com/motionkit/robotmodel"
)

// PipelineConfig is read from the node parameters under "<namespace>.<pipeline name>". The same
// map also holds the chosen planner's own parameters.
type PipelineConfig struct {
	Planner              string  `json:"planner"`
	TimeParameterization bool    `json:"time_parameterization"`
	VelocityScaling      float64 `json:"default_velocity_scaling_factor"`
}

// Pipeline runs one planner and post-processes its result.
type Pipeline struct {
	name    string
	prefix  string
	cfg     PipelineConfig
	model   *robotmodel.RobotModel
	planner Planner
	clk     clock.Clock
	logger  logging.Logger

	active  atomic.Int64
	mu      sync.Mutex
	nextID  int
	running map[int]context.CancelCauseFunc
}

// ParameterPrefix returns the parameter key that configures the named pipeline.
func ParameterPrefix(namespace, name string) string {
	if namespace == "" {
		return name
	}
	return namespace + "." + name
}

// NewPipeline builds the named pipeline from the node parameters under namespace.
func NewPipeline(
	name, namespace string,
	model *robotmodel.RobotModel,
	n *node.Node,
	clk clock.Clock,
	logger logging.Logger,
) (*Pipeline, error) {
	prefix := ParameterPrefix(namespace, name)
	if !n.HasParameter(prefix) {
		return nil, errors.Errorf("no parameters for planning pipeline %q at %q", name, prefix)
	}
	cfg := PipelineConfig{Planner: InterpolationPlannerName, TimeParameterization: true, VelocityScaling: 1}
	if err := n.DecodeParameters(prefix, &cfg); err != nil {
		return nil, err
	}
	constructor, ok := LookupPlanner(cfg.Planner)
	if !ok {
		return nil, NewUnknownPlannerError(cfg.Planner)
	}
	planner, err := constructor(model, n, prefix, logger.Sublogger(cfg.Planner))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create planner %q for pipeline %q", cfg.Planner, name)
	}
	return &Pipeline{
		name:    name,
		prefix:  prefix,
		cfg:     cfg,
		model:   model,
		planner: planner,
		clk:     clk,
		logger:  logger,
		running: map[int]context.CancelCauseFunc{},
	}, nil
}

// Name returns the name of the pipeline.
func (p *Pipeline) Name() string {
	return p.name
}

// PlannerName returns the name of the planner the pipeline runs.
func (p *Pipeline) PlannerName() string {
	return p.planner.Name()
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() PipelineConfig {
	return p.cfg
}

// IsActive returns whether a plan is being generated.
func (p *Pipeline) IsActive() bool {
	return p.active.Load() > 0
}

// Terminate cancels every plan being generated. Their responses carry Preempted.
func (p *Pipeline) Terminate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, cancel := range p.running {
		cancel(ErrTerminated)
	}
	if len(p.running) > 0 {
		p.logger.Infow("terminated planning", "pipeline", p.name, "plans", len(p.running))
	}
}

func (p *Pipeline) track(cancel context.CancelCauseFunc) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.running[id] = cancel
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.running, id)
	}
}

// Generate plans for req. The response always carries an error code; the error is non-nil
// whenever that code is not Success.
func (p *Pipeline) Generate(ctx context.Context, req MotionPlanRequest) (MotionPlanResponse, error) {
	start := p.clk.Now()
	fail := func(code ErrorCode, err error) (MotionPlanResponse, error) {
		p.logger.Warnw("planning failed", "pipeline", p.name, "code", code, "error", err)
		return MotionPlanResponse{ErrorCode: code, PlanningTime: p.clk.Since(start)}, err
	}

	if req.StartState == nil {
		return fail(InvalidRobotState, errors.New("request has no start state"))
	}
	if req.StartState.Model() != p.model {
		return fail(InvalidRobotState, errors.Errorf("start state is for robot model %q, not %q",
			req.StartState.Model().Name(), p.model.Name()))
	}
	if req.GroupName != "" && !p.model.HasJointModelGroup(req.GroupName) {
		return fail(InvalidGroupName, robotmodel.NewUnknownGroupError(p.model.Name(), req.GroupName))
	}
	scaling := req.MaxVelocityScalingFactor
	if scaling <= 0 || scaling > 1 {
		scaling = p.cfg.VelocityScaling
	}

	p.active.Inc()
	defer p.active.Dec()
	causeCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	defer p.track(cancel)()
	planCtx := context.Context(causeCtx)
	if req.AllowedPlanningTime > 0 {
		var cancelTimeout context.CancelFunc
		planCtx, cancelTimeout = p.clk.WithTimeout(causeCtx, req.AllowedPlanningTime)
		defer cancelTimeout()
	}

	rt, err := p.planner.Solve(planCtx, req)
	if err != nil {
		switch {
		case errors.Is(context.Cause(causeCtx), ErrTerminated):
			return fail(Preempted, ErrTerminated)
		case errors.Is(planCtx.Err(), context.DeadlineExceeded):
			return fail(TimedOut, errors.Wrapf(err, "planning took longer than %s", req.AllowedPlanningTime))
		case errors.Is(err, ErrInvalidGoal):
			return fail(InvalidGoalConstraints, err)
		default:
			return fail(PlanningFailed, err)
		}
	}
	if p.cfg.TimeParameterization {
		ApplyVelocityLimits(rt, scaling)
	}
	elapsed := p.clk.Since(start)
	p.logger.CDebugw(ctx, "planned", "pipeline", p.name, "waypoints", rt.WayPointCount(),
		"duration", rt.Duration(), "planning_time", elapsed)
	return MotionPlanResponse{Trajectory: rt, PlanningTime: elapsed, ErrorCode: Success}, nil
}

// LoadPipelines builds each named pipeline. Pipelines that fail to load are logged and skipped;
// it is an error for none to load.
func LoadPipelines(
	names []string,
	namespace string,
	model *robotmodel.RobotModel,
	n *node.Node,
	clk clock.Clock,
	logger logging.Logger,
) (map[string]*Pipeline, error) {
	pipelines := map[string]*Pipeline{}
	for _, name := range names {
		if _, ok := pipelines[name]; ok {
			continue
		}
		p, err := NewPipeline(name, namespace, model, n, clk, logger.Sublogger(name))
		if err != nil {
			logger.Errorw("failed to load planning pipeline", "pipeline", name, "error", err)
			continue
		}
		pipelines[name] = p
	}
	if len(pipelines) == 0 {
		return nil, errors.Errorf("failed to load any of the planning pipelines %v", names)
	}
	return pipelines, nil
}
