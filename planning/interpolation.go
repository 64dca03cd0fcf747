package planning

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/motionkit/logging"
	"go.viam.com/motionkit/node"
	"go.viam.com/motionkit/robotmodel"
	"go.viam.com/motionkit/robotstate"
	"go.viam.com/motionkit/trajectory"
)

// InterpolationPlannerName is the name the joint-space interpolation planner is registered under.
const InterpolationPlannerName = "interpolation"

// boundsMargin is how far a goal may lie outside joint bounds before it is rejected rather than
// clamped.
const boundsMargin = 1e-6

func init() {
	RegisterPlanner(InterpolationPlannerName, newInterpolationPlanner)
}

type interpolationConfig struct {
	// MaxStep is the largest joint-space distance between consecutive waypoints.
	MaxStep      float64 `json:"max_step"`
	MaxWaypoints int     `json:"max_waypoints"`
}

// interpolationPlanner moves every variable of the group along a straight line in joint space.
type interpolationPlanner struct {
	model  *robotmodel.RobotModel
	cfg    interpolationConfig
	logger logging.Logger
}

func newInterpolationPlanner(
	model *robotmodel.RobotModel,
	n *node.Node,
	prefix string,
	logger logging.Logger,
) (Planner, error) {
	cfg := interpolationConfig{MaxStep: 0.1, MaxWaypoints: 1000}
	if err := n.DecodeParameters(prefix, &cfg); err != nil {
		return nil, err
	}
	if cfg.MaxStep <= 0 {
		return nil, errors.Errorf("max_step must be positive, got %v", cfg.MaxStep)
	}
	if cfg.MaxWaypoints < 2 {
		return nil, errors.Errorf("max_waypoints must be at least 2, got %d", cfg.MaxWaypoints)
	}
	return &interpolationPlanner{model: model, cfg: cfg, logger: logger}, nil
}

func (p *interpolationPlanner) Name() string {
	return InterpolationPlannerName
}

func (p *interpolationPlanner) Solve(ctx context.Context, req MotionPlanRequest) (*trajectory.RobotTrajectory, error) {
	rt, err := trajectory.NewForGroup(p.model, req.GroupName)
	if err != nil {
		return nil, err
	}
	start := req.StartState.Copy()
	start.ClearDerivatives()
	goal := start.Copy()
	group := rt.Group()
	for name, value := range req.GoalJointValues {
		if err := goal.SetVariablePosition(name, value); err != nil {
			return nil, NewInvalidGoalError(err)
		}
		if group != nil && !lo.Contains(group.VariableNames(), name) {
			return nil, NewInvalidGoalError(errors.Errorf("variable %q is not in group %q", name, group.Name()))
		}
	}

	var distance float64
	if group != nil {
		// joints outside the group keep their start values, in bounds or not.
		if !goal.SatisfiesBoundsForGroup(group, boundsMargin) {
			return nil, NewInvalidGoalError(errors.Errorf("goal is outside the joint bounds of group %q", group.Name()))
		}
		goal.EnforceBoundsForGroup(group)
		distance = start.DistanceForGroup(goal, group)
	} else {
		if !goal.SatisfiesBounds(boundsMargin) {
			return nil, NewInvalidGoalError(errors.New("goal is outside the joint bounds"))
		}
		goal.EnforceBounds()
		distance = start.Distance(goal)
	}
	steps := max(1, int(math.Ceil(distance/p.cfg.MaxStep)))
	steps = min(steps, p.cfg.MaxWaypoints-1)
	p.logger.Debugw("interpolating", "distance", distance, "waypoints", steps+1)

	for i := 0; i <= steps; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		waypoint := robotstate.New(p.model)
		start.Interpolate(goal, float64(i)/float64(steps), waypoint)
		rt.AddSuffixWayPoint(waypoint, 0)
	}
	return rt, nil
}
