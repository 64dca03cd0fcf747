package planning

import (
	"context"
	"slices"
	"sync"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/motionkit/logging"
	"go.viam.com/motionkit/node"
	"go.viam.com/motionkit/robotmodel"
	"go.viam.com/motionkit/trajectory"
)

// Planner produces a trajectory for a request whose start state and group have been validated.
// Solve must return promptly once ctx is done.
type Planner interface {
	Name() string
	Solve(ctx context.Context, req MotionPlanRequest) (*trajectory.RobotTrajectory, error)
}

// PlannerConstructor builds a planner for model. The planner reads its configuration from the
// node parameters under prefix.
type PlannerConstructor func(
	model *robotmodel.RobotModel,
	n *node.Node,
	prefix string,
	logger logging.Logger,
) (Planner, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]PlannerConstructor{}
)

// RegisterPlanner makes a planner available to pipelines under name. It panics if the name is
// already taken.
func RegisterPlanner(name string, constructor PlannerConstructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[name]; ok {
		panic(errors.Errorf("planner %q is already registered", name))
	}
	registry[name] = constructor
}

// LookupPlanner returns the constructor registered under name.
func LookupPlanner(name string) (PlannerConstructor, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	c, ok := registry[name]
	return c, ok
}

// RegisteredPlanners returns the names of every registered planner, sorted.
func RegisteredPlanners() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := lo.Keys(registry)
	slices.Sort(names)
	return names
}
