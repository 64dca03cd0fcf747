package planningscene

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/atomic"
	"golang.org/x/time/rate"

	"go.viam.com/motionkit/logging"
	"go.viam.com/motionkit/msgs"
	"go.viam.com/motionkit/node"
	"go.viam.com/motionkit/robotmodel"
	"go.viam.com/motionkit/robotstate"
	"go.viam.com/motionkit/tf"
	"go.viam.com/motionkit/utils"
)

// Monitor maintains the current state of the robot described by its options.
type Monitor struct {
	opts   MonitorOptions
	node   *node.Node
	model  *robotmodel.RobotModel
	clk    clock.Clock
	logger logging.Logger

	mu    sync.Mutex
	state *robotstate.RobotState
	// time each variable was last updated; zero until first seen.
	stamps     []time.Time
	lastUpdate time.Time
	attached   map[string]msgs.AttachedCollisionObject
	tfBuffer   *tf.Buffer
	// closed and replaced whenever the state changes.
	changed chan struct{}

	stateSubs []func()
	sceneSubs []func()

	publishing atomic.Bool
	pendingMu  sync.Mutex
	pending    []string
	wake       chan struct{}
	limiter    *rate.Limiter
	workers    *utils.StoppableWorkers
}

// NewMonitor loads the robot model named by opts.RobotDescription. The monitor does nothing until
// one of its Start methods is called.
func NewMonitor(n *node.Node, opts MonitorOptions, clk clock.Clock, logger logging.Logger) (*Monitor, error) {
	opts.fillDefaults()
	model, err := LoadRobotModel(n, opts.RobotDescription)
	if err != nil {
		return nil, errors.Wrapf(err, "planning scene monitor %q", opts.Name)
	}
	limit := rate.Inf
	if opts.PublishRate > 0 {
		limit = rate.Limit(opts.PublishRate)
	}
	m := &Monitor{
		opts:     opts,
		node:     n,
		model:    model,
		clk:      clk,
		logger:   logger,
		state:    robotstate.New(model),
		stamps:   make([]time.Time, model.VariableCount()),
		attached: map[string]msgs.AttachedCollisionObject{},
		changed:  make(chan struct{}),
		wake:     make(chan struct{}, 1),
		limiter:  rate.NewLimiter(limit, 1),
		workers:  utils.NewStoppableWorkers(),
	}
	logger.Infow("loaded robot model", "monitor", opts.Name, "model", model.Name(),
		"variables", model.VariableCount())
	return m, nil
}

// Name returns the name of the monitor.
func (m *Monitor) Name() string {
	return m.opts.Name
}

// Options returns the options the monitor was created with, defaults filled in.
func (m *Monitor) Options() MonitorOptions {
	return m.opts
}

// RobotModel returns the model the monitor tracks.
func (m *Monitor) RobotModel() *robotmodel.RobotModel {
	return m.model
}

// SetTFBuffer makes the monitor read the positions of planar and floating joints from b. Each such
// joint is looked up as the transform from its parent frame (or the model frame) to a frame named
// after the joint.
func (m *Monitor) SetTFBuffer(b *tf.Buffer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tfBuffer = b
}

// StartStateMonitor subscribes to joint states and attached objects. When the options ask for it,
// it then waits for a complete state, warning if none arrives in time.
func (m *Monitor) StartStateMonitor(ctx context.Context) error {
	m.mu.Lock()
	if len(m.stateSubs) > 0 {
		m.mu.Unlock()
		return nil
	}
	unsubJoints, err := node.Subscribe(m.node, m.opts.JointStateTopic, m.onJointState)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	unsubAttached, err := node.Subscribe(m.node, m.opts.AttachedCollisionObjectTopic, m.onAttachedObject)
	if err != nil {
		m.mu.Unlock()
		unsubJoints()
		return err
	}
	m.stateSubs = []func(){unsubJoints, unsubAttached}
	m.mu.Unlock()
	m.logger.Debugw("listening for joint states", "topic", m.opts.JointStateTopic)

	if m.opts.WaitForInitialStateTimeout > 0 {
		if err := m.WaitForCompleteState(ctx, m.opts.WaitForInitialStateTimeout); err != nil {
			m.logger.Warnw("no complete robot state yet", "monitor", m.opts.Name, "error", err)
		}
	}
	return nil
}

// StopStateMonitor unsubscribes from joint states and attached objects.
func (m *Monitor) StopStateMonitor() {
	m.mu.Lock()
	subs := m.stateSubs
	m.stateSubs = nil
	m.mu.Unlock()
	for _, unsub := range subs {
		unsub()
	}
}

// StartSceneMonitor subscribes to scene updates published by other monitors and merges their
// robot state and attached objects into this one. Updates this monitor published are ignored.
func (m *Monitor) StartSceneMonitor() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sceneSubs) > 0 {
		return nil
	}
	unsub, err := node.Subscribe(m.node, m.opts.MonitoredPlanningSceneTopic, m.onSceneUpdate)
	if err != nil {
		return err
	}
	m.sceneSubs = []func(){unsub}
	return nil
}

// StartPublishingPlanningScene publishes a msgs.PlanningSceneUpdate on the publish topic after
// every change, no faster than the configured publish rate.
func (m *Monitor) StartPublishingPlanningScene() {
	if m.publishing.Swap(true) {
		return
	}
	m.workers.Add(m.publishLoop)
}

// Stop unsubscribes from every topic and stops publishing.
func (m *Monitor) Stop() {
	m.StopStateMonitor()
	m.mu.Lock()
	subs := m.sceneSubs
	m.sceneSubs = nil
	m.mu.Unlock()
	for _, unsub := range subs {
		unsub()
	}
	m.workers.Stop()
}

func (m *Monitor) onJointState(js msgs.JointState) {
	stamp := js.Header.Stamp
	if stamp.IsZero() {
		stamp = m.clk.Now()
	}
	known := msgs.JointState{Header: js.Header}
	completeVel := len(js.Velocity) == len(js.Name)
	completeEffort := len(js.Effort) == len(js.Name)
	for i, name := range js.Name {
		if i >= len(js.Position) {
			break
		}
		if _, err := m.model.VariableIndex(name); err != nil {
			continue
		}
		known.Name = append(known.Name, name)
		known.Position = append(known.Position, js.Position[i])
		if completeVel {
			known.Velocity = append(known.Velocity, js.Velocity[i])
		}
		if completeEffort {
			known.Effort = append(known.Effort, js.Effort[i])
		}
	}
	if len(known.Name) == 0 {
		return
	}

	m.mu.Lock()
	if err := m.state.ApplyJointState(known); err != nil {
		m.mu.Unlock()
		m.logger.Warnw("dropping joint state", "error", err)
		return
	}
	for _, name := range known.Name {
		idx, _ := m.model.VariableIndex(name)
		m.stamps[idx] = stamp
	}
	m.updateMultiDOFJoints()
	m.markChanged(stamp)
	m.mu.Unlock()
	m.schedulePublish(UpdateState)
}

// updateMultiDOFJoints reads planar and floating joints from the transform buffer. Callers hold mu.
func (m *Monitor) updateMultiDOFJoints() {
	if m.tfBuffer == nil {
		return
	}
	for _, jm := range m.model.ActiveJointModels() {
		if jm.VariableCount() < 2 {
			continue
		}
		parent := jm.Parent()
		if parent == "" {
			parent = m.model.ModelFrame()
		}
		st, err := m.tfBuffer.LookupTransform(parent, jm.Name(), time.Time{})
		if err != nil {
			continue
		}
		stamp := st.Stamp
		if stamp.IsZero() {
			stamp = m.clk.Now()
		}
		first := jm.FirstVariableIndex()
		if !stamp.After(m.stamps[first]) && !m.stamps[first].IsZero() {
			continue
		}
		m.state.SetJointTransform(jm, st.Pose)
		for i := range jm.VariableCount() {
			m.stamps[first+i] = stamp
		}
	}
}

func (m *Monitor) onAttachedObject(obj msgs.AttachedCollisionObject) {
	m.mu.Lock()
	changed := m.applyAttached(obj)
	if changed {
		m.markChanged(m.clk.Now())
	}
	m.mu.Unlock()
	if changed {
		m.schedulePublish(UpdateAttached)
	}
}

// applyAttached attaches or detaches obj. Callers hold mu.
func (m *Monitor) applyAttached(obj msgs.AttachedCollisionObject) bool {
	if obj.Detach {
		if _, ok := m.attached[obj.ObjectID]; !ok {
			return false
		}
		delete(m.attached, obj.ObjectID)
		m.logger.Debugw("detached object", "object", obj.ObjectID)
		return true
	}
	if obj.ObjectID == "" {
		m.logger.Warnw("ignoring attached object without an id", "link", obj.LinkName)
		return false
	}
	m.attached[obj.ObjectID] = obj
	m.logger.Debugw("attached object", "object", obj.ObjectID, "link", obj.LinkName)
	return true
}

func (m *Monitor) onSceneUpdate(update msgs.PlanningSceneUpdate) {
	if update.Name == m.opts.Name {
		return
	}
	stamp := update.Header.Stamp
	if stamp.IsZero() {
		stamp = m.clk.Now()
	}
	if len(update.RobotState.JointState.Name) > 0 {
		js := update.RobotState.JointState
		js.Header.Stamp = stamp
		m.onJointState(js)
	}

	m.mu.Lock()
	if mdof := update.RobotState.MultiDOFJointState; len(mdof.JointNames) > 0 {
		known := msgs.MultiDOFJointState{Header: mdof.Header}
		for i, name := range mdof.JointNames {
			if m.model.HasJointModel(name) && i < len(mdof.Transforms) {
				known.JointNames = append(known.JointNames, name)
				known.Transforms = append(known.Transforms, mdof.Transforms[i])
			}
		}
		if err := m.state.ApplyMultiDOFJointState(known); err != nil {
			m.logger.Warnw("dropping multi-DOF joint state", "error", err)
		} else {
			for _, name := range known.JointNames {
				jm, _ := m.model.JointModel(name)
				for i := range jm.VariableCount() {
					m.stamps[jm.FirstVariableIndex()+i] = stamp
				}
			}
		}
	}
	if !update.RobotState.IsDiff {
		clear(m.attached)
	}
	for _, obj := range update.AttachedObjects {
		m.applyAttached(obj)
	}
	m.markChanged(stamp)
	m.mu.Unlock()
	m.schedulePublish(UpdateScene)
}

// markChanged records an update and wakes anyone waiting on the state. Callers hold mu.
func (m *Monitor) markChanged(stamp time.Time) {
	if stamp.After(m.lastUpdate) {
		m.lastUpdate = stamp
	}
	close(m.changed)
	m.changed = make(chan struct{})
}

// LastUpdate returns the stamp of the most recent update.
func (m *Monitor) LastUpdate() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastUpdate
}

// AttachedObjects returns the attached objects sorted by id.
func (m *Monitor) AttachedObjects() []msgs.AttachedCollisionObject {
	m.mu.Lock()
	defer m.mu.Unlock()
	objs := lo.Values(m.attached)
	slices.SortFunc(objs, func(a, b msgs.AttachedCollisionObject) int {
		return strings.Compare(a.ObjectID, b.ObjectID)
	})
	return objs
}
