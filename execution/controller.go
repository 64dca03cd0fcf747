package execution

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/atomic"

	"go.viam.com/motionkit/logging"
	"go.viam.com/motionkit/msgs"
	"go.viam.com/motionkit/node"
	"go.viam.com/motionkit/robotmodel"
	"go.viam.com/motionkit/spatialmath"
	"go.viam.com/motionkit/tf"
)

// Controller drives a fixed set of joints.
type Controller interface {
	Name() string
	// Joints returns the names of the joints the controller drives.
	Joints() []string
	// Execute follows traj, which only names joints of this controller, and blocks until the
	// trajectory is finished or ctx is done.
	Execute(ctx context.Context, traj msgs.RobotTrajectory) error
	// Stop halts any motion.
	Stop(ctx context.Context) error
}

// FakeControllerConfig configures a FakeController.
type FakeControllerConfig struct {
	Name   string
	Joints []string
	Node   *node.Node
	// JointStateTopic receives the position of every single-variable joint as it is reached.
	JointStateTopic string
	// TFBuffer, when set, receives the transforms of planar and floating joints. Each is stored
	// from the joint's parent in Model to a frame named after the joint.
	TFBuffer *tf.Buffer
	Model    *robotmodel.RobotModel
	Clock    clock.Clock
}

// FakeController replays trajectories against its clock and reports the positions it passes
// through, as if a robot were following them exactly.
type FakeController struct {
	cfg    FakeControllerConfig
	logger logging.Logger

	executing atomic.Bool
	failure   atomic.Error
	mu        sync.Mutex
	executed  []msgs.RobotTrajectory
}

// NewFakeController returns a controller that replays trajectories. A nil clock uses real time.
func NewFakeController(cfg FakeControllerConfig, logger logging.Logger) (*FakeController, error) {
	if cfg.Name == "" {
		return nil, errors.New("controller is missing a name")
	}
	if len(cfg.Joints) == 0 {
		return nil, errors.Errorf("controller %q drives no joints", cfg.Name)
	}
	if cfg.Node == nil {
		return nil, errors.Errorf("controller %q has no node to publish on", cfg.Name)
	}
	if cfg.TFBuffer != nil && cfg.Model == nil {
		return nil, errors.Errorf("controller %q needs a robot model to publish transforms", cfg.Name)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	return &FakeController{cfg: cfg, logger: logger}, nil
}

// Name returns the name of the controller.
func (fc *FakeController) Name() string {
	return fc.cfg.Name
}

// Joints returns the joints the controller drives.
func (fc *FakeController) Joints() []string {
	return fc.cfg.Joints
}

// IsExecuting returns whether a trajectory is being replayed.
func (fc *FakeController) IsExecuting() bool {
	return fc.executing.Load()
}

// FailNext makes the next execution fail with err once it starts.
func (fc *FakeController) FailNext(err error) {
	fc.failure.Store(err)
}

// Executed returns every trajectory the controller has been asked to execute.
func (fc *FakeController) Executed() []msgs.RobotTrajectory {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return slices.Clone(fc.executed)
}

// Execute replays traj, publishing each point when its time from start is reached.
func (fc *FakeController) Execute(ctx context.Context, traj msgs.RobotTrajectory) error {
	if unknown, _ := lo.Difference(traj.JointNames(), fc.cfg.Joints); len(unknown) > 0 {
		return errors.Errorf("controller %q does not drive joints %v", fc.cfg.Name, unknown)
	}
	if !fc.executing.CompareAndSwap(false, true) {
		return errors.Errorf("controller %q is already executing", fc.cfg.Name)
	}
	defer fc.executing.Store(false)
	fc.mu.Lock()
	fc.executed = append(fc.executed, traj)
	fc.mu.Unlock()
	if err := fc.failure.Swap(nil); err != nil {
		return err
	}

	start := fc.cfg.Clock.Now()
	jt, mdof := traj.JointTrajectory, traj.MultiDOFJointTrajectory
	for i := range max(len(jt.Points), len(mdof.Points)) {
		var at time.Duration
		if i < len(jt.Points) {
			at = jt.Points[i].TimeFromStart
		} else {
			at = mdof.Points[i].TimeFromStart
		}
		if wait := at - fc.cfg.Clock.Since(start); wait > 0 {
			timer := fc.cfg.Clock.Timer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		stamp := start.Add(at)
		if i < len(jt.Points) {
			fc.publishJointPoint(stamp, jt.JointNames, jt.Points[i])
		}
		if i < len(mdof.Points) {
			fc.publishMultiDOFPoint(stamp, mdof.JointNames, mdof.Points[i])
		}
	}
	return nil
}

func (fc *FakeController) publishJointPoint(stamp time.Time, names []string, point msgs.JointTrajectoryPoint) {
	if fc.cfg.JointStateTopic == "" {
		return
	}
	js := msgs.JointState{
		Header:   msgs.Header{Stamp: stamp},
		Name:     names,
		Position: point.Positions,
		Velocity: point.Velocities,
		Effort:   point.Effort,
	}
	if err := node.Publish(fc.cfg.Node, fc.cfg.JointStateTopic, js); err != nil {
		fc.logger.Warnw("failed to publish joint state", "controller", fc.cfg.Name, "error", err)
	}
}

func (fc *FakeController) publishMultiDOFPoint(stamp time.Time, names []string, point msgs.MultiDOFJointTrajectoryPoint) {
	if fc.cfg.TFBuffer == nil {
		return
	}
	for i, name := range names {
		if i >= len(point.Transforms) {
			return
		}
		parent := fc.cfg.Model.ModelFrame()
		if jm, err := fc.cfg.Model.JointModel(name); err == nil && jm.Parent() != "" {
			parent = jm.Parent()
		}
		transform := point.Transforms[i]
		err := fc.cfg.TFBuffer.SetTransform(tf.StampedTransform{
			Stamp:  stamp,
			Parent: parent,
			Child:  name,
			Pose:   spatialmath.NewPose(transform.Translation.R3(), transform.Rotation.Quat()),
		}, false)
		if err != nil {
			fc.logger.Warnw("failed to publish transform", "controller", fc.cfg.Name, "joint", name, "error", err)
		}
	}
}

// Stop does nothing; a fake controller stops as soon as its execution context is done.
func (fc *FakeController) Stop(ctx context.Context) error {
	return nil
}
