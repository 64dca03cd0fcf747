package planningscene

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/motionkit/logging"
	"go.viam.com/motionkit/msgs"
	"go.viam.com/motionkit/node"
	"go.viam.com/motionkit/robotmodel"
	"go.viam.com/motionkit/spatialmath"
	"go.viam.com/motionkit/testutils"
	"go.viam.com/motionkit/tf"
)

func newTestMonitor(t *testing.T, opts MonitorOptions) (*Monitor, *node.Node, *clock.Mock) {
	t.Helper()
	logger := logging.NewTestLogger(t)
	n := node.New("test", logger)
	n.SetParameter("robot_description", string(testutils.ArmBaseModelJSON))
	mock := clock.NewMock()
	m, err := NewMonitor(n, opts, mock, logger)
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(m.Stop)
	return m, n, mock
}

func armJointState(stamp time.Time, shoulder, wrist, slide float64) msgs.JointState {
	return msgs.JointState{
		Header:   msgs.Header{Stamp: stamp},
		Name:     []string{"shoulder", "wrist", "slide", "gripper_finger"},
		Position: []float64{shoulder, wrist, slide, 0.02},
	}
}

func TestLoadRobotModel(t *testing.T) {
	logger := logging.NewTestLogger(t)
	n := node.New("test", logger)

	n.SetParameter("as_text", string(testutils.ArmBaseModelJSON))
	model, err := LoadRobotModel(n, "as_text")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, model.Name(), test.ShouldEqual, "arm_base")

	n.SetParameters(map[string]any{"as_object": map[string]any{
		"name":   "single",
		"joints": []any{map[string]any{"id": "j0", "type": "revolute", "min": -1.0, "max": 1.0}},
	}})
	model, err = LoadRobotModel(n, "as_object")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, model.VariableNames(), test.ShouldResemble, []string{"j0"})

	path := testutils.WriteTempFile(t, "model.json", testutils.ArmBaseModelJSON)
	n.SetParameter("as_path", path)
	model, err = LoadRobotModel(n, "as_path")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, model.VariableCount(), test.ShouldEqual, 6)

	model, err = LoadRobotModel(n, path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, model.Name(), test.ShouldEqual, "arm_base")

	_, err = LoadRobotModel(n, "missing")
	test.That(t, errors.Is(err, robotmodel.ErrNoModelInformation), test.ShouldBeTrue)

	n.SetParameter("as_number", 3)
	_, err = LoadRobotModel(n, "as_number")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestMonitorDefaults(t *testing.T) {
	m, _, _ := newTestMonitor(t, MonitorOptions{})
	opts := m.Options()
	test.That(t, opts.Name, test.ShouldEqual, "planning_scene_monitor")
	test.That(t, opts.JointStateTopic, test.ShouldEqual, DefaultJointStatesTopic)
	test.That(t, opts.AttachedCollisionObjectTopic, test.ShouldEqual, DefaultAttachedCollisionObjectTopic)
	test.That(t, opts.MonitoredPlanningSceneTopic, test.ShouldEqual, MonitoredPlanningSceneTopic)
	test.That(t, opts.PublishPlanningSceneTopic, test.ShouldEqual, DefaultPlanningSceneTopic)
	test.That(t, m.RobotModel().Name(), test.ShouldEqual, "arm_base")

	logger := logging.NewTestLogger(t)
	_, err := NewMonitor(node.New("empty", logger), MonitorOptions{}, clock.NewMock(), logger)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestStateMonitor(t *testing.T) {
	ctx := context.Background()
	m, n, mock := newTestMonitor(t, MonitorOptions{})
	test.That(t, m.StartStateMonitor(ctx), test.ShouldBeNil)
	test.That(t, m.HaveCompleteState(), test.ShouldBeFalse)
	test.That(t, m.MissingVariables(), test.ShouldResemble, []string{"shoulder", "wrist", "slide"})

	test.That(t, node.Publish(n, DefaultJointStatesTopic, msgs.JointState{
		Name: []string{"shoulder"}, Position: []float64{0.5},
	}), test.ShouldBeNil)
	test.That(t, m.MissingVariables(), test.ShouldResemble, []string{"wrist", "slide"})

	test.That(t, node.Publish(n, DefaultJointStatesTopic, armJointState(mock.Now(), 1, 2, 0.25)), test.ShouldBeNil)
	test.That(t, m.HaveCompleteState(), test.ShouldBeTrue)
	test.That(t, m.LastUpdate(), test.ShouldEqual, mock.Now())

	state, err := m.CurrentState(ctx, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, state.Positions(), test.ShouldResemble, []float64{0, 0, 0, 1, 2, 0.25})

	// the copy is independent of the monitor
	test.That(t, state.SetVariablePosition("shoulder", -1), test.ShouldBeNil)
	again, err := m.CurrentState(ctx, 0)
	test.That(t, err, test.ShouldBeNil)
	shoulder, err := again.VariablePosition("shoulder")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, shoulder, test.ShouldEqual, 1.)

	m.StopStateMonitor()
	test.That(t, node.Publish(n, DefaultJointStatesTopic, armJointState(mock.Now(), 0, 0, 0)), test.ShouldBeNil)
	again, err = m.CurrentState(ctx, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, again.Positions()[3], test.ShouldEqual, 1.)
}

func TestCurrentStateWaits(t *testing.T) {
	ctx := context.Background()
	m, n, mock := newTestMonitor(t, MonitorOptions{})
	test.That(t, m.StartStateMonitor(ctx), test.ShouldBeNil)

	type result struct {
		positions []float64
		err       error
	}
	done := make(chan result, 1)
	go func() {
		state, err := m.CurrentState(ctx, time.Second)
		if err != nil {
			done <- result{err: err}
			return
		}
		done <- result{positions: state.Positions()}
	}()
	test.That(t, node.Publish(n, DefaultJointStatesTopic, armJointState(mock.Now(), 0.1, 0.2, 0.3)), test.ShouldBeNil)
	res := <-done
	test.That(t, res.err, test.ShouldBeNil)
	test.That(t, res.positions[3:], test.ShouldResemble, []float64{0.1, 0.2, 0.3})

	// a stale state does not satisfy a later request
	mock.Add(time.Second)
	go func() {
		_, err := m.CurrentState(ctx, time.Second)
		done <- result{err: err}
	}()
	for {
		mock.Add(100 * time.Millisecond)
		select {
		case res := <-done:
			test.That(t, res.err, test.ShouldNotBeNil)
			test.That(t, res.err.Error(), test.ShouldContainSubstring, "did not receive robot state")
			return
		case <-time.After(time.Millisecond):
		}
	}
}

func TestCurrentStateCancelled(t *testing.T) {
	m, _, _ := newTestMonitor(t, MonitorOptions{})
	test.That(t, m.StartStateMonitor(context.Background()), test.ShouldBeNil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.CurrentState(ctx, time.Hour)
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
}

func TestMultiDOFFromTransforms(t *testing.T) {
	ctx := context.Background()
	m, n, mock := newTestMonitor(t, MonitorOptions{})
	buffer := tf.NewBuffer(logging.NewTestLogger(t), mock, 0)
	m.SetTFBuffer(buffer)
	test.That(t, m.StartStateMonitor(ctx), test.ShouldBeNil)
	test.That(t, node.Publish(n, DefaultJointStatesTopic, armJointState(mock.Now(), 0, 0, 0)), test.ShouldBeNil)
	test.That(t, m.MissingVariables(), test.ShouldResemble, []string{"base/x", "base/y", "base/theta"})

	test.That(t, buffer.SetTransform(tf.StampedTransform{
		Stamp: mock.Now(), Parent: "odom", Child: "base", Pose: spatialmath.NewPoseFromPlanar(1, 2, 0.5),
	}, false), test.ShouldBeNil)
	test.That(t, m.HaveCompleteState(), test.ShouldBeTrue)

	state, err := m.CurrentState(ctx, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, state.Positions()[0], test.ShouldAlmostEqual, 1.)
	test.That(t, state.Positions()[1], test.ShouldAlmostEqual, 2.)
	test.That(t, state.Positions()[2], test.ShouldAlmostEqual, 0.5)
}

func TestAttachedObjects(t *testing.T) {
	m, n, _ := newTestMonitor(t, MonitorOptions{})
	test.That(t, m.StartStateMonitor(context.Background()), test.ShouldBeNil)

	for _, obj := range []msgs.AttachedCollisionObject{
		{LinkName: "tool", ObjectID: "cup"},
		{LinkName: "tool", ObjectID: "box", TouchLink: []string{"slide"}},
		{LinkName: "tool"},
		{ObjectID: "cup", Detach: true},
		{ObjectID: "never", Detach: true},
	} {
		test.That(t, node.Publish(n, DefaultAttachedCollisionObjectTopic, obj), test.ShouldBeNil)
	}
	test.That(t, m.AttachedObjects(), test.ShouldResemble, []msgs.AttachedCollisionObject{
		{LinkName: "tool", ObjectID: "box", TouchLink: []string{"slide"}},
	})
}

func TestSceneMonitor(t *testing.T) {
	m, n, mock := newTestMonitor(t, MonitorOptions{Name: "local"})
	test.That(t, m.StartSceneMonitor(), test.ShouldBeNil)

	other := msgs.PlanningSceneUpdate{
		Header: msgs.Header{Stamp: mock.Now()},
		Name:   "remote",
		Type:   UpdateState,
		RobotState: msgs.RobotState{
			JointState: msgs.JointState{Name: []string{"shoulder", "wrist", "slide"}, Position: []float64{0.3, 0.2, 0.1}},
			MultiDOFJointState: msgs.MultiDOFJointState{
				JointNames: []string{"base", "nonexistent"},
				Transforms: []msgs.Transform{
					{Translation: msgs.Vector3{X: 4}, Rotation: msgs.Quaternion{W: 1}},
					{Rotation: msgs.Quaternion{W: 1}},
				},
			},
			IsDiff: true,
		},
		AttachedObjects: []msgs.AttachedCollisionObject{{LinkName: "tool", ObjectID: "cup"}},
	}
	test.That(t, node.Publish(n, MonitoredPlanningSceneTopic, other), test.ShouldBeNil)

	state, err := m.CurrentState(context.Background(), 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, state.Positions()[0], test.ShouldAlmostEqual, 4.)
	test.That(t, state.Positions()[3:], test.ShouldResemble, []float64{0.3, 0.2, 0.1})
	test.That(t, m.AttachedObjects(), test.ShouldHaveLength, 1)

	own := other
	own.Name = "local"
	own.RobotState.JointState.Position = []float64{9, 9, 9}
	test.That(t, node.Publish(n, MonitoredPlanningSceneTopic, own), test.ShouldBeNil)
	state, err = m.CurrentState(context.Background(), 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, state.Positions()[3], test.ShouldEqual, 0.3)

	full := msgs.PlanningSceneUpdate{Name: "remote", RobotState: msgs.RobotState{IsDiff: false}}
	test.That(t, node.Publish(n, MonitoredPlanningSceneTopic, full), test.ShouldBeNil)
	test.That(t, m.AttachedObjects(), test.ShouldBeEmpty)
}

func TestPublishingPlanningScene(t *testing.T) {
	m, n, mock := newTestMonitor(t, MonitorOptions{Name: "publisher"})
	test.That(t, m.StartStateMonitor(context.Background()), test.ShouldBeNil)

	updates := make(chan msgs.PlanningSceneUpdate, 10)
	unsub, err := node.Subscribe(n, DefaultPlanningSceneTopic, func(u msgs.PlanningSceneUpdate) { updates <- u })
	test.That(t, err, test.ShouldBeNil)
	defer unsub()
	m.StartPublishingPlanningScene()

	test.That(t, node.Publish(n, DefaultJointStatesTopic, armJointState(mock.Now(), 1, 0, 0)), test.ShouldBeNil)
	update := <-updates
	test.That(t, update.Name, test.ShouldEqual, "publisher")
	test.That(t, update.Type, test.ShouldEqual, UpdateState)
	test.That(t, update.Header.FrameID, test.ShouldEqual, "odom")
	test.That(t, update.RobotState.JointState.Name, test.ShouldResemble, []string{"shoulder", "wrist", "slide"})
	test.That(t, update.RobotState.JointState.Position, test.ShouldResemble, []float64{1, 0, 0})
	test.That(t, update.RobotState.MultiDOFJointState.JointNames, test.ShouldResemble, []string{"base"})
}

func TestPublishRateLimit(t *testing.T) {
	m, n, mock := newTestMonitor(t, MonitorOptions{PublishRate: 1})
	test.That(t, m.StartStateMonitor(context.Background()), test.ShouldBeNil)

	updates := make(chan msgs.PlanningSceneUpdate, 10)
	unsub, err := node.Subscribe(n, DefaultPlanningSceneTopic, func(u msgs.PlanningSceneUpdate) { updates <- u })
	test.That(t, err, test.ShouldBeNil)
	defer unsub()
	m.StartPublishingPlanningScene()

	test.That(t, node.Publish(n, DefaultJointStatesTopic, armJointState(mock.Now(), 1, 0, 0)), test.ShouldBeNil)
	<-updates

	test.That(t, node.Publish(n, DefaultJointStatesTopic, armJointState(mock.Now(), 2, 0, 0)), test.ShouldBeNil)
	test.That(t, node.Publish(n, DefaultAttachedCollisionObjectTopic,
		msgs.AttachedCollisionObject{LinkName: "tool", ObjectID: "cup"}), test.ShouldBeNil)
	select {
	case <-updates:
		t.Fatal("published faster than the rate limit")
	case <-time.After(50 * time.Millisecond):
	}

	for {
		mock.Add(100 * time.Millisecond)
		select {
		case update := <-updates:
			test.That(t, update.Type, test.ShouldEqual, UpdateScene)
			test.That(t, update.RobotState.JointState.Position[0], test.ShouldEqual, 2.)
			test.That(t, update.AttachedObjects, test.ShouldHaveLength, 1)
			return
		case <-time.After(time.Millisecond):
		}
	}
}
