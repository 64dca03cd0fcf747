package mover

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/samber/lo"
	"go.viam.com/test"

	"go.viam.com/motionkit/execution"
	"go.viam.com/motionkit/logging"
	"go.viam.com/motionkit/msgs"
	"go.viam.com/motionkit/node"
	"go.viam.com/motionkit/planning"
	"go.viam.com/motionkit/planningscene"
	"go.viam.com/motionkit/spatialmath"
	"go.viam.com/motionkit/testutils"
	"go.viam.com/motionkit/tf"
)

func TestMain(m *testing.M) {
	testutils.VerifyTestMain(m)
}

func moverParameters() map[string]any {
	return map[string]any{
		"robot_description": string(testutils.ArmBaseModelJSON),
		"planning_pipelines": map[string]any{
			"pipeline_names": []any{"interpolation", "missing"},
			"namespace":      "planning",
		},
		"planning": map[string]any{
			"interpolation": map[string]any{"planner": "interpolation", "max_step": 0.5},
		},
		"controllers": []any{
			map[string]any{"name": "arm_controller", "joints": []any{"shoulder", "wrist", "slide"}},
			map[string]any{"name": "base_controller", "type": "fake", "joints": []any{"base"}},
		},
	}
}

func newTestMover(t *testing.T, params map[string]any) (*Mover, *node.Node, *clock.Mock) {
	t.Helper()
	logger := logging.NewTestLogger(t)
	n := node.New("mover_test", logger)
	n.SetParameters(params)
	opts, err := NewOptions(n)
	test.That(t, err, test.ShouldBeNil)
	mock := clock.NewMock()
	m, err := NewWithOptions(context.Background(), n, opts, mock, logger)
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() { test.That(t, m.Close(context.Background()), test.ShouldBeNil) })
	return m, n, mock
}

func runUntilDone(mock *clock.Mock, step time.Duration, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-time.After(time.Millisecond):
			mock.Add(step)
		}
	}
}

func TestOptionsDefaults(t *testing.T) {
	n := node.New("defaults", logging.NewTestLogger(t))
	opts, err := NewOptions(n)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, opts.PlanningSceneMonitor, test.ShouldResemble, PlanningSceneMonitorOptions{
		Name:                         "planning_scene_monitor",
		RobotDescription:             "robot_description",
		JointStateTopic:              planningscene.DefaultJointStatesTopic,
		AttachedCollisionObjectTopic: planningscene.DefaultAttachedCollisionObjectTopic,
		MonitoredPlanningSceneTopic:  planningscene.MonitoredPlanningSceneTopic,
		PublishPlanningSceneTopic:    planningscene.DefaultPlanningSceneTopic,
	})
	test.That(t, opts.PlanningPipelines.PipelineNames, test.ShouldBeEmpty)
	test.That(t, opts.PlanningPipelines.Namespace, test.ShouldEqual, "")
	test.That(t, opts.TrajectoryExecution, test.ShouldResemble, execution.DefaultManagerOptions())
}

func TestOptionsLoad(t *testing.T) {
	n := node.New("load", logging.NewTestLogger(t))
	n.SetParameters(map[string]any{
		"planning_scene_monitor_options": map[string]any{
			"name":                           "scene",
			"joint_state_topic":              "arm/joint_states",
			"wait_for_initial_state_timeout": 1.5,
		},
		"planning_pipelines": map[string]any{
			"pipeline_names": []any{"ompl", "pilz"},
			"namespace":      "arm_cell",
		},
		"trajectory_execution": map[string]any{"execution_duration_monitoring": false},
	})
	opts, err := NewOptions(n)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, opts.PlanningSceneMonitor.Name, test.ShouldEqual, "scene")
	test.That(t, opts.PlanningSceneMonitor.JointStateTopic, test.ShouldEqual, "arm/joint_states")
	test.That(t, opts.PlanningSceneMonitor.RobotDescription, test.ShouldEqual, "robot_description")
	test.That(t, opts.PlanningSceneMonitor.WaitForInitialStateTimeout, test.ShouldEqual, 1500*time.Millisecond)
	test.That(t, opts.PlanningPipelines.PipelineNames, test.ShouldResemble, []string{"ompl", "pilz"})
	test.That(t, opts.PlanningPipelines.Namespace, test.ShouldEqual, "arm_cell")
	test.That(t, opts.TrajectoryExecution.ExecutionDurationMonitoring, test.ShouldBeFalse)
	test.That(t, opts.TrajectoryExecution.AllowedExecutionDurationScaling, test.ShouldEqual, 1.2)

	n.SetParameter("trajectory_execution.allowed_goal_duration_margin", "soon")
	_, err = NewOptions(n)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestNewFailures(t *testing.T) {
	logger := logging.NewTestLogger(t)

	n := node.New("no_model", logger)
	_, err := New(context.Background(), n, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "planning scene monitor")

	params := moverParameters()
	params["planning_pipelines"] = map[string]any{"pipeline_names": []any{"missing"}}
	n = node.New("no_pipelines", logger)
	n.SetParameters(params)
	_, err = New(context.Background(), n, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "planning pipelines")
	for _, topic := range n.Topics() {
		test.That(t, topic.Subscribers, test.ShouldEqual, 0)
	}

	params = moverParameters()
	params["controllers"] = []any{map[string]any{"name": "gripper", "type": "pneumatic", "joints": []any{"slide"}}}
	n = node.New("bad_controller", logger)
	n.SetParameters(params)
	_, err = New(context.Background(), n, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "pneumatic")
	for _, topic := range n.Topics() {
		test.That(t, topic.Subscribers, test.ShouldEqual, 0)
	}
}

func TestNew(t *testing.T) {
	logger := logging.NewTestLogger(t)
	n := node.New("real_clock", logger)
	n.SetParameters(moverParameters())
	m, err := New(context.Background(), n, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.Node(), test.ShouldEqual, n)
	test.That(t, m.RobotModel().Name(), test.ShouldEqual, "arm_base")
	test.That(t, m.PlanningSceneMonitor().RobotModel(), test.ShouldEqual, m.RobotModel())
	test.That(t, lo.Keys(m.PlanningPipelines()), test.ShouldResemble, []string{"interpolation"})
	test.That(t, m.TrajectoryExecutionManager().Controllers(), test.ShouldResemble,
		[]string{"arm_controller", "base_controller"})

	test.That(t, m.TerminatePlanningPipeline("interpolation"), test.ShouldBeTrue)
	test.That(t, m.TerminatePlanningPipeline("missing"), test.ShouldBeFalse)

	test.That(t, m.Close(context.Background()), test.ShouldBeNil)
	test.That(t, m.Close(context.Background()), test.ShouldBeNil)
	status, err := m.Execute(context.Background(), nil, nil)
	test.That(t, status, test.ShouldEqual, execution.Failed)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestPlanAndExecute(t *testing.T) {
	m, n, mock := newTestMover(t, moverParameters())
	ctx := context.Background()
	test.That(t, m.PlanningSceneMonitor().HaveCompleteState(), test.ShouldBeFalse)

	test.That(t, node.Publish(n, planningscene.DefaultJointStatesTopic, msgs.JointState{
		Header:   msgs.Header{Stamp: mock.Now()},
		Name:     []string{"shoulder", "wrist", "slide"},
		Position: []float64{0, 0, 0.5},
	}), test.ShouldBeNil)
	test.That(t, m.TFBuffer().SetTransform(tf.StampedTransform{
		Stamp:  mock.Now(),
		Parent: "odom",
		Child:  "base",
		Pose:   spatialmath.NewPoseFromPlanar(1, 2, 0),
	}, false), test.ShouldBeNil)
	test.That(t, m.PlanningSceneMonitor().HaveCompleteState(), test.ShouldBeTrue)

	_, err := m.Plan(ctx, "missing", planning.MotionPlanRequest{})
	test.That(t, err, test.ShouldNotBeNil)

	resp, err := m.Plan(ctx, "interpolation", planning.MotionPlanRequest{
		GroupName:       "arm",
		GoalJointValues: map[string]float64{"shoulder": 1},
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, resp.ErrorCode, test.ShouldEqual, planning.Success)
	rt := resp.Trajectory
	test.That(t, rt.GroupName(), test.ShouldEqual, "arm")
	test.That(t, rt.WayPointCount(), test.ShouldEqual, 3)
	test.That(t, rt.Duration(), test.ShouldAlmostEqual, 1.)
	x, err := rt.FirstWayPoint().VariablePosition("base/x")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, x, test.ShouldAlmostEqual, 1.)

	done := make(chan struct{})
	var status execution.ExecutionStatus
	go func() {
		defer close(done)
		status, err = m.Execute(ctx, rt, nil)
	}()
	runUntilDone(mock, 50*time.Millisecond, done)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, status, test.ShouldEqual, execution.Succeeded)

	current, err := m.CurrentState(ctx, 0)
	test.That(t, err, test.ShouldBeNil)
	for name, expected := range map[string]float64{"shoulder": 1, "slide": 0.5, "base/x": 1, "base/y": 2} {
		actual, err := current.VariablePosition(name)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, actual, test.ShouldAlmostEqual, expected)
	}
}

func TestCurrentStateWaits(t *testing.T) {
	m, _, mock := newTestMover(t, moverParameters())

	errs := make(chan error, 1)
	go func() {
		_, err := m.CurrentState(context.Background(), time.Second)
		errs <- err
	}()
	for {
		select {
		case err := <-errs:
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, "failed to get current state")
			return
		case <-time.After(time.Millisecond):
			mock.Add(100 * time.Millisecond)
		}
	}
}
