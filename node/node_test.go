package node

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.viam.com/test"

	"go.viam.com/motionkit/logging"
	"go.viam.com/motionkit/testutils"
)

func TestParameters(t *testing.T) {
	n := New("mover", logging.NewTestLogger(t))
	test.That(t, n.Name(), test.ShouldEqual, "mover")

	n.SetParameters(map[string]any{
		"planning_scene_monitor": map[string]any{"name": "psm", "wait_for_initial_state_timeout": 0.5},
		"planning_pipelines":     map[string]any{"pipeline_names": []any{"ompl", "chomp"}},
	})
	n.SetParameter("planning_scene_monitor.joint_state_topic", "/joint_states")

	v, ok := n.Parameter("planning_scene_monitor.name")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, v, test.ShouldEqual, "psm")
	test.That(t, n.HasParameter("planning_scene_monitor.wait_for_initial_state_timeout"), test.ShouldBeTrue)
	test.That(t, n.HasParameter("planning_scene_monitor.name.extra"), test.ShouldBeFalse)
	test.That(t, n.HasParameter("missing"), test.ShouldBeFalse)

	test.That(t, ParameterOr(n, "planning_scene_monitor.joint_state_topic", ""), test.ShouldEqual, "/joint_states")
	test.That(t, ParameterOr(n, "planning_scene_monitor.wait_for_initial_state_timeout", 0.), test.ShouldEqual, 0.5)
	test.That(t, ParameterOr(n, "planning_pipelines.pipeline_names", []string(nil)),
		test.ShouldResemble, []string{"ompl", "chomp"})
	test.That(t, ParameterOr(n, "missing", 7), test.ShouldEqual, 7)
	test.That(t, ParameterOr(n, "planning_scene_monitor.name", 3), test.ShouldEqual, 3)

	n.SetParameter("timeout", "1500ms")
	test.That(t, ParameterOr(n, "timeout", time.Second), test.ShouldEqual, 1500*time.Millisecond)
}

func TestMergeKeepsSiblings(t *testing.T) {
	n := New("n", logging.NewTestLogger(t))
	n.SetParameters(map[string]any{"a": map[string]any{"b": 1, "c": 2}})
	n.SetParameters(map[string]any{"a": map[string]any{"c": 3}})
	test.That(t, ParameterOr(n, "a.b", 0), test.ShouldEqual, 1)
	test.That(t, ParameterOr(n, "a.c", 0), test.ShouldEqual, 3)

	n.SetParameter("a", 5)
	test.That(t, ParameterOr(n, "a", 0), test.ShouldEqual, 5)
	test.That(t, n.HasParameter("a.b"), test.ShouldBeFalse)
}

func TestDecodeParameters(t *testing.T) {
	type options struct {
		Name    string        `json:"name"`
		Timeout float64       `json:"timeout"`
		Period  time.Duration `json:"period"`
		Names   []string      `json:"names"`
	}
	n := New("n", logging.NewTestLogger(t))
	n.SetParameters(map[string]any{"opts": map[string]any{
		"name": "psm", "timeout": "2.5", "period": "20ms", "names": []any{"x"},
	}})

	opts := options{Name: "default"}
	test.That(t, n.DecodeParameters("opts", &opts), test.ShouldBeNil)
	test.That(t, opts, test.ShouldResemble, options{Name: "psm", Timeout: 2.5, Period: 20 * time.Millisecond, Names: []string{"x"}})

	untouched := options{Name: "default"}
	test.That(t, n.DecodeParameters("nothing", &untouched), test.ShouldBeNil)
	test.That(t, untouched.Name, test.ShouldEqual, "default")

	n.SetParameter("bad.timeout", map[string]any{"nested": true})
	test.That(t, n.DecodeParameters("bad", &opts), test.ShouldNotBeNil)
}

func TestLoadParameterFile(t *testing.T) {
	t.Setenv("MOTIONKIT_TEST_GROUP", "arm")
	path := testutils.WriteTempFile(t, "params.json", []byte(`{"default_group": "${MOTIONKIT_TEST_GROUP}", "rate": 10}`))

	n := New("n", logging.NewTestLogger(t))
	test.That(t, n.LoadParameterFile(path), test.ShouldBeNil)
	test.That(t, ParameterOr(n, "default_group", ""), test.ShouldEqual, "arm")
	test.That(t, ParameterOr(n, "rate", 0), test.ShouldEqual, 10)

	commented := testutils.WriteTempFile(t, "params.json5", []byte(`{
		// trailing commas and unquoted keys are allowed
		controllers: [{name: "arm", joints: ["shoulder"]},],
	}`))
	test.That(t, n.LoadParameterFile(commented), test.ShouldBeNil)
	test.That(t, n.HasParameter("controllers"), test.ShouldBeTrue)
	test.That(t, ParameterOr(n, "rate", 0), test.ShouldEqual, 10)

	bad := testutils.WriteTempFile(t, "bad.json", []byte(`{`))
	test.That(t, n.LoadParameterFile(bad), test.ShouldNotBeNil)
	test.That(t, n.LoadParameterFile(filepath.Join(t.TempDir(), "missing.json")), test.ShouldNotBeNil)
}

func TestWatchParameterFile(t *testing.T) {
	path := testutils.WriteTempFile(t, "params.json", []byte(`{"rate": 10}`))
	n := New("n", logging.NewTestLogger(t))
	defer n.Close()

	changed := make(chan struct{}, 10)
	n.OnParametersChanged(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	test.That(t, n.WatchParameterFile(path), test.ShouldBeNil)
	<-changed
	test.That(t, ParameterOr(n, "rate", 0), test.ShouldEqual, 10)

	test.That(t, os.WriteFile(path, []byte(`{"rate": 20}`), 0o600), test.ShouldBeNil)
	deadline := time.After(5 * time.Second)
	for ParameterOr(n, "rate", 0) != 20 {
		select {
		case <-changed:
		case <-deadline:
			t.Fatal("parameter file was not reloaded")
		}
	}
}

func TestTopics(t *testing.T) {
	n := New("n", logging.NewTestLogger(t))

	var first, second []int
	unsubFirst, err := Subscribe(n, "counts", func(v int) { first = append(first, v) })
	test.That(t, err, test.ShouldBeNil)
	_, err = Subscribe(n, "counts", func(v int) { second = append(second, v) })
	test.That(t, err, test.ShouldBeNil)

	test.That(t, Publish(n, "counts", 1), test.ShouldBeNil)
	unsubFirst()
	unsubFirst()
	test.That(t, Publish(n, "counts", 2), test.ShouldBeNil)
	test.That(t, first, test.ShouldResemble, []int{1})
	test.That(t, second, test.ShouldResemble, []int{1, 2})

	test.That(t, Publish(n, "counts", "three"), test.ShouldNotBeNil)
	_, err = Subscribe(n, "counts", func(string) {})
	test.That(t, err, test.ShouldNotBeNil)

	test.That(t, Publish(n, "nobody", 1.5), test.ShouldBeNil)
	test.That(t, n.Topics(), test.ShouldResemble, []TopicStats{
		{Name: "counts", Type: "int", Subscribers: 1, Published: 2},
		{Name: "nobody", Type: "float64", Subscribers: 0, Published: 1},
	})
}
