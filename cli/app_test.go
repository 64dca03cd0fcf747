package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.viam.com/test"

	"go.viam.com/motionkit/msgs"
	"go.viam.com/motionkit/robotstate"
	"go.viam.com/motionkit/testutils"
	"go.viam.com/motionkit/trajectory"
)

func TestMain(m *testing.M) {
	testutils.VerifyTestMain(m)
}

type testFiles struct {
	dir        string
	model      string
	trajectory string
}

// writeTestFiles writes the arm_base model and a three waypoint arm trajectory with segments of
// 0.04s and 0.06s.
func writeTestFiles(t *testing.T) testFiles {
	t.Helper()
	dir := testutils.TempDir(t, "", "trajctl")
	files := testFiles{
		dir:        dir,
		model:      filepath.Join(dir, "arm_base.json"),
		trajectory: filepath.Join(dir, "reach.json"),
	}
	test.That(t, os.WriteFile(files.model, testutils.ArmBaseModelJSON, 0o600), test.ShouldBeNil)

	model := testutils.ArmBaseModel(t)
	rt, err := trajectory.NewForGroup(model, "arm")
	test.That(t, err, test.ShouldBeNil)
	durations := []float64{0, 0.04, 0.06}
	for i, p := range [][]float64{
		{0, 0, 0, 0, 0, 0},
		{0, 0, 0, 0.5, 0.25, 0.1},
		{0, 0, 0, 1, 0.5, 0.2},
	} {
		st := robotstate.New(model)
		test.That(t, st.SetPositions(p), test.ShouldBeNil)
		rt.AddSuffixWayPoint(st, durations[i])
	}
	data, err := json.Marshal(rt.RobotTrajectoryMsg())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, os.WriteFile(files.trajectory, data, 0o600), test.ShouldBeNil)
	return files
}

func runApp(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := NewApp(&out, &errOut)
	err := app.Run(append([]string{"trajctl"}, args...))
	return out.String(), errOut.String(), err
}

func TestModelAndSchema(t *testing.T) {
	files := writeTestFiles(t)

	out, _, err := runApp(t, "--model", files.model, "model")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "shoulder")
	test.That(t, out, test.ShouldContainSubstring, "continuous")

	_, _, err = runApp(t, "model")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "--model")

	out, _, err = runApp(t, "schema")
	test.That(t, err, test.ShouldBeNil)
	var schema map[string]any
	test.That(t, json.Unmarshal([]byte(out), &schema), test.ShouldBeNil)
	test.That(t, schema, test.ShouldContainKey, "$defs")
}

func TestPrint(t *testing.T) {
	files := writeTestFiles(t)

	out, _, err := runApp(t, "-m", files.model, "-g", "arm", "print", files.trajectory)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "Trajectory has 3 points over 0.100 seconds")
	test.That(t, out, test.ShouldContainSubstring, " 1.000  0.500  0.200")

	out, _, err = runApp(t, "-m", files.model, "print", "--variables", "slide", files.trajectory)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "pos  0.200")
	test.That(t, out, test.ShouldNotContainSubstring, "1.000")

	_, _, err = runApp(t, "-m", files.model, "print", "--variables", "elbow", files.trajectory)
	test.That(t, err, test.ShouldNotBeNil)

	_, _, err = runApp(t, "-m", files.model, "print")
	test.That(t, err, test.ShouldNotBeNil)

	_, _, err = runApp(t, "-m", files.model, "-g", "legs", "print", files.trajectory)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestMetricsAndHistogram(t *testing.T) {
	files := writeTestFiles(t)

	out, _, err := runApp(t, "-m", files.model, "-g", "arm", "metrics", files.trajectory)
	test.That(t, err, test.ShouldBeNil)
	for _, row := range []string{"waypoints", "path length", "smoothness", "segment median (s)"} {
		test.That(t, out, test.ShouldContainSubstring, row)
	}
	test.That(t, out, test.ShouldContainSubstring, "0.0500")

	out, _, err = runApp(t, "-m", files.model, "histogram", "--bins", "2", files.trajectory)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, strings.TrimSpace(out), test.ShouldNotBeEmpty)

	_, _, err = runApp(t, "-m", files.model, "histogram", "--bins", "0", files.trajectory)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestReverseAndUnwind(t *testing.T) {
	files := writeTestFiles(t)
	reversed := filepath.Join(files.dir, "reversed.json")

	_, _, err := runApp(t, "-m", files.model, "-g", "arm", "reverse", "--out", reversed, files.trajectory)
	test.That(t, err, test.ShouldBeNil)
	//nolint:gosec
	data, err := os.ReadFile(reversed)
	test.That(t, err, test.ShouldBeNil)
	var msg msgs.RobotTrajectory
	test.That(t, json.Unmarshal(data, &msg), test.ShouldBeNil)
	test.That(t, msg.JointTrajectory.JointNames, test.ShouldResemble, []string{"shoulder", "wrist", "slide"})
	test.That(t, msg.JointTrajectory.Points, test.ShouldHaveLength, 3)
	test.That(t, msg.JointTrajectory.Points[0].Positions, test.ShouldResemble, []float64{1, 0.5, 0.2})

	out, _, err := runApp(t, "-m", files.model, "-g", "arm", "unwind", files.trajectory)
	test.That(t, err, test.ShouldBeNil)
	msg = msgs.RobotTrajectory{}
	test.That(t, json.Unmarshal([]byte(out), &msg), test.ShouldBeNil)
	test.That(t, msg.JointTrajectory.Points[2].Positions, test.ShouldResemble, []float64{1, 0.5, 0.2})
}

func TestSample(t *testing.T) {
	files := writeTestFiles(t)

	out, _, err := runApp(t, "-m", files.model, "-g", "arm", "sample", "--time", "0.07", files.trajectory)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "between waypoints 1 and 2 (blend 0.500)")
	test.That(t, out, test.ShouldContainSubstring, "shoulder=0.750000")

	_, _, err = runApp(t, "-m", files.model, "sample", files.trajectory)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestPlot(t *testing.T) {
	files := writeTestFiles(t)
	image := filepath.Join(files.dir, "reach.png")

	_, errOut, err := runApp(t, "-m", files.model, "-g", "arm", "plot", "--out", image, files.trajectory)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, errOut, test.ShouldContainSubstring, "wrote plot")
	info, err := os.Stat(image)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, info.Size(), test.ShouldBeGreaterThan, 0)

	_, _, err = runApp(t, "-m", files.model, "plot", "--out", image, "--variables", "elbow", files.trajectory)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestExecute(t *testing.T) {
	files := writeTestFiles(t)
	logFile := filepath.Join(files.dir, "trajctl.log")

	out, _, err := runApp(t, "-m", files.model, "-g", "arm", "--debug", "--log-file", logFile,
		"execute", files.trajectory)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "SUCCEEDED")
	test.That(t, out, test.ShouldContainSubstring, "shoulder=1.000000")
	test.That(t, out, test.ShouldContainSubstring, "slide=0.200000")
	//nolint:gosec
	logs, err := os.ReadFile(logFile)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(logs), test.ShouldContainSubstring, "mover ready")

	_, _, err = runApp(t, "-m", files.model, "-g", "arm", "execute", "--controllers", "gripper", files.trajectory)
	test.That(t, err, test.ShouldNotBeNil)

	params := testutils.WriteTempFile(t, "params.json", []byte(`{
		"controllers": [{"name": "arm_controller", "joints": ["shoulder", "wrist"]}]
	}`))
	_, _, err = runApp(t, "-m", files.model, "-g", "arm", "execute", "--params", params, files.trajectory)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestLogFlags(t *testing.T) {
	files := writeTestFiles(t)
	logFile := filepath.Join(files.dir, "quiet.log")

	_, errOut, err := runApp(t, "-m", files.model, "-g", "arm", "--log-level", "warn", "--log-file", logFile,
		"--log-max-size-mb", "1", "--log-max-backups", "1", "execute", files.trajectory)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, errOut, test.ShouldNotContainSubstring, "mover ready")

	_, errOut, err = runApp(t, "-m", files.model, "-g", "arm", "--log-level", "info", "execute", files.trajectory)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, errOut, test.ShouldContainSubstring, "mover ready")
	test.That(t, errOut, test.ShouldNotContainSubstring, "execution finished")

	_, errOut, err = runApp(t, "-m", files.model, "-g", "arm", "execute", "--trace", files.trajectory)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, errOut, test.ShouldContainSubstring, "execution finished")
	test.That(t, errOut, test.ShouldNotContainSubstring, "added controller")

	_, _, err = runApp(t, "-m", files.model, "--log-level", "loud", "execute", files.trajectory)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "--log-level")
}

func TestStore(t *testing.T) {
	files := writeTestFiles(t)
	db := filepath.Join(files.dir, "trajectories.db")

	out, _, err := runApp(t, "-m", files.model, "-g", "arm", "store", "save", "--db", db, "--name", "reach",
		files.trajectory)
	test.That(t, err, test.ShouldBeNil)
	id := strings.TrimSpace(out)
	test.That(t, id, test.ShouldHaveLength, 36)

	out, _, err = runApp(t, "store", "list", "--db", db)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, id)
	test.That(t, out, test.ShouldContainSubstring, "reach")
	test.That(t, out, test.ShouldContainSubstring, "ago")

	_, errOut, err := runApp(t, "store", "list", "--db", db, "--model-name", "someone_else")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, errOut, test.ShouldContainSubstring, "no stored trajectories")

	out, _, err = runApp(t, "store", "show", "--db", db, id)
	test.That(t, err, test.ShouldBeNil)
	var msg msgs.RobotTrajectory
	test.That(t, json.Unmarshal([]byte(out), &msg), test.ShouldBeNil)
	test.That(t, msg.JointTrajectory.Points, test.ShouldHaveLength, 3)

	_, _, err = runApp(t, "store", "show", "--db", db, "not-an-id")
	test.That(t, err, test.ShouldNotBeNil)

	out, _, err = runApp(t, "store", "prune", "--db", db, "--max-age", "1h")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "pruned 0 trajectories")

	_, _, err = runApp(t, "store", "delete", "--db", db, id)
	test.That(t, err, test.ShouldBeNil)
	_, _, err = runApp(t, "store", "delete", "--db", db, id)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "not found")

	_, _, err = runApp(t, "store", "list", "--db", db, "--driver", "mysql")
	test.That(t, err, test.ShouldNotBeNil)
}
