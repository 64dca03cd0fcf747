package cli

import (
	"encoding/json"
	"fmt"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/invopop/jsonschema"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/kr/text"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/motionkit/robotmodel"
	"go.viam.com/motionkit/trajectory"
)

const (
	histogramWidth = 40
	sampleWrap     = 72
)

// ModelAction prints the joints and groups of the robot model.
func ModelAction(c *cli.Context) error {
	model, err := loadModel(c)
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", model.String())
	return nil
}

// SchemaAction prints the JSON schema robot model files follow.
func SchemaAction(c *cli.Context) error {
	schema := jsonschema.Reflect(&robotmodel.ModelConfigJSON{})
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", data)
	return nil
}

// variableIndexes maps variable names to their indexes in the model.
func variableIndexes(model *robotmodel.RobotModel, names []string) ([]int, error) {
	indexes := make([]int, 0, len(names))
	for _, name := range names {
		idx, err := model.VariableIndex(name)
		if err != nil {
			return nil, err
		}
		indexes = append(indexes, idx)
	}
	return indexes, nil
}

// PrintAction prints the waypoints of a trajectory.
func PrintAction(c *cli.Context) error {
	rt, err := loadTrajectory(c)
	if err != nil {
		return err
	}
	indexes, err := variableIndexes(rt.Model(), c.StringSlice(variablesFlag))
	if err != nil {
		return err
	}
	if err := rt.Print(c.App.Writer, indexes...); err != nil {
		return err
	}
	printf(c.App.Writer, "")
	return nil
}

// segmentDurations returns the duration of every segment between waypoints.
func segmentDurations(rt *trajectory.RobotTrajectory) stats.Float64Data {
	durations := rt.WayPointDurations()
	if len(durations) < 2 {
		return nil
	}
	return stats.Float64Data(durations[1:])
}

func formatMetric(value float64, ok bool) string {
	if !ok {
		return "n/a"
	}
	return fmt.Sprintf("%.4f", value)
}

// MetricsAction prints path length, smoothness and timing statistics of a trajectory.
func MetricsAction(c *cli.Context) error {
	rt, err := loadTrajectory(c)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRow(table.Row{"waypoints", rt.WayPointCount()})
	t.AppendRow(table.Row{"duration (s)", fmt.Sprintf("%.4f", rt.Duration())})
	t.AppendRow(table.Row{"average segment (s)", fmt.Sprintf("%.4f", rt.AverageSegmentDuration())})
	t.AppendRow(table.Row{"path length", fmt.Sprintf("%.4f", trajectory.PathLength(rt))})
	t.AppendRow(table.Row{"smoothness", formatMetric(trajectory.Smoothness(rt))})
	t.AppendRow(table.Row{"waypoint density", formatMetric(trajectory.WaypointDensity(rt))})

	if segments := segmentDurations(rt); len(segments) > 0 {
		for _, stat := range []struct {
			name string
			fn   func(stats.Float64Data) (float64, error)
		}{
			{"segment min (s)", stats.Min},
			{"segment median (s)", stats.Median},
			{"segment max (s)", stats.Max},
			{"segment stddev (s)", stats.StandardDeviation},
			{"segment p95 (s)", func(d stats.Float64Data) (float64, error) { return stats.Percentile(d, 95) }},
		} {
			value, err := stat.fn(segments)
			if err != nil {
				return errors.Wrap(err, stat.name)
			}
			t.AppendRow(table.Row{stat.name, fmt.Sprintf("%.4f", value)})
		}
	}
	printf(c.App.Writer, "%s", t.Render())
	return nil
}

// HistogramAction prints a histogram of the segment durations of a trajectory.
func HistogramAction(c *cli.Context) error {
	rt, err := loadTrajectory(c)
	if err != nil {
		return err
	}
	bins := c.Int(binsFlag)
	if bins < 1 {
		return errors.Errorf("--%s must be at least 1", binsFlag)
	}
	segments := segmentDurations(rt)
	if len(segments) == 0 {
		warningf(c.App.ErrWriter, "trajectory has no segments")
		return nil
	}
	hist := histogram.Hist(bins, segments)
	return histogram.Fprint(c.App.Writer, hist, histogram.Linear(histogramWidth))
}

// ReverseAction writes the trajectory played backwards.
func ReverseAction(c *cli.Context) error {
	rt, err := loadTrajectory(c)
	if err != nil {
		return err
	}
	return writeTrajectory(c, rt.Reverse())
}

// UnwindAction writes the trajectory with the 2pi jumps of its continuous joints removed.
func UnwindAction(c *cli.Context) error {
	rt, err := loadTrajectory(c)
	if err != nil {
		return err
	}
	return writeTrajectory(c, rt.Unwind())
}

// SampleAction prints the state interpolated at --time seconds from the start.
func SampleAction(c *cli.Context) error {
	rt, err := loadTrajectory(c)
	if err != nil {
		return err
	}
	at := c.Float64(timeFlag)
	st, err := rt.StateAtDurationFromStart(at)
	if err != nil {
		return err
	}
	before, after, blend := rt.FindWayPointIndicesForDurationAfterStart(at)
	printf(c.App.Writer, "state at %.3fs, between waypoints %d and %d (blend %.3f):", at, before, after, blend)
	printf(c.App.Writer, "%s", text.Indent(text.Wrap(st.String(), sampleWrap), "  "))
	return nil
}
