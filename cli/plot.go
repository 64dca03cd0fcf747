package cli

import (
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"go.viam.com/motionkit/trajectory"
)

// plotTrajectory draws the position of each variable at names over time.
func plotTrajectory(rt *trajectory.RobotTrajectory, names []string) (*plot.Plot, error) {
	model := rt.Model()
	if len(names) == 0 {
		if group := rt.Group(); group != nil {
			names = group.VariableNames()
		} else {
			names = model.VariableNames()
		}
	}
	indexes, err := variableIndexes(model, names)
	if err != nil {
		return nil, err
	}

	p := plot.New()
	p.Title.Text = model.Name()
	if rt.GroupName() != "" {
		p.Title.Text += " / " + rt.GroupName()
	}
	p.X.Label.Text = "time (s)"
	p.Y.Label.Text = "position"
	p.Add(plotter.NewGrid())

	for i, idx := range indexes {
		pts := make(plotter.XYs, rt.WayPointCount())
		for w := range pts {
			pts[w].X = rt.WayPointDurationFromStart(w)
			pts[w].Y = rt.WayPoint(w).Positions()[idx]
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, errors.Wrapf(err, "variable %q", names[i])
		}
		line.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(names[i], line)
	}
	return p, nil
}

// PlotAction saves a plot of variable positions over time.
func PlotAction(c *cli.Context) error {
	rt, err := loadTrajectory(c)
	if err != nil {
		return err
	}
	if rt.Empty() {
		return errors.New("cannot plot an empty trajectory")
	}
	p, err := plotTrajectory(rt, c.StringSlice(variablesFlag))
	if err != nil {
		return err
	}
	path := c.String(outFlag)
	if err := p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrap(err, "failed to save plot")
	}
	infof(c.App.ErrWriter, "wrote plot to %s", path)
	return nil
}
