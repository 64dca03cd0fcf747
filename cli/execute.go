package cli

import (
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"

	"go.viam.com/motionkit/execution"
	"go.viam.com/motionkit/logging"
	"go.viam.com/motionkit/mover"
	"go.viam.com/motionkit/node"
	"go.viam.com/motionkit/planning"
	"go.viam.com/motionkit/robotmodel"
)

const (
	defaultControllerName = "all"
	robotDescriptionParam = "robot_description"
	pipelinesParam        = "planning_pipelines"
	controllersParam      = "controllers"
)

// setExecuteDefaults fills in the parameters a parameter file did not set: the model passed with
// --model, an interpolation pipeline and one fake controller driving every active joint.
func setExecuteDefaults(n *node.Node, modelPath string, model *robotmodel.RobotModel) {
	if !n.HasParameter(robotDescriptionParam) {
		n.SetParameter(robotDescriptionParam, modelPath)
	}
	if !n.HasParameter(pipelinesParam) {
		n.SetParameters(map[string]any{
			pipelinesParam: map[string]any{"pipeline_names": []any{planning.InterpolationPlannerName}},
			planning.InterpolationPlannerName: map[string]any{
				"planner": planning.InterpolationPlannerName,
			},
		})
	}
	if !n.HasParameter(controllersParam) {
		joints := lo.Map(model.ActiveJointModels(), func(jm *robotmodel.JointModel, _ int) any {
			return jm.Name()
		})
		n.SetParameter(controllersParam, []any{
			map[string]any{"name": defaultControllerName, "type": execution.FakeControllerType, "joints": joints},
		})
	}
}

func colorStatus(status execution.ExecutionStatus) string {
	switch status {
	case execution.Succeeded:
		return color.GreenString(status.String())
	case execution.Preempted, execution.TimedOut:
		return color.YellowString(status.String())
	case execution.Unknown, execution.Running, execution.Aborted, execution.Failed:
	}
	return color.RedString(status.String())
}

// ExecuteAction executes a trajectory on fake controllers and prints the state it ends in.
func ExecuteAction(c *cli.Context) error {
	logger, closeLogs, err := newLogger(c)
	if err != nil {
		return err
	}
	defer closeLogs()

	rt, err := loadTrajectory(c)
	if err != nil {
		return err
	}
	n := node.New("trajctl", logger.Sublogger("node"))
	defer n.Close()
	if path := c.String(paramsFlag); path != "" {
		if err := n.LoadParameterFile(path); err != nil {
			return err
		}
	}
	setExecuteDefaults(n, c.String(modelFlag), rt.Model())

	m, err := mover.New(c.Context, n, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(c.Context); err != nil {
			logger.Warnw("failed to close mover", "error", err)
		}
	}()

	ctx := c.Context
	if c.Bool(traceFlag) {
		ctx = logging.EnableDebugMode(ctx, "")
	}
	status, execErr := m.Execute(ctx, rt, c.StringSlice(controllersFlag))
	printf(c.App.Writer, "execution %s after %.3fs", colorStatus(status), rt.Duration())
	if execErr != nil {
		return errors.Wrap(execErr, "execution failed")
	}
	if status != execution.Succeeded {
		return errors.Errorf("execution ended with status %s", status)
	}

	current, err := m.CurrentState(c.Context, 0)
	if err != nil {
		warningf(c.App.ErrWriter, "could not read the final state: %v", err)
		return nil
	}
	printf(c.App.Writer, "%s", current.String())
	return nil
}
