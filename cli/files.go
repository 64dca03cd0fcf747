package cli

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/motionkit/logging"
	"go.viam.com/motionkit/msgs"
	"go.viam.com/motionkit/robotmodel"
	"go.viam.com/motionkit/robotstate"
	"go.viam.com/motionkit/trajectory"
)

// newLogger builds the command's logger, writing to the app's error writer and, when --log-file
// is set, to a rotated file. The returned function flushes and closes the file.
func newLogger(c *cli.Context) (logging.Logger, func(), error) {
	level := logging.DEBUG
	if !c.Bool(debugFlag) {
		var err error
		if level, err = logging.LevelFromString(c.String(logLevelFlag)); err != nil {
			return nil, nil, errors.Wrapf(err, "invalid --%s", logLevelFlag)
		}
	}
	logger := logging.NewBlankLogger("trajctl")
	logger.SetLevel(level)
	logger.AddAppender(logging.NewWriterAppender(c.App.ErrWriter))
	path := c.String(logFileFlag)
	if path == "" {
		return logger, func() {}, nil
	}
	appender, closer := logging.NewFileAppender(logging.FileAppenderConfig{
		Filename:   path,
		MaxSizeMB:  c.Int(logMaxSizeFlag),
		MaxBackups: c.Int(logMaxBackupsFlag),
	})
	logger.AddAppender(appender)
	return logger, func() {
		//nolint:errcheck
		logger.Sync()
		//nolint:errcheck
		closer.Close()
	}, nil
}

func loadModel(c *cli.Context) (*robotmodel.RobotModel, error) {
	path := c.String(modelFlag)
	if path == "" {
		return nil, errors.Errorf("a robot model is required, pass --%s", modelFlag)
	}
	model, err := robotmodel.ParseModelJSONFile(path, "")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load robot model %q", path)
	}
	return model, nil
}

func trajectoryArg(c *cli.Context) (string, error) {
	if c.Args().Len() != 1 {
		return "", errors.New("expected exactly one trajectory file argument")
	}
	return c.Args().First(), nil
}

func readTrajectoryMsg(path string) (msgs.RobotTrajectory, error) {
	var msg msgs.RobotTrajectory
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return msg, errors.Wrap(err, "failed to read trajectory file")
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, errors.Wrapf(err, "failed to decode trajectory %q", path)
	}
	return msg, nil
}

// readTrajectoryFile decodes the trajectory message at path onto the default state of model.
func readTrajectoryFile(model *robotmodel.RobotModel, group, path string) (*trajectory.RobotTrajectory, error) {
	msg, err := readTrajectoryMsg(path)
	if err != nil {
		return nil, err
	}
	rt, err := trajectory.NewForGroup(model, group)
	if err != nil {
		return nil, err
	}
	if err := rt.SetRobotTrajectoryMsg(robotstate.New(model), msg); err != nil {
		return nil, errors.Wrapf(err, "trajectory %q does not match robot model %q", path, model.Name())
	}
	return rt, nil
}

// loadTrajectory loads the model and the single trajectory argument of c.
func loadTrajectory(c *cli.Context) (*trajectory.RobotTrajectory, error) {
	path, err := trajectoryArg(c)
	if err != nil {
		return nil, err
	}
	model, err := loadModel(c)
	if err != nil {
		return nil, err
	}
	return readTrajectoryFile(model, c.String(groupFlag), path)
}

// writeTrajectory writes rt as an indented message to the --out file, or the app's writer.
func writeTrajectory(c *cli.Context, rt *trajectory.RobotTrajectory) error {
	data, err := json.MarshalIndent(rt.RobotTrajectoryMsg(), "", "  ")
	if err != nil {
		return err
	}
	path := c.String(outFlag)
	if path == "" {
		printf(c.App.Writer, "%s", data)
		return nil
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return errors.Wrap(err, "failed to write trajectory file")
	}
	return nil
}
