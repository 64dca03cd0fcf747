// Package cli contains all business logic needed by the trajctl command.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

const (
	// Global flags.
	modelFlag         = "model"
	groupFlag         = "group"
	debugFlag         = "debug"
	logLevelFlag      = "log-level"
	logFileFlag       = "log-file"
	logMaxSizeFlag    = "log-max-size-mb"
	logMaxBackupsFlag = "log-max-backups"

	outFlag         = "out"
	variablesFlag   = "variables"
	binsFlag        = "bins"
	timeFlag        = "time"
	paramsFlag      = "params"
	controllersFlag = "controllers"
	traceFlag       = "trace"
	nameFlag        = "name"
	modelNameFlag   = "model-name"

	// Store flags.
	storeFlagDatabase = "db"
	storeFlagDriver   = "driver"
	maxAgeFlag        = "max-age"
)

func storeFlags(flags ...cli.Flag) []cli.Flag {
	return append(flags,
		&cli.StringFlag{
			Name:     storeFlagDatabase,
			Usage:    "sqlite file or postgres connection string of the trajectory store",
			Required: true,
		},
		&cli.StringFlag{
			Name:  storeFlagDriver,
			Usage: "database driver, sqlite3 or postgres",
			Value: "sqlite3",
		},
	)
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:            "trajctl",
		Usage:           "inspect, transform, store and execute robot trajectories",
		HideHelpCommand: true,
		Writer:          out,
		ErrWriter:       errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    modelFlag,
				Aliases: []string{"m"},
				Usage:   "load the robot model from `FILE`",
			},
			&cli.StringFlag{
				Name:    groupFlag,
				Aliases: []string{"g"},
				Usage:   "joint model group the trajectory moves; empty for the whole robot",
			},
			&cli.BoolFlag{
				Name:    debugFlag,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging, overriding --log-level",
			},
			&cli.StringFlag{
				Name:  logLevelFlag,
				Usage: "minimum level logged: debug, info, warn or error",
				Value: "info",
			},
			&cli.StringFlag{
				Name:  logFileFlag,
				Usage: "also write logs to a rotated `FILE`",
			},
			&cli.IntFlag{
				Name:  logMaxSizeFlag,
				Usage: "rotate the log file once it reaches this many megabytes",
				Value: 10,
			},
			&cli.IntFlag{
				Name:  logMaxBackupsFlag,
				Usage: "number of rotated log files to keep",
				Value: 3,
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "model",
				Usage:  "print the joints and groups of the robot model",
				Action: ModelAction,
			},
			{
				Name:   "schema",
				Usage:  "print the JSON schema of robot model files",
				Action: SchemaAction,
			},
			{
				Name:      "print",
				Usage:     "print the waypoints of a trajectory",
				ArgsUsage: "<trajectory.json>",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  variablesFlag,
						Usage: "only print these variables",
					},
				},
				Action: PrintAction,
			},
			{
				Name:      "metrics",
				Usage:     "print path length, smoothness and timing statistics of a trajectory",
				ArgsUsage: "<trajectory.json>",
				Action:    MetricsAction,
			},
			{
				Name:      "histogram",
				Usage:     "print a histogram of the segment durations of a trajectory",
				ArgsUsage: "<trajectory.json>",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  binsFlag,
						Usage: "number of bins",
						Value: 10,
					},
				},
				Action: HistogramAction,
			},
			{
				Name:      "reverse",
				Usage:     "reverse a trajectory",
				ArgsUsage: "<trajectory.json>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  outFlag,
						Usage: "write the result to `FILE` instead of stdout",
					},
				},
				Action: ReverseAction,
			},
			{
				Name:      "unwind",
				Usage:     "remove 2pi jumps of continuous joints from a trajectory",
				ArgsUsage: "<trajectory.json>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  outFlag,
						Usage: "write the result to `FILE` instead of stdout",
					},
				},
				Action: UnwindAction,
			},
			{
				Name:      "sample",
				Usage:     "print the interpolated state at a time from the start of a trajectory",
				ArgsUsage: "<trajectory.json>",
				Flags: []cli.Flag{
					&cli.Float64Flag{
						Name:     timeFlag,
						Usage:    "seconds from the start",
						Required: true,
					},
				},
				Action: SampleAction,
			},
			{
				Name:      "plot",
				Usage:     "plot variable positions over time to an image",
				ArgsUsage: "<trajectory.json>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     outFlag,
						Usage:    "image `FILE`; the extension picks the format",
						Required: true,
					},
					&cli.StringSliceFlag{
						Name:  variablesFlag,
						Usage: "only plot these variables",
					},
				},
				Action: PlotAction,
			},
			{
				Name:      "execute",
				Usage:     "execute a trajectory on fake controllers",
				ArgsUsage: "<trajectory.json>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  paramsFlag,
						Usage: "load node parameters from a JSON5 `FILE`",
					},
					&cli.StringSliceFlag{
						Name:  controllersFlag,
						Usage: "controllers to execute on; chosen by joint when empty",
					},
					&cli.BoolFlag{
						Name:  traceFlag,
						Usage: "log debug details of this execution without raising the log level",
					},
				},
				Action: ExecuteAction,
			},
			{
				Name:            "store",
				Usage:           "work with stored trajectories",
				HideHelpCommand: true,
				Subcommands: []*cli.Command{
					{
						Name:      "save",
						Usage:     "save a trajectory",
						ArgsUsage: "<trajectory.json>",
						Flags: storeFlags(
							&cli.StringFlag{
								Name:     nameFlag,
								Usage:    "name to save the trajectory under",
								Required: true,
							},
						),
						Action: StoreSaveAction,
					},
					{
						Name:  "list",
						Usage: "list stored trajectories",
						Flags: storeFlags(
							&cli.StringFlag{
								Name:  modelNameFlag,
								Usage: "only list trajectories of this robot model",
							},
						),
						Action: StoreListAction,
					},
					{
						Name:      "show",
						Usage:     "print a stored trajectory",
						ArgsUsage: "<id>",
						Flags:     storeFlags(),
						Action:    StoreShowAction,
					},
					{
						Name:      "delete",
						Usage:     "delete a stored trajectory",
						ArgsUsage: "<id>",
						Flags:     storeFlags(),
						Action:    StoreDeleteAction,
					},
					{
						Name:  "prune",
						Usage: "delete stored trajectories older than a given age",
						Flags: storeFlags(
							&cli.DurationFlag{
								Name:     maxAgeFlag,
								Usage:    "delete trajectories saved longer ago than this",
								Required: true,
							},
						),
						Action: StorePruneAction,
					},
				},
			},
		},
	}
}
