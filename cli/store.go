package cli

import (
	"encoding/json"
	"fmt"

	"github.com/benbjohnson/clock"
	units "github.com/docker/go-units"
	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/motionkit/logging"
	"go.viam.com/motionkit/warehouse"
)

// openStore opens the store selected by the store flags of c. The returned function closes the
// store and the logger.
func openStore(c *cli.Context, clk clock.Clock) (*warehouse.Store, logging.Logger, func(), error) {
	logger, closeLogs, err := newLogger(c)
	if err != nil {
		return nil, nil, nil, err
	}
	store, err := warehouse.Open(c.Context, warehouse.Config{
		Driver: c.String(storeFlagDriver),
		DSN:    c.String(storeFlagDatabase),
	}, clk, logger.Sublogger("warehouse"))
	if err != nil {
		closeLogs()
		return nil, nil, nil, err
	}
	return store, logger, func() {
		if err := store.Close(); err != nil {
			logger.Warnw("failed to close trajectory store", "error", err)
		}
		closeLogs()
	}, nil
}

func idArg(c *cli.Context) (uuid.UUID, error) {
	if c.Args().Len() != 1 {
		return uuid.Nil, errors.New("expected exactly one trajectory id argument")
	}
	id, err := uuid.Parse(c.Args().First())
	if err != nil {
		return uuid.Nil, errors.Wrapf(err, "invalid trajectory id %q", c.Args().First())
	}
	return id, nil
}

// StoreSaveAction saves a trajectory file to the store.
func StoreSaveAction(c *cli.Context) error {
	rt, err := loadTrajectory(c)
	if err != nil {
		return err
	}
	store, _, closeStore, err := openStore(c, clock.New())
	if err != nil {
		return err
	}
	defer closeStore()

	id, err := store.Save(c.Context, c.String(nameFlag), rt)
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", id)
	return nil
}

// StoreListAction prints a table of the stored trajectories.
func StoreListAction(c *cli.Context) error {
	clk := clock.New()
	store, _, closeStore, err := openStore(c, clk)
	if err != nil {
		return err
	}
	defer closeStore()

	records, err := store.List(c.Context, c.String(modelNameFlag))
	if err != nil {
		return err
	}
	if len(records) == 0 {
		infof(c.App.ErrWriter, "no stored trajectories")
		return nil
	}
	now := clk.Now()
	t := table.NewWriter()
	t.AppendHeader(table.Row{"ID", "Name", "Model", "Group", "Waypoints", "Duration (s)", "Saved"})
	for _, r := range records {
		t.AppendRow(table.Row{
			r.ID, r.Name, r.ModelName, r.GroupName, r.WayPoints,
			fmt.Sprintf("%.3f", r.Duration),
			units.HumanDuration(now.Sub(r.CreatedAt)) + " ago",
		})
	}
	printf(c.App.Writer, "%s", t.Render())
	return nil
}

// StoreShowAction prints a stored trajectory message.
func StoreShowAction(c *cli.Context) error {
	id, err := idArg(c)
	if err != nil {
		return err
	}
	store, _, closeStore, err := openStore(c, clock.New())
	if err != nil {
		return err
	}
	defer closeStore()

	msg, record, err := store.Message(c.Context, id)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(msg, "", "  ")
	if err != nil {
		return err
	}
	infof(c.App.ErrWriter, "%q of %s, %d waypoints over %.3fs", record.Name, record.ModelName, record.WayPoints,
		record.Duration)
	printf(c.App.Writer, "%s", data)
	return nil
}

// StoreDeleteAction deletes a stored trajectory.
func StoreDeleteAction(c *cli.Context) error {
	id, err := idArg(c)
	if err != nil {
		return err
	}
	store, logger, closeStore, err := openStore(c, clock.New())
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.Delete(c.Context, id); err != nil {
		return err
	}
	logger.Infow("deleted trajectory", "id", id)
	return nil
}

// StorePruneAction deletes trajectories older than --max-age.
func StorePruneAction(c *cli.Context) error {
	maxAge := c.Duration(maxAgeFlag)
	if maxAge <= 0 {
		return errors.Errorf("--%s must be positive", maxAgeFlag)
	}
	store, _, closeStore, err := openStore(c, clock.New())
	if err != nil {
		return err
	}
	defer closeStore()

	n, err := store.Prune(c.Context, maxAge)
	if err != nil {
		return err
	}
	printf(c.App.Writer, "pruned %d trajectories older than %s", n, units.HumanDuration(maxAge))
	return nil
}
