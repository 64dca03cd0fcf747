// Package warehouse stores robot trajectories in a SQL database so they can be replayed later.
// Trajectories are kept as JSON encoded msgs.RobotTrajectory values alongside a summary that can
// be listed without decoding them.
package warehouse

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/groupcache/lru"
	"github.com/google/uuid"
	// registers the postgres driver.
	_ "github.com/lib/pq"
	// registers the sqlite3 driver.
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/motionkit/logging"
	"go.viam.com/motionkit/msgs"
	"go.viam.com/motionkit/robotstate"
	"go.viam.com/motionkit/trajectory"
	"go.viam.com/motionkit/utils"
)

// Supported database drivers.
const (
	SQLite   = "sqlite3"
	Postgres = "postgres"
)

// DefaultCacheSize is the number of decoded trajectories kept in memory when Config.CacheSize is
// zero.
const DefaultCacheSize = 64

// ErrNotFound is returned when no trajectory has the requested id.
var ErrNotFound = errors.New("trajectory not found")

// fixed width so that creation times sort as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `CREATE TABLE IF NOT EXISTS trajectories(
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	model TEXT NOT NULL,
	group_name TEXT NOT NULL,
	waypoints INTEGER NOT NULL,
	duration DOUBLE PRECISION NOT NULL,
	created_at TEXT NOT NULL,
	message TEXT NOT NULL
)`

var (
	columnNames      = strings.Fields("id name model group_name waypoints duration created_at")
	columnNamesComma = strings.Join(columnNames, ",")

	insertSQL = `INSERT INTO trajectories(` + columnNamesComma + `,message) VALUES(` +
		strings.TrimSuffix(strings.Repeat("?,", len(columnNames)+1), ",") + `)`
	selectSQL     = `SELECT ` + columnNamesComma + `,message FROM trajectories WHERE id = ?`
	listSQL       = `SELECT ` + columnNamesComma + ` FROM trajectories ORDER BY created_at, name`
	listModelSQL  = `SELECT ` + columnNamesComma + ` FROM trajectories WHERE model = ? ORDER BY created_at, name`
	deleteSQL     = `DELETE FROM trajectories WHERE id = ?`
	pruneSQL      = `DELETE FROM trajectories WHERE created_at < ?`
	countSQL      = `SELECT count(*) FROM trajectories`
	selectNameSQL = `SELECT ` + columnNamesComma + ` FROM trajectories WHERE name = ? ORDER BY created_at DESC`
)

// Config selects the database to store trajectories in.
type Config struct {
	// Driver is SQLite or Postgres.
	Driver string `json:"driver"`
	// DSN is a file path for SQLite or a connection string for Postgres.
	DSN       string `json:"dsn"`
	CacheSize int    `json:"cache_size"`
}

// Validate returns an error when the config cannot be used to open a store.
func (cfg Config) Validate() error {
	switch cfg.Driver {
	case SQLite, Postgres:
	default:
		return errors.Errorf("unsupported trajectory store driver %q", cfg.Driver)
	}
	if cfg.DSN == "" {
		return utils.NewConfigValidationFieldRequiredError("trajectory store", "dsn")
	}
	if cfg.CacheSize < 0 {
		return errors.Errorf("cache_size cannot be negative, got %d", cfg.CacheSize)
	}
	return nil
}

// Record summarizes a stored trajectory.
type Record struct {
	ID        uuid.UUID
	Name      string
	ModelName string
	GroupName string
	WayPoints int
	// Duration is in seconds.
	Duration  float64
	CreatedAt time.Time
}

type cacheEntry struct {
	record  Record
	message []byte
}

// Store saves and loads trajectories. It is safe for concurrent use.
type Store struct {
	db     *sql.DB
	driver string
	clk    clock.Clock
	logger logging.Logger

	mu    sync.Mutex
	cache *lru.Cache
}

// Open connects to the database described by cfg and creates the trajectory table if needed.
func Open(ctx context.Context, cfg Config, clk clock.Clock, logger logging.Logger) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dsn := cfg.DSN
	if cfg.Driver == SQLite && !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "can't open trajectory database %s", cfg.DSN)
	}
	if cfg.Driver == SQLite {
		// sqlite allows a single writer, and each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	s, err := NewStore(ctx, db, cfg.Driver, cfg.CacheSize, clk, logger)
	if err != nil {
		return nil, errors.Wrap(multierr.Combine(err, db.Close()), "can't create trajectory store")
	}
	return s, nil
}

// NewStore uses an already open database. The store takes ownership of db.
func NewStore(ctx context.Context, db *sql.DB, driver string, cacheSize int, clk clock.Clock, logger logging.Logger) (*Store, error) {
	if cacheSize == 0 {
		cacheSize = DefaultCacheSize
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, errors.Wrap(err, "can't create schema")
	}
	return &Store{
		db:     db,
		driver: driver,
		clk:    clk,
		logger: logger,
		cache:  lru.New(cacheSize),
	}, nil
}

// rebind rewrites ? placeholders into the $n form postgres expects.
func (s *Store) rebind(query string) string {
	if s.driver != Postgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r != '?' {
			sb.WriteRune(r)
			continue
		}
		n++
		sb.WriteString("$" + strconv.Itoa(n))
	}
	return sb.String()
}

// Save stores rt under name and returns its new id. Names need not be unique.
func (s *Store) Save(ctx context.Context, name string, rt *trajectory.RobotTrajectory) (uuid.UUID, error) {
	if name == "" {
		return uuid.Nil, errors.New("trajectory needs a name")
	}
	data, err := json.Marshal(rt.RobotTrajectoryMsg())
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "can't encode trajectory")
	}
	record := Record{
		ID:        uuid.New(),
		Name:      name,
		ModelName: rt.Model().Name(),
		GroupName: rt.GroupName(),
		WayPoints: rt.WayPointCount(),
		Duration:  rt.Duration(),
		CreatedAt: s.clk.Now().UTC(),
	}
	_, err = s.db.ExecContext(ctx, s.rebind(insertSQL),
		record.ID.String(),
		record.Name,
		record.ModelName,
		record.GroupName,
		record.WayPoints,
		record.Duration,
		record.CreatedAt.Format(timeFormat),
		string(data),
	)
	if err != nil {
		return uuid.Nil, errors.Wrapf(err, "can't save trajectory %q", name)
	}
	s.remember(record.ID, cacheEntry{record: record, message: data})
	s.logger.Debugw("saved trajectory", "id", record.ID, "name", name, "waypoints", record.WayPoints)
	return record.ID, nil
}

func (s *Store) remember(id uuid.UUID, entry cacheEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Add(id, entry)
}

func (s *Store) forget(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Remove(id)
}

func (s *Store) fetch(ctx context.Context, id uuid.UUID) (cacheEntry, error) {
	s.mu.Lock()
	cached, ok := s.cache.Get(id)
	s.mu.Unlock()
	if ok {
		return cached.(cacheEntry), nil
	}

	row := s.db.QueryRowContext(ctx, s.rebind(selectSQL), id.String())
	var (
		entry   cacheEntry
		message string
	)
	record, err := scanRecord(row.Scan, &message)
	if errors.Is(err, sql.ErrNoRows) {
		return cacheEntry{}, errors.Wrapf(ErrNotFound, "id %s", id)
	}
	if err != nil {
		return cacheEntry{}, err
	}
	entry.record, entry.message = record, []byte(message)
	s.remember(id, entry)
	return entry, nil
}

// Message returns the stored message and summary of a trajectory.
func (s *Store) Message(ctx context.Context, id uuid.UUID) (msgs.RobotTrajectory, Record, error) {
	entry, err := s.fetch(ctx, id)
	if err != nil {
		return msgs.RobotTrajectory{}, Record{}, err
	}
	var msg msgs.RobotTrajectory
	if err := json.Unmarshal(entry.message, &msg); err != nil {
		return msgs.RobotTrajectory{}, Record{}, errors.Wrapf(err, "can't decode trajectory %s", id)
	}
	return msg, entry.record, nil
}

// Load rebuilds a stored trajectory. Variables the stored message does not mention take their
// values from reference, which must belong to the model the trajectory was saved with.
func (s *Store) Load(ctx context.Context, id uuid.UUID, reference *robotstate.RobotState) (*trajectory.RobotTrajectory, error) {
	msg, record, err := s.Message(ctx, id)
	if err != nil {
		return nil, err
	}
	model := reference.Model()
	if model.Name() != record.ModelName {
		return nil, errors.Errorf("trajectory %s was saved for robot model %q, not %q", id, record.ModelName, model.Name())
	}
	rt, err := trajectory.NewForGroup(model, record.GroupName)
	if err != nil {
		return nil, err
	}
	if err := rt.SetRobotTrajectoryMsg(reference, msg); err != nil {
		return nil, errors.Wrapf(err, "can't rebuild trajectory %s", id)
	}
	return rt, nil
}

// List returns a summary of every stored trajectory, oldest first. A non-empty modelName only lists
// trajectories saved for that model.
func (s *Store) List(ctx context.Context, modelName string) ([]Record, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if modelName == "" {
		rows, err = s.db.QueryContext(ctx, listSQL)
	} else {
		rows, err = s.db.QueryContext(ctx, s.rebind(listModelSQL), modelName)
	}
	return rowsToRecords(rows, err)
}

// FindByName returns the trajectories saved under name, newest first.
func (s *Store) FindByName(ctx context.Context, name string) ([]Record, error) {
	return rowsToRecords(s.db.QueryContext(ctx, s.rebind(selectNameSQL), name))
}

// Count returns the number of stored trajectories.
func (s *Store) Count(ctx context.Context) (count int, err error) {
	err = s.db.QueryRowContext(ctx, countSQL).Scan(&count)
	return
}

// Delete removes a stored trajectory.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	s.forget(id)
	res, err := s.db.ExecContext(ctx, s.rebind(deleteSQL), id.String())
	if err != nil {
		return errors.Wrapf(err, "can't delete trajectory %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.Wrapf(ErrNotFound, "id %s", id)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	s.cache.Clear()
	s.mu.Unlock()
	return s.db.Close()
}

func rowsToRecords(rows *sql.Rows, err error) ([]Record, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		record, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// scanRecord reads the summary columns followed by any extra destinations.
func scanRecord(scan func(dest ...any) error, extra ...any) (Record, error) {
	var (
		record    Record
		id        string
		createdAt string
	)
	dest := append([]any{
		&id,
		&record.Name,
		&record.ModelName,
		&record.GroupName,
		&record.WayPoints,
		&record.Duration,
		&createdAt,
	}, extra...)
	if err := scan(dest...); err != nil {
		return Record{}, err
	}
	var err error
	if record.ID, err = uuid.Parse(id); err != nil {
		return Record{}, errors.Wrapf(err, "bad trajectory id %q", id)
	}
	if record.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return Record{}, errors.Wrapf(err, "bad creation time for trajectory %s", id)
	}
	return record, nil
}
