package warehouse

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"go.viam.com/motionkit/logging"
	"go.viam.com/motionkit/utils"
)

const pruneTimeout = 30 * time.Second

// RetentionConfig controls how long stored trajectories are kept.
type RetentionConfig struct {
	MaxAge time.Duration `json:"max_age"`
	// Schedule is either a duration such as "1h" or a cron expression.
	Schedule string `json:"schedule"`
}

// Validate returns an error when the config cannot be used to start a Pruner.
func (cfg RetentionConfig) Validate() error {
	if cfg.MaxAge <= 0 {
		return errors.Errorf("max_age must be positive, got %s", cfg.MaxAge)
	}
	if cfg.Schedule == "" {
		return utils.NewConfigValidationFieldRequiredError("retention", "schedule")
	}
	return nil
}

// Prune deletes every trajectory created more than maxAge ago and returns how many were deleted.
func (s *Store) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := s.clk.Now().UTC().Add(-maxAge)
	res, err := s.db.ExecContext(ctx, s.rebind(pruneSQL), cutoff.Format(timeFormat))
	if err != nil {
		return 0, errors.Wrap(err, "can't prune trajectories")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.mu.Lock()
		s.cache.Clear()
		s.mu.Unlock()
	}
	return n, nil
}

// Pruner runs Store.Prune on a schedule.
type Pruner struct {
	store     *Store
	cfg       RetentionConfig
	scheduler gocron.Scheduler
	logger    logging.Logger
	pruned    atomic.Int64
}

// NewPruner schedules pruning of store. Nothing runs until Start is called.
func NewPruner(store *Store, cfg RetentionConfig, logger logging.Logger) (*Pruner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	p := &Pruner{store: store, cfg: cfg, scheduler: scheduler, logger: logger}

	var definition gocron.JobDefinition
	if every, err := time.ParseDuration(cfg.Schedule); err == nil {
		definition = gocron.DurationJob(every)
	} else {
		definition = gocron.CronJob(cfg.Schedule, false)
	}
	job, err := scheduler.NewJob(
		definition,
		gocron.NewTask(p.prune),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, multierr.Combine(errors.Wrapf(err, "invalid retention schedule %q", cfg.Schedule), scheduler.Shutdown())
	}
	logger.Debugw("scheduled trajectory pruning", "job", job.ID(), "schedule", cfg.Schedule, "max_age", cfg.MaxAge)
	return p, nil
}

func (p *Pruner) prune() {
	ctx, cancel := context.WithTimeout(context.Background(), pruneTimeout)
	defer cancel()
	n, err := p.store.Prune(ctx, p.cfg.MaxAge)
	if err != nil {
		p.logger.Errorw("failed to prune trajectories", "error", err)
		return
	}
	p.pruned.Add(n)
	if n > 0 {
		p.logger.Infow("pruned trajectories", "count", n, "max_age", p.cfg.MaxAge)
	}
}

// Start begins running the schedule.
func (p *Pruner) Start() {
	p.scheduler.Start()
}

// Pruned returns how many trajectories the pruner has deleted.
func (p *Pruner) Pruned() int64 {
	return p.pruned.Load()
}

// Close stops the schedule and waits for a running prune to finish.
func (p *Pruner) Close() error {
	return p.scheduler.Shutdown()
}
