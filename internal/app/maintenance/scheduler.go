package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pinkypartner/pinkypartner/internal/cache"
	"github.com/pinkypartner/pinkypartner/internal/models"
	"github.com/pinkypartner/pinkypartner/internal/monitoring"
	"github.com/pinkypartner/pinkypartner/internal/services"
	"github.com/pinkypartner/pinkypartner/pkg/logger"
)

const (
	defaultRetentionDays = 90
	defaultReminderSpec  = "0 18 * * *"
	defaultEndingSpec    = "0 9 * * *"
	defaultRolloverSpec  = "5 0 * * 0"
	defaultPurgeSpec     = "@hourly"

	// HousekeepingJob names the purge and prune run in the job tracker.
	HousekeepingJob = "housekeeping"
)

// Scheduler runs the contract sweeps and housekeeping jobs on cron schedules.
type Scheduler struct {
	db        *gorm.DB
	sweeps    *services.SweepService
	purger    cache.Purger
	cron      *cron.Cron
	loc       *time.Location
	now       func() time.Time
	log       *zap.Logger
	retention int
	tracker   *monitoring.JobTracker

	reminderSchedule string
	endingSchedule   string
	rolloverSchedule string
	purgeSchedule    string
}

// Option customises the Scheduler.
type Option func(*Scheduler)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithNow overrides the clock passed to sweeps and retention comparisons.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation evaluates cron specs in loc.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithNotificationRetentionDays adjusts how long read notifications are kept.
func WithNotificationRetentionDays(days int) Option {
	return func(s *Scheduler) {
		if days > 0 {
			s.retention = days
		}
	}
}

// WithTracker records job outcomes for the maintenance health probe.
func WithTracker(t *monitoring.JobTracker) Option {
	return func(s *Scheduler) {
		s.tracker = t
	}
}

// WithSchedules overrides the cron specifications. Empty values keep the defaults.
func WithSchedules(reminder, ending, rollover, purge string) Option {
	return func(s *Scheduler) {
		if reminder != "" {
			s.reminderSchedule = reminder
		}
		if ending != "" {
			s.endingSchedule = ending
		}
		if rollover != "" {
			s.rolloverSchedule = rollover
		}
		if purge != "" {
			s.purgeSchedule = purge
		}
	}
}

// NewScheduler constructs a Scheduler. A nil dependency skips the jobs that need it.
func NewScheduler(db *gorm.DB, sweeps *services.SweepService, purger cache.Purger, opts ...Option) *Scheduler {
	s := &Scheduler{
		db:               db,
		sweeps:           sweeps,
		purger:           purger,
		loc:              time.UTC,
		now:              time.Now,
		retention:        defaultRetentionDays,
		reminderSchedule: defaultReminderSpec,
		endingSchedule:   defaultEndingSpec,
		rolloverSchedule: defaultRolloverSpec,
		purgeSchedule:    defaultPurgeSpec,
		log:              logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.cron == nil {
		s.cron = cron.New(cron.WithLocation(s.loc), cron.WithLogger(cron.DiscardLogger))
	}

	return s
}

// Start registers the jobs and launches the cron scheduler.
func (s *Scheduler) Start() error {
	if s.sweeps != nil {
		jobs := []struct{ spec, name string }{
			{s.reminderSchedule, services.SweepDailyReminders},
			{s.endingSchedule, services.SweepContractsEnding},
			{s.rolloverSchedule, services.SweepWeeklyRollover},
		}
		for _, job := range jobs {
			name := job.name
			s.tracker.Register(name)
			if _, err := s.cron.AddFunc(job.spec, func() { s.runSweep(context.Background(), name) }); err != nil {
				return fmt.Errorf("maintenance: schedule %s: %w", name, err)
			}
		}
	}

	if s.purger != nil || s.db != nil {
		s.tracker.Register(HousekeepingJob)
		if _, err := s.cron.AddFunc(s.purgeSchedule, func() {
			started := time.Now()
			err := s.RunOnce(context.Background())
			s.tracker.Record(HousekeepingJob, err, time.Since(started))
			if err != nil {
				s.log.Warn("housekeeping failed", zap.Error(err))
			}
		}); err != nil {
			return fmt.Errorf("maintenance: schedule housekeeping: %w", err)
		}
	}

	s.cron.Start()
	return nil
}

// Stop halts the underlying scheduler. The returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	if s.cron == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	return s.cron.Stop()
}

// RunOnce executes the housekeeping jobs sequentially: expired cache entries and old read
// notifications. Sweeps are not part of it because they notify users.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if s.purger != nil {
		if _, err := s.purger.PurgeExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if s.db != nil && s.retention > 0 {
		cutoff := s.now().AddDate(0, 0, -s.retention)
		if _, err := PruneNotifications(ctx, s.db, cutoff); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

func (s *Scheduler) runSweep(ctx context.Context, job string) {
	started := time.Now()
	result, err := s.sweeps.Run(ctx, job, s.now())
	s.tracker.Record(job, err, time.Since(started))
	if err != nil {
		s.log.Warn("sweep failed", zap.String("job", job), zap.Error(err))
		return
	}
	s.log.Info("sweep finished",
		zap.String("job", job),
		zap.Int("contracts", result.Contracts),
		zap.Int("users", result.Users),
		zap.Int("generated", result.Generated),
	)
}

// PruneNotifications removes read notifications created before cutoff.
func PruneNotifications(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	if db == nil {
		return 0, errors.New("prune notifications: db is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	result := db.WithContext(ctx).
		Where("is_read = ? AND created_at < ?", true, cutoff.UTC()).
		Delete(&models.Notification{})
	if result.Error != nil {
		return 0, fmt.Errorf("prune notifications: %w", result.Error)
	}
	return result.RowsAffected, nil
}
