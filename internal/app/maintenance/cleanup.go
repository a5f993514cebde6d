package maintenance

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/harborcare/notify/internal/services"
	"github.com/harborcare/notify/pkg/logger"
)

const (
	defaultRetentionDays = 90
	defaultRetentionSpec = "@daily"
	defaultExpirySpec    = "@hourly"
)

// Cleaner coordinates background maintenance: pruning read notifications past
// the retention window and removing expired records.
type Cleaner struct {
	store     *services.NotificationService
	cron      *cron.Cron
	log       *zap.Logger
	retention int

	retentionSchedule string
	expirySchedule    string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithRetentionDays adjusts how long read notifications are retained.
func WithRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.retention = days
		}
	}
}

// WithRetentionSchedule overrides the cron specification for retention cleanup.
func WithRetentionSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.retentionSchedule = spec
		}
	}
}

// WithExpirySchedule overrides the cron specification for expiry cleanup.
func WithExpirySchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.expirySchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. A nil store results
// in all jobs being skipped.
func NewCleaner(store *services.NotificationService, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		store:             store,
		retention:         defaultRetentionDays,
		retentionSchedule: defaultRetentionSpec,
		expirySchedule:    defaultExpirySpec,
		log:               logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers cleanup jobs with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	if c.store == nil {
		return nil
	}

	if _, err := c.cron.AddFunc(c.retentionSchedule, func() {
		ctx := context.Background()
		deleted, err := c.store.DeleteOld(ctx, c.retention)
		if err != nil {
			c.log.Warn("retention cleanup failed", zap.Error(err))
			return
		}
		if deleted > 0 {
			c.log.Info("retention cleanup completed", zap.Int64("deleted", deleted))
		}
	}); err != nil {
		return err
	}

	if _, err := c.cron.AddFunc(c.expirySchedule, func() {
		ctx := context.Background()
		deleted, err := c.store.DeleteExpired(ctx)
		if err != nil {
			c.log.Warn("expiry cleanup failed", zap.Error(err))
			return
		}
		if deleted > 0 {
			c.log.Info("expiry cleanup completed", zap.Int64("deleted", deleted))
		}
	}); err != nil {
		return err
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all cleanup routines sequentially. Primarily used in tests
// and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.store == nil {
		return nil
	}

	var errs error

	if _, err := c.store.DeleteOld(ctx, c.retention); err != nil {
		errs = multierr.Append(errs, err)
	}
	if _, err := c.store.DeleteExpired(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}

	return errs
}
