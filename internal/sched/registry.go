// Package sched runs the recurring request-log retention cleanup.
// Crawls are not scheduled here; ingestion is triggered externally via
// the ingest command.
package sched

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/hoopindex/ratings-pipeline/internal/config"
	"github.com/hoopindex/ratings-pipeline/internal/metrics"
	"github.com/hoopindex/ratings-pipeline/internal/ratings"
)

// Registry owns the cron scheduler and the tasks registered on it.
type Registry struct {
	cron      *cron.Cron
	logs      ratings.RequestLogStore
	clock     ratings.Clock
	logger    *zap.Logger
	retention config.RetentionConfig
}

// New constructs a Registry; Start must be called to begin scheduling.
func New(logs ratings.RequestLogStore, clock ratings.Clock, logger *zap.Logger, retention config.RetentionConfig) *Registry {
	return &Registry{
		cron:      cron.New(),
		logs:      logs,
		clock:     clock,
		logger:    logger,
		retention: retention,
	}
}

// AddDailyCleanup schedules the retention cleanup on the configured
// cron expression.
func (r *Registry) AddDailyCleanup() error {
	_, err := r.cron.AddFunc(r.retention.Schedule, func() {
		if _, err := r.RunCleanup(context.Background()); err != nil {
			r.logger.Error("scheduled cleanup failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule cleanup %q: %w", r.retention.Schedule, err)
	}
	return nil
}

// RunCleanup purges request logs older than the retention horizon. It
// is also invoked directly by the cleanup CLI command, independent of
// the scheduler.
func (r *Registry) RunCleanup(ctx context.Context) (int, error) {
	cutoff := r.clock.Now().Add(-r.retention.MaxAge())
	purged, err := r.logs.PurgeRequestLogsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge request logs: %w", err)
	}
	metrics.AddRequestLogsPurged(purged)
	r.logger.Info("request log cleanup finished",
		zap.Time("cutoff", cutoff),
		zap.Int("purged", purged),
	)
	return purged, nil
}

// Start begins running scheduled tasks in their own goroutines.
func (r *Registry) Start() {
	r.cron.Start()
}

// Stop halts scheduling and waits for running tasks to finish.
func (r *Registry) Stop(ctx context.Context) error {
	select {
	case <-r.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}
