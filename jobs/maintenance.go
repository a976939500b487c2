package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/distro/internal/jobs"
)

// KeyCleaner removes idempotency keys older than a retention window.
type KeyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// CacheBumper invalidates cached catalog lookups.
type CacheBumper interface {
	Bump(ctx context.Context) (int64, error)
}

// IdempotencyCleanupJob purges processed request keys.
type IdempotencyCleanupJob struct {
	Store     KeyCleaner
	Retention time.Duration
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewIdempotencyCleanupJob wires dependencies for the cleanup handler.
func NewIdempotencyCleanupJob(store KeyCleaner, retention time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *IdempotencyCleanupJob {
	return &IdempotencyCleanupJob{Store: store, Retention: retention, Logger: logger, Metrics: metrics}
}

// Handle processes TaskIdempotencyCleanup.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Store == nil {
		return errors.New("idempotency cleanup: store not configured")
	}
	retention := j.Retention
	if len(t.Payload()) > 0 {
		var payload CleanupPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.RetentionHours > 0 {
			retention = time.Duration(payload.RetentionHours) * time.Hour
		}
	}
	if retention <= 0 {
		return asynq.SkipRetry
	}

	tracker := metricsOrDefault(j.Metrics).Track(TaskIdempotencyCleanup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := loggerFor(j.Logger, TaskIdempotencyCleanup)
	purged, err := j.Store.Cleanup(ctx, retention)
	if err != nil {
		logger.Error("cleanup idempotency keys", slog.Any("error", err))
		return err
	}
	metricsOrDefault(j.Metrics).AddPurged(purged)
	logger.Info("idempotency keys purged", slog.Int64("purged", purged), slog.Duration("retention", retention))
	return nil
}

// CatalogRefreshJob bumps the catalog cache version so readers reload.
type CatalogRefreshJob struct {
	Cache   CacheBumper
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewCatalogRefreshJob wires dependencies for the refresh handler.
func NewCatalogRefreshJob(cache CacheBumper, logger *slog.Logger, metrics *jobmetrics.Metrics) *CatalogRefreshJob {
	return &CatalogRefreshJob{Cache: cache, Logger: logger, Metrics: metrics}
}

// Handle processes TaskCatalogRefresh.
func (j *CatalogRefreshJob) Handle(ctx context.Context, _ *asynq.Task) (resultErr error) {
	if j == nil || j.Cache == nil {
		return errors.New("catalog refresh: cache not configured")
	}
	tracker := metricsOrDefault(j.Metrics).Track(TaskCatalogRefresh)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	version, err := j.Cache.Bump(ctx)
	if err != nil {
		loggerFor(j.Logger, TaskCatalogRefresh).Error("bump catalog cache", slog.Any("error", err))
		return err
	}
	loggerFor(j.Logger, TaskCatalogRefresh).Info("catalog cache refreshed", slog.Int64("version", version))
	return nil
}

func loggerFor(logger *slog.Logger, job string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String("job", job))
}

func metricsOrDefault(m *jobmetrics.Metrics) *jobmetrics.Metrics {
	if m != nil {
		return m
	}
	return defaultJobMetrics
}
