package scheduler

import (
	"context"

	"go.uber.org/zap"
)

// Purger removes an expired cache entry, reporting whether anything was removed.
type Purger interface {
	Purge(ctx context.Context) (bool, error)
}

// CachePurgeJob deletes the forecast cache slot once it has expired, so stale
// forecasts do not linger in durable storage between app sessions.
type CachePurgeJob struct {
	cache  Purger
	logger *zap.Logger
}

// NewCachePurgeJob creates the purge job.
func NewCachePurgeJob(cache Purger, logger *zap.Logger) *CachePurgeJob {
	return &CachePurgeJob{cache: cache, logger: logger}
}

// Name implements Job.
func (j *CachePurgeJob) Name() string {
	return "forecast-cache-purge"
}

// Run implements Job.
func (j *CachePurgeJob) Run(ctx context.Context) error {
	purged, err := j.cache.Purge(ctx)

	if err != nil {
		return err
	}

	if purged {
		j.logger.Info("expired forecast cache entry purged")
	}

	return nil
}
