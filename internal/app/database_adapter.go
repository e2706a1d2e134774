package app

import (
	"context"
	"time"

	"github.com/sean-rowe/best-bike-day/internal/core/ports"
	"github.com/sean-rowe/best-bike-day/internal/infrastructure/database"
)

// fetchStore is the subset of the PostgreSQL backend the adapter needs.
type fetchStore interface {
	RecordFetch(ctx context.Context, record ports.FetchRecord) error
	GetFetchStats(ctx context.Context, since time.Time) (*database.FetchStats, error)
}

// DatabaseAdapter exposes the fetch audit log to the controller and the stats endpoint.
type DatabaseAdapter struct {
	db fetchStore
}

// NewDatabaseAdapter creates a new database adapter.
func NewDatabaseAdapter(db fetchStore) *DatabaseAdapter {
	return &DatabaseAdapter{db: db}
}

// RecordFetch implements ports.FetchRecorder.
func (d *DatabaseAdapter) RecordFetch(ctx context.Context, record ports.FetchRecord) error {
	return d.db.RecordFetch(ctx, record)
}

// FetchStats summarises fetch cycles since the given time for the stats endpoint.
func (d *DatabaseAdapter) FetchStats(ctx context.Context, since time.Time) (map[string]interface{}, error) {
	stats, err := d.db.GetFetchStats(ctx, since)

	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"since":            since.UTC().Format(time.RFC3339),
		"total_fetches":    stats.TotalFetches,
		"avg_duration_ms":  stats.AvgDurationMs,
		"max_duration_ms":  stats.MaxDurationMs,
		"cache_hit_rate":   stats.CacheHitRate,
		"error_rate":       stats.ErrorRate,
		"superseded_count": stats.SupersededCount,
		"avg_best_score":   stats.AvgBestScore,
	}, nil
}
