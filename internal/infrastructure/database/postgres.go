// Package database provides the PostgreSQL backend: a durable key-value table for
// favorites, theme and the forecast slot, and the forecast fetch audit log.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/sean-rowe/best-bike-day/internal/core/ports"
)

var (
	_ ports.KeyValueStore = (*PostgresDB)(nil)
	_ ports.FetchRecorder = (*PostgresDB)(nil)
)

// PostgresDB wraps the connection pool.
type PostgresDB struct {
	db     *sql.DB
	logger *zap.Logger
}

// Config holds connection and pool settings.
type Config struct {
	Host                  string
	Port                  int
	User                  string
	Password              string
	Database              string
	SSLMode               string
	MaxConnections        int
	MaxIdleConnections    int
	ConnectionMaxLifetime time.Duration
}

// DSN renders the lib/pq connection string.
func (c Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// NewPostgresDB opens the pool and verifies the connection. Schema is managed by
// RunMigrations.
//
// Parameters:
//   - ctx: Context bounding the connection check
//   - cfg: Connection and pool settings
//   - logger: Zap logger for database operations
//
// Returns:
//   - *PostgresDB: Connected database
//   - error: Open or ping failure
func NewPostgresDB(ctx context.Context, cfg Config, logger *zap.Logger) (*PostgresDB, error) {
	db, err := sql.Open("postgres", cfg.DSN())

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConnections)
	db.SetConnMaxLifetime(cfg.ConnectionMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresDB{
		db:     db,
		logger: logger,
	}, nil
}

// DB exposes the pool for migrations.
func (p *PostgresDB) DB() *sql.DB {
	return p.db
}

// Get reads a value from kv_store.
//
// Returns:
//   - []byte: Stored value
//   - error: ports.ErrKeyNotFound if absent, or query error
func (p *PostgresDB) Get(ctx context.Context, key string) ([]byte, error) {
	tracer := otel.Tracer("database")
	ctx, span := tracer.Start(ctx, "KV.Get")

	defer span.End()

	span.SetAttributes(attribute.String("store.key", key))

	var value []byte

	err := p.db.QueryRowContext(ctx, `SELECT value FROM kv_store WHERE key = $1`, key).Scan(&value)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ports.ErrKeyNotFound
	}

	if err != nil {
		span.RecordError(err)
		p.logger.Error("kv get failed", zap.String("key", key), zap.Error(err))

		return nil, err
	}

	return value, nil
}

// Set upserts a value into kv_store.
func (p *PostgresDB) Set(ctx context.Context, key string, value []byte) error {
	tracer := otel.Tracer("database")
	ctx, span := tracer.Start(ctx, "KV.Set")

	defer span.End()

	span.SetAttributes(
		attribute.String("store.key", key),
		attribute.Int("store.value_size", len(value)),
	)

	query := `
        INSERT INTO kv_store (key, value, updated_at)
        VALUES ($1, $2, CURRENT_TIMESTAMP)
        ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
    `

	start := time.Now()

	if _, err := p.db.ExecContext(ctx, query, key, value); err != nil {
		span.RecordError(err)
		p.logger.Error("kv set failed",
			zap.String("key", key),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))

		return err
	}

	p.logger.Debug("kv set",
		zap.String("key", key),
		zap.Duration("duration", time.Since(start)))

	return nil
}

// Delete removes a key; a missing key is not an error.
func (p *PostgresDB) Delete(ctx context.Context, key string) error {
	tracer := otel.Tracer("database")
	ctx, span := tracer.Start(ctx, "KV.Delete")

	defer span.End()

	if _, err := p.db.ExecContext(ctx, `DELETE FROM kv_store WHERE key = $1`, key); err != nil {
		span.RecordError(err)
		return err
	}

	return nil
}

// Clear empties kv_store.
func (p *PostgresDB) Clear(ctx context.Context) error {
	tracer := otel.Tracer("database")
	ctx, span := tracer.Start(ctx, "KV.Clear")

	defer span.End()

	if _, err := p.db.ExecContext(ctx, `DELETE FROM kv_store`); err != nil {
		span.RecordError(err)
		return err
	}

	return nil
}

// RecordFetch appends one fetch cycle to forecast_fetches.
func (p *PostgresDB) RecordFetch(ctx context.Context, record ports.FetchRecord) error {
	tracer := otel.Tracer("database")
	ctx, span := tracer.Start(ctx, "RecordFetch")

	defer span.End()

	span.SetAttributes(
		attribute.String("request_id", record.RequestID),
		attribute.String("location", record.Location),
	)

	query := `
        INSERT INTO forecast_fetches (
            request_id, location, latitude, longitude, days,
            best_score, cache_hit, duration_ms, error_code, superseded
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `

	var errorCode sql.NullString

	if record.ErrorCode != "" {
		errorCode = sql.NullString{String: record.ErrorCode, Valid: true}
	}

	start := time.Now()
	_, err := p.db.ExecContext(ctx, query,
		record.RequestID,
		record.Location,
		record.Latitude,
		record.Longitude,
		record.Days,
		record.BestScore,
		record.CacheHit,
		record.DurationMs,
		errorCode,
		record.Superseded,
	)

	duration := time.Since(start)

	if err != nil {
		p.logger.Error("failed to record fetch",
			zap.Error(err),
			zap.String("request_id", record.RequestID),
			zap.Duration("duration", duration))
		span.RecordError(err)

		return err
	}

	p.logger.Debug("fetch recorded",
		zap.String("request_id", record.RequestID),
		zap.Duration("duration", duration))

	return nil
}

// FetchStats aggregates forecast_fetches rows.
type FetchStats struct {
	TotalFetches    int     `json:"total_fetches"`
	AvgDurationMs   float64 `json:"avg_duration_ms"`
	MaxDurationMs   int64   `json:"max_duration_ms"`
	CacheHitRate    float64 `json:"cache_hit_rate"`
	ErrorRate       float64 `json:"error_rate"`
	SupersededCount int     `json:"superseded_count"`
	AvgBestScore    float64 `json:"avg_best_score"`
}

// GetFetchStats summarizes the fetch cycles recorded since the given time.
func (p *PostgresDB) GetFetchStats(ctx context.Context, since time.Time) (*FetchStats, error) {
	tracer := otel.Tracer("database")
	ctx, span := tracer.Start(ctx, "GetFetchStats")

	defer span.End()

	query := `
        SELECT
            COUNT(*),
            AVG(duration_ms),
            MAX(duration_ms),
            AVG(CASE WHEN cache_hit THEN 1.0 ELSE 0.0 END),
            AVG(CASE WHEN error_code IS NOT NULL THEN 1.0 ELSE 0.0 END),
            COALESCE(SUM(CASE WHEN superseded THEN 1 ELSE 0 END), 0),
            AVG(best_score) FILTER (WHERE error_code IS NULL AND days > 0)
        FROM forecast_fetches
        WHERE timestamp >= $1
    `

	var (
		stats        FetchStats
		avgDuration  sql.NullFloat64
		maxDuration  sql.NullInt64
		cacheHitRate sql.NullFloat64
		errorRate    sql.NullFloat64
		avgBestScore sql.NullFloat64
	)

	err := p.db.QueryRowContext(ctx, query, since).Scan(
		&stats.TotalFetches,
		&avgDuration,
		&maxDuration,
		&cacheHitRate,
		&errorRate,
		&stats.SupersededCount,
		&avgBestScore,
	)

	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query fetch stats: %w", err)
	}

	stats.AvgDurationMs = avgDuration.Float64
	stats.MaxDurationMs = maxDuration.Int64
	stats.CacheHitRate = cacheHitRate.Float64
	stats.ErrorRate = errorRate.Float64
	stats.AvgBestScore = avgBestScore.Float64

	return &stats, nil
}

// Ping checks the connection.
func (p *PostgresDB) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the pool.
func (p *PostgresDB) Close() error {
	return p.db.Close()
}
