// Package cache provides the forecast cache slot and the key-value stores backing it.
// Stores include an in-memory go-cache store with optional snapshot file and a
// Redis store, both instrumented with OpenTelemetry spans.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/sean-rowe/best-bike-day/internal/core/domain"
	"github.com/sean-rowe/best-bike-day/internal/core/ports"
)

const (
	// ForecastKey is the store key of the single forecast slot.
	ForecastKey = "weather_cache"

	// DefaultTTL is how long a written forecast stays valid.
	DefaultTTL = 30 * time.Minute
)

// ForecastCache is the single-slot forecast cache. Expiry is logical: an entry
// older than the TTL reads as absent but stays in the store until Purge.
type ForecastCache struct {
	store  ports.KeyValueStore
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger

	// mu serializes Write against Purge's check-then-delete.
	mu sync.Mutex
}

// NewForecastCache creates a forecast cache over store.
//
// Parameters:
//   - store: Durable key-value store holding the slot
//   - ttl: Validity window of a written entry; non-positive selects DefaultTTL
//   - now: Clock used for stamping and expiry; nil selects time.Now
//   - logger: Zap logger for cache operations
//
// Returns:
//   - *ForecastCache: Forecast cache
func NewForecastCache(store ports.KeyValueStore, ttl time.Duration, now func() time.Time, logger *zap.Logger) *ForecastCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	if now == nil {
		now = time.Now
	}

	return &ForecastCache{
		store:  store,
		ttl:    ttl,
		now:    now,
		logger: logger,
	}
}

// Read returns the slot if present and within the TTL. Storage and decode
// failures read as a miss.
func (c *ForecastCache) Read(ctx context.Context) (*domain.CacheEntry, bool) {
	tracer := otel.Tracer("cache")
	ctx, span := tracer.Start(ctx, "ForecastCache.Read")

	defer span.End()

	entry, err := c.load(ctx)

	if err != nil {
		if !errors.Is(err, ports.ErrKeyNotFound) {
			span.RecordError(err)
			c.logger.Warn("forecast cache read failed, treating as miss", zap.Error(err))
		}

		span.SetAttributes(attribute.Bool("cache.hit", false))

		return nil, false
	}

	if !c.IsValid(entry) {
		span.SetAttributes(attribute.Bool("cache.hit", false), attribute.Bool("cache.expired", true))
		c.logger.Debug("forecast cache expired", zap.Time("fetched_at", entry.FetchedAt()))

		return nil, false
	}

	span.SetAttributes(attribute.Bool("cache.hit", true))
	c.logger.Debug("forecast cache hit", zap.Int("days", len(entry.Forecasts)))

	return entry, true
}

// Write overwrites the slot with forecasts for location, stamped with the current time.
func (c *ForecastCache) Write(ctx context.Context, location domain.Location, forecasts []domain.ScoredForecast) error {
	tracer := otel.Tracer("cache")
	ctx, span := tracer.Start(ctx, "ForecastCache.Write")

	defer span.End()

	if forecasts == nil {
		forecasts = []domain.ScoredForecast{}
	}

	entry := domain.CacheEntry{
		Forecasts:            forecasts,
		FetchedAtEpochMillis: c.now().UnixMilli(),
		LocationKey:          location.IdentityKey(),
	}

	data, err := json.Marshal(entry)

	if err != nil {
		span.RecordError(err)
		return domain.NewStorageError("encode", err)
	}

	span.SetAttributes(attribute.Int("cache.value_size", len(data)))

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Set(ctx, ForecastKey, data); err != nil {
		span.RecordError(err)
		return domain.NewStorageError("write", err)
	}

	c.logger.Debug("forecast cache written",
		zap.String("location", location.DisplayName()),
		zap.Int("days", len(forecasts)))

	return nil
}

// IsValid reports whether entry is within the TTL.
func (c *ForecastCache) IsValid(entry *domain.CacheEntry) bool {
	if entry == nil {
		return false
	}

	age := c.now().UnixMilli() - entry.FetchedAtEpochMillis

	return age <= c.ttl.Milliseconds()
}

// Purge deletes the slot if it has expired. It returns whether anything was removed.
func (c *ForecastCache) Purge(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, err := c.load(ctx)

	if errors.Is(err, ports.ErrKeyNotFound) {
		return false, nil
	}

	if err == nil && c.IsValid(entry) {
		return false, nil
	}

	if err := c.store.Delete(ctx, ForecastKey); err != nil {
		return false, domain.NewStorageError("delete", err)
	}

	c.logger.Info("expired forecast cache purged")

	return true, nil
}

func (c *ForecastCache) load(ctx context.Context) (*domain.CacheEntry, error) {
	data, err := c.store.Get(ctx, ForecastKey)

	if err != nil {
		return nil, err
	}

	var entry domain.CacheEntry

	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}

	return &entry, nil
}
