// Package ratelimit provides distributed API rate limiting on Redis.
// Each client owns a sorted set of request timestamps; a Lua script trims, counts
// and appends atomically so every service instance sees the same window.
package ratelimit

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/sean-rowe/best-bike-day/internal/core/ports"
)

const keyPrefix = "bestbikeday:ratelimit:"

// slidingWindow returns 1 when the request fits in the window and records it.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)

if redis.call('ZCARD', key) < limit then
    redis.call('ZADD', key, now, member)
    redis.call('PEXPIRE', key, window)
    return 1
end

return 0
`)

var _ ports.RateLimitService = (*RedisRateLimiter)(nil)

// RedisRateLimiter implements ports.RateLimitService with a sliding window in Redis.
type RedisRateLimiter struct {
	client *redis.Client
	now    func() time.Time
	logger *zap.Logger
}

// NewRedisRateLimiter creates a Redis-based rate limiter.
//
// Parameters:
//   - client: Redis client for distributed state
//   - logger: Zap logger for rate limiting events
//
// Returns:
//   - *RedisRateLimiter: Redis rate limiter
func NewRedisRateLimiter(client *redis.Client, logger *zap.Logger) *RedisRateLimiter {
	return &RedisRateLimiter{
		client: client,
		now:    time.Now,
		logger: logger,
	}
}

// Allow records a request of identifier and reports whether it is within limit
// requests per window. Windows are tracked with millisecond precision.
//
// Returns:
//   - bool: true if the request is allowed
//   - error: Redis error if the script failed
func (r *RedisRateLimiter) Allow(ctx context.Context, identifier string, limit int, window time.Duration) (bool, error) {
	tracer := otel.Tracer("ratelimit")
	ctx, span := tracer.Start(ctx, "RateLimit.Allow")

	defer span.End()

	span.SetAttributes(
		attribute.String("ratelimit.identifier", identifier),
		attribute.Int("ratelimit.limit", limit),
		attribute.String("ratelimit.window", window.String()),
	)

	result, err := slidingWindow.Run(ctx, r.client,
		[]string{keyPrefix + identifier},
		limit,
		window.Milliseconds(),
		r.now().UnixMilli(),
		uuid.New().String(),
	).Int()

	if err != nil {
		span.RecordError(err)

		r.logger.Error("rate limit script error",
			zap.String("identifier", identifier),
			zap.Error(err))

		return false, err
	}

	allowed := result == 1
	span.SetAttributes(attribute.Bool("ratelimit.allowed", allowed))

	if !allowed {
		r.logger.Debug("rate limit exceeded",
			zap.String("identifier", identifier),
			zap.Int("limit", limit))
	}

	return allowed, nil
}

// Reset clears the history of identifier.
func (r *RedisRateLimiter) Reset(ctx context.Context, identifier string) error {
	tracer := otel.Tracer("ratelimit")
	ctx, span := tracer.Start(ctx, "RateLimit.Reset")

	defer span.End()

	span.SetAttributes(attribute.String("ratelimit.identifier", identifier))

	if err := r.client.Del(ctx, keyPrefix+identifier).Err(); err != nil {
		span.RecordError(err)

		r.logger.Error("rate limit reset error",
			zap.String("identifier", identifier),
			zap.Error(err))

		return err
	}

	r.logger.Debug("rate limit reset", zap.String("identifier", identifier))

	return nil
}
