package cache

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/sean-rowe/best-bike-day/internal/core/ports"
)

// keyPrefix namespaces every key so Clear never touches foreign data.
const keyPrefix = "bestbikeday:"

// RedisStore implements the key-value store on Redis. Values have no expiry;
// forecast freshness is decided by ForecastCache.
type RedisStore struct {
	client *redis.Client
	logger *zap.Logger
}

// Config holds Redis connection and performance settings.
type Config struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewRedisClient opens a client and verifies the connection.
//
// Parameters:
//   - ctx: Context bounding the connection check
//   - cfg: Redis connection configuration
//
// Returns:
//   - *redis.Client: Connected client
//   - error: Ping error if Redis is unavailable
func NewRedisClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	return rdb, nil
}

// NewRedisStore wraps a connected client.
func NewRedisStore(client *redis.Client, logger *zap.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		logger: logger,
	}
}

// Get retrieves a value from Redis.
//
// Returns:
//   - []byte: Stored value if found
//   - error: ports.ErrKeyNotFound if not found, or Redis error
func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	tracer := otel.Tracer("store")
	ctx, span := tracer.Start(ctx, "RedisStore.Get")

	defer span.End()

	span.SetAttributes(attribute.String("store.key", key))
	start := time.Now()
	result, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	duration := time.Since(start)

	if errors.Is(err, redis.Nil) {
		span.SetAttributes(attribute.Bool("store.found", false))

		r.logger.Debug("redis store miss",
			zap.String("key", key),
			zap.Duration("duration", duration))

		return nil, ports.ErrKeyNotFound
	}

	if err != nil {
		span.RecordError(err)

		r.logger.Error("redis store get error",
			zap.String("key", key),
			zap.Error(err))

		return nil, err
	}

	span.SetAttributes(attribute.Bool("store.found", true))

	return result, nil
}

// Set stores a value without expiry.
func (r *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	tracer := otel.Tracer("store")
	ctx, span := tracer.Start(ctx, "RedisStore.Set")

	defer span.End()

	span.SetAttributes(
		attribute.String("store.key", key),
		attribute.Int("store.value_size", len(value)),
	)

	start := time.Now()
	err := r.client.Set(ctx, keyPrefix+key, value, 0).Err()

	if err != nil {
		span.RecordError(err)

		r.logger.Error("redis store set error",
			zap.String("key", key),
			zap.Error(err))

		return err
	}

	r.logger.Debug("redis store set",
		zap.String("key", key),
		zap.Duration("duration", time.Since(start)))

	return nil
}

// Delete removes a key.
func (r *RedisStore) Delete(ctx context.Context, key string) error {
	tracer := otel.Tracer("store")
	ctx, span := tracer.Start(ctx, "RedisStore.Delete")

	defer span.End()

	span.SetAttributes(attribute.String("store.key", key))

	if err := r.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		span.RecordError(err)

		r.logger.Error("redis store delete error",
			zap.String("key", key),
			zap.Error(err))

		return err
	}

	return nil
}

// Clear removes every key of this service.
func (r *RedisStore) Clear(ctx context.Context) error {
	tracer := otel.Tracer("store")
	ctx, span := tracer.Start(ctx, "RedisStore.Clear")

	defer span.End()

	iter := r.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()

	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			span.RecordError(err)
			return err
		}
	}

	if err := iter.Err(); err != nil {
		span.RecordError(err)
		r.logger.Error("redis store clear error", zap.Error(err))

		return err
	}

	r.logger.Info("redis store cleared")

	return nil
}

// Close closes the Redis client connection.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
