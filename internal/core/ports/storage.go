package ports

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned by KeyValueStore.Get when the key holds no value.
var ErrKeyNotFound = errors.New("key not found")

// KeyValueStore is the durable storage used for favorites, the forecast cache slot
// and presentation settings. Each key is read and written atomically.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// RateLimitService decides whether a client may issue another API request.
type RateLimitService interface {
	Allow(ctx context.Context, identifier string, limit int, window time.Duration) (bool, error)
	Reset(ctx context.Context, identifier string) error
}
