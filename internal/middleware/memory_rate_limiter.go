package middleware

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sean-rowe/best-bike-day/internal/core/ports"
)

var _ ports.RateLimitService = (*MemoryRateLimiter)(nil)

// MemoryRateLimiter is the single-instance sliding window limiter used when Redis
// is disabled or unreachable.
type MemoryRateLimiter struct {
	mu      sync.RWMutex
	clients map[string]*clientWindow
	now     func() time.Time
	logger  *zap.Logger
}

// clientWindow tracks the request timestamps of one client.
type clientWindow struct {
	mu       sync.Mutex
	requests []time.Time
	lastSeen time.Time
}

// NewMemoryRateLimiter creates an in-memory limiter. Clients idle for longer than
// idleAfter are evicted until ctx is done.
//
// Parameters:
//   - ctx: Lifetime of the eviction loop
//   - idleAfter: Idle period after which a client's window is dropped
//   - logger: Zap logger for limiter operations
//
// Returns:
//   - *MemoryRateLimiter: In-memory rate limiter
func NewMemoryRateLimiter(ctx context.Context, idleAfter time.Duration, logger *zap.Logger) *MemoryRateLimiter {
	rl := &MemoryRateLimiter{
		clients: make(map[string]*clientWindow),
		now:     time.Now,
		logger:  logger,
	}

	if idleAfter > 0 {
		go rl.evictLoop(ctx, idleAfter)
	}

	return rl
}

// Allow reports whether identifier may make another request within limit per window.
func (rl *MemoryRateLimiter) Allow(ctx context.Context, identifier string, limit int, window time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	client := rl.client(identifier)
	now := rl.now()

	client.mu.Lock()
	defer client.mu.Unlock()

	client.lastSeen = now
	cutoff := now.Add(-window)
	valid := client.requests[:0]

	for _, at := range client.requests {
		if at.After(cutoff) {
			valid = append(valid, at)
		}
	}

	client.requests = valid

	if len(client.requests) >= limit {
		return false, nil
	}

	client.requests = append(client.requests, now)

	return true, nil
}

// Reset clears the window of identifier.
func (rl *MemoryRateLimiter) Reset(ctx context.Context, identifier string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	delete(rl.clients, identifier)

	return nil
}

func (rl *MemoryRateLimiter) client(identifier string) *clientWindow {
	rl.mu.RLock()
	client, exists := rl.clients[identifier]
	rl.mu.RUnlock()

	if exists {
		return client
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if client, exists = rl.clients[identifier]; !exists {
		client = &clientWindow{}
		rl.clients[identifier] = client
	}

	return client
}

// evict drops clients not seen since cutoff and returns how many were removed.
func (rl *MemoryRateLimiter) evict(cutoff time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0

	for identifier, client := range rl.clients {
		client.mu.Lock()
		idle := client.lastSeen.Before(cutoff)
		client.mu.Unlock()

		if idle {
			delete(rl.clients, identifier)
			removed++
		}
	}

	return removed
}

func (rl *MemoryRateLimiter) evictLoop(ctx context.Context, idleAfter time.Duration) {
	ticker := time.NewTicker(idleAfter)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := rl.evict(rl.now().Add(-idleAfter)); removed > 0 {
				rl.logger.Debug("evicted idle rate limit clients", zap.Int("count", removed))
			}
		}
	}
}
