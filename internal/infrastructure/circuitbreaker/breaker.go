// Package circuitbreaker protects provider calls with Sony's gobreaker.
// Breakers are instrumented with OpenTelemetry spans and log every state change.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Breaker wraps a gobreaker.CircuitBreaker with tracing and logging.
type Breaker struct {
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
	name    string
}

// Config defines when the breaker opens and how long it stays open.
type Config struct {
	Name          string
	MaxRequests   uint32
	Interval      time.Duration
	Timeout       time.Duration
	MinRequests   uint32
	FailureRatio  float64
	IsSuccessful  func(err error) bool
	OnStateChange func(name string, from gobreaker.State, to gobreaker.State)
}

// NewBreaker creates a breaker. The breaker trips once at least MinRequests (default 3)
// were counted in the interval and the failure ratio reached FailureRatio (default 0.5).
// Cancelled calls never count as failures.
//
// Parameters:
//   - cfg: Breaker thresholds and callbacks
//   - logger: Zap logger for state changes
//
// Returns:
//   - *Breaker: Configured breaker
func NewBreaker(cfg Config, logger *zap.Logger) *Breaker {
	minRequests := cfg.MinRequests

	if minRequests == 0 {
		minRequests = 3
	}

	failureRatio := cfg.FailureRatio

	if failureRatio <= 0 {
		failureRatio = 0.5
	}

	isSuccessful := cfg.IsSuccessful

	if isSuccessful == nil {
		isSuccessful = func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		}
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}

			return float64(counts.TotalFailures)/float64(counts.Requests) >= failureRatio
		},
		IsSuccessful: isSuccessful,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))

			if cfg.OnStateChange != nil {
				cfg.OnStateChange(name, from, to)
			}
		},
	}

	return &Breaker{
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
		name:    cfg.Name,
	}
}

// Execute runs fn through the breaker.
//
// Returns:
//   - error: fn's error, or gobreaker.ErrOpenState / ErrTooManyRequests when rejected
func (b *Breaker) Execute(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	_, err := Call(ctx, b, operation, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})

	return err
}

// Call runs fn through breaker b and returns its result.
func Call[T any](ctx context.Context, b *Breaker, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	tracer := otel.Tracer("circuit-breaker")
	ctx, span := tracer.Start(ctx, "CircuitBreaker.Execute")

	defer span.End()

	span.SetAttributes(
		attribute.String("circuit_breaker.name", b.name),
		attribute.String("circuit_breaker.operation", operation),
		attribute.String("circuit_breaker.state", b.breaker.State().String()),
	)

	result, err := b.breaker.Execute(func() (interface{}, error) {
		return fn(ctx)
	})

	span.SetAttributes(
		attribute.String("circuit_breaker.final_state", b.breaker.State().String()),
		attribute.Bool("circuit_breaker.success", err == nil),
	)

	if err != nil {
		span.RecordError(err)

		b.logger.Warn("circuit breaker execution failed",
			zap.String("name", b.name),
			zap.String("operation", operation),
			zap.String("state", b.breaker.State().String()),
			zap.Error(err))

		var zero T

		return zero, err
	}

	value, _ := result.(T)

	return value, nil
}

// IsRejected reports whether err means the breaker refused the call.
func IsRejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// Name returns the breaker name.
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.breaker.State()
}

// Counts returns the request counts of the current interval.
func (b *Breaker) Counts() gobreaker.Counts {
	return b.breaker.Counts()
}

// Manager hands out one breaker per provider operation.
type Manager struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
	defaults Config
	logger   *zap.Logger
}

// NewManager creates a manager whose breakers start from defaults.
//
// Parameters:
//   - defaults: Settings applied to every breaker the manager creates
//   - logger: Zap logger for breaker operations
//
// Returns:
//   - *Manager: Breaker manager
func NewManager(defaults Config, logger *zap.Logger) *Manager {
	return &Manager{
		breakers: make(map[string]*Breaker),
		defaults: defaults,
		logger:   logger,
	}
}

// Get returns the breaker called name, creating it on first use.
func (m *Manager) Get(name string) *Breaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if breaker, exists := m.breakers[name]; exists {
		return breaker
	}

	cfg := m.defaults
	cfg.Name = name
	breaker := NewBreaker(cfg, m.logger)
	m.breakers[name] = breaker

	return breaker
}

// Stats returns state and counts of every breaker, keyed by name.
func (m *Manager) Stats() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := make(map[string]interface{}, len(m.breakers))

	for name, breaker := range m.breakers {
		counts := breaker.Counts()
		stats[name] = map[string]interface{}{
			"state":                 breaker.State().String(),
			"requests":              counts.Requests,
			"total_successes":       counts.TotalSuccesses,
			"total_failures":        counts.TotalFailures,
			"consecutive_successes": counts.ConsecutiveSuccesses,
			"consecutive_failures":  counts.ConsecutiveFailures,
		}
	}

	return stats
}
