package middleware

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/sean-rowe/best-bike-day/internal/core/ports"
)

// RateLimitMiddleware rejects clients exceeding limit requests per window with 429.
// Limiter failures let the request through.
type RateLimitMiddleware struct {
	limiter ports.RateLimitService
	limit   int
	window  time.Duration
	logger  *zap.Logger
}

// NewRateLimitMiddleware creates the middleware.
//
// Parameters:
//   - limiter: Memory or Redis rate limit backend
//   - limit: Requests allowed per window and client
//   - window: Sliding window length
//   - logger: Zap logger for limiter failures
//
// Returns:
//   - *RateLimitMiddleware: Configured middleware
func NewRateLimitMiddleware(limiter ports.RateLimitService, limit int, window time.Duration, logger *zap.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter: limiter,
		limit:   limit,
		window:  window,
		logger:  logger,
	}
}

// Middleware applies the limit keyed by client IP.
func (m *RateLimitMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := GetClientIP(r)
		allowed, err := m.limiter.Allow(r.Context(), clientIP, m.limit, m.window)

		if err != nil {
			m.logger.Warn("rate limiter unavailable, allowing request",
				zap.String("client_ip", clientIP),
				zap.Error(err))

			next.ServeHTTP(w, r)

			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.limit))

		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(m.window.Seconds())))
			writeJSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests, slow down")

			return
		}

		next.ServeHTTP(w, r)
	})
}
