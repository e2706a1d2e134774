package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockRateLimitService is a mock implementation of the RateLimitService interface.
type MockRateLimitService struct {
	mock.Mock
}

func (m *MockRateLimitService) Allow(ctx context.Context, identifier string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, identifier, limit, window)
	return args.Bool(0), args.Error(1)
}

func (m *MockRateLimitService) Reset(ctx context.Context, identifier string) error {
	return m.Called(ctx, identifier).Error(0)
}

type requestSample struct {
	method string
	path   string
	status int
}

type sampleRecorder struct {
	mu      sync.Mutex
	samples []requestSample
}

func (s *sampleRecorder) RecordRequest(_ context.Context, method, path string, statusCode int, _ time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.samples = append(s.samples, requestSample{method: method, path: path, status: statusCode})
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
})

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		expected   string
	}{
		{name: "remote addr", remoteAddr: "192.0.2.1:1234", expected: "192.0.2.1"},
		{name: "forwarded for first hop", remoteAddr: "10.0.0.1:1", headers: map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}, expected: "203.0.113.9"},
		{name: "real ip", remoteAddr: "10.0.0.1:1", headers: map[string]string{"X-Real-IP": "198.51.100.4"}, expected: "198.51.100.4"},
		{name: "invalid forwarded ignored", remoteAddr: "10.0.0.1:1", headers: map[string]string{"X-Forwarded-For": "garbage"}, expected: "10.0.0.1"},
		{name: "remote without port", remoteAddr: "192.0.2.7", expected: "192.0.2.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr

			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			assert.Equal(t, tt.expected, GetClientIP(req))
		})
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := NewMemoryRateLimiter(context.Background(), 0, zap.NewNop())
	handler := NewRateLimitMiddleware(limiter, 2, time.Minute, zap.NewNop()).Middleware(okHandler)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/weather", nil)
		req.RemoteAddr = "192.0.2.1:5000"

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/weather", nil)
	req.RemoteAddr = "192.0.2.1:5001"

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"RATE_LIMITED","message":"Too many requests, slow down"}`, rec.Body.String())

	other := httptest.NewRequest(http.MethodGet, "/api/v1/weather", nil)
	other.RemoteAddr = "192.0.2.2:5000"
	rec = httptest.NewRecorder()

	handler.ServeHTTP(rec, other)

	assert.Equal(t, http.StatusOK, rec.Code, "limits are per client")
}

func TestRateLimitMiddleware_FailsOpen(t *testing.T) {
	limiter := new(MockRateLimitService)
	limiter.On("Allow", mock.Anything, "192.0.2.1", 10, time.Second).Return(false, errors.New("redis down"))

	handler := NewRateLimitMiddleware(limiter, 10, time.Second, zap.NewNop()).Middleware(okHandler)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:80"

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	limiter.AssertExpectations(t)
}

func TestMemoryRateLimiter_WindowSlides(t *testing.T) {
	limiter := NewMemoryRateLimiter(context.Background(), 0, zap.NewNop())
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	allowed, _ := limiter.Allow(ctx, "c", 1, time.Second)
	assert.True(t, allowed)

	allowed, _ = limiter.Allow(ctx, "c", 1, time.Second)
	assert.False(t, allowed)

	now = now.Add(1100 * time.Millisecond)

	allowed, _ = limiter.Allow(ctx, "c", 1, time.Second)
	assert.True(t, allowed)

	require.NoError(t, limiter.Reset(ctx, "c"))

	allowed, _ = limiter.Allow(ctx, "c", 1, time.Second)
	assert.True(t, allowed)
}

func TestMemoryRateLimiter_EvictsIdleClients(t *testing.T) {
	limiter := NewMemoryRateLimiter(context.Background(), 0, zap.NewNop())
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	_, _ = limiter.Allow(ctx, "old", 5, time.Minute)
	now = now.Add(10 * time.Minute)
	_, _ = limiter.Allow(ctx, "fresh", 5, time.Minute)

	assert.Equal(t, 1, limiter.evict(now.Add(-5*time.Minute)))
	assert.Len(t, limiter.clients, 1)
}

func TestMemoryRateLimiter_CancelledContext(t *testing.T) {
	limiter := NewMemoryRateLimiter(context.Background(), 0, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := limiter.Allow(ctx, "c", 1, time.Second)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestObservabilityMiddleware_CorrelationAndMetrics(t *testing.T) {
	recorder := &sampleRecorder{}
	obs := NewObservabilityMiddleware(recorder, zap.NewNop())

	router := mux.NewRouter()
	router.Use(obs.TracingMiddleware, obs.MetricsMiddleware, obs.LoggingMiddleware)
	router.HandleFunc("/api/v1/favorites", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "corr-123", GetCorrelationID(r.Context()))
		assert.NotEmpty(t, GetRequestID(r.Context()))
		w.WriteHeader(http.StatusCreated)
	}).Methods(http.MethodPost)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/favorites", nil)
	req.Header.Set("X-Correlation-ID", "corr-123")

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "corr-123", rec.Header().Get("X-Correlation-ID"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, []requestSample{{method: "POST", path: "/api/v1/favorites", status: 201}}, recorder.samples)
}

func TestObservabilityMiddleware_GeneratesCorrelationID(t *testing.T) {
	obs := NewObservabilityMiddleware(nil, zap.NewNop())
	rec := httptest.NewRecorder()

	obs.TracingMiddleware(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Len(t, rec.Header().Get("X-Correlation-ID"), 36)
}

func TestRecoveryMiddleware(t *testing.T) {
	obs := NewObservabilityMiddleware(nil, zap.NewNop())
	panicking := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	obs.RecoveryMiddleware(panicking).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
}

func TestResponseWriter_Flush(t *testing.T) {
	rec := httptest.NewRecorder()
	wrapped := wrap(rec)

	_, _ = wrapped.Write([]byte("data: 1\n\n"))
	wrapped.Flush()

	assert.True(t, rec.Flushed)
	assert.Equal(t, int64(9), wrapped.bytesWritten)

	var _ http.Flusher = wrapped
}
