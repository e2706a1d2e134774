package app

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/sean-rowe/best-bike-day/internal/adapters/primary/rest"
	"github.com/sean-rowe/best-bike-day/internal/middleware"
	"github.com/sean-rowe/best-bike-day/internal/version"
)

// statsWindow bounds the fetch audit summary served at /stats.
const statsWindow = 24 * time.Hour

const readinessTimeout = 2 * time.Second

// FetchStatsSource summarises recorded fetch cycles.
type FetchStatsSource interface {
	FetchStats(ctx context.Context, since time.Time) (map[string]interface{}, error)
}

// BreakerStatsSource reports circuit breaker state.
type BreakerStatsSource interface {
	Stats() map[string]interface{}
}

// RouterDeps collects everything the HTTP surface is built from. Optional
// collaborators are nil when their backend is disabled.
type RouterDeps struct {
	Weather   *rest.WeatherHandler
	Favorites *rest.FavoritesHandler
	Theme     *rest.ThemeHandler

	RateLimit      *middleware.RateLimitMiddleware
	Observability  *middleware.ObservabilityMiddleware
	MetricsHandler http.Handler
	FetchStats     FetchStatsSource
	Breakers       BreakerStatsSource

	// ReadyChecks are probed by /health/ready, keyed by dependency name
	ReadyChecks map[string]func(ctx context.Context) error

	Logger *zap.Logger
}

// NewRouter creates and configures the HTTP router with all middleware.
//
// Parameters:
//   - deps: Handlers, middleware and optional stats sources
//
// Returns:
//   - http.Handler: Configured router with all routes and middleware
func NewRouter(deps RouterDeps) http.Handler {
	router := mux.NewRouter()
	logger := deps.Logger

	if deps.Observability != nil {
		router.Use(deps.Observability.RecoveryMiddleware)
		router.Use(deps.Observability.TracingMiddleware)
		router.Use(deps.Observability.MetricsMiddleware)
		router.Use(deps.Observability.LoggingMiddleware)
	}

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	router.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, http.StatusOK, map[string]string{"status": "alive"})
	}).Methods(http.MethodGet)

	router.HandleFunc("/health/ready", readinessHandler(deps.ReadyChecks, logger)).Methods(http.MethodGet)

	router.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, http.StatusOK, version.Get())
	}).Methods(http.MethodGet)

	if deps.MetricsHandler != nil {
		router.Handle("/metrics", deps.MetricsHandler).Methods(http.MethodGet)
	}

	router.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		stats := map[string]interface{}{}

		if deps.Breakers != nil {
			stats["circuit_breakers"] = deps.Breakers.Stats()
		}

		if deps.FetchStats != nil {
			fetches, err := deps.FetchStats.FetchStats(r.Context(), time.Now().Add(-statsWindow))

			if err != nil {
				logger.Warn("failed to load fetch stats", zap.Error(err))
				stats["fetches_error"] = "fetch statistics unavailable"
			} else {
				stats["fetches"] = fetches
			}
		}

		writeJSON(w, logger, http.StatusOK, stats)
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()

	if deps.RateLimit != nil {
		api.Use(deps.RateLimit.Middleware)
	}

	api.HandleFunc("/weather", deps.Weather.GetWeather).Methods(http.MethodGet)
	api.HandleFunc("/weather/stream", deps.Weather.StreamWeather).Methods(http.MethodGet)
	api.HandleFunc("/location", deps.Weather.GetLocation).Methods(http.MethodGet)
	api.HandleFunc("/location", deps.Weather.SelectLocation).Methods(http.MethodPost)
	api.HandleFunc("/refresh", deps.Weather.Refresh).Methods(http.MethodPost)
	api.HandleFunc("/recommendations", deps.Weather.GetRecommendations).Methods(http.MethodGet)
	api.HandleFunc("/locations/search", deps.Weather.SearchLocations).Methods(http.MethodGet)

	api.HandleFunc("/favorites", deps.Favorites.List).Methods(http.MethodGet)
	api.HandleFunc("/favorites", deps.Favorites.Add).Methods(http.MethodPost)
	api.HandleFunc("/favorites", deps.Favorites.Remove).Methods(http.MethodDelete)

	api.HandleFunc("/theme", deps.Theme.Get).Methods(http.MethodGet)
	api.HandleFunc("/theme", deps.Theme.Set).Methods(http.MethodPut)

	return router
}

// readinessHandler reports 503 while any dependency check fails.
func readinessHandler(checks map[string]func(ctx context.Context) error, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		ready := true
		results := map[string]bool{"server": true}

		for name, check := range checks {
			err := check(ctx)
			results[name] = err == nil

			if err != nil {
				ready = false
				logger.Warn("readiness check failed", zap.String("dependency", name), zap.Error(err))
			}
		}

		status := http.StatusOK

		if !ready {
			status = http.StatusServiceUnavailable
		}

		writeJSON(w, logger, status, map[string]interface{}{"ready": ready, "checks": results})
	}
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}
