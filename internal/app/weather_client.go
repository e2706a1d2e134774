package app

import (
	"context"

	"github.com/sean-rowe/best-bike-day/internal/core/domain"
	"github.com/sean-rowe/best-bike-day/internal/core/ports"
	"github.com/sean-rowe/best-bike-day/internal/infrastructure/circuitbreaker"
)

var (
	_ ports.ForecastSource  = (*CircuitBreakerForecastSource)(nil)
	_ ports.GeocodingSource = (*CircuitBreakerGeocoder)(nil)
)

// CircuitBreakerForecastSource wraps a forecast source with circuit breaker protection.
// A rejected call surfaces as a provider error so the controller can map it to a message.
type CircuitBreakerForecastSource struct {
	source ports.ForecastSource
	cb     *circuitbreaker.Breaker
}

// NewCircuitBreakerForecastSource wraps source with cb.
func NewCircuitBreakerForecastSource(source ports.ForecastSource, cb *circuitbreaker.Breaker) *CircuitBreakerForecastSource {
	return &CircuitBreakerForecastSource{source: source, cb: cb}
}

// GetDailyForecast retrieves the daily forecast through the breaker.
func (c *CircuitBreakerForecastSource) GetDailyForecast(ctx context.Context, coords domain.Coordinates) ([]domain.DailyObservation, error) {
	days, err := circuitbreaker.Call(ctx, c.cb, "get-daily-forecast", func(ctx context.Context) ([]domain.DailyObservation, error) {
		return c.source.GetDailyForecast(ctx, coords)
	})

	return days, mapRejection(err)
}

// CircuitBreakerGeocoder wraps a geocoding source with circuit breaker protection.
type CircuitBreakerGeocoder struct {
	geocoder ports.GeocodingSource
	cb       *circuitbreaker.Breaker
}

// NewCircuitBreakerGeocoder wraps geocoder with cb.
func NewCircuitBreakerGeocoder(geocoder ports.GeocodingSource, cb *circuitbreaker.Breaker) *CircuitBreakerGeocoder {
	return &CircuitBreakerGeocoder{geocoder: geocoder, cb: cb}
}

// SearchByName searches places through the breaker.
func (c *CircuitBreakerGeocoder) SearchByName(ctx context.Context, query string, limit int) ([]domain.Location, error) {
	locations, err := circuitbreaker.Call(ctx, c.cb, "search-by-name", func(ctx context.Context) ([]domain.Location, error) {
		return c.geocoder.SearchByName(ctx, query, limit)
	})

	return locations, mapRejection(err)
}

// SearchByPostalCode resolves a postal code through the breaker.
func (c *CircuitBreakerGeocoder) SearchByPostalCode(ctx context.Context, code string) (*domain.Location, error) {
	location, err := circuitbreaker.Call(ctx, c.cb, "search-by-postal-code", func(ctx context.Context) (*domain.Location, error) {
		return c.geocoder.SearchByPostalCode(ctx, code)
	})

	return location, mapRejection(err)
}

func mapRejection(err error) error {
	if circuitbreaker.IsRejected(err) {
		return domain.NewProviderError("service temporarily unavailable", err)
	}

	return err
}
