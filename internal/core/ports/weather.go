// Package ports declares the interfaces between the core services and the adapters
// that drive them or that they drive.
package ports

import (
	"context"
	"time"

	"github.com/sean-rowe/best-bike-day/internal/core/domain"
)

// ForecastSource fetches a multi-day forecast for a position.
// Implementations classify failures as *domain.WeatherError.
type ForecastSource interface {
	GetDailyForecast(ctx context.Context, coords domain.Coordinates) ([]domain.DailyObservation, error)
}

// GeocodingSource resolves place names and postal codes to locations.
type GeocodingSource interface {
	SearchByName(ctx context.Context, query string, limit int) ([]domain.Location, error)
	SearchByPostalCode(ctx context.Context, code string) (*domain.Location, error)
}

// ForecastCache is the single-slot, TTL-aware forecast cache.
type ForecastCache interface {
	// Read returns the entry only while it is within its TTL.
	Read(ctx context.Context) (*domain.CacheEntry, bool)

	// Write overwrites the slot, stamping the current time.
	Write(ctx context.Context, location domain.Location, forecasts []domain.ScoredForecast) error
}

// ForecastService is the command and query surface the presentation layer drives.
type ForecastService interface {
	State() domain.WeatherState
	WatchState(ctx context.Context) <-chan domain.WeatherState
	SelectedLocation() *domain.Location
	LastUpdated() time.Time
	Recommendations() []domain.BikeRideRecommendation
	RankedRecommendations() []domain.BikeRideRecommendation
	SearchResults() []domain.Location

	SelectLocation(location domain.Location)
	Refresh()
	SearchByName(ctx context.Context, query string) []domain.Location
	SearchByPostalCode(ctx context.Context, code string) []domain.Location
}

// FavoritesService manages the durable favorites set.
type FavoritesService interface {
	List() []domain.Location
	Add(ctx context.Context, location domain.Location) error
	Remove(ctx context.Context, location domain.Location) error
}

// Metrics receives forecast engine measurements. A nil Metrics disables recording.
type Metrics interface {
	RecordCacheHit(ctx context.Context, key string)
	RecordCacheMiss(ctx context.Context, key string)
	RecordFetch(ctx context.Context, outcome string, duration time.Duration)
	RecordScore(ctx context.Context, policy string, score int)
}

// FetchRecord describes one completed fetch cycle for the audit log.
type FetchRecord struct {
	RequestID  string
	Location   string
	Latitude   float64
	Longitude  float64
	Days       int
	BestScore  int
	CacheHit   bool
	DurationMs int64
	ErrorCode  string
	Superseded bool
}

// FetchRecorder persists fetch cycle records.
type FetchRecorder interface {
	RecordFetch(ctx context.Context, record FetchRecord) error
}
