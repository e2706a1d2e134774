// Package services implements the forecast engine: the controller state machine,
// location search, favorites, recommendations and presentation settings.
package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/sean-rowe/best-bike-day/internal/core/domain"
	"github.com/sean-rowe/best-bike-day/internal/core/observable"
	"github.com/sean-rowe/best-bike-day/internal/core/ports"
	"github.com/sean-rowe/best-bike-day/internal/core/scoring"
)

// Fetch outcomes reported to ports.Metrics.
const (
	OutcomeCacheHit   = "cache_hit"
	OutcomeNetwork    = "network"
	OutcomeError      = "error"
	OutcomeSuperseded = "superseded"
)

const recordTimeout = 5 * time.Second

var (
	_ ports.ForecastService  = (*ForecastController)(nil)
	_ ports.FavoritesService = (*Favorites)(nil)
)

// ForecastController owns the Loading/Success/Error state machine.
//
// Every SelectLocation or Refresh takes the next sequence number and starts a fetch
// cycle on its own goroutine. A cycle publishes only while its number is still the
// latest; completions of superseded cycles are dropped, so the last trigger wins
// regardless of completion order.
type ForecastController struct {
	source   ports.ForecastSource
	search   *LocationSearch
	cache    ports.ForecastCache
	policy   scoring.Policy
	metrics  ports.Metrics
	recorder ports.FetchRecorder
	logger   *zap.Logger
	now      func() time.Time

	mu        sync.Mutex
	seq       uint64
	searchSeq uint64
	current   *domain.Location
	cancel    context.CancelFunc
	baseCtx   context.Context
	stop      context.CancelFunc
	inflight  sync.WaitGroup

	// writeMu orders cache write-through so the latest cycle's write lands last.
	writeMu sync.Mutex

	state           *observable.Value[domain.WeatherState]
	selected        *observable.Value[*domain.Location]
	searchResults   *observable.Value[[]domain.Location]
	recommendations *observable.Value[[]domain.BikeRideRecommendation]
	lastUpdated     *observable.Value[time.Time]
}

// ControllerOption configures optional collaborators of the controller.
type ControllerOption func(*ForecastController)

// WithMetrics records cache and fetch measurements.
func WithMetrics(metrics ports.Metrics) ControllerOption {
	return func(c *ForecastController) {
		c.metrics = metrics
	}
}

// WithFetchRecorder writes an audit record for every fetch cycle.
func WithFetchRecorder(recorder ports.FetchRecorder) ControllerOption {
	return func(c *ForecastController) {
		c.recorder = recorder
	}
}

// WithClock replaces time.Now for LastUpdated stamps.
func WithClock(now func() time.Time) ControllerOption {
	return func(c *ForecastController) {
		c.now = now
	}
}

// NewForecastController creates a controller in the Loading state.
//
// Parameters:
//   - source: Weather provider
//   - search: Location search used by the search commands
//   - cache: Single-slot forecast cache
//   - policy: Scoring policy applied to every fetched day
//   - logger: Zap logger for state transitions and failures
//   - opts: Optional collaborators
//
// Returns:
//   - *ForecastController: Controller ready to accept commands
func NewForecastController(
	source ports.ForecastSource,
	search *LocationSearch,
	cache ports.ForecastCache,
	policy scoring.Policy,
	logger *zap.Logger,
	opts ...ControllerOption,
) *ForecastController {
	baseCtx, stop := context.WithCancel(context.Background())

	c := &ForecastController{
		source:          source,
		search:          search,
		cache:           cache,
		policy:          policy,
		logger:          logger,
		now:             time.Now,
		baseCtx:         baseCtx,
		stop:            stop,
		state:           observable.NewValue(domain.Loading()),
		selected:        observable.NewValue[*domain.Location](nil),
		searchResults:   observable.NewValue([]domain.Location{}),
		recommendations: observable.NewValue([]domain.BikeRideRecommendation{}),
		lastUpdated:     observable.NewValue(time.Time{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// State returns the current weather state.
func (c *ForecastController) State() domain.WeatherState {
	return c.state.Get()
}

// WatchState streams every state transition until ctx is done.
func (c *ForecastController) WatchState(ctx context.Context) <-chan domain.WeatherState {
	return c.state.Subscribe(ctx)
}

// SelectedLocation returns the current location or nil.
func (c *ForecastController) SelectedLocation() *domain.Location {
	location := c.selected.Get()

	if location == nil {
		return nil
	}

	copied := *location

	return &copied
}

// WatchSelectedLocation streams location changes.
func (c *ForecastController) WatchSelectedLocation(ctx context.Context) <-chan *domain.Location {
	return c.selected.Subscribe(ctx)
}

// LastUpdated returns when the published forecast was fetched; zero before the first success.
func (c *ForecastController) LastUpdated() time.Time {
	return c.lastUpdated.Get()
}

// Recommendations returns one recommendation per day in day order.
func (c *ForecastController) Recommendations() []domain.BikeRideRecommendation {
	recommendations := c.recommendations.Get()
	copied := make([]domain.BikeRideRecommendation, len(recommendations))
	copy(copied, recommendations)

	return copied
}

// RankedRecommendations returns the recommendations best day first.
func (c *ForecastController) RankedRecommendations() []domain.BikeRideRecommendation {
	return RankRecommendations(c.recommendations.Get())
}

// WatchRecommendations streams recommendation lists in day order.
func (c *ForecastController) WatchRecommendations(ctx context.Context) <-chan []domain.BikeRideRecommendation {
	return c.recommendations.Subscribe(ctx)
}

// SearchResults returns the latest search results.
func (c *ForecastController) SearchResults() []domain.Location {
	return cloneLocations(c.searchResults.Get())
}

// WatchSearchResults streams search result lists.
func (c *ForecastController) WatchSearchResults(ctx context.Context) <-chan []domain.Location {
	return c.searchResults.Subscribe(ctx)
}

// SelectLocation makes location current, clears search results, publishes Loading
// and starts a fetch cycle.
func (c *ForecastController) SelectLocation(location domain.Location) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := location
	c.current = &current
	c.selected.Set(&current)

	c.searchSeq++
	c.searchResults.Set([]domain.Location{})

	c.logger.Info("location selected",
		zap.String("location", location.DisplayName()),
		zap.Float64("latitude", location.Lat),
		zap.Float64("longitude", location.Lon))

	c.startCycleLocked(current)
}

// Refresh re-runs the fetch cycle for the current location. Without one it
// publishes the no-location error and makes no provider call.
func (c *ForecastController) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		c.seq++
		c.cancelInFlightLocked()
		c.state.Set(domain.Failure(domain.ErrNoLocationSelected.Message))
		c.logger.Info("refresh without location", zap.Uint64("seq", c.seq))

		return
	}

	c.startCycleLocked(*c.current)
}

// SearchByName searches places by name and publishes the results unless a newer
// search or a location selection happened meanwhile.
func (c *ForecastController) SearchByName(ctx context.Context, query string) []domain.Location {
	seq := c.beginSearch()
	results := c.search.SearchByName(ctx, query)
	c.publishSearch(seq, results)

	return results
}

// SearchByPostalCode searches a place by postal code, publishing like SearchByName.
func (c *ForecastController) SearchByPostalCode(ctx context.Context, code string) []domain.Location {
	seq := c.beginSearch()
	results := c.search.SearchByPostalCode(ctx, code)
	c.publishSearch(seq, results)

	return results
}

// Wait blocks until every started fetch cycle has finished.
func (c *ForecastController) Wait() {
	c.inflight.Wait()
}

// Close cancels in-flight cycles and waits for them to return.
func (c *ForecastController) Close() {
	c.stop()
	c.inflight.Wait()
}

func (c *ForecastController) beginSearch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.searchSeq++

	return c.searchSeq
}

func (c *ForecastController) publishSearch(seq uint64, results []domain.Location) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if seq != c.searchSeq {
		return
	}

	c.searchResults.Set(cloneLocations(results))
}

// startCycleLocked must be called with c.mu held.
func (c *ForecastController) startCycleLocked(location domain.Location) {
	c.seq++
	seq := c.seq

	c.cancelInFlightLocked()

	ctx, cancel := context.WithCancel(c.baseCtx)
	c.cancel = cancel

	c.state.Set(domain.Loading())
	c.inflight.Add(1)

	go c.runCycle(ctx, seq, location)
}

func (c *ForecastController) cancelInFlightLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *ForecastController) isLatest(seq uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return seq == c.seq
}

// writeThrough stores a fresh result unless a newer trigger has been issued.
func (c *ForecastController) writeThrough(ctx context.Context, seq uint64, location domain.Location, forecasts []domain.ScoredForecast) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if !c.isLatest(seq) {
		return
	}

	if err := c.cache.Write(context.WithoutCancel(ctx), location, forecasts); err != nil {
		c.logger.Warn("forecast cache write failed", zap.Uint64("seq", seq), zap.Error(err))
	}
}

func (c *ForecastController) runCycle(ctx context.Context, seq uint64, location domain.Location) {
	defer c.inflight.Done()

	tracer := otel.Tracer("forecast-controller")
	ctx, span := tracer.Start(ctx, "ForecastController.FetchCycle")

	defer span.End()

	span.SetAttributes(
		attribute.Int64("fetch.seq", int64(seq)),
		attribute.String("fetch.location", location.DisplayName()),
	)

	start := time.Now()
	forecasts, fetchedAt, cacheHit, err := c.obtain(ctx, location)

	record := ports.FetchRecord{
		RequestID: uuid.New().String(),
		Location:  location.DisplayName(),
		Latitude:  location.Lat,
		Longitude: location.Lon,
		CacheHit:  cacheHit,
	}

	var (
		published bool
		outcome   string
	)

	if err != nil {
		failure := domain.AsWeatherError(err)
		span.RecordError(err)

		record.ErrorCode = failure.Code
		published = c.publish(seq, domain.Failure(failure.Message), nil, time.Time{})
		outcome = OutcomeError

		if published {
			c.logger.Warn("forecast fetch failed",
				zap.Uint64("seq", seq),
				zap.String("location", location.DisplayName()),
				zap.String("code", failure.Code),
				zap.Error(err))
		}
	} else {
		if !cacheHit {
			c.writeThrough(ctx, seq, location, forecasts)
		}

		record.Days = len(forecasts)
		record.BestScore = bestScore(forecasts)
		published = c.publish(seq, domain.Success(forecasts), forecasts, fetchedAt)
		outcome = OutcomeNetwork

		if cacheHit {
			outcome = OutcomeCacheHit
		}

		if published {
			c.logger.Info("forecast published",
				zap.Uint64("seq", seq),
				zap.String("location", location.DisplayName()),
				zap.Int("days", len(forecasts)),
				zap.Bool("cache_hit", cacheHit))
		}
	}

	if !published {
		outcome = OutcomeSuperseded
		record.Superseded = true

		c.logger.Debug("discarding superseded fetch result",
			zap.Uint64("seq", seq),
			zap.String("location", location.DisplayName()))
	}

	duration := time.Since(start)
	record.DurationMs = duration.Milliseconds()

	span.SetAttributes(
		attribute.String("fetch.outcome", outcome),
		attribute.Bool("fetch.cache_hit", cacheHit),
	)

	if c.metrics != nil {
		c.metrics.RecordFetch(ctx, outcome, duration)
	}

	c.recordFetch(ctx, record)
}

// obtain returns the scored forecast for location from the cache or the provider.
func (c *ForecastController) obtain(ctx context.Context, location domain.Location) ([]domain.ScoredForecast, time.Time, bool, error) {
	key := location.IdentityKey()

	if entry, ok := c.cache.Read(ctx); ok && entry.LocationKey == key {
		if c.metrics != nil {
			c.metrics.RecordCacheHit(ctx, key)
		}

		return entry.Forecasts, entry.FetchedAt(), true, nil
	}

	if c.metrics != nil {
		c.metrics.RecordCacheMiss(ctx, key)
	}

	days, err := c.source.GetDailyForecast(ctx, location.Coordinates())

	if err != nil {
		return nil, time.Time{}, false, err
	}

	scored := scoring.ScoreAll(c.policy, days)

	if c.metrics != nil {
		for _, day := range scored {
			c.metrics.RecordScore(ctx, c.policy.Name(), day.Score)
		}
	}

	return scored, c.now(), false, nil
}

// publish replaces the state if seq is still the latest trigger.
func (c *ForecastController) publish(
	seq uint64,
	state domain.WeatherState,
	forecasts []domain.ScoredForecast,
	fetchedAt time.Time,
) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if seq != c.seq {
		return false
	}

	c.state.Set(state)

	if state.IsSuccess() {
		c.recommendations.Set(ProjectRecommendations(forecasts))
		c.lastUpdated.Set(fetchedAt)
	}

	return true
}

func (c *ForecastController) recordFetch(ctx context.Context, record ports.FetchRecord) {
	if c.recorder == nil {
		return
	}

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if err := c.recorder.RecordFetch(recordCtx, record); err != nil {
		c.logger.Warn("failed to record fetch", zap.String("request_id", record.RequestID), zap.Error(err))
	}
}

func bestScore(forecasts []domain.ScoredForecast) int {
	best := 0

	for _, forecast := range forecasts {
		if forecast.Score > best {
			best = forecast.Score
		}
	}

	return best
}
