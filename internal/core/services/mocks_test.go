package services

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sean-rowe/best-bike-day/internal/core/domain"
	"github.com/sean-rowe/best-bike-day/internal/core/ports"
)

// MockForecastSource is a mock implementation of the ForecastSource interface.
type MockForecastSource struct {
	mock.Mock
}

// GetDailyForecast mocks the provider call.
func (m *MockForecastSource) GetDailyForecast(ctx context.Context, coords domain.Coordinates) ([]domain.DailyObservation, error) {
	args := m.Called(ctx, coords)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]domain.DailyObservation), args.Error(1)
}

// MockGeocoder is a mock implementation of the GeocodingSource interface.
type MockGeocoder struct {
	mock.Mock
}

// SearchByName mocks a name lookup.
func (m *MockGeocoder) SearchByName(ctx context.Context, query string, limit int) ([]domain.Location, error) {
	args := m.Called(ctx, query, limit)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]domain.Location), args.Error(1)
}

// SearchByPostalCode mocks a postal code lookup.
func (m *MockGeocoder) SearchByPostalCode(ctx context.Context, code string) (*domain.Location, error) {
	args := m.Called(ctx, code)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Location), args.Error(1)
}

// MockForecastCache is a mock implementation of the ForecastCache interface.
type MockForecastCache struct {
	mock.Mock
}

// Read mocks a cache read.
func (m *MockForecastCache) Read(ctx context.Context) (*domain.CacheEntry, bool) {
	args := m.Called(ctx)

	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}

	return args.Get(0).(*domain.CacheEntry), args.Bool(1)
}

// Write mocks a cache write.
func (m *MockForecastCache) Write(ctx context.Context, location domain.Location, forecasts []domain.ScoredForecast) error {
	args := m.Called(ctx, location, forecasts)
	return args.Error(0)
}

// MockMetrics is a mock implementation of the Metrics interface.
type MockMetrics struct {
	mock.Mock
}

func (m *MockMetrics) RecordCacheHit(ctx context.Context, key string) {
	m.Called(ctx, key)
}

func (m *MockMetrics) RecordCacheMiss(ctx context.Context, key string) {
	m.Called(ctx, key)
}

func (m *MockMetrics) RecordFetch(ctx context.Context, outcome string, duration time.Duration) {
	m.Called(ctx, outcome, duration)
}

func (m *MockMetrics) RecordScore(ctx context.Context, policy string, score int) {
	m.Called(ctx, policy, score)
}

// recordingRecorder collects fetch records.
type recordingRecorder struct {
	mu      sync.Mutex
	records []ports.FetchRecord
}

func (r *recordingRecorder) RecordFetch(_ context.Context, record ports.FetchRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = append(r.records, record)

	return nil
}

func (r *recordingRecorder) Records() []ports.FetchRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := make([]ports.FetchRecord, len(r.records))
	copy(copied, r.records)

	return copied
}

// mapStore is an in-memory KeyValueStore whose failures can be switched on.
type mapStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	failGet bool
	failSet bool
	sets    int
}

func newMapStore() *mapStore {
	return &mapStore{data: make(map[string][]byte)}
}

func (s *mapStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failGet {
		return nil, errStoreDown
	}

	value, ok := s.data[key]

	if !ok {
		return nil, ports.ErrKeyNotFound
	}

	return value, nil
}

func (s *mapStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failSet {
		return errStoreDown
	}

	s.sets++
	s.data[key] = value

	return nil
}

func (s *mapStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)

	return nil
}

func (s *mapStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = make(map[string][]byte)

	return nil
}

func (s *mapStore) setFailures(get, set bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failGet = get
	s.failSet = set
}

func (s *mapStore) setCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sets
}
