package rest

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sean-rowe/best-bike-day/internal/core/domain"
)

// MockForecastService is a mock implementation of ports.ForecastService.
type MockForecastService struct {
	mock.Mock
}

func (m *MockForecastService) State() domain.WeatherState {
	return m.Called().Get(0).(domain.WeatherState)
}

func (m *MockForecastService) WatchState(ctx context.Context) <-chan domain.WeatherState {
	return m.Called(ctx).Get(0).(<-chan domain.WeatherState)
}

func (m *MockForecastService) SelectedLocation() *domain.Location {
	args := m.Called()

	if args.Get(0) == nil {
		return nil
	}

	return args.Get(0).(*domain.Location)
}

func (m *MockForecastService) LastUpdated() time.Time {
	return m.Called().Get(0).(time.Time)
}

func (m *MockForecastService) Recommendations() []domain.BikeRideRecommendation {
	args := m.Called()

	if args.Get(0) == nil {
		return nil
	}

	return args.Get(0).([]domain.BikeRideRecommendation)
}

func (m *MockForecastService) RankedRecommendations() []domain.BikeRideRecommendation {
	args := m.Called()

	if args.Get(0) == nil {
		return nil
	}

	return args.Get(0).([]domain.BikeRideRecommendation)
}

func (m *MockForecastService) SearchResults() []domain.Location {
	return m.Called().Get(0).([]domain.Location)
}

func (m *MockForecastService) SelectLocation(location domain.Location) {
	m.Called(location)
}

func (m *MockForecastService) Refresh() {
	m.Called()
}

func (m *MockForecastService) SearchByName(ctx context.Context, query string) []domain.Location {
	args := m.Called(ctx, query)

	if args.Get(0) == nil {
		return nil
	}

	return args.Get(0).([]domain.Location)
}

func (m *MockForecastService) SearchByPostalCode(ctx context.Context, code string) []domain.Location {
	args := m.Called(ctx, code)

	if args.Get(0) == nil {
		return nil
	}

	return args.Get(0).([]domain.Location)
}

// MockFavoritesService is a mock implementation of ports.FavoritesService.
type MockFavoritesService struct {
	mock.Mock
}

func (m *MockFavoritesService) List() []domain.Location {
	args := m.Called()

	if args.Get(0) == nil {
		return nil
	}

	return args.Get(0).([]domain.Location)
}

func (m *MockFavoritesService) Add(ctx context.Context, location domain.Location) error {
	return m.Called(ctx, location).Error(0)
}

func (m *MockFavoritesService) Remove(ctx context.Context, location domain.Location) error {
	return m.Called(ctx, location).Error(0)
}

// MockThemeStore is a mock implementation of ThemeStore.
type MockThemeStore struct {
	mock.Mock
}

func (m *MockThemeStore) Mode() domain.ThemeMode {
	return m.Called().Get(0).(domain.ThemeMode)
}

func (m *MockThemeStore) SetMode(ctx context.Context, mode domain.ThemeMode) error {
	return m.Called(ctx, mode).Error(0)
}
