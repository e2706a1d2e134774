// Package openweather implements the forecast and geocoding sources on the
// OpenWeather One Call and Geocoding APIs. This package serves as a secondary
// adapter, translating domain requests into API calls and converting responses
// back to domain objects.
package openweather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sean-rowe/best-bike-day/internal/core/domain"
	"github.com/sean-rowe/best-bike-day/internal/core/ports"
)

const (
	// DefaultBaseURL is the public OpenWeather API endpoint.
	DefaultBaseURL = "https://api.openweathermap.org"

	defaultRequestTimeout = 10 * time.Second
	userAgent             = "BestBikeDay/1.0"
)

var (
	_ ports.ForecastSource  = (*Client)(nil)
	_ ports.GeocodingSource = (*Client)(nil)
)

// Config holds the provider endpoint, credentials and outbound throttling.
type Config struct {
	BaseURL string
	APIKey  string

	// RequestsPerSecond and Burst shape outbound calls; zero disables throttling
	RequestsPerSecond float64
	Burst             int
}

// Client implements ports.ForecastSource and ports.GeocodingSource.
type Client struct {
	// baseURL is the API base endpoint without trailing slash
	baseURL string

	apiKey string

	// httpClient handles HTTP communication
	httpClient *http.Client

	// limiter throttles outbound calls shared by all endpoints
	limiter *rate.Limiter

	logger *zap.Logger
}

// NewClient creates an OpenWeather client.
//
// Parameters:
//   - cfg: Endpoint, API key and throttling settings
//   - httpClient: HTTP client with transport timeouts
//   - logger: Zap logger for API interaction logging
//
// Returns:
//   - *Client: Configured OpenWeather client
func NewClient(cfg Config, httpClient *http.Client, logger *zap.Logger) *Client {
	baseURL := cfg.BaseURL

	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	limiter := rate.NewLimiter(rate.Inf, 0)

	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst

		if burst <= 0 {
			burst = 1
		}

		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		limiter:    limiter,
		logger:     logger,
	}
}

// oneCallResponse is the subset of the One Call payload the service reads.
type oneCallResponse struct {
	Daily []dailyEntry `json:"daily"`
}

type dailyEntry struct {
	Dt   int64 `json:"dt"`
	Temp struct {
		Day float64 `json:"day"`
		Min float64 `json:"min"`
		Max float64 `json:"max"`
	} `json:"temp"`
	Humidity  int              `json:"humidity"`
	WindSpeed float64          `json:"wind_speed"`
	Pop       float64          `json:"pop"`
	Weather   []weatherSummary `json:"weather"`
}

type weatherSummary struct {
	ID          int    `json:"id"`
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// geoPlace is one geocoding result; direct and zip lookups share the fields used here.
type geoPlace struct {
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Country string  `json:"country"`
	State   string  `json:"state"`
}

func (p geoPlace) toLocation() domain.Location {
	return domain.NewLocation(p.Name, p.Country, p.State, p.Lat, p.Lon)
}

// GetDailyForecast retrieves the daily forecast in metric units.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - coords: Geographic coordinates for the forecast location
//
// Returns:
//   - []domain.DailyObservation: Days in provider order
//   - error: *domain.WeatherError classified as connectivity, timeout or provider failure
func (c *Client) GetDailyForecast(ctx context.Context, coords domain.Coordinates) ([]domain.DailyObservation, error) {
	if err := coords.Validate(); err != nil {
		return nil, &domain.WeatherError{Code: domain.CodeInvalidLocation, Message: err.Error()}
	}

	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(coords.Latitude, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(coords.Longitude, 'f', -1, 64))
	params.Set("units", "metric")
	params.Set("exclude", "current,minutely,hourly,alerts")

	var response oneCallResponse

	if err := c.getJSON(ctx, "/data/3.0/onecall", params, &response); err != nil {
		return nil, err
	}

	days := make([]domain.DailyObservation, 0, len(response.Daily))

	for _, entry := range response.Daily {
		day := domain.DailyObservation{
			EpochSeconds:             entry.Dt,
			TempDayC:                 entry.Temp.Day,
			TempMinC:                 entry.Temp.Min,
			TempMaxC:                 entry.Temp.Max,
			HumidityPct:              entry.Humidity,
			WindSpeedMps:             entry.WindSpeed,
			PrecipitationProbability: entry.Pop,
		}

		if len(entry.Weather) > 0 {
			day.WeatherID = entry.Weather[0].ID
			day.WeatherMain = entry.Weather[0].Main
			day.WeatherDescription = entry.Weather[0].Description
			day.WeatherIcon = entry.Weather[0].Icon
		}

		days = append(days, day)
	}

	c.logger.Debug("forecast received",
		zap.Float64("latitude", coords.Latitude),
		zap.Float64("longitude", coords.Longitude),
		zap.Int("days", len(days)))

	return days, nil
}

// SearchByName resolves a free-text place name to at most limit locations.
func (c *Client) SearchByName(ctx context.Context, query string, limit int) ([]domain.Location, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))

	var places []geoPlace

	if err := c.getJSON(ctx, "/geo/1.0/direct", params, &places); err != nil {
		return nil, err
	}

	locations := make([]domain.Location, 0, len(places))

	for _, place := range places {
		locations = append(locations, place.toLocation())
	}

	return locations, nil
}

// SearchByPostalCode resolves a postal code such as "10115,DE" to a single location.
// An unknown code returns nil without error.
func (c *Client) SearchByPostalCode(ctx context.Context, code string) (*domain.Location, error) {
	params := url.Values{}
	params.Set("zip", code)

	var place geoPlace

	if err := c.getJSON(ctx, "/geo/1.0/zip", params, &place); err != nil {
		if statusOf(err) == http.StatusNotFound {
			return nil, nil
		}

		return nil, err
	}

	location := place.toLocation()

	return &location, nil
}

// getJSON performs a throttled GET and decodes the JSON body into out.
//
// Parameters:
//   - ctx: Context for cancellation (adds a 10s timeout if none)
//   - path: Endpoint path below the base URL
//   - params: Query parameters without the API key
//   - out: Decode target
//
// Returns:
//   - error: Classified *domain.WeatherError
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultRequestTimeout)
		defer cancel()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return classify(fmt.Errorf("rate limit wait canceled: %w", err))
	}

	params.Set("appid", c.apiKey)
	endpoint := c.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)

	if err != nil {
		return domain.NewProviderError("invalid request", err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)

	if err != nil {
		c.logger.Warn("provider request failed",
			zap.String("path", path),
			zap.Duration("duration", time.Since(start)),
			zap.Error(redactURL(err)))

		return classify(err)
	}

	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.logger.Error("failed to close response body", zap.Error(err))
		}
	}(resp.Body)

	c.logger.Debug("provider response",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

		return newStatusError(resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return classify(fmt.Errorf("decode %s response: %w", path, err))
	}

	return nil
}
