package openweather

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sean-rowe/best-bike-day/internal/core/domain"
)

const oneCallBody = `{
  "lat": 52.52, "lon": 13.405, "timezone": "Europe/Berlin",
  "daily": [
    {"dt": 1717243200, "temp": {"day": 20.4, "min": 12.1, "max": 23.9}, "humidity": 48,
     "wind_speed": 3.2, "pop": 0.1, "weather": [{"id": 800, "main": "Clear", "description": "clear sky", "icon": "01d"}]},
    {"dt": 1717329600, "temp": {"day": 32, "min": 25, "max": 34}, "humidity": 70,
     "wind_speed": 15, "pop": 0.9, "weather": []}
  ]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(Config{BaseURL: server.URL, APIKey: "test-key"}, server.Client(), zap.NewNop())
}

func TestClient_GetDailyForecast(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/3.0/onecall", r.URL.Path)

		query := r.URL.Query()
		assert.Equal(t, "52.52", query.Get("lat"))
		assert.Equal(t, "13.405", query.Get("lon"))
		assert.Equal(t, "metric", query.Get("units"))
		assert.Equal(t, "current,minutely,hourly,alerts", query.Get("exclude"))
		assert.Equal(t, "test-key", query.Get("appid"))
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(oneCallBody))
	})

	days, err := client.GetDailyForecast(context.Background(), domain.Coordinates{Latitude: 52.52, Longitude: 13.405})

	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Equal(t, domain.DailyObservation{
		EpochSeconds:             1717243200,
		TempDayC:                 20.4,
		TempMinC:                 12.1,
		TempMaxC:                 23.9,
		HumidityPct:              48,
		WindSpeedMps:             3.2,
		PrecipitationProbability: 0.1,
		WeatherID:                800,
		WeatherMain:              "Clear",
		WeatherDescription:       "clear sky",
		WeatherIcon:              "01d",
	}, days[0])
	assert.Equal(t, 0.9, days[1].PrecipitationProbability)
	assert.Empty(t, days[1].WeatherMain)
}

func TestClient_GetDailyForecast_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		code    string
		message string
	}{
		{
			name: "unauthorized",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"cod":401,"message":"Invalid API key"}`))
			},
			code:    domain.CodeProvider,
			message: "Failed to load weather data: HTTP 401",
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			code:    domain.CodeProvider,
			message: "Failed to load weather data: HTTP 502",
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"daily": [`))
			},
			code: domain.CodeProvider,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.handler)

			_, err := client.GetDailyForecast(context.Background(), domain.Coordinates{Latitude: 1, Longitude: 1})

			require.Error(t, err)
			weatherErr := domain.AsWeatherError(err)
			assert.Equal(t, tt.code, weatherErr.Code)

			if tt.message != "" {
				assert.Equal(t, tt.message, weatherErr.Message)
			}
		})
	}
}

func TestClient_GetDailyForecast_InvalidCoordinates(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Error("provider must not be called")
	})

	_, err := client.GetDailyForecast(context.Background(), domain.Coordinates{Latitude: 91, Longitude: 0})

	assert.Equal(t, domain.CodeInvalidLocation, domain.ErrorCode(err))
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})

	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.GetDailyForecast(ctx, domain.Coordinates{Latitude: 1, Longitude: 1})

	require.Error(t, err)
	assert.Equal(t, "Connection timed out", domain.AsWeatherError(err).Message)
}

func TestClient_ConnectionRefused(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	client := NewClient(Config{BaseURL: "http://" + addr, APIKey: "k"}, &http.Client{Timeout: time.Second}, zap.NewNop())

	_, err = client.GetDailyForecast(context.Background(), domain.Coordinates{Latitude: 1, Longitude: 1})

	require.Error(t, err)
	assert.Equal(t, "No internet connection", domain.AsWeatherError(err).Message)
}

func TestClient_TransportErrorsHideAPIKey(t *testing.T) {
	const apiKey = "secret-key"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hijacker, ok := w.(http.Hijacker)
		if !ok {
			return
		}

		if conn, _, err := hijacker.Hijack(); err == nil {
			_ = conn.Close()
		}
	}))
	t.Cleanup(server.Close)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	refused := listener.Addr().String()
	require.NoError(t, listener.Close())

	core, logs := observer.New(zap.DebugLevel)

	tests := []struct {
		name    string
		baseURL string
		call    func(c *Client) error
	}{
		{
			name:    "connection closed during forecast",
			baseURL: server.URL,
			call: func(c *Client) error {
				_, err := c.GetDailyForecast(context.Background(), domain.Coordinates{Latitude: 1, Longitude: 1})
				return err
			},
		},
		{
			name:    "connection refused during search",
			baseURL: "http://" + refused,
			call: func(c *Client) error {
				_, err := c.SearchByName(context.Background(), "Paris", 5)
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(Config{BaseURL: tt.baseURL, APIKey: apiKey}, &http.Client{Timeout: time.Second}, zap.New(core))

			err := tt.call(client)

			require.Error(t, err)
			assert.NotContains(t, err.Error(), apiKey)
			assert.NotContains(t, domain.AsWeatherError(err).Message, apiKey)
		})
	}

	require.NotZero(t, logs.Len())

	for _, entry := range logs.All() {
		for _, field := range entry.ContextMap() {
			assert.NotContains(t, fmt.Sprint(field), apiKey)
		}
	}
}

func TestClient_SearchByName(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/geo/1.0/direct", r.URL.Path)
		assert.Equal(t, "Paris", r.URL.Query().Get("q"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))

		_, _ = w.Write([]byte(`[
		  {"name": "Paris", "local_names": {"fr": "Paris"}, "lat": 48.8588897, "lon": 2.3200410, "country": "FR", "state": "Ile-de-France"},
		  {"name": "Paris", "lat": 33.6617962, "lon": -95.555513, "country": "US", "state": "Texas"}
		]`))
	})

	locations, err := client.SearchByName(context.Background(), "Paris", 5)

	require.NoError(t, err)
	require.Len(t, locations, 2)
	assert.Equal(t, "Paris, Ile-de-France, FR", locations[0].DisplayName())
	assert.Equal(t, "US", locations[1].Country)
	assert.InDelta(t, -95.555513, locations[1].Lon, 1e-9)
}

func TestClient_SearchByName_Empty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	locations, err := client.SearchByName(context.Background(), "Nowhereville", 5)

	require.NoError(t, err)
	assert.NotNil(t, locations)
	assert.Empty(t, locations)
}

func TestClient_SearchByPostalCode(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/geo/1.0/zip", r.URL.Path)

		if r.URL.Query().Get("zip") != "10115,DE" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"cod":"404","message":"not found"}`))

			return
		}

		_, _ = w.Write([]byte(`{"zip": "10115", "name": "Berlin", "lat": 52.5323, "lon": 13.3846, "country": "DE"}`))
	})

	location, err := client.SearchByPostalCode(context.Background(), "10115,DE")

	require.NoError(t, err)
	require.NotNil(t, location)
	assert.Equal(t, "Berlin, DE", location.DisplayName())
	assert.Nil(t, location.State)

	location, err = client.SearchByPostalCode(context.Background(), "99999,XX")

	assert.NoError(t, err)
	assert.Nil(t, location)
}

func TestClient_Throttling(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	t.Cleanup(server.Close)

	client := NewClient(Config{BaseURL: server.URL, RequestsPerSecond: 0.5, Burst: 1}, server.Client(), zap.NewNop())

	_, err := client.SearchByName(context.Background(), "Paris", 5)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err = client.SearchByName(ctx, "Paris", 5)

	require.Error(t, err)
	assert.Equal(t, domain.CodeTimeout, domain.ErrorCode(err))
}
