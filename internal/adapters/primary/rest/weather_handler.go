package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sean-rowe/best-bike-day/internal/core/domain"
	"github.com/sean-rowe/best-bike-day/internal/core/ports"
)

// WeatherHandler handles HTTP requests for the forecast engine.
// It acts as the primary adapter between HTTP transport and the controller,
// turning requests into commands and rendering the published state.
type WeatherHandler struct {
	// service provides the forecast engine commands and queries
	service ports.ForecastService

	// logger records request processing events and errors
	logger *zap.Logger
}

// NewWeatherHandler creates a new HTTP handler for forecast operations.
//
// Parameters:
//   - service: ForecastService for engine operations
//   - logger: Zap logger for request logging and error tracking
//
// Returns:
//   - *WeatherHandler: Configured handler instance
func NewWeatherHandler(service ports.ForecastService, logger *zap.Logger) *WeatherHandler {
	return &WeatherHandler{
		service: service,
		logger:  logger,
	}
}

// WeatherResponse is the JSON rendering of the controller state.
type WeatherResponse struct {
	State       domain.StateKind        `json:"state"`
	Message     string                  `json:"message,omitempty"`
	Forecasts   []domain.ScoredForecast `json:"forecasts,omitempty"`
	Location    *domain.Location        `json:"location,omitempty"`
	LastUpdated *time.Time              `json:"lastUpdated,omitempty"`
}

// RecommendationsResponse lists recommendations in day order or best day first.
type RecommendationsResponse struct {
	Sort            string                          `json:"sort"`
	Recommendations []domain.BikeRideRecommendation `json:"recommendations"`
}

// SearchResponse lists geocoding results.
type SearchResponse struct {
	Results []domain.Location `json:"results"`
}

// GetWeather handles GET requests for the current state.
//
// Response codes:
//   - 200: Current WeatherResponse, whatever its state
func (h *WeatherHandler) GetWeather(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, h.logger, http.StatusOK, h.snapshot(h.service.State()))
}

// StreamWeather pushes every state transition as a server-sent event until the
// client disconnects. The current state is sent first.
func (h *WeatherHandler) StreamWeather(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)

	if !ok {
		respondWithError(w, h.logger, http.StatusInternalServerError, "STREAMING_UNSUPPORTED", "Streaming is not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for state := range h.service.WatchState(r.Context()) {
		data, err := json.Marshal(h.snapshot(state))

		if err != nil {
			h.logger.Error("failed to encode state event", zap.Error(err))
			return
		}

		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", state.Kind, data); err != nil {
			h.logger.Debug("state stream closed", zap.Error(err))
			return
		}

		flusher.Flush()
	}
}

// GetLocation returns the selected location.
//
// Response codes:
//   - 200: Selected location
//   - 404: No location selected (NO_LOCATION_SELECTED)
func (h *WeatherHandler) GetLocation(w http.ResponseWriter, r *http.Request) {
	location := h.service.SelectedLocation()

	if location == nil {
		respondWithError(w, h.logger, http.StatusNotFound, domain.CodeNoLocationSelected, domain.ErrNoLocationSelected.Message)
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, location)
}

// SelectLocation handles POST requests selecting a location. The fetch cycle runs
// asynchronously; the response carries the Loading state it starts with.
//
// Response codes:
//   - 202: Fetch cycle started
//   - 400: Malformed location (INVALID_LOCATION)
func (h *WeatherHandler) SelectLocation(w http.ResponseWriter, r *http.Request) {
	location, err := decodeLocation(w, r)

	if err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, domain.CodeInvalidLocation, err.Error())
		return
	}

	h.service.SelectLocation(location)
	respondWithJSON(w, h.logger, http.StatusAccepted, h.snapshot(h.service.State()))
}

// Refresh handles POST requests re-running the fetch cycle.
//
// Response codes:
//   - 202: Fetch cycle started
//   - 409: No location selected (NO_LOCATION_SELECTED)
func (h *WeatherHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.service.Refresh()

	if h.service.SelectedLocation() == nil {
		respondWithError(w, h.logger, http.StatusConflict, domain.CodeNoLocationSelected, domain.ErrNoLocationSelected.Message)
		return
	}

	respondWithJSON(w, h.logger, http.StatusAccepted, h.snapshot(h.service.State()))
}

// GetRecommendations returns recommendations in day order, or best day first
// with ?sort=score.
//
// Response codes:
//   - 200: RecommendationsResponse
//   - 400: Unknown sort (INVALID_SORT)
func (h *WeatherHandler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	sort := strings.ToLower(r.URL.Query().Get("sort"))

	var recommendations []domain.BikeRideRecommendation

	switch sort {
	case "", "date":
		sort = "date"
		recommendations = h.service.Recommendations()
	case "score":
		recommendations = h.service.RankedRecommendations()
	default:
		respondWithError(w, h.logger, http.StatusBadRequest, "INVALID_SORT", "sort must be 'date' or 'score'")
		return
	}

	if recommendations == nil {
		recommendations = []domain.BikeRideRecommendation{}
	}

	respondWithJSON(w, h.logger, http.StatusOK, RecommendationsResponse{Sort: sort, Recommendations: recommendations})
}

// SearchLocations searches by name (?q=) or postal code (?zip=). Provider failures
// yield an empty list, never an error.
//
// Response codes:
//   - 200: SearchResponse
//   - 400: Neither or both parameters given (MISSING_PARAMETERS)
func (h *WeatherHandler) SearchLocations(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	name, zip := query.Get("q"), query.Get("zip")

	if (name == "") == (zip == "") {
		respondWithError(w, h.logger, http.StatusBadRequest, "MISSING_PARAMETERS", "Exactly one of 'q' or 'zip' is required")
		return
	}

	var results []domain.Location

	if name != "" {
		results = h.service.SearchByName(r.Context(), name)
	} else {
		results = h.service.SearchByPostalCode(r.Context(), zip)
	}

	if results == nil {
		results = []domain.Location{}
	}

	respondWithJSON(w, h.logger, http.StatusOK, SearchResponse{Results: results})
}

func (h *WeatherHandler) snapshot(state domain.WeatherState) WeatherResponse {
	response := WeatherResponse{
		State:     state.Kind,
		Message:   state.Message,
		Forecasts: state.Forecasts,
		Location:  h.service.SelectedLocation(),
	}

	if updated := h.service.LastUpdated(); !updated.IsZero() {
		response.LastUpdated = &updated
	}

	return response
}
