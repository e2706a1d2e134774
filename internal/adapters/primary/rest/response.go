// Package rest implements the HTTP handlers of the bike day service.
// This package serves as the primary adapter, translating HTTP requests into
// forecast engine commands and formatting its observable state for clients.
package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/sean-rowe/best-bike-day/internal/core/domain"
	"github.com/sean-rowe/best-bike-day/internal/middleware"
)

// ErrorResponse represents a standardized error response structure.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// respondWithJSON sends a JSON response with the specified status code.
//
// Parameters:
//   - w: HTTP response writer
//   - logger: Logger for encoding failures
//   - status: HTTP status code to return
//   - payload: Data to encode as JSON response body
func respondWithJSON(w http.ResponseWriter, logger *zap.Logger, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}

// respondWithError sends a standardized error response.
func respondWithError(w http.ResponseWriter, logger *zap.Logger, status int, code, message string) {
	respondWithJSON(w, logger, status, ErrorResponse{Error: code, Message: message})
}

// handleServiceError maps domain errors to HTTP responses.
//
// Error mappings:
//   - INVALID_LOCATION -> 400 Bad Request
//   - STORAGE_ERROR -> 503 Service Unavailable
//   - Other errors -> 500 Internal Server Error
func handleServiceError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	var e *domain.WeatherError

	if errors.As(err, &e) {
		switch e.Code {
		case domain.CodeInvalidLocation:
			respondWithError(w, logger, http.StatusBadRequest, e.Code, e.Message)
			return
		case domain.CodeStorage:
			respondWithError(w, logger, http.StatusServiceUnavailable, e.Code, "Storage is temporarily unavailable")
			return
		}
	}

	logger.Error("unexpected error",
		zap.Error(err),
		zap.String("correlation_id", middleware.GetCorrelationID(r.Context())),
		zap.String("request_id", middleware.GetRequestID(r.Context())),
	)

	respondWithError(w, logger, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred")
}

// decodeLocation reads and validates a Location request body.
func decodeLocation(w http.ResponseWriter, r *http.Request) (domain.Location, error) {
	var location domain.Location

	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&location); err != nil {
		return domain.Location{}, errors.New("request body must be a location object")
	}

	if location.Name == "" || location.Country == "" {
		return domain.Location{}, errors.New("location name and country are required")
	}

	if err := location.Coordinates().Validate(); err != nil {
		return domain.Location{}, err
	}

	if location.State != nil && *location.State == "" {
		location.State = nil
	}

	return location, nil
}
