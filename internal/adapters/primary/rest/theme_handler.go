package rest

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/sean-rowe/best-bike-day/internal/core/domain"
)

// ThemeStore reads and persists the presentation theme.
type ThemeStore interface {
	Mode() domain.ThemeMode
	SetMode(ctx context.Context, mode domain.ThemeMode) error
}

// ThemeHandler serves the theme setting.
type ThemeHandler struct {
	theme  ThemeStore
	logger *zap.Logger
}

// NewThemeHandler creates the theme handler.
func NewThemeHandler(theme ThemeStore, logger *zap.Logger) *ThemeHandler {
	return &ThemeHandler{theme: theme, logger: logger}
}

// ThemeResponse carries the theme mode.
type ThemeResponse struct {
	Mode domain.ThemeMode `json:"mode"`
}

// Get returns the current mode.
func (h *ThemeHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, h.logger, http.StatusOK, ThemeResponse{Mode: h.theme.Mode()})
}

// Set stores the mode from a {"mode": "..."} body.
//
// Response codes:
//   - 200: Stored mode
//   - 400: Unknown mode (INVALID_THEME)
//   - 503: Write failed (STORAGE_ERROR)
func (h *ThemeHandler) Set(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Mode string `json:"mode"`
	}

	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&request); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, "INVALID_THEME", "request body must be {\"mode\": \"light|dark|system\"}")
		return
	}

	mode, err := domain.ParseThemeMode(request.Mode)

	if err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, "INVALID_THEME", err.Error())
		return
	}

	if err := h.theme.SetMode(r.Context(), mode); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, ThemeResponse{Mode: h.theme.Mode()})
}
