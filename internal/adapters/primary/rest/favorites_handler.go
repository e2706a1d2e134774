package rest

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/sean-rowe/best-bike-day/internal/core/domain"
	"github.com/sean-rowe/best-bike-day/internal/core/ports"
)

// FavoritesHandler serves the favorites set.
type FavoritesHandler struct {
	favorites ports.FavoritesService
	logger    *zap.Logger
}

// NewFavoritesHandler creates the favorites handler.
func NewFavoritesHandler(favorites ports.FavoritesService, logger *zap.Logger) *FavoritesHandler {
	return &FavoritesHandler{favorites: favorites, logger: logger}
}

// FavoritesResponse lists favorites in insertion order.
type FavoritesResponse struct {
	Favorites []domain.Location `json:"favorites"`
}

// List returns all favorites.
func (h *FavoritesHandler) List(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusOK)
}

// Add inserts the location from the body. Adding a location already present
// (same name and country) leaves the list unchanged.
//
// Response codes:
//   - 200: Updated favorites
//   - 400: Malformed location (INVALID_LOCATION)
//   - 503: Write failed (STORAGE_ERROR)
func (h *FavoritesHandler) Add(w http.ResponseWriter, r *http.Request) {
	location, err := decodeLocation(w, r)

	if err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, domain.CodeInvalidLocation, err.Error())
		return
	}

	if err := h.favorites.Add(r.Context(), location); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	h.respond(w, http.StatusOK)
}

// Remove deletes the favorite identified by ?name=&country=.
//
// Response codes:
//   - 200: Updated favorites
//   - 400: Missing parameters (MISSING_PARAMETERS)
//   - 503: Write failed (STORAGE_ERROR)
func (h *FavoritesHandler) Remove(w http.ResponseWriter, r *http.Request) {
	name, country := r.URL.Query().Get("name"), r.URL.Query().Get("country")

	if name == "" || country == "" {
		respondWithError(w, h.logger, http.StatusBadRequest, "MISSING_PARAMETERS", "Both 'name' and 'country' query parameters are required")
		return
	}

	if err := h.favorites.Remove(r.Context(), domain.Location{Name: name, Country: country}); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	h.respond(w, http.StatusOK)
}

func (h *FavoritesHandler) respond(w http.ResponseWriter, status int) {
	favorites := h.favorites.List()

	if favorites == nil {
		favorites = []domain.Location{}
	}

	respondWithJSON(w, h.logger, status, FavoritesResponse{Favorites: favorites})
}
