package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/sean-rowe/best-bike-day/internal/core/domain"
	"github.com/sean-rowe/best-bike-day/internal/core/ports"
)

const (
	// MinQueryLength is the shortest query dispatched to the geocoder.
	MinQueryLength = 2

	// DefaultSearchLimit caps name search results.
	DefaultSearchLimit = 5
)

// LocationSearch is a thin pass-through to the geocoder. Search feeds an
// autocomplete box, so every failure resolves to an empty result.
type LocationSearch struct {
	geocoder ports.GeocodingSource
	limit    int
	logger   *zap.Logger
}

// NewLocationSearch creates a search service. A non-positive limit selects DefaultSearchLimit.
//
// Parameters:
//   - geocoder: Geocoding provider
//   - limit: Maximum results for a name search
//   - logger: Zap logger for provider failures
//
// Returns:
//   - *LocationSearch: Configured search service
func NewLocationSearch(geocoder ports.GeocodingSource, limit int, logger *zap.Logger) *LocationSearch {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	return &LocationSearch{
		geocoder: geocoder,
		limit:    limit,
		logger:   logger,
	}
}

// SearchByName returns matching places; never nil, never an error.
func (s *LocationSearch) SearchByName(ctx context.Context, query string) []domain.Location {
	query = strings.TrimSpace(query)

	if utf8.RuneCountInString(query) < MinQueryLength {
		return []domain.Location{}
	}

	results, err := s.geocoder.SearchByName(ctx, query, s.limit)

	if err != nil {
		s.logger.Warn("location search failed",
			zap.String("query", query),
			zap.Error(err))

		return []domain.Location{}
	}

	if results == nil {
		return []domain.Location{}
	}

	return results
}

// SearchByPostalCode returns the single place for code, or an empty slice.
func (s *LocationSearch) SearchByPostalCode(ctx context.Context, code string) []domain.Location {
	code = strings.TrimSpace(code)

	if utf8.RuneCountInString(code) < MinQueryLength {
		return []domain.Location{}
	}

	location, err := s.geocoder.SearchByPostalCode(ctx, code)

	if err != nil || location == nil {
		if err != nil {
			s.logger.Warn("postal code search failed",
				zap.String("code", code),
				zap.Error(err))
		}

		return []domain.Location{}
	}

	return []domain.Location{*location}
}
