package services

import (
	"sort"

	"github.com/sean-rowe/best-bike-day/internal/core/domain"
)

// ProjectRecommendations derives one recommendation per scored day, in day order.
func ProjectRecommendations(forecasts []domain.ScoredForecast) []domain.BikeRideRecommendation {
	recommendations := make([]domain.BikeRideRecommendation, 0, len(forecasts))

	for _, forecast := range forecasts {
		recommendations = append(recommendations, domain.BikeRideRecommendation{
			Date:         forecast.Date(),
			TemperatureC: forecast.TempDayC,
			RainChance:   forecast.PrecipitationProbability,
			WindSpeedMps: forecast.WindSpeedMps,
			Score:        forecast.Score,
		})
	}

	return recommendations
}

// RankRecommendations returns a copy sorted by descending score. Ties keep day order.
func RankRecommendations(recommendations []domain.BikeRideRecommendation) []domain.BikeRideRecommendation {
	ranked := make([]domain.BikeRideRecommendation, len(recommendations))
	copy(ranked, recommendations)

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	return ranked
}
