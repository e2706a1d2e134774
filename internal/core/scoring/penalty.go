package scoring

import (
	"math"

	"github.com/sean-rowe/best-bike-day/internal/core/domain"
)

// PenaltyPolicy starts from MaxScore and subtracts a temperature penalty,
// the rain probability in percent and a wind penalty.
type PenaltyPolicy struct{}

// Name implements Policy.
func (PenaltyPolicy) Name() string {
	return PolicyPenalty
}

// Score implements Policy.
func (PenaltyPolicy) Score(observation domain.DailyObservation) int {
	score := float64(MaxScore)

	temp := observation.TempDayC

	switch {
	case temp < 5:
		score -= 40
	case temp < 10:
		score -= 20
	case temp > 30:
		score -= 30
	case temp > 25:
		score -= 15
	}

	score -= math.Round(observation.PrecipitationProbability * 100)

	switch wind := observation.WindSpeedMps; {
	case wind > 10:
		score -= 30
	case wind > 5:
		score -= 15
	}

	return clamp(score)
}
