package scoring

import "github.com/sean-rowe/best-bike-day/internal/core/domain"

const (
	temperatureWeight = 0.5
	rainWeight        = 0.3
	windWeight        = 0.2
)

// WeightedPolicy combines temperature, rain and wind factors in [0,1]
// with weights 0.5, 0.3 and 0.2.
type WeightedPolicy struct{}

// Name implements Policy.
func (WeightedPolicy) Name() string {
	return PolicyWeighted
}

// Score implements Policy.
func (WeightedPolicy) Score(observation domain.DailyObservation) int {
	raw := temperatureFactor(observation.TempDayC)*temperatureWeight +
		(1.0-observation.PrecipitationProbability)*rainWeight +
		windFactor(observation.WindSpeedMps)*windWeight

	return clamp(raw * 100)
}

// temperatureFactor peaks at 18-25 °C. The warm 0.4 band is open at 32 °C so a
// 32 °C day with 90% rain and 15 m/s wind rates 10; a closed band would rate it 25.
func temperatureFactor(celsius float64) float64 {
	switch {
	case celsius >= 18 && celsius <= 25:
		return 1.0
	case (celsius >= 15 && celsius < 18) || (celsius > 25 && celsius <= 28):
		return 0.7
	case (celsius >= 10 && celsius < 15) || (celsius > 28 && celsius < 32):
		return 0.4
	default:
		return 0.1
	}
}

func windFactor(mps float64) float64 {
	switch {
	case mps < 6:
		return 1.0
	case mps < 9:
		return 0.7
	case mps < 12:
		return 0.4
	default:
		return 0.1
	}
}
