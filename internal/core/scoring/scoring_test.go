// Package scoring contains unit tests for the ride-quality policies.
package scoring

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sean-rowe/best-bike-day/internal/core/domain"
)

func observation(temp, pop, wind float64) domain.DailyObservation {
	return domain.DailyObservation{
		TempDayC:                 temp,
		PrecipitationProbability: pop,
		WindSpeedMps:             wind,
		HumidityPct:              60,
	}
}

// TestWeightedPolicy_Score tests band boundaries of the weighted-factor policy.
func TestWeightedPolicy_Score(t *testing.T) {
	policy := WeightedPolicy{}

	tests := []struct {
		name     string
		obs      domain.DailyObservation
		expected int
	}{
		{name: "ideal day", obs: observation(20, 0, 3), expected: 100},
		{name: "lower ideal edge", obs: observation(18, 0, 0), expected: 100},
		{name: "upper ideal edge", obs: observation(25, 0, 0), expected: 100},
		{name: "cool band", obs: observation(15, 0, 0), expected: 85},
		{name: "warm band edge", obs: observation(28, 0, 0), expected: 85},
		{name: "chilly band", obs: observation(10, 0, 0), expected: 70},
		{name: "hot band", obs: observation(30, 0, 0), expected: 70},
		{name: "hot band upper edge", obs: observation(31.9, 0, 0), expected: 70},
		{name: "32 degrees is out of every band", obs: observation(32, 0, 0), expected: 55},
		{name: "freezing", obs: observation(-5, 0, 0), expected: 55},
		{name: "half rain", obs: observation(20, 0.5, 0), expected: 85},
		{name: "breezy", obs: observation(20, 0, 6), expected: 94},
		{name: "windy", obs: observation(20, 0, 9), expected: 88},
		{name: "storm", obs: observation(20, 0, 12), expected: 82},
		{name: "worst day", obs: observation(32, 0.9, 15), expected: 10},
		{name: "all rain worst", obs: observation(40, 1, 30), expected: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, policy.Score(tt.obs))
		})
	}
}

// TestPenaltyPolicy_Score tests the penalty cascade.
func TestPenaltyPolicy_Score(t *testing.T) {
	policy := PenaltyPolicy{}

	tests := []struct {
		name     string
		obs      domain.DailyObservation
		expected int
	}{
		{name: "ideal day", obs: observation(20, 0, 3), expected: 100},
		{name: "freezing", obs: observation(2, 0, 0), expected: 60},
		{name: "cold", obs: observation(7, 0, 0), expected: 80},
		{name: "hot", obs: observation(31, 0, 0), expected: 70},
		{name: "warm", obs: observation(27, 0, 0), expected: 85},
		{name: "rain rounds", obs: observation(20, 0.255, 0), expected: 74},
		{name: "breezy", obs: observation(20, 0, 6), expected: 85},
		{name: "windy", obs: observation(20, 0, 11), expected: 70},
		{name: "clamped at zero", obs: observation(32, 0.9, 15), expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, policy.Score(tt.obs))
		})
	}
}

// TestPolicies_PathologicalInputs tests that odd inputs are clamped, never rejected.
func TestPolicies_PathologicalInputs(t *testing.T) {
	inputs := []domain.DailyObservation{
		observation(math.NaN(), 0, 0),
		observation(20, math.NaN(), 0),
		observation(20, 0, math.NaN()),
		observation(math.Inf(1), math.Inf(-1), math.Inf(1)),
		observation(20, -3, -10),
		observation(20, 7, 0),
		{TempDayC: 20, HumidityPct: -40},
	}

	for _, policy := range []Policy{WeightedPolicy{}, PenaltyPolicy{}} {
		for _, obs := range inputs {
			score := policy.Score(obs)
			assert.GreaterOrEqual(t, score, MinScore, policy.Name())
			assert.LessOrEqual(t, score, MaxScore, policy.Name())
		}
	}
}

// TestPolicies_Monotonic tests that more wind or more rain never raises the score.
func TestPolicies_Monotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for _, policy := range []Policy{WeightedPolicy{}, PenaltyPolicy{}} {
		for i := 0; i < 2000; i++ {
			temp := rng.Float64()*60 - 20
			pop := rng.Float64()
			wind := rng.Float64() * 25

			base := policy.Score(observation(temp, pop, wind))

			moreWind := policy.Score(observation(temp, pop, wind+rng.Float64()*10))
			assert.LessOrEqual(t, moreWind, base, "%s wind t=%f p=%f w=%f", policy.Name(), temp, pop, wind)

			morePop := math.Min(1, pop+rng.Float64())
			moreRain := policy.Score(observation(temp, morePop, wind))
			assert.LessOrEqual(t, moreRain, base, "%s rain t=%f p=%f w=%f", policy.Name(), temp, pop, wind)
		}
	}
}

// TestByName tests policy resolution from configuration.
func TestByName(t *testing.T) {
	policy, err := ByName("")
	require.NoError(t, err)
	assert.Equal(t, PolicyWeighted, policy.Name())

	policy, err = ByName("Penalty")
	require.NoError(t, err)
	assert.Equal(t, PolicyPenalty, policy.Name())

	_, err = ByName("average")
	assert.Error(t, err)

	assert.Equal(t, PolicyWeighted, Default().Name())
}

// TestScoreAll tests that days keep provider order.
func TestScoreAll(t *testing.T) {
	days := []domain.DailyObservation{
		{EpochSeconds: 3, TempDayC: 32, PrecipitationProbability: 0.9, WindSpeedMps: 15},
		{EpochSeconds: 1, TempDayC: 20, PrecipitationProbability: 0, WindSpeedMps: 3},
	}

	scored := ScoreAll(WeightedPolicy{}, days)

	require.Len(t, scored, 2)
	assert.Equal(t, int64(3), scored[0].EpochSeconds)
	assert.Equal(t, 10, scored[0].Score)
	assert.Equal(t, int64(1), scored[1].EpochSeconds)
	assert.Equal(t, 100, scored[1].Score)
	assert.Empty(t, ScoreAll(WeightedPolicy{}, nil))
}

func FuzzPolicies_Bounded(f *testing.F) {
	f.Add(20.0, 0.0, 3.0)
	f.Add(32.0, 0.9, 15.0)
	f.Add(-40.0, 1.0, 40.0)
	f.Add(math.NaN(), 0.5, 5.0)

	f.Fuzz(func(t *testing.T, temp, pop, wind float64) {
		for _, policy := range []Policy{WeightedPolicy{}, PenaltyPolicy{}} {
			score := policy.Score(observation(temp, pop, wind))

			if score < MinScore || score > MaxScore {
				t.Fatalf("%s score %d out of bounds for t=%f p=%f w=%f", policy.Name(), score, temp, pop, wind)
			}
		}
	})
}
