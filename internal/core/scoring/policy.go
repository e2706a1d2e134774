// Package scoring turns a day of weather into a 0-100 ride-quality score.
//
// Two policies exist. WeightedPolicy is the canonical one and the default;
// PenaltyPolicy reproduces the older penalty cascade and must be selected by name.
// They disagree for the same input and are never combined.
package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/sean-rowe/best-bike-day/internal/core/domain"
)

const (
	// MinScore and MaxScore bound every score.
	MinScore = 0
	MaxScore = 100

	// PolicyWeighted names the canonical weighted-factor policy.
	PolicyWeighted = "weighted"

	// PolicyPenalty names the penalty-cascade policy.
	PolicyPenalty = "penalty"
)

// Policy scores a single observation. Implementations are pure and total:
// any input, including NaN, yields a score in [MinScore, MaxScore].
type Policy interface {
	Name() string
	Score(observation domain.DailyObservation) int
}

// Default returns the canonical policy.
func Default() Policy {
	return WeightedPolicy{}
}

// ByName resolves a policy name from configuration. An empty name selects the default.
func ByName(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PolicyWeighted:
		return WeightedPolicy{}, nil
	case PolicyPenalty:
		return PenaltyPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown scoring policy %q", name)
	}
}

// ScoreAll scores every day, preserving the input order.
func ScoreAll(policy Policy, days []domain.DailyObservation) []domain.ScoredForecast {
	scored := make([]domain.ScoredForecast, 0, len(days))

	for _, day := range days {
		scored = append(scored, domain.ScoredForecast{
			DailyObservation: day,
			Score:            policy.Score(day),
		})
	}

	return scored
}

// clamp rounds raw to the nearest integer inside the score bounds. NaN maps to MinScore.
func clamp(raw float64) int {
	switch {
	case math.IsNaN(raw) || raw <= MinScore:
		return MinScore
	case raw >= MaxScore:
		return MaxScore
	default:
		return int(math.Round(raw))
	}
}
