package scoring

import (
	"fmt"
	"math"
	"sort"

	"decision-engine/internal/models"
)

// WeightProfile is a fixed, validated weight configuration for one use case
// (hazard risk, premium multiplier, credit score). Profiles are built at
// startup; a key mismatch at score time is a configuration bug, not a
// runtime condition, and Score reports it as an error.
type WeightProfile struct {
	Name    string
	Weights map[string]float64
}

// NewWeightProfile validates that weights are non-negative and sum to 1.0.
func NewWeightProfile(name string, weights map[string]float64) (*WeightProfile, error) {
	if len(weights) == 0 {
		return nil, &models.ConfigError{Field: name, Reason: "weight profile is empty"}
	}

	sum := 0.0
	for key, w := range weights {
		if w < 0 {
			return nil, &models.ConfigError{Field: name + "." + key, Reason: "weight must be non-negative"}
		}
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-9 {
		return nil, &models.ConfigError{Field: name, Reason: fmt.Sprintf("weights sum to %f, want 1.0", sum)}
	}

	copied := make(map[string]float64, len(weights))
	for k, v := range weights {
		copied[k] = v
	}

	return &WeightProfile{Name: name, Weights: copied}, nil
}

// Score aggregates named sub-scores in [0,1] into one bounded composite.
// Deterministic and pure: identical inputs always produce the identical
// value and breakdown. Keys are folded in sorted order so floating-point
// summation order never varies between calls.
func (p *WeightProfile) Score(subscores map[string]float64) (models.CompositeScore, error) {
	if len(subscores) != len(p.Weights) {
		return models.CompositeScore{}, &models.ConfigError{
			Field:  p.Name,
			Reason: fmt.Sprintf("got %d sub-scores, profile has %d weights", len(subscores), len(p.Weights)),
		}
	}

	keys := make([]string, 0, len(subscores))
	for key := range subscores {
		if _, ok := p.Weights[key]; !ok {
			return models.CompositeScore{}, &models.ConfigError{
				Field:  p.Name + "." + key,
				Reason: "sub-score has no matching weight",
			}
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	value := 0.0
	breakdown := make(map[string]float64, len(keys))
	weights := make(map[string]float64, len(keys))
	for _, key := range keys {
		sub := clamp01(subscores[key])
		weighted := sub * p.Weights[key]
		value += weighted
		breakdown[key] = sub
		weights[key] = p.Weights[key]
	}

	return models.CompositeScore{
		Value:     clamp01(value),
		Breakdown: breakdown,
		Weights:   weights,
	}, nil
}

// PremiumMultiplier maps a composite risk value into the bounded multiplier
// range, e.g. [0.8, 2.0]. Low risk prices below 1.0, high risk above.
func PremiumMultiplier(score models.CompositeScore, min, max float64) float64 {
	return min + clamp01(score.Value)*(max-min)
}

// CreditScore scales a composite value to the wider credit range, e.g.
// [0, 1000]. Higher composite means better creditworthiness.
func CreditScore(score models.CompositeScore, scale float64) float64 {
	return math.Round(clamp01(score.Value) * scale)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
