package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"decision-engine/internal/models"
)

// ============================================================================
// TEST HELPERS
// ============================================================================

func hazardProfile(t *testing.T) *WeightProfile {
	t.Helper()
	profile, err := NewWeightProfile("hazard_risk", map[string]float64{
		"dry_spell":   0.30,
		"vegetation":  0.30,
		"temperature": 0.20,
		"soil":        0.20,
	})
	assert.NoError(t, err)
	return profile
}

// ============================================================================
// TEST SUITE 1: PROFILE VALIDATION
// ============================================================================

func TestNewWeightProfile_Valid(t *testing.T) {
	profile, err := NewWeightProfile("premium", map[string]float64{
		"hazard_risk": 0.50,
		"crop":        0.25,
		"soil":        0.25,
	})

	assert.NoError(t, err)
	assert.Equal(t, "premium", profile.Name)
	assert.Len(t, profile.Weights, 3)
}

func TestNewWeightProfile_Empty(t *testing.T) {
	_, err := NewWeightProfile("empty", map[string]float64{})

	var cfgErr *models.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestNewWeightProfile_NegativeWeight(t *testing.T) {
	_, err := NewWeightProfile("bad", map[string]float64{
		"a": 1.5,
		"b": -0.5,
	})

	var cfgErr *models.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Field, "b")
}

func TestNewWeightProfile_SumNotOne(t *testing.T) {
	_, err := NewWeightProfile("bad", map[string]float64{
		"a": 0.5,
		"b": 0.4,
	})

	var cfgErr *models.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestNewWeightProfile_CopiesWeights(t *testing.T) {
	weights := map[string]float64{"a": 0.5, "b": 0.5}
	profile, err := NewWeightProfile("copy", weights)
	assert.NoError(t, err)

	weights["a"] = 99
	assert.Equal(t, 0.5, profile.Weights["a"], "Profile must not alias the caller's map")
}

// ============================================================================
// TEST SUITE 2: COMPOSITE SCORING
// ============================================================================

func TestScore_WeightedSum(t *testing.T) {
	profile := hazardProfile(t)

	score, err := profile.Score(map[string]float64{
		"dry_spell":   1.0,
		"vegetation":  0.5,
		"temperature": 0.0,
		"soil":        0.0,
	})

	assert.NoError(t, err)
	assert.InDelta(t, 0.45, score.Value, 1e-12, "0.30*1.0 + 0.30*0.5 = 0.45")
	assert.Equal(t, 0.5, score.Breakdown["vegetation"])
	assert.Equal(t, 0.30, score.Weights["dry_spell"])
}

func TestScore_Deterministic(t *testing.T) {
	profile := hazardProfile(t)
	subscores := map[string]float64{
		"dry_spell":   0.73,
		"vegetation":  0.11,
		"temperature": 0.59,
		"soil":        0.42,
	}

	first, err := profile.Score(subscores)
	assert.NoError(t, err)

	// Map iteration order varies; the folded value must not.
	for range 100 {
		again, err := profile.Score(subscores)
		assert.NoError(t, err)
		assert.Equal(t, first.Value, again.Value, "Identical inputs must produce the identical composite")
	}
}

func TestScore_ClampsOutOfRangeSubscores(t *testing.T) {
	profile := hazardProfile(t)

	score, err := profile.Score(map[string]float64{
		"dry_spell":   2.0,
		"vegetation":  -1.0,
		"temperature": 1.0,
		"soil":        1.0,
	})

	assert.NoError(t, err)
	assert.Equal(t, 1.0, score.Breakdown["dry_spell"])
	assert.Equal(t, 0.0, score.Breakdown["vegetation"])
	assert.GreaterOrEqual(t, score.Value, 0.0)
	assert.LessOrEqual(t, score.Value, 1.0)
}

func TestScore_UnknownKey(t *testing.T) {
	profile := hazardProfile(t)

	_, err := profile.Score(map[string]float64{
		"dry_spell":   0.5,
		"vegetation":  0.5,
		"temperature": 0.5,
		"humidity":    0.5,
	})

	var cfgErr *models.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestScore_MissingKey(t *testing.T) {
	profile := hazardProfile(t)

	_, err := profile.Score(map[string]float64{
		"dry_spell": 0.5,
	})

	var cfgErr *models.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

// ============================================================================
// TEST SUITE 3: PREMIUM AND CREDIT MAPPINGS
// ============================================================================

func TestPremiumMultiplier_Bounds(t *testing.T) {
	low := PremiumMultiplier(models.CompositeScore{Value: 0.0}, 0.8, 2.0)
	high := PremiumMultiplier(models.CompositeScore{Value: 1.0}, 0.8, 2.0)
	mid := PremiumMultiplier(models.CompositeScore{Value: 0.5}, 0.8, 2.0)

	assert.Equal(t, 0.8, low, "Zero risk prices at the floor")
	assert.Equal(t, 2.0, high, "Maximum risk prices at the cap")
	assert.InDelta(t, 1.4, mid, 1e-12)
}

func TestCreditScore_ScaleAndRounding(t *testing.T) {
	assert.Equal(t, 0.0, CreditScore(models.CompositeScore{Value: 0.0}, 1000))
	assert.Equal(t, 1000.0, CreditScore(models.CompositeScore{Value: 1.0}, 1000))
	assert.Equal(t, 715.0, CreditScore(models.CompositeScore{Value: 0.7149}, 1000))
}
