package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"decision-engine/internal/models"
)

// ============================================================================
// TEST SUITE 1: DEFAULTS AND VALIDATION
// ============================================================================

func TestNew_DefaultsValidate(t *testing.T) {
	cfg := New()

	assert.NoError(t, cfg.Validate(), "Shipped defaults must be a valid configuration")
	assert.Equal(t, 21, cfg.TriggerCfg.DroughtDryDays)
	assert.Equal(t, 0.7, cfg.TriggerCfg.FloodProbThreshold)
	assert.Equal(t, 48*time.Hour, cfg.PayoutCfg.EscalationSLA)
	assert.Equal(t, 0.05, cfg.PayoutCfg.CompensationPerDay)
	assert.Equal(t, 0.25, cfg.PayoutCfg.CompensationCap)
}

func TestValidate_WeightsMustSumToOne(t *testing.T) {
	cfg := New()
	cfg.ScoringCfg.HazardWeights["dry_spell"] = 0.99

	err := cfg.Validate()

	var cfgErr *models.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Field, "hazard_weights")
}

func TestValidate_NegativeWeightRejected(t *testing.T) {
	cfg := New()
	cfg.ScoringCfg.PremiumWeights["crop"] = -0.25
	cfg.ScoringCfg.PremiumWeights["soil"] = 0.75

	err := cfg.Validate()

	var cfgErr *models.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestValidate_FloodThresholdRange(t *testing.T) {
	cfg := New()
	cfg.TriggerCfg.FloodProbThreshold = 1.5

	err := cfg.Validate()

	var cfgErr *models.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Field, "flood_prob_threshold")
}

func TestValidate_EscalationSLAMustBePositive(t *testing.T) {
	cfg := New()
	cfg.PayoutCfg.EscalationSLA = 0

	err := cfg.Validate()

	var cfgErr *models.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestValidate_SweepPoolMustBeSized(t *testing.T) {
	cfg := New()
	cfg.SweepCfg.NumWorkers = 0

	err := cfg.Validate()

	var cfgErr *models.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

// ============================================================================
// TEST SUITE 2: ENVIRONMENT OVERRIDES
// ============================================================================

func TestNew_EnvOverrides(t *testing.T) {
	t.Setenv("DROUGHT_DRY_DAYS", "30")
	t.Setenv("FLOOD_PROB_THRESHOLD", "0.85")
	t.Setenv("ESCALATION_SLA", "72h")
	t.Setenv("SWEEP_WORKERS", "16")

	cfg := New()

	assert.Equal(t, 30, cfg.TriggerCfg.DroughtDryDays)
	assert.Equal(t, 0.85, cfg.TriggerCfg.FloodProbThreshold)
	assert.Equal(t, 72*time.Hour, cfg.PayoutCfg.EscalationSLA)
	assert.Equal(t, 16, cfg.SweepCfg.NumWorkers)
}

func TestNew_MalformedEnvFallsBackToDefault(t *testing.T) {
	t.Setenv("DROUGHT_DRY_DAYS", "three weeks")
	t.Setenv("ESCALATION_SLA", "soon")

	cfg := New()

	assert.Equal(t, 21, cfg.TriggerCfg.DroughtDryDays)
	assert.Equal(t, 48*time.Hour, cfg.PayoutCfg.EscalationSLA)
}
