package trigger

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"decision-engine/internal/config"
	"decision-engine/internal/models"
	"decision-engine/internal/scoring"
	"decision-engine/internal/utils"
)

// Evaluator applies per-hazard rules to a snapshot (plus trailing history
// for persistence rules) and produces an evaluation with full evidence.
// Thresholds come from configuration; nothing here is hard-coded.
type Evaluator struct {
	cfg           config.TriggerConfig
	hazardProfile *scoring.WeightProfile
	now           func() time.Time
}

type IEvaluator interface {
	Evaluate(policy *models.Policy, hazard models.HazardType, snapshot *models.EnvironmentalSnapshot, history []models.EnvironmentalSnapshot) (*models.TriggerEvaluation, error)
}

func NewEvaluator(cfg config.TriggerConfig, hazardProfile *scoring.WeightProfile) *Evaluator {
	return &Evaluator{cfg: cfg, hazardProfile: hazardProfile, now: time.Now}
}

// Evaluate runs one hazard's rule against one policy. A "not triggered"
// outcome is a normal value, never an error. Snapshots from the simulated
// tier can only produce advisory output.
func (e *Evaluator) Evaluate(policy *models.Policy, hazard models.HazardType, snapshot *models.EnvironmentalSnapshot, history []models.EnvironmentalSnapshot) (*models.TriggerEvaluation, error) {
	if !models.IsValidHazard(hazard) {
		return nil, fmt.Errorf("unknown hazard type: %s", hazard)
	}

	var satisfied, advisory bool
	var outcomes utils.JSONMap
	var notes []string

	switch hazard {
	case models.HazardDrought:
		satisfied, outcomes = e.evaluateDrought(&snapshot.Indicators)
	case models.HazardFlood:
		satisfied, outcomes = e.evaluateFlood(&snapshot.Indicators)
	case models.HazardCropStress:
		satisfied, advisory, outcomes, notes = e.evaluateCropStress(snapshot, history)
	}

	riskScore := e.riskScore(&snapshot.Indicators)

	evaluation := &models.TriggerEvaluation{
		ID:          uuid.New(),
		PolicyID:    policy.ID,
		Hazard:      hazard,
		RiskScore:   riskScore,
		EvaluatedAt: e.now(),
		Evidence: models.Evidence{
			SnapshotID:   snapshot.ID,
			Tier:         snapshot.Tier,
			Indicators:   indicatorEvidence(&snapshot.Indicators),
			RuleOutcomes: outcomes,
			Notes:        notes,
		},
	}

	evaluation.Advisory = advisory

	if satisfied && !snapshot.Tier.Binding() {
		// Rule conditions met on simulated data: advisory only, never a
		// binding trigger.
		evaluation.Advisory = true
		evaluation.Evidence.Notes = append(evaluation.Evidence.Notes,
			"conditions met on simulated-tier data; excluded from binding decisions")
		return evaluation, nil
	}

	evaluation.Triggered = satisfied
	return evaluation, nil
}

// evaluateDrought fires when at least 3 of the 4 indicators are true,
// tolerating one noisy or missing indicator without losing sensitivity.
func (e *Evaluator) evaluateDrought(ind *models.IndicatorSet) (bool, utils.JSONMap) {
	drySpell := ind.ConsecutiveDryDays > e.cfg.DroughtDryDays
	vegetation := ind.VegetationIndex < e.cfg.DroughtVegCritical
	temperature := ind.MaxTempC > e.cfg.DroughtMaxTempC
	soil := ind.SoilMoisture < e.cfg.DroughtSoilFloor

	count := 0
	for _, hit := range []bool{drySpell, vegetation, temperature, soil} {
		if hit {
			count++
		}
	}

	return count >= 3, utils.JSONMap{
		"dry_spell_exceeded":   drySpell,
		"vegetation_critical":  vegetation,
		"temperature_exceeded": temperature,
		"soil_moisture_low":    soil,
		"indicators_true":      count,
		"indicators_required":  3,
	}
}

// evaluateFlood fires on the highest risk category alone, or on the second
// highest combined with a 7-day probability above the configured threshold.
func (e *Evaluator) evaluateFlood(ind *models.IndicatorSet) (bool, utils.JSONMap) {
	critical := ind.FloodRisk == models.FloodRiskCritical
	highWithProb := ind.FloodRisk == models.FloodRiskHigh && ind.FloodProbability > e.cfg.FloodProbThreshold

	return critical || highWithProb, utils.JSONMap{
		"risk_critical":         critical,
		"risk_high_with_prob":   highWithProb,
		"probability_threshold": e.cfg.FloodProbThreshold,
	}
}

// evaluateCropStress requires the sub-critical vegetation condition to have
// persisted across every observation in the trailing window, plus elevated
// water stress. A single bad reading raises an advisory, never a binding
// trigger.
func (e *Evaluator) evaluateCropStress(snapshot *models.EnvironmentalSnapshot, history []models.EnvironmentalSnapshot) (bool, bool, utils.JSONMap, []string) {
	ind := &snapshot.Indicators
	subCritical := ind.VegetationIndex < e.cfg.CropStressVegFloor
	waterStressed := ind.WaterStressIndex > e.cfg.CropStressWaterMin
	persisted, observed := e.persistedBelowFloor(snapshot, history)

	advisory := subCritical && !persisted
	var notes []string
	if advisory {
		notes = append(notes, "advisory: vegetation index below critical floor in a single reading; persistence window not satisfied")
	}

	outcomes := utils.JSONMap{
		"vegetation_sub_critical": subCritical,
		"persistence_satisfied":   persisted,
		"water_stress_elevated":   waterStressed,
		"window_days":             e.cfg.CropStressWindow,
		"window_observations":     observed,
	}

	return subCritical && persisted && waterStressed, advisory, outcomes, notes
}

// persistedBelowFloor checks that every observation in the trailing window
// is sub-critical and that the window is actually covered by real history,
// not assumed from one reading.
func (e *Evaluator) persistedBelowFloor(snapshot *models.EnvironmentalSnapshot, history []models.EnvironmentalSnapshot) (bool, int) {
	windowStart := snapshot.MeasuredAt.AddDate(0, 0, -e.cfg.CropStressWindow)

	observed := 0
	oldest := snapshot.MeasuredAt
	for _, prior := range history {
		if prior.MeasuredAt.Before(windowStart) || prior.MeasuredAt.After(snapshot.MeasuredAt) {
			continue
		}
		observed++
		if prior.MeasuredAt.Before(oldest) {
			oldest = prior.MeasuredAt
		}
		if prior.Indicators.VegetationIndex >= e.cfg.CropStressVegFloor {
			return false, observed
		}
	}

	if observed == 0 {
		return false, 0
	}

	// The earliest sub-critical observation must reach back through the
	// window; a short streak of bad days is not persistence.
	covered := snapshot.MeasuredAt.Sub(oldest) >= time.Duration(e.cfg.CropStressWindow-1)*24*time.Hour
	return covered, observed
}

// riskScore folds the snapshot indicators into the shared composite used by
// triggering, pricing and credit. Sub-scores are normalized into [0,1].
func (e *Evaluator) riskScore(ind *models.IndicatorSet) float64 {
	subscores := map[string]float64{
		"dry_spell":   ratio(float64(ind.ConsecutiveDryDays), float64(2*e.cfg.DroughtDryDays)),
		"vegetation":  1 - ratio(ind.VegetationIndex, 2*e.cfg.DroughtVegCritical),
		"temperature": ratio(ind.MaxTempC, e.cfg.DroughtMaxTempC+10),
		"soil":        1 - ratio(ind.SoilMoisture, 2*e.cfg.DroughtSoilFloor),
	}

	score, err := e.hazardProfile.Score(subscores)
	if err != nil {
		// Profile keys are validated at startup; reaching this means the
		// normalization map above drifted from the profile.
		return 0
	}
	return score.Value
}

func indicatorEvidence(ind *models.IndicatorSet) utils.JSONMap {
	return utils.JSONMap{
		"consecutive_dry_days": ind.ConsecutiveDryDays,
		"max_temp_c":           ind.MaxTempC,
		"soil_moisture":        ind.SoilMoisture,
		"vegetation_index":     ind.VegetationIndex,
		"vegetation_trend_14d": ind.VegetationTrend14d,
		"water_stress_index":   ind.WaterStressIndex,
		"flood_risk":           string(ind.FloodRisk),
		"flood_probability":    ind.FloodProbability,
	}
}

func ratio(value, max float64) float64 {
	if max <= 0 {
		return 0
	}
	r := value / max
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}
