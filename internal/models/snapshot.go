package models

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// ENVIRONMENTAL SNAPSHOT (TIME-SERIES)
// ============================================================================

// EnvironmentalSnapshot is one fetched set of indicators for a location and
// time. Immutable once produced; one per (policy, sweep).
type EnvironmentalSnapshot struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	PolicyID   uuid.UUID  `json:"policy_id" db:"policy_id"`
	Lat        float64    `json:"lat" db:"lat"`
	Lon        float64    `json:"lon" db:"lon"`
	Tier       SourceTier `json:"tier" db:"tier"`
	Confident  bool       `json:"confident" db:"confident"`
	MeasuredAt time.Time  `json:"measured_at" db:"measured_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`

	Indicators IndicatorSet `json:"indicators" db:"-"`
}

// IndicatorSet carries the per-hazard indicator values of one snapshot.
type IndicatorSet struct {
	ConsecutiveDryDays int     `json:"consecutive_dry_days" db:"consecutive_dry_days"`
	MaxTempC           float64 `json:"max_temp_c" db:"max_temp_c"`
	SoilMoisture       float64 `json:"soil_moisture" db:"soil_moisture"`
	VegetationIndex    float64 `json:"vegetation_index" db:"vegetation_index"`
	VegetationTrend14d float64 `json:"vegetation_trend_14d" db:"vegetation_trend_14d"`
	WaterStressIndex   float64 `json:"water_stress_index" db:"water_stress_index"`

	FloodRisk        FloodRiskLevel `json:"flood_risk" db:"flood_risk"`
	FloodProbability float64        `json:"flood_probability" db:"flood_probability"`

	SoilQuality map[string]float64 `json:"soil_quality,omitempty" db:"-"`
}
