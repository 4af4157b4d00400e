package models

import (
	"time"

	"github.com/google/uuid"

	"decision-engine/internal/utils"
)

// ============================================================================
// TRIGGER EVALUATION
// ============================================================================

// TriggerEvaluation is the outcome of applying one hazard's rules to one
// policy in one sweep. Created once, never mutated; a newer evaluation
// supersedes it on the next sweep.
type TriggerEvaluation struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	PolicyID    uuid.UUID  `json:"policy_id" db:"policy_id"`
	Hazard      HazardType `json:"hazard" db:"hazard"`
	Triggered   bool       `json:"triggered" db:"triggered"`
	Advisory    bool       `json:"advisory" db:"advisory"`
	RiskScore   float64    `json:"risk_score" db:"risk_score"`
	Evidence    Evidence   `json:"evidence" db:"-"`
	EvaluatedAt time.Time  `json:"evaluated_at" db:"evaluated_at"`
}

// Evidence carries the raw indicator values, rule outcomes and snapshot
// source tiers that justify a decision to the policyholder and an auditor.
type Evidence struct {
	SnapshotID   uuid.UUID     `json:"snapshot_id"`
	Tier         SourceTier    `json:"tier"`
	Indicators   utils.JSONMap `json:"indicators"`
	RuleOutcomes utils.JSONMap `json:"rule_outcomes"`
	Notes        []string      `json:"notes,omitempty"`
}
