package models

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// PAYOUT
// ============================================================================

// Payout is owned by the orchestrator for its entire lifecycle. Terminal
// states are immutable; stage history is append-only.
type Payout struct {
	ID                 uuid.UUID   `json:"id" db:"id"`
	PolicyID           uuid.UUID   `json:"policy_id" db:"policy_id"`
	FarmerID           string      `json:"farmer_id" db:"farmer_id"`
	Hazard             HazardType  `json:"hazard" db:"hazard"`
	EvaluationID       uuid.UUID   `json:"evaluation_id" db:"evaluation_id"`
	Amount             float64     `json:"amount" db:"amount"`
	Currency           string      `json:"currency" db:"currency"`
	State              PayoutState `json:"state" db:"state"`
	PaymentProvider    string      `json:"payment_provider" db:"payment_provider"`
	Escalated          bool        `json:"escalated" db:"escalated"`
	CompensationAmount float64     `json:"compensation_amount" db:"compensation_amount"`
	TransferHandle     *string     `json:"transfer_handle,omitempty" db:"transfer_handle"`
	InitiatedAt        *time.Time  `json:"initiated_at,omitempty" db:"initiated_at"`
	ConfirmedAt        *time.Time  `json:"confirmed_at,omitempty" db:"confirmed_at"`
	ClosedAt           *time.Time  `json:"closed_at,omitempty" db:"closed_at"`
	CancelReason       *string     `json:"cancel_reason,omitempty" db:"cancel_reason"`
	CreatedAt          time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at" db:"updated_at"`

	StageHistory       []PayoutStageEntry `json:"stage_history" db:"-"`
	SupportingEvidence []uuid.UUID        `json:"supporting_evidence,omitempty" db:"-"`
}

// PayoutStageEntry is one entry in the append-only transition log.
type PayoutStageEntry struct {
	ID        uuid.UUID   `json:"id" db:"id"`
	PayoutID  uuid.UUID   `json:"payout_id" db:"payout_id"`
	FromState PayoutState `json:"from_state" db:"from_state"`
	ToState   PayoutState `json:"to_state" db:"to_state"`
	Note      string      `json:"note,omitempty" db:"note"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
}

// TotalDue is principal plus accrued delay compensation.
func (p *Payout) TotalDue() float64 {
	return p.Amount + p.CompensationAmount
}
