package payout

import (
	"context"

	"github.com/google/uuid"

	"decision-engine/internal/models"
)

// PayoutStore persists payouts and enforces the at-most-one-open-payout
// invariant per (policy, hazard). CheckAndCreate returns the existing open
// payout together with models.ErrInvariantViolation when the slot is taken.
type PayoutStore interface {
	CheckAndCreate(ctx context.Context, payout *models.Payout) (*models.Payout, error)
	Update(ctx context.Context, payout *models.Payout) error
	AppendStage(ctx context.Context, entry *models.PayoutStageEntry) error
	AddSupportingEvidence(ctx context.Context, payoutID, evaluationID uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Payout, error)
	ListInStates(ctx context.Context, states ...models.PayoutState) ([]models.Payout, error)
	ListByPolicy(ctx context.Context, policyID uuid.UUID) ([]models.Payout, error)
}

// Notifier is the fire-and-forget notification port. Delivery channel (app
// push, SMS, voice) is external.
type Notifier interface {
	Notify(ctx context.Context, recipient string, kind models.EventKind, payload map[string]any) error
}
