package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"decision-engine/internal/models"
)

// PayoutRepository persists payout lifecycle state. The open-slot invariant
// (at most one open payout per policy and hazard) is enforced in
// CheckAndCreate under a row lock.
type PayoutRepository struct {
	db *sqlx.DB
}

func NewPayoutRepository(db *sqlx.DB) *PayoutRepository {
	return &PayoutRepository{db: db}
}

const payoutColumns = `id, policy_id, farmer_id, hazard, evaluation_id, amount, currency,
	state, payment_provider, escalated, compensation_amount, transfer_handle,
	initiated_at, confirmed_at, closed_at, cancel_reason, created_at, updated_at`

// CheckAndCreate inserts the payout unless an open payout already occupies
// the (policy, hazard) slot. When the slot is taken, the existing payout is
// returned together with models.ErrInvariantViolation so the caller can
// attach the new evaluation as supporting evidence instead.
func (r *PayoutRepository) CheckAndCreate(ctx context.Context, payout *models.Payout) (*models.Payout, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var existing models.Payout
	query := fmt.Sprintf(`
		SELECT %s FROM payout
		WHERE policy_id = $1 AND hazard = $2
			AND state NOT IN ($3, $4, $5)
			AND closed_at IS NULL
		FOR UPDATE`, payoutColumns)

	err = tx.GetContext(ctx, &existing, query,
		payout.PolicyID, payout.Hazard,
		models.PayoutConfirmed, models.PayoutCompensated, models.PayoutCancelled)
	if err == nil {
		return &existing, models.ErrInvariantViolation
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to check open payout slot: %w", err)
	}

	insert := `
		INSERT INTO payout (
			id, policy_id, farmer_id, hazard, evaluation_id, amount, currency,
			state, payment_provider, escalated, compensation_amount, transfer_handle,
			initiated_at, confirmed_at, closed_at, cancel_reason, created_at, updated_at
		) VALUES (
			:id, :policy_id, :farmer_id, :hazard, :evaluation_id, :amount, :currency,
			:state, :payment_provider, :escalated, :compensation_amount, :transfer_handle,
			:initiated_at, :confirmed_at, :closed_at, :cancel_reason, :created_at, :updated_at
		)`

	if _, err := tx.NamedExecContext(ctx, insert, payout); err != nil {
		return nil, fmt.Errorf("failed to insert payout: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit payout creation: %w", err)
	}

	return payout, nil
}

func (r *PayoutRepository) Update(ctx context.Context, payout *models.Payout) error {
	payout.UpdatedAt = time.Now()

	query := `
		UPDATE payout SET
			state = :state,
			payment_provider = :payment_provider,
			escalated = :escalated,
			compensation_amount = :compensation_amount,
			transfer_handle = :transfer_handle,
			initiated_at = :initiated_at,
			confirmed_at = :confirmed_at,
			closed_at = :closed_at,
			cancel_reason = :cancel_reason,
			updated_at = :updated_at
		WHERE id = :id`

	result, err := r.db.NamedExecContext(ctx, query, payout)
	if err != nil {
		return fmt.Errorf("failed to update payout: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if rows == 0 {
		return models.ErrPayoutNotFound
	}

	return nil
}

func (r *PayoutRepository) AppendStage(ctx context.Context, entry *models.PayoutStageEntry) error {
	query := `
		INSERT INTO payout_stage (id, payout_id, from_state, to_state, note, created_at)
		VALUES (:id, :payout_id, :from_state, :to_state, :note, :created_at)`

	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("failed to append stage entry: %w", err)
	}

	return nil
}

// AddSupportingEvidence records an evaluation that re-confirmed an already
// open payout. Duplicate attachments are ignored.
func (r *PayoutRepository) AddSupportingEvidence(ctx context.Context, payoutID, evaluationID uuid.UUID) error {
	query := `
		INSERT INTO payout_evidence (payout_id, evaluation_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (payout_id, evaluation_id) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, payoutID, evaluationID, time.Now()); err != nil {
		return fmt.Errorf("failed to add supporting evidence: %w", err)
	}

	return nil
}

func (r *PayoutRepository) GetByID(ctx context.Context, payoutID uuid.UUID) (*models.Payout, error) {
	var payout models.Payout
	query := fmt.Sprintf(`SELECT %s FROM payout WHERE id = $1`, payoutColumns)

	if err := r.db.GetContext(ctx, &payout, query, payoutID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrPayoutNotFound
		}
		return nil, fmt.Errorf("failed to get payout by id: %w", err)
	}

	if err := r.loadHistory(ctx, &payout); err != nil {
		return nil, err
	}

	return &payout, nil
}

func (r *PayoutRepository) ListInStates(ctx context.Context, states ...models.PayoutState) ([]models.Payout, error) {
	if len(states) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(
		fmt.Sprintf(`SELECT %s FROM payout WHERE state IN (?) ORDER BY created_at`, payoutColumns),
		states)
	if err != nil {
		return nil, fmt.Errorf("failed to build state filter: %w", err)
	}

	var payouts []models.Payout
	if err := r.db.SelectContext(ctx, &payouts, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list payouts by state: %w", err)
	}

	return payouts, nil
}

func (r *PayoutRepository) ListByPolicy(ctx context.Context, policyID uuid.UUID) ([]models.Payout, error) {
	var payouts []models.Payout
	query := fmt.Sprintf(`SELECT %s FROM payout WHERE policy_id = $1 ORDER BY created_at DESC`, payoutColumns)

	if err := r.db.SelectContext(ctx, &payouts, query, policyID); err != nil {
		return nil, fmt.Errorf("failed to list payouts by policy: %w", err)
	}

	return payouts, nil
}

func (r *PayoutRepository) loadHistory(ctx context.Context, payout *models.Payout) error {
	stageQuery := `
		SELECT id, payout_id, from_state, to_state, note, created_at
		FROM payout_stage
		WHERE payout_id = $1
		ORDER BY created_at`

	if err := r.db.SelectContext(ctx, &payout.StageHistory, stageQuery, payout.ID); err != nil {
		return fmt.Errorf("failed to load stage history: %w", err)
	}

	evidenceQuery := `
		SELECT evaluation_id FROM payout_evidence
		WHERE payout_id = $1
		ORDER BY created_at`

	if err := r.db.SelectContext(ctx, &payout.SupportingEvidence, evidenceQuery, payout.ID); err != nil {
		return fmt.Errorf("failed to load supporting evidence: %w", err)
	}

	return nil
}
