package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"decision-engine/internal/models"
)

// PolicyRepository is the read port over the external policy registry's
// replicated view. The engine never writes policies.
type PolicyRepository struct {
	db *sqlx.DB
}

func NewPolicyRepository(db *sqlx.DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

// ListActivePolicies returns the immutable per-sweep view of every policy
// eligible for evaluation.
func (r *PolicyRepository) ListActivePolicies(ctx context.Context) ([]models.Policy, error) {
	var policies []models.Policy
	query := `
		SELECT id, policy_number, farmer_id, crop_type, farm_size_ha, location,
			coverage_per_hectare, currency, payment_provider, payment_recipient,
			status, created_at
		FROM policy
		WHERE status = $1
		ORDER BY created_at`

	if err := r.db.SelectContext(ctx, &policies, query, models.PolicyActive); err != nil {
		return nil, fmt.Errorf("failed to list active policies: %w", err)
	}

	return policies, nil
}

func (r *PolicyRepository) GetByID(ctx context.Context, policyID uuid.UUID) (*models.Policy, error) {
	var policy models.Policy
	query := `
		SELECT id, policy_number, farmer_id, crop_type, farm_size_ha, location,
			coverage_per_hectare, currency, payment_provider, payment_recipient,
			status, created_at
		FROM policy
		WHERE id = $1`

	if err := r.db.GetContext(ctx, &policy, query, policyID); err != nil {
		return nil, fmt.Errorf("failed to get policy by id: %w", err)
	}

	return &policy, nil
}
