package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"decision-engine/internal/models"
)

// EvaluationRepository persists trigger evaluations. Evaluations are
// immutable; evidence is stored as JSONB alongside the verdict.
type EvaluationRepository struct {
	db *sqlx.DB
}

func NewEvaluationRepository(db *sqlx.DB) *EvaluationRepository {
	return &EvaluationRepository{db: db}
}

type evaluationRow struct {
	ID          uuid.UUID         `db:"id"`
	PolicyID    uuid.UUID         `db:"policy_id"`
	Hazard      models.HazardType `db:"hazard"`
	Triggered   bool              `db:"triggered"`
	Advisory    bool              `db:"advisory"`
	RiskScore   float64           `db:"risk_score"`
	Evidence    []byte            `db:"evidence"`
	EvaluatedAt time.Time         `db:"evaluated_at"`
}

func (r *EvaluationRepository) Insert(ctx context.Context, evaluation *models.TriggerEvaluation) error {
	evidence, err := json.Marshal(evaluation.Evidence)
	if err != nil {
		return fmt.Errorf("failed to marshal evidence: %w", err)
	}

	row := evaluationRow{
		ID:          evaluation.ID,
		PolicyID:    evaluation.PolicyID,
		Hazard:      evaluation.Hazard,
		Triggered:   evaluation.Triggered,
		Advisory:    evaluation.Advisory,
		RiskScore:   evaluation.RiskScore,
		Evidence:    evidence,
		EvaluatedAt: evaluation.EvaluatedAt,
	}

	query := `
		INSERT INTO trigger_evaluation (
			id, policy_id, hazard, triggered, advisory, risk_score, evidence, evaluated_at
		) VALUES (
			:id, :policy_id, :hazard, :triggered, :advisory, :risk_score, :evidence, :evaluated_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to insert evaluation: %w", err)
	}

	return nil
}

func (r *EvaluationRepository) GetByID(ctx context.Context, evaluationID uuid.UUID) (*models.TriggerEvaluation, error) {
	var row evaluationRow
	query := `
		SELECT id, policy_id, hazard, triggered, advisory, risk_score, evidence, evaluated_at
		FROM trigger_evaluation
		WHERE id = $1`

	if err := r.db.GetContext(ctx, &row, query, evaluationID); err != nil {
		return nil, fmt.Errorf("failed to get evaluation by id: %w", err)
	}

	evaluation := &models.TriggerEvaluation{
		ID:          row.ID,
		PolicyID:    row.PolicyID,
		Hazard:      row.Hazard,
		Triggered:   row.Triggered,
		Advisory:    row.Advisory,
		RiskScore:   row.RiskScore,
		EvaluatedAt: row.EvaluatedAt,
	}
	if len(row.Evidence) > 0 {
		if err := json.Unmarshal(row.Evidence, &evaluation.Evidence); err != nil {
			return nil, fmt.Errorf("failed to unmarshal evidence: %w", err)
		}
	}

	return evaluation, nil
}

// ListByPolicy returns a policy's evaluations, newest first.
func (r *EvaluationRepository) ListByPolicy(ctx context.Context, policyID uuid.UUID, limit int) ([]models.TriggerEvaluation, error) {
	var rows []evaluationRow
	query := `
		SELECT id, policy_id, hazard, triggered, advisory, risk_score, evidence, evaluated_at
		FROM trigger_evaluation
		WHERE policy_id = $1
		ORDER BY evaluated_at DESC
		LIMIT $2`

	if err := r.db.SelectContext(ctx, &rows, query, policyID, limit); err != nil {
		return nil, fmt.Errorf("failed to list evaluations by policy: %w", err)
	}

	evaluations := make([]models.TriggerEvaluation, 0, len(rows))
	for i := range rows {
		evaluation := models.TriggerEvaluation{
			ID:          rows[i].ID,
			PolicyID:    rows[i].PolicyID,
			Hazard:      rows[i].Hazard,
			Triggered:   rows[i].Triggered,
			Advisory:    rows[i].Advisory,
			RiskScore:   rows[i].RiskScore,
			EvaluatedAt: rows[i].EvaluatedAt,
		}
		if len(rows[i].Evidence) > 0 {
			if err := json.Unmarshal(rows[i].Evidence, &evaluation.Evidence); err != nil {
				return nil, fmt.Errorf("failed to unmarshal evidence: %w", err)
			}
		}
		evaluations = append(evaluations, evaluation)
	}

	return evaluations, nil
}
