package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"decision-engine/internal/config"
	"decision-engine/internal/gateway"
	"decision-engine/internal/models"
	"decision-engine/internal/payout"
	"decision-engine/internal/trigger"
)

// PolicySource lists the policies eligible for evaluation this sweep.
type PolicySource interface {
	ListActivePolicies(ctx context.Context) ([]models.Policy, error)
}

// SnapshotStore persists fetched snapshots and serves the trailing window
// for persistence rules.
type SnapshotStore interface {
	Insert(ctx context.Context, snapshot *models.EnvironmentalSnapshot) error
	GetTrailingWindow(ctx context.Context, policyID uuid.UUID, days int) ([]models.EnvironmentalSnapshot, error)
}

// EvaluationStore persists immutable trigger evaluations.
type EvaluationStore interface {
	Insert(ctx context.Context, evaluation *models.TriggerEvaluation) error
}

// TriggerSink receives positive binding evaluations.
type TriggerSink interface {
	HandleTrigger(ctx context.Context, policy *models.Policy, evaluation *models.TriggerEvaluation) (*models.Payout, error)
}

// EvidenceSink archives decision evidence. Failures are logged, never fatal.
type EvidenceSink interface {
	ArchiveEvaluation(ctx context.Context, evaluation *models.TriggerEvaluation, snapshot *models.EnvironmentalSnapshot) error
}

// SweepService walks every active policy once per interval: fetch a
// snapshot, evaluate each hazard, and hand positive triggers to the payout
// orchestrator. One policy failing never aborts the sweep.
type SweepService struct {
	policies    PolicySource
	snapshots   SnapshotStore
	evaluations EvaluationStore
	gateway     gateway.IGateway
	evaluator   trigger.IEvaluator
	sink        TriggerSink
	archive     EvidenceSink
	notifier    payout.Notifier
	windowDays  int
	pool        *WorkingPool
}

func NewSweepService(
	policies PolicySource,
	snapshots SnapshotStore,
	evaluations EvaluationStore,
	gw gateway.IGateway,
	evaluator trigger.IEvaluator,
	sink TriggerSink,
	archive EvidenceSink,
	notifier payout.Notifier,
	triggerCfg config.TriggerConfig,
	pool *WorkingPool,
) *SweepService {
	return &SweepService{
		policies:    policies,
		snapshots:   snapshots,
		evaluations: evaluations,
		gateway:     gw,
		evaluator:   evaluator,
		sink:        sink,
		archive:     archive,
		notifier:    notifier,
		windowDays:  triggerCfg.CropStressWindow,
		pool:        pool,
	}
}

// Sweep lists active policies and submits one evaluation job per policy to
// the pool. The per-sweep policy view is immutable: mid-sweep registry
// changes take effect next sweep.
func (s *SweepService) Sweep(ctx context.Context) error {
	policies, err := s.policies.ListActivePolicies(ctx)
	if err != nil {
		return fmt.Errorf("failed to list policies for sweep: %w", err)
	}

	slog.Info("Sweep started", "policies", len(policies))

	for i := range policies {
		policy := policies[i]
		s.pool.SubmitJob(func(jobCtx context.Context) error {
			return s.EvaluatePolicy(jobCtx, &policy)
		})
	}

	return nil
}

// EvaluatePolicy runs the full evaluation pipeline for one policy.
func (s *SweepService) EvaluatePolicy(ctx context.Context, policy *models.Policy) error {
	lat, lon := policy.Location.Lat(), policy.Location.Lon()

	snapshot, err := s.gateway.FetchSnapshot(ctx, policy.ID, lat, lon, models.AllHazards)
	if err != nil {
		if errors.Is(err, models.ErrDataUnavailable) {
			slog.Warn("No environmental data for policy this sweep",
				"policy_id", policy.ID, "error", err)
			return nil
		}
		return fmt.Errorf("failed to fetch snapshot for policy %s: %w", policy.ID, err)
	}

	if err := s.snapshots.Insert(ctx, snapshot); err != nil {
		slog.Error("Failed to persist snapshot", "policy_id", policy.ID, "error", err)
	}

	history, err := s.snapshots.GetTrailingWindow(ctx, policy.ID, s.windowDays)
	if err != nil {
		slog.Error("Failed to load trailing window", "policy_id", policy.ID, "error", err)
		history = nil
	}

	for _, hazard := range models.AllHazards {
		evaluation, err := s.evaluator.Evaluate(policy, hazard, snapshot, history)
		if err != nil {
			slog.Error("Hazard evaluation failed",
				"policy_id", policy.ID, "hazard", hazard, "error", err)
			continue
		}

		if err := s.evaluations.Insert(ctx, evaluation); err != nil {
			slog.Error("Failed to persist evaluation",
				"evaluation_id", evaluation.ID, "error", err)
		}

		switch {
		case evaluation.Triggered:
			s.handlePositiveTrigger(ctx, policy, evaluation, snapshot)
		case evaluation.Advisory:
			s.sendAdvisory(ctx, policy, evaluation)
		}
	}

	return nil
}

func (s *SweepService) handlePositiveTrigger(ctx context.Context, policy *models.Policy, evaluation *models.TriggerEvaluation, snapshot *models.EnvironmentalSnapshot) {
	if s.archive != nil {
		if err := s.archive.ArchiveEvaluation(ctx, evaluation, snapshot); err != nil {
			slog.Error("Failed to archive trigger evidence",
				"evaluation_id", evaluation.ID, "error", err)
		}
	}

	if _, err := s.sink.HandleTrigger(ctx, policy, evaluation); err != nil {
		slog.Error("Failed to hand trigger to payout orchestrator",
			"policy_id", policy.ID, "hazard", evaluation.Hazard, "error", err)
	}
}

func (s *SweepService) sendAdvisory(ctx context.Context, policy *models.Policy, evaluation *models.TriggerEvaluation) {
	payload := map[string]any{
		"policy_id":     policy.ID.String(),
		"hazard":        string(evaluation.Hazard),
		"evaluation_id": evaluation.ID.String(),
		"notes":         evaluation.Evidence.Notes,
	}

	if err := s.notifier.Notify(ctx, policy.FarmerID, models.EventAdvisoryAlert, payload); err != nil {
		slog.Warn("Failed to send advisory alert",
			"policy_id", policy.ID, "hazard", evaluation.Hazard, "error", err)
	}
}
