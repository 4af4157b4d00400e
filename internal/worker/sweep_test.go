package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"decision-engine/internal/config"
	"decision-engine/internal/models"
)

// ============================================================================
// TEST HELPERS
// ============================================================================

type fakeGateway struct {
	snapshot *models.EnvironmentalSnapshot
	err      error
}

func (g *fakeGateway) FetchSnapshot(ctx context.Context, policyID uuid.UUID, lat, lon float64, hazards []models.HazardType) (*models.EnvironmentalSnapshot, error) {
	if g.err != nil {
		return nil, g.err
	}
	snapshot := *g.snapshot
	snapshot.PolicyID = policyID
	return &snapshot, nil
}

func (g *fakeGateway) Metrics() map[string]any { return map[string]any{} }

type fakeEvaluatorSvc struct {
	results map[models.HazardType]*models.TriggerEvaluation
}

func (e *fakeEvaluatorSvc) Evaluate(policy *models.Policy, hazard models.HazardType, snapshot *models.EnvironmentalSnapshot, history []models.EnvironmentalSnapshot) (*models.TriggerEvaluation, error) {
	result := *e.results[hazard]
	result.ID = uuid.New()
	result.PolicyID = policy.ID
	result.Hazard = hazard
	return &result, nil
}

type fakeSnapshotStore struct {
	mu       sync.Mutex
	inserted []models.EnvironmentalSnapshot
}

func (s *fakeSnapshotStore) Insert(ctx context.Context, snapshot *models.EnvironmentalSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserted = append(s.inserted, *snapshot)
	return nil
}

func (s *fakeSnapshotStore) GetTrailingWindow(ctx context.Context, policyID uuid.UUID, days int) ([]models.EnvironmentalSnapshot, error) {
	return nil, nil
}

type fakeEvaluationStore struct {
	mu       sync.Mutex
	inserted []models.TriggerEvaluation
}

func (s *fakeEvaluationStore) Insert(ctx context.Context, evaluation *models.TriggerEvaluation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserted = append(s.inserted, *evaluation)
	return nil
}

type fakeSink struct {
	mu      sync.Mutex
	handled []models.TriggerEvaluation
}

func (s *fakeSink) HandleTrigger(ctx context.Context, policy *models.Policy, evaluation *models.TriggerEvaluation) (*models.Payout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handled = append(s.handled, *evaluation)
	return &models.Payout{ID: uuid.New()}, nil
}

type fakeArchive struct {
	mu       sync.Mutex
	archived []models.TriggerEvaluation
}

func (a *fakeArchive) ArchiveEvaluation(ctx context.Context, evaluation *models.TriggerEvaluation, snapshot *models.EnvironmentalSnapshot) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.archived = append(a.archived, *evaluation)
	return nil
}

type fakeSweepNotifier struct {
	mu     sync.Mutex
	events []models.EventKind
}

func (n *fakeSweepNotifier) Notify(ctx context.Context, recipient string, kind models.EventKind, payload map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, kind)
	return nil
}

func negativeEvals() map[models.HazardType]*models.TriggerEvaluation {
	results := make(map[models.HazardType]*models.TriggerEvaluation)
	for _, hazard := range models.AllHazards {
		results[hazard] = &models.TriggerEvaluation{}
	}
	return results
}

func sweepPolicy() *models.Policy {
	return &models.Policy{
		ID:       uuid.New(),
		FarmerID: "farmer-007",
		Location: models.NewGeoJSONPoint(10.5, 106.2),
		Status:   models.PolicyActive,
	}
}

func newTestSweep(gw *fakeGateway, evals map[models.HazardType]*models.TriggerEvaluation) (*SweepService, *fakeSnapshotStore, *fakeEvaluationStore, *fakeSink, *fakeArchive, *fakeSweepNotifier) {
	snapshots := &fakeSnapshotStore{}
	evaluations := &fakeEvaluationStore{}
	sink := &fakeSink{}
	archive := &fakeArchive{}
	notifier := &fakeSweepNotifier{}

	service := NewSweepService(
		nil, snapshots, evaluations,
		gw, &fakeEvaluatorSvc{results: evals}, sink,
		archive, notifier,
		config.TriggerConfig{CropStressWindow: 14},
		nil,
	)
	return service, snapshots, evaluations, sink, archive, notifier
}

func bindingSnapshot() *models.EnvironmentalSnapshot {
	return &models.EnvironmentalSnapshot{
		ID:         uuid.New(),
		Tier:       models.TierPrimary,
		Confident:  true,
		MeasuredAt: time.Now(),
	}
}

// ============================================================================
// TEST SUITE 1: POLICY EVALUATION PIPELINE
// ============================================================================

func TestEvaluatePolicy_PersistsSnapshotAndAllEvaluations(t *testing.T) {
	gw := &fakeGateway{snapshot: bindingSnapshot()}
	service, snapshots, evaluations, sink, _, _ := newTestSweep(gw, negativeEvals())

	err := service.EvaluatePolicy(context.Background(), sweepPolicy())

	assert.NoError(t, err)
	assert.Len(t, snapshots.inserted, 1)
	assert.Len(t, evaluations.inserted, len(models.AllHazards), "Every hazard is evaluated each sweep")
	assert.Empty(t, sink.handled, "Negative evaluations reach no orchestrator")
}

func TestEvaluatePolicy_PositiveTriggerReachesOrchestratorAndArchive(t *testing.T) {
	gw := &fakeGateway{snapshot: bindingSnapshot()}
	evals := negativeEvals()
	evals[models.HazardDrought] = &models.TriggerEvaluation{Triggered: true, RiskScore: 0.9}
	service, _, _, sink, archive, _ := newTestSweep(gw, evals)

	err := service.EvaluatePolicy(context.Background(), sweepPolicy())

	assert.NoError(t, err)
	assert.Len(t, sink.handled, 1)
	assert.Equal(t, models.HazardDrought, sink.handled[0].Hazard)
	assert.Len(t, archive.archived, 1, "Binding triggers are archived for audit")
}

func TestEvaluatePolicy_AdvisorySendsAlertOnly(t *testing.T) {
	gw := &fakeGateway{snapshot: bindingSnapshot()}
	evals := negativeEvals()
	evals[models.HazardCropStress] = &models.TriggerEvaluation{Advisory: true}
	service, _, _, sink, archive, notifier := newTestSweep(gw, evals)

	err := service.EvaluatePolicy(context.Background(), sweepPolicy())

	assert.NoError(t, err)
	assert.Empty(t, sink.handled, "Advisory outcomes never reach the payout path")
	assert.Empty(t, archive.archived)
	assert.Contains(t, notifier.events, models.EventAdvisoryAlert)
}

func TestEvaluatePolicy_DataUnavailableSkipsQuietly(t *testing.T) {
	gw := &fakeGateway{err: models.ErrDataUnavailable}
	service, snapshots, evaluations, sink, _, _ := newTestSweep(gw, negativeEvals())

	err := service.EvaluatePolicy(context.Background(), sweepPolicy())

	assert.NoError(t, err, "A policy with no data this sweep is skipped, not failed")
	assert.Empty(t, snapshots.inserted)
	assert.Empty(t, evaluations.inserted)
	assert.Empty(t, sink.handled)
}
