package payout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"decision-engine/internal/config"
	"decision-engine/internal/models"
	"decision-engine/internal/payment"
)

// OperatorChannel is the notification recipient for escalations and
// permanent failures that need a human.
const OperatorChannel = "ops:payout-desk"

// Orchestrator drives a payout from trigger to a terminal state: amount
// computation, idempotent transfer initiation, progress polling, delay
// escalation with compensation accrual, and operator closure.
type Orchestrator struct {
	store    PayoutStore
	registry *payment.Registry
	notifier Notifier
	cfg      config.PayoutConfig
	now      func() time.Time

	// Single-writer guard per (policy, hazard) slot. The store enforces the
	// invariant too; the lock keeps concurrent sweeps from racing past the
	// check-and-create.
	slotMu sync.Mutex
	slots  map[string]*sync.Mutex
}

func NewOrchestrator(store PayoutStore, registry *payment.Registry, notifier Notifier, cfg config.PayoutConfig) *Orchestrator {
	return &Orchestrator{
		store:    store,
		registry: registry,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
		slots:    make(map[string]*sync.Mutex),
	}
}

func (o *Orchestrator) slotLock(policyID uuid.UUID, hazard models.HazardType) *sync.Mutex {
	key := policyID.String() + "/" + string(hazard)

	o.slotMu.Lock()
	defer o.slotMu.Unlock()

	if mu, ok := o.slots[key]; ok {
		return mu
	}
	mu := &sync.Mutex{}
	o.slots[key] = mu
	return mu
}

// HandleTrigger reacts to a binding trigger evaluation. If an open payout
// already occupies the (policy, hazard) slot, the new trigger is merged as
// supporting evidence and no new payout is created.
func (o *Orchestrator) HandleTrigger(ctx context.Context, policy *models.Policy, evaluation *models.TriggerEvaluation) (*models.Payout, error) {
	if !evaluation.Triggered {
		return nil, fmt.Errorf("evaluation %s is not a positive trigger", evaluation.ID)
	}

	mu := o.slotLock(policy.ID, evaluation.Hazard)
	mu.Lock()
	defer mu.Unlock()

	now := o.now()
	payout := &models.Payout{
		ID:           uuid.New(),
		PolicyID:     policy.ID,
		FarmerID:     policy.FarmerID,
		Hazard:       evaluation.Hazard,
		EvaluationID: evaluation.ID,
		Currency:     policy.Currency,
		State:        models.PayoutTriggered,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	existing, err := o.store.CheckAndCreate(ctx, payout)
	if errors.Is(err, models.ErrInvariantViolation) {
		slog.Info("open payout exists, merging trigger as supporting evidence",
			"policy_id", policy.ID,
			"hazard", evaluation.Hazard,
			"existing_payout_id", existing.ID,
			"evaluation_id", evaluation.ID)
		if err := o.store.AddSupportingEvidence(ctx, existing.ID, evaluation.ID); err != nil {
			return existing, fmt.Errorf("failed to merge supporting evidence: %w", err)
		}
		return existing, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create payout: %w", err)
	}

	if err := o.transition(ctx, payout, models.PayoutValidating, "open-slot invariant checked"); err != nil {
		return payout, err
	}

	payout.Amount = computeAmount(policy, evaluation)
	if err := o.transition(ctx, payout, models.PayoutAmountComputed,
		fmt.Sprintf("amount %.2f %s from coverage %.2f/ha x %.2f ha, severity %.2f",
			payout.Amount, payout.Currency, policy.CoveragePerHectare, policy.FarmSizeHa, evaluation.RiskScore)); err != nil {
		return payout, err
	}

	if err := o.initiateTransfer(ctx, policy, payout); err != nil {
		return payout, err
	}

	return payout, nil
}

// computeAmount derives the payout deterministically from coverage terms,
// farm size and hazard severity, so it is auditable from the same evidence
// that triggered it. Severity scales the payout between 50% and 100% of
// full coverage.
func computeAmount(policy *models.Policy, evaluation *models.TriggerEvaluation) float64 {
	severityFactor := 0.5 + 0.5*clamp01(evaluation.RiskScore)
	return policy.CoveragePerHectare * policy.FarmSizeHa * severityFactor
}

// initiateTransfer issues the transfer with an idempotency key derived from
// the payout id, retrying transient failures with exponential backoff up to
// the configured attempt budget.
func (o *Orchestrator) initiateTransfer(ctx context.Context, policy *models.Policy, payout *models.Payout) error {
	port, err := o.registry.ForPolicy(policy)
	if err != nil {
		return o.failPayout(ctx, payout, fmt.Sprintf("no payment route: %v", err))
	}

	req := payment.TransferRequest{
		IdempotencyKey: "payout-" + payout.ID.String(),
		Recipient:      policy.PaymentRecipient,
		Amount:         payout.Amount,
		Currency:       payout.Currency,
		Metadata: map[string]string{
			"policy_id": policy.ID.String(),
			"hazard":    string(payout.Hazard),
		},
	}

	var handle string
	var lastErr error
	for attempt := 0; attempt < o.cfg.PaymentMaxAttempts; attempt++ {
		if attempt > 0 {
			wait := o.cfg.PaymentBackoffBase * (1 << (attempt - 1))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		handle, lastErr = port.InitiateTransfer(ctx, req)
		if lastErr == nil {
			break
		}
		if !models.IsTransientPaymentError(lastErr) {
			return o.failPayout(ctx, payout, fmt.Sprintf("permanent payment failure: %v", lastErr))
		}
		slog.Warn("transient payment failure, will retry",
			"payout_id", payout.ID,
			"attempt", attempt+1,
			"max_attempts", o.cfg.PaymentMaxAttempts,
			"error", lastErr)
	}
	if lastErr != nil {
		return o.failPayout(ctx, payout, fmt.Sprintf("retry budget exhausted: %v", lastErr))
	}

	now := o.now()
	payout.TransferHandle = &handle
	payout.InitiatedAt = &now
	payout.PaymentProvider = port.Name()
	return o.transition(ctx, payout, models.PayoutInitiated, "transfer initiated via "+port.Name())
}

// PollTransfers advances every in-flight payout from the payment port's
// reported status. Called on a schedule; also the path a late confirmation
// takes out of the escalated state.
func (o *Orchestrator) PollTransfers(ctx context.Context) error {
	inflight, err := o.store.ListInStates(ctx, models.PayoutInitiated, models.PayoutInProgress, models.PayoutDelayedEscalated)
	if err != nil {
		return fmt.Errorf("failed to list in-flight payouts: %w", err)
	}

	for i := range inflight {
		payout := &inflight[i]
		if payout.TransferHandle == nil {
			continue
		}

		port, err := o.registry.Get(payout.PaymentProvider)
		if err != nil {
			slog.Error("cannot resolve payment port for payout", "payout_id", payout.ID, "error", err)
			continue
		}

		status, err := port.PollStatus(ctx, *payout.TransferHandle)
		if err != nil {
			if models.IsTransientPaymentError(err) {
				slog.Warn("transient poll failure", "payout_id", payout.ID, "error", err)
				continue
			}
			if ferr := o.failPayout(ctx, payout, fmt.Sprintf("permanent failure reported: %v", err)); ferr != nil {
				slog.Error("failed to mark payout failed", "payout_id", payout.ID, "error", ferr)
			}
			continue
		}

		switch status {
		case models.TransferPending:
			if payout.State == models.PayoutInitiated {
				if err := o.transition(ctx, payout, models.PayoutInProgress, "transfer in progress at operator"); err != nil {
					slog.Error("failed to advance payout", "payout_id", payout.ID, "error", err)
				}
			}
		case models.TransferSucceeded:
			if err := o.confirm(ctx, payout); err != nil {
				slog.Error("failed to confirm payout", "payout_id", payout.ID, "error", err)
			}
		case models.TransferFailed:
			if err := o.failPayout(ctx, payout, "operator reported transfer failed"); err != nil {
				slog.Error("failed to mark payout failed", "payout_id", payout.ID, "error", err)
			}
		}
	}

	return nil
}

// confirm moves a payout to the terminal success state and pays principal
// plus any compensation accrued while it was delayed.
func (o *Orchestrator) confirm(ctx context.Context, payout *models.Payout) error {
	if payout.State == models.PayoutInitiated {
		if err := o.transition(ctx, payout, models.PayoutInProgress, "transfer in progress at operator"); err != nil {
			return err
		}
	}

	now := o.now()
	payout.ConfirmedAt = &now

	note := fmt.Sprintf("confirmed, paid %.2f %s", payout.Amount, payout.Currency)
	if payout.CompensationAmount > 0 {
		note = fmt.Sprintf("confirmed, paid %.2f + %.2f delay compensation %s",
			payout.Amount, payout.CompensationAmount, payout.Currency)
	}
	if err := o.transition(ctx, payout, models.PayoutConfirmed, note); err != nil {
		return err
	}

	o.notify(ctx, payout.FarmerID, models.EventPayoutConfirmed, map[string]any{
		"payout_id":    payout.ID,
		"amount":       payout.Amount,
		"compensation": payout.CompensationAmount,
		"total":        payout.TotalDue(),
		"currency":     payout.Currency,
	})
	return nil
}

// CheckEscalations finds payouts stalled past the SLA, escalates them and
// accrues delay compensation. Compensation is recomputed on every check so
// it tracks the actual delay, capped at the configured share of principal.
func (o *Orchestrator) CheckEscalations(ctx context.Context) error {
	inflight, err := o.store.ListInStates(ctx, models.PayoutInitiated, models.PayoutInProgress, models.PayoutDelayedEscalated)
	if err != nil {
		return fmt.Errorf("failed to list in-flight payouts: %w", err)
	}

	now := o.now()
	for i := range inflight {
		payout := &inflight[i]
		if payout.InitiatedAt == nil {
			continue
		}

		overdue := now.Sub(*payout.InitiatedAt) - o.cfg.EscalationSLA
		if overdue <= 0 {
			continue
		}

		daysLate := overdue.Hours() / 24
		compensation := payout.Amount * o.cfg.CompensationPerDay * daysLate
		if maxComp := payout.Amount * o.cfg.CompensationCap; compensation > maxComp {
			compensation = maxComp
		}
		payout.CompensationAmount = compensation

		if payout.State != models.PayoutDelayedEscalated {
			payout.Escalated = true
			if err := o.transition(ctx, payout, models.PayoutDelayedEscalated,
				fmt.Sprintf("no progress %.1fh past SLA", overdue.Hours())); err != nil {
				slog.Error("failed to escalate payout", "payout_id", payout.ID, "error", err)
				continue
			}

			o.notify(ctx, OperatorChannel, models.EventPayoutEscalated, map[string]any{
				"payout_id":     payout.ID,
				"policy_id":     payout.PolicyID,
				"hazard":        payout.Hazard,
				"overdue_hours": overdue.Hours(),
			})
			o.notify(ctx, payout.FarmerID, models.EventPayoutEscalated, map[string]any{
				"payout_id":    payout.ID,
				"compensation": payout.CompensationAmount,
				"currency":     payout.Currency,
			})
		} else {
			payout.UpdatedAt = now
			if err := o.store.Update(ctx, payout); err != nil {
				slog.Error("failed to update accrued compensation", "payout_id", payout.ID, "error", err)
			}
		}
	}

	return nil
}

// Cancel is an explicit operator action, legal only from non-terminal
// states. It records the reason and frees the slot.
func (o *Orchestrator) Cancel(ctx context.Context, payoutID uuid.UUID, reason string) (*models.Payout, error) {
	payout, err := o.store.GetByID(ctx, payoutID)
	if err != nil {
		return nil, err
	}

	if payout.State.IsTerminal() {
		return nil, fmt.Errorf("%w: cannot cancel payout in terminal state %s", models.ErrIllegalTransition, payout.State)
	}

	now := o.now()
	payout.CancelReason = &reason
	payout.ClosedAt = &now
	if err := o.transition(ctx, payout, models.PayoutCancelled, "cancelled by operator: "+reason); err != nil {
		return nil, err
	}
	return payout, nil
}

// Close is the explicit operator closure of a failed payout. The slot is
// freed only here, never automatically, so a real failure cannot be masked
// by a duplicate auto-trigger. Compensation still owed is settled as a
// COMPENSATED transition before closing.
func (o *Orchestrator) Close(ctx context.Context, payoutID uuid.UUID) (*models.Payout, error) {
	payout, err := o.store.GetByID(ctx, payoutID)
	if err != nil {
		return nil, err
	}

	if payout.State != models.PayoutFailed {
		return nil, fmt.Errorf("%w: only failed payouts can be closed, state is %s", models.ErrIllegalTransition, payout.State)
	}

	now := o.now()
	payout.ClosedAt = &now

	if payout.CompensationAmount > 0 {
		if err := o.transition(ctx, payout, models.PayoutCompensated,
			fmt.Sprintf("delay compensation %.2f %s settled on closure", payout.CompensationAmount, payout.Currency)); err != nil {
			return nil, err
		}
		return payout, nil
	}

	payout.UpdatedAt = now
	if err := o.store.Update(ctx, payout); err != nil {
		return nil, fmt.Errorf("failed to close payout: %w", err)
	}
	return payout, nil
}

func (o *Orchestrator) failPayout(ctx context.Context, payout *models.Payout, note string) error {
	if err := o.transition(ctx, payout, models.PayoutFailed, note); err != nil {
		return err
	}

	o.notify(ctx, OperatorChannel, models.EventManualFollowUp, map[string]any{
		"payout_id": payout.ID,
		"policy_id": payout.PolicyID,
		"hazard":    payout.Hazard,
		"note":      note,
	})
	// The policyholder sees that the case needs manual follow-up, never the
	// internal failure detail.
	o.notify(ctx, payout.FarmerID, models.EventManualFollowUp, map[string]any{
		"payout_id": payout.ID,
	})
	return nil
}

// transition applies one state change, appending to the stage history.
// Moves not in the transition table are rejected.
func (o *Orchestrator) transition(ctx context.Context, payout *models.Payout, to models.PayoutState, note string) error {
	from := payout.State
	if !models.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", models.ErrIllegalTransition, from, to)
	}

	now := o.now()
	payout.State = to
	payout.UpdatedAt = now

	entry := &models.PayoutStageEntry{
		ID:        uuid.New(),
		PayoutID:  payout.ID,
		FromState: from,
		ToState:   to,
		Note:      note,
		CreatedAt: now,
	}
	payout.StageHistory = append(payout.StageHistory, *entry)

	if err := o.store.Update(ctx, payout); err != nil {
		return fmt.Errorf("failed to persist payout transition: %w", err)
	}
	if err := o.store.AppendStage(ctx, entry); err != nil {
		return fmt.Errorf("failed to append stage history: %w", err)
	}

	slog.Info("payout transition",
		"payout_id", payout.ID,
		"from", from,
		"to", to,
		"note", note)
	return nil
}

func (o *Orchestrator) notify(ctx context.Context, recipient string, kind models.EventKind, payload map[string]any) {
	if err := o.notifier.Notify(ctx, recipient, kind, payload); err != nil {
		// Fire-and-forget from the engine's perspective; never fail the
		// payout path on a notification error.
		slog.Warn("notification failed", "recipient", recipient, "kind", kind, "error", err)
	}
}

// GetPayout returns one payout with its stage history.
func (o *Orchestrator) GetPayout(ctx context.Context, payoutID uuid.UUID) (*models.Payout, error) {
	return o.store.GetByID(ctx, payoutID)
}

// ListPayoutsByPolicy returns every payout recorded for a policy.
func (o *Orchestrator) ListPayoutsByPolicy(ctx context.Context, policyID uuid.UUID) ([]models.Payout, error) {
	return o.store.ListByPolicy(ctx, policyID)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
