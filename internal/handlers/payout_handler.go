package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"decision-engine/internal/models"
	"decision-engine/internal/payout"
	"decision-engine/internal/utils"
)

// PayoutHandler exposes read access over payout state and the two operator
// actions (cancel, close). State transitions stay inside the orchestrator.
type PayoutHandler struct {
	orchestrator *payout.Orchestrator
}

func NewPayoutHandler(orchestrator *payout.Orchestrator) *PayoutHandler {
	return &PayoutHandler{orchestrator: orchestrator}
}

func (h *PayoutHandler) Register(app *fiber.App) {
	payoutGroup := app.Group("/engine/api/v1/payouts")

	payoutGroup.Get("/detail/:id", h.GetPayoutDetail)              // GET /payouts/detail/:id
	payoutGroup.Get("/by-policy/:policy_id", h.GetPayoutsByPolicy) // GET /payouts/by-policy/:policy_id

	// Operator actions
	payoutGroup.Post("/cancel/:id", h.CancelPayout) // POST /payouts/cancel/:id
	payoutGroup.Post("/close/:id", h.ClosePayout)   // POST /payouts/close/:id
}

// GetPayoutDetail returns one payout with its full stage history
func (h *PayoutHandler) GetPayoutDetail(c fiber.Ctx) error {
	payoutID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(
			utils.CreateErrorResponse("INVALID_PAYOUT_ID", "Payout ID must be a valid UUID"))
	}

	p, err := h.orchestrator.GetPayout(c.Context(), payoutID)
	if err != nil {
		if errors.Is(err, models.ErrPayoutNotFound) {
			return c.Status(http.StatusNotFound).JSON(
				utils.CreateErrorResponse("PAYOUT_NOT_FOUND", "No payout with this ID"))
		}
		slog.Error("Failed to get payout", "payout_id", payoutID, "error", err)
		return c.Status(http.StatusInternalServerError).JSON(
			utils.CreateErrorResponse("RETRIEVAL_FAILED", "Failed to retrieve payout"))
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(p))
}

// GetPayoutsByPolicy returns all payouts for one policy, newest first
func (h *PayoutHandler) GetPayoutsByPolicy(c fiber.Ctx) error {
	policyID, err := uuid.Parse(c.Params("policy_id"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(
			utils.CreateErrorResponse("INVALID_POLICY_ID", "Policy ID must be a valid UUID"))
	}

	payouts, err := h.orchestrator.ListPayoutsByPolicy(c.Context(), policyID)
	if err != nil {
		slog.Error("Failed to list payouts", "policy_id", policyID, "error", err)
		return c.Status(http.StatusInternalServerError).JSON(
			utils.CreateErrorResponse("RETRIEVAL_FAILED", "Failed to retrieve payouts"))
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(payouts))
}

type cancelPayoutRequest struct {
	Reason string `json:"reason"`
}

// CancelPayout is the operator override: abort a non-terminal payout with a
// recorded reason
func (h *PayoutHandler) CancelPayout(c fiber.Ctx) error {
	payoutID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(
			utils.CreateErrorResponse("INVALID_PAYOUT_ID", "Payout ID must be a valid UUID"))
	}

	var req cancelPayoutRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(
			utils.CreateErrorResponse("INVALID_BODY", "Request body must be valid JSON"))
	}
	if req.Reason == "" {
		return c.Status(http.StatusBadRequest).JSON(
			utils.CreateErrorResponse("REASON_REQUIRED", "A cancellation reason is required"))
	}

	p, err := h.orchestrator.Cancel(c.Context(), payoutID, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrPayoutNotFound):
			return c.Status(http.StatusNotFound).JSON(
				utils.CreateErrorResponse("PAYOUT_NOT_FOUND", "No payout with this ID"))
		case errors.Is(err, models.ErrIllegalTransition):
			return c.Status(http.StatusConflict).JSON(
				utils.CreateErrorResponse("ALREADY_TERMINAL", "Payout is already in a terminal state"))
		default:
			slog.Error("Failed to cancel payout", "payout_id", payoutID, "error", err)
			return c.Status(http.StatusInternalServerError).JSON(
				utils.CreateErrorResponse("CANCEL_FAILED", "Failed to cancel payout"))
		}
	}

	slog.Info("Payout cancelled by operator", "payout_id", payoutID, "reason", req.Reason)
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(p))
}

// ClosePayout resolves a failed payout after manual follow-up
func (h *PayoutHandler) ClosePayout(c fiber.Ctx) error {
	payoutID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(
			utils.CreateErrorResponse("INVALID_PAYOUT_ID", "Payout ID must be a valid UUID"))
	}

	p, err := h.orchestrator.Close(c.Context(), payoutID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrPayoutNotFound):
			return c.Status(http.StatusNotFound).JSON(
				utils.CreateErrorResponse("PAYOUT_NOT_FOUND", "No payout with this ID"))
		case errors.Is(err, models.ErrIllegalTransition):
			return c.Status(http.StatusConflict).JSON(
				utils.CreateErrorResponse("NOT_CLOSABLE", "Only failed payouts can be closed"))
		default:
			slog.Error("Failed to close payout", "payout_id", payoutID, "error", err)
			return c.Status(http.StatusInternalServerError).JSON(
				utils.CreateErrorResponse("CLOSE_FAILED", "Failed to close payout"))
		}
	}

	slog.Info("Payout closed by operator", "payout_id", payoutID, "state", p.State)
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(p))
}
