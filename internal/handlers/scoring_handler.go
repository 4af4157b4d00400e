package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v3"

	"decision-engine/internal/config"
	"decision-engine/internal/models"
	"decision-engine/internal/scoring"
	"decision-engine/internal/utils"
)

// ScoringHandler exposes the composite scorer for underwriting tools.
// Callers supply subscores in [0,1] per profile key; the engine owns the
// weights so every caller prices identically.
type ScoringHandler struct {
	hazard  *scoring.WeightProfile
	premium *scoring.WeightProfile
	credit  *scoring.WeightProfile
	cfg     config.ScoringConfig
}

func NewScoringHandler(hazard, premium, credit *scoring.WeightProfile, cfg config.ScoringConfig) *ScoringHandler {
	return &ScoringHandler{hazard: hazard, premium: premium, credit: credit, cfg: cfg}
}

func (h *ScoringHandler) Register(app *fiber.App) {
	scoreGroup := app.Group("/engine/api/v1/scores")

	scoreGroup.Post("/hazard", h.ScoreHazard)   // POST /scores/hazard
	scoreGroup.Post("/premium", h.ScorePremium) // POST /scores/premium
	scoreGroup.Post("/credit", h.ScoreCredit)   // POST /scores/credit
}

type scoreRequest struct {
	Subscores map[string]float64 `json:"subscores"`
}

func (h *ScoringHandler) ScoreHazard(c fiber.Ctx) error {
	score, ok := h.compose(c, h.hazard)
	if !ok {
		return nil
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(score))
}

func (h *ScoringHandler) ScorePremium(c fiber.Ctx) error {
	score, ok := h.compose(c, h.premium)
	if !ok {
		return nil
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(map[string]any{
		"score":              score,
		"premium_multiplier": scoring.PremiumMultiplier(score, h.cfg.PremiumMin, h.cfg.PremiumMax),
	}))
}

func (h *ScoringHandler) ScoreCredit(c fiber.Ctx) error {
	score, ok := h.compose(c, h.credit)
	if !ok {
		return nil
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(map[string]any{
		"score":        score,
		"credit_score": scoring.CreditScore(score, h.cfg.CreditScale),
	}))
}

// compose parses the request and scores it; on failure the error response
// has already been written and ok is false.
func (h *ScoringHandler) compose(c fiber.Ctx, profile *scoring.WeightProfile) (score models.CompositeScore, ok bool) {
	var req scoreRequest
	if err := c.Bind().Body(&req); err != nil {
		c.Status(http.StatusBadRequest).JSON(
			utils.CreateErrorResponse("INVALID_BODY", "Request body must be valid JSON"))
		return models.CompositeScore{}, false
	}

	result, err := profile.Score(req.Subscores)
	if err != nil {
		c.Status(http.StatusBadRequest).JSON(
			utils.CreateErrorResponse("INVALID_SUBSCORES", err.Error()))
		return models.CompositeScore{}, false
	}

	return result, true
}
