package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v3"
	"github.com/jmoiron/sqlx"

	"decision-engine/internal/event"
	"decision-engine/internal/gateway"
	"decision-engine/internal/utils"
)

// HealthHandler reports engine liveness plus the data-tier and publisher
// counters operators watch during an incident.
type HealthHandler struct {
	db        *sqlx.DB
	gateway   gateway.IGateway
	publisher *event.NotificationPublisher
}

func NewHealthHandler(db *sqlx.DB, gw gateway.IGateway, publisher *event.NotificationPublisher) *HealthHandler {
	return &HealthHandler{db: db, gateway: gw, publisher: publisher}
}

func (h *HealthHandler) Register(app *fiber.App) {
	app.Get("/checkhealth", h.CheckHealth)
	app.Get("/engine/api/v1/health", h.CheckHealth)
}

func (h *HealthHandler) CheckHealth(c fiber.Ctx) error {
	status := map[string]any{
		"service":  "decision-engine",
		"database": "up",
	}

	healthy := true
	if err := h.db.PingContext(c.Context()); err != nil {
		status["database"] = "down"
		healthy = false
	}

	if h.gateway != nil {
		status["data_tiers"] = h.gateway.Metrics()
	}
	if h.publisher != nil {
		publisherHealth := h.publisher.HealthCheck()
		status["publisher"] = publisherHealth
		if !publisherHealth.IsHealthy {
			healthy = false
		}
	}

	if !healthy {
		return c.Status(http.StatusServiceUnavailable).JSON(utils.CreateSuccessResponse(status))
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(status))
}
