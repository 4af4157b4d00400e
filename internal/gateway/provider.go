package gateway

import (
	"context"
	"time"

	"decision-engine/internal/models"
)

// Provider is one ranked environmental data source. Each implementation
// declares its own timeout and is otherwise interchangeable; the gateway
// iterates providers in tier order and short-circuits on the first success.
type Provider interface {
	Name() string
	Tier() models.SourceTier
	Timeout() time.Duration
	Fetch(ctx context.Context, lat, lon float64, hazards []models.HazardType) (*models.IndicatorSet, time.Time, error)
}

// SnapshotCache bounds upstream request volume. Concurrent fetches for the
// same key may race to populate; the duplicate upstream call is accepted.
type SnapshotCache interface {
	Get(ctx context.Context, key string) (*models.EnvironmentalSnapshot, bool)
	Set(ctx context.Context, key string, snapshot *models.EnvironmentalSnapshot, ttl time.Duration)
}
