package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"decision-engine/internal/models"
)

// Gateway fetches per-location environmental snapshots through an ordered
// list of providers, falling back tier by tier and caching successes.
type Gateway struct {
	providers  []Provider
	cache      SnapshotCache
	weatherTTL time.Duration
	soilTTL    time.Duration
	now        func() time.Time

	mu       sync.Mutex
	tierHits map[models.SourceTier]int64
	misses   int64
}

type IGateway interface {
	FetchSnapshot(ctx context.Context, policyID uuid.UUID, lat, lon float64, hazards []models.HazardType) (*models.EnvironmentalSnapshot, error)
	Metrics() map[string]any
}

// NewGateway orders providers by tier rank regardless of argument order, so
// the fallback chain is always primary -> fallbacks -> simulated.
func NewGateway(providers []Provider, cache SnapshotCache, weatherTTL, soilTTL time.Duration) *Gateway {
	ordered := make([]Provider, len(providers))
	copy(ordered, providers)
	for i := range ordered {
		for j := i + 1; j < len(ordered); j++ {
			if ordered[j].Tier().Rank() < ordered[i].Tier().Rank() {
				ordered[i], ordered[j] = ordered[j], ordered[i]
			}
		}
	}

	return &Gateway{
		providers:  ordered,
		cache:      cache,
		weatherTTL: weatherTTL,
		soilTTL:    soilTTL,
		now:        time.Now,
		tierHits:   make(map[models.SourceTier]int64),
	}
}

// FetchSnapshot tries each tier in order and returns the first success,
// tagged with the tier that answered. The tier is never upgraded: callers
// must see when only simulated data was available.
func (g *Gateway) FetchSnapshot(ctx context.Context, policyID uuid.UUID, lat, lon float64, hazards []models.HazardType) (*models.EnvironmentalSnapshot, error) {
	ttl := g.ttlFor(hazards)
	bucket := g.now().Truncate(ttl).Unix()
	key := CacheKey(lat, lon, hazards, bucket)

	if cached, ok := g.cache.Get(ctx, key); ok {
		snapshot := *cached
		snapshot.ID = uuid.New()
		snapshot.PolicyID = policyID
		return &snapshot, nil
	}

	var lastErr error
	for _, provider := range g.providers {
		callCtx, cancel := context.WithTimeout(ctx, provider.Timeout())
		indicators, measuredAt, err := provider.Fetch(callCtx, lat, lon, hazards)
		cancel()

		if err != nil {
			lastErr = err
			slog.Warn("provider tier failed, falling back",
				"provider", provider.Name(),
				"tier", provider.Tier(),
				"lat", lat,
				"lon", lon,
				"error", err)
			continue
		}

		snapshot := &models.EnvironmentalSnapshot{
			ID:         uuid.New(),
			PolicyID:   policyID,
			Lat:        lat,
			Lon:        lon,
			Tier:       provider.Tier(),
			Confident:  provider.Tier().Binding(),
			MeasuredAt: measuredAt,
			CreatedAt:  g.now(),
			Indicators: *indicators,
		}

		// Simulated data is free to regenerate; caching it would hide a
		// recovered upstream tier until the TTL bucket rolls.
		if provider.Tier().Binding() {
			g.cache.Set(ctx, key, snapshot, ttl)
		}

		g.mu.Lock()
		g.tierHits[provider.Tier()]++
		g.mu.Unlock()

		return snapshot, nil
	}

	g.mu.Lock()
	g.misses++
	g.mu.Unlock()

	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrDataUnavailable, lastErr)
	}
	return nil, models.ErrDataUnavailable
}

// ttlFor picks the freshness window. Weather-driven hazards go stale fast;
// vegetation/soil signals change over days. A mixed set takes the shortest
// window of its members.
func (g *Gateway) ttlFor(hazards []models.HazardType) time.Duration {
	ttl := g.soilTTL
	for _, h := range hazards {
		if h == models.HazardDrought || h == models.HazardFlood {
			if g.weatherTTL < ttl {
				ttl = g.weatherTTL
			}
		}
	}
	return ttl
}

// Metrics returns per-tier answer counters for the health endpoint.
func (g *Gateway) Metrics() map[string]any {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := map[string]any{"all_tiers_failed": g.misses}
	for tier, hits := range g.tierHits {
		out[string(tier)] = hits
	}
	return out
}
