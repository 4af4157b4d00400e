package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"decision-engine/internal/models"
)

// ============================================================================
// TEST HELPERS
// ============================================================================

type fakeProvider struct {
	name  string
	tier  models.SourceTier
	err   error
	calls int
}

func (p *fakeProvider) Name() string            { return p.name }
func (p *fakeProvider) Tier() models.SourceTier { return p.tier }
func (p *fakeProvider) Timeout() time.Duration  { return time.Second }

func (p *fakeProvider) Fetch(ctx context.Context, lat, lon float64, hazards []models.HazardType) (*models.IndicatorSet, time.Time, error) {
	p.calls++
	if p.err != nil {
		return nil, time.Time{}, p.err
	}
	return &models.IndicatorSet{VegetationIndex: 0.5}, time.Now(), nil
}

type fakeCache struct {
	entries map[string]*models.EnvironmentalSnapshot
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*models.EnvironmentalSnapshot)}
}

func (c *fakeCache) Get(ctx context.Context, key string) (*models.EnvironmentalSnapshot, bool) {
	snapshot, ok := c.entries[key]
	return snapshot, ok
}

func (c *fakeCache) Set(ctx context.Context, key string, snapshot *models.EnvironmentalSnapshot, ttl time.Duration) {
	c.entries[key] = snapshot
}

// ============================================================================
// TEST SUITE 1: TIERED FALLBACK
// ============================================================================

func TestFetchSnapshot_PrimaryAnswersFirst(t *testing.T) {
	primary := &fakeProvider{name: "primary", tier: models.TierPrimary}
	fallback := &fakeProvider{name: "fallback", tier: models.TierFallback1}
	gw := NewGateway([]Provider{primary, fallback}, newFakeCache(), time.Hour, 12*time.Hour)

	snapshot, err := gw.FetchSnapshot(context.Background(), uuid.New(), 10.5, 106.2, models.AllHazards)

	assert.NoError(t, err)
	assert.Equal(t, models.TierPrimary, snapshot.Tier)
	assert.True(t, snapshot.Confident)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 0, fallback.calls, "Fallback must not be called when primary answers")
}

func TestFetchSnapshot_FallsBackInTierOrder(t *testing.T) {
	primary := &fakeProvider{name: "primary", tier: models.TierPrimary, err: errors.New("rate limited")}
	fallback := &fakeProvider{name: "fallback", tier: models.TierFallback1}
	// Register out of order: the gateway must still try primary first.
	gw := NewGateway([]Provider{fallback, primary}, newFakeCache(), time.Hour, 12*time.Hour)

	snapshot, err := gw.FetchSnapshot(context.Background(), uuid.New(), 10.5, 106.2, models.AllHazards)

	assert.NoError(t, err)
	assert.Equal(t, models.TierFallback1, snapshot.Tier)
	assert.True(t, snapshot.Confident)
	assert.Equal(t, 1, primary.calls, "Primary is tried first despite registration order")
}

func TestFetchSnapshot_SimulatedTierIsNotConfident(t *testing.T) {
	primary := &fakeProvider{name: "primary", tier: models.TierPrimary, err: errors.New("down")}
	simulated := &fakeProvider{name: "simulated", tier: models.TierSimulated}
	gw := NewGateway([]Provider{primary, simulated}, newFakeCache(), time.Hour, 12*time.Hour)

	snapshot, err := gw.FetchSnapshot(context.Background(), uuid.New(), 10.5, 106.2, models.AllHazards)

	assert.NoError(t, err)
	assert.Equal(t, models.TierSimulated, snapshot.Tier)
	assert.False(t, snapshot.Confident, "Simulated data must be flagged non-confident, never upgraded")
}

func TestFetchSnapshot_SimulatedResultIsNotCached(t *testing.T) {
	primary := &fakeProvider{name: "primary", tier: models.TierPrimary, err: errors.New("down")}
	simulated := &fakeProvider{name: "simulated", tier: models.TierSimulated}
	cache := newFakeCache()
	gw := NewGateway([]Provider{primary, simulated}, cache, time.Hour, 12*time.Hour)

	first, err := gw.FetchSnapshot(context.Background(), uuid.New(), 10.5, 106.2, models.AllHazards)
	assert.NoError(t, err)
	assert.Equal(t, models.TierSimulated, first.Tier)
	assert.Empty(t, cache.entries, "Simulated data must not occupy the cache slot")

	// Primary recovers: the very next fetch must reach it instead of
	// serving stale simulated data for the rest of the TTL bucket.
	primary.err = nil
	second, err := gw.FetchSnapshot(context.Background(), uuid.New(), 10.5, 106.2, models.AllHazards)
	assert.NoError(t, err)
	assert.Equal(t, models.TierPrimary, second.Tier)
	assert.True(t, second.Confident)
}

func TestFetchSnapshot_AllTiersFailed(t *testing.T) {
	primary := &fakeProvider{name: "primary", tier: models.TierPrimary, err: errors.New("down")}
	fallback := &fakeProvider{name: "fallback", tier: models.TierFallback1, err: errors.New("down too")}
	gw := NewGateway([]Provider{primary, fallback}, newFakeCache(), time.Hour, 12*time.Hour)

	_, err := gw.FetchSnapshot(context.Background(), uuid.New(), 10.5, 106.2, models.AllHazards)

	assert.ErrorIs(t, err, models.ErrDataUnavailable)

	metrics := gw.Metrics()
	assert.Equal(t, int64(1), metrics["all_tiers_failed"])
}

// ============================================================================
// TEST SUITE 2: SNAPSHOT CACHE
// ============================================================================

func TestFetchSnapshot_CacheHitSkipsProviders(t *testing.T) {
	provider := &fakeProvider{name: "primary", tier: models.TierPrimary}
	cache := newFakeCache()
	gw := NewGateway([]Provider{provider}, cache, time.Hour, 12*time.Hour)

	first, err := gw.FetchSnapshot(context.Background(), uuid.New(), 10.5, 106.2, models.AllHazards)
	assert.NoError(t, err)

	secondPolicy := uuid.New()
	second, err := gw.FetchSnapshot(context.Background(), secondPolicy, 10.5, 106.2, models.AllHazards)
	assert.NoError(t, err)

	assert.Equal(t, 1, provider.calls, "Second fetch for the same location must come from cache")
	assert.Equal(t, first.Indicators, second.Indicators)
	assert.Equal(t, secondPolicy, second.PolicyID, "Cached snapshot is re-bound to the requesting policy")
	assert.NotEqual(t, first.ID, second.ID, "Cached snapshot gets its own identity")
}

func TestFetchSnapshot_DifferentLocationMissesCache(t *testing.T) {
	provider := &fakeProvider{name: "primary", tier: models.TierPrimary}
	gw := NewGateway([]Provider{provider}, newFakeCache(), time.Hour, 12*time.Hour)

	_, err := gw.FetchSnapshot(context.Background(), uuid.New(), 10.5, 106.2, models.AllHazards)
	assert.NoError(t, err)
	_, err = gw.FetchSnapshot(context.Background(), uuid.New(), 11.5, 107.2, models.AllHazards)
	assert.NoError(t, err)

	assert.Equal(t, 2, provider.calls)
}

func TestCacheKey_SortsHazards(t *testing.T) {
	a := CacheKey(10.5, 106.2, []models.HazardType{models.HazardFlood, models.HazardDrought}, 42)
	b := CacheKey(10.5, 106.2, []models.HazardType{models.HazardDrought, models.HazardFlood}, 42)

	assert.Equal(t, a, b, "Hazard set order must not change the cache key")
}

// ============================================================================
// TEST SUITE 3: METRICS
// ============================================================================

func TestMetrics_CountsTierHits(t *testing.T) {
	primary := &fakeProvider{name: "primary", tier: models.TierPrimary}
	gw := NewGateway([]Provider{primary}, newFakeCache(), time.Hour, 12*time.Hour)

	_, err := gw.FetchSnapshot(context.Background(), uuid.New(), 10.5, 106.2, models.AllHazards)
	assert.NoError(t, err)
	_, err = gw.FetchSnapshot(context.Background(), uuid.New(), 11.5, 107.2, models.AllHazards)
	assert.NoError(t, err)

	metrics := gw.Metrics()
	assert.Equal(t, int64(2), metrics["primary"])
	assert.Equal(t, int64(0), metrics["all_tiers_failed"])
}

// ============================================================================
// TEST SUITE 4: SIMULATED PROVIDER DETERMINISM
// ============================================================================

func TestSimulatedProvider_DeterministicPerDayAndLocation(t *testing.T) {
	provider := NewSimulatedProvider()
	fixed := time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC)
	provider.now = func() time.Time { return fixed }

	first, _, err := provider.Fetch(context.Background(), 10.5, 106.2, models.AllHazards)
	assert.NoError(t, err)
	second, _, err := provider.Fetch(context.Background(), 10.5, 106.2, models.AllHazards)
	assert.NoError(t, err)

	assert.Equal(t, first, second, "Same day and location must simulate identical indicators")

	other, _, err := provider.Fetch(context.Background(), 11.5, 106.2, models.AllHazards)
	assert.NoError(t, err)
	assert.NotEqual(t, first, other, "Different locations must not share simulated values")
}

func TestSimulatedProvider_NeverSignalsFloodEmergency(t *testing.T) {
	provider := NewSimulatedProvider()

	for i := range 50 {
		ind, _, err := provider.Fetch(context.Background(), float64(i), float64(-i), models.AllHazards)
		assert.NoError(t, err)
		assert.NotEqual(t, models.FloodRiskCritical, ind.FloodRisk, "Simulated data must stay in unremarkable ranges")
		assert.NotEqual(t, models.FloodRiskHigh, ind.FloodRisk)
	}
}
