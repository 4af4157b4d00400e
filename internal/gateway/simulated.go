package gateway

import (
	"context"
	"hash/fnv"
	"math"
	"time"

	"decision-engine/internal/models"
)

// SimulatedProvider is the last-resort tier. It synthesizes a deterministic
// snapshot locally from the location and the current day, so the same parcel
// always sees the same simulated values within a day. Simulated data never
// binds a payout decision; callers see the tier and exclude it.
type SimulatedProvider struct {
	timeout time.Duration
	now     func() time.Time
}

func NewSimulatedProvider() *SimulatedProvider {
	return &SimulatedProvider{timeout: time.Second, now: time.Now}
}

func (p *SimulatedProvider) Name() string            { return "simulated-default" }
func (p *SimulatedProvider) Tier() models.SourceTier { return models.TierSimulated }
func (p *SimulatedProvider) Timeout() time.Duration  { return p.timeout }

func (p *SimulatedProvider) Fetch(ctx context.Context, lat, lon float64, hazards []models.HazardType) (*models.IndicatorSet, time.Time, error) {
	now := p.now()
	seed := locationSeed(lat, lon, now)

	// Spread the seed into stable mid-range values. jitter is in [0,1).
	jitter := func(salt uint64) float64 {
		v := seed ^ (salt * 0x9e3779b97f4a7c15)
		v ^= v >> 33
		v *= 0xff51afd7ed558ccd
		v ^= v >> 33
		return float64(v%10000) / 10000.0
	}

	indicators := &models.IndicatorSet{
		ConsecutiveDryDays: int(math.Floor(jitter(1) * 10)),
		MaxTempC:           22 + jitter(2)*12,
		SoilMoisture:       0.25 + jitter(3)*0.4,
		VegetationIndex:    0.35 + jitter(4)*0.4,
		VegetationTrend14d: -0.05 + jitter(5)*0.1,
		WaterStressIndex:   jitter(6) * 0.5,
		FloodRisk:          models.FloodRiskLow,
		FloodProbability:   jitter(7) * 0.3,
	}

	return indicators, now, nil
}

func locationSeed(lat, lon float64, now time.Time) uint64 {
	h := fnv.New64a()
	day := now.UTC().Format("2006-01-02")
	h.Write([]byte(day))
	var buf [16]byte
	writeFloat(buf[:8], lat)
	writeFloat(buf[8:], lon)
	h.Write(buf[:])
	return h.Sum64()
}

func writeFloat(dst []byte, f float64) {
	bits := math.Float64bits(f)
	for i := range 8 {
		dst[i] = byte(bits >> (8 * i))
	}
}
