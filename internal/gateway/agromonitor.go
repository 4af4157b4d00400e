package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"decision-engine/internal/models"
)

// AgroMonitorProvider is the first fallback tier. Same contract as the
// primary; a different upstream with its own payload shape and timeout.
type AgroMonitorProvider struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	client  *http.Client
}

func NewAgroMonitorProvider(baseURL, apiKey string, timeout time.Duration) *AgroMonitorProvider {
	return &AgroMonitorProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *AgroMonitorProvider) Name() string            { return "agromonitor" }
func (p *AgroMonitorProvider) Tier() models.SourceTier { return models.TierFallback1 }
func (p *AgroMonitorProvider) Timeout() time.Duration  { return p.timeout }

type agroMonitorResponse struct {
	Timestamp int64 `json:"ts"`
	Weather   struct {
		DrySpellDays int     `json:"dry_spell_days"`
		TempMax      float64 `json:"temp_max"`
	} `json:"weather"`
	Soil struct {
		Moisture float64            `json:"moisture"`
		Quality  map[string]float64 `json:"quality,omitempty"`
	} `json:"soil"`
	Vegetation struct {
		NDVI        float64 `json:"ndvi"`
		Trend14d    float64 `json:"trend_14d"`
		WaterStress float64 `json:"water_stress"`
	} `json:"vegetation"`
	Flood struct {
		RiskLevel   string  `json:"risk_level"`
		Probability float64 `json:"probability_7d"`
	} `json:"flood"`
}

func (p *AgroMonitorProvider) Fetch(ctx context.Context, lat, lon float64, hazards []models.HazardType) (*models.IndicatorSet, time.Time, error) {
	if p.apiKey == "" {
		return nil, time.Time{}, fmt.Errorf("%w: API key not configured", models.ErrProviderUnavailable)
	}

	url := fmt.Sprintf("%s/conditions?lat=%f&lon=%f&appid=%s", p.baseURL, lat, lon, p.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: failed to read response: %v", models.ErrProviderUnavailable, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, time.Time{}, fmt.Errorf("%w: rate limited", models.ErrProviderUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, time.Time{}, fmt.Errorf("%w: status %d: %s", models.ErrProviderUnavailable, resp.StatusCode, string(body))
	}

	var payload agroMonitorResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: malformed payload: %v", models.ErrProviderUnavailable, err)
	}

	indicators := &models.IndicatorSet{
		ConsecutiveDryDays: payload.Weather.DrySpellDays,
		MaxTempC:           payload.Weather.TempMax,
		SoilMoisture:       payload.Soil.Moisture,
		VegetationIndex:    payload.Vegetation.NDVI,
		VegetationTrend14d: payload.Vegetation.Trend14d,
		WaterStressIndex:   payload.Vegetation.WaterStress,
		FloodRisk:          models.FloodRiskLevel(payload.Flood.RiskLevel),
		FloodProbability:   payload.Flood.Probability,
		SoilQuality:        payload.Soil.Quality,
	}

	return indicators, time.Unix(payload.Timestamp, 0), nil
}
