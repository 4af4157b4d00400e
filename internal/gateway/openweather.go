package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"decision-engine/internal/models"
)

// OpenWeatherProvider is the primary tier. It calls the processed-indicator
// endpoint of the upstream environmental API; raw imagery analysis happens
// upstream and arrives here as plain numeric signals.
type OpenWeatherProvider struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	client  *http.Client
}

func NewOpenWeatherProvider(baseURL, apiKey string, timeout time.Duration) *OpenWeatherProvider {
	return &OpenWeatherProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *OpenWeatherProvider) Name() string            { return "openweather" }
func (p *OpenWeatherProvider) Tier() models.SourceTier { return models.TierPrimary }
func (p *OpenWeatherProvider) Timeout() time.Duration  { return p.timeout }

type openWeatherResponse struct {
	Dt                 int64   `json:"dt"`
	ConsecutiveDryDays int     `json:"consecutive_dry_days"`
	MaxTempC           float64 `json:"max_temp_c"`
	SoilMoisture       float64 `json:"soil_moisture"`
	VegetationIndex    float64 `json:"vegetation_index"`
	VegetationTrend    float64 `json:"vegetation_trend_14d"`
	WaterStressIndex   float64 `json:"water_stress_index"`
	FloodRisk          string  `json:"flood_risk"`
	FloodProbability   float64 `json:"flood_probability"`

	SoilQuality map[string]float64 `json:"soil_quality,omitempty"`
}

func (p *OpenWeatherProvider) Fetch(ctx context.Context, lat, lon float64, hazards []models.HazardType) (*models.IndicatorSet, time.Time, error) {
	if p.apiKey == "" {
		return nil, time.Time{}, fmt.Errorf("%w: API key not configured", models.ErrProviderUnavailable)
	}

	names := make([]string, 0, len(hazards))
	for _, h := range hazards {
		names = append(names, string(h))
	}

	url := fmt.Sprintf("%s/environment?lat=%f&lon=%f&hazards=%s&appid=%s",
		p.baseURL, lat, lon, strings.Join(names, ","), p.apiKey)

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

	var payload openWeatherResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: malformed payload: %v", models.ErrProviderUnavailable, err)
	}

	return indicatorsFromResponse(&payload), time.Unix(payload.Dt, 0), nil
}

func indicatorsFromResponse(r *openWeatherResponse) *models.IndicatorSet {
	return &models.IndicatorSet{
		ConsecutiveDryDays: r.ConsecutiveDryDays,
		MaxTempC:           r.MaxTempC,
		SoilMoisture:       r.SoilMoisture,
		VegetationIndex:    r.VegetationIndex,
		VegetationTrend14d: r.VegetationTrend,
		WaterStressIndex:   r.WaterStressIndex,
		FloodRisk:          models.FloodRiskLevel(strings.ToLower(r.FloodRisk)),
		FloodProbability:   r.FloodProbability,
		SoilQuality:        r.SoilQuality,
	}
}
