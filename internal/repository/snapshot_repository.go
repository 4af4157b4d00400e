package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"decision-engine/internal/models"
)

// SnapshotRepository stores the environmental time series that persistence
// rules evaluate over.
type SnapshotRepository struct {
	db *sqlx.DB
}

func NewSnapshotRepository(db *sqlx.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// snapshotRow flattens EnvironmentalSnapshot for sqlx named binding.
type snapshotRow struct {
	ID                 uuid.UUID             `db:"id"`
	PolicyID           uuid.UUID             `db:"policy_id"`
	Lat                float64               `db:"lat"`
	Lon                float64               `db:"lon"`
	Tier               models.SourceTier     `db:"tier"`
	Confident          bool                  `db:"confident"`
	MeasuredAt         time.Time             `db:"measured_at"`
	CreatedAt          time.Time             `db:"created_at"`
	ConsecutiveDryDays int                   `db:"consecutive_dry_days"`
	MaxTempC           float64               `db:"max_temp_c"`
	SoilMoisture       float64               `db:"soil_moisture"`
	VegetationIndex    float64               `db:"vegetation_index"`
	VegetationTrend14d float64               `db:"vegetation_trend_14d"`
	WaterStressIndex   float64               `db:"water_stress_index"`
	FloodRisk          models.FloodRiskLevel `db:"flood_risk"`
	FloodProbability   float64               `db:"flood_probability"`
	SoilQuality        []byte                `db:"soil_quality"`
}

func toRow(s *models.EnvironmentalSnapshot) (*snapshotRow, error) {
	soil, err := json.Marshal(s.Indicators.SoilQuality)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal soil quality: %w", err)
	}

	return &snapshotRow{
		ID:                 s.ID,
		PolicyID:           s.PolicyID,
		Lat:                s.Lat,
		Lon:                s.Lon,
		Tier:               s.Tier,
		Confident:          s.Confident,
		MeasuredAt:         s.MeasuredAt,
		CreatedAt:          s.CreatedAt,
		ConsecutiveDryDays: s.Indicators.ConsecutiveDryDays,
		MaxTempC:           s.Indicators.MaxTempC,
		SoilMoisture:       s.Indicators.SoilMoisture,
		VegetationIndex:    s.Indicators.VegetationIndex,
		VegetationTrend14d: s.Indicators.VegetationTrend14d,
		WaterStressIndex:   s.Indicators.WaterStressIndex,
		FloodRisk:          s.Indicators.FloodRisk,
		FloodProbability:   s.Indicators.FloodProbability,
		SoilQuality:        soil,
	}, nil
}

func fromRow(row *snapshotRow) (*models.EnvironmentalSnapshot, error) {
	snapshot := &models.EnvironmentalSnapshot{
		ID:         row.ID,
		PolicyID:   row.PolicyID,
		Lat:        row.Lat,
		Lon:        row.Lon,
		Tier:       row.Tier,
		Confident:  row.Confident,
		MeasuredAt: row.MeasuredAt,
		CreatedAt:  row.CreatedAt,
		Indicators: models.IndicatorSet{
			ConsecutiveDryDays: row.ConsecutiveDryDays,
			MaxTempC:           row.MaxTempC,
			SoilMoisture:       row.SoilMoisture,
			VegetationIndex:    row.VegetationIndex,
			VegetationTrend14d: row.VegetationTrend14d,
			WaterStressIndex:   row.WaterStressIndex,
			FloodRisk:          row.FloodRisk,
			FloodProbability:   row.FloodProbability,
		},
	}

	if len(row.SoilQuality) > 0 {
		if err := json.Unmarshal(row.SoilQuality, &snapshot.Indicators.SoilQuality); err != nil {
			return nil, fmt.Errorf("failed to unmarshal soil quality: %w", err)
		}
	}

	return snapshot, nil
}

func (r *SnapshotRepository) Insert(ctx context.Context, snapshot *models.EnvironmentalSnapshot) error {
	row, err := toRow(snapshot)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO environmental_snapshot (
			id, policy_id, lat, lon, tier, confident, measured_at, created_at,
			consecutive_dry_days, max_temp_c, soil_moisture, vegetation_index,
			vegetation_trend_14d, water_stress_index, flood_risk, flood_probability,
			soil_quality
		) VALUES (
			:id, :policy_id, :lat, :lon, :tier, :confident, :measured_at, :created_at,
			:consecutive_dry_days, :max_temp_c, :soil_moisture, :vegetation_index,
			:vegetation_trend_14d, :water_stress_index, :flood_risk, :flood_probability,
			:soil_quality
		)`

	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	return nil
}

// GetTrailingWindow returns the prior snapshots for a policy within the
// last `days` days, oldest first, for persistence-based trigger rules.
func (r *SnapshotRepository) GetTrailingWindow(ctx context.Context, policyID uuid.UUID, days int) ([]models.EnvironmentalSnapshot, error) {
	var rows []snapshotRow
	query := `
		SELECT id, policy_id, lat, lon, tier, confident, measured_at, created_at,
			consecutive_dry_days, max_temp_c, soil_moisture, vegetation_index,
			vegetation_trend_14d, water_stress_index, flood_risk, flood_probability,
			soil_quality
		FROM environmental_snapshot
		WHERE policy_id = $1 AND measured_at >= $2
		ORDER BY measured_at`

	since := time.Now().AddDate(0, 0, -days)
	if err := r.db.SelectContext(ctx, &rows, query, policyID, since); err != nil {
		return nil, fmt.Errorf("failed to get trailing window: %w", err)
	}

	snapshots := make([]models.EnvironmentalSnapshot, 0, len(rows))
	for i := range rows {
		snapshot, err := fromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, *snapshot)
	}

	return snapshots, nil
}
