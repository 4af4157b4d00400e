package config

import (
	"os"
	"strconv"
	"time"

	"decision-engine/internal/models"
)

type EngineConfig struct {
	Port        string
	PostgresCfg PostgresConfig
	RedisCfg    RedisConfig
	RabbitMQCfg RabbitMQConfig
	MinioCfg    MinioConfig
	ProviderCfg ProviderConfig
	ScoringCfg  ScoringConfig
	TriggerCfg  TriggerConfig
	PayoutCfg   PayoutConfig
	PaymentCfg  PaymentConfig
	SweepCfg    SweepConfig
}

type PostgresConfig struct {
	DBname   string
	Username string
	Password string
	Host     string
	Port     string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type RabbitMQConfig struct {
	Username string
	Password string
	Host     string
	Port     string
}

type MinioConfig struct {
	Endpoint       string
	AccessKey      string
	SecretKey      string
	Secure         bool
	EvidenceBucket string
}

// ProviderConfig bounds each data tier and the snapshot cache.
type ProviderConfig struct {
	PrimaryBaseURL  string
	PrimaryAPIKey   string
	PrimaryTimeout  time.Duration
	FallbackBaseURL string
	FallbackAPIKey  string
	FallbackTimeout time.Duration
	WeatherTTL      time.Duration
	SoilTTL         time.Duration
}

// ScoringConfig holds the per-use-case weight profiles. Weights must sum to
// 1.0; validated at startup.
type ScoringConfig struct {
	HazardWeights  map[string]float64
	PremiumWeights map[string]float64
	CreditWeights  map[string]float64
	PremiumMin     float64
	PremiumMax     float64
	CreditScale    float64
}

// TriggerConfig holds the per-hazard thresholds. Never hard-coded in the
// evaluator logic.
type TriggerConfig struct {
	DroughtDryDays      int
	DroughtVegCritical  float64
	DroughtMaxTempC     float64
	DroughtSoilFloor    float64
	FloodProbThreshold  float64
	CropStressVegFloor  float64
	CropStressWindow    int
	CropStressWaterMin  float64
}

type PayoutConfig struct {
	EscalationSLA       time.Duration
	CompensationPerDay  float64
	CompensationCap     float64
	PaymentMaxAttempts  int
	PaymentBackoffBase  time.Duration
	PaymentPollInterval time.Duration
}

// PaymentConfig describes the default payment operator. Policies may name a
// different registered operator.
type PaymentConfig struct {
	ProviderName string
	BaseURL      string
	APIKey       string
	Timeout      time.Duration
}

type SweepConfig struct {
	Interval   time.Duration
	NumWorkers int
	QueueSize  int
}

func New() *EngineConfig {
	return &EngineConfig{
		Port: getEnvOrDefault("PORT", "8086"),
		PostgresCfg: PostgresConfig{
			DBname:   getEnvOrDefault("POSTGRES_DB", "decision_engine"),
			Username: getEnvOrDefault("POSTGRES_USER", "postgres"),
			Password: getEnvOrDefault("POSTGRES_PASSWORD", "postgres"),
			Host:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
			Port:     getEnvOrDefault("POSTGRES_PORT", "5432"),
		},
		RedisCfg: RedisConfig{
			Host:     getEnvOrDefault("REDIS_HOST", "localhost"),
			Port:     getEnvOrDefault("REDIS_PORT", "6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       0,
		},
		RabbitMQCfg: RabbitMQConfig{
			Username: getEnvOrDefault("RABBITMQ_USER", "admin"),
			Password: getEnvOrDefault("RABBITMQ_PWD", "admin"),
			Host:     getEnvOrDefault("RABBITMQ_HOST", "localhost"),
			Port:     getEnvOrDefault("RABBITMQ_PORT", "5672"),
		},
		MinioCfg: MinioConfig{
			Endpoint:       getEnvOrDefault("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey:      getEnvOrDefault("MINIO_ACCESS_KEY", "minio"),
			SecretKey:      getEnvOrDefault("MINIO_SECRET_KEY", "minio123"),
			Secure:         getEnvBool("MINIO_SECURE", false),
			EvidenceBucket: getEnvOrDefault("MINIO_EVIDENCE_BUCKET", "trigger-evidence"),
		},
		ProviderCfg: ProviderConfig{
			PrimaryBaseURL:  getEnvOrDefault("PRIMARY_PROVIDER_URL", "https://api.openweathermap.org/data/3.0"),
			PrimaryAPIKey:   getEnvOrDefault("PRIMARY_PROVIDER_KEY", ""),
			PrimaryTimeout:  getEnvDuration("PRIMARY_PROVIDER_TIMEOUT", 10*time.Second),
			FallbackBaseURL: getEnvOrDefault("FALLBACK_PROVIDER_URL", "http://api.agromonitoring.com/agro/1.0"),
			FallbackAPIKey:  getEnvOrDefault("FALLBACK_PROVIDER_KEY", ""),
			FallbackTimeout: getEnvDuration("FALLBACK_PROVIDER_TIMEOUT", 15*time.Second),
			WeatherTTL:      getEnvDuration("SNAPSHOT_WEATHER_TTL", 30*time.Minute),
			SoilTTL:         getEnvDuration("SNAPSHOT_SOIL_TTL", 12*time.Hour),
		},
		ScoringCfg: ScoringConfig{
			HazardWeights: map[string]float64{
				"dry_spell":    0.30,
				"vegetation":   0.30,
				"temperature":  0.20,
				"soil":         0.20,
			},
			PremiumWeights: map[string]float64{
				"hazard_risk":  0.50,
				"crop":         0.25,
				"soil":         0.25,
			},
			CreditWeights: map[string]float64{
				"payout_history": 0.40,
				"hazard_risk":    0.35,
				"tenure":         0.25,
			},
			PremiumMin:  0.8,
			PremiumMax:  2.0,
			CreditScale: 1000,
		},
		TriggerCfg: TriggerConfig{
			DroughtDryDays:     getEnvInt("DROUGHT_DRY_DAYS", 21),
			DroughtVegCritical: getEnvFloat("DROUGHT_VEG_CRITICAL", 0.25),
			DroughtMaxTempC:    getEnvFloat("DROUGHT_MAX_TEMP_C", 38),
			DroughtSoilFloor:   getEnvFloat("DROUGHT_SOIL_FLOOR", 0.2),
			FloodProbThreshold: getEnvFloat("FLOOD_PROB_THRESHOLD", 0.7),
			CropStressVegFloor: getEnvFloat("CROP_STRESS_VEG_FLOOR", 0.25),
			CropStressWindow:   getEnvInt("CROP_STRESS_WINDOW_DAYS", 14),
			CropStressWaterMin: getEnvFloat("CROP_STRESS_WATER_MIN", 0.6),
		},
		PayoutCfg: PayoutConfig{
			EscalationSLA:       getEnvDuration("ESCALATION_SLA", 48*time.Hour),
			CompensationPerDay:  getEnvFloat("COMPENSATION_PER_DAY", 0.05),
			CompensationCap:     getEnvFloat("COMPENSATION_CAP", 0.25),
			PaymentMaxAttempts:  getEnvInt("PAYMENT_MAX_ATTEMPTS", 5),
			PaymentBackoffBase:  getEnvDuration("PAYMENT_BACKOFF_BASE", 2*time.Second),
			PaymentPollInterval: getEnvDuration("PAYMENT_POLL_INTERVAL", 5*time.Minute),
		},
		PaymentCfg: PaymentConfig{
			ProviderName: getEnvOrDefault("PAYMENT_PROVIDER_NAME", "mobile-money"),
			BaseURL:      getEnvOrDefault("PAYMENT_PROVIDER_URL", "http://localhost:8090/api/v1"),
			APIKey:       getEnvOrDefault("PAYMENT_PROVIDER_KEY", ""),
			Timeout:      getEnvDuration("PAYMENT_PROVIDER_TIMEOUT", 15*time.Second),
		},
		SweepCfg: SweepConfig{
			Interval:   getEnvDuration("SWEEP_INTERVAL", time.Hour),
			NumWorkers: getEnvInt("SWEEP_WORKERS", 8),
			QueueSize:  getEnvInt("SWEEP_QUEUE_SIZE", 1024),
		},
	}
}

// Validate checks every externally supplied value the engine depends on.
// Any error here is fatal at startup.
func (c *EngineConfig) Validate() error {
	for name, weights := range map[string]map[string]float64{
		"scoring.hazard_weights":  c.ScoringCfg.HazardWeights,
		"scoring.premium_weights": c.ScoringCfg.PremiumWeights,
		"scoring.credit_weights":  c.ScoringCfg.CreditWeights,
	} {
		sum := 0.0
		for key, w := range weights {
			if w < 0 {
				return &models.ConfigError{Field: name + "." + key, Reason: "weight must be non-negative"}
			}
			sum += w
		}
		if sum < 1.0-1e-9 || sum > 1.0+1e-9 {
			return &models.ConfigError{Field: name, Reason: "weights must sum to 1.0"}
		}
	}

	if c.ScoringCfg.PremiumMin <= 0 || c.ScoringCfg.PremiumMax <= c.ScoringCfg.PremiumMin {
		return &models.ConfigError{Field: "scoring.premium_range", Reason: "require 0 < min < max"}
	}
	if c.ScoringCfg.CreditScale <= 0 {
		return &models.ConfigError{Field: "scoring.credit_scale", Reason: "must be positive"}
	}

	if c.TriggerCfg.DroughtDryDays <= 0 {
		return &models.ConfigError{Field: "trigger.drought_dry_days", Reason: "must be positive"}
	}
	if c.TriggerCfg.FloodProbThreshold <= 0 || c.TriggerCfg.FloodProbThreshold >= 1 {
		return &models.ConfigError{Field: "trigger.flood_prob_threshold", Reason: "must be in (0,1)"}
	}
	if c.TriggerCfg.CropStressWindow <= 0 {
		return &models.ConfigError{Field: "trigger.crop_stress_window", Reason: "must be positive"}
	}

	if c.PayoutCfg.EscalationSLA <= 0 {
		return &models.ConfigError{Field: "payout.escalation_sla", Reason: "must be positive"}
	}
	if c.PayoutCfg.CompensationPerDay < 0 || c.PayoutCfg.CompensationCap < 0 {
		return &models.ConfigError{Field: "payout.compensation", Reason: "rates must be non-negative"}
	}
	if c.PayoutCfg.PaymentMaxAttempts <= 0 {
		return &models.ConfigError{Field: "payout.payment_max_attempts", Reason: "must be positive"}
	}

	if c.SweepCfg.NumWorkers <= 0 || c.SweepCfg.QueueSize <= 0 {
		return &models.ConfigError{Field: "sweep.workers", Reason: "workers and queue size must be positive"}
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
