package postgres

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"decision-engine/internal/config"
)

// Connect opens and pings the engine database.
func Connect(cfg config.PostgresConfig) (*sqlx.DB, error) {
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.DBname)

	db, err := sqlx.Connect("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("Connected to PostgreSQL", "host", cfg.Host, "port", cfg.Port, "dbname", cfg.DBname)
	return db, nil
}

// RetryConnect keeps retrying Connect until it succeeds or maxAttempts runs
// out. Used at startup when the database container may still be coming up.
func RetryConnect(cfg config.PostgresConfig, wait time.Duration, maxAttempts int) (*sqlx.DB, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		db, err := Connect(cfg)
		if err == nil {
			return db, nil
		}
		lastErr = err
		slog.Warn("database connection failed, retrying",
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"wait", wait,
			"error", err)
		time.Sleep(wait)
	}
	return nil, fmt.Errorf("database unreachable after %d attempts: %w", maxAttempts, lastErr)
}
