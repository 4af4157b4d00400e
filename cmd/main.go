package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"

	"decision-engine/internal/archive"
	"decision-engine/internal/config"
	"decision-engine/internal/database/postgres"
	redisdb "decision-engine/internal/database/redis"
	"decision-engine/internal/event"
	"decision-engine/internal/gateway"
	"decision-engine/internal/handlers"
	"decision-engine/internal/payment"
	"decision-engine/internal/payout"
	"decision-engine/internal/repository"
	"decision-engine/internal/scoring"
	"decision-engine/internal/trigger"
	"decision-engine/internal/worker"
)

func setupLogging() {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
}

func main() {
	setupLogging()

	cfg := config.New()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	slog.Info("Connecting to PostgreSQL",
		"host", cfg.PostgresCfg.Host, "port", cfg.PostgresCfg.Port, "db", cfg.PostgresCfg.DBname)
	db, err := postgres.Connect(cfg.PostgresCfg)
	if err != nil {
		slog.Warn("Initial database connection failed, retrying", "error", err)
		db, err = postgres.RetryConnect(cfg.PostgresCfg, 5*time.Second, 12)
		if err != nil {
			log.Fatalf("Could not connect to database: %v", err)
		}
	}
	defer db.Close()

	redisClient, err := redisdb.NewRedisClient(cfg.RedisCfg)
	if err != nil {
		log.Fatalf("Could not connect to Redis: %v", err)
	}
	defer redisClient.Close()

	rabbitConn, err := event.ConnectRabbitMQ(cfg.RabbitMQCfg)
	if err != nil {
		log.Fatalf("Could not connect to RabbitMQ: %v", err)
	}
	defer rabbitConn.Close()
	publisher := event.NewNotificationPublisher(rabbitConn)

	// The engine stays up without the archive; decisions are still fully
	// persisted in Postgres.
	var evidenceSink worker.EvidenceSink
	if evidenceArchive, err := archive.NewEvidenceArchive(cfg.MinioCfg); err != nil {
		slog.Warn("Evidence archive unavailable, continuing without it", "error", err)
	} else {
		evidenceSink = evidenceArchive
	}

	// Scoring profiles are validated here so a bad weight table kills the
	// process before any sweep runs.
	hazardProfile, err := scoring.NewWeightProfile("hazard_risk", cfg.ScoringCfg.HazardWeights)
	if err != nil {
		log.Fatalf("Invalid hazard weight profile: %v", err)
	}
	premiumProfile, err := scoring.NewWeightProfile("premium", cfg.ScoringCfg.PremiumWeights)
	if err != nil {
		log.Fatalf("Invalid premium weight profile: %v", err)
	}
	creditProfile, err := scoring.NewWeightProfile("credit", cfg.ScoringCfg.CreditWeights)
	if err != nil {
		log.Fatalf("Invalid credit weight profile: %v", err)
	}

	// Data tiers, best first. The simulated tier never fails and never binds.
	providers := []gateway.Provider{
		gateway.NewOpenWeatherProvider(cfg.ProviderCfg.PrimaryBaseURL, cfg.ProviderCfg.PrimaryAPIKey, cfg.ProviderCfg.PrimaryTimeout),
		gateway.NewAgroMonitorProvider(cfg.ProviderCfg.FallbackBaseURL, cfg.ProviderCfg.FallbackAPIKey, cfg.ProviderCfg.FallbackTimeout),
		gateway.NewSimulatedProvider(),
	}
	snapshotCache := gateway.NewRedisSnapshotCache(redisClient)
	dataGateway := gateway.NewGateway(providers, snapshotCache, cfg.ProviderCfg.WeatherTTL, cfg.ProviderCfg.SoilTTL)

	evaluator := trigger.NewEvaluator(cfg.TriggerCfg, hazardProfile)

	paymentRegistry := payment.NewRegistry()
	paymentRegistry.Register(payment.NewMobileMoneyPort(
		cfg.PaymentCfg.ProviderName, cfg.PaymentCfg.BaseURL, cfg.PaymentCfg.APIKey, cfg.PaymentCfg.Timeout))

	policyRepo := repository.NewPolicyRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(db)
	evaluationRepo := repository.NewEvaluationRepository(db)
	payoutRepo := repository.NewPayoutRepository(db)

	orchestrator := payout.NewOrchestrator(payoutRepo, paymentRegistry, publisher, cfg.PayoutCfg)

	pool := worker.NewWorkingPool(cfg.SweepCfg.NumWorkers, cfg.SweepCfg.QueueSize)
	sweepService := worker.NewSweepService(
		policyRepo, snapshotRepo, evaluationRepo,
		dataGateway, evaluator, orchestrator,
		evidenceSink, publisher,
		cfg.TriggerCfg, pool,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var managerWg sync.WaitGroup
	managerWg.Add(1)
	go pool.Start(ctx, &managerWg)

	sweepScheduler := worker.NewJobScheduler("policy-sweep", cfg.SweepCfg.Interval, pool)
	sweepScheduler.AddJob(sweepService.Sweep)
	go sweepScheduler.Run(ctx)

	settlementScheduler := worker.NewJobScheduler("settlement", cfg.PayoutCfg.PaymentPollInterval, pool)
	settlementScheduler.AddJob(orchestrator.PollTransfers)
	settlementScheduler.AddJob(orchestrator.CheckEscalations)
	go settlementScheduler.Run(ctx)

	app := fiber.New()

	handlers.NewHealthHandler(db, dataGateway, publisher).Register(app)
	handlers.NewPayoutHandler(orchestrator).Register(app)
	handlers.NewScoringHandler(hazardProfile, premiumProfile, creditProfile, cfg.ScoringCfg).Register(app)

	go func() {
		slog.Info("Starting decision engine", "port", cfg.Port)
		if err := app.Listen(fmt.Sprintf(":%s", cfg.Port)); err != nil {
			slog.Error("HTTP server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutdown signaled, draining workers")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown failed", "error", err)
	}

	managerWg.Wait()
	slog.Info("Decision engine stopped")
}
