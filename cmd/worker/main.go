package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/campuspay/campuspay-api/internal/bootstrap"
	"github.com/campuspay/campuspay-api/internal/config"
	"github.com/campuspay/campuspay-api/internal/domain/loan"
	"github.com/campuspay/campuspay-api/internal/domain/notification"
	"github.com/campuspay/campuspay-api/internal/domain/settlement"
	"github.com/campuspay/campuspay-api/internal/pkg/database"
	"github.com/campuspay/campuspay-api/internal/pkg/logger"
)

// wakeChannel lets operators trigger an immediate reconcile pass:
// redis-cli PUBLISH reconcile:wake now
const wakeChannel = "reconcile:wake"

func main() {
	cfg := config.Load()
	setupLogger(cfg)

	log.Info().Msg("Starting settlement worker")

	db, err := database.NewPostgres(cfg.DatabaseURL, bootstrap.PoolConfig(cfg))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	rdb, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(rdb)

	// Balance changes are relayed through Redis to api instances holding the sockets.
	hub := notification.NewHub(rdb)
	defer hub.Shutdown()

	app, err := bootstrap.Build(cfg, db, hub)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build settlement orchestrator")
	}
	defer app.Close()

	loanWorker := loan.NewWorker(app.LoanSvc, cfg.LoanSweepInterval)
	loanWorker.Start()
	defer loanWorker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wake := make(chan struct{}, 1)
	go subscribeWakeups(ctx, rdb, wake)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigChan
		log.Info().Msg("Shutdown signal received")
		cancel()
	}()

	interval := cfg.ReconcileInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		reconcileOnce(ctx, app.Orchestrator, cfg)

		select {
		case <-ctx.Done():
			log.Info().Msg("settlement worker stopped")
			return
		case <-wake:
		case <-ticker.C:
		}
	}
}

func reconcileOnce(ctx context.Context, orch *settlement.Orchestrator, cfg *config.Config) {
	passCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	start := time.Now()
	summary, err := orch.ReconcileProcessing(passCtx, cfg.ReconcileMinAge, cfg.ReconcileBatch)
	if err != nil {
		log.Error().Err(err).Msg("Reconcile pass failed")
		return
	}
	if summary.Checked == 0 {
		log.Debug().Int("open", summary.Open).Msg("Idle: no stale in-flight payments")
		return
	}
	log.Info().
		Int("checked", summary.Checked).
		Int("completed", summary.Completed).
		Int("failed", summary.Failed).
		Int("unchanged", summary.Unchanged).
		Int("errors", summary.Errors).
		Dur("took", time.Since(start)).
		Msg("Reconcile pass finished")
}

func subscribeWakeups(ctx context.Context, rdb *redis.Client, wake chan<- struct{}) {
	if rdb == nil {
		return
	}
	sub := rdb.Subscribe(ctx, wakeChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			select {
			case wake <- struct{}{}:
			default:
			}
		}
	}
}

func setupLogger(cfg *config.Config) {
	if err := logger.Init(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Env,
		LogFile:     cfg.LogFile,
	}); err != nil {
		log.Error().Err(err).Msg("Logger setup failed")
	}
}
