package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/campuspay/campuspay-api/internal/bootstrap"
	"github.com/campuspay/campuspay-api/internal/config"
	"github.com/campuspay/campuspay-api/internal/domain/admin"
	"github.com/campuspay/campuspay-api/internal/domain/auth"
	"github.com/campuspay/campuspay-api/internal/domain/billpay"
	"github.com/campuspay/campuspay-api/internal/domain/crypto"
	"github.com/campuspay/campuspay-api/internal/domain/loan"
	"github.com/campuspay/campuspay-api/internal/domain/notification"
	"github.com/campuspay/campuspay-api/internal/domain/p2p"
	"github.com/campuspay/campuspay-api/internal/domain/payment"
	"github.com/campuspay/campuspay-api/internal/domain/remittance"
	"github.com/campuspay/campuspay-api/internal/domain/settlement"
	"github.com/campuspay/campuspay-api/internal/domain/wallet"
	"github.com/campuspay/campuspay-api/internal/domain/webhook"
	"github.com/campuspay/campuspay-api/internal/middleware"
	"github.com/campuspay/campuspay-api/internal/pkg/database"
	"github.com/campuspay/campuspay-api/internal/pkg/jwt"
	"github.com/campuspay/campuspay-api/internal/pkg/logger"
	"github.com/campuspay/campuspay-api/internal/pkg/metrics"
	"github.com/campuspay/campuspay-api/internal/pkg/ratelimit"
	pkgresponse "github.com/campuspay/campuspay-api/internal/pkg/response"
	"github.com/campuspay/campuspay-api/internal/pkg/storage"
)

const webhookDedupTTL = 24 * time.Hour

func main() {
	cfg := config.Load()
	setupLogger(cfg)

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Str("limits_timezone", cfg.LimitsTimezone).
		Msg("Starting CampusPay API")

	db, err := database.NewPostgres(cfg.DatabaseURL, bootstrap.PoolConfig(cfg))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	if cfg.AutoMigrate {
		if err := database.Migrate(context.Background(), db); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply migrations")
		}
	}

	rdb, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(rdb)

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)

	// ---------- WebSocket hub ----------
	hub := notification.NewHub(rdb)
	go hub.Run()

	// ---------- Ledger and settlement ----------
	app, err := bootstrap.Build(cfg, db, hub)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build settlement orchestrator")
	}
	defer app.Close()
	orch := app.Orchestrator

	archive, err := storage.New(storage.Config{
		S3Endpoint:  cfg.ArchiveS3Endpoint,
		S3Region:    cfg.ArchiveS3Region,
		S3AccessKey: cfg.ArchiveS3AccessKey,
		S3SecretKey: cfg.ArchiveS3SecretKey,
		S3Bucket:    cfg.ArchiveS3Bucket,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create webhook archive")
	}

	// ---------- Services ----------
	authService := auth.NewService(db, app.Users, app.Wallets, jwtService, auth.NewRedisRefreshStore(rdb), wallet.Limits{
		Daily:   cfg.DefaultDailyLimit,
		Monthly: cfg.DefaultMonthlyLimit,
	}, app.Retry)
	walletService := wallet.NewService(db, app.Wallets, app.Engine, app.Retry)
	paymentService := payment.NewService(app.Payments)
	limiter := ratelimit.New(rdb, cfg.RateLimitPerMinute, time.Minute)

	// ---------- Handlers ----------
	authHandler := auth.NewHandler(authService)
	walletHandler := wallet.NewHandler(walletService)
	settlementHandler := settlement.NewHandler(orch, cfg.ReconcileMinAge, cfg.ReconcileBatch)
	paymentHandler := payment.NewHandler(paymentService)
	p2pHandler := p2p.NewHandler(orch, app.P2P)
	loanHandler := loan.NewHandler(app.LoanSvc, orch)
	billpayHandler := billpay.NewHandler(orch)
	remittanceHandler := remittance.NewHandler(app.Quoter, orch)
	cryptoHandler := crypto.NewHandler(orch, app.Crypto)
	wsHandler := notification.NewHandler(hub, cfg.AllowedOrigins)
	adminHandler := admin.NewHandler(app.Users, app.Wallets)

	webhookCfg := webhook.Config{
		Paystack: app.Charge,
		Remita:   app.Remita,
		Archive:  archive,
	}
	if rdb != nil {
		webhookCfg.Dedup = webhook.NewRedisDeduper(rdb, webhookDedupTTL)
	}
	webhookHandler := webhook.NewHandler(orch, webhookCfg)

	authMiddleware := middleware.Auth(jwtService)

	// ---------- Router ----------
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	// WebSocket endpoint (token may come from ?token= on the upgrade request)
	r.With(authMiddleware).Get("/ws", wsHandler.WebSocket)

	r.Get("/health", healthHandler(db, rdb))
	r.Handle("/metrics", metrics.Handler())

	r.Mount("/webhooks", webhookHandler.Routes())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
			pkgresponse.OK(w, map[string]string{"message": "pong"})
		})

		mountAPI(r, apiRoutes{
			Auth:       authHandler,
			Wallet:     walletHandler,
			Settlement: settlementHandler,
			Payments:   paymentHandler,
			P2P:        p2pHandler,
			Loans:      loanHandler,
			RRR:        billpayHandler,
			Remittance: remittanceHandler,
			Crypto:     cryptoHandler,
		}, authMiddleware, limiter.Middleware)
	})

	r.Mount("/api/admin", adminHandler.Routes(authMiddleware, walletHandler, loanHandler, settlementHandler))

	// ---------- Background workers ----------
	var reconciler *settlement.Reconciler
	var loanWorker *loan.Worker
	if cfg.WorkersInProcess {
		reconciler = settlement.NewReconciler(orch, cfg.ReconcileInterval, cfg.ReconcileMinAge, cfg.ReconcileBatch)
		reconciler.Start()
		loanWorker = loan.NewWorker(app.LoanSvc, cfg.LoanSweepInterval)
		loanWorker.Start()
		log.Info().Msg("Reconciler and loan sweeper running in-process")
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if reconciler != nil {
		reconciler.Stop()
	}
	if loanWorker != nil {
		loanWorker.Stop()
	}
	hub.Shutdown()

	log.Info().Msg("Server exited properly")
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

func healthHandler(db *sqlx.DB, rdb *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{"status": "ok", "postgres": "ok", "redis": "disabled"}
		healthy := true
		if err := db.PingContext(ctx); err != nil {
			status["postgres"] = "unreachable"
			healthy = false
		}
		if rdb != nil {
			status["redis"] = "ok"
			if err := rdb.Ping(ctx).Err(); err != nil {
				status["redis"] = "unreachable"
				healthy = false
			}
		}
		if !healthy {
			status["status"] = "degraded"
			pkgresponse.JSON(w, http.StatusServiceUnavailable, status)
			return
		}
		pkgresponse.OK(w, status)
	}
}
