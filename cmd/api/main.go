package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/piersideeats/dispatch-backend/api/routes"
	"github.com/piersideeats/dispatch-backend/internal/dispatch"
	"github.com/piersideeats/dispatch-backend/internal/efficiency"
	"github.com/piersideeats/dispatch-backend/internal/incidents"
	"github.com/piersideeats/dispatch-backend/internal/orders"
	"github.com/piersideeats/dispatch-backend/internal/payments"
	"github.com/piersideeats/dispatch-backend/internal/payouts"
	"github.com/piersideeats/dispatch-backend/internal/riders"
	"github.com/piersideeats/dispatch-backend/pkg/config"
	"github.com/piersideeats/dispatch-backend/pkg/db"
	"github.com/piersideeats/dispatch-backend/pkg/logger"
	"github.com/piersideeats/dispatch-backend/pkg/maps"
	"github.com/piersideeats/dispatch-backend/pkg/metrics"
	"github.com/piersideeats/dispatch-backend/pkg/migrate"
	"github.com/piersideeats/dispatch-backend/pkg/outbox"
	"github.com/piersideeats/dispatch-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gormDB := dbClient.DB()
	outboxSvc := outbox.NewService(outbox.NewRepository(gormDB), logg)

	orderRepo := orders.NewRepository(gormDB)
	riderRepo := riders.NewRepository(gormDB)
	offerRepo := dispatch.NewOfferRepository(gormDB)

	efficiencySvc, err := efficiency.NewService(efficiency.NewRepository(gormDB), dbClient, outboxSvc, efficiency.Rules{
		PointsPerAcceptance:         cfg.Scoring.PointsPerAcceptance,
		PointsPerPenalizedRejection: cfg.Scoring.PointsPerPenalizedRejection,
		BonusThresholdPercent:       cfg.Scoring.BonusThresholdPercent,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create efficiency service", err)
		os.Exit(1)
	}

	paymentsSvc, err := payments.NewService(payments.NewRepository(gormDB), payments.NewSettingsRepository(gormDB), efficiencySvc, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	ordersSvc, err := orders.NewService(orderRepo, riderRepo, paymentsSvc, dbClient, outboxSvc)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	ridersSvc, err := riders.NewService(riderRepo, dbClient, outboxSvc)
	if err != nil {
		logg.Error(context.Background(), "failed to create riders service", err)
		os.Exit(1)
	}

	incidentsSvc, err := incidents.NewService(incidents.NewRepository(gormDB), dbClient, outboxSvc)
	if err != nil {
		logg.Error(context.Background(), "failed to create incidents service", err)
		os.Exit(1)
	}

	payoutsSvc, err := payouts.NewService(paymentsSvc, payouts.NewBonusRepository(gormDB), riderRepo, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create payouts service", err)
		os.Exit(1)
	}

	engine, err := dispatch.NewEngine(
		orderRepo,
		riderRepo,
		offerRepo,
		efficiencySvc,
		incidentsSvc,
		dbClient,
		outboxSvc,
		redisClient,
		metrics.NewDispatchMetrics(prometheus.DefaultRegisterer),
		logg,
		cfg.Dispatch,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create dispatch engine", err)
		os.Exit(1)
	}

	var mapsClient *maps.Client
	if cfg.GoogleMaps.APIKey != "" {
		mapsClient, err = maps.NewClient(cfg.GoogleMaps.APIKey)
		if err != nil {
			logg.Error(context.Background(), "failed to create maps client", err)
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Decision windows are process-local, so the catch-up sweep runs
	// here alongside the engine and its per-window timers.
	go sweepLoop(ctx, logg, engine, cfg.Dispatch.SweepInterval)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg, logg, dbClient, redisClient, engine,
			ordersSvc, ridersSvc, efficiencySvc, paymentsSvc, payoutsSvc, incidentsSvc,
			mapsClient,
		),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(logCtx, "api server shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(logCtx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(logCtx, "api server shutting down gracefully")
}

func sweepLoop(ctx context.Context, logg *logger.Logger, engine dispatch.Engine, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := engine.SweepExpired(ctx); err != nil {
				logg.Error(ctx, "window sweep failed", err)
			}
		}
	}
}
