package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/piersideeats/dispatch-backend/internal/cron"
	"github.com/piersideeats/dispatch-backend/internal/efficiency"
	"github.com/piersideeats/dispatch-backend/internal/incidents"
	"github.com/piersideeats/dispatch-backend/internal/orders"
	"github.com/piersideeats/dispatch-backend/internal/payments"
	"github.com/piersideeats/dispatch-backend/internal/payouts"
	"github.com/piersideeats/dispatch-backend/internal/riders"
	"github.com/piersideeats/dispatch-backend/pkg/config"
	"github.com/piersideeats/dispatch-backend/pkg/db"
	"github.com/piersideeats/dispatch-backend/pkg/logger"
	"github.com/piersideeats/dispatch-backend/pkg/metrics"
	"github.com/piersideeats/dispatch-backend/pkg/migrate"
	"github.com/piersideeats/dispatch-backend/pkg/outbox"
	"github.com/piersideeats/dispatch-backend/pkg/redis"
)

const (
	lockKeyFormat = "pierside:cron-worker:lock:%s"
	cronInterval  = 15 * time.Minute
	cronLockTTL   = 10 * time.Minute
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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
	outboxRepo := outbox.NewRepository(gormDB)
	outboxSvc := outbox.NewService(outboxRepo, logg)
	orderRepo := orders.NewRepository(gormDB)
	riderRepo := riders.NewRepository(gormDB)

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

	lateOrders, err := cron.NewLateOrdersJob(cron.LateOrdersJobParams{
		Logger:    logg,
		Orders:    orderRepo,
		Marker:    ordersSvc,
		Incidents: incidentsSvc,
		Slack:     cfg.Dispatch.LateDeliverySlack,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create late orders job", err)
		os.Exit(1)
	}
	stuckOrders, err := cron.NewStuckOrdersJob(cron.StuckOrdersJobParams{
		Logger:      logg,
		Orders:      orderRepo,
		Incidents:   incidentsSvc,
		MinAttempts: cfg.Dispatch.MaxAssignAttempts,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stuck orders job", err)
		os.Exit(1)
	}
	weeklyPayout, err := cron.NewWeeklyPayoutJob(cron.WeeklyPayoutJobParams{
		Logger:  logg,
		Payouts: payoutsSvc,
		DB:      dbClient,
		Outbox:  outboxSvc,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create weekly payout job", err)
		os.Exit(1)
	}
	outboxRetention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Repository: outboxRepo,
		Retention:  cfg.Outbox.RetentionDays,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), cronLockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(lateOrders, stuckOrders, weeklyPayout, outboxRetention),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cronInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	go serveMetrics(ctx, logg, cfg.App.Port)

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func serveMetrics(ctx context.Context, logg *logger.Logger, port string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: ":" + port, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "metrics server stopped unexpectedly", err)
	}
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
