package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/packfinderz-payouts/api/routes"
	"github.com/angelmondragon/packfinderz-payouts/internal/calendar"
	"github.com/angelmondragon/packfinderz-payouts/internal/eligibility"
	"github.com/angelmondragon/packfinderz-payouts/internal/gateway"
	"github.com/angelmondragon/packfinderz-payouts/internal/ledger"
	"github.com/angelmondragon/packfinderz-payouts/internal/payouts"
	"github.com/angelmondragon/packfinderz-payouts/internal/revenue"
	"github.com/angelmondragon/packfinderz-payouts/internal/vendors"
	"github.com/angelmondragon/packfinderz-payouts/pkg/config"
	"github.com/angelmondragon/packfinderz-payouts/pkg/db"
	"github.com/angelmondragon/packfinderz-payouts/pkg/logger"
	"github.com/angelmondragon/packfinderz-payouts/pkg/metrics"
	"github.com/angelmondragon/packfinderz-payouts/pkg/migrate"
	"github.com/angelmondragon/packfinderz-payouts/pkg/outbox"
	"github.com/angelmondragon/packfinderz-payouts/pkg/outbox/idempotency"
	"github.com/angelmondragon/packfinderz-payouts/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

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
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
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

	svc, err := buildServices(cfg, logg, dbClient, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to build services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Params{
			Config:    cfg,
			Logger:    logg,
			DB:        dbClient,
			Cache:     redisClient,
			Gatherer:  prometheus.DefaultGatherer,
			Payouts:   svc.payouts,
			Ledger:    svc.ledger,
			Revenue:   svc.revenue,
			Holidays:  svc.calendar,
			Callbacks: svc.payouts,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
		logg.Info(ctx, "api server stopped")
	}
}

type services struct {
	payouts  *payouts.Service
	ledger   *ledger.Service
	revenue  *revenue.Service
	calendar *calendar.Service
}

func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (*services, error) {
	gormDB := dbClient.DB()
	payoutMetrics := metrics.NewPayoutMetrics(prometheus.DefaultRegisterer)
	emitter := outbox.NewService(outbox.NewRepository(gormDB), logg)

	ledgerSvc, err := ledger.NewService(ledger.ServiceParams{
		Repo:    ledger.NewRepository(gormDB),
		DB:      dbClient,
		Logger:  logg,
		Metrics: payoutMetrics,
	})
	if err != nil {
		return nil, fmt.Errorf("ledger service: %w", err)
	}
	revenueSvc, err := revenue.NewService(revenue.ServiceParams{
		DB:      dbClient,
		Repo:    revenue.NewRepository(gormDB),
		Metrics: payoutMetrics,
		Logger:  logg,
	})
	if err != nil {
		return nil, fmt.Errorf("revenue service: %w", err)
	}
	calendarSvc, err := calendar.NewService(calendar.NewRepository(gormDB))
	if err != nil {
		return nil, fmt.Errorf("calendar service: %w", err)
	}
	scheduler, err := payouts.NewScheduler(calendarSvc, cfg.Payout)
	if err != nil {
		return nil, fmt.Errorf("payout scheduler: %w", err)
	}
	resolver, err := eligibility.NewResolver(gormDB)
	if err != nil {
		return nil, fmt.Errorf("eligibility resolver: %w", err)
	}
	transfers, err := gateway.NewOutboxInitiator(emitter, cfg.Gateway.Name)
	if err != nil {
		return nil, fmt.Errorf("transfer initiator: %w", err)
	}
	callbacks, err := idempotency.NewMarkers(redisClient, cfg.Eventing.GatewayCallbackTTL)
	if err != nil {
		return nil, fmt.Errorf("callback idempotency: %w", err)
	}

	payoutSvc, err := payouts.NewService(payouts.ServiceParams{
		DB:          dbClient,
		Repo:        payouts.NewRepository(gormDB),
		Vendors:     vendors.NewRepository(gormDB),
		Eligibility: resolver,
		Rates:       payouts.NewRatePolicy(cfg.Payout),
		Scheduler:   scheduler,
		Ledger:      ledgerSvc,
		Revenue:     revenueSvc,
		Transfers:   transfers,
		GatewayName: cfg.Gateway.Name,
		Outbox:      emitter,
		Callbacks:   callbacks,
		Metrics:     payoutMetrics,
		Logger:      logg,
	})
	if err != nil {
		return nil, fmt.Errorf("payout service: %w", err)
	}

	return &services{
		payouts:  payoutSvc,
		ledger:   ledgerSvc,
		revenue:  revenueSvc,
		calendar: calendarSvc,
	}, nil
}
