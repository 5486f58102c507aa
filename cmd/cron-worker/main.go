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

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/packfinderz-payouts/internal/cron"
	"github.com/angelmondragon/packfinderz-payouts/internal/ledger"
	"github.com/angelmondragon/packfinderz-payouts/internal/payouts"
	"github.com/angelmondragon/packfinderz-payouts/internal/revenue"
	"github.com/angelmondragon/packfinderz-payouts/pkg/config"
	"github.com/angelmondragon/packfinderz-payouts/pkg/db"
	"github.com/angelmondragon/packfinderz-payouts/pkg/logger"
	"github.com/angelmondragon/packfinderz-payouts/pkg/metrics"
	"github.com/angelmondragon/packfinderz-payouts/pkg/migrate"
	"github.com/angelmondragon/packfinderz-payouts/pkg/outbox"
	"github.com/angelmondragon/packfinderz-payouts/pkg/redis"
)

const (
	serviceKind     = "cron-worker"
	lockNameFormat  = "cron-worker:%s"
	shutdownTimeout = 10 * time.Second
)

func main() {
	boot := logger.New(logger.Options{ServiceName: serviceKind})
	if err := godotenv.Load(); err != nil {
		boot.Warn(context.Background(), ".env file not found, relying on environment")
	}
	cfg, err := config.Load()
	if err != nil {
		boot.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceKind

	logg := logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "serviceKind": serviceKind})

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shut down")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer closeWith(ctx, logg, "database", dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer closeWith(ctx, logg, "redis", redisClient.Close)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	cronMetrics := metrics.NewCronJobMetrics(reg)
	payoutMetrics := metrics.NewPayoutMetrics(reg)

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockName(cfg.App.Env)), cfg.Cron.LockTTL)
	if err != nil {
		return fmt.Errorf("cron lock: %w", err)
	}
	registry, err := buildRegistry(cfg, logg, dbClient, payoutMetrics)
	if err != nil {
		return fmt.Errorf("register cron jobs: %w", err)
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   registry,
		Lock:       lock,
		Metrics:    cronMetrics,
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
	if err != nil {
		return fmt.Errorf("cron service: %w", err)
	}

	server := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           opsRouter(reg, dbClient, redisClient),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "cron metrics listener failed", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logg.Info(logg.WithField(ctx, "addr", server.Addr), "starting cron worker")
	return service.Run(ctx)
}

type pinger interface {
	Ping(context.Context) error
}

// opsRouter serves metrics and probes for the worker. Readiness fails while
// either store is unreachable.
func opsRouter(gatherer prometheus.Gatherer, deps ...pinger) http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		for _, dep := range deps {
			if err := dep.Ping(r.Context()); err != nil {
				http.Error(w, "not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func closeWith(ctx context.Context, logg *logger.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(logg.WithField(ctx, "resource", name), "close failed", err)
	}
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, payoutMetrics *metrics.PayoutMetrics) (*cron.Registry, error) {
	outboxRepo := outbox.NewRepository(dbClient.DB())
	emitter := outbox.NewService(outboxRepo, logg)

	ledgerSvc, err := ledger.NewService(ledger.ServiceParams{
		Repo:    ledger.NewRepository(dbClient.DB()),
		DB:      dbClient,
		Logger:  logg,
		Metrics: payoutMetrics,
	})
	if err != nil {
		return nil, fmt.Errorf("ledger service: %w", err)
	}
	revenueSvc, err := revenue.NewService(revenue.ServiceParams{
		DB:      dbClient,
		Repo:    revenue.NewRepository(dbClient.DB()),
		Metrics: payoutMetrics,
		Logger:  logg,
	})
	if err != nil {
		return nil, fmt.Errorf("revenue service: %w", err)
	}

	slaJob, err := cron.NewPayoutSLAJob(cron.PayoutSLAJobParams{
		Logger:  logg,
		DB:      dbClient,
		Payouts: payouts.NewRepository(dbClient.DB()),
		Outbox:  emitter,
		Metrics: payoutMetrics,
		SLA:     cfg.Payout.ProcessingSLA,
	})
	if err != nil {
		return nil, fmt.Errorf("payout sla job: %w", err)
	}
	reconcileJob, err := cron.NewRevenueReconcileJob(cron.RevenueReconcileJobParams{
		Logger:       logg,
		DB:           dbClient,
		Reconciler:   revenueSvc,
		Outbox:       emitter,
		LookbackDays: cfg.Payout.ReconcileLookbackDays,
	})
	if err != nil {
		return nil, fmt.Errorf("revenue reconcile job: %w", err)
	}
	integrityJob, err := cron.NewLedgerIntegrityJob(cron.LedgerIntegrityJobParams{
		Logger: logg,
		DB:     dbClient,
		Ledger: ledgerSvc,
		Outbox: emitter,
	})
	if err != nil {
		return nil, fmt.Errorf("ledger integrity job: %w", err)
	}
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:        logg,
		DB:            dbClient,
		Outbox:        outboxRepo,
		DLQ:           outbox.NewDLQRepository(dbClient.DB()),
		RetentionDays: cfg.Outbox.RetentionDays,
		DLQDays:       cfg.Outbox.DLQRetention,
	})
	if err != nil {
		return nil, fmt.Errorf("outbox retention job: %w", err)
	}

	registry := cron.NewRegistry()
	registry.Register(slaJob, 0)
	registry.Register(reconcileJob, cfg.Cron.ReconcileEvery)
	registry.Register(integrityJob, cfg.Cron.IntegrityEvery)
	registry.Register(retentionJob, cfg.Cron.RetentionEvery)
	return registry, nil
}

func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockNameFormat, env)
}
