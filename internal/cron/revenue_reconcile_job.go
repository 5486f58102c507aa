package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-payouts/internal/revenue"
	"github.com/angelmondragon/packfinderz-payouts/pkg/enums"
	"github.com/angelmondragon/packfinderz-payouts/pkg/logger"
	"github.com/angelmondragon/packfinderz-payouts/pkg/outbox"
	"github.com/angelmondragon/packfinderz-payouts/pkg/outbox/payloads"
)

const (
	defaultReconcileLookbackDays = 30
	reconcileBatchSize           = 500
)

type RevenueReconcileJobParams struct {
	Logger       *logger.Logger
	DB           txRunner
	Reconciler   revenueReconciler
	Outbox       outboxEmitter
	LookbackDays int
	BatchSize    int
}

type revenueReconciler interface {
	ReconcileCompleted(ctx context.Context, since time.Time, limit int) (*revenue.Report, error)
}

func NewRevenueReconcileJob(params RevenueReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("revenue reconciler required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	lookback := params.LookbackDays
	if lookback <= 0 {
		lookback = defaultReconcileLookbackDays
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = reconcileBatchSize
	}
	return &revenueReconcileJob{
		logg:       params.Logger,
		db:         params.DB,
		reconciler: params.Reconciler,
		outbox:     params.Outbox,
		lookback:   lookback,
		batch:      batch,
		now:        time.Now,
	}, nil
}

type revenueReconcileJob struct {
	logg       *logger.Logger
	db         txRunner
	reconciler revenueReconciler
	outbox     outboxEmitter
	lookback   int
	batch      int
	now        func() time.Time
}

func (j *revenueReconcileJob) Name() string { return "revenue-reconcile" }

func (j *revenueReconcileJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	since := now.AddDate(0, 0, -j.lookback)
	report, err := j.reconciler.ReconcileCompleted(ctx, since, j.batch)
	if err != nil {
		return fmt.Errorf("reconcile revenue: %w", err)
	}

	var errs error
	for _, mismatch := range report.Mismatches {
		event := outbox.DomainEvent{
			EventType:     enums.EventRevenueReconciliationMismatch,
			AggregateType: enums.AggregateVendorPayout,
			AggregateID:   mismatch.PayoutID,
			Actor:         cronActor(),
			Data: payloads.RevenueReconciliationMismatchEvent{
				PayoutID:   mismatch.PayoutID,
				VendorID:   mismatch.VendorID,
				Expected:   mismatch.Expected,
				Actual:     mismatch.Actual,
				EntryCount: mismatch.EntryCount,
			},
			OccurredAt: now,
		}
		if err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
			return j.outbox.EmitIfNotExists(ctx, tx, event)
		}); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("payout %s: %w", mismatch.PayoutID, err))
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"since":      since,
		"checked":    report.Checked,
		"mismatches": len(report.Mismatches),
	})
	j.logg.Info(logCtx, "revenue reconciliation complete")
	return errs
}
