package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-payouts/pkg/db/models"
	"github.com/angelmondragon/packfinderz-payouts/pkg/enums"
	"github.com/angelmondragon/packfinderz-payouts/pkg/logger"
	"github.com/angelmondragon/packfinderz-payouts/pkg/metrics"
	"github.com/angelmondragon/packfinderz-payouts/pkg/outbox"
	"github.com/angelmondragon/packfinderz-payouts/pkg/outbox/payloads"
	"github.com/angelmondragon/packfinderz-payouts/pkg/pagination"
)

const (
	defaultProcessingSLA = 72 * time.Hour
	staleBatchSize       = 100
)

// PayoutSLAJobParams configures the stale processing sweep.
type PayoutSLAJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Payouts   stalePayoutLister
	Outbox    outboxEmitter
	Metrics   *metrics.PayoutMetrics
	SLA       time.Duration
	BatchSize int
}

type stalePayoutLister interface {
	ListStaleProcessing(ctx context.Context, cutoff time.Time, after *pagination.Cursor, limit int) ([]models.VendorPayout, error)
	CountStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error)
}

// NewPayoutSLAJob flags payouts that have sat in processing longer than the SLA.
// It never changes payout state.
func NewPayoutSLAJob(params PayoutSLAJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Payouts == nil {
		return nil, fmt.Errorf("payout lister required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	sla := params.SLA
	if sla <= 0 {
		sla = defaultProcessingSLA
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = staleBatchSize
	}
	return &payoutSLAJob{
		logg:    params.Logger,
		db:      params.DB,
		payouts: params.Payouts,
		outbox:  params.Outbox,
		metrics: params.Metrics,
		sla:     sla,
		batch:   batch,
		now:     time.Now,
	}, nil
}

type payoutSLAJob struct {
	logg    *logger.Logger
	db      txRunner
	payouts stalePayoutLister
	outbox  outboxEmitter
	metrics *metrics.PayoutMetrics
	sla     time.Duration
	batch   int
	now     func() time.Time
}

func (j *payoutSLAJob) Name() string { return "payout-processing-sla" }

func (j *payoutSLAJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	cutoff := now.Add(-j.sla)
	total, err := j.payouts.CountStaleProcessing(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("count stale payouts: %w", err)
	}
	j.metrics.SetStaleProcessing(int(total))

	var (
		errs    error
		flagged int
		cursor  *pagination.Cursor
	)
	for {
		stale, err := j.payouts.ListStaleProcessing(ctx, cutoff, cursor, j.batch)
		if err != nil {
			return multierr.Append(errs, fmt.Errorf("list stale payouts: %w", err))
		}
		for i := range stale {
			if stale[i].ProcessedAt == nil {
				continue
			}
			flagged++
			if err := j.flag(ctx, &stale[i], now); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("payout %s: %w", stale[i].ID, err))
			}
		}
		if len(stale) < j.batch {
			break
		}
		last := stale[len(stale)-1]
		cursor = &pagination.Cursor{ID: last.ID}
		if last.ProcessedAt != nil {
			cursor.CreatedAt = *last.ProcessedAt
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":      cutoff,
		"stale_count": total,
		"flagged":     flagged,
	})
	j.logg.Info(logCtx, "processing sla sweep complete")
	return errs
}

func (j *payoutSLAJob) flag(ctx context.Context, payout *models.VendorPayout, now time.Time) error {
	age := now.Sub(*payout.ProcessedAt)
	logCtx := j.logg.WithPayout(ctx, payout.ID.String(), payout.VendorID.String())
	logCtx = j.logg.WithField(logCtx, "age_seconds", int64(age.Seconds()))
	j.logg.Warn(logCtx, "payout exceeded processing sla")

	event := outbox.DomainEvent{
		EventType:     enums.EventVendorPayoutProcessingStale,
		AggregateType: enums.AggregateVendorPayout,
		AggregateID:   payout.ID,
		Actor:         cronActor(),
		Data: payloads.PayoutProcessingStaleEvent{
			PayoutID:     payout.ID,
			PayoutNumber: payout.PayoutNumber,
			VendorID:     payout.VendorID,
			ProcessedAt:  payout.ProcessedAt.UTC(),
			AgeSeconds:   int64(age.Seconds()),
		},
		OccurredAt: now,
	}
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		return j.outbox.EmitIfNotExists(ctx, tx, event)
	})
}
