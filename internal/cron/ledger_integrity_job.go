package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-payouts/internal/ledger"
	"github.com/angelmondragon/packfinderz-payouts/pkg/enums"
	"github.com/angelmondragon/packfinderz-payouts/pkg/logger"
	"github.com/angelmondragon/packfinderz-payouts/pkg/outbox"
	"github.com/angelmondragon/packfinderz-payouts/pkg/outbox/payloads"
	"github.com/angelmondragon/packfinderz-payouts/pkg/pagination"
)

const walletPageSize = 100

type LedgerIntegrityJobParams struct {
	Logger   *logger.Logger
	DB       txRunner
	Ledger   chainVerifier
	Outbox   outboxEmitter
	PageSize int
}

type chainVerifier interface {
	ListWalletVendorIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error)
	VerifyChain(ctx context.Context, vendorID uuid.UUID) (*ledger.ChainReport, error)
}

// NewLedgerIntegrityJob replays every wallet's ledger and reports broken chains.
func NewLedgerIntegrityJob(params LedgerIntegrityJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	size := params.PageSize
	if size <= 0 || size > pagination.MaxLimit {
		size = walletPageSize
	}
	return &ledgerIntegrityJob{
		logg:   params.Logger,
		db:     params.DB,
		ledger: params.Ledger,
		outbox: params.Outbox,
		size:   size,
		now:    time.Now,
	}, nil
}

type ledgerIntegrityJob struct {
	logg   *logger.Logger
	db     txRunner
	ledger chainVerifier
	outbox outboxEmitter
	size   int
	now    func() time.Time
}

func (j *ledgerIntegrityJob) Name() string { return "ledger-integrity" }

func (j *ledgerIntegrityJob) Run(ctx context.Context) error {
	var (
		errs    error
		checked int
		broken  int
		after   = uuid.Nil
	)
	for {
		ids, err := j.ledger.ListWalletVendorIDs(ctx, after, j.size)
		if err != nil {
			return multierr.Append(errs, fmt.Errorf("list wallets: %w", err))
		}
		for _, vendorID := range ids {
			checked++
			report, err := j.ledger.VerifyChain(ctx, vendorID)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("vendor %s: %w", vendorID, err))
				continue
			}
			if report.Valid {
				continue
			}
			broken++
			if err := j.reportBreak(ctx, report); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("vendor %s: %w", vendorID, err))
			}
		}
		if len(ids) < j.size {
			break
		}
		after = ids[len(ids)-1]
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"wallets_checked": checked,
		"chains_broken":   broken,
	})
	j.logg.Info(logCtx, "ledger integrity check complete")
	return errs
}

func (j *ledgerIntegrityJob) reportBreak(ctx context.Context, report *ledger.ChainReport) error {
	aggregateID := report.VendorID
	if report.WalletID != nil {
		aggregateID = *report.WalletID
	}
	data := payloads.LedgerChainBrokenEvent{
		VendorID: report.VendorID,
		WalletID: aggregateID,
	}
	if report.Break != nil {
		data.Sequence = report.Break.Sequence
		data.TransactionID = report.Break.TransactionID
		data.Reason = report.Break.Reason
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"vendor_id": report.VendorID.String(),
		"sequence":  data.Sequence,
		"reason":    data.Reason,
	})
	j.logg.Warn(logCtx, "ledger chain broken")

	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		return j.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventLedgerChainBroken,
			AggregateType: enums.AggregateVendorWallet,
			AggregateID:   aggregateID,
			Actor:         cronActor(),
			Data:          data,
			OccurredAt:    j.now().UTC(),
		})
	})
}
