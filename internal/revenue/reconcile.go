package revenue

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-payouts/pkg/db/models"
	"github.com/angelmondragon/packfinderz-payouts/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-payouts/pkg/errors"
	"github.com/angelmondragon/packfinderz-payouts/pkg/money"
	"github.com/angelmondragon/packfinderz-payouts/pkg/pagination"
)

// Mismatch describes a payout whose commission revenue disagrees with the payout.
type Mismatch struct {
	PayoutID   uuid.UUID       `json:"payoutId"`
	VendorID   uuid.UUID       `json:"vendorId"`
	Expected   decimal.Decimal `json:"expected"`
	Actual     decimal.Decimal `json:"actual"`
	EntryCount int64           `json:"entryCount"`
}

// Report is the outcome of one reconciliation batch.
type Report struct {
	Since      time.Time  `json:"since"`
	Checked    int        `json:"checked"`
	Mismatches []Mismatch `json:"mismatches"`
}

func (s *Service) check(ctx context.Context, repo Repository, payout *models.VendorPayout) (*Mismatch, error) {
	rows, err := repo.ListForPayout(ctx, payout.ID, enums.RevenueSourceCommission)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout revenue")
	}
	amounts := make([]decimal.Decimal, 0, len(rows))
	for _, row := range rows {
		if row.Status == enums.RevenueStatusConfirmed {
			amounts = append(amounts, row.NetRevenue)
		}
	}
	actual := money.Sum(amounts...)
	expected := money.Round(payout.TotalCommissionWithGST)
	if len(amounts) == 1 && actual.Equal(expected) {
		return nil, nil
	}
	return &Mismatch{
		PayoutID:   payout.ID,
		VendorID:   payout.VendorID,
		Expected:   expected,
		Actual:     actual,
		EntryCount: int64(len(amounts)),
	}, nil
}

// VerifyPayout requires exactly one confirmed commission entry matching the
// payout's commission including GST.
func (s *Service) VerifyPayout(ctx context.Context, tx *gorm.DB, payout *models.VendorPayout) error {
	if payout == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "payout required")
	}
	mismatch, err := s.check(ctx, s.repo.WithTx(tx), payout)
	if err != nil {
		return err
	}
	if mismatch == nil {
		return nil
	}
	s.metrics.IncReconciliationMismatch()
	return mismatchError(mismatch)
}

func mismatchError(m *Mismatch) error {
	return pkgerrors.New(pkgerrors.CodeReconciliationMismatch, "platform revenue does not match payout commission").
		WithDetails(map[string]any{
			"payout_id":   m.PayoutID.String(),
			"expected":    m.Expected.StringFixed(money.Places),
			"actual":      m.Actual.StringFixed(money.Places),
			"entry_count": m.EntryCount,
		})
}

// ReconcileCompleted checks every payout completed since the given time,
// reading them batchSize at a time.
func (s *Service) ReconcileCompleted(ctx context.Context, since time.Time, batchSize int) (*Report, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	report := &Report{Since: since.UTC(), Mismatches: []Mismatch{}}
	var cursor *pagination.Cursor
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		payouts, err := s.repo.ListCompletedPayouts(ctx, since, cursor, batchSize)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list completed payouts")
		}
		if err := s.reconcileBatch(ctx, report, payouts); err != nil {
			return nil, err
		}
		if len(payouts) < batchSize {
			return report, nil
		}
		last := payouts[len(payouts)-1]
		cursor = &pagination.Cursor{ID: last.ID}
		if last.CompletedAt != nil {
			cursor.CreatedAt = *last.CompletedAt
		}
	}
}

func (s *Service) reconcileBatch(ctx context.Context, report *Report, payouts []models.VendorPayout) error {
	for i := range payouts {
		mismatch, err := s.check(ctx, s.repo, &payouts[i])
		if err != nil {
			return err
		}
		report.Checked++
		if mismatch == nil {
			continue
		}
		s.metrics.IncReconciliationMismatch()
		report.Mismatches = append(report.Mismatches, *mismatch)
		logCtx := s.logg.WithPayout(ctx, mismatch.PayoutID.String(), mismatch.VendorID.String())
		s.logg.Warn(s.logg.WithFields(logCtx, map[string]any{
			"expected":    mismatch.Expected.StringFixed(money.Places),
			"actual":      mismatch.Actual.StringFixed(money.Places),
			"entry_count": mismatch.EntryCount,
		}), "revenue reconciliation mismatch")
	}
	return nil
}
