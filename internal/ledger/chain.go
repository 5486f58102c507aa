package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packfinderz-payouts/pkg/db/models"
	pkgerrors "github.com/angelmondragon/packfinderz-payouts/pkg/errors"
	"github.com/angelmondragon/packfinderz-payouts/pkg/money"
)

// VerifyChain replays every entry of vendorID in sequence order and reports the
// first break. A valid chain also reproduces available + pending.
func (s *Service) VerifyChain(ctx context.Context, vendorID uuid.UUID) (*ChainReport, error) {
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id is required")
	}
	wallet, err := s.repo.FindWallet(ctx, vendorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}
	rows, err := s.repo.ListChain(ctx, vendorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ledger chain")
	}

	report := replay(vendorID, wallet, rows)
	if !report.Valid {
		s.metrics.IncChainBreak()
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"vendor_id": vendorID.String(),
			"sequence":  report.Break.Sequence,
			"reason":    report.Break.Reason,
		}), "ledger chain broken")
	}
	return report, nil
}

func replay(vendorID uuid.UUID, wallet *models.VendorWallet, rows []models.WalletTransaction) *ChainReport {
	report := &ChainReport{
		VendorID:        vendorID,
		Entries:         len(rows),
		ReplayedBalance: decimal.Zero,
		WalletBalance:   decimal.Zero,
		Valid:           true,
	}
	if wallet != nil {
		id := wallet.ID
		report.WalletID = &id
		report.WalletBalance = money.Round(wallet.Balance())
	}

	fail := func(txn *models.WalletTransaction, seq int64, reason string) *ChainReport {
		report.Valid = false
		report.Break = &ChainBreak{Sequence: seq, Reason: reason}
		if txn != nil {
			id := txn.ID
			report.Break.TransactionID = &id
		}
		return report
	}

	running := decimal.Zero
	for i := range rows {
		txn := &rows[i]
		expectedSeq := int64(i + 1)
		if txn.Sequence != expectedSeq {
			return fail(txn, txn.Sequence, fmt.Sprintf("expected sequence %d", expectedSeq))
		}
		before := money.Round(txn.BalanceBefore)
		after := money.Round(txn.BalanceAfter)
		if !before.Equal(running) {
			return fail(txn, txn.Sequence, fmt.Sprintf("balance_before %s does not match previous balance_after %s",
				before.StringFixed(money.Places), running.StringFixed(money.Places)))
		}
		if want := money.Round(before.Add(txn.Signed())); !after.Equal(want) {
			return fail(txn, txn.Sequence, fmt.Sprintf("balance_after %s does not equal %s",
				after.StringFixed(money.Places), want.StringFixed(money.Places)))
		}
		running = after
	}
	report.ReplayedBalance = running

	if wallet == nil {
		if len(rows) > 0 {
			return fail(nil, 0, "ledger entries exist without a wallet")
		}
		return report
	}
	if wallet.LastSequence != int64(len(rows)) {
		return fail(nil, wallet.LastSequence, fmt.Sprintf("wallet last_sequence %d but %d entries", wallet.LastSequence, len(rows)))
	}
	if !running.Equal(report.WalletBalance) {
		return fail(nil, wallet.LastSequence, fmt.Sprintf("replayed balance %s does not match wallet balance %s",
			running.StringFixed(money.Places), report.WalletBalance.StringFixed(money.Places)))
	}
	return report
}
