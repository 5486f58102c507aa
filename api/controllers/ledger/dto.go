package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	internalledger "github.com/angelmondragon/packfinderz-payouts/internal/ledger"
	"github.com/angelmondragon/packfinderz-payouts/pkg/db/models"
	"github.com/angelmondragon/packfinderz-payouts/pkg/money"
)

type walletResponse struct {
	VendorID         uuid.UUID  `json:"vendorId"`
	AvailableBalance string     `json:"availableBalance"`
	PendingBalance   string     `json:"pendingBalance"`
	TotalEarned      string     `json:"totalEarned"`
	TotalWithdrawn   string     `json:"totalWithdrawn"`
	LastPayoutAt     *time.Time `json:"lastPayoutAt,omitempty"`
	LastPayoutAmount *string    `json:"lastPayoutAmount,omitempty"`
	LastSequence     int64      `json:"lastSequence"`
}

func newWalletResponse(w *models.VendorWallet) walletResponse {
	resp := walletResponse{
		VendorID:         w.VendorID,
		AvailableBalance: amount(w.AvailableBalance),
		PendingBalance:   amount(w.PendingBalance),
		TotalEarned:      amount(w.TotalEarned),
		TotalWithdrawn:   amount(w.TotalWithdrawn),
		LastPayoutAt:     w.LastPayoutAt,
		LastSequence:     w.LastSequence,
	}
	if w.LastPayoutAmount != nil {
		last := amount(*w.LastPayoutAmount)
		resp.LastPayoutAmount = &last
	}
	return resp
}

type transactionResponse struct {
	ID                uuid.UUID      `json:"id"`
	TransactionNumber string         `json:"transactionNumber"`
	Sequence          int64          `json:"sequence"`
	Type              string         `json:"type"`
	Category          string         `json:"category"`
	Amount            string         `json:"amount"`
	BalanceBefore     string         `json:"balanceBefore"`
	BalanceAfter      string         `json:"balanceAfter"`
	ReferenceKind     string         `json:"referenceKind"`
	ReferenceID       *uuid.UUID     `json:"referenceId,omitempty"`
	Description       string         `json:"description"`
	Metadata          map[string]any `json:"metadata,omitempty"`
	CreatedAt         time.Time      `json:"createdAt"`
}

func newTransactionResponse(t *models.WalletTransaction) transactionResponse {
	return transactionResponse{
		ID:                t.ID,
		TransactionNumber: t.TransactionNumber,
		Sequence:          t.Sequence,
		Type:              string(t.Type),
		Category:          string(t.Category),
		Amount:            amount(t.Amount),
		BalanceBefore:     amount(t.BalanceBefore),
		BalanceAfter:      amount(t.BalanceAfter),
		ReferenceKind:     string(t.ReferenceKind),
		ReferenceID:       t.ReferenceID,
		Description:       t.Description,
		Metadata:          t.Metadata,
		CreatedAt:         t.CreatedAt,
	}
}

type transactionPageResponse struct {
	Items  []transactionResponse `json:"items"`
	Cursor string                `json:"cursor,omitempty"`
}

type chainBreakResponse struct {
	Sequence      int64      `json:"sequence"`
	TransactionID *uuid.UUID `json:"transactionId,omitempty"`
	Reason        string     `json:"reason"`
}

type chainReportResponse struct {
	VendorID        uuid.UUID           `json:"vendorId"`
	WalletID        *uuid.UUID          `json:"walletId,omitempty"`
	Entries         int                 `json:"entries"`
	ReplayedBalance string              `json:"replayedBalance"`
	WalletBalance   string              `json:"walletBalance"`
	Valid           bool                `json:"valid"`
	Break           *chainBreakResponse `json:"break,omitempty"`
}

func newChainReportResponse(r *internalledger.ChainReport) chainReportResponse {
	resp := chainReportResponse{
		VendorID:        r.VendorID,
		WalletID:        r.WalletID,
		Entries:         r.Entries,
		ReplayedBalance: amount(r.ReplayedBalance),
		WalletBalance:   amount(r.WalletBalance),
		Valid:           r.Valid,
	}
	if r.Break != nil {
		resp.Break = &chainBreakResponse{
			Sequence:      r.Break.Sequence,
			TransactionID: r.Break.TransactionID,
			Reason:        r.Break.Reason,
		}
	}
	return resp
}

type postingResponse struct {
	Created     bool                `json:"created"`
	Transaction transactionResponse `json:"transaction"`
}

type adjustmentRequest struct {
	Type   string          `json:"type" validate:"required,oneof=credit debit"`
	Amount decimal.Decimal `json:"amount" validate:"gt=0"`
	Reason string          `json:"reason" validate:"required,max=500"`
}

type orderPaymentRequest struct {
	VendorID    uuid.UUID       `json:"vendorId" validate:"required"`
	OrderItemID uuid.UUID       `json:"orderItemId" validate:"required"`
	Amount      decimal.Decimal `json:"amount" validate:"gt=0"`
	Description string          `json:"description" validate:"max=500"`
}

type refundRequest struct {
	VendorID      uuid.UUID       `json:"vendorId" validate:"required"`
	ReturnOrderID uuid.UUID       `json:"returnOrderId" validate:"required"`
	Amount        decimal.Decimal `json:"amount" validate:"gt=0"`
	Reason        string          `json:"reason" validate:"max=500"`
}

func amount(d decimal.Decimal) string {
	return d.StringFixed(money.Places)
}
