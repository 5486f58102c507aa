package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packfinderz-payouts/pkg/enums"
	"github.com/angelmondragon/packfinderz-payouts/pkg/types"
)

var errSequenceMoved = errors.New("wallet sequence moved")

// Reference points an entry at the row that caused it.
type Reference struct {
	Kind enums.LedgerReferenceKind
	ID   *uuid.UUID
}

// Ref builds a reference to a concrete row.
func Ref(kind enums.LedgerReferenceKind, id uuid.UUID) Reference {
	return Reference{Kind: kind, ID: &id}
}

// Entry is one balance change requested by a caller.
type Entry struct {
	VendorID    uuid.UUID
	Type        enums.WalletTransactionType
	Category    enums.WalletTransactionCategory
	Amount      decimal.Decimal
	Reference   Reference
	Description string
	Metadata    types.JSONMap
}

// TransactionFilter narrows ListTransactions.
type TransactionFilter struct {
	Type     *enums.WalletTransactionType
	Category *enums.WalletTransactionCategory
	From     *time.Time
	To       *time.Time
}

// ChainBreak describes the first entry that fails replay.
type ChainBreak struct {
	Sequence      int64      `json:"sequence"`
	TransactionID *uuid.UUID `json:"transactionId,omitempty"`
	Reason        string     `json:"reason"`
}

// ChainReport is the result of replaying a vendor's ledger.
type ChainReport struct {
	VendorID        uuid.UUID       `json:"vendorId"`
	WalletID        *uuid.UUID      `json:"walletId,omitempty"`
	Entries         int             `json:"entries"`
	ReplayedBalance decimal.Decimal `json:"replayedBalance"`
	WalletBalance   decimal.Decimal `json:"walletBalance"`
	Valid           bool            `json:"valid"`
	Break           *ChainBreak     `json:"break,omitempty"`
}
