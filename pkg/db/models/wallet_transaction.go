package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packfinderz-payouts/pkg/enums"
	"github.com/angelmondragon/packfinderz-payouts/pkg/types"
)

// WalletTransaction is an immutable ledger row. Rows are only ever inserted.
type WalletTransaction struct {
	ID                uuid.UUID                       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TransactionNumber string                          `gorm:"column:transaction_number;not null;uniqueIndex"`
	VendorID          uuid.UUID                       `gorm:"column:vendor_id;type:uuid;not null;index"`
	WalletID          uuid.UUID                       `gorm:"column:wallet_id;type:uuid;not null"`
	Sequence          int64                           `gorm:"column:sequence;not null"`
	Type              enums.WalletTransactionType     `gorm:"column:type;type:wallet_transaction_type;not null"`
	Category          enums.WalletTransactionCategory `gorm:"column:category;type:wallet_transaction_category;not null"`
	Amount            decimal.Decimal                 `gorm:"column:amount;type:numeric(12,2);not null"`
	BalanceBefore     decimal.Decimal                 `gorm:"column:balance_before;type:numeric(12,2);not null"`
	BalanceAfter      decimal.Decimal                 `gorm:"column:balance_after;type:numeric(12,2);not null"`
	ReferenceKind     enums.LedgerReferenceKind       `gorm:"column:reference_kind;type:ledger_reference_kind;not null"`
	ReferenceID       *uuid.UUID                      `gorm:"column:reference_id;type:uuid"`
	Description       string                          `gorm:"column:description;not null"`
	Metadata          types.JSONMap                   `gorm:"column:metadata;type:jsonb;not null"`
	CreatedAt         time.Time                       `gorm:"column:created_at;not null"`
}

func (WalletTransaction) TableName() string { return "wallet_transactions" }

// Signed returns the amount with the sign of its effect on the balance.
func (t WalletTransaction) Signed() decimal.Decimal {
	if t.Type == enums.WalletDebit {
		return t.Amount.Neg()
	}
	return t.Amount
}
