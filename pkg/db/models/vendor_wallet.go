package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// VendorWallet is the per-vendor balance snapshot derived from wallet_transactions.
type VendorWallet struct {
	ID               uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VendorID         uuid.UUID        `gorm:"column:vendor_id;type:uuid;not null;uniqueIndex"`
	AvailableBalance decimal.Decimal  `gorm:"column:available_balance;type:numeric(12,2);not null"`
	PendingBalance   decimal.Decimal  `gorm:"column:pending_balance;type:numeric(12,2);not null"`
	TotalEarned      decimal.Decimal  `gorm:"column:total_earned;type:numeric(12,2);not null"`
	TotalWithdrawn   decimal.Decimal  `gorm:"column:total_withdrawn;type:numeric(12,2);not null"`
	LastPayoutAt     *time.Time       `gorm:"column:last_payout_at"`
	LastPayoutAmount *decimal.Decimal `gorm:"column:last_payout_amount;type:numeric(12,2)"`
	LastSequence     int64            `gorm:"column:last_sequence;not null"`
	CreatedAt        time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (VendorWallet) TableName() string { return "vendor_wallets" }

// Balance is the total the ledger replay must reproduce.
func (w VendorWallet) Balance() decimal.Decimal {
	return w.AvailableBalance.Add(w.PendingBalance)
}
