package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packfinderz-payouts/pkg/enums"
)

// VendorPayoutCreatedEvent announces a newly claimed payout period.
type VendorPayoutCreatedEvent struct {
	PayoutID            uuid.UUID       `json:"payout_id"`
	PayoutNumber        string          `json:"payout_number"`
	VendorID            uuid.UUID       `json:"vendor_id"`
	PeriodStart         time.Time       `json:"period_start"`
	PeriodEnd           time.Time       `json:"period_end"`
	TotalOrders         int             `json:"total_orders"`
	TotalSales          decimal.Decimal `json:"total_sales"`
	NetAmount           decimal.Decimal `json:"net_amount"`
	ScheduledPayoutDate time.Time       `json:"scheduled_payout_date"`
}

// VendorPayoutStatusEvent is shared by every lifecycle transition after creation.
type VendorPayoutStatusEvent struct {
	PayoutID         uuid.UUID          `json:"payout_id"`
	PayoutNumber     string             `json:"payout_number"`
	VendorID         uuid.UUID          `json:"vendor_id"`
	PreviousStatus   enums.PayoutStatus `json:"previous_status"`
	Status           enums.PayoutStatus `json:"status"`
	NetAmount        decimal.Decimal    `json:"net_amount"`
	PaymentReference *string            `json:"payment_reference,omitempty"`
	Reason           *string            `json:"reason,omitempty"`
	ActorID          *uuid.UUID         `json:"actor_id,omitempty"`
	OccurredAt       time.Time          `json:"occurred_at"`
}

// BankDestination is the frozen bank snapshot the transfer is sent to.
type BankDestination struct {
	HolderName    string `json:"holder_name"`
	AccountNumber string `json:"account_number"`
	IFSC          string `json:"ifsc"`
	BankName      string `json:"bank_name"`
}

// TransferRequestedEvent asks the payment gateway to move net_amount to the vendor.
type TransferRequestedEvent struct {
	PayoutID     uuid.UUID       `json:"payout_id"`
	PayoutNumber string          `json:"payout_number"`
	VendorID     uuid.UUID       `json:"vendor_id"`
	Amount       decimal.Decimal `json:"amount"`
	Gateway      string          `json:"gateway"`
	Destination  BankDestination `json:"destination"`
	RequestedAt  time.Time       `json:"requested_at"`
}

// PayoutProcessingStaleEvent flags a payout stuck in processing past the SLA.
type PayoutProcessingStaleEvent struct {
	PayoutID     uuid.UUID `json:"payout_id"`
	PayoutNumber string    `json:"payout_number"`
	VendorID     uuid.UUID `json:"vendor_id"`
	ProcessedAt  time.Time `json:"processed_at"`
	AgeSeconds   int64     `json:"age_seconds"`
}

// RevenueReconciliationMismatchEvent reports a payout whose platform revenue disagrees with its commission.
type RevenueReconciliationMismatchEvent struct {
	PayoutID   uuid.UUID       `json:"payout_id"`
	VendorID   uuid.UUID       `json:"vendor_id"`
	Expected   decimal.Decimal `json:"expected"`
	Actual     decimal.Decimal `json:"actual"`
	EntryCount int64           `json:"entry_count"`
}

// LedgerChainBrokenEvent reports the first inconsistent ledger row for a vendor.
type LedgerChainBrokenEvent struct {
	VendorID      uuid.UUID  `json:"vendor_id"`
	WalletID      uuid.UUID  `json:"wallet_id"`
	Sequence      int64      `json:"sequence"`
	TransactionID *uuid.UUID `json:"transaction_id,omitempty"`
	Reason        string     `json:"reason"`
}
