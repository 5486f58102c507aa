package payouts

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packfinderz-payouts/pkg/db/models"
)

// CalculateInput describes a vendor period to price.
type CalculateInput struct {
	VendorID    uuid.UUID
	PeriodStart time.Time
	PeriodEnd   time.Time
	Adjustment  decimal.Decimal
}

// CreateInput claims the period. ExpectedOrderIDs, when set, must all still
// be eligible under the lock.
type CreateInput struct {
	CalculateInput
	AdjustmentReason *string
	ExpectedOrderIDs []uuid.UUID
	ActorID          *uuid.UUID
}

type ProcessInput struct {
	PayoutID uuid.UUID
	ActorID  *uuid.UUID
}

type CompleteInput struct {
	PayoutID         uuid.UUID
	PaymentMethod    string
	PaymentReference string
	GatewayResponse  map[string]any
	ActorID          *uuid.UUID
}

type FailInput struct {
	PayoutID        uuid.UUID
	Reason          string
	GatewayResponse map[string]any
	ActorID         *uuid.UUID
}

type CancelInput struct {
	PayoutID uuid.UUID
	Notes    string
	ActorID  *uuid.UUID
}

type ReleaseInput struct {
	PayoutID uuid.UUID
	ActorID  *uuid.UUID
}

// Page is one page of payouts, newest first.
type Page struct {
	Items  []models.VendorPayout
	Cursor string
}

// TDSCertificate is the tax deduction statement for a completed payout.
type TDSCertificate struct {
	PayoutID     uuid.UUID       `json:"payoutId"`
	PayoutNumber string          `json:"payoutNumber"`
	VendorID     uuid.UUID       `json:"vendorId"`
	VendorName   string          `json:"vendorName"`
	PAN          *string         `json:"pan,omitempty"`
	PeriodStart  time.Time       `json:"periodStart"`
	PeriodEnd    time.Time       `json:"periodEnd"`
	GrossAmount  decimal.Decimal `json:"grossAmount"`
	TDSRate      decimal.Decimal `json:"tdsRate"`
	TDSAmount    decimal.Decimal `json:"tdsAmount"`
	CompletedAt  time.Time       `json:"completedAt"`
}
