package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packfinderz-payouts/pkg/enums"
)

// The models below are owned by the order, returns and vendor services. This
// service only reads them.

// OrderItem is one vendor line of a customer order.
type OrderItem struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID       uuid.UUID           `gorm:"column:order_id;type:uuid;not null"`
	VendorID      uuid.UUID           `gorm:"column:vendor_id;type:uuid;not null"`
	Status        string              `gorm:"column:status;not null"`
	DeliveredAt   *time.Time          `gorm:"column:delivered_at"`
	PaymentStatus enums.PaymentStatus `gorm:"column:payment_status;not null"`
	TotalAmount   decimal.Decimal     `gorm:"column:total_amount;type:numeric(12,2);not null"`
	CreatedAt     time.Time           `gorm:"column:created_at"`
}

func (OrderItem) TableName() string { return "order_items" }

// ReturnOrder is a customer or carrier return against an order item.
type ReturnOrder struct {
	ID               uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	OrderItemID      uuid.UUID          `gorm:"column:order_item_id;type:uuid;not null"`
	VendorID         uuid.UUID          `gorm:"column:vendor_id;type:uuid;not null"`
	IsCustomerReturn bool               `gorm:"column:is_customer_return;not null"`
	Status           enums.ReturnStatus `gorm:"column:status;not null"`
	FinalizedAt      *time.Time         `gorm:"column:finalized_at"`
	CreatedAt        time.Time          `gorm:"column:created_at"`
}

func (ReturnOrder) TableName() string { return "return_orders" }

// Vendor carries the metadata payouts need from the vendor profile.
type Vendor struct {
	ID                     uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Name                   string           `gorm:"column:name;not null"`
	Tier                   string           `gorm:"column:tier"`
	CommissionRateOverride *decimal.Decimal `gorm:"column:commission_rate_override;type:numeric(5,2)"`
	PANNumber              *string          `gorm:"column:pan_number"`
	PANVerified            bool             `gorm:"column:pan_verified;not null"`
	BankAccountHolder      string           `gorm:"column:bank_account_holder"`
	BankAccountNumber      string           `gorm:"column:bank_account_number"`
	BankIFSC               string           `gorm:"column:bank_ifsc"`
	BankName               string           `gorm:"column:bank_name"`
	CreatedAt              time.Time        `gorm:"column:created_at"`
	UpdatedAt              time.Time        `gorm:"column:updated_at"`
}

func (Vendor) TableName() string { return "vendors" }

// HasValidPAN reports whether a verified PAN is on file.
func (v Vendor) HasValidPAN() bool {
	return v.PANVerified && v.PANNumber != nil && *v.PANNumber != ""
}
