package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbtypes "github.com/angelmondragon/packfinderz-payouts/pkg/db/types"
	"github.com/angelmondragon/packfinderz-payouts/pkg/enums"
	jsontypes "github.com/angelmondragon/packfinderz-payouts/pkg/types"
)

// RateSnapshot freezes the pricing rules a payout was calculated with.
type RateSnapshot struct {
	CommissionRate    decimal.Decimal `gorm:"column:commission_rate;type:numeric(5,2);not null" json:"commissionRate"`
	CommissionGSTRate decimal.Decimal `gorm:"column:commission_gst_rate;type:numeric(5,2);not null" json:"commissionGstRate"`
	TDSRate           decimal.Decimal `gorm:"column:tds_rate;type:numeric(5,2);not null" json:"tdsRate"`
	ReturnFee         decimal.Decimal `gorm:"column:return_fee;type:numeric(12,2);not null" json:"returnFee"`
}

// BankAccountSnapshot is the destination account copied from the vendor at creation.
type BankAccountSnapshot struct {
	HolderName    string `gorm:"column:bank_account_holder;not null" json:"holderName"`
	AccountNumber string `gorm:"column:bank_account_number;not null" json:"accountNumber"`
	IFSC          string `gorm:"column:bank_ifsc;not null" json:"ifsc"`
	BankName      string `gorm:"column:bank_name;not null" json:"bankName"`
}

// VendorPayout is a claimed, priced and scheduled disbursement for one vendor period.
type VendorPayout struct {
	ID                     uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PayoutNumber           string              `gorm:"column:payout_number;not null;uniqueIndex"`
	VendorID               uuid.UUID           `gorm:"column:vendor_id;type:uuid;not null;index"`
	PeriodStart            time.Time           `gorm:"column:period_start;type:date;not null"`
	PeriodEnd              time.Time           `gorm:"column:period_end;type:date;not null"`
	TotalSales             decimal.Decimal     `gorm:"column:total_sales;type:numeric(12,2);not null"`
	PlatformCommission     decimal.Decimal     `gorm:"column:platform_commission;type:numeric(12,2);not null"`
	CommissionGST          decimal.Decimal     `gorm:"column:commission_gst;type:numeric(12,2);not null"`
	TotalCommissionWithGST decimal.Decimal     `gorm:"column:total_commission_with_gst;type:numeric(12,2);not null"`
	TDSAmount              decimal.Decimal     `gorm:"column:tds_amount;type:numeric(12,2);not null"`
	ReturnShippingFees     decimal.Decimal     `gorm:"column:return_shipping_fees;type:numeric(12,2);not null"`
	ReturnCount            int                 `gorm:"column:return_count;not null"`
	AdjustmentAmount       decimal.Decimal     `gorm:"column:adjustment_amount;type:numeric(12,2);not null"`
	AdjustmentReason       *string             `gorm:"column:adjustment_reason"`
	NetAmount              decimal.Decimal     `gorm:"column:net_amount;type:numeric(12,2);not null"`
	Rates                  RateSnapshot        `gorm:"embedded"`
	TotalOrders            int                 `gorm:"column:total_orders;not null"`
	OrderIDs               dbtypes.UUIDArray   `gorm:"column:order_ids;type:uuid[];not null"`
	ScheduledPayoutDate    time.Time           `gorm:"column:scheduled_payout_date;type:date;not null"`
	EarliestDeliveryDate   time.Time           `gorm:"column:earliest_delivery_date;type:date;not null"`
	LatestDeliveryDate     time.Time           `gorm:"column:latest_delivery_date;type:date;not null"`
	Status                 enums.PayoutStatus  `gorm:"column:status;type:payout_status;not null"`
	BankAccount            BankAccountSnapshot `gorm:"embedded"`
	PaymentMethod          *string             `gorm:"column:payment_method"`
	PaymentReference       *string             `gorm:"column:payment_reference"`
	PaymentGateway         *string             `gorm:"column:payment_gateway"`
	GatewayResponse        jsontypes.JSONMap   `gorm:"column:gateway_response;type:jsonb"`
	ProcessedAt            *time.Time          `gorm:"column:processed_at"`
	ProcessedBy            *uuid.UUID          `gorm:"column:processed_by;type:uuid"`
	CompletedAt            *time.Time          `gorm:"column:completed_at"`
	FailedAt               *time.Time          `gorm:"column:failed_at"`
	FailureReason          *string             `gorm:"column:failure_reason"`
	CancelledAt            *time.Time          `gorm:"column:cancelled_at"`
	ClaimsReleasedAt       *time.Time          `gorm:"column:claims_released_at"`
	AdminNotes             *string             `gorm:"column:admin_notes"`
	CreatedAt              time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time           `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt              gorm.DeletedAt      `gorm:"column:deleted_at;index"`
}

func (VendorPayout) TableName() string { return "vendor_payouts" }
