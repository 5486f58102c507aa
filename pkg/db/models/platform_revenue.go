package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packfinderz-payouts/pkg/enums"
)

// PlatformRevenue is one confirmed platform earnings event.
type PlatformRevenue struct {
	ID               uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RevenueNumber    string                  `gorm:"column:revenue_number;not null;uniqueIndex"`
	SourceType       enums.RevenueSourceType `gorm:"column:source_type;type:revenue_source_type;not null"`
	VendorID         *uuid.UUID              `gorm:"column:vendor_id;type:uuid"`
	OrderID          *uuid.UUID              `gorm:"column:order_id;type:uuid"`
	VendorPayoutID   *uuid.UUID              `gorm:"column:vendor_payout_id;type:uuid"`
	GrossAmount      decimal.Decimal         `gorm:"column:gross_amount;type:numeric(12,2);not null"`
	CommissionRate   decimal.Decimal         `gorm:"column:commission_rate;type:numeric(5,2);not null"`
	CommissionAmount decimal.Decimal         `gorm:"column:commission_amount;type:numeric(12,2);not null"`
	GSTRate          decimal.Decimal         `gorm:"column:gst_rate;type:numeric(5,2);not null"`
	GSTAmount        decimal.Decimal         `gorm:"column:gst_amount;type:numeric(12,2);not null"`
	FeeAmount        decimal.Decimal         `gorm:"column:fee_amount;type:numeric(12,2);not null"`
	NetRevenue       decimal.Decimal         `gorm:"column:net_revenue;type:numeric(12,2);not null"`
	RevenueDate      time.Time               `gorm:"column:revenue_date;type:date;not null"`
	RevenueMonth     int                     `gorm:"column:revenue_month;not null"`
	RevenueQuarter   int                     `gorm:"column:revenue_quarter;not null"`
	RevenueYear      int                     `gorm:"column:revenue_year;not null"`
	Status           enums.RevenueStatus     `gorm:"column:status;type:revenue_status;not null"`
	Description      string                  `gorm:"column:description;not null"`
	CreatedAt        time.Time               `gorm:"column:created_at;autoCreateTime"`
}

func (PlatformRevenue) TableName() string { return "platform_revenues" }

// SetPeriod fills the reporting breakdown from a UTC date.
func (r *PlatformRevenue) SetPeriod(at time.Time) {
	day := at.UTC()
	r.RevenueDate = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	r.RevenueMonth = int(day.Month())
	r.RevenueQuarter = (int(day.Month())-1)/3 + 1
	r.RevenueYear = day.Year()
}
