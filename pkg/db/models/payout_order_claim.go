package models

import (
	"time"

	"github.com/google/uuid"
)

// PayoutOrderClaim binds an order item to the payout that pays it out. Only
// one unreleased claim may exist per order item.
type PayoutOrderClaim struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PayoutID    uuid.UUID  `gorm:"column:payout_id;type:uuid;not null;index"`
	VendorID    uuid.UUID  `gorm:"column:vendor_id;type:uuid;not null"`
	OrderItemID uuid.UUID  `gorm:"column:order_item_id;type:uuid;not null"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	ReleasedAt  *time.Time `gorm:"column:released_at"`
}

func (PayoutOrderClaim) TableName() string { return "payout_order_claims" }
