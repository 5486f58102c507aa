// Package eligibility selects the order items and returns a payout may claim.
package eligibility

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-payouts/internal/calendar"
	"github.com/angelmondragon/packfinderz-payouts/pkg/db/models"
	"github.com/angelmondragon/packfinderz-payouts/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-payouts/pkg/errors"
)

// Result is the eligible working set for one vendor period.
type Result struct {
	VendorID    uuid.UUID
	PeriodStart time.Time
	PeriodEnd   time.Time
	Items       []models.OrderItem
	Returns     []models.ReturnOrder
}

// Empty reports that nothing is payable for the period.
func (r *Result) Empty() bool {
	return r == nil || len(r.Items) == 0
}

// OrderIDs returns the item ids in resolution order.
func (r *Result) OrderIDs() []uuid.UUID {
	if r == nil {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(r.Items))
	for _, item := range r.Items {
		ids = append(ids, item.ID)
	}
	return ids
}

// Contains reports whether id is among the eligible items.
func (r *Result) Contains(id uuid.UUID) bool {
	if r == nil {
		return false
	}
	for _, item := range r.Items {
		if item.ID == id {
			return true
		}
	}
	return false
}

// ValidatePeriod requires end to fall strictly after start.
func ValidatePeriod(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return pkgerrors.New(pkgerrors.CodeInvalidPeriod, "period start and end are required")
	}
	if !calendar.Day(end).After(calendar.Day(start)) {
		return pkgerrors.New(pkgerrors.CodeInvalidPeriod, "period end must be after period start").
			WithDetails(map[string]any{
				"period_start": calendar.Day(start).Format("2006-01-02"),
				"period_end":   calendar.Day(end).Format("2006-01-02"),
			})
	}
	return nil
}

// Resolver reads order_items and return_orders. It never writes.
type Resolver struct {
	db *gorm.DB
}

// NewResolver binds a resolver to db. Resolve prefers the caller's tx when given.
func NewResolver(db *gorm.DB) (*Resolver, error) {
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	return &Resolver{db: db}, nil
}

// Resolve returns the paid, delivered and unclaimed items of vendorID whose
// delivery falls in [periodStart, periodEnd + 1 day), plus their finalized
// customer returns.
func (r *Resolver) Resolve(ctx context.Context, tx *gorm.DB, vendorID uuid.UUID, periodStart, periodEnd time.Time) (*Result, error) {
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id is required")
	}
	if err := ValidatePeriod(periodStart, periodEnd); err != nil {
		return nil, err
	}
	conn := r.db
	if tx != nil {
		conn = tx
	}
	conn = conn.WithContext(ctx)

	start := calendar.Day(periodStart)
	end := calendar.Day(periodEnd)
	result := &Result{VendorID: vendorID, PeriodStart: start, PeriodEnd: end}

	if err := conn.
		Where("vendor_id = ?", vendorID).
		Where("delivered_at IS NOT NULL").
		Where("payment_status = ?", enums.PaymentStatusPaid).
		Where("delivered_at >= ? AND delivered_at < ?", start, end.AddDate(0, 0, 1)).
		Where("NOT EXISTS (SELECT 1 FROM payout_order_claims c WHERE c.order_item_id = order_items.id AND c.released_at IS NULL)").
		Order("delivered_at ASC, id ASC").
		Find(&result.Items).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load eligible order items")
	}
	if len(result.Items) == 0 {
		return result, nil
	}

	if err := conn.
		Where("order_item_id IN ?", result.OrderIDs()).
		Where("is_customer_return = ?", true).
		Where("status IN ?", enums.FinalizedReturnStatuses).
		Order("created_at ASC, id ASC").
		Find(&result.Returns).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load finalized returns")
	}
	return result, nil
}
