package payouts

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packfinderz-payouts/internal/calendar"
	"github.com/angelmondragon/packfinderz-payouts/internal/eligibility"
	"github.com/angelmondragon/packfinderz-payouts/pkg/db/models"
	pkgerrors "github.com/angelmondragon/packfinderz-payouts/pkg/errors"
	"github.com/angelmondragon/packfinderz-payouts/pkg/money"
)

// CalculationInput is everything Calculate needs. It is never mutated.
type CalculationInput struct {
	PeriodStart time.Time
	PeriodEnd   time.Time
	Items       []models.OrderItem
	Returns     []models.ReturnOrder
	Rates       Rates
	Adjustment  decimal.Decimal
}

// Breakdown is the priced result of one vendor period.
type Breakdown struct {
	VendorID               uuid.UUID       `json:"vendorId"`
	PeriodStart            time.Time       `json:"periodStart"`
	PeriodEnd              time.Time       `json:"periodEnd"`
	TotalOrders            int             `json:"totalOrders"`
	OrderIDs               []uuid.UUID     `json:"orderIds"`
	TotalSales             decimal.Decimal `json:"totalSales"`
	PlatformCommission     decimal.Decimal `json:"platformCommission"`
	CommissionGST          decimal.Decimal `json:"commissionGst"`
	TotalCommissionWithGST decimal.Decimal `json:"totalCommissionWithGst"`
	TDSAmount              decimal.Decimal `json:"tdsAmount"`
	ReturnCount            int             `json:"returnCount"`
	ReturnShippingFees     decimal.Decimal `json:"returnShippingFees"`
	AdjustmentAmount       decimal.Decimal `json:"adjustmentAmount"`
	NetAmount              decimal.Decimal `json:"netAmount"`
	Rates                  Rates           `json:"rates"`
	EarliestDeliveryDate   time.Time       `json:"earliestDeliveryDate"`
	LatestDeliveryDate     time.Time       `json:"latestDeliveryDate"`
	ScheduledPayoutDate    time.Time       `json:"scheduledPayoutDate"`
}

// Calculate prices the eligible items. Every intermediate amount is rounded to
// two places before it feeds the next step.
func Calculate(input CalculationInput) (Breakdown, error) {
	if err := eligibility.ValidatePeriod(input.PeriodStart, input.PeriodEnd); err != nil {
		return Breakdown{}, err
	}
	out := Breakdown{
		PeriodStart:            calendar.Day(input.PeriodStart),
		PeriodEnd:              calendar.Day(input.PeriodEnd),
		OrderIDs:               []uuid.UUID{},
		TotalSales:             decimal.Zero,
		PlatformCommission:     decimal.Zero,
		CommissionGST:          decimal.Zero,
		TotalCommissionWithGST: decimal.Zero,
		TDSAmount:              decimal.Zero,
		ReturnShippingFees:     decimal.Zero,
		AdjustmentAmount:       money.Round(input.Adjustment),
		NetAmount:              decimal.Zero,
		Rates:                  input.Rates,
	}
	if len(input.Items) == 0 {
		return out, pkgerrors.New(pkgerrors.CodeNoEligibleOrders, "no eligible orders for period").
			WithDetails(map[string]any{
				"period_start": out.PeriodStart.Format("2006-01-02"),
				"period_end":   out.PeriodEnd.Format("2006-01-02"),
			})
	}

	included := make(map[uuid.UUID]struct{}, len(input.Items))
	amounts := make([]decimal.Decimal, 0, len(input.Items))
	for _, item := range input.Items {
		included[item.ID] = struct{}{}
		out.OrderIDs = append(out.OrderIDs, item.ID)
		amounts = append(amounts, item.TotalAmount)
		if item.DeliveredAt == nil {
			continue
		}
		day := calendar.Day(*item.DeliveredAt)
		if out.EarliestDeliveryDate.IsZero() || day.Before(out.EarliestDeliveryDate) {
			out.EarliestDeliveryDate = day
		}
		if day.After(out.LatestDeliveryDate) {
			out.LatestDeliveryDate = day
		}
	}
	out.TotalOrders = len(out.OrderIDs)

	for _, ret := range input.Returns {
		if _, ok := included[ret.OrderItemID]; !ok {
			continue
		}
		if ret.IsCustomerReturn && ret.Status.IsFinalized() {
			out.ReturnCount++
		}
	}

	out.TotalSales = money.Sum(amounts...)
	out.PlatformCommission = money.Percent(out.TotalSales, input.Rates.CommissionRate)
	out.CommissionGST = money.Percent(out.PlatformCommission, input.Rates.CommissionGSTRate)
	out.TotalCommissionWithGST = money.Round(out.PlatformCommission.Add(out.CommissionGST))
	out.TDSAmount = money.Percent(out.TotalSales, input.Rates.TDSRate)
	out.ReturnShippingFees = money.Round(input.Rates.ReturnFee.Mul(decimal.NewFromInt(int64(out.ReturnCount))))
	out.NetAmount = money.Round(out.TotalSales.
		Sub(out.TotalCommissionWithGST).
		Sub(out.TDSAmount).
		Sub(out.ReturnShippingFees).
		Add(out.AdjustmentAmount))
	return out, nil
}
