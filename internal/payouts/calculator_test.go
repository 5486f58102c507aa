package payouts

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/packfinderz-payouts/pkg/config"
	"github.com/angelmondragon/packfinderz-payouts/pkg/db/models"
	"github.com/angelmondragon/packfinderz-payouts/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-payouts/pkg/errors"
)

func amt(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var standardRates = Rates{
	CommissionRate:    amt("10"),
	CommissionGSTRate: amt("18"),
	TDSRate:           amt("1"),
	ReturnFee:         amt("150.00"),
}

func item(total string, delivered time.Time) models.OrderItem {
	return models.OrderItem{
		ID:            uuid.New(),
		OrderID:       uuid.New(),
		VendorID:      uuid.New(),
		Status:        "delivered",
		DeliveredAt:   &delivered,
		PaymentStatus: enums.PaymentStatusPaid,
		TotalAmount:   amt(total),
	}
}

func TestCalculateStandardBreakdown(t *testing.T) {
	items := []models.OrderItem{
		item("600.00", time.Date(2025, 1, 20, 15, 0, 0, 0, time.UTC)),
		item("400.00", time.Date(2025, 1, 5, 9, 0, 0, 0, time.UTC)),
	}
	b, err := Calculate(CalculationInput{
		PeriodStart: day(2025, 1, 1),
		PeriodEnd:   day(2025, 1, 31),
		Items:       items,
		Rates:       standardRates,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, b.TotalOrders)
	assert.Equal(t, []uuid.UUID{items[0].ID, items[1].ID}, b.OrderIDs)
	assert.True(t, b.TotalSales.Equal(amt("1000")))
	assert.True(t, b.PlatformCommission.Equal(amt("100")))
	assert.True(t, b.CommissionGST.Equal(amt("18")))
	assert.True(t, b.TotalCommissionWithGST.Equal(amt("118")))
	assert.True(t, b.TDSAmount.Equal(amt("10")))
	assert.True(t, b.ReturnShippingFees.IsZero())
	assert.True(t, b.NetAmount.Equal(amt("872")))
	assert.Equal(t, day(2025, 1, 5), b.EarliestDeliveryDate)
	assert.Equal(t, day(2025, 1, 20), b.LatestDeliveryDate)
	assert.Equal(t, standardRates, b.Rates)
}

func TestCalculateCountsOnlyFinalizedCustomerReturns(t *testing.T) {
	a := item("600.00", day(2025, 1, 10))
	b := item("400.00", day(2025, 1, 11))
	returns := []models.ReturnOrder{
		{ID: uuid.New(), OrderItemID: a.ID, IsCustomerReturn: true, Status: enums.ReturnStatusCompleted},
		{ID: uuid.New(), OrderItemID: b.ID, IsCustomerReturn: true, Status: enums.ReturnStatusRefundCompleted},
		{ID: uuid.New(), OrderItemID: b.ID, IsCustomerReturn: false, Status: enums.ReturnStatusCompleted},
		{ID: uuid.New(), OrderItemID: a.ID, IsCustomerReturn: true, Status: enums.ReturnStatusRequested},
		{ID: uuid.New(), OrderItemID: uuid.New(), IsCustomerReturn: true, Status: enums.ReturnStatusCompleted},
	}
	out, err := Calculate(CalculationInput{
		PeriodStart: day(2025, 1, 1),
		PeriodEnd:   day(2025, 1, 31),
		Items:       []models.OrderItem{a, b},
		Returns:     returns,
		Rates:       standardRates,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, out.ReturnCount)
	assert.True(t, out.ReturnShippingFees.Equal(amt("300")))
	assert.True(t, out.NetAmount.Equal(amt("572")))
}

func TestCalculateRoundsEachStep(t *testing.T) {
	out, err := Calculate(CalculationInput{
		PeriodStart: day(2025, 1, 1),
		PeriodEnd:   day(2025, 1, 31),
		Items:       []models.OrderItem{item("333.33", day(2025, 1, 3))},
		Rates:       standardRates,
		Adjustment:  amt("-22.505"),
	})
	require.NoError(t, err)
	assert.True(t, out.PlatformCommission.Equal(amt("33.33")))
	assert.True(t, out.CommissionGST.Equal(amt("6.00")))
	assert.True(t, out.TotalCommissionWithGST.Equal(amt("39.33")))
	assert.True(t, out.TDSAmount.Equal(amt("3.33")))
	assert.True(t, out.AdjustmentAmount.Equal(amt("-22.51")))
	assert.True(t, out.NetAmount.Equal(amt("268.16")))
}

func TestCalculateIsDeterministic(t *testing.T) {
	input := CalculationInput{
		PeriodStart: day(2025, 1, 1),
		PeriodEnd:   day(2025, 1, 31),
		Items:       []models.OrderItem{item("99.99", day(2025, 1, 3)), item("0.01", day(2025, 1, 4))},
		Rates:       standardRates,
	}
	first, err := Calculate(input)
	require.NoError(t, err)
	second, err := Calculate(input)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCalculateErrors(t *testing.T) {
	_, err := Calculate(CalculationInput{PeriodStart: day(2025, 1, 31), PeriodEnd: day(2025, 1, 31), Rates: standardRates})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidPeriod))

	out, err := Calculate(CalculationInput{PeriodStart: day(2025, 1, 1), PeriodEnd: day(2025, 1, 31), Rates: standardRates})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNoEligibleOrders))
	assert.Equal(t, 0, out.TotalOrders)
	assert.True(t, out.NetAmount.IsZero())
	assert.Equal(t, day(2025, 1, 1), out.PeriodStart)
}

func TestRatePolicyResolve(t *testing.T) {
	policy := NewRatePolicy(config.PayoutConfig{
		DefaultCommissionRate: amt("10"),
		TierRates:             map[string]string{"gold": "8"},
		CommissionGSTRate:     amt("18"),
		TDSRate:               amt("1"),
		TDSRateNoPAN:          amt("5"),
		ReturnFee:             amt("150"),
	})
	pan := "ABCDE1234F"
	override := amt("6.5")

	cases := []struct {
		name       string
		vendor     models.Vendor
		commission string
		tds        string
	}{
		{"default without pan", models.Vendor{}, "10", "5"},
		{"unverified pan", models.Vendor{PANNumber: &pan}, "10", "5"},
		{"tier with pan", models.Vendor{Tier: "Gold", PANNumber: &pan, PANVerified: true}, "8", "1"},
		{"override beats tier", models.Vendor{Tier: "gold", CommissionRateOverride: &override}, "6.5", "5"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rates := policy.Resolve(tc.vendor)
			assert.True(t, rates.CommissionRate.Equal(amt(tc.commission)), rates.CommissionRate.String())
			assert.True(t, rates.TDSRate.Equal(amt(tc.tds)), rates.TDSRate.String())
			assert.True(t, rates.CommissionGSTRate.Equal(amt("18")))
			assert.True(t, rates.ReturnFee.Equal(amt("150")))
		})
	}
}
