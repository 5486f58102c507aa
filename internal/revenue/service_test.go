package revenue

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-payouts/pkg/db/dbtest"
	"github.com/angelmondragon/packfinderz-payouts/pkg/db/models"
	"github.com/angelmondragon/packfinderz-payouts/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-payouts/pkg/errors"
	"github.com/angelmondragon/packfinderz-payouts/pkg/logger"
	"github.com/angelmondragon/packfinderz-payouts/pkg/pagination"
)

func amt(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	client := dbtest.Client(t)
	clock := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	svc, err := NewService(ServiceParams{
		DB:     client,
		Repo:   NewRepository(client.DB()),
		Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Now: func() time.Time {
			clock = clock.Add(time.Minute)
			return clock
		},
	})
	require.NoError(t, err)
	return svc, client.DB()
}

func seedCompletedPayout(t *testing.T, db *gorm.DB, completedAt time.Time, fees string) *models.VendorPayout {
	t.Helper()
	payout := &models.VendorPayout{
		ID:                     uuid.New(),
		PayoutNumber:           "PO-" + uuid.NewString()[:8],
		VendorID:               uuid.New(),
		PeriodStart:            time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:              time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
		TotalSales:             amt("1000.00"),
		PlatformCommission:     amt("100.00"),
		CommissionGST:          amt("18.00"),
		TotalCommissionWithGST: amt("118.00"),
		TDSAmount:              amt("10.00"),
		ReturnShippingFees:     amt(fees),
		ReturnCount:            int(amt(fees).Div(amt("150")).IntPart()),
		AdjustmentAmount:       decimal.Zero,
		NetAmount:              amt("872.00").Sub(amt(fees)),
		Rates: models.RateSnapshot{
			CommissionRate: amt("10"), CommissionGSTRate: amt("18"), TDSRate: amt("1"), ReturnFee: amt("150"),
		},
		TotalOrders:          1,
		OrderIDs:             []uuid.UUID{uuid.New()},
		ScheduledPayoutDate:  time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
		EarliestDeliveryDate: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		LatestDeliveryDate:   time.Date(2025, 1, 30, 0, 0, 0, 0, time.UTC),
		Status:               enums.PayoutStatusCompleted,
		CompletedAt:          &completedAt,
		CreatedAt:            completedAt.Add(-48 * time.Hour),
		UpdatedAt:            completedAt,
	}
	require.NoError(t, db.Create(payout).Error)
	return payout
}

func inTx(t *testing.T, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	t.Helper()
	return db.Transaction(fn)
}

func TestPostCommissionRevenue(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	payout := seedCompletedPayout(t, db, time.Date(2025, 5, 2, 12, 0, 0, 0, time.UTC), "0")

	var row *models.PlatformRevenue
	require.NoError(t, inTx(t, db, func(tx *gorm.DB) error {
		var err error
		row, err = svc.PostCommissionRevenue(ctx, tx, payout)
		return err
	}))
	assert.Equal(t, enums.RevenueSourceCommission, row.SourceType)
	assert.Equal(t, enums.RevenueStatusConfirmed, row.Status)
	assert.True(t, row.GrossAmount.Equal(amt("1000")))
	assert.True(t, row.CommissionAmount.Equal(amt("100")))
	assert.True(t, row.GSTAmount.Equal(amt("18")))
	assert.True(t, row.NetRevenue.Equal(amt("118")))
	assert.Equal(t, 5, row.RevenueMonth)
	assert.Equal(t, 2, row.RevenueQuarter)
	assert.Equal(t, 2025, row.RevenueYear)

	err := inTx(t, db, func(tx *gorm.DB) error {
		_, err := svc.PostCommissionRevenue(ctx, tx, payout)
		return err
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestPostReturnFeeRevenue(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	payout := seedCompletedPayout(t, db, time.Date(2025, 5, 2, 12, 0, 0, 0, time.UTC), "300.00")

	require.NoError(t, inTx(t, db, func(tx *gorm.DB) error {
		row, err := svc.PostReturnFeeRevenue(ctx, tx, payout)
		if err != nil {
			return err
		}
		assert.Equal(t, enums.RevenueSourcePenalty, row.SourceType)
		assert.True(t, row.FeeAmount.Equal(amt("300")))
		assert.True(t, row.NetRevenue.Equal(amt("300")))
		return nil
	}))

	noFees := seedCompletedPayout(t, db, time.Date(2025, 5, 2, 12, 0, 0, 0, time.UTC), "0")
	err := inTx(t, db, func(tx *gorm.DB) error {
		_, err := svc.PostReturnFeeRevenue(ctx, tx, noFees)
		return err
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestVerifyPayout(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	payout := seedCompletedPayout(t, db, time.Date(2025, 5, 2, 12, 0, 0, 0, time.UTC), "0")

	err := svc.VerifyPayout(ctx, db, payout)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeReconciliationMismatch))

	require.NoError(t, inTx(t, db, func(tx *gorm.DB) error {
		_, err := svc.PostCommissionRevenue(ctx, tx, payout)
		return err
	}))
	assert.NoError(t, svc.VerifyPayout(ctx, db, payout))

	drifted := *payout
	drifted.TotalCommissionWithGST = amt("120.00")
	err = svc.VerifyPayout(ctx, db, &drifted)
	require.Error(t, err)
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "120.00", details["expected"])
	assert.Equal(t, "118.00", details["actual"])
}

func TestReconcileCompleted(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	since := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	good := seedCompletedPayout(t, db, time.Date(2025, 5, 2, 12, 0, 0, 0, time.UTC), "0")
	missing := seedCompletedPayout(t, db, time.Date(2025, 5, 3, 12, 0, 0, 0, time.UTC), "0")
	seedCompletedPayout(t, db, time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC), "0")

	require.NoError(t, inTx(t, db, func(tx *gorm.DB) error {
		_, err := svc.PostCommissionRevenue(ctx, tx, good)
		return err
	}))

	report, err := svc.ReconcileCompleted(ctx, since, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Checked)
	require.Len(t, report.Mismatches, 1)
	assert.Equal(t, missing.ID, report.Mismatches[0].PayoutID)
	assert.Equal(t, int64(0), report.Mismatches[0].EntryCount)
	assert.True(t, report.Mismatches[0].Expected.Equal(amt("118")))
}

func TestReconcileCompletedPagesPastBatchSize(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	since := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	shared := time.Date(2025, 5, 4, 8, 0, 0, 0, time.UTC)

	want := []uuid.UUID{
		seedCompletedPayout(t, db, time.Date(2025, 5, 2, 8, 0, 0, 0, time.UTC), "0").ID,
		seedCompletedPayout(t, db, shared, "0").ID,
		seedCompletedPayout(t, db, shared, "0").ID,
		seedCompletedPayout(t, db, time.Date(2025, 5, 6, 8, 0, 0, 0, time.UTC), "0").ID,
		seedCompletedPayout(t, db, time.Date(2025, 5, 7, 8, 0, 0, 0, time.UTC), "0").ID,
	}

	report, err := svc.ReconcileCompleted(ctx, since, 2)
	require.NoError(t, err)
	assert.Equal(t, len(want), report.Checked)

	got := make([]uuid.UUID, 0, len(report.Mismatches))
	for _, m := range report.Mismatches {
		got = append(got, m.PayoutID)
	}
	assert.ElementsMatch(t, want, got)
}

func TestRecordPlatformFee(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	row, err := svc.RecordPlatformFee(ctx, PlatformFeeInput{
		Source:      enums.RevenueSourceSubscription,
		Amount:      amt("1000"),
		GSTRate:     amt("18"),
		Description: "Gold plan, March",
	})
	require.NoError(t, err)
	assert.True(t, row.GSTAmount.Equal(amt("180")))
	assert.True(t, row.NetRevenue.Equal(amt("1180")))
	assert.Equal(t, 3, row.RevenueMonth)

	cases := map[string]PlatformFeeInput{
		"commission": {Source: enums.RevenueSourceCommission, Amount: amt("1"), Description: "x"},
		"unknown":    {Source: "royalty", Amount: amt("1"), Description: "x"},
		"zero":       {Source: enums.RevenueSourceOther, Amount: decimal.Zero, Description: "x"},
		"gst":        {Source: enums.RevenueSourceOther, Amount: amt("1"), GSTRate: amt("101"), Description: "x"},
		"no desc":    {Source: enums.RevenueSourceOther, Amount: amt("1")},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.RecordPlatformFee(ctx, input)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
		})
	}
}

func TestSummaryAndList(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	march := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	april := time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC)
	for _, input := range []PlatformFeeInput{
		{Source: enums.RevenueSourceListingFee, Amount: amt("100"), Description: "listing", RevenueDate: &march},
		{Source: enums.RevenueSourceListingFee, Amount: amt("50"), Description: "listing", RevenueDate: &march},
		{Source: enums.RevenueSourceAdvertisement, Amount: amt("200"), Description: "banner", RevenueDate: &april},
	} {
		_, err := svc.RecordPlatformFee(ctx, input)
		require.NoError(t, err)
	}
	payout := seedCompletedPayout(t, db, time.Date(2025, 4, 20, 12, 0, 0, 0, time.UTC), "0")
	require.NoError(t, inTx(t, db, func(tx *gorm.DB) error {
		_, err := svc.PostCommissionRevenue(ctx, tx, payout)
		return err
	}))

	summary, err := svc.Summary(ctx, 2025)
	require.NoError(t, err)
	assert.True(t, summary.Total.Equal(amt("468")))
	require.Len(t, summary.Months, 2)
	assert.Equal(t, 3, summary.Months[0].Month)
	assert.True(t, summary.Months[0].Total.Equal(amt("150")))
	assert.Equal(t, int64(2), summary.Months[0].Entries)
	assert.True(t, summary.Months[1].BySource[enums.RevenueSourceCommission].Equal(amt("118")))
	assert.True(t, summary.BySource[enums.RevenueSourceAdvertisement].Equal(amt("200")))

	_, err = svc.Summary(ctx, 12)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	source := enums.RevenueSourceListingFee
	page, err := svc.List(ctx, Filter{Source: &source}, pagination.Params{Limit: 1})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.NotEmpty(t, page.Cursor)

	next, err := svc.List(ctx, Filter{Source: &source}, pagination.Params{Limit: 1, Cursor: page.Cursor})
	require.NoError(t, err)
	require.Len(t, next.Items, 1)
	assert.NotEqual(t, page.Items[0].ID, next.Items[0].ID)
	assert.Empty(t, next.Cursor)
}
