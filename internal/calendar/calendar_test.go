package calendar

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-payouts/pkg/db/dbtest"
	"github.com/angelmondragon/packfinderz-payouts/pkg/db/models"
	"github.com/angelmondragon/packfinderz-payouts/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-payouts/pkg/errors"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func seedHoliday(t *testing.T, db *gorm.DB, day time.Time, name string, active bool) {
	t.Helper()
	require.NoError(t, db.Create(&models.BankHoliday{
		ID:          uuid.New(),
		HolidayDate: day,
		Name:        name,
		Type:        enums.HolidayBank,
		IsActive:    active,
	}).Error)
}

func TestDayTruncatesToUTC(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	got := Day(time.Date(2025, 1, 2, 3, 0, 0, 0, ist))
	assert.Equal(t, date(2025, 1, 1), got)
}

func TestSetIgnoresInactiveRows(t *testing.T) {
	set := NewSet([]models.BankHoliday{
		{HolidayDate: date(2025, 1, 26), Name: "Republic Day", IsActive: true},
		{HolidayDate: date(2025, 3, 14), Name: "Holi", IsActive: false},
	})
	assert.True(t, set.IsHoliday(date(2025, 1, 26).Add(15*time.Hour)))
	assert.False(t, set.IsHoliday(date(2025, 3, 14)))
	name, ok := set.Name(date(2025, 1, 26))
	assert.True(t, ok)
	assert.Equal(t, "Republic Day", name)
}

func TestWindowLoadsActiveRange(t *testing.T) {
	db := dbtest.Open(t)
	seedHoliday(t, db, date(2025, 2, 1), "Bank Closing", true)
	seedHoliday(t, db, date(2025, 2, 10), "Inactive", false)
	seedHoliday(t, db, date(2025, 5, 1), "Outside", true)

	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	set, err := svc.Window(context.Background(), nil, date(2025, 1, 31), 60)
	require.NoError(t, err)
	assert.True(t, set.IsHoliday(date(2025, 2, 1)))
	assert.False(t, set.IsHoliday(date(2025, 2, 10)))
	assert.False(t, set.IsHoliday(date(2025, 5, 1)))
}

func TestListRejectsInvertedRange(t *testing.T) {
	svc, err := NewService(NewRepository(dbtest.Open(t)))
	require.NoError(t, err)

	_, err = svc.List(context.Background(), date(2025, 2, 1), date(2025, 1, 1))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestListInclusiveBounds(t *testing.T) {
	db := dbtest.Open(t)
	seedHoliday(t, db, date(2025, 1, 1), "New Year", true)
	seedHoliday(t, db, date(2025, 1, 31), "Month End", true)

	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	rows, err := svc.List(context.Background(), date(2025, 1, 1), date(2025, 1, 31))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "New Year", rows[0].Name)
}

func TestFindByDate(t *testing.T) {
	db := dbtest.Open(t)
	seedHoliday(t, db, date(2025, 8, 15), "Independence Day", false)
	repo := NewRepository(db)

	row, err := repo.FindByDate(context.Background(), date(2025, 8, 15))
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.False(t, row.IsActive)

	missing, err := repo.FindByDate(context.Background(), date(2025, 8, 16))
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestNewServiceRequiresRepo(t *testing.T) {
	_, err := NewService(nil)
	require.Error(t, err)
}
