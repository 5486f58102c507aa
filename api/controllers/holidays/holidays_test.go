package holidays

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/packfinderz-payouts/pkg/db/models"
	"github.com/angelmondragon/packfinderz-payouts/pkg/enums"
	"github.com/angelmondragon/packfinderz-payouts/pkg/logger"
)

type stubCalendar struct {
	from, to time.Time
}

func (s *stubCalendar) List(ctx context.Context, from, to time.Time) ([]models.BankHoliday, error) {
	s.from, s.to = from, to
	return []models.BankHoliday{{
		ID:          uuid.New(),
		HolidayDate: time.Date(2025, 2, 20, 0, 0, 0, 0, time.UTC),
		Name:        "Bank closing",
		Type:        enums.HolidayBank,
		IsActive:    true,
	}}, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "holidays-controller-test", Output: io.Discard})
}

func fixedNow() time.Time {
	return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
}

func TestListDefaultsToCurrentYear(t *testing.T) {
	svc := &stubCalendar{}
	resp := httptest.NewRecorder()
	List(svc, testLogger(), fixedNow).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), svc.from)
	assert.Equal(t, time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC), svc.to)

	var env struct {
		Data []holidayResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	require.Len(t, env.Data, 1)
	assert.Equal(t, "2025-02-20", env.Data[0].Date)
}

func TestListRejectsInvertedRange(t *testing.T) {
	resp := httptest.NewRecorder()
	List(&stubCalendar{}, testLogger(), fixedNow).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/?from=2025-03-01&to=2025-02-01", nil))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestListRejectsHugeRange(t *testing.T) {
	resp := httptest.NewRecorder()
	List(&stubCalendar{}, testLogger(), fixedNow).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/?from=2020-01-01&to=2025-01-01", nil))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}
