package holidays

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-payouts/api/responses"
	"github.com/angelmondragon/packfinderz-payouts/api/validators"
	"github.com/angelmondragon/packfinderz-payouts/pkg/db/models"
	pkgerrors "github.com/angelmondragon/packfinderz-payouts/pkg/errors"
	"github.com/angelmondragon/packfinderz-payouts/pkg/logger"
)

// maxRangeDays bounds a single listing request.
const maxRangeDays = 366

type Lister interface {
	List(ctx context.Context, from, to time.Time) ([]models.BankHoliday, error)
}

type holidayResponse struct {
	ID    uuid.UUID `json:"id"`
	Date  string    `json:"date"`
	Name  string    `json:"name"`
	Type  string    `json:"type"`
	State *string   `json:"state,omitempty"`
}

// List returns active bank holidays between from and to, inclusive.
func List(svc Lister, logg *logger.Logger, now func() time.Time) http.HandlerFunc {
	if now == nil {
		now = time.Now
	}
	return func(w http.ResponseWriter, r *http.Request) {
		from, err := validators.ParseQueryDate(r, "from")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		to, err := validators.ParseQueryDate(r, "to")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		today := now().UTC()
		start := time.Date(today.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
		if from != nil {
			start = *from
		}
		end := start.AddDate(1, 0, -1)
		if to != nil {
			end = *to
		}
		if end.Before(start) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "to must not be before from"))
			return
		}
		if end.Sub(start) > maxRangeDays*24*time.Hour {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "date range too large").WithDetails(map[string]any{"maxDays": maxRangeDays}))
			return
		}

		rows, err := svc.List(r.Context(), start, end)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]holidayResponse, 0, len(rows))
		for _, h := range rows {
			out = append(out, holidayResponse{
				ID:    h.ID,
				Date:  h.HolidayDate.UTC().Format(validators.DateLayout),
				Name:  h.Name,
				Type:  string(h.Type),
				State: h.State,
			})
		}
		responses.WriteSuccess(w, out)
	}
}
