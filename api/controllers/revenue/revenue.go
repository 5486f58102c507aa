package revenue

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packfinderz-payouts/api/responses"
	"github.com/angelmondragon/packfinderz-payouts/api/validators"
	internalrevenue "github.com/angelmondragon/packfinderz-payouts/internal/revenue"
	"github.com/angelmondragon/packfinderz-payouts/pkg/db/models"
	"github.com/angelmondragon/packfinderz-payouts/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-payouts/pkg/errors"
	"github.com/angelmondragon/packfinderz-payouts/pkg/logger"
	"github.com/angelmondragon/packfinderz-payouts/pkg/money"
	"github.com/angelmondragon/packfinderz-payouts/pkg/pagination"
)

type Service interface {
	List(ctx context.Context, filter internalrevenue.Filter, params pagination.Params) (*internalrevenue.Page, error)
	Summary(ctx context.Context, year int) (*internalrevenue.Summary, error)
	RecordPlatformFee(ctx context.Context, input internalrevenue.PlatformFeeInput) (*models.PlatformRevenue, error)
}

type revenueResponse struct {
	ID               uuid.UUID  `json:"id"`
	RevenueNumber    string     `json:"revenueNumber"`
	SourceType       string     `json:"sourceType"`
	VendorID         *uuid.UUID `json:"vendorId,omitempty"`
	OrderID          *uuid.UUID `json:"orderId,omitempty"`
	VendorPayoutID   *uuid.UUID `json:"vendorPayoutId,omitempty"`
	GrossAmount      string     `json:"grossAmount"`
	CommissionRate   string     `json:"commissionRate"`
	CommissionAmount string     `json:"commissionAmount"`
	GSTRate          string     `json:"gstRate"`
	GSTAmount        string     `json:"gstAmount"`
	FeeAmount        string     `json:"feeAmount"`
	NetRevenue       string     `json:"netRevenue"`
	RevenueDate      string     `json:"revenueDate"`
	RevenueMonth     int        `json:"revenueMonth"`
	RevenueQuarter   int        `json:"revenueQuarter"`
	RevenueYear      int        `json:"revenueYear"`
	Status           string     `json:"status"`
	Description      string     `json:"description"`
	CreatedAt        time.Time  `json:"createdAt"`
}

func newRevenueResponse(r *models.PlatformRevenue) revenueResponse {
	return revenueResponse{
		ID:               r.ID,
		RevenueNumber:    r.RevenueNumber,
		SourceType:       string(r.SourceType),
		VendorID:         r.VendorID,
		OrderID:          r.OrderID,
		VendorPayoutID:   r.VendorPayoutID,
		GrossAmount:      amount(r.GrossAmount),
		CommissionRate:   amount(r.CommissionRate),
		CommissionAmount: amount(r.CommissionAmount),
		GSTRate:          amount(r.GSTRate),
		GSTAmount:        amount(r.GSTAmount),
		FeeAmount:        amount(r.FeeAmount),
		NetRevenue:       amount(r.NetRevenue),
		RevenueDate:      r.RevenueDate.UTC().Format(validators.DateLayout),
		RevenueMonth:     r.RevenueMonth,
		RevenueQuarter:   r.RevenueQuarter,
		RevenueYear:      r.RevenueYear,
		Status:           string(r.Status),
		Description:      r.Description,
		CreatedAt:        r.CreatedAt,
	}
}

type monthResponse struct {
	Month    int               `json:"month"`
	Total    string            `json:"total"`
	Entries  int64             `json:"entries"`
	BySource map[string]string `json:"bySource"`
}

type summaryResponse struct {
	Year     int               `json:"year"`
	Total    string            `json:"total"`
	BySource map[string]string `json:"bySource"`
	Months   []monthResponse   `json:"months"`
}

func newSummaryResponse(s *internalrevenue.Summary) summaryResponse {
	resp := summaryResponse{
		Year:     s.Year,
		Total:    amount(s.Total),
		BySource: bySource(s.BySource),
		Months:   make([]monthResponse, 0, len(s.Months)),
	}
	for _, m := range s.Months {
		resp.Months = append(resp.Months, monthResponse{
			Month:    m.Month,
			Total:    amount(m.Total),
			Entries:  m.Entries,
			BySource: bySource(m.BySource),
		})
	}
	return resp
}

func bySource(in map[enums.RevenueSourceType]decimal.Decimal) map[string]string {
	out := make(map[string]string, len(in))
	for source, total := range in {
		out[string(source)] = amount(total)
	}
	return out
}

type platformFeeRequest struct {
	SourceType  string          `json:"sourceType" validate:"required"`
	VendorID    *uuid.UUID      `json:"vendorId"`
	OrderID     *uuid.UUID      `json:"orderId"`
	Amount      decimal.Decimal `json:"amount"`
	GSTRate     decimal.Decimal `json:"gstRate"`
	Description string          `json:"description" validate:"required,max=500"`
	RevenueDate string          `json:"revenueDate" validate:"omitempty,datetime=2006-01-02"`
}

// List pages confirmed platform revenue, newest first.
func List(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), filter, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]revenueResponse, 0, len(page.Items))
		for i := range page.Items {
			items = append(items, newRevenueResponse(&page.Items[i]))
		}
		responses.WriteSuccess(w, map[string]any{
			"items":  items,
			"cursor": page.Cursor,
		})
	}
}

func parseFilter(r *http.Request) (internalrevenue.Filter, error) {
	var filter internalrevenue.Filter
	q := r.URL.Query()
	if raw := strings.TrimSpace(q.Get("sourceType")); raw != "" {
		source, err := enums.ParseRevenueSourceType(raw)
		if err != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid source filter").WithDetails(map[string]any{"field": "sourceType"})
		}
		filter.Source = &source
	}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, err := enums.ParseRevenueStatus(raw)
		if err != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter").WithDetails(map[string]any{"field": "status"})
		}
		filter.Status = &status
	}
	vendorID, err := validators.ParseQueryUUID(r, "vendorId")
	if err != nil {
		return filter, err
	}
	filter.VendorID = vendorID

	if filter.Year, err = validators.ParseQueryInt(r, "year", 0, 2000, 9999); err != nil {
		return filter, err
	}
	if filter.Month, err = validators.ParseQueryInt(r, "month", 0, 1, 12); err != nil {
		return filter, err
	}
	return filter, nil
}

// Summary reports confirmed revenue by month and source for one year.
func Summary(svc Service, logg *logger.Logger, now func() time.Time) http.HandlerFunc {
	if now == nil {
		now = time.Now
	}
	return func(w http.ResponseWriter, r *http.Request) {
		year, err := validators.ParseQueryInt(r, "year", now().UTC().Year(), 2000, 9999)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		summary, err := svc.Summary(r.Context(), year)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSummaryResponse(summary))
	}
}

// Create books a fee that does not come from a payout.
func Create(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req platformFeeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		source, err := enums.ParseRevenueSourceType(req.SourceType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid source type").WithDetails(map[string]any{"field": "sourceType"}))
			return
		}

		input := internalrevenue.PlatformFeeInput{
			Source:      source,
			VendorID:    req.VendorID,
			OrderID:     req.OrderID,
			Amount:      req.Amount,
			GSTRate:     req.GSTRate,
			Description: req.Description,
		}
		if req.RevenueDate != "" {
			day, err := validators.ParseDate(req.RevenueDate)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid revenue date"))
				return
			}
			input.RevenueDate = &day
		}

		row, err := svc.RecordPlatformFee(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newRevenueResponse(row))
	}
}

func amount(d decimal.Decimal) string {
	return d.StringFixed(money.Places)
}
