// Package revenue books platform earnings and reconciles them against payouts.
package revenue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/packfinderz-payouts/pkg/db"
	"github.com/angelmondragon/packfinderz-payouts/pkg/db/models"
	"github.com/angelmondragon/packfinderz-payouts/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-payouts/pkg/errors"
	"github.com/angelmondragon/packfinderz-payouts/pkg/logger"
	"github.com/angelmondragon/packfinderz-payouts/pkg/metrics"
	"github.com/angelmondragon/packfinderz-payouts/pkg/money"
	"github.com/angelmondragon/packfinderz-payouts/pkg/pagination"
	"github.com/angelmondragon/packfinderz-payouts/pkg/refnum"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	DB      txRunner
	Repo    Repository
	Metrics *metrics.PayoutMetrics
	Logger  *logger.Logger
	Now     func() time.Time
}

type Service struct {
	db      txRunner
	repo    Repository
	metrics *metrics.PayoutMetrics
	logg    *logger.Logger
	now     func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("revenue repository required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{db: params.DB, repo: params.Repo, metrics: params.Metrics, logg: params.Logger, now: now}, nil
}

// PostCommissionRevenue books the commission of a completed payout. A payout
// gets exactly one commission entry.
func (s *Service) PostCommissionRevenue(ctx context.Context, tx *gorm.DB, payout *models.VendorPayout) (*models.PlatformRevenue, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if payout == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout required")
	}
	repo := s.repo.WithTx(tx)
	existing, err := repo.ListForPayout(ctx, payout.ID, enums.RevenueSourceCommission)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout revenue")
	}
	if len(existing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "commission revenue already posted for payout").
			WithDetails(map[string]any{"payout_id": payout.ID.String()})
	}
	row := s.payoutRow(payout, enums.RevenueSourceCommission)
	row.GrossAmount = payout.TotalSales
	row.CommissionRate = payout.Rates.CommissionRate
	row.CommissionAmount = payout.PlatformCommission
	row.GSTRate = payout.Rates.CommissionGSTRate
	row.GSTAmount = payout.CommissionGST
	row.NetRevenue = payout.TotalCommissionWithGST
	row.Description = "Commission on payout " + payout.PayoutNumber
	if err := s.insert(ctx, repo, row, "ux_platform_revenues_payout_commission"); err != nil {
		return nil, err
	}
	return row, nil
}

// PostReturnFeeRevenue books the return shipping fees withheld from a payout.
func (s *Service) PostReturnFeeRevenue(ctx context.Context, tx *gorm.DB, payout *models.VendorPayout) (*models.PlatformRevenue, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if payout == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout required")
	}
	if !payout.ReturnShippingFees.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout has no return fees")
	}
	row := s.payoutRow(payout, enums.RevenueSourcePenalty)
	row.GrossAmount = payout.ReturnShippingFees
	row.FeeAmount = payout.ReturnShippingFees
	row.NetRevenue = payout.ReturnShippingFees
	row.Description = fmt.Sprintf("Return shipping fees (%d returns) on payout %s", payout.ReturnCount, payout.PayoutNumber)
	if err := s.insert(ctx, s.repo.WithTx(tx), row, "ux_platform_revenues_payout_penalty"); err != nil {
		return nil, err
	}
	return row, nil
}

func (s *Service) payoutRow(payout *models.VendorPayout, source enums.RevenueSourceType) *models.PlatformRevenue {
	now := s.now()
	vendorID := payout.VendorID
	payoutID := payout.ID
	row := &models.PlatformRevenue{
		ID:               uuid.New(),
		RevenueNumber:    refnum.New(refnum.PrefixRevenue, now),
		SourceType:       source,
		VendorID:         &vendorID,
		VendorPayoutID:   &payoutID,
		GrossAmount:      decimal.Zero,
		CommissionRate:   decimal.Zero,
		CommissionAmount: decimal.Zero,
		GSTRate:          decimal.Zero,
		GSTAmount:        decimal.Zero,
		FeeAmount:        decimal.Zero,
		NetRevenue:       decimal.Zero,
		Status:           enums.RevenueStatusConfirmed,
		CreatedAt:        now,
	}
	at := now
	if payout.CompletedAt != nil {
		at = *payout.CompletedAt
	}
	row.SetPeriod(at)
	return row
}

func (s *Service) insert(ctx context.Context, repo Repository, row *models.PlatformRevenue, constraint string) error {
	if err := repo.Create(ctx, row); err != nil {
		if dbpkg.IsUniqueViolation(err, constraint) {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "revenue already posted")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert platform revenue")
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"revenue_number": row.RevenueNumber,
		"source_type":    string(row.SourceType),
		"net_revenue":    row.NetRevenue.StringFixed(money.Places),
	})
	s.logg.Debug(logCtx, "platform revenue posted")
	return nil
}

// PlatformFeeInput records revenue that does not come from a payout.
type PlatformFeeInput struct {
	Source      enums.RevenueSourceType
	VendorID    *uuid.UUID
	OrderID     *uuid.UUID
	Amount      decimal.Decimal
	GSTRate     decimal.Decimal
	Description string
	RevenueDate *time.Time
}

// RecordPlatformFee books a subscription, listing, advertising, penalty or other fee.
func (s *Service) RecordPlatformFee(ctx context.Context, input PlatformFeeInput) (*models.PlatformRevenue, error) {
	fields := map[string]string{}
	if !input.Source.IsValid() {
		fields["source_type"] = "invalid"
	} else if input.Source == enums.RevenueSourceCommission {
		fields["source_type"] = "commission revenue is posted by payouts"
	}
	amount := money.Round(input.Amount)
	if !amount.IsPositive() {
		fields["amount"] = "must be greater than zero"
	}
	if input.GSTRate.IsNegative() || input.GSTRate.GreaterThan(decimal.NewFromInt(100)) {
		fields["gst_rate"] = "must be between 0 and 100"
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		fields["description"] = "required"
	}
	if len(fields) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid platform fee").WithDetails(fields)
	}

	now := s.now()
	gst := money.Percent(amount, input.GSTRate)
	row := &models.PlatformRevenue{
		ID:               uuid.New(),
		RevenueNumber:    refnum.New(refnum.PrefixRevenue, now),
		SourceType:       input.Source,
		VendorID:         input.VendorID,
		OrderID:          input.OrderID,
		GrossAmount:      amount,
		CommissionRate:   decimal.Zero,
		CommissionAmount: decimal.Zero,
		GSTRate:          input.GSTRate,
		GSTAmount:        gst,
		FeeAmount:        amount,
		NetRevenue:       money.Round(amount.Add(gst)),
		Status:           enums.RevenueStatusConfirmed,
		Description:      description,
		CreatedAt:        now,
	}
	at := now
	if input.RevenueDate != nil {
		at = *input.RevenueDate
	}
	row.SetPeriod(at)

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		return s.insert(ctx, s.repo.WithTx(tx), row, "ux_platform_revenues_number")
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithField(ctx, "revenue_number", row.RevenueNumber), "platform fee recorded")
	return row, nil
}

// Page is one page of revenue entries, newest first.
type Page struct {
	Items  []models.PlatformRevenue
	Cursor string
}

func (s *Service) List(ctx context.Context, filter Filter, params pagination.Params) (*Page, error) {
	if filter.Source != nil && !filter.Source.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid revenue source")
	}
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid revenue status")
	}
	if filter.Month < 0 || filter.Month > 12 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "month must be between 1 and 12")
	}
	query := listParams{Filter: filter, Limit: params.Limit}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}
	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list revenue")
	}
	page := &Page{Items: rows}
	if next != nil {
		page.Cursor = pagination.EncodeCursor(*next)
	}
	return page, nil
}

// MonthTotal is the confirmed revenue of one month.
type MonthTotal struct {
	Month    int                                         `json:"month"`
	Total    decimal.Decimal                             `json:"total"`
	Entries  int64                                       `json:"entries"`
	BySource map[enums.RevenueSourceType]decimal.Decimal `json:"bySource"`
}

// Summary is a yearly revenue report.
type Summary struct {
	Year     int                                         `json:"year"`
	Total    decimal.Decimal                             `json:"total"`
	BySource map[enums.RevenueSourceType]decimal.Decimal `json:"bySource"`
	Months   []MonthTotal                                `json:"months"`
}

func (s *Service) Summary(ctx context.Context, year int) (*Summary, error) {
	if year < 2000 || year > 9999 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid year").WithDetails(map[string]any{"year": year})
	}
	rows, err := s.repo.Summary(ctx, year)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "summarize revenue")
	}
	out := &Summary{
		Year:     year,
		Total:    decimal.Zero,
		BySource: map[enums.RevenueSourceType]decimal.Decimal{},
		Months:   []MonthTotal{},
	}
	index := map[int]int{}
	for _, row := range rows {
		total := money.Round(row.Total)
		i, ok := index[row.Month]
		if !ok {
			out.Months = append(out.Months, MonthTotal{
				Month:    row.Month,
				Total:    decimal.Zero,
				BySource: map[enums.RevenueSourceType]decimal.Decimal{},
			})
			i = len(out.Months) - 1
			index[row.Month] = i
		}
		m := &out.Months[i]
		m.Total = m.Total.Add(total)
		m.Entries += row.Entries
		m.BySource[row.Source] = m.BySource[row.Source].Add(total)
		out.BySource[row.Source] = out.BySource[row.Source].Add(total)
		out.Total = out.Total.Add(total)
	}
	return out, nil
}
