package revenue

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-payouts/pkg/db/models"
	"github.com/angelmondragon/packfinderz-payouts/pkg/enums"
	"github.com/angelmondragon/packfinderz-payouts/pkg/pagination"
)

// Repository persists platform revenue and reads the payouts it reconciles against.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, row *models.PlatformRevenue) error
	ListForPayout(ctx context.Context, payoutID uuid.UUID, source enums.RevenueSourceType) ([]models.PlatformRevenue, error)
	List(ctx context.Context, params listParams) ([]models.PlatformRevenue, *pagination.Cursor, error)
	Summary(ctx context.Context, year int) ([]summaryRow, error)
	ListCompletedPayouts(ctx context.Context, since time.Time, after *pagination.Cursor, limit int) ([]models.VendorPayout, error)
}

// Filter narrows revenue listings.
type Filter struct {
	Source   *enums.RevenueSourceType
	Status   *enums.RevenueStatus
	VendorID *uuid.UUID
	Year     int
	Month    int
}

type listParams struct {
	Filter Filter
	Limit  int
	Cursor *pagination.Cursor
}

type summaryRow struct {
	Month   int
	Source  enums.RevenueSourceType
	Total   decimal.Decimal
	Entries int64
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, row *models.PlatformRevenue) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *repository) ListForPayout(ctx context.Context, payoutID uuid.UUID, source enums.RevenueSourceType) ([]models.PlatformRevenue, error) {
	var rows []models.PlatformRevenue
	err := r.db.WithContext(ctx).
		Where("vendor_payout_id = ? AND source_type = ?", payoutID, source).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) List(ctx context.Context, params listParams) ([]models.PlatformRevenue, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).Model(&models.PlatformRevenue{})
	f := params.Filter
	if f.Source != nil {
		query = query.Where("source_type = ?", *f.Source)
	}
	if f.Status != nil {
		query = query.Where("status = ?", *f.Status)
	}
	if f.VendorID != nil {
		query = query.Where("vendor_id = ?", *f.VendorID)
	}
	if f.Year > 0 {
		query = query.Where("revenue_year = ?", f.Year)
	}
	if f.Month > 0 {
		query = query.Where("revenue_month = ?", f.Month)
	}
	var rows []models.PlatformRevenue
	if err := pagination.Keyset(query, params.Cursor, params.Limit).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	rows, next := pagination.Trim(rows, params.Limit, func(row models.PlatformRevenue) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	})
	return rows, next, nil
}

// Summary totals confirmed net revenue per month and source for year.
func (r *repository) Summary(ctx context.Context, year int) ([]summaryRow, error) {
	var rows []summaryRow
	err := r.db.WithContext(ctx).
		Model(&models.PlatformRevenue{}).
		Select("revenue_month AS month, source_type AS source, SUM(net_revenue) AS total, COUNT(*) AS entries").
		Where("revenue_year = ? AND status = ?", year, enums.RevenueStatusConfirmed).
		Group("revenue_month, source_type").
		Order("revenue_month ASC, source_type ASC").
		Scan(&rows).Error
	return rows, err
}

// ListCompletedPayouts pages completed payouts oldest first, keyed on
// (completed_at, id).
func (r *repository) ListCompletedPayouts(ctx context.Context, since time.Time, after *pagination.Cursor, limit int) ([]models.VendorPayout, error) {
	var rows []models.VendorPayout
	query := r.db.WithContext(ctx).
		Where("status = ? AND completed_at >= ?", enums.PayoutStatusCompleted, since.UTC())
	if after != nil {
		at := after.CreatedAt.UTC()
		query = query.Where("(completed_at > ? OR (completed_at = ? AND id > ?))", at, at, after.ID)
	}
	err := query.
		Order("completed_at ASC, id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
