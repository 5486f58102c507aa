package payouts

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-payouts/pkg/db/models"
	"github.com/angelmondragon/packfinderz-payouts/pkg/enums"
	"github.com/angelmondragon/packfinderz-payouts/pkg/pagination"
)

// Repository persists payouts and their order claims.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payout *models.VendorPayout) error
	CreateClaims(ctx context.Context, claims []models.PayoutOrderClaim) error
	Get(ctx context.Context, id uuid.UUID) (*models.VendorPayout, error)
	Transition(ctx context.Context, id uuid.UUID, from, to enums.PayoutStatus, updates map[string]any) (bool, error)
	ReleaseClaims(ctx context.Context, payoutID uuid.UUID, at time.Time) (int64, error)
	CountActiveClaims(ctx context.Context, payoutID uuid.UUID) (int64, error)
	MarkClaimsReleased(ctx context.Context, payoutID uuid.UUID, at time.Time) (bool, error)
	Archive(ctx context.Context, payoutID uuid.UUID) (bool, error)
	List(ctx context.Context, params listParams) ([]models.VendorPayout, *pagination.Cursor, error)
	ListStaleProcessing(ctx context.Context, cutoff time.Time, after *pagination.Cursor, limit int) ([]models.VendorPayout, error)
	CountStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error)
}

// ListFilter narrows payout listings.
type ListFilter struct {
	VendorID *uuid.UUID
	Status   *enums.PayoutStatus
}

type listParams struct {
	Filter ListFilter
	Limit  int
	Cursor *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds a payout repository to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payout *models.VendorPayout) error {
	return r.db.WithContext(ctx).Create(payout).Error
}

func (r *repository) CreateClaims(ctx context.Context, claims []models.PayoutOrderClaim) error {
	if len(claims) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&claims).Error
}

// Get returns nil when the payout does not exist or was archived.
func (r *repository) Get(ctx context.Context, id uuid.UUID) (*models.VendorPayout, error) {
	var payout models.VendorPayout
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&payout).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

// Transition moves a payout from one status to the next. It reports false when
// the row was not in the expected status.
func (r *repository) Transition(ctx context.Context, id uuid.UUID, from, to enums.PayoutStatus, updates map[string]any) (bool, error) {
	values := make(map[string]any, len(updates)+1)
	for k, v := range updates {
		values[k] = v
	}
	values["status"] = to
	res := r.db.WithContext(ctx).
		Model(&models.VendorPayout{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ReleaseClaims(ctx context.Context, payoutID uuid.UUID, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PayoutOrderClaim{}).
		Where("payout_id = ? AND released_at IS NULL", payoutID).
		Update("released_at", at)
	return res.RowsAffected, res.Error
}

func (r *repository) CountActiveClaims(ctx context.Context, payoutID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PayoutOrderClaim{}).
		Where("payout_id = ? AND released_at IS NULL", payoutID).
		Count(&count).Error
	return count, err
}

// MarkClaimsReleased stamps claims_released_at on a failed payout exactly once.
func (r *repository) MarkClaimsReleased(ctx context.Context, payoutID uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.VendorPayout{}).
		Where("id = ? AND status = ? AND claims_released_at IS NULL", payoutID, enums.PayoutStatusFailed).
		Update("claims_released_at", at)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Archive soft-deletes payouts that no longer hold claims.
func (r *repository) Archive(ctx context.Context, payoutID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ?", payoutID).
		Where("status = ? OR (status = ? AND claims_released_at IS NOT NULL)", enums.PayoutStatusCancelled, enums.PayoutStatusFailed).
		Delete(&models.VendorPayout{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) List(ctx context.Context, params listParams) ([]models.VendorPayout, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).Model(&models.VendorPayout{})
	if params.Filter.VendorID != nil {
		query = query.Where("vendor_id = ?", *params.Filter.VendorID)
	}
	if params.Filter.Status != nil {
		query = query.Where("status = ?", *params.Filter.Status)
	}
	var rows []models.VendorPayout
	if err := pagination.Keyset(query, params.Cursor, params.Limit).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	rows, next := pagination.Trim(rows, params.Limit, func(row models.VendorPayout) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	})
	return rows, next, nil
}

// ListStaleProcessing pages processing payouts older than cutoff, keyed on
// (processed_at, id). The cursor's CreatedAt carries processed_at.
func (r *repository) ListStaleProcessing(ctx context.Context, cutoff time.Time, after *pagination.Cursor, limit int) ([]models.VendorPayout, error) {
	var rows []models.VendorPayout
	query := r.staleProcessing(ctx, cutoff)
	if after != nil {
		at := after.CreatedAt.UTC()
		query = query.Where("(processed_at > ? OR (processed_at = ? AND id > ?))", at, at, after.ID)
	}
	err := query.
		Order("processed_at ASC, id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) CountStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error) {
	var count int64
	err := r.staleProcessing(ctx, cutoff).Count(&count).Error
	return count, err
}

func (r *repository) staleProcessing(ctx context.Context, cutoff time.Time) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.VendorPayout{}).
		Where("status = ? AND processed_at < ?", enums.PayoutStatusProcessing, cutoff.UTC())
}
