package calendar

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/packfinderz-payouts/pkg/db/models"
	"gorm.io/gorm"
)

// Repository reads the bank holiday reference table.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListActiveBetween(ctx context.Context, from, to time.Time) ([]models.BankHoliday, error)
	FindByDate(ctx context.Context, date time.Time) (*models.BankHoliday, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a holiday repository bound to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// ListActiveBetween returns active holidays with from <= holiday_date <= to.
func (r *repository) ListActiveBetween(ctx context.Context, from, to time.Time) ([]models.BankHoliday, error) {
	var rows []models.BankHoliday
	if err := r.db.WithContext(ctx).
		Where("holiday_date >= ? AND holiday_date <= ?", Day(from), Day(to)).
		Where("is_active = ?", true).
		Order("holiday_date ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FindByDate returns the holiday row for date, active or not. A missing row
// yields (nil, nil).
func (r *repository) FindByDate(ctx context.Context, date time.Time) (*models.BankHoliday, error) {
	var row models.BankHoliday
	err := r.db.WithContext(ctx).Where("holiday_date = ?", Day(date)).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}
