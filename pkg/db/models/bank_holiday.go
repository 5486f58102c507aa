package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-payouts/pkg/enums"
)

// BankHoliday is reference data for non-processing days.
type BankHoliday struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	HolidayDate time.Time         `gorm:"column:holiday_date;type:date;not null;uniqueIndex"`
	Name        string            `gorm:"column:name;not null"`
	Type        enums.HolidayType `gorm:"column:type;type:holiday_type;not null"`
	State       *string           `gorm:"column:state"`
	IsActive    bool              `gorm:"column:is_active;not null"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (BankHoliday) TableName() string { return "bank_holidays" }
