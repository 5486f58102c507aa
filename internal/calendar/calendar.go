package calendar

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-payouts/pkg/db/models"
	pkgerrors "github.com/angelmondragon/packfinderz-payouts/pkg/errors"
)

const dateLayout = "2006-01-02"

// Day truncates t to its UTC calendar date.
func Day(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// Calendar answers holiday lookups for the scheduler.
type Calendar interface {
	IsHoliday(date time.Time) bool
}

// Set is an in-memory snapshot of active holidays.
type Set map[string]string

// NewSet builds a Set from holiday rows, skipping inactive ones.
func NewSet(rows []models.BankHoliday) Set {
	set := make(Set, len(rows))
	for _, row := range rows {
		if !row.IsActive {
			continue
		}
		set[row.HolidayDate.UTC().Format(dateLayout)] = row.Name
	}
	return set
}

// IsHoliday reports an exact calendar-date match.
func (s Set) IsHoliday(date time.Time) bool {
	_, ok := s[date.UTC().Format(dateLayout)]
	return ok
}

// Name returns the holiday name for date, if any.
func (s Set) Name(date time.Time) (string, bool) {
	name, ok := s[date.UTC().Format(dateLayout)]
	return name, ok
}

// Service loads holiday windows and listings.
type Service struct {
	repo Repository
}

// NewService wires a calendar service.
func NewService(repo Repository) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("holiday repository required")
	}
	return &Service{repo: repo}, nil
}

// Window loads active holidays in [from, from+days]. A non-nil tx is used for the read.
func (s *Service) Window(ctx context.Context, tx *gorm.DB, from time.Time, days int) (Set, error) {
	if days < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "window days must not be negative")
	}
	start := Day(from)
	rows, err := s.repo.WithTx(tx).ListActiveBetween(ctx, start, start.AddDate(0, 0, days))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load holiday window")
	}
	return NewSet(rows), nil
}

// List returns active holidays between from and to inclusive.
func (s *Service) List(ctx context.Context, from, to time.Time) ([]models.BankHoliday, error) {
	if Day(from).After(Day(to)) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "from must not be after to").
			WithDetails(map[string]any{"from": Day(from).Format(dateLayout), "to": Day(to).Format(dateLayout)})
	}
	rows, err := s.repo.ListActiveBetween(ctx, from, to)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list holidays")
	}
	return rows, nil
}
