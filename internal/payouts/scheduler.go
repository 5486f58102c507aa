package payouts

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-payouts/internal/calendar"
	"github.com/angelmondragon/packfinderz-payouts/pkg/config"
)

const holidayLookaheadDays = 60

// SchedulePolicy toggles the non-holiday rules of the scheduler.
type SchedulePolicy struct {
	SkipWeekends bool
}

// Schedule returns the first business day after the return window closes.
// A nil calendar treats every date as a business day.
func Schedule(latestDelivery time.Time, returnWindowDays int, cal calendar.Calendar, policy SchedulePolicy) time.Time {
	candidate := calendar.Day(latestDelivery).AddDate(0, 0, returnWindowDays+1)
	for skip(candidate, cal, policy) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

func skip(day time.Time, cal calendar.Calendar, policy SchedulePolicy) bool {
	if cal != nil && cal.IsHoliday(day) {
		return true
	}
	if policy.SkipWeekends {
		switch day.Weekday() {
		case time.Saturday, time.Sunday:
			return true
		}
	}
	return false
}

type holidayWindow interface {
	Window(ctx context.Context, tx *gorm.DB, from time.Time, days int) (calendar.Set, error)
}

// Scheduler loads the holiday window once per call and delegates to Schedule.
type Scheduler struct {
	holidays   holidayWindow
	windowDays int
	policy     SchedulePolicy
}

func NewScheduler(holidays holidayWindow, cfg config.PayoutConfig) (*Scheduler, error) {
	if holidays == nil {
		return nil, fmt.Errorf("holiday calendar required")
	}
	return &Scheduler{
		holidays:   holidays,
		windowDays: cfg.ReturnWindowDays,
		policy:     SchedulePolicy{SkipWeekends: cfg.SkipWeekends},
	}, nil
}

// ScheduleFor computes the payout date for the latest delivery in a period.
// Holidays are read through tx when one is given.
func (s *Scheduler) ScheduleFor(ctx context.Context, tx *gorm.DB, latestDelivery time.Time) (time.Time, error) {
	candidate := calendar.Day(latestDelivery).AddDate(0, 0, s.windowDays+1)
	set, err := s.holidays.Window(ctx, tx, candidate, holidayLookaheadDays)
	if err != nil {
		return time.Time{}, err
	}
	return Schedule(latestDelivery, s.windowDays, set, s.policy), nil
}
