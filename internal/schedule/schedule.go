// Package schedule computes the next date a store becomes eligible for an
// automatic payout. All results are midnight of a calendar day in the
// location of the supplied clock.
package schedule

import (
	"time"

	"github.com/ayo6706/seller-payouts/internal/domain"
)

type Schedule string

const (
	Daily    Schedule = "daily"
	Weekly   Schedule = "weekly"
	Biweekly Schedule = "biweekly"
	Monthly  Schedule = "monthly"
	None     Schedule = "none"
)

const biweeklyDays = 14

func (s Schedule) IsValid() bool {
	switch s {
	case Daily, Weekly, Biweekly, Monthly, None:
		return true
	}
	return false
}

func Parse(v string) (Schedule, error) {
	s := Schedule(v)
	if !s.IsValid() {
		return "", domain.NewValidationError("schedule", "unknown payout schedule "+v)
	}
	return s, nil
}

// Config is the schedule part of a store's payout settings.
type Config struct {
	Schedule   Schedule
	DayOfWeek  *time.Weekday
	DayOfMonth *int
}

// NextPayoutDate returns the next eligible payout day. The result is never
// before the start of now's day.
func NextPayoutDate(s Schedule, dayOfWeek *time.Weekday, dayOfMonth *int, lastPayoutAt *time.Time, now time.Time) time.Time {
	loc := now.Location()
	today := startOfDay(now)
	paidToday := lastPayoutAt != nil && startOfDay(lastPayoutAt.In(loc)).Equal(today)

	switch s {
	case Daily:
		if paidToday {
			return today.AddDate(0, 0, 1)
		}
		return today

	case Weekly:
		target := time.Monday
		if dayOfWeek != nil {
			target = *dayOfWeek
		}
		delta := (int(target) - int(today.Weekday()) + 7) % 7
		if delta == 0 && paidToday {
			delta = 7
		}
		return today.AddDate(0, 0, delta)

	case Biweekly:
		anchor := today
		if lastPayoutAt != nil {
			anchor = startOfDay(lastPayoutAt.In(loc))
		}
		next := anchor.AddDate(0, 0, biweeklyDays)
		for next.Before(today) {
			next = next.AddDate(0, 0, biweeklyDays)
		}
		return next

	case Monthly:
		day := 1
		if dayOfMonth != nil {
			day = *dayOfMonth
		}
		candidate := monthDay(today.Year(), today.Month(), day, loc)
		if candidate.Before(today) || (candidate.Equal(today) && paidToday) {
			candidate = monthDay(today.Year(), today.Month()+1, day, loc)
		}
		return candidate

	default:
		return today.AddDate(0, 0, 1)
	}
}

// Next is NextPayoutDate over a Config.
func (c Config) Next(lastPayoutAt *time.Time, now time.Time) time.Time {
	return NextPayoutDate(c.Schedule, c.DayOfWeek, c.DayOfMonth, lastPayoutAt, now)
}

// Fresh returns cached when it is still today or later. A stale or missing
// value is recomputed; a stale one ignores the payout history it was derived from.
func Fresh(cached *time.Time, c Config, lastPayoutAt *time.Time, now time.Time) time.Time {
	if cached == nil {
		return c.Next(lastPayoutAt, now)
	}
	if !cached.Before(startOfDay(now)) {
		return cached.In(now.Location())
	}
	return c.Next(nil, now)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// monthDay clamps day into [1, days in month].
func monthDay(year int, month time.Month, day int, loc *time.Location) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	last := first.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, loc)
}
