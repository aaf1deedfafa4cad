// Package recurrence derives the next occurrence of a recurring schedule.
//
// Everything here is pure: no clock reads, no I/O. DAILY, WEEKLY and MONTHLY
// advance the previous occurrence by whole calendar units in the configured
// time zone, so the wall clock hour survives DST changes. CUSTOM rules are
// standard 5-field cron expressions (or descriptors such as "@weekly")
// evaluated by robfig/cron.
package recurrence

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Nixie-Tech-LLC/premiere/internal/errors"
	"github.com/Nixie-Tech-LLC/premiere/internal/model"
)

// Next returns the occurrence following prev. ok is false when the rule
// produces no further occurrence (ONCE, past Until, or a cron rule that
// never fires again).
func Next(prev time.Time, r model.Recurrence, cfg model.RecurrenceConfig) (next time.Time, ok bool, err error) {
	if err := Validate(r, cfg); err != nil {
		return time.Time{}, false, err
	}
	if r == model.RecurrenceOnce {
		return time.Time{}, false, nil
	}

	loc, _ := location(cfg.Timezone)
	p := prev.In(loc)
	n := cfg.Interval
	if n <= 0 {
		n = 1
	}

	switch r {
	case model.RecurrenceDaily:
		next = atClock(p, n, cfg, loc)
	case model.RecurrenceWeekly:
		days := 7 * n
		if cfg.DayOfWeek != nil {
			offset := (*cfg.DayOfWeek - int(p.Weekday()) + 7) % 7
			if offset == 0 {
				offset = 7
			}
			days = offset + 7*(n-1)
		}
		next = atClock(p, days, cfg, loc)
	case model.RecurrenceMonthly:
		next = monthly(p, n, cfg, loc)
	case model.RecurrenceCustom:
		sched, err := cron.ParseStandard(cfg.Cron)
		if err != nil {
			return time.Time{}, false, errors.Validationf("invalid cron expression %q: %v", cfg.Cron, err)
		}
		next = sched.Next(p)
		if next.IsZero() {
			return time.Time{}, false, nil
		}
	}

	if cfg.Until != nil && next.After(*cfg.Until) {
		return time.Time{}, false, nil
	}
	return next.In(prev.Location()), true, nil
}

// Validate checks that cfg is well formed for r.
func Validate(r model.Recurrence, cfg model.RecurrenceConfig) error {
	switch r {
	case model.RecurrenceOnce, model.RecurrenceDaily, model.RecurrenceWeekly,
		model.RecurrenceMonthly, model.RecurrenceCustom:
	default:
		return errors.Validationf("unknown recurrence %q", r)
	}
	if r == model.RecurrenceOnce {
		return nil
	}
	if cfg.Hour != nil && (*cfg.Hour < 0 || *cfg.Hour > 23) {
		return errors.Validationf("recurrence hour %d out of range 0-23", *cfg.Hour)
	}
	if cfg.Minute != nil && (*cfg.Minute < 0 || *cfg.Minute > 59) {
		return errors.Validationf("recurrence minute %d out of range 0-59", *cfg.Minute)
	}
	if cfg.DayOfWeek != nil && (*cfg.DayOfWeek < 0 || *cfg.DayOfWeek > 6) {
		return errors.Validationf("recurrence day_of_week %d out of range 0-6", *cfg.DayOfWeek)
	}
	if cfg.DayOfMonth != nil && (*cfg.DayOfMonth < 1 || *cfg.DayOfMonth > 31) {
		return errors.Validationf("recurrence day_of_month %d out of range 1-31", *cfg.DayOfMonth)
	}
	if cfg.Interval < 0 {
		return errors.Validationf("recurrence interval %d must not be negative", cfg.Interval)
	}
	if _, err := location(cfg.Timezone); err != nil {
		return errors.Validationf("unknown timezone %q", cfg.Timezone)
	}
	if r == model.RecurrenceCustom {
		if cfg.Cron == "" {
			return errors.WithHint(
				errors.Validationf("CUSTOM recurrence requires a cron expression"),
				`set recurrence_config.cron, e.g. "0 20 * * 1-5"`,
			)
		}
		if _, err := cron.ParseStandard(cfg.Cron); err != nil {
			return errors.Validationf("invalid cron expression %q: %v", cfg.Cron, err)
		}
	}
	return nil
}

func location(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}

// atClock moves p forward by whole days and applies the configured
// hour and minute. Without either, the previous clock is kept exactly.
func atClock(p time.Time, days int, cfg model.RecurrenceConfig, loc *time.Location) time.Time {
	y, m, d := p.Date()
	hour, minute, sec, nsec := p.Hour(), p.Minute(), p.Second(), p.Nanosecond()
	if cfg.Hour != nil || cfg.Minute != nil {
		sec, nsec = 0, 0
		if cfg.Hour != nil {
			hour = *cfg.Hour
		}
		if cfg.Minute != nil {
			minute = *cfg.Minute
		}
	}
	return time.Date(y, m, d+days, hour, minute, sec, nsec, loc)
}

func monthly(p time.Time, n int, cfg model.RecurrenceConfig, loc *time.Location) time.Time {
	day := p.Day()
	if cfg.DayOfMonth != nil {
		day = *cfg.DayOfMonth
	}
	first := time.Date(p.Year(), p.Month()+time.Month(n), 1, 0, 0, 0, 0, loc)
	if last := daysIn(first.Year(), first.Month(), loc); day > last {
		day = last
	}
	anchored := time.Date(first.Year(), first.Month(), day, p.Hour(), p.Minute(), p.Second(), p.Nanosecond(), loc)
	return atClock(anchored, 0, cfg, loc)
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
