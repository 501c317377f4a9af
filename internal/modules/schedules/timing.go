package schedules

import (
	"time"
)

// NextOccurrence computes the next contribution date strictly after the
// reference date. Pure and deterministic given (frequency, timing, after).
//
//   - daily: the next calendar day.
//   - weekly: the next date matching the anchored weekday, 1-7 days out.
//   - biweekly: the weekly occurrence pushed one further week, 8-14 days out,
//     treating the reference date as the prior occurrence.
//   - monthly: the next date matching the anchored day-of-month, clamped to
//     the last day of months too short to contain it (day 31 in a 30-day
//     month resolves to day 30).
//
// Callers pass the prior occurrence (or the start date) as the reference.
func NextOccurrence(freq Frequency, timing Timing, after time.Time) time.Time {
	after = truncateToDay(after)

	switch freq {
	case FrequencyDaily:
		return after.AddDate(0, 0, 1)

	case FrequencyWeekly:
		return nextWeekday(after, anchorWeekday(timing, after))

	case FrequencyBiweekly:
		return nextWeekday(after, anchorWeekday(timing, after)).AddDate(0, 0, 7)

	case FrequencyMonthly:
		return nextMonthDay(after, anchorDayOfMonth(timing, after))
	}

	// Unknown frequency is rejected by validation before reaching here
	return after.AddDate(0, 0, 1)
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// anchorWeekday resolves the schedule's weekday anchor, defaulting to the
// reference date's weekday when the descriptor omits one.
func anchorWeekday(timing Timing, after time.Time) time.Weekday {
	if timing.Weekday != nil {
		return time.Weekday(*timing.Weekday % 7)
	}
	return after.Weekday()
}

// anchorDayOfMonth resolves the schedule's day-of-month anchor, defaulting to
// the reference date's day when the descriptor omits one.
func anchorDayOfMonth(timing Timing, after time.Time) int {
	if timing.DayOfMonth != nil {
		return *timing.DayOfMonth
	}
	return after.Day()
}

// nextWeekday returns the next date with the given weekday strictly after t.
func nextWeekday(t time.Time, wd time.Weekday) time.Time {
	days := (int(wd) - int(t.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	return t.AddDate(0, 0, days)
}

// nextMonthDay returns the next date with the given day-of-month strictly
// after t, clamping to the last day of months shorter than the target day.
// The following month is derived from year/month components, never by adding
// a month to the full date: AddDate normalizes overflow (Jan 31 + 1 month is
// Mar 3) and would skip short months entirely.
func nextMonthDay(t time.Time, day int) time.Time {
	candidate := clampToMonth(t.Year(), t.Month(), day, t.Location())
	if candidate.After(t) {
		return candidate
	}

	year, month := t.Year(), t.Month()+1
	if month > time.December {
		year, month = year+1, time.January
	}
	return clampToMonth(year, month, day, t.Location())
}

// clampToMonth builds a date in the given month, clamping the day to the
// month's length.
func clampToMonth(year int, month time.Month, day int, loc *time.Location) time.Time {
	last := daysIn(year, month)
	if day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}

// daysIn returns the number of days in a month.
func daysIn(year int, month time.Month) int {
	// Day 0 of the next month normalizes to the last day of this month
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
