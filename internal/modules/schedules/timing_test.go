package schedules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNextOccurrenceDaily(t *testing.T) {
	next := NextOccurrence(FrequencyDaily, Timing{}, date(2026, time.March, 14))
	assert.Equal(t, date(2026, time.March, 15), next)
}

func TestNextOccurrenceWeekly(t *testing.T) {
	// 2026-03-09 is a Monday
	monday := date(2026, time.March, 9)

	tests := []struct {
		name    string
		weekday int
		want    time.Time
	}{
		{"later in the same week", int(time.Friday), date(2026, time.March, 13)},
		{"earlier weekday wraps to next week", int(time.Sunday), date(2026, time.March, 15)},
		{"same weekday lands a full week out", int(time.Monday), date(2026, time.March, 16)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := NextOccurrence(FrequencyWeekly, Timing{Weekday: &tt.weekday}, monday)
			assert.Equal(t, tt.want, next)
		})
	}
}

func TestNextOccurrenceWeeklyAlwaysWithinSevenDays(t *testing.T) {
	start := date(2026, time.January, 1)
	for wd := 0; wd <= 6; wd++ {
		for day := 0; day < 7; day++ {
			after := start.AddDate(0, 0, day)
			next := NextOccurrence(FrequencyWeekly, Timing{Weekday: &wd}, after)

			gap := int(next.Sub(after).Hours() / 24)
			assert.GreaterOrEqual(t, gap, 1)
			assert.LessOrEqual(t, gap, 7)
			assert.Equal(t, time.Weekday(wd), next.Weekday())
		}
	}
}

func TestNextOccurrenceBiweekly(t *testing.T) {
	// Biweekly is the weekly occurrence pushed one further week out
	monday := date(2026, time.March, 9)
	friday := int(time.Friday)

	next := NextOccurrence(FrequencyBiweekly, Timing{Weekday: &friday}, monday)
	assert.Equal(t, date(2026, time.March, 20), next)
	assert.Equal(t, time.Friday, next.Weekday())
}

func TestNextOccurrenceMonthly(t *testing.T) {
	tests := []struct {
		name  string
		day   int
		after time.Time
		want  time.Time
	}{
		{"later in the same month", 15, date(2026, time.March, 1), date(2026, time.March, 15)},
		{"same day rolls to next month", 15, date(2026, time.March, 15), date(2026, time.April, 15)},
		{"earlier day rolls to next month", 10, date(2026, time.March, 15), date(2026, time.April, 10)},
		{"day 31 clamps to 30-day month", 31, date(2026, time.March, 31), date(2026, time.April, 30)},
		{"day 31 clamps to february", 31, date(2026, time.January, 31), date(2026, time.February, 28)},
		{"day 29 in a leap february", 29, date(2028, time.February, 1), date(2028, time.February, 29)},
		{"december rolls into january", 31, date(2026, time.December, 31), date(2027, time.January, 31)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := NextOccurrence(FrequencyMonthly, Timing{DayOfMonth: &tt.day}, tt.after)
			assert.Equal(t, tt.want, next)
		})
	}
}

func TestNextOccurrenceIsStrictlyAfter(t *testing.T) {
	day := 15
	wd := int(time.Wednesday)
	after := date(2026, time.July, 15) // a Wednesday

	cases := []struct {
		freq   Frequency
		timing Timing
	}{
		{FrequencyDaily, Timing{}},
		{FrequencyWeekly, Timing{Weekday: &wd}},
		{FrequencyBiweekly, Timing{Weekday: &wd}},
		{FrequencyMonthly, Timing{DayOfMonth: &day}},
	}

	for _, c := range cases {
		next := NextOccurrence(c.freq, c.timing, after)
		assert.True(t, next.After(after), "%s occurrence must be strictly after the reference", c.freq)
	}
}

func TestNextOccurrenceIgnoresTimeOfDay(t *testing.T) {
	day := 20
	late := time.Date(2026, time.May, 10, 23, 59, 58, 0, time.UTC)

	next := NextOccurrence(FrequencyMonthly, Timing{DayOfMonth: &day}, late)
	assert.Equal(t, date(2026, time.May, 20), next)
}
