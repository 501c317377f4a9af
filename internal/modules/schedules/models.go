// Package schedules owns the auto-invest schedule lifecycle: the state
// machine over active/paused/completed/cancelled and the pure timing
// computation for the next contribution date.
package schedules

import (
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of an auto-invest schedule.
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether no further transition may leave this state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Frequency is the contribution cadence of a schedule.
type Frequency string

const (
	FrequencyDaily    Frequency = "daily"
	FrequencyWeekly   Frequency = "weekly"
	FrequencyBiweekly Frequency = "biweekly"
	FrequencyMonthly  Frequency = "monthly"
)

// Valid reports whether f is a known frequency value.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly:
		return true
	}
	return false
}

// Timing is the frequency-specific timing descriptor.
// Weekly and biweekly schedules anchor to a weekday (0 = Sunday ... 6 =
// Saturday); monthly schedules anchor to a day of month (1-31, clamped to
// the last day of shorter months). Daily schedules carry no descriptor.
type Timing struct {
	Weekday    *int `json:"weekday,omitempty"`
	DayOfMonth *int `json:"day,omitempty"`
}

// Schedule is an auto-invest schedule. Server-assigned identity, mutated only
// through the state machine, never physically deleted (delete = cancelled).
type Schedule struct {
	ID              string          `json:"schedule_id"`
	AccountID       string          `json:"account_id"`
	PortfolioID     string          `json:"portfolio_id"`
	FundingSourceID string          `json:"funding_source_id"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Frequency       Frequency       `json:"frequency"`
	Timing          Timing          `json:"schedule"`
	AllocationRule  string          `json:"allocation_rule"`
	Status          Status          `json:"status"`
	StartDate       string          `json:"start_date"` // YYYY-MM-DD
	CreatedAt       string          `json:"created_at"` // RFC 3339
	UpdatedAt       string          `json:"updated_at"` // RFC 3339
}

// Patch carries a partial update. Only non-nil fields overwrite the existing
// schedule; omitted fields retain their prior values.
type Patch struct {
	Amount         *decimal.Decimal `json:"amount,omitempty"`
	Frequency      *Frequency       `json:"frequency,omitempty"`
	Timing         *Timing          `json:"schedule,omitempty"`
	AllocationRule *string          `json:"allocation_rule,omitempty"`
	Status         *Status          `json:"status,omitempty"`
}

// HasEconomicChange reports whether the patch touches economic fields
// (amount, frequency, timing, allocation rule) as opposed to status alone.
func (p Patch) HasEconomicChange() bool {
	return p.Amount != nil || p.Frequency != nil || p.Timing != nil || p.AllocationRule != nil
}
