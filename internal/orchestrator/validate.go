package orchestrator

import (
	"time"

	"github.com/Rhymond/go-money"

	"github.com/bluum-finance/autoinvest/internal/domain"
	"github.com/bluum-finance/autoinvest/internal/modules/lifeevents"
	"github.com/bluum-finance/autoinvest/internal/modules/schedules"
)

const dateLayout = "2006-01-02"

// validate performs structural validation: required fields present and
// well-typed, reported fail-fast one field at a time in declaration order.
// account_id is always checked first, before any domain logic runs.
func (o *Orchestrator) validate(cmd Command) error {
	if cmd.CommandAccount() == "" {
		return missing("account_id")
	}

	switch c := cmd.(type) {
	case CreateSchedule:
		return o.validateCreateSchedule(c)
	case UpdateSchedule:
		if c.ScheduleID == "" {
			return missing("schedule_id")
		}
		return validateSchedulePatch(c.Patch)
	case PauseSchedule:
		if c.ScheduleID == "" {
			return missing("schedule_id")
		}
	case ResumeSchedule:
		if c.ScheduleID == "" {
			return missing("schedule_id")
		}
	case DeleteSchedule:
		if c.ScheduleID == "" {
			return missing("schedule_id")
		}
	case CompleteSchedule:
		if c.ScheduleID == "" {
			return missing("schedule_id")
		}
	case PutPolicy:
		return validatePutPolicy(c)
	case ValidatePortfolio:
		if c.PortfolioID == "" {
			return missing("portfolio_id")
		}
	case CreateLifeEvent:
		return validateCreateLifeEvent(c)
	case UpdateLifeEvent:
		if c.EventID == "" {
			return missing("event_id")
		}
		return validateLifeEventPatch(c.Patch)
	case DeleteLifeEvent:
		if c.EventID == "" {
			return missing("event_id")
		}
	case CreateFundingAccount:
		return validateCreateFundingAccount(c)
	}

	return nil
}

func (o *Orchestrator) validateCreateSchedule(c CreateSchedule) error {
	if c.PortfolioID == "" {
		return missing("portfolio_id")
	}
	if c.FundingSourceID == "" {
		return missing("funding_source_id")
	}
	if !c.Amount.IsPositive() {
		return invalid("amount", "must be a positive decimal")
	}
	if err := validateCurrency(c.Currency); err != nil {
		return err
	}
	if !c.Frequency.Valid() {
		return invalid("frequency", "must be one of daily, weekly, biweekly, monthly")
	}
	if err := validateTiming(c.Frequency, c.Timing); err != nil {
		return err
	}
	if c.StartDate == "" {
		return missing("start_date")
	}
	start, err := time.Parse(dateLayout, c.StartDate)
	if err != nil {
		return invalid("start_date", "must be a YYYY-MM-DD date")
	}
	now := o.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if start.Before(today) {
		return invalid("start_date", "must not be in the past")
	}
	return nil
}

// validateTiming cross-checks the timing descriptor against the frequency at
// creation, where both are always present together.
func validateTiming(freq schedules.Frequency, timing schedules.Timing) error {
	switch freq {
	case schedules.FrequencyWeekly, schedules.FrequencyBiweekly:
		if timing.Weekday == nil {
			return missing("schedule.weekday")
		}
		if *timing.Weekday < 0 || *timing.Weekday > 6 {
			return invalid("schedule.weekday", "must be between 0 (Sunday) and 6 (Saturday)")
		}
	case schedules.FrequencyMonthly:
		if timing.DayOfMonth == nil {
			return missing("schedule.day")
		}
		if *timing.DayOfMonth < 1 || *timing.DayOfMonth > 31 {
			return invalid("schedule.day", "must be between 1 and 31")
		}
	}
	return nil
}

// validateSchedulePatch checks only the fields the patch provides; a patch
// may legally change frequency and timing independently, so each is checked
// on its own.
func validateSchedulePatch(p schedules.Patch) error {
	if p.Amount != nil && !p.Amount.IsPositive() {
		return invalid("amount", "must be a positive decimal")
	}
	if p.Frequency != nil && !p.Frequency.Valid() {
		return invalid("frequency", "must be one of daily, weekly, biweekly, monthly")
	}
	if p.Timing != nil {
		if p.Timing.Weekday != nil && (*p.Timing.Weekday < 0 || *p.Timing.Weekday > 6) {
			return invalid("schedule.weekday", "must be between 0 (Sunday) and 6 (Saturday)")
		}
		if p.Timing.DayOfMonth != nil && (*p.Timing.DayOfMonth < 1 || *p.Timing.DayOfMonth > 31) {
			return invalid("schedule.day", "must be between 1 and 31")
		}
	}
	if p.Status != nil && !p.Status.Valid() {
		return invalid("status", "must be one of active, paused, completed, cancelled")
	}
	return nil
}

func validatePutPolicy(c PutPolicy) error {
	if c.RiskProfile == "" {
		return missing("risk_profile")
	}
	if c.TimeHorizon == "" {
		return missing("time_horizon")
	}
	if len(c.Objectives) == 0 {
		return missing("investment_objectives")
	}
	if c.Constraints.MaxDriftPct != nil && *c.Constraints.MaxDriftPct <= 0 {
		return invalid("constraints.max_drift_pct", "must be positive when provided")
	}
	// The 100%-sum rule is the allocation validator's concern, applied at
	// dispatch so write-time and read-time validation share one code path.
	return nil
}

func validateCreateLifeEvent(c CreateLifeEvent) error {
	if c.Name == "" {
		return missing("name")
	}
	if !c.EventType.Valid() {
		return invalid("event_type", "unknown event type")
	}
	if c.ExpectedDate == "" {
		return missing("expected_date")
	}
	if _, err := time.Parse(dateLayout, c.ExpectedDate); err != nil {
		return invalid("expected_date", "must be a YYYY-MM-DD date")
	}
	if !c.EstimatedCost.IsPositive() {
		return invalid("estimated_cost", "must be a positive decimal")
	}
	return validateCurrency(c.Currency)
}

func validateLifeEventPatch(p lifeevents.Patch) error {
	if p.Name != nil && *p.Name == "" {
		return invalid("name", "must not be empty")
	}
	if p.EventType != nil && !p.EventType.Valid() {
		return invalid("event_type", "unknown event type")
	}
	if p.ExpectedDate != nil {
		if _, err := time.Parse(dateLayout, *p.ExpectedDate); err != nil {
			return invalid("expected_date", "must be a YYYY-MM-DD date")
		}
	}
	if p.EstimatedCost != nil && !p.EstimatedCost.IsPositive() {
		return invalid("estimated_cost", "must be a positive decimal")
	}
	if p.Currency != nil {
		if err := validateCurrency(*p.Currency); err != nil {
			return err
		}
	}
	if p.Status != nil && !p.Status.Valid() {
		return invalid("status", "must be one of active, completed, archived")
	}
	return nil
}

func validateCreateFundingAccount(c CreateFundingAccount) error {
	if c.Institution == "" {
		return missing("institution")
	}
	if c.AccountNumber == "" {
		return missing("account_number")
	}
	if c.AccountType != "checking" && c.AccountType != "savings" {
		return invalid("account_type", "must be checking or savings")
	}
	return nil
}

// validateCurrency accepts an empty code (the USD default is applied at
// dispatch) and otherwise requires a known ISO 4217 code.
func validateCurrency(code string) error {
	if code == "" {
		return nil
	}
	if money.GetCurrency(code) == nil {
		return invalid("currency", "must be a valid ISO 4217 currency code")
	}
	return nil
}

func missing(field string) error {
	return &domain.ValidationError{Field: field, Reason: "required field is missing"}
}

func invalid(field, reason string) error {
	return &domain.ValidationError{Field: field, Reason: reason}
}
