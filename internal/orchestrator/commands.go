// Package orchestrator is the single entry point for commands against the
// auto-invest core. Every command flows through the same pipeline:
// structural validation, idempotency check, domain dispatch, atomic commit.
package orchestrator

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/bluum-finance/autoinvest/internal/modules/lifeevents"
	"github.com/bluum-finance/autoinvest/internal/modules/policy"
	"github.com/bluum-finance/autoinvest/internal/modules/schedules"
)

// Kind tags a command variant.
type Kind string

const (
	KindCreateSchedule       Kind = "schedule.create"
	KindUpdateSchedule       Kind = "schedule.update"
	KindPauseSchedule        Kind = "schedule.pause"
	KindResumeSchedule       Kind = "schedule.resume"
	KindDeleteSchedule       Kind = "schedule.delete"
	KindCompleteSchedule     Kind = "schedule.complete"
	KindPutPolicy            Kind = "policy.put"
	KindValidatePortfolio    Kind = "policy.validate_portfolio"
	KindCreateLifeEvent      Kind = "life_event.create"
	KindUpdateLifeEvent      Kind = "life_event.update"
	KindDeleteLifeEvent      Kind = "life_event.delete"
	KindCreateFundingAccount Kind = "funding_account.create"
)

// Command is the tagged union over all operations the orchestrator accepts.
// Execute performs one exhaustive match over the concrete types.
type Command interface {
	CommandKind() Kind
	CommandAccount() string
	CommandKey() string
}

// Meta carries the fields every command shares: the target account and the
// optional idempotency key. The key never participates in the request
// signature; two retries with the same body must sign identically.
type Meta struct {
	AccountID      string `json:"account_id"`
	IdempotencyKey string `json:"-"`
}

// CommandAccount returns the target account id.
func (m Meta) CommandAccount() string { return m.AccountID }

// CommandKey returns the idempotency key, or "" when the caller supplied
// none.
func (m Meta) CommandKey() string { return m.IdempotencyKey }

// CreateSchedule creates a new auto-invest schedule.
type CreateSchedule struct {
	Meta
	PortfolioID     string              `json:"portfolio_id"`
	FundingSourceID string              `json:"funding_source_id"`
	Amount          decimal.Decimal     `json:"amount"`
	Currency        string              `json:"currency"`
	Frequency       schedules.Frequency `json:"frequency"`
	Timing          schedules.Timing    `json:"schedule"`
	AllocationRule  string              `json:"allocation_rule"`
	StartDate       string              `json:"start_date"`
}

func (CreateSchedule) CommandKind() Kind { return KindCreateSchedule }

// UpdateSchedule applies a partial update to a schedule.
type UpdateSchedule struct {
	Meta
	ScheduleID string          `json:"schedule_id"`
	Patch      schedules.Patch `json:"patch"`
}

func (UpdateSchedule) CommandKind() Kind { return KindUpdateSchedule }

// PauseSchedule pauses an active schedule.
type PauseSchedule struct {
	Meta
	ScheduleID string `json:"schedule_id"`
}

func (PauseSchedule) CommandKind() Kind { return KindPauseSchedule }

// ResumeSchedule resumes a paused schedule.
type ResumeSchedule struct {
	Meta
	ScheduleID string `json:"schedule_id"`
}

func (ResumeSchedule) CommandKind() Kind { return KindResumeSchedule }

// DeleteSchedule cancels a schedule. Logical delete: the row survives in
// status cancelled.
type DeleteSchedule struct {
	Meta
	ScheduleID string `json:"schedule_id"`
}

func (DeleteSchedule) CommandKind() Kind { return KindDeleteSchedule }

// CompleteSchedule marks a schedule completed. Issued by the external
// scheduler once all contributions are fulfilled; the core does not compute
// fulfillment itself.
type CompleteSchedule struct {
	Meta
	ScheduleID string `json:"schedule_id"`
}

func (CompleteSchedule) CommandKind() Kind { return KindCompleteSchedule }

// PutPolicy creates or replaces an account's investment policy statement.
// Full payload required; each accepted PUT becomes a new version.
type PutPolicy struct {
	Meta
	RiskProfile string                  `json:"risk_profile"`
	TimeHorizon string                  `json:"time_horizon"`
	Objectives  []string                `json:"investment_objectives"`
	Target      policy.TargetAllocation `json:"target_allocation"`
	Constraints policy.Constraints      `json:"constraints"`
}

func (PutPolicy) CommandKind() Kind { return KindPutPolicy }

// ValidatePortfolio checks a portfolio's actual allocation against the
// account's current policy. Read-only; never consults the idempotency
// ledger.
type ValidatePortfolio struct {
	Meta
	PortfolioID string                  `json:"portfolio_id"`
	Actual      policy.TargetAllocation `json:"actual_allocation"`
}

func (ValidatePortfolio) CommandKind() Kind { return KindValidatePortfolio }

// CreateLifeEvent creates a planned financial goal.
type CreateLifeEvent struct {
	Meta
	Name          string               `json:"name"`
	EventType     lifeevents.EventType `json:"event_type"`
	ExpectedDate  string               `json:"expected_date"`
	EstimatedCost decimal.Decimal      `json:"estimated_cost"`
	Currency      string               `json:"currency"`
	Recurring     bool                 `json:"recurring"`
	LinkedGoalID  string               `json:"linked_goal_id"`
	Notes         string               `json:"notes"`
}

func (CreateLifeEvent) CommandKind() Kind { return KindCreateLifeEvent }

// UpdateLifeEvent applies a partial update to a life event.
type UpdateLifeEvent struct {
	Meta
	EventID string           `json:"event_id"`
	Patch   lifeevents.Patch `json:"patch"`
}

func (UpdateLifeEvent) CommandKind() Kind { return KindUpdateLifeEvent }

// DeleteLifeEvent archives a life event. Soft delete, idempotent.
type DeleteLifeEvent struct {
	Meta
	EventID string `json:"event_id"`
}

func (DeleteLifeEvent) CommandKind() Kind { return KindDeleteLifeEvent }

// CreateFundingAccount links an external bank account.
type CreateFundingAccount struct {
	Meta
	Institution   string `json:"institution"`
	AccountNumber string `json:"account_number"`
	AccountType   string `json:"account_type"`
}

func (CreateFundingAccount) CommandKind() Kind { return KindCreateFundingAccount }

// signature derives the operation signature for idempotency bookkeeping:
// the command kind plus a hash of the canonical payload encoding. The same
// key resubmitted with a different body signs differently and is rejected
// as a conflict instead of replayed.
func signature(cmd Command) string {
	payload, err := json.Marshal(cmd)
	if err != nil {
		// Commands are plain data; marshaling cannot fail for any value
		// constructed by the request layer.
		payload = []byte(cmd.CommandAccount())
	}
	sum := sha256.Sum256(payload)
	return string(cmd.CommandKind()) + ":" + hex.EncodeToString(sum[:])
}

// ResultStatus describes how a command concluded.
type ResultStatus string

const (
	StatusCreated   ResultStatus = "created"
	StatusUpdated   ResultStatus = "updated"
	StatusNoContent ResultStatus = "no_content"
	StatusOK        ResultStatus = "ok" // read-only commands
)

// Result is the orchestrator's response envelope. Payload is the entity (or
// validation outcome) as canonical JSON; replays return the first committed
// payload byte for byte. Replayed is bookkeeping for callers that need it
// and is never serialized.
type Result struct {
	Status   ResultStatus    `json:"status" msgpack:"status"`
	Payload  json.RawMessage `json:"payload,omitempty" msgpack:"payload"`
	Replayed bool            `json:"-" msgpack:"-"`
}
