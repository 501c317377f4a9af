package orchestrator

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bluum-finance/autoinvest/internal/database"
	"github.com/bluum-finance/autoinvest/internal/domain"
	"github.com/bluum-finance/autoinvest/internal/modules/accounts"
	"github.com/bluum-finance/autoinvest/internal/modules/idempotency"
	"github.com/bluum-finance/autoinvest/internal/modules/lifeevents"
	"github.com/bluum-finance/autoinvest/internal/modules/policy"
	"github.com/bluum-finance/autoinvest/internal/modules/schedules"
)

// errLostRace signals that a concurrent execution committed the same
// idempotency key first. The losing transaction rolls back and replays the
// winner's result.
var errLostRace = errors.New("idempotency key committed by concurrent execution")

// Orchestrator executes commands: structural validation, idempotency check,
// domain dispatch, then an atomic commit of the entity write together with
// the idempotency ledger write. No command has a visible partial effect.
type Orchestrator struct {
	db        *database.DB
	schedules *schedules.Repository
	policies  *policy.Repository
	events    *lifeevents.Repository
	accounts  *accounts.Repository
	ledger    *idempotency.Ledger
	log       zerolog.Logger
	now       func() time.Time
}

// New creates a command orchestrator over the core database.
func New(
	db *database.DB,
	scheduleRepo *schedules.Repository,
	policyRepo *policy.Repository,
	eventRepo *lifeevents.Repository,
	accountRepo *accounts.Repository,
	ledger *idempotency.Ledger,
	log zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		db:        db,
		schedules: scheduleRepo,
		policies:  policyRepo,
		events:    eventRepo,
		accounts:  accountRepo,
		ledger:    ledger,
		log:       log.With().Str("component", "orchestrator").Logger(),
		now:       time.Now,
	}
}

// SetClock overrides the time source. Used by tests.
func (o *Orchestrator) SetClock(now func() time.Time) {
	o.now = now
}

// Execute runs one command to completion. Processing order is fixed:
//
//  1. structural validation (fail-fast, first bad field only)
//  2. idempotency lookup for mutating commands carrying a key
//  3. domain dispatch
//  4. atomic commit: entity write + ledger write in one transaction
//
// A context already cancelled before step 4 aborts without a ledger record,
// so a retry with the same key runs fresh.
func (o *Orchestrator) Execute(ctx context.Context, cmd Command) (*Result, error) {
	if err := o.validate(cmd); err != nil {
		return nil, err
	}

	sig := signature(cmd)
	key := cmd.CommandKey()
	if _, readOnly := cmd.(ValidatePortfolio); readOnly {
		key = ""
	}

	if key != "" {
		rec, err := o.ledger.Get(key, sig)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			o.log.Debug().Str("key", key).Str("kind", string(cmd.CommandKind())).Msg("Replaying cached result")
			return replay(rec)
		}
	}

	res, write, err := o.dispatch(cmd)
	if err != nil {
		return nil, err
	}

	if write == nil {
		return res, nil
	}

	var blob []byte
	if key != "" {
		blob, err = idempotency.Encode(res)
		if err != nil {
			return nil, err
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, &domain.StorageError{Op: "commit " + string(cmd.CommandKind()), Err: err}
	}

	err = database.WithTransaction(o.db.Conn(), func(tx *sql.Tx) error {
		if err := write(tx); err != nil {
			return err
		}
		if key != "" {
			inserted, err := o.ledger.PutTx(tx, key, sig, blob)
			if err != nil {
				return err
			}
			if !inserted {
				return errLostRace
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errLostRace) {
			rec, lerr := o.ledger.Get(key, sig)
			if lerr != nil {
				return nil, lerr
			}
			if rec != nil {
				return replay(rec)
			}
			return nil, &domain.IdempotencyConflict{Key: key}
		}
		if isDomainError(err) {
			return nil, err
		}
		return nil, &domain.StorageError{Op: "commit " + string(cmd.CommandKind()), Err: err}
	}

	return res, nil
}

// dispatch is the single exhaustive match over the command union. It returns
// the prepared result plus the write to run inside the commit transaction;
// a nil write means the command is read-only.
func (o *Orchestrator) dispatch(cmd Command) (*Result, func(*sql.Tx) error, error) {
	switch c := cmd.(type) {
	case CreateSchedule:
		return o.createSchedule(c)
	case UpdateSchedule:
		return o.patchSchedule(c.Meta, c.ScheduleID, c.Patch, StatusUpdated)
	case PauseSchedule:
		return o.transitionSchedule(c.Meta, c.ScheduleID, schedules.EventPause, StatusUpdated)
	case ResumeSchedule:
		return o.transitionSchedule(c.Meta, c.ScheduleID, schedules.EventResume, StatusUpdated)
	case DeleteSchedule:
		return o.transitionSchedule(c.Meta, c.ScheduleID, schedules.EventCancel, StatusNoContent)
	case CompleteSchedule:
		return o.transitionSchedule(c.Meta, c.ScheduleID, schedules.EventComplete, StatusUpdated)
	case PutPolicy:
		return o.putPolicy(c)
	case ValidatePortfolio:
		return o.validatePortfolio(c)
	case CreateLifeEvent:
		return o.createLifeEvent(c)
	case UpdateLifeEvent:
		return o.patchLifeEvent(c)
	case DeleteLifeEvent:
		return o.archiveLifeEvent(c)
	case CreateFundingAccount:
		return o.createFundingAccount(c)
	}
	return nil, nil, &domain.ValidationError{Field: "command", Reason: "unknown command kind"}
}

func (o *Orchestrator) createSchedule(c CreateSchedule) (*Result, func(*sql.Tx) error, error) {
	now := o.now().UTC().Format(time.RFC3339)

	s := &schedules.Schedule{
		ID:              uuid.New().String(),
		AccountID:       c.AccountID,
		PortfolioID:     c.PortfolioID,
		FundingSourceID: c.FundingSourceID,
		Amount:          c.Amount,
		Currency:        defaultCurrency(c.Currency),
		Frequency:       c.Frequency,
		Timing:          c.Timing,
		AllocationRule:  c.AllocationRule,
		Status:          schedules.StatusActive,
		StartDate:       c.StartDate,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if s.AllocationRule == "" {
		s.AllocationRule = "policy"
	}

	res, err := resultFor(StatusCreated, s)
	if err != nil {
		return nil, nil, err
	}
	return res, func(tx *sql.Tx) error { return o.schedules.InsertTx(tx, s) }, nil
}

func (o *Orchestrator) patchSchedule(meta Meta, id string, patch schedules.Patch, status ResultStatus) (*Result, func(*sql.Tx) error, error) {
	s, err := o.schedules.Get(meta.AccountID, id)
	if err != nil {
		return nil, nil, err
	}

	if err := schedules.ApplyPatch(s, patch); err != nil {
		return nil, nil, err
	}
	s.UpdatedAt = o.now().UTC().Format(time.RFC3339)

	res, err := resultFor(status, s)
	if err != nil {
		return nil, nil, err
	}
	return res, func(tx *sql.Tx) error { return o.schedules.UpdateTx(tx, s) }, nil
}

func (o *Orchestrator) transitionSchedule(meta Meta, id string, ev schedules.Event, status ResultStatus) (*Result, func(*sql.Tx) error, error) {
	s, err := o.schedules.Get(meta.AccountID, id)
	if err != nil {
		return nil, nil, err
	}

	next, err := schedules.Transition(s.Status, ev)
	if err != nil {
		return nil, nil, err
	}
	s.Status = next
	s.UpdatedAt = o.now().UTC().Format(time.RFC3339)

	var res *Result
	if status == StatusNoContent {
		res = &Result{Status: StatusNoContent}
	} else {
		res, err = resultFor(status, s)
		if err != nil {
			return nil, nil, err
		}
	}
	return res, func(tx *sql.Tx) error { return o.schedules.UpdateTx(tx, s) }, nil
}

func (o *Orchestrator) putPolicy(c PutPolicy) (*Result, func(*sql.Tx) error, error) {
	if err := policy.ValidateTargetAllocation(c.Target); err != nil {
		return nil, nil, err
	}

	stmt := &policy.Statement{
		AccountID:   c.AccountID,
		RiskProfile: c.RiskProfile,
		TimeHorizon: c.TimeHorizon,
		Objectives:  c.Objectives,
		Target:      c.Target,
		Constraints: c.Constraints,
		CreatedAt:   o.now().UTC().Format(time.RFC3339),
	}

	// Pre-assign the version for the result payload; the insert re-derives
	// it under the transaction and the primary key rejects a lost race.
	current, err := o.policies.Current(c.AccountID)
	var notFound *domain.NotFound
	switch {
	case err == nil:
		stmt.Version = current.Version + 1
	case errors.As(err, &notFound):
		stmt.Version = 1
	default:
		return nil, nil, err
	}

	res, err := resultFor(StatusCreated, stmt)
	if err != nil {
		return nil, nil, err
	}
	return res, func(tx *sql.Tx) error { return o.policies.InsertTx(tx, stmt) }, nil
}

func (o *Orchestrator) validatePortfolio(c ValidatePortfolio) (*Result, func(*sql.Tx) error, error) {
	stmt, err := o.policies.Current(c.AccountID)
	if err != nil {
		return nil, nil, err
	}

	conformance := policy.ValidatePortfolioAgainstPolicy(c.Actual, *stmt)
	res, err := resultFor(StatusOK, conformance)
	if err != nil {
		return nil, nil, err
	}
	return res, nil, nil
}

func (o *Orchestrator) createLifeEvent(c CreateLifeEvent) (*Result, func(*sql.Tx) error, error) {
	now := o.now().UTC().Format(time.RFC3339)

	ev := &lifeevents.LifeEvent{
		ID:            uuid.New().String(),
		AccountID:     c.AccountID,
		Name:          c.Name,
		EventType:     c.EventType,
		ExpectedDate:  c.ExpectedDate,
		EstimatedCost: c.EstimatedCost,
		Currency:      defaultCurrency(c.Currency),
		Recurring:     c.Recurring,
		LinkedGoalID:  c.LinkedGoalID,
		Notes:         c.Notes,
		Status:        lifeevents.StatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	res, err := resultFor(StatusCreated, ev)
	if err != nil {
		return nil, nil, err
	}
	return res, func(tx *sql.Tx) error { return o.events.InsertTx(tx, ev) }, nil
}

func (o *Orchestrator) patchLifeEvent(c UpdateLifeEvent) (*Result, func(*sql.Tx) error, error) {
	ev, err := o.events.Get(c.AccountID, c.EventID)
	if err != nil {
		return nil, nil, err
	}

	if err := lifeevents.ApplyPatch(ev, c.Patch); err != nil {
		return nil, nil, err
	}
	ev.UpdatedAt = o.now().UTC().Format(time.RFC3339)

	res, err := resultFor(StatusUpdated, ev)
	if err != nil {
		return nil, nil, err
	}
	return res, func(tx *sql.Tx) error { return o.events.UpdateTx(tx, ev) }, nil
}

func (o *Orchestrator) archiveLifeEvent(c DeleteLifeEvent) (*Result, func(*sql.Tx) error, error) {
	ev, err := o.events.Get(c.AccountID, c.EventID)
	if err != nil {
		return nil, nil, err
	}

	res := &Result{Status: StatusNoContent}
	if !lifeevents.Archive(ev) {
		// Already archived: no-op success, nothing to write
		return res, nil, nil
	}
	ev.UpdatedAt = o.now().UTC().Format(time.RFC3339)

	return res, func(tx *sql.Tx) error { return o.events.UpdateTx(tx, ev) }, nil
}

func (o *Orchestrator) createFundingAccount(c CreateFundingAccount) (*Result, func(*sql.Tx) error, error) {
	fa := &accounts.FundingAccount{
		ID:                 uuid.New().String(),
		AccountID:          c.AccountID,
		Institution:        c.Institution,
		AccountNumberMask:  accounts.Mask(c.AccountNumber),
		AccountType:        c.AccountType,
		VerificationStatus: accounts.VerificationPending,
		CreatedAt:          o.now().UTC().Format(time.RFC3339),
	}

	res, err := resultFor(StatusCreated, fa)
	if err != nil {
		return nil, nil, err
	}
	return res, func(tx *sql.Tx) error { return o.accounts.InsertTx(tx, fa) }, nil
}

// resultFor builds a result with the entity as canonical JSON payload.
func resultFor(status ResultStatus, payload interface{}) (*Result, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, &domain.StorageError{Op: "encode result payload", Err: err}
	}
	return &Result{Status: status, Payload: raw}, nil
}

// replay decodes a cached result and marks it as served from the ledger.
// The payload is the first committed attempt's, byte for byte.
func replay(rec *idempotency.Record) (*Result, error) {
	var res Result
	if err := idempotency.Decode(rec.Result, &res); err != nil {
		return nil, &domain.StorageError{Op: "decode cached result", Err: err}
	}
	res.Replayed = true
	return &res, nil
}

func defaultCurrency(code string) string {
	if code == "" {
		return "USD"
	}
	return code
}

// isDomainError reports whether err belongs to the domain taxonomy and
// should pass through the orchestrator boundary untranslated.
func isDomainError(err error) bool {
	var (
		validation *domain.ValidationError
		allocation *domain.AllocationError
		transition *domain.InvalidTransition
		terminal   *domain.ScheduleTerminal
		conflict   *domain.IdempotencyConflict
		notFound   *domain.NotFound
		storage    *domain.StorageError
	)
	return errors.As(err, &validation) ||
		errors.As(err, &allocation) ||
		errors.As(err, &transition) ||
		errors.As(err, &terminal) ||
		errors.As(err, &conflict) ||
		errors.As(err, &notFound) ||
		errors.As(err, &storage)
}
