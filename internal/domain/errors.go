// Package domain defines the shared error taxonomy for the auto-invest core.
// All domain errors are returned as values and translated to HTTP status codes
// in exactly one place (HTTPStatus); nothing is thrown past the orchestrator.
package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ValidationError reports the first missing or malformed required field.
// Structural validation is fail-fast: one field per error, checked in
// declaration order, always before any side effect.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on field %q: %s", e.Field, e.Reason)
}

// AllocationError reports a target allocation that does not sum to 100%
// within tolerance.
type AllocationError struct {
	Sum       float64
	Tolerance float64
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("target allocation sums to %.4f%%, must equal 100%% within ±%.2f", e.Sum, e.Tolerance)
}

// InvalidTransition reports a state machine rejecting a requested move.
type InvalidTransition struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidTransition) Error() string {
	return fmt.Sprintf("invalid %s transition from %q to %q", e.Entity, e.From, e.To)
}

// ScheduleTerminal reports a mutation attempted on a completed or cancelled
// schedule.
type ScheduleTerminal struct {
	ScheduleID string
	Status     string
}

func (e *ScheduleTerminal) Error() string {
	return fmt.Sprintf("schedule %s is %s and can no longer be modified", e.ScheduleID, e.Status)
}

// IdempotencyConflict reports an idempotency key reused with a different
// request signature.
type IdempotencyConflict struct {
	Key string
}

func (e *IdempotencyConflict) Error() string {
	return fmt.Sprintf("idempotency key %q was already used with a different request", e.Key)
}

// NotFound reports an entity id unresolvable for the given account.
type NotFound struct {
	Entity string
	ID     string
}

func (e *NotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// StorageError wraps a persistence collaborator failure. Retryable by the
// caller; never swallowed.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// HTTPStatus maps a domain error to its caller-facing HTTP status code.
// Unknown errors map to 500.
func HTTPStatus(err error) int {
	var (
		validation *ValidationError
		allocation *AllocationError
		transition *InvalidTransition
		terminal   *ScheduleTerminal
		conflict   *IdempotencyConflict
		notFound   *NotFound
	)
	switch {
	case errors.As(err, &validation), errors.As(err, &allocation):
		return http.StatusBadRequest
	case errors.As(err, &conflict):
		return http.StatusConflict
	case errors.As(err, &transition), errors.As(err, &terminal):
		return http.StatusUnprocessableEntity
	case errors.As(err, &notFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// ErrorCode returns the machine-readable code for a domain error.
func ErrorCode(err error) string {
	var (
		validation *ValidationError
		allocation *AllocationError
		transition *InvalidTransition
		terminal   *ScheduleTerminal
		conflict   *IdempotencyConflict
		notFound   *NotFound
	)
	switch {
	case errors.As(err, &validation):
		return "validation_error"
	case errors.As(err, &allocation):
		return "allocation_error"
	case errors.As(err, &transition):
		return "invalid_transition"
	case errors.As(err, &terminal):
		return "schedule_terminal"
	case errors.As(err, &conflict):
		return "idempotency_conflict"
	case errors.As(err, &notFound):
		return "not_found"
	default:
		return "storage_error"
	}
}

// Field extracts the offending field name from a validation error, or "".
func Field(err error) string {
	var validation *ValidationError
	if errors.As(err, &validation) {
		return validation.Field
	}
	return ""
}
