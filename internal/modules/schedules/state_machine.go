package schedules

import (
	"github.com/bluum-finance/autoinvest/internal/domain"
)

// Event is a state machine input.
type Event string

const (
	EventPause    Event = "pause"
	EventResume   Event = "resume"
	EventCancel   Event = "cancel"
	EventComplete Event = "complete" // signaled by the external scheduler, not computed here
)

// transitions is the full transition table. A (state, event) pair absent from
// the table is an invalid transition. Terminal states have no outgoing edges.
var transitions = map[Status]map[Event]Status{
	StatusActive: {
		EventPause:    StatusPaused,
		EventCancel:   StatusCancelled,
		EventComplete: StatusCompleted,
	},
	StatusPaused: {
		EventResume: StatusActive,
		EventCancel: StatusCancelled,
	},
}

// Transition applies an event to the current status and returns the new
// status, or InvalidTransition when the table has no such edge.
func Transition(current Status, ev Event) (Status, error) {
	if next, ok := transitions[current][ev]; ok {
		return next, nil
	}
	return current, &domain.InvalidTransition{
		Entity: "schedule",
		From:   string(current),
		To:     string(ev),
	}
}

// CanReach reports whether target is reachable from current by a single
// event. Used to validate an explicit status value in a PATCH payload.
func CanReach(current, target Status) bool {
	for _, next := range transitions[current] {
		if next == target {
			return true
		}
	}
	return false
}

// ApplyPatch merges a partial update onto a schedule in place.
//
// Economic fields (amount, frequency, timing, allocation rule) may only
// change while the schedule is non-terminal; a terminal schedule rejects the
// whole patch with ScheduleTerminal. An explicit status in the patch must be
// reachable from the current status per the transition table; restating the
// current status is a no-op, not an error.
func ApplyPatch(s *Schedule, p Patch) error {
	if s.Status.IsTerminal() {
		return &domain.ScheduleTerminal{ScheduleID: s.ID, Status: string(s.Status)}
	}

	if p.Status != nil && *p.Status != s.Status {
		if !p.Status.Valid() || !CanReach(s.Status, *p.Status) {
			return &domain.InvalidTransition{
				Entity: "schedule",
				From:   string(s.Status),
				To:     string(*p.Status),
			}
		}
	}

	if p.Amount != nil {
		s.Amount = *p.Amount
	}
	if p.Frequency != nil {
		s.Frequency = *p.Frequency
	}
	if p.Timing != nil {
		s.Timing = *p.Timing
	}
	if p.AllocationRule != nil {
		s.AllocationRule = *p.AllocationRule
	}
	if p.Status != nil {
		s.Status = *p.Status
	}

	return nil
}
