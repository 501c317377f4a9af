package lifeevents

import (
	"github.com/bluum-finance/autoinvest/internal/domain"
)

// ApplyPatch merges a partial update onto a life event in place. Only
// provided fields overwrite; omitted fields keep their prior values.
//
// Status moves are limited to active → completed; archiving goes through
// Archive. An archived event rejects all updates.
func ApplyPatch(ev *LifeEvent, p Patch) error {
	if ev.Status == StatusArchived {
		return &domain.InvalidTransition{
			Entity: "life_event",
			From:   string(StatusArchived),
			To:     "updated",
		}
	}

	if p.Status != nil && *p.Status != ev.Status {
		if !(ev.Status == StatusActive && *p.Status == StatusCompleted) {
			return &domain.InvalidTransition{
				Entity: "life_event",
				From:   string(ev.Status),
				To:     string(*p.Status),
			}
		}
	}

	if p.Name != nil {
		ev.Name = *p.Name
	}
	if p.EventType != nil {
		ev.EventType = *p.EventType
	}
	if p.ExpectedDate != nil {
		ev.ExpectedDate = *p.ExpectedDate
	}
	if p.EstimatedCost != nil {
		ev.EstimatedCost = *p.EstimatedCost
	}
	if p.Currency != nil {
		ev.Currency = *p.Currency
	}
	if p.Recurring != nil {
		ev.Recurring = *p.Recurring
	}
	if p.LinkedGoalID != nil {
		ev.LinkedGoalID = *p.LinkedGoalID
	}
	if p.Notes != nil {
		ev.Notes = *p.Notes
	}
	if p.Status != nil {
		ev.Status = *p.Status
	}

	return nil
}

// Archive soft-deletes a life event. Archiving an already-archived event is
// a no-op success, never an error.
//
// Returns true when the event actually changed state.
func Archive(ev *LifeEvent) bool {
	if ev.Status == StatusArchived {
		return false
	}
	ev.Status = StatusArchived
	return true
}
