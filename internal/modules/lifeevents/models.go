// Package lifeevents owns planned financial goals and their lifecycle:
// active on creation, explicitly completed, archived on delete.
package lifeevents

import (
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a life event.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusArchived  Status = "archived"
)

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusArchived:
		return true
	}
	return false
}

// EventType classifies a life event.
type EventType string

const (
	TypeCollege       EventType = "college"
	TypeWedding       EventType = "wedding"
	TypeHomePurchase  EventType = "home_purchase"
	TypeRetirement    EventType = "retirement"
	TypeMajorPurchase EventType = "major_purchase"
	TypeCareerChange  EventType = "career_change"
	TypeCustom        EventType = "custom"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case TypeCollege, TypeWedding, TypeHomePurchase, TypeRetirement,
		TypeMajorPurchase, TypeCareerChange, TypeCustom:
		return true
	}
	return false
}

// LifeEvent is a planned financial goal. LinkedGoalID is a weak reference:
// the referenced goal's existence is the owning collaborator's concern, never
// checked here.
type LifeEvent struct {
	ID            string          `json:"event_id"`
	AccountID     string          `json:"account_id"`
	Name          string          `json:"name"`
	EventType     EventType       `json:"event_type"`
	ExpectedDate  string          `json:"expected_date"` // YYYY-MM-DD
	EstimatedCost decimal.Decimal `json:"estimated_cost"`
	Currency      string          `json:"currency"`
	Recurring     bool            `json:"recurring"`
	LinkedGoalID  string          `json:"linked_goal_id,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	Status        Status          `json:"status"`
	CreatedAt     string          `json:"created_at"` // RFC 3339
	UpdatedAt     string          `json:"updated_at"` // RFC 3339
}

// Patch carries a partial update. Only non-nil fields overwrite the existing
// event; omitted fields retain their prior values.
type Patch struct {
	Name          *string          `json:"name,omitempty"`
	EventType     *EventType       `json:"event_type,omitempty"`
	ExpectedDate  *string          `json:"expected_date,omitempty"`
	EstimatedCost *decimal.Decimal `json:"estimated_cost,omitempty"`
	Currency      *string          `json:"currency,omitempty"`
	Recurring     *bool            `json:"recurring,omitempty"`
	LinkedGoalID  *string          `json:"linked_goal_id,omitempty"`
	Notes         *string          `json:"notes,omitempty"`
	Status        *Status          `json:"status,omitempty"`
}
