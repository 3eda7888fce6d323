package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type EventStatus string

const (
	EventComingSoon EventStatus = "coming_soon"
	EventLive       EventStatus = "live"
	EventSoldOut    EventStatus = "sold_out"
	EventExpired    EventStatus = "expired"
)

// Valid reports whether s is one of the known lifecycle states.
func (s EventStatus) Valid() bool {
	switch s {
	case EventComingSoon, EventLive, EventSoldOut, EventExpired:
		return true
	}
	return false
}

// Bookable reports whether new auto-book requests may still target an event in this state.
func (s EventStatus) Bookable() bool {
	return s == EventComingSoon || s == EventLive
}

type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID                string          `bun:"id,pk" json:"id"`
	Name              string          `bun:"name,notnull" json:"name"`
	Category          string          `bun:"category" json:"category"`
	Venue             string          `bun:"venue" json:"venue"`
	City              string          `bun:"city" json:"city"`
	EventDate         time.Time       `bun:"event_date,nullzero" json:"event_date,omitempty"`
	EventURL          string          `bun:"event_url,nullzero" json:"event_url,omitempty"`
	Price             decimal.Decimal `bun:"price,type:numeric(12,2),notnull" json:"price"`
	TicketReleaseTime time.Time       `bun:"ticket_release_time,notnull" json:"ticket_release_time"`
	Status            EventStatus     `bun:"status,notnull" json:"status"`
	IsActive          bool            `bun:"is_active,notnull" json:"is_active"`
	HighDemand        bool            `bun:"high_demand,notnull" json:"high_demand"`
	IsTestEvent       bool            `bun:"is_test_event,notnull" json:"is_test_event"`
	ClonedFromID      string          `bun:"cloned_from_id,nullzero" json:"cloned_from_id,omitempty"`
	CreatedAt         time.Time       `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt         time.Time       `bun:"updated_at,notnull" json:"updated_at"`
}

// Promotable reports whether the event should move from coming_soon to live at now.
func (e *Event) Promotable(now time.Time) bool {
	return e.Status == EventComingSoon && e.IsActive && !e.TicketReleaseTime.After(now)
}

// Released reports whether tickets have been released at now.
func (e *Event) Released(now time.Time) bool {
	return !e.TicketReleaseTime.After(now)
}

// EventStatusChange is published by the ingestion pipeline whenever an event's
// lifecycle status changes.
type EventStatusChange struct {
	EventID   string      `json:"event_id"`
	Status    EventStatus `json:"status"`
	ChangedAt time.Time   `json:"changed_at"`
}
