package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

const (
	MinQuantity = 1
	MaxQuantity = 4
)

type AutoBookStatus string

const (
	AutoBookActive  AutoBookStatus = "active"
	AutoBookSuccess AutoBookStatus = "success"
	AutoBookFailed  AutoBookStatus = "failed"
)

// Terminal reports whether no further transition may leave this status.
func (s AutoBookStatus) Terminal() bool {
	return s == AutoBookSuccess || s == AutoBookFailed
}

type SeatClass string

const (
	SeatGeneral SeatClass = "general"
	SeatPremium SeatClass = "premium"
	SeatVIP     SeatClass = "vip"
)

func (c SeatClass) Valid() bool {
	switch c {
	case SeatGeneral, SeatPremium, SeatVIP:
		return true
	}
	return false
}

// Label is the display form used in notification text.
func (c SeatClass) Label() string {
	switch c {
	case SeatPremium:
		return "Premium"
	case SeatVIP:
		return "VIP"
	default:
		return "General"
	}
}

type AutoBook struct {
	bun.BaseModel `bun:"table:auto_books"`

	ID            string          `bun:"id,pk" json:"id"`
	UserID        string          `bun:"user_id,notnull" json:"user_id"`
	EventID       string          `bun:"event_id,notnull" json:"event_id"`
	Quantity      int             `bun:"quantity,notnull" json:"quantity"`
	SeatClass     SeatClass       `bun:"seat_class,notnull" json:"seat_class"`
	MaxBudget     decimal.Decimal `bun:"max_budget,type:numeric(12,2),notnull" json:"max_budget"`
	Status        AutoBookStatus  `bun:"status,notnull" json:"status"`
	FailureReason FailureReason   `bun:"failure_reason,nullzero" json:"failure_reason,omitempty"`
	CreatedAt     time.Time       `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt     time.Time       `bun:"updated_at,notnull" json:"updated_at"`
	LastCheckedAt time.Time       `bun:"last_checked_at,nullzero" json:"last_checked_at,omitempty"`
}

// PairKey identifies the (user, event) pair used for duplicate suppression.
func (a *AutoBook) PairKey() string {
	return a.UserID + "|" + a.EventID
}

type CreateAutoBookRequest struct {
	EventID   string          `json:"event_id"`
	Quantity  int             `json:"quantity"`
	SeatClass SeatClass       `json:"seat_class"`
	MaxBudget decimal.Decimal `json:"max_budget"`
}
