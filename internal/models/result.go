package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Outcome is the per-item result of a processing pass. OutcomeError marks an
// infrastructure failure; the auto-book stays active and is retried.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
	OutcomeError   Outcome = "error"
)

type ItemResult struct {
	AutoBookID    string          `json:"auto_book_id"`
	UserID        string          `json:"user_id"`
	EventID       string          `json:"event_id"`
	EventName     string          `json:"event_name"`
	Outcome       Outcome         `json:"outcome"`
	FailureReason FailureReason   `json:"failure_reason,omitempty"`
	Quantity      int             `json:"quantity"`
	SeatClass     SeatClass       `json:"seat_class"`
	TotalCost     decimal.Decimal `json:"total_cost"`
	Message       string          `json:"message"`
	CheckedAt     time.Time       `json:"checked_at"`
}

type ProcessingSummary struct {
	EventsTransitioned int          `json:"events_transitioned"`
	ItemsProcessed     int          `json:"items_processed"`
	Successes          int          `json:"successes"`
	Failures           int          `json:"failures"`
	Errors             int          `json:"errors"`
	Results            []ItemResult `json:"results"`
	ProcessedAt        time.Time    `json:"processed_at"`
}

// Add records one item result and updates the counters.
func (s *ProcessingSummary) Add(r ItemResult) {
	s.Results = append(s.Results, r)
	s.ItemsProcessed++
	switch r.Outcome {
	case OutcomeSuccess:
		s.Successes++
	case OutcomeFailed:
		s.Failures++
	case OutcomeError:
		s.Errors++
	}
}

// ForUser returns the results that belong to userID.
func (s *ProcessingSummary) ForUser(userID string) []ItemResult {
	var out []ItemResult
	for _, r := range s.Results {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out
}
