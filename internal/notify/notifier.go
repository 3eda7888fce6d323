// Package notify delivers processed auto-book results to users and to
// downstream services.
package notify

import (
	"context"
	"errors"
	"fmt"

	"ms-autobook/internal/autobook"
	"ms-autobook/internal/logger"
	"ms-autobook/internal/models"
)

// Message is the payload every channel sends for one result.
type Message struct {
	models.ItemResult
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

func NewMessage(r models.ItemResult) Message {
	m := Message{ItemResult: r}
	switch r.Outcome {
	case models.OutcomeSuccess:
		m.Title = "Tickets Available"
	case models.OutcomeFailed:
		m.Title = r.FailureReason.Title()
		m.Description = r.FailureReason.Description()
	default:
		m.Title = "Processing Delayed"
	}
	return m
}

// Multi hands results to every notifier and joins their errors.
type Multi []autobook.Notifier

func (m Multi) Notify(ctx context.Context, results []models.ItemResult) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, results); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log writes one line per result.
type Log struct {
	Logger *logger.Logger
}

func (l Log) Notify(ctx context.Context, results []models.ItemResult) error {
	for _, r := range results {
		l.Logger.LogAutoBook(string(r.Outcome), r.AutoBookID, fmt.Sprintf("user=%s event=%s: %s", r.UserID, r.EventID, r.Message))
	}
	return nil
}
