package autobook

import (
	"context"
	"time"

	"ms-autobook/internal/models"
)

// EventStore is the event side of the store contract used by a pass.
type EventStore interface {
	FindPromotable(ctx context.Context, now time.Time) ([]models.Event, error)
	// PromoteToLive moves the given events to live only while they are still
	// coming_soon and returns how many rows changed.
	PromoteToLive(ctx context.Context, ids []string, now time.Time) (int, error)
	// GetEvent returns models.ErrNotFound when the event does not exist.
	GetEvent(ctx context.Context, id string) (*models.Event, error)
}

type AutoBookStore interface {
	// FindActive returns active auto-books whose event has released by now,
	// ordered by created_at, id. A limit of 0 returns all of them.
	FindActive(ctx context.Context, now time.Time, limit int) ([]models.AutoBook, error)
	// TryTransition moves an auto-book out of active. It returns false when the
	// row was no longer active, so two racing passes see exactly one true.
	TryTransition(ctx context.Context, id string, to models.AutoBookStatus, reason models.FailureReason, checkedAt time.Time) (bool, error)
}

// Notifier receives the results of every pass that produced any.
type Notifier interface {
	Notify(ctx context.Context, results []models.ItemResult) error
}

// UpstreamChecker confirms availability with a ticketing integration after
// the local rules passed. FailureNone means the booking stands.
type UpstreamChecker interface {
	Check(ctx context.Context, ab models.AutoBook, ev models.Event, now time.Time) (models.FailureReason, error)
}
