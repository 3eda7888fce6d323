package analytics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"ms-autobook/internal/models"
)

// Service handles analytics operations
type Service struct {
	db *bun.DB
}

// NewService creates a new analytics service
func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

// EventAutoBookStats summarises how the auto-books for one event were decided
type EventAutoBookStats struct {
	EventID          string                        `json:"event_id"`
	Total            int                           `json:"total"`
	ByStatus         map[models.AutoBookStatus]int `json:"by_status"`
	ByFailureReason  map[models.FailureReason]int  `json:"by_failure_reason"`
	TicketsConfirmed int                           `json:"tickets_confirmed"`
	ConfirmedValue   decimal.Decimal               `json:"confirmed_value"`
}

type statusCount struct {
	Status   models.AutoBookStatus `bun:"status"`
	Count    int                   `bun:"count"`
	Quantity int                   `bun:"quantity"`
}

type reasonCount struct {
	FailureReason models.FailureReason `bun:"failure_reason"`
	Count         int                  `bun:"count"`
}

// EventAutoBookStats returns outcome counts for an event's auto-books
func (s *Service) EventAutoBookStats(ctx context.Context, eventID string) (*EventAutoBookStats, error) {
	var ev models.Event
	err := s.db.NewSelect().Model(&ev).Column("id", "price").Where("id = ?", eventID).Limit(1).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", eventID, notFound(err))
	}

	var byStatus []statusCount
	err = s.db.NewSelect().
		Model((*models.AutoBook)(nil)).
		Column("status").
		ColumnExpr("COUNT(*) AS count").
		ColumnExpr("COALESCE(SUM(quantity), 0) AS quantity").
		Where("event_id = ?", eventID).
		Group("status").
		Scan(ctx, &byStatus)
	if err != nil {
		return nil, fmt.Errorf("count auto-books by status: %w", err)
	}

	var byReason []reasonCount
	err = s.db.NewSelect().
		Model((*models.AutoBook)(nil)).
		Column("failure_reason").
		ColumnExpr("COUNT(*) AS count").
		Where("event_id = ?", eventID).
		Where("status = ?", models.AutoBookFailed).
		Group("failure_reason").
		Order("failure_reason ASC").
		Scan(ctx, &byReason)
	if err != nil {
		return nil, fmt.Errorf("count failures by reason: %w", err)
	}

	stats := &EventAutoBookStats{
		EventID:         eventID,
		ByStatus:        map[models.AutoBookStatus]int{},
		ByFailureReason: map[models.FailureReason]int{},
		ConfirmedValue:  decimal.Zero,
	}
	for _, row := range byStatus {
		stats.ByStatus[row.Status] = row.Count
		stats.Total += row.Count
		if row.Status == models.AutoBookSuccess {
			stats.TicketsConfirmed = row.Quantity
		}
	}
	for _, row := range byReason {
		stats.ByFailureReason[row.FailureReason] = row.Count
	}
	stats.ConfirmedValue = ev.Price.Mul(decimal.NewFromInt(int64(stats.TicketsConfirmed)))

	return stats, nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrNotFound
	}
	return err
}
