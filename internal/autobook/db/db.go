package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/uptrace/bun"

	"ms-autobook/internal/models"
)

// DB implements the event and auto-book stores on bun. It is used with the
// Postgres dialect in production and SQLite in tests.
type DB struct {
	Bun *bun.DB
}

func New(bunDB *bun.DB) *DB {
	return &DB{Bun: bunDB}
}

// ---------------- EVENTS ----------------

// FindPromotable → coming_soon, active events whose release time has passed
func (d *DB) FindPromotable(ctx context.Context, now time.Time) ([]models.Event, error) {
	var events []models.Event
	err := d.Bun.NewSelect().
		Model(&events).
		Where("status = ?", models.EventComingSoon).
		Where("is_active = ?", true).
		Where("ticket_release_time <= ?", now).
		Order("ticket_release_time ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return events, nil
}

// PromoteToLive → conditional bulk update; re-running it is a no-op
func (d *DB) PromoteToLive(ctx context.Context, ids []string, now time.Time) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := d.Bun.NewUpdate().
		Model((*models.Event)(nil)).
		Set("status = ?", models.EventLive).
		Set("updated_at = ?", now).
		Where("id IN (?)", bun.In(ids)).
		Where("status = ?", models.EventComingSoon).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (d *DB) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	var ev models.Event
	err := d.Bun.NewSelect().
		Model(&ev).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return &ev, nil
}

// ListEvents → all events, or only those in status when it is set
func (d *DB) ListEvents(ctx context.Context, status models.EventStatus) ([]models.Event, error) {
	events := []models.Event{}
	q := d.Bun.NewSelect().Model(&events).Order("ticket_release_time ASC", "id ASC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return events, nil
}

func (d *DB) CreateEvent(ctx context.Context, ev models.Event) error {
	_, err := d.Bun.NewInsert().Model(&ev).Exec(ctx)
	return err
}

// ---------------- AUTO-BOOKS ----------------

// FindActive → active auto-books on released events, in creation order;
// limit 0 means all. Unreleased rows never take a slot in the batch.
func (d *DB) FindActive(ctx context.Context, now time.Time, limit int) ([]models.AutoBook, error) {
	var abs []models.AutoBook
	q := d.Bun.NewSelect().
		Model(&abs).
		Join("JOIN events AS ev ON ev.id = ?TableAlias.event_id").
		Where("?TableAlias.status = ?", models.AutoBookActive).
		Where("ev.ticket_release_time <= ?", now).
		Order("?TableAlias.created_at ASC", "?TableAlias.id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return abs, nil
}

// TryTransition → compare-and-swap out of active. Zero rows affected means
// another pass got there first.
func (d *DB) TryTransition(ctx context.Context, id string, to models.AutoBookStatus, reason models.FailureReason, checkedAt time.Time) (bool, error) {
	if !to.Terminal() || (to == models.AutoBookFailed) != (reason != models.FailureNone) {
		return false, models.ErrInvalidTransition
	}

	var failure interface{}
	if reason != models.FailureNone {
		failure = string(reason)
	}

	res, err := d.Bun.NewUpdate().
		Model((*models.AutoBook)(nil)).
		Set("status = ?", to).
		Set("failure_reason = ?", failure).
		Set("last_checked_at = ?", checkedAt).
		Set("updated_at = ?", checkedAt).
		Where("id = ?", id).
		Where("status = ?", models.AutoBookActive).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (d *DB) CreateAutoBook(ctx context.Context, ab models.AutoBook) error {
	_, err := d.Bun.NewInsert().Model(&ab).Exec(ctx)
	if isUniqueViolation(err) {
		return models.ErrDuplicateAutoBook
	}
	return err
}

func (d *DB) GetAutoBook(ctx context.Context, id string) (*models.AutoBook, error) {
	var ab models.AutoBook
	err := d.Bun.NewSelect().
		Model(&ab).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return &ab, nil
}

// ListAutoBooksByUser → newest first
func (d *DB) ListAutoBooksByUser(ctx context.Context, userID string) ([]models.AutoBook, error) {
	abs := []models.AutoBook{}
	err := d.Bun.NewSelect().
		Model(&abs).
		Where("user_id = ?", userID).
		Order("created_at DESC", "id DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return abs, nil
}

func (d *DB) HasActiveAutoBook(ctx context.Context, userID, eventID string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.AutoBook)(nil)).
		Where("user_id = ?", userID).
		Where("event_id = ?", eventID).
		Where("status = ?", models.AutoBookActive).
		Exists(ctx)
}

// CancelAutoBook → delete only while still active
func (d *DB) CancelAutoBook(ctx context.Context, id string) (bool, error) {
	res, err := d.Bun.NewDelete().
		Model((*models.AutoBook)(nil)).
		Where("id = ?", id).
		Where("status = ?", models.AutoBookActive).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
