package autobook

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"ms-autobook/internal/clock"
	"ms-autobook/internal/logger"
	"ms-autobook/internal/models"
)

type AutoBookDBLayer interface {
	CreateAutoBook(ctx context.Context, ab models.AutoBook) error
	GetAutoBook(ctx context.Context, id string) (*models.AutoBook, error)
	ListAutoBooksByUser(ctx context.Context, userID string) ([]models.AutoBook, error)
	HasActiveAutoBook(ctx context.Context, userID, eventID string) (bool, error)
	// CancelAutoBook deletes the auto-book only while it is still active.
	CancelAutoBook(ctx context.Context, id string) (bool, error)
}

type EventLookup interface {
	GetEvent(ctx context.Context, id string) (*models.Event, error)
}

// Service is the user-facing side of auto-books: create, read and cancel.
// Decisions are made only by the Processor.
type Service struct {
	DB     AutoBookDBLayer
	Events EventLookup
	Clock  clock.Clock
	Logger *logger.Logger
}

func NewService(db AutoBookDBLayer, events EventLookup, clk clock.Clock, log *logger.Logger) *Service {
	if clk == nil {
		clk = clock.Real()
	}
	return &Service{DB: db, Events: events, Clock: clk, Logger: log}
}

func (s *Service) Create(ctx context.Context, userID string, req models.CreateAutoBookRequest) (*models.AutoBook, error) {
	if req.SeatClass == "" {
		req.SeatClass = models.SeatGeneral
	}
	if err := validateRequest(userID, req); err != nil {
		return nil, err
	}

	ev, err := s.Events.GetEvent(ctx, req.EventID)
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", req.EventID, err)
	}
	if !ev.IsActive || !ev.Status.Bookable() {
		return nil, fmt.Errorf("%w: event %s is %s and no longer accepts auto-book requests", models.ErrInvalidInput, ev.ID, ev.Status)
	}

	exists, err := s.DB.HasActiveAutoBook(ctx, userID, req.EventID)
	if err != nil {
		return nil, fmt.Errorf("check existing auto-books: %w", err)
	}
	if exists {
		return nil, models.ErrDuplicateAutoBook
	}

	now := s.Clock.Now()
	ab := models.AutoBook{
		ID:        uuid.New().String(),
		UserID:    userID,
		EventID:   req.EventID,
		Quantity:  req.Quantity,
		SeatClass: req.SeatClass,
		MaxBudget: req.MaxBudget,
		Status:    models.AutoBookActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.DB.CreateAutoBook(ctx, ab); err != nil {
		return nil, fmt.Errorf("create auto-book: %w", err)
	}

	s.Logger.LogAutoBook("CREATE", ab.ID, fmt.Sprintf("user=%s event=%s qty=%d budget=%s", userID, ab.EventID, ab.Quantity, ab.MaxBudget.String()))
	return &ab, nil
}

func validateRequest(userID string, req models.CreateAutoBookRequest) error {
	switch {
	case userID == "":
		return fmt.Errorf("%w: missing user", models.ErrInvalidInput)
	case req.EventID == "":
		return fmt.Errorf("%w: event_id is required", models.ErrInvalidInput)
	case req.Quantity < models.MinQuantity || req.Quantity > models.MaxQuantity:
		return fmt.Errorf("%w: quantity must be between %d and %d", models.ErrInvalidInput, models.MinQuantity, models.MaxQuantity)
	case !req.SeatClass.Valid():
		return fmt.Errorf("%w: unknown seat class %q", models.ErrInvalidInput, req.SeatClass)
	case req.MaxBudget.IsNegative():
		return fmt.Errorf("%w: max_budget must not be negative", models.ErrInvalidInput)
	}
	return nil
}

// Get returns the caller's auto-book, or models.ErrForbidden for someone else's.
func (s *Service) Get(ctx context.Context, userID, id string) (*models.AutoBook, error) {
	ab, err := s.DB.GetAutoBook(ctx, id)
	if err != nil {
		return nil, err
	}
	if ab.UserID != userID {
		s.Logger.LogSecurity("OWNERSHIP", fmt.Sprintf("user %s requested auto-book %s", userID, id))
		return nil, models.ErrForbidden
	}
	return ab, nil
}

func (s *Service) ListForUser(ctx context.Context, userID string) ([]models.AutoBook, error) {
	return s.DB.ListAutoBooksByUser(ctx, userID)
}

// Cancel removes an active auto-book. Once a pass decided it, cancellation
// fails with models.ErrInvalidTransition.
func (s *Service) Cancel(ctx context.Context, userID, id string) error {
	ab, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if ab.Status != models.AutoBookActive {
		return fmt.Errorf("%w: auto-book %s is %s", models.ErrInvalidTransition, id, ab.Status)
	}

	ok, err := s.DB.CancelAutoBook(ctx, id)
	if err != nil {
		return fmt.Errorf("cancel auto-book %s: %w", id, err)
	}
	if !ok {
		return fmt.Errorf("%w: auto-book %s was decided before it could be cancelled", models.ErrInvalidTransition, id)
	}

	s.Logger.LogAutoBook("CANCEL", id, "cancelled by owner")
	return nil
}
