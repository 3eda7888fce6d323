package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ms-autobook/internal/logger"
	"ms-autobook/internal/models"
)

const (
	DefaultCloneOffsetMinutes = 2
	MaxCloneOffsetMinutes     = 60
)

type EventDBLayer interface {
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	ListEvents(ctx context.Context, status models.EventStatus) ([]models.Event, error)
	CreateEvent(ctx context.Context, ev models.Event) error
}

type Service struct {
	DB     EventDBLayer
	Logger *logger.Logger
}

func NewService(db EventDBLayer, log *logger.Logger) *Service {
	return &Service{DB: db, Logger: log}
}

func (s *Service) Get(ctx context.Context, id string) (*models.Event, error) {
	ev, err := s.DB.GetEvent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", id, err)
	}
	return ev, nil
}

// List returns events in release order; an empty status lists all of them.
func (s *Service) List(ctx context.Context, status models.EventStatus) ([]models.Event, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown event status %q", models.ErrInvalidInput, status)
	}
	return s.DB.ListEvents(ctx, status)
}

// CloneForTesting copies an event into a coming_soon test event whose
// tickets release offsetMinutes after now, so a full auto-book cycle can be
// watched without waiting for a real release. Zero selects the default.
func (s *Service) CloneForTesting(ctx context.Context, id string, offsetMinutes int, now time.Time) (*models.Event, error) {
	if offsetMinutes == 0 {
		offsetMinutes = DefaultCloneOffsetMinutes
	}
	if offsetMinutes < 0 || offsetMinutes > MaxCloneOffsetMinutes {
		return nil, fmt.Errorf("%w: offset must be between 1 and %d minutes", models.ErrInvalidInput, MaxCloneOffsetMinutes)
	}

	original, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	clone := *original
	clone.ID = uuid.New().String()
	clone.Name = fmt.Sprintf("[TEST] %s (%dm)", original.Name, offsetMinutes)
	clone.TicketReleaseTime = now.Add(time.Duration(offsetMinutes) * time.Minute)
	clone.Status = models.EventComingSoon
	clone.IsActive = true
	clone.IsTestEvent = true
	clone.ClonedFromID = original.ID
	clone.CreatedAt = now
	clone.UpdatedAt = now

	if err := s.DB.CreateEvent(ctx, clone); err != nil {
		return nil, fmt.Errorf("create test event: %w", err)
	}

	s.Logger.Info("EVENTS", fmt.Sprintf("Created test event %s from %s, release at %s (%dm from now)",
		clone.ID, original.ID, clone.TicketReleaseTime.Format(time.RFC3339), offsetMinutes))
	return &clone, nil
}
