// Package autobooktest provides an in-memory store for tests of code that
// drives auto-book passes.
package autobooktest

import (
	"context"
	"sort"
	"sync"
	"time"

	"ms-autobook/internal/models"
)

// Store keeps events and auto-books in memory. TryTransition is a real
// compare-and-swap on status, so concurrent passes behave as they do
// against the database.
type Store struct {
	mu        sync.Mutex
	events    map[string]models.Event
	autoBooks map[string]models.AutoBook

	// Fault injection. A non-nil error is returned by the matching call.
	FindPromotableErr error
	PromoteErr        error
	FindActiveErr     error
	GetEventErr       error
	TransitionErr     map[string]error

	// BeforeTransition, when set, runs before the CAS with the lock released.
	BeforeTransition func(id string)

	transitions map[string]int
}

func New() *Store {
	return &Store{
		events:        make(map[string]models.Event),
		autoBooks:     make(map[string]models.AutoBook),
		TransitionErr: make(map[string]error),
		transitions:   make(map[string]int),
	}
}

func (s *Store) PutEvent(ev models.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[ev.ID] = ev
}

func (s *Store) PutAutoBook(ab models.AutoBook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoBooks[ab.ID] = ab
}

func (s *Store) Event(id string) models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[id]
}

func (s *Store) AutoBook(id string) models.AutoBook {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoBooks[id]
}

// Transitions reports how many successful transitions id has had.
func (s *Store) Transitions(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transitions[id]
}

func (s *Store) FindPromotable(ctx context.Context, now time.Time) ([]models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FindPromotableErr != nil {
		return nil, s.FindPromotableErr
	}
	var out []models.Event
	for _, ev := range s.events {
		if ev.Promotable(now) {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) PromoteToLive(ctx context.Context, ids []string, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.PromoteErr != nil {
		return 0, s.PromoteErr
	}
	n := 0
	for _, id := range ids {
		ev, ok := s.events[id]
		if !ok || ev.Status != models.EventComingSoon {
			continue
		}
		ev.Status = models.EventLive
		ev.UpdatedAt = now
		s.events[id] = ev
		n++
	}
	return n, nil
}

func (s *Store) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetEventErr != nil {
		return nil, s.GetEventErr
	}
	ev, ok := s.events[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &ev, nil
}

func (s *Store) ListEvents(ctx context.Context, status models.EventStatus) ([]models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Event
	for _, ev := range s.events {
		if status == "" || ev.Status == status {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].TicketReleaseTime.Before(out[j].TicketReleaseTime)
	})
	return out, nil
}

func (s *Store) CreateEvent(ctx context.Context, ev models.Event) error {
	s.PutEvent(ev)
	return nil
}

// FindActive joins against the stored events the way the database does:
// auto-books whose event is missing or not yet released are left out.
func (s *Store) FindActive(ctx context.Context, now time.Time, limit int) ([]models.AutoBook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FindActiveErr != nil {
		return nil, s.FindActiveErr
	}
	var out []models.AutoBook
	for _, ab := range s.autoBooks {
		if ab.Status != models.AutoBookActive {
			continue
		}
		ev, ok := s.events[ab.EventID]
		if !ok || ev.TicketReleaseTime.After(now) {
			continue
		}
		out = append(out, ab)
	}
	sortByCreation(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) TryTransition(ctx context.Context, id string, to models.AutoBookStatus, reason models.FailureReason, checkedAt time.Time) (bool, error) {
	if s.BeforeTransition != nil {
		s.BeforeTransition(id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.TransitionErr[id]; err != nil {
		return false, err
	}
	ab, ok := s.autoBooks[id]
	if !ok || ab.Status != models.AutoBookActive {
		return false, nil
	}
	ab.Status = to
	ab.FailureReason = reason
	ab.LastCheckedAt = checkedAt
	ab.UpdatedAt = checkedAt
	s.autoBooks[id] = ab
	s.transitions[id]++
	return true, nil
}

func (s *Store) CreateAutoBook(ctx context.Context, ab models.AutoBook) error {
	s.PutAutoBook(ab)
	return nil
}

func (s *Store) GetAutoBook(ctx context.Context, id string) (*models.AutoBook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ab, ok := s.autoBooks[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &ab, nil
}

func (s *Store) ListAutoBooksByUser(ctx context.Context, userID string) ([]models.AutoBook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.AutoBook{}
	for _, ab := range s.autoBooks {
		if ab.UserID == userID {
			out = append(out, ab)
		}
	}
	sortByCreation(out)
	return out, nil
}

func (s *Store) HasActiveAutoBook(ctx context.Context, userID, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ab := range s.autoBooks {
		if ab.UserID == userID && ab.EventID == eventID && ab.Status == models.AutoBookActive {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) CancelAutoBook(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ab, ok := s.autoBooks[id]
	if !ok || ab.Status != models.AutoBookActive {
		return false, nil
	}
	delete(s.autoBooks, id)
	return true, nil
}

func sortByCreation(abs []models.AutoBook) {
	sort.Slice(abs, func(i, j int) bool {
		if !abs[i].CreatedAt.Equal(abs[j].CreatedAt) {
			return abs[i].CreatedAt.Before(abs[j].CreatedAt)
		}
		return abs[i].ID < abs[j].ID
	})
}
