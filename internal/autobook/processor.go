package autobook

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"ms-autobook/internal/logger"
	"ms-autobook/internal/models"
)

const upstreamErrorMessage = "Could not confirm availability with the ticketing platform; it will be retried on the next pass"

// Processor runs processing passes over active auto-books. It holds no
// per-pass state, so concurrent passes are safe; exactly-once transitions
// come from AutoBookStore.TryTransition.
type Processor struct {
	Events    EventStore
	AutoBooks AutoBookStore
	Policy    Policy
	Upstream  UpstreamChecker
	Notifier  Notifier
	Logger    *logger.Logger
	// BatchLimit bounds candidate selection; 0 means unbounded.
	BatchLimit int
}

func NewProcessor(events EventStore, autoBooks AutoBookStore, policy Policy, log *logger.Logger) *Processor {
	return &Processor{Events: events, AutoBooks: autoBooks, Policy: policy, Logger: log}
}

type candidate struct {
	autoBook models.AutoBook
	event    *models.Event
}

// RunPass promotes released events, then decides every eligible active
// auto-book at now. On a pass-level store failure it returns the summary
// built so far together with an error wrapping models.ErrStoreUnavailable.
func (p *Processor) RunPass(ctx context.Context, now time.Time) (*models.ProcessingSummary, error) {
	return p.run(ctx, now, nil)
}

// RunPassForEvents runs a pass restricted to the given events.
func (p *Processor) RunPassForEvents(ctx context.Context, now time.Time, eventIDs []string) (*models.ProcessingSummary, error) {
	scope := make(map[string]bool, len(eventIDs))
	for _, id := range eventIDs {
		scope[id] = true
	}
	return p.run(ctx, now, scope)
}

func (p *Processor) run(ctx context.Context, now time.Time, scope map[string]bool) (*models.ProcessingSummary, error) {
	summary := &models.ProcessingSummary{
		Results:     []models.ItemResult{},
		ProcessedAt: now,
	}

	promoted, err := p.promoteEvents(ctx, now, scope)
	if err != nil {
		p.Logger.Error("PASS", err.Error())
		return summary, err
	}
	summary.EventsTransitioned = promoted

	candidates, err := p.selectCandidates(ctx, now, scope)
	if err != nil {
		p.Logger.Error("PASS", err.Error())
		return summary, err
	}

	unique, duplicates := suppressDuplicates(candidates)

	for _, c := range duplicates {
		d := Decision{
			Status:        models.AutoBookFailed,
			FailureReason: models.FailureDuplicateRequest,
			TotalCost:     c.event.Price.Mul(quantity(c.autoBook)),
			Elapsed:       now.Sub(c.event.TicketReleaseTime),
		}
		if r, ok := p.persist(ctx, c, d, now); ok {
			summary.Add(r)
		}
	}

	for _, c := range unique {
		d, err := p.decide(ctx, c, now)
		if err != nil {
			p.Logger.Warn("PASS", fmt.Sprintf("upstream check for auto-book %s failed: %v", c.autoBook.ID, err))
			summary.Add(p.errorResult(c, d, upstreamErrorMessage, now))
			continue
		}
		if r, ok := p.persist(ctx, c, d, now); ok {
			summary.Add(r)
		}
	}

	p.Logger.LogPass("SUMMARY", fmt.Sprintf("promoted=%d processed=%d success=%d failed=%d errors=%d",
		summary.EventsTransitioned, summary.ItemsProcessed, summary.Successes, summary.Failures, summary.Errors))

	p.notify(ctx, summary)
	return summary, nil
}

func (p *Processor) promoteEvents(ctx context.Context, now time.Time, scope map[string]bool) (int, error) {
	events, err := p.Events.FindPromotable(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("find promotable events: %w: %w", models.ErrStoreUnavailable, err)
	}

	ids := make([]string, 0, len(events))
	for _, ev := range events {
		if scope != nil && !scope[ev.ID] {
			continue
		}
		ids = append(ids, ev.ID)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	n, err := p.Events.PromoteToLive(ctx, ids, now)
	if err != nil {
		return 0, fmt.Errorf("promote events to live: %w: %w", models.ErrStoreUnavailable, err)
	}
	p.Logger.LogPass("PROMOTE", fmt.Sprintf("%d of %d released events moved to live", n, len(ids)))
	return n, nil
}

// selectCandidates keeps active auto-books whose event exists and has
// released. The store already filters on release so a batch limit only
// counts eligible rows; the checks here cover events changed since.
func (p *Processor) selectCandidates(ctx context.Context, now time.Time, scope map[string]bool) ([]candidate, error) {
	active, err := p.AutoBooks.FindActive(ctx, now, p.BatchLimit)
	if err != nil {
		return nil, fmt.Errorf("find active auto-books: %w: %w", models.ErrStoreUnavailable, err)
	}

	events := make(map[string]*models.Event)
	var out []candidate
	for _, ab := range active {
		if ab.Status != models.AutoBookActive {
			continue
		}
		if scope != nil && !scope[ab.EventID] {
			continue
		}

		ev, seen := events[ab.EventID]
		if !seen {
			ev, err = p.Events.GetEvent(ctx, ab.EventID)
			if errors.Is(err, models.ErrNotFound) {
				ev, err = nil, nil
			}
			if err != nil {
				return nil, fmt.Errorf("load event %s: %w: %w", ab.EventID, models.ErrStoreUnavailable, err)
			}
			events[ab.EventID] = ev
		}

		if ev == nil {
			p.Logger.Debug("PASS", fmt.Sprintf("auto-book %s skipped: event %s not found", ab.ID, ab.EventID))
			continue
		}
		if !ev.Released(now) {
			continue
		}
		out = append(out, candidate{autoBook: ab, event: ev})
	}
	return out, nil
}

// suppressDuplicates orders candidates by creation time then id. The first
// auto-book seen for a (user, event) pair wins; later ones are duplicates.
func suppressDuplicates(cands []candidate) (unique, duplicates []candidate) {
	sorted := make([]candidate, len(cands))
	copy(sorted, cands)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].autoBook, sorted[j].autoBook
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	seen := make(map[string]struct{}, len(sorted))
	for _, c := range sorted {
		key := c.autoBook.PairKey()
		if _, dup := seen[key]; dup {
			duplicates = append(duplicates, c)
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, c)
	}
	return unique, duplicates
}

func (p *Processor) decide(ctx context.Context, c candidate, now time.Time) (Decision, error) {
	d := Evaluate(c.autoBook, *c.event, now, p.Policy)
	if !d.Succeeded() || p.Upstream == nil {
		return d, nil
	}

	reason, err := p.Upstream.Check(ctx, c.autoBook, *c.event, now)
	if err != nil {
		return d, err
	}
	if reason == models.FailureNone {
		return d, nil
	}
	if !reason.Upstream() {
		reason = models.FailurePlatformError
	}
	d.Status = models.AutoBookFailed
	d.FailureReason = reason
	return d, nil
}

// persist writes the decision. The second result is false when another pass
// already moved the auto-book out of active.
func (p *Processor) persist(ctx context.Context, c candidate, d Decision, now time.Time) (models.ItemResult, bool) {
	ok, err := p.AutoBooks.TryTransition(ctx, c.autoBook.ID, d.Status, d.FailureReason, now)
	if err != nil {
		p.Logger.Error("AUTOBOOK", fmt.Sprintf("persist auto-book %s: %v", c.autoBook.ID, err))
		return p.errorResult(c, d, persistErrorMessage, now), true
	}
	if !ok {
		p.Logger.Debug("AUTOBOOK", fmt.Sprintf("auto-book %s already decided by another pass", c.autoBook.ID))
		return models.ItemResult{}, false
	}

	p.Logger.LogAutoBook("TRANSITION", c.autoBook.ID, string(d.Status)+" "+string(d.FailureReason))

	r := p.baseResult(c, d, now)
	r.FailureReason = d.FailureReason
	r.Message = BuildMessage(c.autoBook, *c.event, d, p.Policy)
	if d.Succeeded() {
		r.Outcome = models.OutcomeSuccess
	} else {
		r.Outcome = models.OutcomeFailed
	}
	return r, true
}

func (p *Processor) errorResult(c candidate, d Decision, msg string, now time.Time) models.ItemResult {
	r := p.baseResult(c, d, now)
	r.Outcome = models.OutcomeError
	r.Message = msg
	return r
}

func (p *Processor) baseResult(c candidate, d Decision, now time.Time) models.ItemResult {
	return models.ItemResult{
		AutoBookID: c.autoBook.ID,
		UserID:     c.autoBook.UserID,
		EventID:    c.autoBook.EventID,
		EventName:  c.event.Name,
		Quantity:   c.autoBook.Quantity,
		SeatClass:  c.autoBook.SeatClass,
		TotalCost:  d.TotalCost,
		CheckedAt:  now,
	}
}

func (p *Processor) notify(ctx context.Context, summary *models.ProcessingSummary) {
	if p.Notifier == nil || len(summary.Results) == 0 {
		return
	}
	if err := p.Notifier.Notify(ctx, summary.Results); err != nil {
		p.Logger.Warn("PASS", fmt.Sprintf("notify %d results: %v", len(summary.Results), err))
	}
}
