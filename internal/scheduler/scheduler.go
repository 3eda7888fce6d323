package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-autobook/internal/clock"
	"ms-autobook/internal/logger"
	"ms-autobook/internal/models"
)

// Source names what asked for a pass.
type Source string

const (
	SourcePeriodic Source = "periodic"
	SourcePush     Source = "push"
	SourceManual   Source = "manual"
)

type PassRunner interface {
	RunPass(ctx context.Context, now time.Time) (*models.ProcessingSummary, error)
	RunPassForEvents(ctx context.Context, now time.Time, eventIDs []string) (*models.ProcessingSummary, error)
}

type Lease interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

const (
	DefaultInterval    = 30 * time.Second
	DefaultPassTimeout = 2 * time.Minute
)

// Scheduler is the single entry point for starting passes.
type Scheduler struct {
	Runner PassRunner
	// Lease is optional and only taken for periodic ticks.
	Lease       Lease
	Clock       clock.Clock
	Interval    time.Duration
	PassTimeout time.Duration
	Logger      *logger.Logger
}

func New(runner PassRunner, lease Lease, clk clock.Clock, interval, passTimeout time.Duration, log *logger.Logger) *Scheduler {
	if clk == nil {
		clk = clock.Real()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if passTimeout <= 0 {
		passTimeout = DefaultPassTimeout
	}
	return &Scheduler{
		Runner:      runner,
		Lease:       lease,
		Clock:       clk,
		Interval:    interval,
		PassTimeout: passTimeout,
		Logger:      log,
	}
}

// Run starts a pass immediately and then every Interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	s.Logger.Info("SCHEDULER", fmt.Sprintf("Periodic passes every %s", s.Interval))

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.Logger.Info("SCHEDULER", "Stopping periodic passes")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	_, err := s.Trigger(ctx, SourcePeriodic, nil)
	switch {
	case errors.Is(err, models.ErrPassInProgress):
		s.Logger.Debug("SCHEDULER", "Skipping tick: pass lease held elsewhere")
	case err != nil:
		s.Logger.Error("SCHEDULER", fmt.Sprintf("Periodic pass failed: %v", err))
	}
}

// Trigger runs one pass, scoped to eventIDs when any are given. The pass is
// detached from ctx cancellation and bounded by PassTimeout instead, so a
// caller that gives up never interrupts the writes.
func (s *Scheduler) Trigger(ctx context.Context, source Source, eventIDs []string) (*models.ProcessingSummary, error) {
	if source == SourcePeriodic && s.Lease != nil {
		ok, err := s.Lease.Acquire(ctx)
		switch {
		case err != nil:
			s.Logger.Warn("SCHEDULER", fmt.Sprintf("Pass lease unavailable, running without it: %v", err))
		case !ok:
			return nil, models.ErrPassInProgress
		default:
			defer func() {
				if err := s.Lease.Release(context.WithoutCancel(ctx)); err != nil {
					s.Logger.Warn("SCHEDULER", fmt.Sprintf("Release pass lease: %v", err))
				}
			}()
		}
	}

	passCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.PassTimeout)
	defer cancel()

	now := s.Clock.Now()
	s.Logger.Info("SCHEDULER", fmt.Sprintf("Starting %s pass at %s (events=%v)", source, now.Format(time.RFC3339), eventIDs))

	if len(eventIDs) > 0 {
		return s.Runner.RunPassForEvents(passCtx, now, eventIDs)
	}
	return s.Runner.RunPass(passCtx, now)
}

// OnEventStatusChange is the push trigger: an event going live gets a pass
// scoped to it right away instead of waiting for the next tick.
func (s *Scheduler) OnEventStatusChange(ctx context.Context, change models.EventStatusChange) error {
	if change.Status != models.EventLive {
		return nil
	}
	summary, err := s.Trigger(ctx, SourcePush, []string{change.EventID})
	if err != nil {
		return err
	}
	s.Logger.Info("SCHEDULER", fmt.Sprintf("Push pass for event %s processed %d auto-books", change.EventID, summary.ItemsProcessed))
	return nil
}
