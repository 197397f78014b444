// Package scheduler runs the listing check periodically and on demand.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"flat_bot/internal/model"
	"flat_bot/internal/notifier"
)

// Runner produces the offers not seen before.
type Runner interface {
	RunOnce(ctx context.Context) ([]model.Offer, error)
}

// Broadcaster delivers offers to subscribers.
type Broadcaster interface {
	NotifyAll(ctx context.Context, offers []model.Offer, subscribers []int64) notifier.Summary
}

// SubscriberLister returns the chats to notify.
type SubscriberLister interface {
	ListSubscribers(ctx context.Context) ([]int64, error)
}

// Scheduler periodically checks for new listings and sends notifications.
// Checks never overlap, whether started by the ticker or by Check.
type Scheduler struct {
	runner Runner
	notify Broadcaster
	subs   SubscriberLister
	log    *slog.Logger
	tick   time.Duration

	mu sync.Mutex
}

// New creates a Scheduler with a 10-minute interval.
func New(runner Runner, notify Broadcaster, subs SubscriberLister, log *slog.Logger) *Scheduler {
	return &Scheduler{
		runner: runner,
		notify: notify,
		subs:   subs,
		log:    log,
		tick:   10 * time.Minute,
	}
}

// SetTickInterval overrides the default check interval.
func (s *Scheduler) SetTickInterval(d time.Duration) {
	s.tick = d
}

// Run checks immediately, then on every tick, blocking until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.checkLogged(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkLogged(ctx)
		}
	}
}

func (s *Scheduler) checkLogged(ctx context.Context) {
	if _, err := s.Check(ctx); err != nil {
		s.log.Error("check listings", "error", err)
	}
}

// Check runs the pipeline once and notifies subscribers about new offers.
// It returns the number of new offers. A check already in progress is
// waited for.
//
// Sending is detached from ctx cancellation: the offers are already
// recorded as seen, so dropping the messages would lose them for good.
func (s *Scheduler) Check(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	offers, err := s.runner.RunOnce(ctx)
	if err != nil {
		return 0, err
	}
	if len(offers) == 0 {
		return 0, nil
	}

	sendCtx := context.WithoutCancel(ctx)
	subscribers, err := s.subs.ListSubscribers(sendCtx)
	if err != nil {
		return len(offers), fmt.Errorf("list subscribers: %w", err)
	}
	if len(subscribers) == 0 {
		s.log.Info("new offers but no subscribers", "count", len(offers))
		return len(offers), nil
	}

	s.notify.NotifyAll(sendCtx, offers, subscribers)
	return len(offers), nil
}
