// Package presence pushes periodic snapshots of who is studying what to
// connected subscribers.
//
// Every subscription polls the Source on its own ticker. There is no shared
// fan-out loop: a subscriber that goes away only stops its own goroutine,
// and a slow subscriber only ever holds the newest snapshot.
package presence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Tiliavir/trivial-study-tracker/internal/clock"
	"github.com/Tiliavir/trivial-study-tracker/internal/model"
	"github.com/Tiliavir/trivial-study-tracker/internal/timecalc"
)

// DefaultInterval is the push cadence.
const DefaultInterval = 5 * time.Second

// Source reads the current presence of every user. The completed-today
// count is taken for day.
type Source interface {
	Snapshot(ctx context.Context, day string) ([]model.Presence, error)
}

// Broadcaster builds snapshots and manages subscriptions.
type Broadcaster struct {
	source   Source
	clock    clock.Clock
	logger   *slog.Logger
	interval time.Duration
	location *time.Location

	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// Option customizes broadcaster construction.
type Option func(*Broadcaster)

// WithClock overrides the wall clock used for ticks and elapsed time.
func WithClock(c clock.Clock) Option {
	return func(b *Broadcaster) {
		if c != nil {
			b.clock = c
		}
	}
}

// WithLogger sets the logger for failed reads and subscription churn.
func WithLogger(l *slog.Logger) Option {
	return func(b *Broadcaster) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithInterval overrides DefaultInterval. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(b *Broadcaster) {
		if d > 0 {
			b.interval = d
		}
	}
}

// WithLocation sets the time zone that decides which day counts as today.
func WithLocation(loc *time.Location) Option {
	return func(b *Broadcaster) {
		if loc != nil {
			b.location = loc
		}
	}
}

// NewBroadcaster returns a broadcaster reading from source.
func NewBroadcaster(source Source, opts ...Option) *Broadcaster {
	b := &Broadcaster{
		source:   source,
		clock:    clock.Real(),
		logger:   slog.New(slog.DiscardHandler),
		interval: DefaultInterval,
		location: time.UTC,
		subs:     map[*Subscription]struct{}{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Interval returns the push cadence.
func (b *Broadcaster) Interval() time.Duration { return b.interval }

// Snapshot reads the source once and fills in the progress fields of every
// active task against the current time.
func (b *Broadcaster) Snapshot(ctx context.Context) (model.Snapshot, error) {
	now := b.clock.Now()
	users, err := b.source.Snapshot(ctx, timecalc.Day(now, b.location))
	if err != nil {
		return model.Snapshot{}, err
	}
	for i := range users {
		a := users[i].ActiveTask
		if a == nil {
			continue
		}
		a.ElapsedMinutes = timecalc.ElapsedMinutes(a.AccumulatedMinutes, a.StartedAt, now)
		a.ProgressPercent = timecalc.ProgressPercent(a.AccumulatedMinutes, a.StartedAt, now, a.EstimatedMinutes)
		a.Overrun = timecalc.Overrun(a.AccumulatedMinutes, a.StartedAt, now, a.EstimatedMinutes)
	}
	if users == nil {
		users = []model.Presence{}
	}
	return model.Snapshot{GeneratedAt: now.UTC(), Users: users}, nil
}

// Subscribe starts pushing snapshots: one right away, then one per
// interval, until ctx is done or the subscription is closed. After the
// broadcaster is closed it returns an already-closed subscription.
func (b *Broadcaster) Subscribe(ctx context.Context) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan model.Snapshot, 1)
	sub := &Subscription{
		C:      ch,
		ch:     ch,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		cancel()
		close(ch)
		close(sub.done)
		return sub
	}
	b.subs[sub] = struct{}{}
	count := len(b.subs)
	b.mu.Unlock()

	b.logger.Debug("presence subscriber added", "subscribers", count)
	go b.run(ctx, sub)
	return sub
}

// Subscribers returns the number of live subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close ends every subscription and makes further Subscribe calls return
// closed subscriptions. It waits for the push goroutines to exit.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	b.closed = true
	subs := make([]*Subscription, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}

func (b *Broadcaster) run(ctx context.Context, sub *Subscription) {
	ticker := b.clock.NewTicker(b.interval)
	defer func() {
		ticker.Stop()
		b.remove(sub)
		close(sub.ch)
		close(sub.done)
	}()

	b.push(ctx, sub)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.push(ctx, sub)
		}
	}
}

func (b *Broadcaster) push(ctx context.Context, sub *Subscription) {
	snap, err := b.Snapshot(ctx)
	if err != nil {
		if ctx.Err() == nil {
			b.logger.Warn("presence snapshot failed", "error", err)
		}
		return
	}
	sub.deliver(snap)
}

func (b *Broadcaster) remove(sub *Subscription) {
	b.mu.Lock()
	delete(b.subs, sub)
	count := len(b.subs)
	b.mu.Unlock()
	b.logger.Debug("presence subscriber removed", "subscribers", count)
}

// Subscription is one live snapshot stream.
type Subscription struct {
	// C receives snapshots. It is closed when the subscription ends.
	C <-chan model.Snapshot

	ch     chan model.Snapshot
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Close stops the stream and waits until C is closed. Calling it more than
// once is harmless.
func (s *Subscription) Close() {
	s.once.Do(s.cancel)
	<-s.done
}

// Done is closed once the stream has fully stopped.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// deliver replaces an unread snapshot rather than blocking. Only the push
// goroutine sends.
func (s *Subscription) deliver(snap model.Snapshot) {
	select {
	case s.ch <- snap:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- snap:
	default:
	}
}
