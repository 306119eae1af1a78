package clock

import (
	"sync"
	"time"
)

// FakeClock is a Clock whose time only moves when Advance or Set is
// called. It is safe for concurrent use.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	tickers []*fakeTicker
	changed *sync.Cond
}

type fakeTicker struct {
	next     time.Time
	interval time.Duration
	ch       chan time.Time
	stopped  bool
}

// Fake returns a FakeClock set to initial.
func Fake(initial time.Time) *FakeClock {
	c := &FakeClock{current: initial}
	c.changed = sync.NewCond(&c.mu)
	return c
}

// Now returns the fake current time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// NewTicker registers a ticker that fires each time the clock is advanced
// past its next deadline.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	ft := &fakeTicker{
		next:     c.current.Add(d),
		interval: d,
		ch:       make(chan time.Time, 1),
	}
	c.tickers = append(c.tickers, ft)
	c.changed.Broadcast()

	return &Ticker{
		C: ft.ch,
		stop: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			ft.stopped = true
			c.changed.Broadcast()
		},
	}
}

// Set moves the clock to t without firing tickers. Use it to model wall
// clock jumps.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t
}

// Advance moves the clock forward by d and fires every ticker whose
// deadline has passed. A ticker spanning several intervals fires once per
// interval; ticks that do not fit the channel buffer are dropped.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = c.current.Add(d)
	live := c.tickers[:0]
	for _, ft := range c.tickers {
		if ft.stopped {
			continue
		}
		for !ft.next.After(c.current) {
			select {
			case ft.ch <- c.current:
			default:
			}
			ft.next = ft.next.Add(ft.interval)
		}
		live = append(live, ft)
	}
	c.tickers = live
}

// WaitForTickers blocks until at least n tickers are active. It closes the
// race between a goroutine creating its ticker and a test advancing time.
func (c *FakeClock) WaitForTickers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.activeLocked() < n {
		c.changed.Wait()
	}
}

// ActiveTickers returns the number of tickers that have not been stopped.
func (c *FakeClock) ActiveTickers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeLocked()
}

func (c *FakeClock) activeLocked() int {
	n := 0
	for _, ft := range c.tickers {
		if !ft.stopped {
			n++
		}
	}
	return n
}
