// Package clock abstracts the wall clock so timer transitions and the
// presence push cadence can be driven deterministically in tests.
package clock

import "time"

// Clock is the subset of the time package the tracker depends on.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// NewTicker returns a Ticker firing every d. Panics if d <= 0.
	NewTicker(d time.Duration) *Ticker
}

// Ticker delivers ticks on C. C has capacity 1; ticks are dropped if the
// reader falls behind, matching time.Ticker.
type Ticker struct {
	C <-chan time.Time

	stop func()
}

// Stop turns off the ticker. It does not close C.
func (t *Ticker) Stop() { t.stop() }

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTicker(d time.Duration) *Ticker {
	ticker := time.NewTicker(d)
	return &Ticker{C: ticker.C, stop: ticker.Stop}
}
