// Package ratelimit implements the blocking call-rate guard in front of the
// forecast API. Two sliding windows (per-minute and per-hour) are enforced
// together; a caller that would exceed either one is suspended until the
// trailing window admits it. Callers never observe a rate-limit error, only
// latency.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Window is one sliding-window ceiling: at most Limit calls in any trailing
// Period.
type Window struct {
	Limit  int
	Period time.Duration
}

// Limiter tracks call timestamps per window. Safe for concurrent use by the
// collector's worker pool; the timestamp slices are the only shared state and
// live behind one mutex.
type Limiter struct {
	clock clockwork.Clock

	mu      sync.Mutex
	windows []*slidingWindow
}

type slidingWindow struct {
	limit  int
	period time.Duration
	calls  []time.Time
}

// New creates a limiter enforcing all given windows. The clock is injectable
// so tests can drive the windows deterministically.
func New(clock clockwork.Clock, windows ...Window) *Limiter {
	l := &Limiter{clock: clock}
	for _, w := range windows {
		l.windows = append(l.windows, &slidingWindow{limit: w.Limit, period: w.Period})
	}
	return l
}

// Acquire blocks until every window admits one more call, then records it.
// The only error it can return is the context's, when the caller gives up
// while suspended.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		wait, ok := l.tryAcquire()
		if ok {
			return nil
		}

		timer := l.clock.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.Chan():
		}
	}
}

// tryAcquire admits and records the call if every window has slack, or
// reports how long to wait for the most constrained window.
func (l *Limiter) tryAcquire() (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	var wait time.Duration
	for _, w := range l.windows {
		w.prune(now)
		if d := w.delay(now); d > wait {
			wait = d
		}
	}
	if wait > 0 {
		return wait, false
	}
	for _, w := range l.windows {
		w.calls = append(w.calls, now)
	}
	return 0, true
}

// prune drops timestamps that have slid out of the window.
func (w *slidingWindow) prune(now time.Time) {
	cutoff := now.Add(-w.period)
	i := 0
	for i < len(w.calls) && !w.calls[i].After(cutoff) {
		i++
	}
	w.calls = w.calls[i:]
}

// delay reports how long until the window admits another call. Zero means the
// call is admissible now.
func (w *slidingWindow) delay(now time.Time) time.Duration {
	if len(w.calls) < w.limit {
		return 0
	}
	// The call admitting us is the one that must first leave the window.
	admitting := w.calls[len(w.calls)-w.limit]
	return admitting.Add(w.period).Sub(now)
}
