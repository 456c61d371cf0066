// Package ratelimit implements the global token-bucket-over-a-sliding-window
// limiter from spec.md §4.4 (C5): one FIFO deque of call timestamps guarded
// by a single mutex, shared across every provider in a run — there are no
// per-provider limits in v1 (spec.md §1 Non-goals).
package ratelimit

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// window is the sliding window width over which RPM is enforced.
const window = 60 * time.Second

// Limiter is a global RPM limiter over a 60-second sliding window. The zero
// value is not usable; construct with New.
type Limiter struct {
	mu        sync.Mutex
	rpm       int
	timestamps *list.List // front = oldest

	// now is overridable in tests; defaults to time.Now.
	now func() time.Time
}

// New returns a Limiter enforcing rpm calls per 60-second window. rpm == 0
// disables limiting entirely: Acquire becomes a no-op.
func New(rpm int) *Limiter {
	return &Limiter{
		rpm:        rpm,
		timestamps: list.New(),
		now:        time.Now,
	}
}

// Acquire blocks until a slot is available, then records the call. It
// respects ctx cancellation while sleeping: a cancelled Acquire returns
// ctx.Err() without consuming a slot and without recording a timestamp.
//
// Open question (spec.md §9) decided: a slot taken by Acquire is never
// refunded, even if the caller's context is cancelled immediately after —
// see SPEC_FULL.md §11 for the rationale.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l.rpm <= 0 {
		return nil
	}

	for {
		l.mu.Lock()
		now := l.now()
		l.evictOlderThan(now)

		if l.timestamps.Len() < l.rpm {
			l.timestamps.PushBack(now)
			l.mu.Unlock()
			return nil
		}

		oldest := l.timestamps.Front().Value.(time.Time)
		wait := oldest.Add(window).Sub(now)
		l.mu.Unlock()

		if wait <= 0 {
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			// loop around and re-check; another acquirer may have taken
			// the freed slot first.
		}
	}
}

// evictOlderThan removes every timestamp older than 60s relative to now.
// Callers must hold l.mu.
func (l *Limiter) evictOlderThan(now time.Time) {
	for e := l.timestamps.Front(); e != nil; {
		ts := e.Value.(time.Time)
		if now.Sub(ts) < window {
			break
		}
		next := e.Next()
		l.timestamps.Remove(e)
		e = next
	}
}

// InFlight returns the number of timestamps currently counted in the
// window, for diagnostics/tests.
func (l *Limiter) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evictOlderThan(l.now())
	return l.timestamps.Len()
}
