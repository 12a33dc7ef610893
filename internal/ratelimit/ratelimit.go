// Package ratelimit implements a fixed-window request counter keyed by
// caller identity. Windows are non-overlapping time buckets; the count
// resets at each bucket boundary. State is process-local and lost on
// restart, which is acceptable for a coarse abuse guard.
package ratelimit

import (
	"sync"
	"time"
)

// Window is the default fixed window size.
const Window = time.Minute

// Decision is the outcome of a rate-limit check. It carries enough metadata
// to construct standard X-RateLimit-* response headers.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

type window struct {
	count   int
	startAt time.Time
}

// Limiter counts requests per identity within fixed windows.
type Limiter struct {
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	windows map[string]*window
	sweepAt time.Time
}

// New creates a limiter with the given window size.
func New(interval time.Duration) *Limiter {
	if interval <= 0 {
		interval = Window
	}
	return &Limiter{
		interval: interval,
		now:      time.Now,
		windows:  make(map[string]*window),
	}
}

// Check records one request for identity and decides whether it is within
// limit for the current window. The check must run before any
// state-mutating work in the caller.
func (l *Limiter) Check(identity string, limit int) Decision {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.maybeSweep(now)

	w, ok := l.windows[identity]
	if !ok || now.Sub(w.startAt) >= l.interval {
		w = &window{startAt: now}
		l.windows[identity] = w
	}

	resetAt := w.startAt.Add(l.interval)
	if w.count >= limit {
		return Decision{Allowed: false, Limit: limit, Remaining: 0, ResetAt: resetAt}
	}

	w.count++
	return Decision{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - w.count,
		ResetAt:   resetAt,
	}
}

// maybeSweep drops windows that elapsed more than one interval ago, so the
// map does not grow with every identity ever seen. Called with l.mu held.
func (l *Limiter) maybeSweep(now time.Time) {
	if now.Sub(l.sweepAt) < l.interval {
		return
	}
	l.sweepAt = now
	for id, w := range l.windows {
		if now.Sub(w.startAt) >= 2*l.interval {
			delete(l.windows, id)
		}
	}
}
