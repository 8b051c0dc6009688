// ABOUTME: Sliding-window request limiter keyed by client identifier.
// ABOUTME: Keeps every admitted timestamp inside the window; stale clients are never evicted.

package ratelimit

import (
	"sync"
	"time"
)

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed bool
	// RetryAfter is set on rejection: whole seconds until the oldest
	// timestamp leaves the window, never less than one second.
	RetryAfter time.Duration
	// Remaining is how many more requests the client may make now.
	Remaining int
	Limit     int
}

// RetryAfterSeconds returns RetryAfter in whole seconds.
func (d Decision) RetryAfterSeconds() int {
	return int(d.RetryAfter / time.Second)
}

// Limiter admits at most limit requests per client in any window.
type Limiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	clients map[string][]time.Time
}

// NewLimiter creates a Limiter. A limit of zero or less admits everything.
// A nil now uses time.Now.
func NewLimiter(limit int, window time.Duration, now func() time.Time) *Limiter {
	if now == nil {
		now = time.Now
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{
		limit:   limit,
		window:  window,
		now:     now,
		clients: make(map[string][]time.Time),
	}
}

// Allow prunes client's expired timestamps, then either rejects (when the
// window is full) or records the request and admits it.
func (l *Limiter) Allow(client string) Decision {
	if l.limit <= 0 {
		return Decision{Allowed: true, Remaining: -1, Limit: l.limit}
	}

	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	stamps := prune(l.clients[client], now, l.window)

	if len(stamps) >= l.limit {
		l.clients[client] = stamps
		return Decision{
			Allowed:    false,
			RetryAfter: retryAfter(stamps[0].Add(l.window).Sub(now)),
			Remaining:  0,
			Limit:      l.limit,
		}
	}

	stamps = append(stamps, now)
	l.clients[client] = stamps
	return Decision{Allowed: true, Remaining: l.limit - len(stamps), Limit: l.limit}
}

// Clients returns the number of tracked client identifiers.
func (l *Limiter) Clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// prune drops timestamps at or beyond the window. stamps is ascending.
func prune(stamps []time.Time, now time.Time, window time.Duration) []time.Time {
	i := 0
	for i < len(stamps) && now.Sub(stamps[i]) >= window {
		i++
	}
	if i == 0 {
		return stamps
	}
	return append(stamps[:0], stamps[i:]...)
}

// retryAfter rounds d up to whole seconds with a one second floor.
func retryAfter(d time.Duration) time.Duration {
	secs := (d + time.Second - 1) / time.Second
	if secs < 1 {
		secs = 1
	}
	return secs * time.Second
}
