package realtime

import (
	"sync"
	"time"
)

// RateLimiter is a per-connection sliding-window limiter on inbound frames.
type RateLimiter struct {
	mu     sync.Mutex
	hits   []time.Time
	limit  int
	window time.Duration
}

// NewRateLimiter falls back to the package defaults for non-positive inputs.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = rateLimitEvents
	}
	if window <= 0 {
		window = rateLimitWindow
	}
	return &RateLimiter{
		hits:   make([]time.Time, 0, limit),
		limit:  limit,
		window: window,
	}
}

// Allow records a frame at now and reports whether it fits in the window.
// Rejected frames are not recorded.
func (r *RateLimiter) Allow(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cut := now.Add(-r.window)
	keep := 0
	for keep < len(r.hits) && !r.hits[keep].After(cut) {
		keep++
	}
	r.hits = append(r.hits[:0], r.hits[keep:]...)

	if len(r.hits) >= r.limit {
		return false
	}
	r.hits = append(r.hits, now)
	return true
}
