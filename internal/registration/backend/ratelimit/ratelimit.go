// Package ratelimit implements the per-endpoint sliding window used by the
// simulated backend. State is process-scoped and reset only on restart.
package ratelimit

import (
	"sync"
	"time"
)

// Defaults matching the simulated backend's published limits.
const (
	DefaultLimit  = 5
	DefaultWindow = 10 * time.Second
)

// Result reports the outcome of a rate limit check.
type Result struct {
	Allowed   bool
	Remaining int
	Limit     int
	ResetAt   time.Time
}

// Limiter tracks request timestamps per key over a sliding window. The
// sliding window prevents boundary bursts that a fixed window would allow.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*slidingWindow
	limit   int
	window  time.Duration
	now     func() time.Time
}

type slidingWindow struct {
	timestamps []time.Time
}

// Option tunes a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a limiter allowing limit requests per key within window.
func New(limit int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		windows: make(map[string]*slidingWindow),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow records a request against key and reports whether it fits inside the
// window. Denied requests are not recorded, so a caller that backs off for a
// full window always succeeds afterwards.
func (l *Limiter) Allow(key string) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	sw := l.windows[key]
	if sw == nil {
		sw = &slidingWindow{}
		l.windows[key] = sw
	}
	sw.cleanup(now, l.window)

	if len(sw.timestamps) >= l.limit {
		return Result{
			Allowed:   false,
			Remaining: 0,
			Limit:     l.limit,
			ResetAt:   sw.timestamps[0].Add(l.window),
		}
	}

	sw.timestamps = append(sw.timestamps, now)
	return Result{
		Allowed:   true,
		Remaining: l.limit - len(sw.timestamps),
		Limit:     l.limit,
		ResetAt:   sw.timestamps[0].Add(l.window),
	}
}

// Reset clears the recorded requests for a key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
}

// cleanup drops timestamps that slid out of the window.
func (sw *slidingWindow) cleanup(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	i := 0
	for ; i < len(sw.timestamps); i++ {
		if sw.timestamps[i].After(cutoff) {
			break
		}
	}
	sw.timestamps = sw.timestamps[i:]
}
