// Package ratelimit provides a per-key token-bucket limiter used to blunt
// automated sign-in and claim storms. Exceeding a quota never fails hard;
// callers receive a retry-after duration to report back.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// KeyedLimiter maintains one token bucket per key (identity subject,
// normalized handle, ...). Buckets are created lazily and never evicted;
// the key space here is small and bounded by real users.
type KeyedLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
	window   time.Duration
}

// NewKeyedLimiter allows `events` per `window` for each key, with burst
// capacity equal to events.
func NewKeyedLimiter(events int, window time.Duration) *KeyedLimiter {
	return &KeyedLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Every(window / time.Duration(events)),
		burst:    events,
		window:   window,
	}
}

// Allow reports whether one event for key may proceed now. When denied, the
// returned duration says how long to wait before the next attempt.
func (l *KeyedLimiter) Allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = lim
	}
	l.mu.Unlock()

	res := lim.Reserve()
	if !res.OK() {
		return false, l.window
	}
	if delay := res.Delay(); delay > 0 {
		res.Cancel()
		return false, delay
	}
	return true, 0
}
