package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a set of token buckets keyed by string. A bucket is created on
// first use with the capacity and refill rate of that call.
type Limiter struct {
	mu  sync.Mutex
	m   map[string]*rate.Limiter
	now func() time.Time
}

func New() *Limiter { return &Limiter{m: make(map[string]*rate.Limiter), now: time.Now} }

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string, capacity, refillPerSec float64) bool {
	return l.AllowAt(key, l.now(), capacity, refillPerSec)
}

// AllowAt is Allow against an explicit clock reading, e.g. a candle timestamp
// during replay. Readings earlier than the last granted one do not refill.
func (l *Limiter) AllowAt(key string, now time.Time, capacity, refillPerSec float64) bool {
	return l.bucket(key, capacity, refillPerSec).AllowN(now, 1)
}

// AllowEvery permits at most one event per interval for key. A non-positive
// interval always allows.
func (l *Limiter) AllowEvery(key string, now time.Time, interval time.Duration) bool {
	if interval <= 0 {
		return true
	}
	return l.AllowAt(key, now, 1, 1/interval.Seconds())
}

func (l *Limiter) bucket(key string, capacity, refillPerSec float64) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.m[key]
	if !ok {
		b = rate.NewLimiter(rate.Limit(refillPerSec), int(capacity))
		l.m[key] = b
	}
	return b
}
