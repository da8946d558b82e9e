package relay

import (
	"sync"
	"time"
)

type rateBucket struct {
	tokens     float64
	lastRefill time.Time
}

// rateLimiter is a token bucket per publishing pubkey.
type rateLimiter struct {
	burst              int
	sustainedPerMinute int

	mu      sync.Mutex
	buckets map[string]*rateBucket
}

func newRateLimiter(burst, sustainedPerMinute int) *rateLimiter {
	return &rateLimiter{
		burst:              burst,
		sustainedPerMinute: sustainedPerMinute,
		buckets:            make(map[string]*rateBucket),
	}
}

func (l *rateLimiter) Allow(pubKey string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	bucket, ok := l.buckets[pubKey]
	if !ok {
		bucket = &rateBucket{tokens: float64(l.burst), lastRefill: now}
		l.buckets[pubKey] = bucket
	}

	elapsed := now.Sub(bucket.lastRefill).Seconds()
	if elapsed > 0 {
		refillRate := float64(l.sustainedPerMinute) / 60.0
		bucket.tokens = min(float64(l.burst), bucket.tokens+elapsed*refillRate)
		bucket.lastRefill = now
	}

	if bucket.tokens < 1 {
		return false
	}
	bucket.tokens--
	return true
}
