package ratelimit

import "time"

type bucketState struct {
	tokens     float64
	lastRefill time.Time
}

// TokenBucket admits requests while accumulated tokens cover the cost.
// Tokens refill lazily from elapsed wall-clock time on each check.
type TokenBucket struct {
	capacity float64
	rate     float64 // tokens per second
	now      clock
	keys     keyed[bucketState]
}

// NewTokenBucket creates a token bucket limiter with the given capacity and
// refill rate (tokens/sec). New keys start with a full bucket.
func NewTokenBucket(capacity, rate float64) *TokenBucket {
	return newTokenBucketAt(capacity, rate, time.Now)
}

func newTokenBucketAt(capacity, rate float64, now clock) *TokenBucket {
	return &TokenBucket{capacity: capacity, rate: rate, now: now, keys: newKeyed[bucketState]()}
}

// Allow implements Limiter.
func (tb *TokenBucket) Allow(key string, cost int) bool {
	tb.keys.mu.Lock()
	defer tb.keys.mu.Unlock()

	t := tb.now()
	s := tb.keys.get(key, func() *bucketState {
		return &bucketState{tokens: tb.capacity, lastRefill: t}
	})

	elapsed := t.Sub(s.lastRefill).Seconds()
	if elapsed > 0 {
		s.tokens += elapsed * tb.rate
		if s.tokens > tb.capacity {
			s.tokens = tb.capacity
		}
		s.lastRefill = t
	}

	if s.tokens >= float64(cost) {
		s.tokens -= float64(cost)
		return true
	}
	return false
}
