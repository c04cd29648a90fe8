package ratelimit

import "time"

type leakyState struct {
	level    float64
	lastLeak time.Time
}

// LeakyBucket admits requests while the bucket level, after draining at the
// leak rate since the last check, has room for the cost.
type LeakyBucket struct {
	capacity float64
	rate     float64 // leak per second
	now      clock
	keys     keyed[leakyState]
}

// NewLeakyBucket creates a leaky bucket limiter with the given capacity and
// leak rate (units/sec).
func NewLeakyBucket(capacity, rate float64) *LeakyBucket {
	return newLeakyBucketAt(capacity, rate, time.Now)
}

func newLeakyBucketAt(capacity, rate float64, now clock) *LeakyBucket {
	return &LeakyBucket{capacity: capacity, rate: rate, now: now, keys: newKeyed[leakyState]()}
}

// Allow implements Limiter.
func (lb *LeakyBucket) Allow(key string, cost int) bool {
	lb.keys.mu.Lock()
	defer lb.keys.mu.Unlock()

	t := lb.now()
	s := lb.keys.get(key, func() *leakyState { return &leakyState{lastLeak: t} })

	leaked := t.Sub(s.lastLeak).Seconds() * lb.rate
	if leaked > 0 {
		s.level -= leaked
		if s.level < 0 {
			s.level = 0
		}
		s.lastLeak = t
	}

	if s.level+float64(cost) > lb.capacity {
		return false
	}
	s.level += float64(cost)
	return true
}
