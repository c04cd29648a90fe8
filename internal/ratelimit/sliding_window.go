package ratelimit

import "time"

type windowState struct {
	stamps []time.Time
}

// SlidingWindow admits requests while the number of admissions in the
// trailing window stays under the maximum. Expired timestamps are pruned on
// each check.
type SlidingWindow struct {
	window time.Duration
	max    int
	now    clock
	keys   keyed[windowState]
}

// NewSlidingWindow creates a sliding window counter limiter admitting at
// most max requests per trailing window.
func NewSlidingWindow(window time.Duration, max int) *SlidingWindow {
	return newSlidingWindowAt(window, max, time.Now)
}

func newSlidingWindowAt(window time.Duration, max int, now clock) *SlidingWindow {
	return &SlidingWindow{window: window, max: max, now: now, keys: newKeyed[windowState]()}
}

// Allow implements Limiter. A cost of n counts as n admissions.
func (sw *SlidingWindow) Allow(key string, cost int) bool {
	sw.keys.mu.Lock()
	defer sw.keys.mu.Unlock()

	t := sw.now()
	s := sw.keys.get(key, func() *windowState { return &windowState{} })

	cutoff := t.Add(-sw.window)
	kept := s.stamps[:0]
	for _, ts := range s.stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	s.stamps = kept

	if len(s.stamps)+cost > sw.max {
		return false
	}
	for i := 0; i < cost; i++ {
		s.stamps = append(s.stamps, t)
	}
	return true
}
