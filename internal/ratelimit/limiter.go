// Package ratelimit provides per-destination admission control for
// outbound delivery calls.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter decides whether a call against a destination key may proceed now.
// Implementations must keep the admission check and state mutation atomic
// under concurrent access.
type Limiter interface {
	// Allow reports whether a request of the given cost is admitted.
	Allow(key string, cost int) bool
}

// waitPollInterval is how often Wait re-checks admission.
const waitPollInterval = 100 * time.Millisecond

// Wait blocks until the limiter admits the request, the timeout elapses, or
// ctx is cancelled. Used when back-pressure is preferable to dropping.
func Wait(ctx context.Context, l Limiter, key string, cost int, timeout time.Duration) error {
	if l.Allow(key, cost) {
		return nil
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(waitPollInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return context.DeadlineExceeded
		case <-tick.C:
			if l.Allow(key, cost) {
				return nil
			}
		}
	}
}

// clock abstracts wall time so limiter behavior is testable.
type clock func() time.Time

// keyed guards a per-key state map. All three algorithms share this shape.
type keyed[T any] struct {
	mu    sync.Mutex
	state map[string]*T
}

func newKeyed[T any]() keyed[T] {
	return keyed[T]{state: make(map[string]*T)}
}

// get returns the state for key, creating it with init on first use.
// Callers must hold mu for the whole check-and-mutate.
func (k *keyed[T]) get(key string, init func() *T) *T {
	s, ok := k.state[key]
	if !ok {
		s = init()
		k.state[key] = s
	}
	return s
}
