package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/relayline/relayline/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is an adjustable clock for deterministic limiter tests.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// --- Token bucket ---

func TestTokenBucket_CapacityCeiling(t *testing.T) {
	clk := newFakeClock()
	tb := newTokenBucketAt(3, 1, clk.now)

	for i := 0; i < 3; i++ {
		assert.True(t, tb.Allow("d1", 1), "request %d within capacity", i)
	}
	assert.False(t, tb.Allow("d1", 1), "bucket exhausted")
}

func TestTokenBucket_LazyRefill(t *testing.T) {
	clk := newFakeClock()
	tb := newTokenBucketAt(3, 1, clk.now)

	for i := 0; i < 3; i++ {
		tb.Allow("d1", 1)
	}
	require.False(t, tb.Allow("d1", 1))

	clk.advance(2 * time.Second)
	assert.True(t, tb.Allow("d1", 1))
	assert.True(t, tb.Allow("d1", 1))
	assert.False(t, tb.Allow("d1", 1), "only 2 tokens refilled")
}

func TestTokenBucket_RefillNeverExceedsCapacity(t *testing.T) {
	clk := newFakeClock()
	tb := newTokenBucketAt(2, 10, clk.now)

	clk.advance(time.Hour)
	assert.True(t, tb.Allow("d1", 1))
	assert.True(t, tb.Allow("d1", 1))
	assert.False(t, tb.Allow("d1", 1))
}

func TestTokenBucket_KeysIndependent(t *testing.T) {
	clk := newFakeClock()
	tb := newTokenBucketAt(1, 1, clk.now)

	assert.True(t, tb.Allow("d1", 1))
	assert.False(t, tb.Allow("d1", 1))
	assert.True(t, tb.Allow("d2", 1), "other destinations unaffected")
}

func TestTokenBucket_CostAboveTokens(t *testing.T) {
	clk := newFakeClock()
	tb := newTokenBucketAt(5, 1, clk.now)

	assert.True(t, tb.Allow("d1", 5))
	assert.False(t, tb.Allow("d1", 1))
}

// --- Sliding window ---

func TestSlidingWindow_Ceiling(t *testing.T) {
	clk := newFakeClock()
	sw := newSlidingWindowAt(10*time.Second, 3, clk.now)

	for i := 0; i < 3; i++ {
		assert.True(t, sw.Allow("d1", 1))
	}
	assert.False(t, sw.Allow("d1", 1))
}

func TestSlidingWindow_ExpiredStampsPruned(t *testing.T) {
	clk := newFakeClock()
	sw := newSlidingWindowAt(10*time.Second, 2, clk.now)

	require.True(t, sw.Allow("d1", 1))
	clk.advance(6 * time.Second)
	require.True(t, sw.Allow("d1", 1))
	require.False(t, sw.Allow("d1", 1))

	// First stamp falls out of the trailing window
	clk.advance(5 * time.Second)
	assert.True(t, sw.Allow("d1", 1))
	assert.False(t, sw.Allow("d1", 1))
}

func TestSlidingWindow_CostCountsAsMultiple(t *testing.T) {
	clk := newFakeClock()
	sw := newSlidingWindowAt(10*time.Second, 3, clk.now)

	assert.True(t, sw.Allow("d1", 2))
	assert.False(t, sw.Allow("d1", 2), "would exceed window max")
	assert.True(t, sw.Allow("d1", 1))
}

// --- Leaky bucket ---

func TestLeakyBucket_Ceiling(t *testing.T) {
	clk := newFakeClock()
	lb := newLeakyBucketAt(2, 1, clk.now)

	assert.True(t, lb.Allow("d1", 1))
	assert.True(t, lb.Allow("d1", 1))
	assert.False(t, lb.Allow("d1", 1))
}

func TestLeakyBucket_Leaks(t *testing.T) {
	clk := newFakeClock()
	lb := newLeakyBucketAt(2, 1, clk.now)

	require.True(t, lb.Allow("d1", 2))
	require.False(t, lb.Allow("d1", 1))

	clk.advance(1 * time.Second)
	assert.True(t, lb.Allow("d1", 1))
	assert.False(t, lb.Allow("d1", 1))
}

func TestLeakyBucket_LevelFloorsAtZero(t *testing.T) {
	clk := newFakeClock()
	lb := newLeakyBucketAt(2, 1, clk.now)

	lb.Allow("d1", 1)
	clk.advance(time.Hour)
	assert.True(t, lb.Allow("d1", 2), "level drained to zero, full capacity available")
}

// --- Concurrency safety ---

// Every limiter must never admit more than its ceiling regardless of the
// access pattern.
func TestLimiters_ConcurrentCeiling(t *testing.T) {
	const ceiling = 50

	limiters := map[string]Limiter{
		// Zero refill/leak so the ceiling is fixed for the whole test.
		"token_bucket":   newTokenBucketAt(ceiling, 0, time.Now),
		"sliding_window": newSlidingWindowAt(time.Hour, ceiling, time.Now),
		"leaky_bucket":   newLeakyBucketAt(ceiling, 0, time.Now),
	}

	for name, l := range limiters {
		t.Run(name, func(t *testing.T) {
			var admitted atomic.Int64
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for j := 0; j < 25; j++ {
						if l.Allow("d1", 1) {
							admitted.Add(1)
						}
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, int64(ceiling), admitted.Load())
		})
	}
}

// --- Wait ---

func TestWait_ImmediateAdmission(t *testing.T) {
	tb := NewTokenBucket(1, 1)
	err := Wait(context.Background(), tb, "d1", 1, time.Second)
	assert.NoError(t, err)
}

func TestWait_Timeout(t *testing.T) {
	clk := newFakeClock()
	tb := newTokenBucketAt(1, 0, clk.now) // never refills
	tb.Allow("d1", 1)

	start := time.Now()
	err := Wait(context.Background(), tb, "d1", 1, 250*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, time.Since(start), 250*time.Millisecond)
}

func TestWait_AdmittedAfterRefill(t *testing.T) {
	tb := NewTokenBucket(1, 20) // refills fast
	tb.Allow("d1", 1)

	err := Wait(context.Background(), tb, "d1", 1, 2*time.Second)
	assert.NoError(t, err)
}

func TestWait_ContextCancel(t *testing.T) {
	clk := newFakeClock()
	tb := newTokenBucketAt(1, 0, clk.now)
	tb.Allow("d1", 1)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	err := Wait(ctx, tb, "d1", 1, 10*time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

// --- Factory ---

func TestFromConfig(t *testing.T) {
	cases := []struct {
		algo string
		want any
	}{
		{"token_bucket", &TokenBucket{}},
		{"sliding_window", &SlidingWindow{}},
		{"leaky_bucket", &LeakyBucket{}},
	}
	for _, tc := range cases {
		l, err := FromConfig(config.RateLimitConfig{
			Algorithm: tc.algo, Capacity: 5, RatePerSecond: 1, WindowSeconds: 10, MaxPerWindow: 10,
		})
		require.NoError(t, err, tc.algo)
		assert.IsType(t, tc.want, l, tc.algo)
	}

	_, err := FromConfig(config.RateLimitConfig{Algorithm: "coin_flip"})
	assert.Error(t, err)
}
