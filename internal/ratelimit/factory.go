package ratelimit

import (
	"fmt"
	"time"

	"github.com/relayline/relayline/internal/config"
)

// FromConfig builds the configured admission algorithm.
func FromConfig(cfg config.RateLimitConfig) (Limiter, error) {
	switch cfg.Algorithm {
	case "token_bucket", "":
		return NewTokenBucket(cfg.Capacity, cfg.RatePerSecond), nil
	case "sliding_window":
		return NewSlidingWindow(time.Duration(cfg.WindowSeconds)*time.Second, cfg.MaxPerWindow), nil
	case "leaky_bucket":
		return NewLeakyBucket(cfg.Capacity, cfg.RatePerSecond), nil
	default:
		return nil, fmt.Errorf("unknown rate limit algorithm %q", cfg.Algorithm)
	}
}
