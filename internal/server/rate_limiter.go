package server

import (
	"time"

	"github.com/Tyrowin/chatrelay/internal/config"
)

// rateLimiter is a token bucket holding up to Burst frames and refilled
// continuously at Burst frames per RefillInterval. It belongs to a single
// read pump and is not safe for concurrent use.
type rateLimiter struct {
	tokens    float64
	capacity  float64
	perSecond float64
	last      time.Time
	now       func() time.Time
}

func newRateLimiter(cfg config.RateLimitConfig) *rateLimiter {
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.RefillInterval <= 0 {
		cfg.RefillInterval = time.Second
	}

	rl := &rateLimiter{
		tokens:    float64(cfg.Burst),
		capacity:  float64(cfg.Burst),
		perSecond: float64(cfg.Burst) / cfg.RefillInterval.Seconds(),
		now:       time.Now,
	}
	rl.last = rl.now()
	return rl
}

// allow consumes a token and reports whether one was available.
func (rl *rateLimiter) allow() bool {
	now := rl.now()
	if elapsed := now.Sub(rl.last).Seconds(); elapsed > 0 {
		rl.tokens = min(rl.capacity, rl.tokens+elapsed*rl.perSecond)
	}
	rl.last = now

	if rl.tokens < 1 {
		return false
	}
	rl.tokens--
	return true
}
