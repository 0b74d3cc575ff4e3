// Package server implements a token bucket throttle for inbound event
// frames that protects the hub from connections flooding the relay.
package server

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// frameThrottle meters the event frames read from one connection. The bucket
// holds up to burst tokens and refills continuously at burst per interval;
// each frame costs one token and frames arriving with the bucket empty are
// discarded without dispatch.
type frameThrottle struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	rate     float64
	last     time.Time
	logger   zerolog.Logger
}

func newFrameThrottle(cfg RateLimitConfig, logger zerolog.Logger) *frameThrottle {
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	interval := cfg.RefillInterval
	if interval <= 0 {
		interval = time.Second
	}

	rate := float64(burst) / interval.Seconds()
	if rate <= 0 {
		rate = float64(burst)
	}

	return &frameThrottle{
		tokens:   float64(burst),
		capacity: float64(burst),
		rate:     rate,
		last:     time.Now(),
		logger: logger.With().
			Int("burst", burst).
			Dur("interval", interval).
			Logger(),
	}
}

// allow consumes one token and reports whether the frame may be dispatched.
// The discard diagnostic is emitted here so every caller shares one message
// shape.
func (ft *frameThrottle) allow() bool {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(ft.last).Seconds()
	ft.last = now

	if elapsed > 0 {
		ft.tokens += elapsed * ft.rate
		if ft.tokens > ft.capacity {
			ft.tokens = ft.capacity
		}
	}

	if ft.tokens < 1 {
		ft.logger.Warn().Msg("rate limit exceeded; discarding frame")
		return false
	}

	ft.tokens--
	return true
}
