package api

import (
	"context"
	"sync"
	"time"

	"skycast/internal/logger"
)

// RateLimiter is a sliding-window limiter shared by concurrent callers
type RateLimiter struct {
	mu          sync.Mutex
	requests    []time.Time
	maxRequests int
	window      time.Duration
}

// NewRateLimiter allows maxRequests per window
func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	if maxRequests <= 0 {
		maxRequests = 1
	}
	return &RateLimiter{
		requests:    make([]time.Time, 0, maxRequests),
		maxRequests: maxRequests,
		window:      window,
	}
}

// Wait blocks until a request slot is free or ctx is done
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		sleep := rl.reserve(time.Now())
		if sleep <= 0 {
			return nil
		}

		logger.LogWithFields(logger.InfoLevel, "Rate limit reached, waiting", map[string]any{
			"wait_seconds": sleep.Seconds(),
		})

		timer := time.NewTimer(sleep)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// reserve records a request at now if a slot is free, otherwise returns how
// long until the oldest request leaves the window
func (rl *RateLimiter) reserve(now time.Time) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := now.Add(-rl.window)
	i := 0
	for i < len(rl.requests) && !rl.requests[i].After(cutoff) {
		i++
	}
	rl.requests = rl.requests[i:]

	if len(rl.requests) < rl.maxRequests {
		rl.requests = append(rl.requests, now)
		return 0
	}
	return rl.requests[0].Add(rl.window).Sub(now)
}
