package ratelimit

import (
	"sync"
	"time"

	"github.com/mezonai/sequencer/exception"
)

// RateLimiterConfig holds configuration for rate limiting
type RateLimiterConfig struct {
	MaxRequests     int           // Maximum number of requests allowed
	WindowSize      time.Duration // Time window for rate limiting
	CleanupInterval time.Duration // How often to clean up expired entries
}

// DefaultConfig returns a default configuration
func DefaultConfig() *RateLimiterConfig {
	return &RateLimiterConfig{
		MaxRequests:     50,
		WindowSize:      time.Second,
		CleanupInterval: 5 * time.Minute,
	}
}

// RateLimiter implements sliding window rate limiting per key
type RateLimiter struct {
	config   *RateLimiterConfig
	now      func() time.Time
	requests map[string][]time.Time
	mu       sync.Mutex

	stopOnce    sync.Once
	stopCleanup chan struct{}
}

// NewRateLimiter creates a rate limiter and starts its cleanup loop
func NewRateLimiter(config *RateLimiterConfig) *RateLimiter {
	rl := newRateLimiter(config, time.Now)
	exception.SafeGo("rateLimiterCleanup", rl.cleanupExpiredEntries)
	return rl
}

func newRateLimiter(config *RateLimiterConfig, now func() time.Time) *RateLimiter {
	if config == nil {
		config = DefaultConfig()
	}
	return &RateLimiter{
		config:      config,
		now:         now,
		requests:    make(map[string][]time.Time),
		stopCleanup: make(chan struct{}),
	}
}

// Allow records a request for key and reports whether it fits in the window
func (rl *RateLimiter) Allow(key string) bool {
	now := rl.now()
	cutoff := now.Add(-rl.config.WindowSize)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	valid := prune(rl.requests[key], cutoff)
	if len(valid) >= rl.config.MaxRequests {
		rl.requests[key] = valid
		return false
	}
	rl.requests[key] = append(valid, now)
	return true
}

// prune drops timestamps at or before cutoff. Timestamps are in ascending order.
func prune(requests []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(requests) && !requests[i].After(cutoff) {
		i++
	}
	return requests[i:]
}

// Count returns the number of requests for key inside the current window
func (rl *RateLimiter) Count(key string) int {
	cutoff := rl.now().Add(-rl.config.WindowSize)
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(prune(rl.requests[key], cutoff))
}

func (rl *RateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.requests, key)
}

func (rl *RateLimiter) cleanupExpiredEntries() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *RateLimiter) cleanup() {
	cutoff := rl.now().Add(-rl.config.WindowSize)
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, requests := range rl.requests {
		if valid := prune(requests, cutoff); len(valid) == 0 {
			delete(rl.requests, key)
		} else {
			rl.requests[key] = valid
		}
	}
}

// Stop ends the cleanup loop. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCleanup) })
}
