// Package ratelimit implements the fixed-window call budget that guards the
// catalog API. A single Limiter is shared by every fetch worker of a pipeline
// run; its state is only read or written while holding the limiter's lock.
package ratelimit

import (
	"time"
)

// Defaults matching the catalog API's published quota.
const (
	// DefaultMaxCalls is the number of calls allowed per window.
	DefaultMaxCalls = 2

	// DefaultWindow is the length of one rate limit window.
	DefaultWindow = 60 * time.Second

	// DefaultMinInterval spaces consecutive calls.
	DefaultMinInterval = 2 * time.Second
)

// RateLimitState is the call counter for the current window.
type RateLimitState struct {
	// CallsInWindow is the number of calls recorded since WindowStart.
	CallsInWindow int `json:"calls_in_window"`

	// WindowStart is when the current window opened.
	WindowStart time.Time `json:"window_start"`
}

// Expired returns true once the window has run for at least window.
func (s *RateLimitState) Expired(now time.Time, window time.Duration) bool {
	return now.Sub(s.WindowStart) >= window
}

// Remaining returns the time left in the current window.
// Returns 0 if the window has already elapsed.
func (s *RateLimitState) Remaining(now time.Time, window time.Duration) time.Duration {
	remaining := window - now.Sub(s.WindowStart)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Exhausted returns true when no call is left in the current window.
func (s *RateLimitState) Exhausted(maxCalls int) bool {
	return s.CallsInWindow >= maxCalls
}

// Reset opens a fresh window at now.
func (s *RateLimitState) Reset(now time.Time) {
	s.CallsInWindow = 0
	s.WindowStart = now
}
