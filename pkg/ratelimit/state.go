// Package ratelimit tracks the search API rate-limit budget reported in
// X-RateLimit-* response headers and refuses requests that are certain to
// be rejected. It never sleeps or retries.
package ratelimit

import (
	"time"
)

// Response headers carrying the rate-limit budget.
const (
	HeaderLimit     = "X-RateLimit-Limit"
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"
	HeaderResource  = "X-RateLimit-Resource"
)

// Resources the API budgets separately. Code search has its own small
// budget; blob downloads count against the core budget.
const (
	ResourceCore       = "core"
	ResourceCodeSearch = "code_search"
)

// ThresholdWarning triggers a warning log when the remaining budget falls below it.
// The code search API allows 10 requests per minute.
const ThresholdWarning = 3

// State is the most recently observed rate-limit budget of one resource.
type State struct {
	// Limit is the number of requests allowed per window.
	Limit int `json:"limit"`

	// Remaining is the number of requests left in the current window.
	Remaining int `json:"remaining"`

	// ResetAt is when the current window ends.
	ResetAt time.Time `json:"reset_at"`

	// Resource is the rate-limit bucket, e.g. "code_search".
	Resource string `json:"resource"`

	// LastUpdate is when this state was observed.
	LastUpdate time.Time `json:"last_update"`
}

// Known returns true once the state was populated from a response.
func (s *State) Known() bool {
	return !s.LastUpdate.IsZero()
}

// IsStale returns true if the state is older than maxAge.
func (s *State) IsStale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(s.LastUpdate) > maxAge
}

// Exhausted returns true if no requests remain and the window has not reset yet.
func (s *State) Exhausted(now time.Time) bool {
	return s.Known() && s.Remaining <= 0 && now.Before(s.ResetAt)
}

// NeedsWarning returns true if the budget is low but not exhausted.
func (s *State) NeedsWarning() bool {
	return s.Known() && s.Remaining > 0 && s.Remaining < ThresholdWarning
}

// TimeUntilReset returns the duration until the window resets.
// Returns 0 if the reset time has already passed.
func (s *State) TimeUntilReset(now time.Time) time.Duration {
	d := s.ResetAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
