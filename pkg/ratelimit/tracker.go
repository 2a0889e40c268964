package ratelimit

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// ErrRateLimitExhausted is returned when the known budget is spent and the window has not reset.
var ErrRateLimitExhausted = errors.New("rate limit exhausted")

// Prometheus metrics for rate limit tracking.
var (
	rateLimitRemaining = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ghsearch_rate_limit_remaining",
		Help: "Number of requests remaining in the current rate limit window by resource",
	}, []string{"resource"})

	rateLimitBlocksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ghsearch_rate_limit_blocks_total",
		Help: "Total number of requests refused because the rate limit was exhausted by resource",
	}, []string{"resource"})
)

// Tracker records one rate-limit budget per resource and gates requests.
// Safe for concurrent use.
type Tracker struct {
	mu     sync.RWMutex
	states map[string]State
	now    func() time.Time
	logger zerolog.Logger
}

// NewTracker creates a tracker with no known state.
func NewTracker(logger zerolog.Logger) *Tracker {
	return &Tracker{
		states: make(map[string]State),
		now:    time.Now,
		logger: logger,
	}
}

// State returns a copy of the state of resource. The zero State is returned
// for a resource no response has reported yet.
func (t *Tracker) State(resource string) State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.states[resource]
}

// UpdateFromHeaders parses the rate-limit headers of a response.
// The budget is filed under X-RateLimit-Resource, or under resource when the
// response does not name one. Responses without X-RateLimit-Remaining leave
// the state unchanged.
func (t *Tracker) UpdateFromHeaders(resource string, headers http.Header) error {
	remainStr := headers.Get(HeaderRemaining)
	if remainStr == "" {
		return nil
	}

	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}

	var limit int
	if limitStr := headers.Get(HeaderLimit); limitStr != "" {
		if limit, err = strconv.Atoi(limitStr); err != nil {
			return fmt.Errorf("parse %s header: %w", HeaderLimit, err)
		}
	}

	resetStr := headers.Get(HeaderReset)
	if resetStr == "" {
		return fmt.Errorf("%s header missing", HeaderReset)
	}
	resetEpoch, err := strconv.ParseInt(resetStr, 10, 64)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderReset, err)
	}

	if name := headers.Get(HeaderResource); name != "" {
		resource = name
	}

	state := State{
		Limit:      limit,
		Remaining:  remain,
		ResetAt:    time.Unix(resetEpoch, 0),
		Resource:   resource,
		LastUpdate: t.now(),
	}

	t.mu.Lock()
	t.states[resource] = state
	t.mu.Unlock()

	rateLimitRemaining.WithLabelValues(resource).Set(float64(remain))

	event := t.logger.Debug()
	msg := "Rate limit state updated"
	switch {
	case remain <= 0:
		event = t.logger.Warn()
		msg = "Rate limit exhausted"
	case state.NeedsWarning():
		event = t.logger.Warn()
		msg = "Rate limit low"
	}
	event.
		Int("remaining", remain).
		Int("limit", limit).
		Str("resource", state.Resource).
		Time("reset_at", state.ResetAt).
		Msg(msg)

	return nil
}

// ShouldAllowRequest returns ErrRateLimitExhausted if the last observed budget
// of resource is spent and its window has not reset. It does not wait.
func (t *Tracker) ShouldAllowRequest(resource string) error {
	state := t.State(resource)
	now := t.now()

	if !state.Exhausted(now) {
		return nil
	}

	wait := state.TimeUntilReset(now)
	t.logger.Error().
		Str("resource", resource).
		Dur("reset_in", wait).
		Msg("Rate limit exhausted - refusing request")

	rateLimitBlocksTotal.WithLabelValues(resource).Inc()
	return fmt.Errorf("%w: %s resets in %s", ErrRateLimitExhausted, resource, wait.Round(time.Second))
}
