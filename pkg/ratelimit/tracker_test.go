package ratelimit

import (
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker(now time.Time) *Tracker {
	tr := NewTracker(zerolog.Nop())
	tr.now = func() time.Time { return now }
	return tr
}

func rateHeaders(resource string, limit, remaining int, reset time.Time) http.Header {
	h := http.Header{}
	h.Set(HeaderLimit, strconv.Itoa(limit))
	h.Set(HeaderRemaining, strconv.Itoa(remaining))
	h.Set(HeaderReset, strconv.FormatInt(reset.Unix(), 10))
	if resource != "" {
		h.Set(HeaderResource, resource)
	}
	return h
}

func TestTracker_UpdateFromHeaders(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tr := newTestTracker(now)

	require.NoError(t, tr.UpdateFromHeaders(ResourceCore, rateHeaders(ResourceCodeSearch, 10, 7, now.Add(time.Minute))))

	state := tr.State(ResourceCodeSearch)
	assert.Equal(t, 10, state.Limit)
	assert.Equal(t, 7, state.Remaining)
	assert.Equal(t, ResourceCodeSearch, state.Resource)
	assert.True(t, state.ResetAt.Equal(now.Add(time.Minute)))
	assert.True(t, state.LastUpdate.Equal(now))
	assert.Equal(t, float64(7), testutil.ToFloat64(rateLimitRemaining.WithLabelValues(ResourceCodeSearch)))

	core := tr.State(ResourceCore)
	assert.False(t, core.Known(), "the named resource wins over the fallback")
}

func TestTracker_UpdateFromHeaders_FallbackResource(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tr := newTestTracker(now)

	require.NoError(t, tr.UpdateFromHeaders(ResourceCore, rateHeaders("", 5000, 4999, now.Add(time.Hour))))

	state := tr.State(ResourceCore)
	assert.Equal(t, 4999, state.Remaining)
	assert.Equal(t, ResourceCore, state.Resource)
}

func TestTracker_ResourcesAreIndependent(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tr := newTestTracker(now)

	require.NoError(t, tr.UpdateFromHeaders(ResourceCodeSearch, rateHeaders(ResourceCodeSearch, 10, 0, now.Add(time.Minute))))
	require.NoError(t, tr.UpdateFromHeaders(ResourceCore, rateHeaders(ResourceCore, 5000, 4999, now.Add(time.Hour))))

	// A later core response does not hide the spent search budget.
	assert.ErrorIs(t, tr.ShouldAllowRequest(ResourceCodeSearch), ErrRateLimitExhausted)
	// The spent search budget does not block core requests.
	assert.NoError(t, tr.ShouldAllowRequest(ResourceCore))

	search := tr.State(ResourceCodeSearch)
	core := tr.State(ResourceCore)
	assert.Equal(t, 0, search.Remaining)
	assert.Equal(t, 4999, core.Remaining)
}

func TestTracker_UpdateFromHeaders_Missing(t *testing.T) {
	tr := newTestTracker(time.Now())

	require.NoError(t, tr.UpdateFromHeaders(ResourceCore, http.Header{}))
	state := tr.State(ResourceCore)
	assert.False(t, state.Known())
}

func TestTracker_UpdateFromHeaders_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		headers http.Header
	}{
		{
			name:    "non-numeric remaining",
			headers: http.Header{HeaderRemaining: []string{"many"}, HeaderReset: []string{"1"}},
		},
		{
			name:    "missing reset",
			headers: http.Header{HeaderRemaining: []string{"5"}},
		},
		{
			name:    "non-numeric reset",
			headers: http.Header{HeaderRemaining: []string{"5"}, HeaderReset: []string{"soon"}},
		},
		{
			name: "non-numeric limit",
			headers: http.Header{
				HeaderRemaining: []string{"5"},
				HeaderReset:     []string{"1"},
				HeaderLimit:     []string{"ten"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestTracker(time.Now())
			assert.Error(t, tr.UpdateFromHeaders(ResourceCore, tt.headers))
		})
	}
}

func TestTracker_ShouldAllowRequest(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("unknown state allows", func(t *testing.T) {
		tr := newTestTracker(now)
		assert.NoError(t, tr.ShouldAllowRequest(ResourceCodeSearch))
	})

	t.Run("budget left allows", func(t *testing.T) {
		tr := newTestTracker(now)
		require.NoError(t, tr.UpdateFromHeaders(ResourceCodeSearch, rateHeaders(ResourceCodeSearch, 10, 1, now.Add(time.Minute))))
		assert.NoError(t, tr.ShouldAllowRequest(ResourceCodeSearch))
	})

	t.Run("exhausted refuses", func(t *testing.T) {
		tr := newTestTracker(now)
		require.NoError(t, tr.UpdateFromHeaders(ResourceCodeSearch, rateHeaders(ResourceCodeSearch, 10, 0, now.Add(time.Minute))))

		before := testutil.ToFloat64(rateLimitBlocksTotal.WithLabelValues(ResourceCodeSearch))
		err := tr.ShouldAllowRequest(ResourceCodeSearch)
		assert.ErrorIs(t, err, ErrRateLimitExhausted)
		assert.Equal(t, before+1, testutil.ToFloat64(rateLimitBlocksTotal.WithLabelValues(ResourceCodeSearch)))
	})

	t.Run("exhausted but reset passed allows", func(t *testing.T) {
		tr := newTestTracker(now)
		require.NoError(t, tr.UpdateFromHeaders(ResourceCodeSearch, rateHeaders(ResourceCodeSearch, 10, 0, now.Add(time.Minute))))
		tr.now = func() time.Time { return now.Add(2 * time.Minute) }
		assert.NoError(t, tr.ShouldAllowRequest(ResourceCodeSearch))
	})
}
