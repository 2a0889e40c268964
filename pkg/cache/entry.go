package cache

import (
	"encoding/json"
	"math"
	"time"
)

// Entry is the on-disk representation of a cached value.
// Fields are declared in name order so encoded entries are byte-stable.
type Entry struct {
	// Key is the canonical request key, kept for debugging only.
	Key json.RawMessage `json:"key"`

	// Timestamp is when the entry was written, in fractional epoch seconds.
	Timestamp float64 `json:"timestamp"`

	// Value is the cached payload, typically a raw response body.
	Value string `json:"value"`
}

// NewEntry creates an entry stamped with the given time.
func NewEntry(key json.RawMessage, value string, now time.Time) *Entry {
	return &Entry{
		Key:       key,
		Timestamp: toEpochSeconds(now),
		Value:     value,
	}
}

// WrittenAt returns the entry timestamp as a time.Time.
func (e *Entry) WrittenAt() time.Time {
	sec, frac := math.Modf(e.Timestamp)
	return time.Unix(int64(sec), int64(frac*float64(time.Second)))
}

// Age returns how old the entry is at now.
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.WrittenAt())
}

// IsExpired reports whether the entry is strictly older than ttl at now.
func (e *Entry) IsExpired(now time.Time, ttl time.Duration) bool {
	return toEpochSeconds(now)-e.Timestamp > ttl.Seconds()
}

func toEpochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
