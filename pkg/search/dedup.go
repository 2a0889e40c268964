package search

import (
	"iter"

	"github.com/rs/zerolog"
)

// Deduplicator suppresses items whose identity was already forwarded during a run.
// It is not safe for concurrent use.
type Deduplicator struct {
	seen   map[Identity]struct{}
	logger zerolog.Logger
}

// NewDeduplicator creates an empty deduplicator.
func NewDeduplicator(logger zerolog.Logger) *Deduplicator {
	return &Deduplicator{
		seen:   make(map[Identity]struct{}),
		logger: logger,
	}
}

// Seen records the item's identity and reports whether it had been recorded before.
// Malformed items are not recorded.
func (d *Deduplicator) Seen(item Item) (bool, error) {
	id, err := item.Identity()
	if err != nil {
		return false, err
	}

	if _, ok := d.seen[id]; ok {
		d.logger.Debug().
			Str("repo", id.Repository).
			Str("path", id.Path).
			Msg("Duplicate item, skipping")
		return true, nil
	}

	d.seen[id] = struct{}{}
	return false, nil
}

// Len returns the number of distinct identities recorded so far.
func (d *Deduplicator) Len() int {
	return len(d.seen)
}

// Filter forwards the first occurrence of every identity in seq.
// Upstream errors are forwarded as-is. A malformed item ends the sequence
// with an error; nothing after it is forwarded.
func (d *Deduplicator) Filter(seq iter.Seq2[Item, error]) iter.Seq2[Item, error] {
	return func(yield func(Item, error) bool) {
		for item, err := range seq {
			if err != nil {
				yield(Item{}, err)
				return
			}

			dup, err := d.Seen(item)
			if err != nil {
				yield(Item{}, err)
				return
			}
			if dup {
				continue
			}

			if !yield(item, nil) {
				return
			}
		}
	}
}
