// Package cache provides a fingerprinted, TTL-based disk cache for raw
// search API responses.
//
// The cache avoids re-issuing expensive, rate-limited requests:
//
// - Deterministic fingerprints (SHA-256 over canonical JSON of the request key)
// - One file per fingerprint: <dir>/<fingerprint>.json
// - TTL expiration enforced on read; expired entries are deleted lazily
// - Atomic replace on write (temp file + rename)
// - Optional sweep of expired entries when the store is closed
// - Prometheus metrics for observability
//
// # Basic Usage
//
//	store, err := cache.NewFileStore(dir, cache.DefaultTTL, logger)
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//
//	key := search.PageRequest{Query: "foo", PerPage: 100, Page: 1}
//
//	body, err := store.Get(key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the API, then
//		err = store.Put(key, body)
//	}
//
// # Entry Format
//
// Entries are JSON objects with exactly three members, written in name
// order: "key" (the canonical request key, for debugging), "timestamp"
// (fractional epoch seconds) and "value" (the payload).
//
// # Metrics
//
//   - ghsearch_cache_hits_total - Cache hits
//   - ghsearch_cache_misses_total - Cache misses (absent or expired)
//   - ghsearch_cache_expired_total - Entries evicted on read
//   - ghsearch_cache_swept_total - Entries removed by Sweep
//   - ghsearch_cache_errors_total{operation} - Cache operation errors
//
// A corrupt entry is a hard error: Get never reports it as a miss.
package cache
