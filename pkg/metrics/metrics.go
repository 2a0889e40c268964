// Package metrics documents the Prometheus metrics of gh-search and
// summarises them for the end-of-run log line.
//
// All collectors are defined in their own packages (cache, client,
// pagination, ratelimit, download) and registered via promauto.
package metrics

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Prefix is the namespace shared by all gh-search metrics.
const Prefix = "ghsearch_"

// Snapshot gathers g and returns one value per gh-search metric family,
// summed over label sets. Counters and gauges report their value, histograms
// their sample count.
func Snapshot(g prometheus.Gatherer) (map[string]float64, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}

	out := make(map[string]float64)
	for _, mf := range families {
		name := mf.GetName()
		if !strings.HasPrefix(name, Prefix) {
			continue
		}

		var total float64
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				total += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				total += m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				total += float64(m.GetHistogram().GetSampleCount())
			}
		}
		out[name] = total
	}
	return out, nil
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - ghsearch_cache_hits_total (Counter): Lookups served from disk
//   - ghsearch_cache_misses_total (Counter): Lookups with no usable entry
//   - ghsearch_cache_expired_total (Counter): Entries evicted on read
//   - ghsearch_cache_swept_total (Counter): Entries removed by a sweep
//   - ghsearch_cache_errors_total{operation} (Counter): Cache operation errors
//
// Pagination Metrics (pkg/pagination):
//   - ghsearch_pages_total{source} (Counter): Pages processed from "cache" or "network"
//
// Request Metrics (pkg/client):
//   - ghsearch_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - ghsearch_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - ghsearch_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Rate Limit Metrics (pkg/ratelimit):
//   - ghsearch_rate_limit_remaining{resource} (Gauge): Requests left in the current window
//   - ghsearch_rate_limit_blocks_total{resource} (Counter): Requests refused locally
//
// Download Metrics (pkg/download):
//   - ghsearch_downloads_total{result} (Counter): Files "written" or skipped as "exists"
