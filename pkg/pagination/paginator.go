package pagination

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/gh-search/pkg/cache"
	"github.com/Sternrassler/gh-search/pkg/search"
)

// MaxPerPage is the largest page size the search API accepts.
const MaxPerPage = 100

var pagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ghsearch_pages_total",
	Help: "Total search result pages processed by source",
}, []string{"source"}) // "cache", "network"

// ErrAlreadyConsumed is yielded when All is ranged over a second time.
var ErrAlreadyConsumed = errors.New("paginator already consumed")

// PageFetcher fetches a single page from the search API.
type PageFetcher interface {
	// FetchPage returns the raw body and whether the response links to a next page.
	FetchPage(ctx context.Context, req search.PageRequest) (body []byte, hasNext bool, err error)
}

// Cache stores raw page bodies. Get returns cache.ErrCacheMiss for absent or expired entries.
type Cache interface {
	Get(key any) (string, error)
	Put(key any, value string) error
}

// Config holds paginator configuration.
type Config struct {
	// Query is the search query string.
	Query string

	// MaxResults bounds the page size: per_page = min(MaxResults, MaxPerPage).
	// It does not cap the total number of items yielded.
	MaxResults int
}

// Paginator yields the items of a search, page by page.
// A Paginator is single-use.
type Paginator struct {
	fetcher  PageFetcher
	cache    Cache
	query    string
	perPage  int
	logger   zerolog.Logger
	consumed bool
}

// New creates a paginator.
func New(fetcher PageFetcher, c Cache, cfg Config, logger zerolog.Logger) (*Paginator, error) {
	if fetcher == nil {
		return nil, errors.New("page fetcher is required")
	}
	if c == nil {
		return nil, errors.New("cache is required")
	}
	if cfg.Query == "" {
		return nil, errors.New("query must not be empty")
	}
	if cfg.MaxResults <= 0 {
		return nil, fmt.Errorf("max results must be > 0 (got %d)", cfg.MaxResults)
	}

	return &Paginator{
		fetcher: fetcher,
		cache:   c,
		query:   cfg.Query,
		perPage: min(cfg.MaxResults, MaxPerPage),
		logger:  logger,
	}, nil
}

// PerPage returns the page size used for every request.
func (p *Paginator) PerPage() int {
	return p.perPage
}

// All returns the lazy sequence of result items.
// A non-nil error is yielded at most once and ends the sequence.
func (p *Paginator) All(ctx context.Context) iter.Seq2[search.Item, error] {
	return func(yield func(search.Item, error) bool) {
		if p.consumed {
			yield(search.Item{}, ErrAlreadyConsumed)
			return
		}
		p.consumed = true

		for page := 1; ; page++ {
			if err := ctx.Err(); err != nil {
				yield(search.Item{}, err)
				return
			}

			resp, last, err := p.loadPage(ctx, page)
			if err != nil {
				yield(search.Item{}, err)
				return
			}

			if resp.TotalCount == 0 {
				p.logger.Debug().Int("page", page).Msg("No results, ending pagination")
				return
			}
			if len(resp.Items) == 0 {
				p.logger.Debug().Int("page", page).Msg("No items in response, ending pagination")
				return
			}

			for _, item := range resp.Items {
				if !yield(item, nil) {
					return
				}
			}

			if last {
				p.logger.Debug().Int("page", page).Msg("No next link, ending pagination")
				return
			}
		}
	}
}

// loadPage returns the decoded page and whether it is known to be the last one.
// Only a page fetched from the network can be known to be last.
func (p *Paginator) loadPage(ctx context.Context, page int) (*search.Response, bool, error) {
	key := search.PageRequest{Query: p.query, PerPage: p.perPage, Page: page}

	var (
		data string
		last bool
	)

	cached, err := p.cache.Get(key)
	switch {
	case err == nil:
		pagesTotal.WithLabelValues("cache").Inc()
		data = cached
	case errors.Is(err, cache.ErrCacheMiss):
		body, hasNext, fetchErr := p.fetcher.FetchPage(ctx, key)
		if fetchErr != nil {
			return nil, false, fmt.Errorf("fetch page %d: %w", page, fetchErr)
		}
		pagesTotal.WithLabelValues("network").Inc()

		data = string(body)
		if err := p.cache.Put(key, data); err != nil {
			return nil, false, fmt.Errorf("cache page %d: %w", page, err)
		}
		last = !hasNext
	default:
		return nil, false, fmt.Errorf("cache lookup page %d: %w", page, err)
	}

	var resp search.Response
	if err := json.Unmarshal([]byte(data), &resp); err != nil {
		return nil, false, fmt.Errorf("decode page %d: %w", page, err)
	}

	p.logger.Debug().
		Int("page", page).
		Int("total_count", resp.TotalCount).
		Int("items", len(resp.Items)).
		Msg("Loaded search page")

	return &resp, last, nil
}
