// Package client provides the HTTP client for the GitHub code search API:
// authentication headers, rate-limit tracking, continuation-link parsing
// and error classification. It never retries.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/tomnomnom/linkheader"

	"github.com/Sternrassler/gh-search/pkg/ratelimit"
	"github.com/Sternrassler/gh-search/pkg/search"
)

// Prometheus metrics for search API operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ghsearch_requests_total",
		Help: "Total API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ghsearch_request_duration_seconds",
		Help:    "API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ghsearch_errors_total",
		Help: "Total API errors by class",
	}, []string{"class"})
)

const (
	// DefaultBaseURL is the public GitHub REST API.
	DefaultBaseURL = "https://api.github.com"

	// APIVersion is the REST API version the response schema is decoded against.
	APIVersion = "2022-11-28"

	// MediaType is the Accept header value for the REST API.
	MediaType = "application/vnd.github+json"

	searchCodePath = "/search/code"

	endpointSearch = "search_code"
	endpointBlob   = "git_blob"
)

var validate = validator.New()

// Config holds the client configuration.
type Config struct {
	// BaseURL of the REST API, without trailing slash.
	BaseURL string `validate:"required,url"`

	// Token is sent as a bearer token.
	Token string `validate:"required"`

	// UserAgent header (required by the API).
	UserAgent string `validate:"required"`

	// Timeout bounds every single request.
	Timeout time.Duration `validate:"gt=0"`
}

// DefaultConfig returns a configuration for the public API.
func DefaultConfig(token string) Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		Token:     token,
		UserAgent: "gh-search/0.1.0",
		Timeout:   30 * time.Second,
	}
}

// Client is the search API client.
type Client struct {
	httpClient  *http.Client
	rateLimiter *ratelimit.Tracker
	config      Config
	logger      zerolog.Logger
}

// New creates a new search API client.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid client config: %w", err)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	logger = logger.With().Str("component", "search-client").Logger()

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiter: ratelimit.NewTracker(logger),
		config:      cfg,
		logger:      logger,
	}, nil
}

// FetchPage requests one page of code search results.
// It returns the raw body and whether the response advertises a next page.
func (c *Client) FetchPage(ctx context.Context, req search.PageRequest) ([]byte, bool, error) {
	params := url.Values{}
	params.Set("q", req.Query)
	params.Set("per_page", strconv.Itoa(req.PerPage))
	params.Set("page", strconv.Itoa(req.Page))

	body, header, err := c.get(ctx, endpointSearch, ratelimit.ResourceCodeSearch, c.config.BaseURL+searchCodePath+"?"+params.Encode())
	if err != nil {
		return nil, false, err
	}

	hasNext := HasNextLink(header)
	c.logger.Debug().
		Int("page", req.Page).
		Int("bytes", len(body)).
		Bool("has_next", hasNext).
		Msg("Fetched search page")

	return body, hasNext, nil
}

// GetJSON fetches an API URL and decodes its JSON body into v.
func (c *Client) GetJSON(ctx context.Context, rawURL string, v any) error {
	body, _, err := c.get(ctx, endpointBlob, ratelimit.ResourceCore, rawURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", rawURL, err)
	}
	return nil
}

// RateLimit returns the last observed rate-limit state of resource,
// e.g. ratelimit.ResourceCodeSearch.
func (c *Client) RateLimit(resource string) ratelimit.State {
	return c.rateLimiter.State(resource)
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// HasNextLink reports whether the Link headers carry a rel="next" link.
func HasNextLink(header http.Header) bool {
	raw := strings.Join(header.Values("Link"), ", ")
	if raw == "" {
		return false
	}
	return len(linkheader.Parse(raw).FilterByRel("next")) > 0
}

// get performs a single authenticated GET and returns the body of a 2xx response.
// The request is gated on, and accounted to, the budget of resource.
func (c *Client) get(ctx context.Context, endpoint, resource, rawURL string) ([]byte, http.Header, error) {
	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	if err := c.rateLimiter.ShouldAllowRequest(resource); err != nil {
		requestsTotal.WithLabelValues(endpoint, "rate_limited").Inc()
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", MediaType)
	req.Header.Set("X-GitHub-Api-Version", APIVersion)
	req.Header.Set("Authorization", "Bearer "+c.config.Token)
	req.Header.Set("User-Agent", c.config.UserAgent)

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("url", req.URL.Redacted()).
		Msg("Executing API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		class := classifyError(nil, err, c.logger)
		errorsTotal.WithLabelValues(string(class)).Inc()
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		return nil, nil, &APIError{ErrorClass: class, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if err := c.rateLimiter.UpdateFromHeaders(resource, resp.Header); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		class := classifyError(nil, err, c.logger)
		errorsTotal.WithLabelValues(string(class)).Inc()
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, nil, &APIError{StatusCode: resp.StatusCode, ErrorClass: class, Message: "read response body", Err: err}
	}

	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		class := classifyError(resp, nil, c.logger)
		errorsTotal.WithLabelValues(string(class)).Inc()

		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("API request error")

		return nil, nil, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: class,
			Message:    apiMessage(resp.Status, body),
			Err:        ErrUnexpectedStatus,
		}
	}

	return body, resp.Header, nil
}

// apiMessage prefers the "message" member of a JSON error body over the status line.
func apiMessage(status string, body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Message != "" {
		return payload.Message
	}
	return status
}
