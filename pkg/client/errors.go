package client

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/gh-search/pkg/ratelimit"
)

// ErrUnexpectedStatus is wrapped by APIError for every non-success response.
var ErrUnexpectedStatus = errors.New("unexpected status")

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 403/429 responses caused by a spent rate limit.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// APIError represents a failed search API request.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("API %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("API %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// classifyError categorizes a failure for observability and error reporting.
func classifyError(resp *http.Response, err error, logger zerolog.Logger) ErrorClass {
	var class ErrorClass
	switch {
	case err != nil:
		class = ErrorClassNetwork
	case resp == nil:
		return ""
	case resp.StatusCode == http.StatusTooManyRequests:
		class = ErrorClassRateLimit
	case resp.StatusCode == http.StatusForbidden && resp.Header.Get(ratelimit.HeaderRemaining) == "0":
		class = ErrorClassRateLimit
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		class = ErrorClassClient
	case resp.StatusCode >= 500:
		class = ErrorClassServer
	default:
		return ""
	}

	logger.Debug().Str("class", string(class)).Msg("Error classified")
	return class
}
