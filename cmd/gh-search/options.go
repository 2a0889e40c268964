package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Sternrassler/gh-search/pkg/cache"
	"github.com/Sternrassler/gh-search/pkg/client"
	"github.com/Sternrassler/gh-search/pkg/logging"
)

const (
	defaultMaxResults = 1000
	defaultCacheTTL   = int(cache.DefaultTTL / time.Second)
	defaultTimeout    = 10 * time.Minute
)

var validate = validator.New()

// options holds the parsed command line.
type options struct {
	Query       string `validate:"required"`
	User        string
	GitHubToken string
	MaxResults  int `validate:"gt=0"`
	CacheDir    string
	CacheTTL    int `validate:"gte=0"`
	SweepCache  bool
	Timeout     time.Duration `validate:"gt=0"`
	OutputDir   string        `validate:"required"`
	APIURL      string        `validate:"required,url"`
	Debug       bool
	Pretty      bool
}

func defaultOptions() options {
	return options{
		MaxResults: defaultMaxResults,
		CacheTTL:   defaultCacheTTL,
		Timeout:    defaultTimeout,
		OutputDir:  ".",
		APIURL:     client.DefaultBaseURL,
	}
}

// normalize trims the query and validates every field.
func (o *options) normalize() error {
	o.Query = strings.TrimSpace(o.Query)
	if o.Query == "" {
		return errors.New("query must not be empty")
	}
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	return nil
}

func (o *options) cacheTTL() time.Duration {
	return time.Duration(o.CacheTTL) * time.Second
}

// cacheDir returns the configured cache directory or the per-user default.
func (o *options) cacheDir() (string, error) {
	if o.CacheDir != "" {
		return o.CacheDir, nil
	}
	return cache.DefaultDir()
}

func (o *options) logConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Pretty = o.Pretty
	if o.Debug {
		cfg.Level = logging.LevelDebug
	}
	return cfg
}
