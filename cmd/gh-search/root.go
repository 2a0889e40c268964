package main

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/gh-search/pkg/cache"
	"github.com/Sternrassler/gh-search/pkg/client"
	"github.com/Sternrassler/gh-search/pkg/download"
	"github.com/Sternrassler/gh-search/pkg/logging"
	"github.com/Sternrassler/gh-search/pkg/metrics"
	"github.com/Sternrassler/gh-search/pkg/pagination"
	"github.com/Sternrassler/gh-search/pkg/search"
)

const rootCmdExample = `  # Download every Go file that mentions a symbol
  gh-search 'ListenAndServe language:go'

  # Use the token of a specific gh account and keep results for a day
  gh-search -u octocat --cache-ttl 86400 'filename:go.mod zerolog'`

// newRootCmd creates the gh-search command. lookupEnv and tokens are
// injected for tests.
func newRootCmd(lookupEnv func(string) (string, bool), tokens tokenFunc) *cobra.Command {
	opts := defaultOptions()

	cmd := &cobra.Command{
		Use:          "gh-search QUERY",
		Short:        "Search GitHub code and download the matching files",
		Example:      rootCmdExample,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Query = args[0]
			if err := opts.normalize(); err != nil {
				return err
			}

			logger := logging.New(withOutput(opts.logConfig(), cmd.ErrOrStderr()))
			return run(cmd.Context(), opts, lookupEnv, tokens, logger)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.User, "user", "u", "", `use a specific GitHub user for "gh auth token"`)
	flags.StringVar(&opts.GitHubToken, "github-token", "", "GitHub token for authentication (env "+tokenEnvVar+")")
	flags.IntVar(&opts.MaxResults, "max-results", opts.MaxResults, "maximum number of results per page request (capped at 100)")
	flags.StringVar(&opts.CacheDir, "cache-dir", "", "directory for cached result pages (default: user cache dir)")
	flags.IntVar(&opts.CacheTTL, "cache-ttl", opts.CacheTTL, "seconds to keep cached result pages")
	flags.BoolVar(&opts.SweepCache, "sweep-cache", false, "remove expired cache entries on exit")
	flags.DurationVar(&opts.Timeout, "timeout", opts.Timeout, "deadline for the whole run")
	flags.StringVar(&opts.OutputDir, "output-dir", opts.OutputDir, "directory the files are written to")
	flags.StringVar(&opts.APIURL, "api-url", opts.APIURL, "GitHub REST API base URL")
	flags.BoolVar(&opts.Debug, "debug", false, "enable debug logging")
	flags.BoolVar(&opts.Pretty, "pretty", false, "human-readable log output")

	return cmd
}

func withOutput(cfg logging.Config, w io.Writer) logging.Config {
	cfg.Output = w
	return cfg
}

// run executes one search: page through the results, drop duplicates and
// download every new file.
func run(
	ctx context.Context,
	opts options,
	lookupEnv func(string) (string, bool),
	tokens tokenFunc,
	logger zerolog.Logger,
) (err error) {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	token, err := resolveToken(ctx, opts, lookupEnv, tokens, logger)
	if err != nil {
		return err
	}

	dir, err := opts.cacheDir()
	if err != nil {
		return err
	}
	store, err := cache.NewFileStore(dir, opts.cacheTTL(), logging.WithComponent(logger, "cache"),
		cache.WithSweepOnClose(opts.SweepCache))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close cache: %w", cerr)
		}
	}()

	cfg := client.DefaultConfig(token)
	cfg.BaseURL = opts.APIURL
	api, err := client.New(cfg, logger)
	if err != nil {
		return err
	}

	pager, err := pagination.New(api, store, pagination.Config{
		Query:      opts.Query,
		MaxResults: opts.MaxResults,
	}, logging.WithComponent(logger, "paginator"))
	if err != nil {
		return err
	}

	dedup := search.NewDeduplicator(logging.WithComponent(logger, "dedup"))
	downloader := download.New(opts.OutputDir, api, logging.WithComponent(logger, "download"))

	logger.Info().
		Str("query", opts.Query).
		Int("per_page", pager.PerPage()).
		Str("cache_dir", store.Dir()).
		Msg("Starting search")

	written := 0
	for item, ferr := range dedup.Filter(pager.All(ctx)) {
		if ferr != nil {
			return ferr
		}
		ok, derr := downloader.Download(ctx, item)
		if derr != nil {
			return derr
		}
		if ok {
			written++
		}
	}

	logger.Info().
		Int("unique", dedup.Len()).
		Int("written", written).
		Msg("Search complete")
	logMetrics(logger, prometheus.DefaultGatherer)
	return nil
}

// logMetrics writes a one-line summary of the run's counters at debug level.
func logMetrics(logger zerolog.Logger, g prometheus.Gatherer) {
	if logger.GetLevel() > zerolog.DebugLevel {
		return
	}
	snap, err := metrics.Snapshot(g)
	if err != nil {
		logger.Debug().Err(err).Msg("Metrics unavailable")
		return
	}
	event := logger.Debug()
	for name, value := range snap {
		event = event.Float64(name, value)
	}
	event.Msg("Run metrics")
}
