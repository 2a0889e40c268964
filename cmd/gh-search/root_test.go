package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/gh-search/internal/testutil"
	"github.com/Sternrassler/gh-search/pkg/search"
)

func noHelper(t *testing.T) tokenFunc {
	return func(context.Context, string) (string, error) {
		t.Fatal("gh helper must not be called")
		return "", nil
	}
}

func blobItem(mock *testutil.MockSearchAPI, repo, path string) search.Item {
	item := testutil.NewItem(repo, path)
	item.GitURL = mock.BlobURL(repo + "-" + filepath.Base(path))
	mock.SetBlob(repo+"-"+filepath.Base(path), "content of "+repo+"/"+path)
	return item
}

func setupSearch(t *testing.T) *testutil.MockSearchAPI {
	t.Helper()
	mock := testutil.NewMockSearchAPI()
	t.Cleanup(mock.Close)

	a := blobItem(mock, "octo-org/alpha", "main.go")
	b := blobItem(mock, "octo-org/beta", "pkg/util/util.go")
	c := blobItem(mock, "octo-org/gamma", "README.md")

	page1 := testutil.NewResultsPage(3, a, b)
	page1.HasNext = true
	mock.SetPage(1, page1)
	mock.SetPage(2, testutil.NewResultsPage(3, c, a))
	return mock
}

func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(envOf(map[string]string{"GITHUB_TOKEN": "test-token"}), noHelper(t))
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCmd_DownloadsUniqueFiles(t *testing.T) {
	mock := setupSearch(t)
	outDir := t.TempDir()
	cacheDir := t.TempDir()

	_, err := executeRoot(t,
		"--api-url", mock.URL(),
		"--output-dir", outDir,
		"--cache-dir", cacheDir,
		"--max-results", "2",
		"  language:go zerolog  ",
	)
	require.NoError(t, err)

	for _, rel := range []string{
		"octo-org/alpha/main.go",
		"octo-org/beta/pkg/util/util.go",
		"octo-org/gamma/README.md",
	} {
		data, err := os.ReadFile(filepath.Join(outDir, filepath.FromSlash(rel)))
		require.NoError(t, err, rel)
		assert.Contains(t, string(data), "content of octo-org/")
	}

	assert.Equal(t, "language:go zerolog", mock.GetLastQuery())
	assert.Equal(t, 2, mock.GetLastPerPage())
	assert.Equal(t, "Bearer test-token", mock.GetLastRequestHeader().Get("Authorization"))
	// two search pages plus three blobs
	assert.Equal(t, 5, mock.GetRequestCount())
	assert.Equal(t, 0, mock.GetPageRequests(3))
}

func TestRootCmd_SecondRunServesPagesFromCache(t *testing.T) {
	mock := setupSearch(t)
	outDir := t.TempDir()
	cacheDir := t.TempDir()
	args := []string{"--api-url", mock.URL(), "--output-dir", outDir, "--cache-dir", cacheDir, "--max-results", "2", "zerolog"}

	_, err := executeRoot(t, args...)
	require.NoError(t, err)
	mock.Reset()

	_, err = executeRoot(t, args...)
	require.NoError(t, err)

	assert.Equal(t, 0, mock.GetPageRequests(1))
	assert.Equal(t, 0, mock.GetPageRequests(2))
	// cached pages carry no next link, so the walk probes one page further
	assert.Equal(t, 1, mock.GetPageRequests(3))
	assert.Equal(t, 1, mock.GetRequestCount(), "existing files are not downloaded again")
}

func TestRootCmd_SweepCacheOnExit(t *testing.T) {
	mock := setupSearch(t)
	cacheDir := t.TempDir()

	_, err := executeRoot(t,
		"--api-url", mock.URL(),
		"--output-dir", t.TempDir(),
		"--cache-dir", cacheDir,
		"--cache-ttl", "0",
		"--sweep-cache",
		"zerolog",
	)
	require.NoError(t, err)

	entries, err := os.ReadDir(cacheDir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotEqual(t, ".json", filepath.Ext(e.Name()), "expired entry %s survived sweep", e.Name())
	}
}

func TestRootCmd_APIErrorFails(t *testing.T) {
	mock := testutil.NewMockSearchAPI()
	defer mock.Close()
	mock.SetPage(1, testutil.NewErrorPage(422, "Validation Failed"))

	out, err := executeRoot(t,
		"--api-url", mock.URL(),
		"--output-dir", t.TempDir(),
		"--cache-dir", t.TempDir(),
		"zerolog",
	)
	require.Error(t, err)
	assert.Contains(t, out, "Validation Failed")
}

func TestRootCmd_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "missing query", args: []string{}, want: "accepts 1 arg"},
		{name: "blank query", args: []string{"   "}, want: "query must not be empty"},
		{name: "bad max results", args: []string{"--max-results", "0", "q"}, want: "MaxResults"},
		{name: "negative ttl", args: []string{"--cache-ttl", "-5", "q"}, want: "CacheTTL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeRoot(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLogMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "ghsearch_test_runs_total", Help: "t"})
	reg.MustRegister(counter)
	counter.Add(4)

	var buf bytes.Buffer
	logMetrics(zerolog.New(&buf).Level(zerolog.DebugLevel), reg)
	assert.Contains(t, buf.String(), `"ghsearch_test_runs_total":4`)

	buf.Reset()
	logMetrics(zerolog.New(&buf).Level(zerolog.InfoLevel), reg)
	assert.Empty(t, buf.String())
}
