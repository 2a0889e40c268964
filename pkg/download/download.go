// Package download writes the file behind a search item below a root directory.
package download

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/gh-search/pkg/search"
)

var filesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ghsearch_downloads_total",
	Help: "Total files handled by the downloader by result",
}, []string{"result"}) // "written", "exists"

var (
	// ErrMissingGitURL indicates the item has no blob URL to download from.
	ErrMissingGitURL = errors.New("item missing git_url")

	// ErrMissingContent indicates the blob response carried no content.
	ErrMissingContent = errors.New("blob missing content")

	// ErrUnsafePath indicates the item would be written outside the root directory.
	ErrUnsafePath = errors.New("unsafe item path")
)

// BlobFetcher fetches an API URL and decodes its JSON body.
type BlobFetcher interface {
	GetJSON(ctx context.Context, rawURL string, v any) error
}

// Blob is the git blob response body.
type Blob struct {
	SHA      string  `json:"sha"`
	Size     int     `json:"size"`
	Encoding string  `json:"encoding"`
	Content  *string `json:"content"`
}

// Decode returns the blob bytes.
func (b *Blob) Decode() ([]byte, error) {
	if b.Content == nil {
		return nil, ErrMissingContent
	}
	if b.Encoding != "base64" {
		return []byte(*b.Content), nil
	}
	// StdEncoding skips the line breaks the API inserts every 60 characters.
	data, err := base64.StdEncoding.DecodeString(*b.Content)
	if err != nil {
		return nil, fmt.Errorf("decode base64 content: %w", err)
	}
	return data, nil
}

// Downloader stores item contents as <root>/<repository>/<path>.
type Downloader struct {
	root    string
	fetcher BlobFetcher
	logger  zerolog.Logger
}

// New creates a downloader writing below root.
func New(root string, fetcher BlobFetcher, logger zerolog.Logger) *Downloader {
	return &Downloader{
		root:    root,
		fetcher: fetcher,
		logger:  logger,
	}
}

// Target returns where the item would be written.
func (d *Downloader) Target(item search.Item) (string, error) {
	id, err := item.Identity()
	if err != nil {
		return "", err
	}
	rel := filepath.Join(filepath.FromSlash(id.Repository), filepath.FromSlash(id.Path))
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, id)
	}
	return filepath.Join(d.root, rel), nil
}

// Download writes the item's file and reports whether it was written.
// Files that already exist are left untouched.
func (d *Downloader) Download(ctx context.Context, item search.Item) (bool, error) {
	target, err := d.Target(item)
	if err != nil {
		return false, err
	}
	if item.GitURL == "" {
		return false, fmt.Errorf("%w: %s/%s", ErrMissingGitURL, item.Repository.FullName, item.Path)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return false, fmt.Errorf("create directory: %w", err)
	}

	if _, err := os.Stat(target); err == nil {
		d.logger.Debug().Str("repo", item.Repository.FullName).Str("path", item.Path).Msg("File exists, skipping")
		filesTotal.WithLabelValues("exists").Inc()
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("stat %s: %w", target, err)
	}

	d.logger.Debug().
		Str("repo", item.Repository.FullName).
		Str("path", item.Path).
		Str("git_url", item.GitURL).
		Msg("Downloading")

	var blob Blob
	if err := d.fetcher.GetJSON(ctx, item.GitURL, &blob); err != nil {
		return false, fmt.Errorf("fetch blob: %w", err)
	}

	data, err := blob.Decode()
	if err != nil {
		return false, fmt.Errorf("%s/%s: %w", item.Repository.FullName, item.Path, err)
	}

	if err := writeFile(target, data); err != nil {
		return false, err
	}

	filesTotal.WithLabelValues("written").Inc()
	return true, nil
}

// writeFile writes data via a temp file so an interrupted run never leaves a
// partial file that a later run would skip as existing.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".gh-search-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
