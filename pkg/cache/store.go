package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// cacheFileExtension is the file extension used for cache entries.
const cacheFileExtension = ".json"

// DefaultTTL is the default lifetime of a cache entry.
const DefaultTTL = time.Hour

var (
	// ErrCacheMiss indicates no usable entry exists for the key (absent or expired).
	ErrCacheMiss = errors.New("cache miss")

	// ErrCorruptEntry indicates an entry file exists but cannot be decoded.
	ErrCorruptEntry = errors.New("corrupt cache entry")
)

// Option configures a FileStore.
type Option func(*FileStore)

// WithClock overrides the time source used for stamping and expiring entries.
func WithClock(now func() time.Time) Option {
	return func(s *FileStore) {
		s.now = now
	}
}

// WithSweepOnClose makes Close remove every expired entry.
func WithSweepOnClose(enabled bool) Option {
	return func(s *FileStore) {
		s.sweepOnClose = enabled
	}
}

// FileStore is a content-addressed disk cache with TTL expiration.
// Each entry lives in <dir>/<fingerprint>.json. Expired entries are removed
// lazily when looked up, or in bulk by Sweep.
//
// A FileStore assumes it is the only writer of its directory.
type FileStore struct {
	dir          string
	ttl          time.Duration
	now          func() time.Time
	sweepOnClose bool
	logger       zerolog.Logger
}

// NewFileStore creates a store rooted at dir. The directory is created on the
// first Put, not here.
func NewFileStore(dir string, ttl time.Duration, logger zerolog.Logger, opts ...Option) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("cache directory cannot be empty")
	}
	if ttl < 0 {
		return nil, fmt.Errorf("cache ttl must be >= 0 (got %s)", ttl)
	}

	s := &FileStore{
		dir:    dir,
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// DefaultDir returns the per-user cache directory for search results.
func DefaultDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("locate user cache dir: %w", err)
	}
	return filepath.Join(base, "gh_search"), nil
}

// Dir returns the cache directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// TTL returns the entry lifetime.
func (s *FileStore) TTL() time.Duration {
	return s.ttl
}

// Get returns the value stored for key.
// Returns ErrCacheMiss if no entry exists or the entry has expired; an
// expired entry is deleted as a side effect. Returns an error wrapping
// ErrCorruptEntry if the entry file cannot be decoded.
func (s *FileStore) Get(key any) (string, error) {
	id, err := Fingerprint(key)
	if err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return "", err
	}
	path := s.pathFor(id)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug().Str("key", id).Msg("Cache miss")
			CacheMisses.Inc()
			return "", ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return "", fmt.Errorf("read cache entry %s: %w", id, err)
	}

	entry, err := decodeEntry(data)
	if err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return "", fmt.Errorf("%w %s: %v", ErrCorruptEntry, id, err)
	}

	if entry.IsExpired(s.now(), s.ttl) {
		s.logger.Debug().
			Str("key", id).
			Dur("age", entry.Age(s.now())).
			Msg("Cache entry expired")
		if err := s.remove(path); err != nil {
			CacheErrors.WithLabelValues("get").Inc()
			return "", err
		}
		CacheExpired.Inc()
		CacheMisses.Inc()
		return "", ErrCacheMiss
	}

	s.logger.Debug().Str("key", id).Msg("Cache hit")
	CacheHits.Inc()
	return entry.Value, nil
}

// Put stores value under key, replacing any previous entry.
// The entry is written to a temporary file and renamed into place, so a
// reader never observes a partially written entry.
func (s *FileStore) Put(key any, value string) error {
	canonical, err := canonicalJSON(key)
	if err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return err
	}
	id, err := Fingerprint(key)
	if err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return err
	}

	data, err := json.Marshal(NewEntry(canonical, value, s.now()))
	if err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("create cache directory: %w", err)
	}

	if err := writeFileAtomic(s.pathFor(id), data); err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return err
	}

	s.logger.Debug().Str("key", id).Int("bytes", len(value)).Msg("Cache put")
	return nil
}

// Delete removes the entry for key. Deleting an absent entry is not an error.
func (s *FileStore) Delete(key any) error {
	id, err := Fingerprint(key)
	if err != nil {
		return err
	}
	if err := s.remove(s.pathFor(id)); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return err
	}
	return nil
}

// Sweep removes every expired entry and returns how many were removed.
// Unreadable or corrupt files are logged and left in place.
func (s *FileStore) Sweep() (int, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		CacheErrors.WithLabelValues("sweep").Inc()
		return 0, fmt.Errorf("read cache directory: %w", err)
	}

	now := s.now()
	removed := 0
	for _, de := range dirEntries {
		if de.IsDir() || filepath.Ext(de.Name()) != cacheFileExtension {
			continue
		}

		path := filepath.Join(s.dir, de.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			s.logger.Warn().Err(err).Str("file", de.Name()).Msg("Skipping unreadable cache entry")
			continue
		}

		entry, err := decodeEntry(data)
		if err != nil {
			s.logger.Warn().Err(err).Str("file", de.Name()).Msg("Skipping corrupt cache entry")
			continue
		}

		if !entry.IsExpired(now, s.ttl) {
			continue
		}
		if err := s.remove(path); err != nil {
			CacheErrors.WithLabelValues("sweep").Inc()
			return removed, err
		}
		removed++
	}

	CacheSwept.Add(float64(removed))
	s.logger.Debug().Int("removed", removed).Msg("Cache sweep complete")
	return removed, nil
}

// Close releases the store. With WithSweepOnClose it sweeps expired entries first.
func (s *FileStore) Close() error {
	if !s.sweepOnClose {
		return nil
	}
	_, err := s.Sweep()
	return err
}

func (s *FileStore) pathFor(id string) string {
	return filepath.Join(s.dir, id+cacheFileExtension)
}

func (s *FileStore) remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

func decodeEntry(data []byte) (*Entry, error) {
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// writeFileAtomic writes data to a temp file next to path and renames it over path.
func writeFileAtomic(path string, data []byte) error {
	dir, name := filepath.Split(path)
	tmp, err := os.CreateTemp(dir, strings.TrimSuffix(name, cacheFileExtension)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename cache file: %w", err)
	}
	return nil
}
