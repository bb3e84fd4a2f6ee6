package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mmcdole/directus/internal/domain"
	"github.com/natefinch/atomic"
)

const (
	entriesDirName = "entries"
	tagsFileName   = "tags.json"

	// DefaultMemoryEntries is the promotion cache size when none is configured.
	DefaultMemoryEntries = 256
)

// JSONStore keeps one JSON file per cache key plus a tags.json index.
// Entry files are replaced atomically; the index is rewritten under mu.
type JSONStore struct {
	dir    string
	logger *slog.Logger

	// Protects index, tags.json and every disk access that changes hot
	mu    sync.Mutex
	index *TagIndex

	// Recently used entries, promoted on read
	hot *lru.Cache[string, *domain.CacheEntry]
}

var (
	_ domain.Cache          = (*JSONStore)(nil)
	_ domain.CacheInspector = (*JSONStore)(nil)
)

// NewJSONStore opens (or creates) a store rooted at dir. An unreadable or
// corrupt tags.json starts an empty index.
func NewJSONStore(dir string, memoryEntries int, logger *slog.Logger) (*JSONStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if memoryEntries <= 0 {
		memoryEntries = DefaultMemoryEntries
	}
	if err := os.MkdirAll(filepath.Join(dir, entriesDirName), 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCacheUnavailable, err)
	}
	hot, err := lru.New[string, *domain.CacheEntry](memoryEntries)
	if err != nil {
		return nil, err
	}

	s := &JSONStore{dir: dir, logger: logger, index: NewTagIndex(), hot: hot}
	data, err := os.ReadFile(s.tagsPath())
	switch {
	case err == nil:
		if idx, perr := ParseTagIndex(data); perr == nil {
			s.index = idx
		} else {
			logger.Warn("Ignoring corrupt tag index", "path", s.tagsPath(), "error", perr)
		}
	case !errors.Is(err, fs.ErrNotExist):
		logger.Warn("Failed to read tag index", "path", s.tagsPath(), "error", err)
	}
	return s, nil
}

func (s *JSONStore) tagsPath() string { return filepath.Join(s.dir, tagsFileName) }

func (s *JSONStore) entryPath(key string) string {
	return filepath.Join(s.dir, entriesDirName, FileID(key)+".json")
}

func (s *JSONStore) Get(key string) (*domain.CacheEntry, bool) {
	if e, ok := s.hot.Get(key); ok {
		return cloneEntry(e), true
	}

	// A removal between the read and the promotion would resurrect the entry
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := readEntryFile(s.entryPath(key))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug("Cache entry unreadable", "key", key, "error", err)
		}
		return nil, false
	}
	if e.Key != key {
		return nil, false
	}

	s.hot.Add(key, e)
	return cloneEntry(e), true
}

func readEntryFile(path string) (*domain.CacheEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var e domain.CacheEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *JSONStore) Put(entry *domain.CacheEntry, tags []string) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := atomic.WriteFile(s.entryPath(entry.Key), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCacheUnavailable, err)
	}
	s.hot.Add(entry.Key, cloneEntry(entry))

	changed := false
	for _, tag := range tags {
		if s.index.Add(tag, entry.Key) {
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.saveIndexLocked()
}

func (s *JSONStore) saveIndexLocked() error {
	data, err := s.index.Marshal()
	if err != nil {
		return err
	}
	if err := atomic.WriteFile(s.tagsPath(), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCacheUnavailable, err)
	}
	return nil
}

// removeFile deletes the entry file, then its promoted copy. Callers hold mu.
func (s *JSONStore) removeFile(key string) error {
	err := os.Remove(s.entryPath(key))
	s.hot.Remove(key)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", domain.ErrCacheUnavailable, err)
	}
	return nil
}

func (s *JSONStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.removeFile(key); err != nil {
		return err
	}
	if !s.index.RemoveKey(key) {
		return nil
	}
	return s.saveIndexLocked()
}

func (s *JSONStore) RemoveByTag(tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := s.index.Remove(tag)
	var errs []error
	for _, key := range keys {
		if err := s.removeFile(key); err != nil {
			errs = append(errs, err)
		}
		s.index.RemoveKey(key)
	}
	if len(keys) > 0 {
		if err := s.saveIndexLocked(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *JSONStore) KeysWithTag(tag string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Keys(tag)
}

func (s *JSONStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hot.Purge()
	entriesDir := filepath.Join(s.dir, entriesDirName)
	if err := os.RemoveAll(entriesDir); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCacheUnavailable, err)
	}
	if err := os.MkdirAll(entriesDir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCacheUnavailable, err)
	}
	s.index.Reset()
	return s.saveIndexLocked()
}

func (s *JSONStore) Close() error { return nil }

// Keys lists the keys of every readable entry on disk.
func (s *JSONStore) Keys() []string {
	paths, err := filepath.Glob(filepath.Join(s.dir, entriesDirName, "*.json"))
	if err != nil {
		return nil
	}
	keys := make([]string, 0, len(paths))
	for _, path := range paths {
		e, err := readEntryFile(path)
		if err != nil {
			continue
		}
		keys = append(keys, e.Key)
	}
	sort.Strings(keys)
	return keys
}

func (s *JSONStore) Tags() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Tags()
}
