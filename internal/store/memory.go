package store

import (
	"sort"
	"sync"

	"github.com/mmcdole/directus/internal/domain"
)

// MemoryStore is a non-persistent domain.Cache. Used when caching to disk is
// disabled and as a test double.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*domain.CacheEntry
	index   *TagIndex
}

var (
	_ domain.Cache          = (*MemoryStore)(nil)
	_ domain.CacheInspector = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*domain.CacheEntry),
		index:   NewTagIndex(),
	}
}

func (s *MemoryStore) Get(key string) (*domain.CacheEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	return cloneEntry(e), true
}

func (s *MemoryStore) Put(entry *domain.CacheEntry, tags []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.Key] = cloneEntry(entry)
	for _, tag := range tags {
		s.index.Add(tag, entry.Key)
	}
	return nil
}

func (s *MemoryStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	s.index.RemoveKey(key)
	return nil
}

func (s *MemoryStore) RemoveByTag(tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range s.index.Remove(tag) {
		delete(s.entries, key)
		s.index.RemoveKey(key)
	}
	return nil
}

func (s *MemoryStore) KeysWithTag(tag string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Keys(tag)
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*domain.CacheEntry)
	s.index.Reset()
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *MemoryStore) Tags() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Tags()
}
