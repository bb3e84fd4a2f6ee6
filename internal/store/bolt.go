package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mmcdole/directus/internal/domain"
	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	bucketEntries = []byte("entries")
	bucketTags    = []byte("tags")
)

const boltFileName = "cache.db"

// BoltStore implements domain.Cache on a single bbolt file. An entry and its
// tag index updates commit in one transaction.
type BoltStore struct {
	db     *bolt.DB
	logger *slog.Logger

	// In-memory cache for hot-path reads (promoted on access)
	hot *lru.Cache[string, *domain.CacheEntry]

	// Orders promotions against writes so a removed entry is never re-added
	mu sync.Mutex
}

var (
	_ domain.Cache          = (*BoltStore)(nil)
	_ domain.CacheInspector = (*BoltStore)(nil)
)

func NewBoltStore(dir string, memoryEntries int, logger *slog.Logger) (*BoltStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if memoryEntries <= 0 {
		memoryEntries = DefaultMemoryEntries
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCacheUnavailable, err)
	}

	dbPath := filepath.Join(dir, boltFileName)
	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open bolt db: %v", domain.ErrCacheUnavailable, err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketEntries, bucketTags} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	hot, err := lru.New[string, *domain.CacheEntry](memoryEntries)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStore{db: db, logger: logger, hot: hot}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) Get(key string) (*domain.CacheEntry, bool) {
	// Check memory cache first
	if e, ok := s.hot.Get(key); ok {
		return cloneEntry(e), true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketEntries).Get([]byte(FileID(key))); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	if err != nil || data == nil {
		return nil, false
	}

	var e domain.CacheEntry
	if err := json.Unmarshal(data, &e); err != nil {
		s.logger.Debug("Cache entry unreadable", "key", key, "error", err)
		return nil, false
	}
	if err := e.Validate(); err != nil {
		s.logger.Debug("Cache entry corrupt", "key", key, "error", err)
		return nil, false
	}
	if e.Key != key {
		return nil, false
	}

	// Promote to memory cache
	s.hot.Add(key, &e)
	return cloneEntry(&e), true
}

func (s *BoltStore) Put(entry *domain.CacheEntry, tags []string) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketEntries).Put([]byte(FileID(entry.Key)), data); err != nil {
			return err
		}
		b := tx.Bucket(bucketTags)
		for _, tag := range tags {
			keys := readTagKeys(b, tag)
			if slices.Contains(keys, entry.Key) {
				continue
			}
			if err := writeTagKeys(b, tag, append(keys, entry.Key)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCacheUnavailable, err)
	}

	s.hot.Add(entry.Key, cloneEntry(entry))
	return nil
}

// readTagKeys returns the keys under tag. A corrupt record reads as empty.
func readTagKeys(b *bolt.Bucket, tag string) []string {
	v := b.Get([]byte(tag))
	if v == nil {
		return nil
	}
	var keys []string
	if err := json.Unmarshal(v, &keys); err != nil {
		return nil
	}
	return keys
}

func writeTagKeys(b *bolt.Bucket, tag string, keys []string) error {
	if len(keys) == 0 {
		return b.Delete([]byte(tag))
	}
	data, err := json.Marshal(keys)
	if err != nil {
		return err
	}
	return b.Put([]byte(tag), data)
}

// unindexKey drops key from every tag inside tx.
func unindexKey(tx *bolt.Tx, key string) error {
	b := tx.Bucket(bucketTags)
	updates := make(map[string][]string)
	err := b.ForEach(func(k, v []byte) error {
		var keys []string
		if err := json.Unmarshal(v, &keys); err != nil {
			return nil
		}
		if i := slices.Index(keys, key); i >= 0 {
			updates[string(k)] = slices.Delete(keys, i, i+1)
		}
		return nil
	})
	if err != nil {
		return err
	}
	// bbolt forbids mutating a bucket while iterating it
	for tag, keys := range updates {
		if err := writeTagKeys(b, tag, keys); err != nil {
			return err
		}
	}
	return nil
}

func (s *BoltStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketEntries).Delete([]byte(FileID(key))); err != nil {
			return err
		}
		return unindexKey(tx, key)
	})
	s.hot.Remove(key)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCacheUnavailable, err)
	}
	return nil
}

func (s *BoltStore) RemoveByTag(tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	err := s.db.Update(func(tx *bolt.Tx) error {
		tags := tx.Bucket(bucketTags)
		keys := readTagKeys(tags, tag)
		if err := tags.Delete([]byte(tag)); err != nil {
			return err
		}
		entries := tx.Bucket(bucketEntries)
		for _, key := range keys {
			if err := entries.Delete([]byte(FileID(key))); err != nil {
				return err
			}
			if err := unindexKey(tx, key); err != nil {
				return err
			}
		}
		removed = keys
		return nil
	})
	for _, key := range removed {
		s.hot.Remove(key)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCacheUnavailable, err)
	}
	return nil
}

func (s *BoltStore) KeysWithTag(tag string) []string {
	var keys []string
	s.db.View(func(tx *bolt.Tx) error {
		keys = readTagKeys(tx.Bucket(bucketTags), tag)
		return nil
	})
	return keys
}

func (s *BoltStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Recreate both buckets
	err := s.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketEntries, bucketTags} {
			if err := tx.DeleteBucket(bucket); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
				return err
			}
			if _, err := tx.CreateBucket(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	s.hot.Purge()
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCacheUnavailable, err)
	}
	return nil
}

func (s *BoltStore) Keys() []string {
	var keys []string
	s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEntries).ForEach(func(_, v []byte) error {
			var e domain.CacheEntry
			if json.Unmarshal(v, &e) == nil {
				keys = append(keys, e.Key)
			}
			return nil
		})
	})
	sort.Strings(keys)
	return keys
}

func (s *BoltStore) Tags() []string {
	var tags []string
	s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTags).ForEach(func(k, _ []byte) error {
			tags = append(tags, string(k))
			return nil
		})
	})
	return tags
}
