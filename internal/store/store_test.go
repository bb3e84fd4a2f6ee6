package store_test

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/directus/internal/domain"
	"github.com/mmcdole/directus/internal/store"
)

type backend struct {
	name string
	open func(t *testing.T, dir string) store.Store
}

func backends() []backend {
	return []backend{
		{
			name: "JSON",
			open: func(t *testing.T, dir string) store.Store {
				s, err := store.NewJSONStore(dir, 4, nil)
				require.NoError(t, err, "NewJSONStore")
				return s
			},
		},
		{
			name: "Bolt",
			open: func(t *testing.T, dir string) store.Store {
				s, err := store.NewBoltStore(dir, 4, nil)
				require.NoError(t, err, "NewBoltStore")
				return s
			},
		},
		{
			name: "Memory",
			open: func(t *testing.T, _ string) store.Store {
				return store.NewMemoryStore()
			},
		},
	}
}

func sampleEntry(key string) *domain.CacheEntry {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &domain.CacheEntry{
		Key:        key,
		CreatedAt:  created,
		ValidUntil: created.Add(24 * time.Hour),
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       `{"data":[{"id":1}]}`,
		StatusCode: 200,
	}
}

func eachBackend(t *testing.T, fn func(t *testing.T, s store.Store)) {
	t.Helper()
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			t.Parallel()
			s := b.open(t, t.TempDir())
			t.Cleanup(func() { s.Close() })
			fn(t, s)
		})
	}
}

func TestStore_GetReturnsEntryWhenPutBefore(t *testing.T) {
	t.Parallel()

	eachBackend(t, func(t *testing.T, s store.Store) {
		entry := sampleEntry("GET http://api/items/article?fields=*")
		require.NoError(t, s.Put(entry, []string{"article"}))

		got, ok := s.Get(entry.Key)
		require.True(t, ok, "entry should be found")
		if diff := cmp.Diff(entry, got); diff != "" {
			t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestStore_GetMissesWhenKeyUnknown(t *testing.T) {
	t.Parallel()

	eachBackend(t, func(t *testing.T, s store.Store) {
		_, ok := s.Get("GET http://api/nothing")
		assert.False(t, ok)
	})
}

func TestStore_RemoveByTagRemovesEveryTaggedEntry(t *testing.T) {
	t.Parallel()

	eachBackend(t, func(t *testing.T, s store.Store) {
		tagged := []string{"articles/42", "GET http://api/items/articles/42?fields=*"}
		for _, key := range tagged {
			require.NoError(t, s.Put(sampleEntry(key), []string{"articles/42"}))
		}
		require.NoError(t, s.Put(sampleEntry("articles/43"), []string{"articles/43"}))

		require.NoError(t, s.RemoveByTag("articles/42"))

		for _, key := range tagged {
			_, ok := s.Get(key)
			assert.False(t, ok, "tagged key %q should be gone", key)
		}
		assert.Empty(t, s.KeysWithTag("articles/42"))

		_, ok := s.Get("articles/43")
		assert.True(t, ok, "untagged entry must survive")
	})
}

func TestStore_RemoveByTagSucceedsWhenTagUnknown(t *testing.T) {
	t.Parallel()

	eachBackend(t, func(t *testing.T, s store.Store) {
		require.NoError(t, s.RemoveByTag("never-used"))
	})
}

func TestStore_PutIndexesKeyOnceWhenTaggedTwice(t *testing.T) {
	t.Parallel()

	eachBackend(t, func(t *testing.T, s store.Store) {
		entry := sampleEntry("currentDirectusUser")
		require.NoError(t, s.Put(entry, []string{"me", "me"}))
		require.NoError(t, s.Put(entry, []string{"me"}))

		assert.Equal(t, []string{"currentDirectusUser"}, s.KeysWithTag("me"))
	})
}

func TestStore_RemoveDropsEntryAndIndex(t *testing.T) {
	t.Parallel()

	eachBackend(t, func(t *testing.T, s store.Store) {
		entry := sampleEntry("articles/1")
		require.NoError(t, s.Put(entry, []string{"articles/1"}))

		require.NoError(t, s.Remove(entry.Key))
		require.NoError(t, s.Remove(entry.Key), "removing twice is a no-op")

		_, ok := s.Get(entry.Key)
		assert.False(t, ok)
		assert.Empty(t, s.KeysWithTag("articles/1"))
	})
}

func TestStore_ClearEmptiesEntriesAndTags(t *testing.T) {
	t.Parallel()

	eachBackend(t, func(t *testing.T, s store.Store) {
		require.NoError(t, s.Put(sampleEntry("a"), []string{"t1"}))
		require.NoError(t, s.Put(sampleEntry("b"), []string{"t2"}))

		require.NoError(t, s.Clear())

		assert.Empty(t, s.Keys())
		assert.Empty(t, s.Tags())
		_, ok := s.Get("a")
		assert.False(t, ok)
	})
}

func TestStore_KeysDistinguishesKeysThatSanitizeAlike(t *testing.T) {
	t.Parallel()

	eachBackend(t, func(t *testing.T, s store.Store) {
		first := sampleEntry("a/b")
		second := sampleEntry("a.b")
		second.Body = `{"data":"second"}`
		require.NoError(t, s.Put(first, nil))
		require.NoError(t, s.Put(second, nil))

		got, ok := s.Get("a/b")
		require.True(t, ok)
		assert.Equal(t, first.Body, got.Body)

		keys := s.Keys()
		sort.Strings(keys)
		assert.Equal(t, []string{"a.b", "a/b"}, keys)
	})
}

func diskBackends() []backend {
	var out []backend
	for _, b := range backends() {
		if b.name != "Memory" {
			out = append(out, b)
		}
	}
	return out
}

func TestStore_ReopenKeepsBinaryBody(t *testing.T) {
	t.Parallel()

	body := []byte{0x89, 0x50, 0x4e, 0x47, 0xff, 0xd8, 0x00}
	resp := &domain.RawResponse{StatusCode: 200, Header: map[string][]string{"Content-Type": {"image/png"}}, Body: body}

	for _, b := range diskBackends() {
		t.Run(b.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			key := "GET http://api/assets/logo"
			first := b.open(t, dir)
			require.NoError(t, first.Put(domain.NewCacheEntry(key, resp, time.Now(), time.Hour), []string{"files/logo"}))
			require.NoError(t, first.Close())

			second := b.open(t, dir)
			t.Cleanup(func() { second.Close() })

			got, ok := second.Get(key)
			require.True(t, ok)
			assert.Equal(t, body, got.Response().Body)
			assert.Equal(t, "image/png", got.Response().Header.Get("Content-Type"))
		})
	}
}

func TestStore_PutAcceptsLongKeys(t *testing.T) {
	t.Parallel()

	filter := `{"_and":[{"status":{"_eq":"published"}},{"title":{"_contains":"` + strings.Repeat("x", 200) + `"}}]}`
	key := "GET http://api/items/article?fields=*&filter=" + filter
	require.Greater(t, len(key), 300)

	eachBackend(t, func(t *testing.T, s store.Store) {
		entry := sampleEntry(key)
		require.NoError(t, s.Put(entry, []string{"article"}))

		got, ok := s.Get(key)
		require.True(t, ok)
		assert.Equal(t, entry.Body, got.Body)
	})
}

func TestFileID_CapsLengthAndKeepsKeysApart(t *testing.T) {
	t.Parallel()

	prefix := strings.Repeat("a", 400)
	first := store.FileID(prefix + "1")
	second := store.FileID(prefix + "2")

	assert.LessOrEqual(t, len(first), 220)
	assert.NotEqual(t, first, second)
}

func TestStore_RemoveByTagWinsOverConcurrentReads(t *testing.T) {
	t.Parallel()

	for _, b := range diskBackends() {
		t.Run(b.name, func(t *testing.T) {
			t.Parallel()

			s := b.open(t, t.TempDir())
			t.Cleanup(func() { s.Close() })
			key := "articles/5"

			for range 20 {
				require.NoError(t, s.Put(sampleEntry(key), []string{"articles/5"}))

				stop := make(chan struct{})
				var wg sync.WaitGroup
				for range 4 {
					wg.Add(1)
					go func() {
						defer wg.Done()
						for {
							select {
							case <-stop:
								return
							default:
								s.Get(key)
							}
						}
					}()
				}

				require.NoError(t, s.RemoveByTag("articles/5"))
				_, ok := s.Get(key)
				close(stop)
				wg.Wait()
				require.False(t, ok, "removed entry must not be promoted back")
			}
		})
	}
}

func TestJSONStore_GetMissesWhenFileCorrupt(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := store.NewJSONStore(dir, 1, nil)
	require.NoError(t, err)

	key := "GET http://api/users/me"
	path := filepath.Join(dir, "entries", store.FileID(key)+".json")
	require.NoError(t, os.WriteFile(path, []byte(`{"key": "GET http`), 0o600))

	_, ok := s.Get(key)
	assert.False(t, ok, "corrupt entry must read as a miss")
}

func TestJSONStore_ReopenKeepsEntriesAndTags(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	first, err := store.NewJSONStore(dir, 1, nil)
	require.NoError(t, err)
	entry := sampleEntry("articles/7")
	require.NoError(t, first.Put(entry, []string{"articles/7"}))

	second, err := store.NewJSONStore(dir, 1, nil)
	require.NoError(t, err)

	got, ok := second.Get(entry.Key)
	require.True(t, ok)
	if diff := cmp.Diff(entry, got); diff != "" {
		t.Fatalf("entry after reopen (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"articles/7"}, second.KeysWithTag("articles/7"))

	data, err := os.ReadFile(filepath.Join(dir, "tags.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"taggedEntries":{"articles/7":["articles/7"]}}`, string(data))
}

func TestBoltStore_ReopenKeepsEntries(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	first, err := store.NewBoltStore(dir, 1, nil)
	require.NoError(t, err)
	entry := sampleEntry("articles/9")
	require.NoError(t, first.Put(entry, []string{"articles"}))
	require.NoError(t, first.Close())

	second, err := store.NewBoltStore(dir, 1, nil)
	require.NoError(t, err)
	t.Cleanup(func() { second.Close() })

	got, ok := second.Get(entry.Key)
	require.True(t, ok)
	if diff := cmp.Diff(entry, got); diff != "" {
		t.Fatalf("entry after reopen (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"articles"}, second.Tags())
}

func TestOpen_SelectsBackend(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		opts    store.Options
		want    any
		wantErr bool
	}{
		{name: "DefaultIsJSON", opts: store.Options{Dir: "DIR"}, want: &store.JSONStore{}},
		{name: "Bolt", opts: store.Options{Backend: "bolt", Dir: "DIR"}, want: &store.BoltStore{}},
		{name: "NoDirIsMemory", opts: store.Options{Backend: "bolt"}, want: &store.MemoryStore{}},
		{name: "Unknown", opts: store.Options{Backend: "redis", Dir: "DIR"}, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			opts := tc.opts
			if opts.Dir == "DIR" {
				opts.Dir = t.TempDir()
				opts.ServerURL = "https://cms.example.com/"
			}
			s, err := store.Open(opts)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			assert.IsType(t, tc.want, s)
		})
	}
}

func TestServerDir_IgnoresCaseAndTrailingSlash(t *testing.T) {
	t.Parallel()

	a := store.ServerDir("/cache", "https://CMS.example.com/")
	b := store.ServerDir("/cache", "https://cms.example.com")
	assert.Equal(t, a, b)
	assert.NotEqual(t, "/cache", a)
	assert.Equal(t, "/cache", store.ServerDir("/cache", ""))
}
