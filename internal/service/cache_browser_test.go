package service_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/directus/internal/domain"
	"github.com/mmcdole/directus/internal/service"
	"github.com/mmcdole/directus/internal/store"
)

func newBrowser(t *testing.T) (*service.CacheBrowser, *store.MemoryStore) {
	t.Helper()
	cache := store.NewMemoryStore()
	put := func(key string, tags ...string) {
		require.NoError(t, cache.Put(&domain.CacheEntry{
			Key:        key,
			CreatedAt:  testNow,
			ValidUntil: testNow.Add(time.Hour),
			StatusCode: http.StatusOK,
		}, tags))
	}
	put("GET http://api/items/article?fields=*")
	put("article/7", "article/7")
	put("GET http://api/items/author?fields=*")
	put("GET http://api/server/health", service.TagCustomRequest)
	return service.NewCacheBrowser(cache, nil), cache
}

func TestCacheBrowser_MatchKeys(t *testing.T) {
	t.Parallel()

	b, _ := newBrowser(t)

	all := b.MatchKeys("")
	require.Len(t, all, 4)
	assert.Equal(t, "GET http://api/items/article?fields=*", all[0].Key, "empty query lists keys in order")

	matches := b.MatchKeys("ARTICLE")
	require.NotEmpty(t, matches)
	keys := make([]string, len(matches))
	for i, m := range matches {
		keys[i] = m.Key
		assert.NotEmpty(t, m.MatchedIndexes)
	}
	assert.Contains(t, keys, "article/7")
	assert.Contains(t, keys, "GET http://api/items/article?fields=*")
	assert.NotContains(t, keys, "GET http://api/server/health")
}

func TestCacheBrowser_MatchTags(t *testing.T) {
	t.Parallel()

	b, _ := newBrowser(t)

	assert.Equal(t, []string{"article/7", service.TagCustomRequest}, b.MatchTags(""))
	assert.Equal(t, []string{"article/7"}, b.MatchTags("art7"))
	assert.Empty(t, b.MatchTags("zzz"))
}

func TestCacheBrowser_DropTag(t *testing.T) {
	t.Parallel()

	b, cache := newBrowser(t)

	n, err := b.DropTag("article/7")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok := b.Entry("article/7")
	assert.False(t, ok)
	assert.Len(t, cache.Keys(), 3)

	require.NoError(t, b.Clear())
	assert.Empty(t, b.MatchKeys(""))
}
