package service

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	sfuzzy "github.com/sahilm/fuzzy"

	"github.com/mmcdole/directus/internal/domain"
)

// InspectableCache is a cache store that can list its contents.
type InspectableCache interface {
	domain.Cache
	domain.CacheInspector
}

// KeyMatch is a cache key matched by a query, with match metadata for highlighting.
type KeyMatch struct {
	Key            string
	MatchedIndexes []int // Character positions that matched
	Score          int   // Higher is better
}

// keyIndex implements sahilm/fuzzy.Source over lowercased keys
type keyIndex struct {
	keys  []string
	lower []string
}

func (idx *keyIndex) String(i int) string { return idx.lower[i] }
func (idx *keyIndex) Len() int            { return len(idx.keys) }

// CacheBrowser searches and prunes the contents of a cache store.
type CacheBrowser struct {
	cache  InspectableCache
	logger *slog.Logger
}

// NewCacheBrowser creates a browser over cache.
func NewCacheBrowser(cache InspectableCache, logger *slog.Logger) *CacheBrowser {
	if logger == nil {
		logger = slog.Default()
	}
	return &CacheBrowser{cache: cache, logger: logger}
}

// MatchKeys ranks the cached keys against query. An empty query lists every
// key in order.
func (b *CacheBrowser) MatchKeys(query string) []KeyMatch {
	keys := b.cache.Keys()
	sort.Strings(keys)

	if query == "" {
		out := make([]KeyMatch, len(keys))
		for i, k := range keys {
			out[i] = KeyMatch{Key: k}
		}
		return out
	}

	idx := &keyIndex{keys: keys, lower: make([]string, len(keys))}
	for i, k := range keys {
		idx.lower[i] = strings.ToLower(k)
	}

	matches := sfuzzy.FindFrom(strings.ToLower(query), idx)
	out := make([]KeyMatch, len(matches))
	for i, m := range matches {
		out[i] = KeyMatch{
			Key:            idx.keys[m.Index],
			MatchedIndexes: m.MatchedIndexes,
			Score:          m.Score,
		}
	}
	b.logger.Debug("Matched cache keys", "query", query, "results", len(out))
	return out
}

// MatchTags returns the tags containing query as a fuzzy subsequence, closest first.
func (b *CacheBrowser) MatchTags(query string) []string {
	tags := b.cache.Tags()
	if query == "" {
		sort.Strings(tags)
		return tags
	}

	ranks := fuzzy.RankFindFold(query, tags)
	sort.Slice(ranks, func(i, j int) bool {
		if ranks[i].Distance != ranks[j].Distance {
			return ranks[i].Distance < ranks[j].Distance
		}
		return ranks[i].Target < ranks[j].Target
	})

	out := make([]string, len(ranks))
	for i, r := range ranks {
		out[i] = r.Target
	}
	return out
}

// Entry returns the stored entry for key.
func (b *CacheBrowser) Entry(key string) (*domain.CacheEntry, bool) {
	return b.cache.Get(key)
}

// KeysWithTag lists the keys stored under tag.
func (b *CacheBrowser) KeysWithTag(tag string) []string {
	return b.cache.KeysWithTag(tag)
}

// DropTag removes every entry stored under tag and reports how many there were.
func (b *CacheBrowser) DropTag(tag string) (int, error) {
	n := len(b.cache.KeysWithTag(tag))
	if err := b.cache.RemoveByTag(tag); err != nil {
		return 0, err
	}
	b.logger.Info("Dropped cache tag", "tag", tag, "entries", n)
	return n, nil
}

// Clear removes every entry.
func (b *CacheBrowser) Clear() error {
	return b.cache.Clear()
}
