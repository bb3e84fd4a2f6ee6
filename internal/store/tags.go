package store

import (
	"encoding/json"
	"slices"
	"sort"
)

// TagIndex maps a tag to the cache keys stored under it, with set semantics.
// It is not safe for concurrent use; stores guard it with their own mutex.
type TagIndex struct {
	Entries map[string][]string `json:"taggedEntries"`
}

// NewTagIndex returns an empty index.
func NewTagIndex() *TagIndex {
	return &TagIndex{Entries: make(map[string][]string)}
}

// ParseTagIndex decodes the persisted index format.
func ParseTagIndex(data []byte) (*TagIndex, error) {
	idx := NewTagIndex()
	if err := json.Unmarshal(data, idx); err != nil {
		return nil, err
	}
	if idx.Entries == nil {
		idx.Entries = make(map[string][]string)
	}
	return idx, nil
}

// Marshal encodes the index as {"taggedEntries": {...}}.
func (t *TagIndex) Marshal() ([]byte, error) {
	return json.Marshal(t)
}

// Add registers key under tag. Reports whether the index changed.
func (t *TagIndex) Add(tag, key string) bool {
	keys := t.Entries[tag]
	if slices.Contains(keys, key) {
		return false
	}
	t.Entries[tag] = append(keys, key)
	return true
}

// Keys returns a copy of the keys under tag.
func (t *TagIndex) Keys(tag string) []string {
	return slices.Clone(t.Entries[tag])
}

// Remove drops tag and returns the keys it held.
func (t *TagIndex) Remove(tag string) []string {
	keys := t.Entries[tag]
	delete(t.Entries, tag)
	return keys
}

// RemoveKey drops key from every tag, deleting tags left empty.
// Reports whether the index changed.
func (t *TagIndex) RemoveKey(key string) bool {
	changed := false
	for tag, keys := range t.Entries {
		i := slices.Index(keys, key)
		if i < 0 {
			continue
		}
		changed = true
		keys = slices.Delete(keys, i, i+1)
		if len(keys) == 0 {
			delete(t.Entries, tag)
		} else {
			t.Entries[tag] = keys
		}
	}
	return changed
}

// Tags returns all tags, sorted.
func (t *TagIndex) Tags() []string {
	tags := make([]string, 0, len(t.Entries))
	for tag := range t.Entries {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Reset empties the index.
func (t *TagIndex) Reset() {
	t.Entries = make(map[string][]string)
}
