package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/mmcdole/directus/internal/domain"
)

// maxIDPrefix keeps ids well under the 255 byte file name limit.
const maxIDPrefix = 200

// FileID maps a cache key to a filesystem-safe identifier. Non-alphanumerics
// become "." and the xxhash of the raw key is appended, so keys that sanitize
// to the same text ("a/b", "a.b") or share a truncated prefix still get
// distinct ids.
func FileID(key string) string {
	var b strings.Builder
	b.Grow(min(len(key), maxIDPrefix) + 17)
	for _, r := range key {
		if b.Len() >= maxIDPrefix {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('.')
		}
	}
	fmt.Fprintf(&b, "-%016x", xxhash.Sum64String(key))
	return b.String()
}

// ServerDir returns the per-server subdirectory of baseDir, so caches of
// different servers never mix.
func ServerDir(baseDir, serverURL string) string {
	if serverURL == "" {
		return baseDir
	}
	return filepath.Join(baseDir, hashServerURL(serverURL))
}

func hashServerURL(serverURL string) string {
	normalized := strings.TrimRight(strings.ToLower(serverURL), "/")
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:6])
}

func cloneEntry(e *domain.CacheEntry) *domain.CacheEntry {
	if e == nil {
		return nil
	}
	out := *e
	if e.Headers != nil {
		out.Headers = make(map[string]string, len(e.Headers))
		for k, v := range e.Headers {
			out.Headers[k] = v
		}
	}
	return &out
}
