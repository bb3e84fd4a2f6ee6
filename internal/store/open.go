package store

import (
	"fmt"
	"log/slog"

	"github.com/mmcdole/directus/internal/domain"
)

// Cache backends
const (
	BackendJSON   = "json"
	BackendBolt   = "bolt"
	BackendMemory = "memory"
)

// Options select and configure a cache backend.
type Options struct {
	Backend       string
	Dir           string // base cache directory; a per-server subdirectory is used
	ServerURL     string
	MemoryEntries int
	Logger        *slog.Logger
}

// Store is what Open returns: a cache that can also list its contents.
type Store interface {
	domain.Cache
	domain.CacheInspector
}

// Open builds the configured backend. An empty Dir selects the memory backend.
func Open(opts Options) (Store, error) {
	backend := opts.Backend
	if backend == "" {
		backend = BackendJSON
	}
	if opts.Dir == "" {
		backend = BackendMemory
	}

	dir := ServerDir(opts.Dir, opts.ServerURL)
	switch backend {
	case BackendJSON:
		return NewJSONStore(dir, opts.MemoryEntries, opts.Logger)
	case BackendBolt:
		return NewBoltStore(dir, opts.MemoryEntries, opts.Logger)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
}
