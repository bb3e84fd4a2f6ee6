package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mmcdole/directus/internal/domain"
)

// DefaultMaxCacheAge is how long a saved response stays fresh.
const DefaultMaxCacheAge = 24 * time.Hour

// Single-flight keys
const (
	flightRefresh     = "refresh"
	flightCurrentUser = "currentUser"
)

// CacheOptions controls how one call uses the cache store.
type CacheOptions struct {
	// CanUseCache serves a fresh cached response instead of the network.
	CanUseCache bool
	// CanSaveCache stores the raw response after a successful dispatch.
	CanSaveCache bool
	// CanUseStaleFallback serves any cached response, expired or not, when
	// the network fails.
	CanUseStaleFallback bool
	MaxCacheAge         time.Duration
	// RequestIdentifier overrides the "<METHOD> <URL>" cache key.
	RequestIdentifier string
}

// DefaultCacheOptions returns the read-through defaults: no fresh reads,
// save every response, fall back to stale data.
func DefaultCacheOptions() CacheOptions {
	return CacheOptions{
		CanSaveCache:        true,
		CanUseStaleFallback: true,
		MaxCacheAge:         DefaultMaxCacheAge,
	}
}

// NoCache disables every cache interaction.
func NoCache() CacheOptions {
	return CacheOptions{}
}

// RequestOptions are the per-call engine settings.
type RequestOptions struct {
	// DependsOnToken refreshes an expired access token before preparing.
	DependsOnToken bool
	Cache          CacheOptions
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithClock replaces time.Now for freshness checks and cache writes.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// Engine runs every outward call: token pre-check, prepare, cache read,
// dispatch, cache write, parse and stale fallback.
type Engine struct {
	api     domain.DirectusAPI
	cache   domain.Cache
	doer    domain.HTTPDoer
	logger  *slog.Logger
	now     func() time.Time
	flights singleflight.Group
}

// NewEngine creates an engine. A nil cache disables caching and a nil doer
// uses http.DefaultClient.
func NewEngine(api domain.DirectusAPI, cache domain.Cache, doer domain.HTTPDoer, logger *slog.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if doer == nil {
		doer = http.DefaultClient
	}
	e := &Engine{
		api:    api,
		cache:  cache,
		doer:   doer,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// send runs one request through the lifecycle and returns parse's result.
func send[T any](ctx context.Context, e *Engine, prepare domain.Preparer, parse func(*domain.RawResponse) (T, error), opts RequestOptions) (T, error) {
	var zero T

	if opts.DependsOnToken && e.api.ShouldRefresh() {
		// A failed refresh is not fatal; the request itself decides.
		if _, err := e.RefreshToken(ctx); err != nil {
			e.logger.Warn("Token refresh failed", "error", err)
		}
	}

	p, err := prepare(ctx)
	if err != nil {
		return zero, err
	}

	key := opts.Cache.RequestIdentifier
	if key == "" {
		key = p.CacheKey()
	}

	var cached *domain.CacheEntry
	looked := false
	if opts.Cache.CanUseCache && e.cache != nil {
		looked = true
		if entry, ok := e.cache.Get(key); ok {
			cached = entry
			if entry.IsFresh(e.now()) {
				e.logger.Debug("Cache hit", "key", key)
				return parse(entry.Response())
			}
			e.logger.Debug("Cache entry expired", "key", key)
		} else {
			e.logger.Debug("Cache miss", "key", key)
		}
	}

	resp, err := e.dispatch(ctx, p.Request)
	if err != nil {
		if opts.Cache.CanUseStaleFallback && e.cache != nil {
			if !looked {
				cached, _ = e.cache.Get(key)
			}
			if cached != nil {
				e.logger.Info("Serving stale cache entry", "key", key, "error", err)
				return parse(cached.Response())
			}
		}
		e.logger.Error("Request failed", "method", p.Method(), "url", p.URL(), "error", err)
		return zero, err
	}

	if opts.Cache.CanSaveCache && e.cache != nil {
		entry := domain.NewCacheEntry(key, resp, e.now(), opts.Cache.MaxCacheAge)
		if err := e.cache.Put(entry, p.Tags); err != nil {
			e.logger.Warn("Failed to write cache entry", "key", key, "error", err)
		} else {
			e.logger.Debug("Cache write", "key", key, "tags", p.Tags)
		}
	}

	return parse(resp)
}

// dispatch performs the HTTP exchange. Any failure before a complete
// response is read is a transport error.
func (e *Engine) dispatch(ctx context.Context, req *http.Request) (*domain.RawResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: no request", domain.ErrInvalidRequest)
	}
	resp, err := e.doer.Do(req.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", domain.ErrTransport, req.Method, req.URL.Redacted(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", domain.ErrTransport, err)
	}
	return &domain.RawResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       body,
	}, nil
}

// RefreshToken exchanges the refresh token for new tokens. Concurrent
// callers share one network attempt and its result. The attempt is not
// cancelled when one waiter's context is.
func (e *Engine) RefreshToken(ctx context.Context) (bool, error) {
	ch := e.flights.DoChan(flightRefresh, func() (any, error) {
		shared := context.WithoutCancel(ctx)
		res, err := send(shared, e,
			e.api.PrepareRefresh,
			e.api.ParseLogin,
			RequestOptions{DependsOnToken: false, Cache: NoCache()},
		)
		if err != nil {
			return false, err
		}
		if !res.OK() {
			return false, fmt.Errorf("refresh rejected (%s): %s", res.Type, res.Message)
		}
		return true, nil
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			return false, r.Err
		}
		return r.Val.(bool), nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
