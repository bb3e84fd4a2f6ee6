package service

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/mmcdole/directus/internal/domain"
)

// Client is the entry point of the SDK. It binds the request builders to a
// cache store and an HTTP transport.
type Client struct {
	api    domain.DirectusAPI
	cache  domain.Cache
	engine *Engine
	logger *slog.Logger

	userMu sync.Mutex
	user   *domain.User
}

// NewClient creates a client. cache and doer may be nil.
func NewClient(api domain.DirectusAPI, cache domain.Cache, doer domain.HTTPDoer, logger *slog.Logger, opts ...EngineOption) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		api:    api,
		cache:  cache,
		engine: NewEngine(api, cache, doer, logger, opts...),
		logger: logger,
	}
}

// Engine returns the request engine.
func (c *Client) Engine() *Engine { return c.engine }

// BaseURL returns the server URL without a trailing slash.
func (c *Client) BaseURL() string { return c.api.BaseURL() }

// RefreshToken forces a token refresh.
func (c *Client) RefreshToken(ctx context.Context) (bool, error) {
	return c.engine.RefreshToken(ctx)
}

// HasLoggedInUser reports whether a refresh request can be prepared, loading
// the persisted refresh token if needed.
func (c *Client) HasLoggedInUser(ctx context.Context) bool {
	if _, err := c.api.PrepareRefresh(ctx); err != nil {
		c.logger.Debug("No logged in user", "error", err)
		return false
	}
	return true
}

// CurrentUser returns the logged in user. The first successful fetch is kept
// in memory until DiscardCurrentUserCache. Concurrent callers share one fetch.
// A failed fetch is logged and reported as no user.
func (c *Client) CurrentUser(ctx context.Context, fields string, opts CacheOptions) (*domain.User, error) {
	if u := c.snapshot(); u != nil {
		return u, nil
	}

	ch := c.engine.flights.DoChan(flightCurrentUser, func() (any, error) {
		shared := context.WithoutCancel(ctx)
		if u := c.snapshot(); u != nil {
			return u, nil
		}
		if !c.HasLoggedInUser(shared) {
			return nil, domain.ErrAuthenticationRequired
		}

		opts.RequestIdentifier = KeyCurrentUser
		u, err := send(shared, c.engine,
			func(context.Context) (domain.PreparedRequest, error) { return c.api.PrepareCurrentUser(fields) },
			c.api.ParseUser,
			RequestOptions{DependsOnToken: true, Cache: opts},
		)
		if err != nil {
			c.logger.Warn("Failed to fetch current user", "error", err)
			return (*domain.User)(nil), nil
		}

		c.userMu.Lock()
		c.user = u
		c.userMu.Unlock()
		return u, nil
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*domain.User), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) snapshot() *domain.User {
	c.userMu.Lock()
	defer c.userMu.Unlock()
	return c.user
}

// DiscardCurrentUserCache drops the in-memory user and its cache entry.
func (c *Client) DiscardCurrentUserCache() {
	c.userMu.Lock()
	c.user = nil
	c.userMu.Unlock()

	if c.cache == nil {
		return
	}
	if err := c.cache.Remove(KeyCurrentUser); err != nil {
		c.logger.Warn("Failed to remove cached user", "error", err)
	}
}

// ClearCache removes every cached response.
func (c *Client) ClearCache() error {
	if c.cache == nil {
		return nil
	}
	return c.cache.Clear()
}

// InvalidateTag removes every cached response stored under tag.
func (c *Client) InvalidateTag(tag string) error {
	if c.cache == nil {
		return nil
	}
	return c.cache.RemoveByTag(tag)
}

// CustomRequest describes a call to an endpoint without a dedicated method.
type CustomRequest struct {
	Method string
	Path   string
	// Body is sent raw when it is a []byte and as JSON otherwise.
	Body any
}

// SendRequest sends req through the engine and decodes the response with
// parse. Responses are tagged "customRequest".
func SendRequest[T any](ctx context.Context, c *Client, req CustomRequest, parse func(*domain.RawResponse) (T, error), opts CacheOptions) (T, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	return send(ctx, c.engine,
		func(context.Context) (domain.PreparedRequest, error) {
			return c.api.PrepareCustom(method, req.Path, req.Body, []string{TagCustomRequest})
		},
		parse,
		RequestOptions{DependsOnToken: true, Cache: opts},
	)
}

// DataResponse decodes the "data" member of a 2xx JSON envelope. It is a
// ready-made parser for SendRequest.
func DataResponse(resp *domain.RawResponse) (domain.Value, error) {
	if !resp.IsSuccess() {
		return domain.Value{}, domain.DeniedResponse(resp)
	}
	if len(resp.Body) == 0 {
		return domain.NullValue(), nil
	}
	fields, err := domain.ParseFields(resp.Body)
	if err != nil {
		return domain.Value{}, err
	}
	if v, ok := fields.Get("data"); ok {
		return v, nil
	}
	return domain.NullValue(), nil
}

