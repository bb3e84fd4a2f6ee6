package directus

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mmcdole/directus/internal/domain"
)

// TokenLoader reads a persisted refresh token. ok is false when none is stored.
type TokenLoader func(ctx context.Context) (token string, ok bool, err error)

// TokenSaver persists a refresh token. An empty token deletes the stored one.
type TokenSaver func(ctx context.Context, token string) error

// TokenState holds the session tokens. All fields are guarded by mu; the
// loader and saver are always called without holding it.
type TokenState struct {
	mu           sync.Mutex
	accessToken  string
	refreshToken *string // nil until received or loaded; may be empty
	expiry       time.Time
	loaded       bool // loader already consulted

	// Concurrent Hydrate calls share one loader run
	hydrating singleflight.Group

	loader TokenLoader
	saver  TokenSaver
	now    func() time.Time
	logger *slog.Logger
}

// NewTokenState creates an empty token state. loader and saver may be nil.
func NewTokenState(loader TokenLoader, saver TokenSaver, logger *slog.Logger) *TokenState {
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenState{loader: loader, saver: saver, now: time.Now, logger: logger}
}

// ShouldRefresh is true when a refresh token is held or loadable and the
// access token is missing or past its expiry.
func (t *TokenState) ShouldRefresh() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.refreshToken == nil && (t.loader == nil || t.loaded) {
		return false
	}
	if t.accessToken == "" {
		return true
	}
	if t.expiry.IsZero() {
		return false
	}
	return t.expiry.Before(t.now())
}

// Hydrate loads the persisted refresh token if none is held. The loader runs
// at most once per session, even under concurrent callers. A loaded empty
// token is kept as is.
func (t *TokenState) Hydrate(ctx context.Context) {
	if !t.needsLoad() {
		return
	}

	// Detached so one caller's cancellation does not fail the others
	loadCtx := context.WithoutCancel(ctx)
	ch := t.hydrating.DoChan("hydrate", func() (any, error) {
		if !t.needsLoad() {
			return nil, nil
		}
		token, ok, err := t.loader(loadCtx)
		if err != nil {
			t.logger.Warn("Failed to load refresh token", "error", err)
		}

		t.mu.Lock()
		defer t.mu.Unlock()
		t.loaded = true
		if ok && err == nil && t.refreshToken == nil {
			t.refreshToken = &token
		}
		return nil, nil
	})

	select {
	case <-ch:
	case <-ctx.Done():
	}
}

func (t *TokenState) needsLoad() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.refreshToken == nil && t.loader != nil && !t.loaded
}

// UsableRefreshToken hydrates and returns the refresh token, or
// ErrAuthenticationRequired when none (or an empty one) is available.
func (t *TokenState) UsableRefreshToken(ctx context.Context) (string, error) {
	t.Hydrate(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.refreshToken == nil || *t.refreshToken == "" {
		return "", domain.ErrAuthenticationRequired
	}
	return *t.refreshToken, nil
}

// Apply replaces all three token fields. The saver is called once when the
// refresh token changed.
func (t *TokenState) Apply(ctx context.Context, res domain.TokenResult) {
	t.mu.Lock()
	changed := t.refreshToken == nil || *t.refreshToken != res.RefreshToken
	refresh := res.RefreshToken
	t.accessToken = res.AccessToken
	t.refreshToken = &refresh
	t.expiry = res.Expiry
	saver := t.saver
	t.mu.Unlock()

	if changed && saver != nil {
		if err := saver(ctx, refresh); err != nil {
			t.logger.Warn("Failed to persist refresh token", "error", err)
		}
	}
}

// Clear drops all tokens. The persisted token is left alone, so a cleared
// state does not reload it either.
func (t *TokenState) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.accessToken = ""
	t.refreshToken = nil
	t.expiry = time.Time{}
	t.loaded = true
}

// Forget clears the tokens and deletes the persisted refresh token.
func (t *TokenState) Forget(ctx context.Context) {
	t.Clear()
	if t.saver == nil {
		return
	}
	if err := t.saver(ctx, ""); err != nil {
		t.logger.Warn("Failed to delete refresh token", "error", err)
	}
}

// AccessToken returns the current bearer token, or "".
func (t *TokenState) AccessToken() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.accessToken
}

// RefreshToken returns the held refresh token without loading it.
func (t *TokenState) RefreshToken() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.refreshToken == nil {
		return "", false
	}
	return *t.refreshToken, true
}

// SetRefreshToken installs a refresh token obtained elsewhere.
func (t *TokenState) SetRefreshToken(token string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.refreshToken = &token
}

// Expiry returns the access token expiry, zero when unknown.
func (t *TokenState) Expiry() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.expiry
}
