package service

import (
	"context"

	"github.com/mmcdole/directus/internal/domain"
)

// Login authenticates with email, password and an optional one-time
// password. Rejected credentials are reported in the result; only transport
// and request errors are returned as errors.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (domain.LoginResult, error) {
	c.DiscardCurrentUserCache()

	return send(ctx, c.engine,
		func(context.Context) (domain.PreparedRequest, error) { return c.api.PrepareLogin(creds) },
		c.api.ParseLogin,
		RequestOptions{DependsOnToken: false, Cache: NoCache()},
	)
}

// Logout ends the session on the server. Without a session, or when the
// server cannot be reached, it reports true. The persisted refresh token is
// deleted only when the server confirms.
func (c *Client) Logout(ctx context.Context) (bool, error) {
	defer c.DiscardCurrentUserCache()

	p, ok, err := c.api.PrepareLogout(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}

	done, err := send(ctx, c.engine,
		func(context.Context) (domain.PreparedRequest, error) { return p, nil },
		c.api.ParseLogout,
		RequestOptions{DependsOnToken: false, Cache: NoCache()},
	)
	if err != nil {
		c.logger.Warn("Logout request failed", "error", err)
		return true, nil
	}
	if done {
		c.api.ForgetSession(ctx)
	}
	return done, nil
}

// RequestPasswordReset asks the server to email a reset link. resetURL is
// optional and must be allow-listed on the server.
func (c *Client) RequestPasswordReset(ctx context.Context, email, resetURL string) (bool, error) {
	return send(ctx, c.engine,
		func(context.Context) (domain.PreparedRequest, error) {
			return c.api.PreparePasswordRequest(email, resetURL)
		},
		c.api.ParseBool,
		RequestOptions{DependsOnToken: true, Cache: NoCache()},
	)
}

// ConfirmPasswordReset sets a new password with the token from the reset email.
func (c *Client) ConfirmPasswordReset(ctx context.Context, token, password string) (bool, error) {
	return send(ctx, c.engine,
		func(context.Context) (domain.PreparedRequest, error) {
			return c.api.PreparePasswordReset(token, password)
		},
		c.api.ParseBool,
		RequestOptions{DependsOnToken: false, Cache: NoCache()},
	)
}

// InviteUser sends an invitation email for role.
func (c *Client) InviteUser(ctx context.Context, email, roleID string) (bool, error) {
	return send(ctx, c.engine,
		func(context.Context) (domain.PreparedRequest, error) { return c.api.PrepareInvite(email, roleID) },
		c.api.ParseInvite,
		RequestOptions{DependsOnToken: true, Cache: NoCache()},
	)
}

// RegisterUser creates an account through public registration.
func (c *Client) RegisterUser(ctx context.Context, email, password, firstName, lastName string) (bool, error) {
	return send(ctx, c.engine,
		func(context.Context) (domain.PreparedRequest, error) {
			return c.api.PrepareRegister(email, password, firstName, lastName)
		},
		c.api.ParseBool,
		RequestOptions{DependsOnToken: false, Cache: NoCache()},
	)
}
