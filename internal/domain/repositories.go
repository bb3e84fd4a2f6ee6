package domain

import (
	"context"
)

// AuthAPI builds and parses the authentication requests and owns the token state
type AuthAPI interface {
	// ShouldRefresh reports whether a refresh token is held or loadable and the
	// access token is missing or expired
	ShouldRefresh() bool

	// PrepareLogin builds POST /auth/login
	PrepareLogin(creds Credentials) (PreparedRequest, error)

	// ParseLogin classifies a login or refresh response and applies the tokens on success
	ParseLogin(resp *RawResponse) (LoginResult, error)

	// PrepareRefresh builds POST /auth/refresh, loading a stored refresh token if none is held.
	// Returns ErrAuthenticationRequired when no usable refresh token exists.
	PrepareRefresh(ctx context.Context) (PreparedRequest, error)

	// PrepareLogout builds POST /auth/logout. ok is false when there is no session to end.
	PrepareLogout(ctx context.Context) (req PreparedRequest, ok bool, err error)

	// ParseLogout clears the session on a 2xx response
	ParseLogout(resp *RawResponse) (bool, error)

	// ForgetSession clears tokens and deletes the persisted refresh token
	ForgetSession(ctx context.Context)

	// PreparePasswordRequest builds POST /auth/password/request
	PreparePasswordRequest(email, resetURL string) (PreparedRequest, error)

	// PreparePasswordReset builds POST /auth/password/reset
	PreparePasswordReset(token, password string) (PreparedRequest, error)
}

// ItemAPI builds and parses collection item requests
type ItemAPI interface {
	PrepareListItems(coll Collection, q ListQuery) (PreparedRequest, error)
	ParseListItems(resp *RawResponse) ([]*Record, error)

	// PrepareGetItem tags the request so the response can later be invalidated per item
	PrepareGetItem(coll Collection, id, fields string, tags []string) (PreparedRequest, error)
	ParseItem(resp *RawResponse) (*Record, error)

	// PrepareCreateItems posts a single object when len(items) == 1, a list otherwise
	PrepareCreateItems(coll Collection, fields string, items []*Fields) (PreparedRequest, error)
	ParseCreateItems(resp *RawResponse) (ItemCreationResult, error)

	PrepareUpdateItem(coll Collection, id, fields string, body *Fields) (PreparedRequest, error)

	PrepareDeleteItem(coll Collection, id string, authenticated bool) (PreparedRequest, error)
	PrepareDeleteItems(coll Collection, ids []string, authenticated bool) (PreparedRequest, error)
}

// FileAPI builds and parses file storage requests
type FileAPI interface {
	PrepareUploadFile(up FileUpload) (PreparedRequest, error)
	PrepareUpdateFile(id string, up FileUpload) (PreparedRequest, error)
	PrepareImportFile(url, title, folder string) (PreparedRequest, error)
	ParseFile(resp *RawResponse) (*File, error)

	PrepareDownloadFile(id string) (PreparedRequest, error)
	ParseDownload(resp *RawResponse) ([]byte, error)

	PrepareDeleteFile(id string) (PreparedRequest, error)
}

// UserAPI builds and parses user management requests
type UserAPI interface {
	PrepareCurrentUser(fields string) (PreparedRequest, error)
	ParseUser(resp *RawResponse) (*User, error)

	PrepareInvite(email, role string) (PreparedRequest, error)
	// ParseInvite reports whether the server accepted the invite
	ParseInvite(resp *RawResponse) (bool, error)

	PrepareRegister(email, password, firstName, lastName string) (PreparedRequest, error)
}

// DirectusAPI is the full request builder and parser set the client drives
type DirectusAPI interface {
	AuthAPI
	ItemAPI
	FileAPI
	UserAPI

	// BaseURL returns the server URL without a trailing slash
	BaseURL() string

	// PrepareCustom builds a request to any path, authenticated when a token is held
	PrepareCustom(method, path string, body any, tags []string) (PreparedRequest, error)

	// ParseBool returns true for 2xx responses and a ServerDeniedError otherwise
	ParseBool(resp *RawResponse) (bool, error)
}
