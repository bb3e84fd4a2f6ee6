package domain

import (
	"fmt"
	"time"
)

// LoginResultType classifies a login or refresh outcome
type LoginResultType int

const (
	LoginSuccess LoginResultType = iota
	LoginInvalidCredentials
	LoginInvalidOTP
	LoginError
)

func (t LoginResultType) String() string {
	switch t {
	case LoginSuccess:
		return "success"
	case LoginInvalidCredentials:
		return "invalidCredentials"
	case LoginInvalidOTP:
		return "invalidOTP"
	default:
		return "error"
	}
}

// LoginResult is the outcome of a login or token refresh.
type LoginResult struct {
	Type    LoginResultType
	Message string
}

// OK reports a successful login.
func (r LoginResult) OK() bool { return r.Type == LoginSuccess }

// TokenResult is a parsed token response. Expiry is zero when the server gave none.
type TokenResult struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// Credentials identify a user on login.
type Credentials struct {
	Email    string
	Password string
	OTP      string
}

// ItemCreationResult holds created items or the reason creation failed.
type ItemCreationResult struct {
	Items []*Record
	Err   error
}

// Item returns the first created item, if any.
func (r ItemCreationResult) Item() (*Record, bool) {
	if r.Err != nil || len(r.Items) == 0 {
		return nil, false
	}
	return r.Items[0], true
}

// ListQuery narrows a collection listing. Zero values are omitted from the URL.
type ListQuery struct {
	Fields string
	Filter Filter
	Sort   []SortProperty
	Limit  int
	Offset int
}

// FileUpload is the content and metadata of a multipart file upload.
type FileUpload struct {
	Data        []byte
	Filename    string
	ContentType string
	Title       string
	Folder      string
	Storage     string
}

// Validate checks the fields every upload needs.
func (u FileUpload) Validate() error {
	if u.Filename == "" {
		return fmt.Errorf("%w: upload filename is required", ErrInvalidRequest)
	}
	return nil
}
