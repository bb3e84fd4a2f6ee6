package domain

import (
	"context"
	"net/http"
)

// HTTPDoer sends HTTP requests. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// PreparedRequest is a ready-to-send request plus the cache tags any response
// obtained through it should be stored under.
type PreparedRequest struct {
	Request *http.Request
	Tags    []string
}

// Method returns the HTTP method, or empty for a nil request.
func (p PreparedRequest) Method() string {
	if p.Request == nil {
		return ""
	}
	return p.Request.Method
}

// URL returns the full request URL, or empty for a nil request.
func (p PreparedRequest) URL() string {
	if p.Request == nil || p.Request.URL == nil {
		return ""
	}
	return p.Request.URL.String()
}

// CacheKey is the default cache key: "<METHOD> <URL>".
func (p PreparedRequest) CacheKey() string {
	return p.Method() + " " + p.URL()
}

// Preparer builds a request, possibly loading state such as a stored refresh token.
type Preparer func(ctx context.Context) (PreparedRequest, error)

// RawResponse is a fully read HTTP response.
type RawResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// IsSuccess reports a 2xx status.
func (r *RawResponse) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
