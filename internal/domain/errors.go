package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Sentinel errors for client operations
var (
	// ErrAuthenticationRequired indicates no usable refresh token is available
	ErrAuthenticationRequired = errors.New("authentication required")

	// ErrTransport indicates the server could not be reached (network, timeout, non-HTTP failure)
	ErrTransport = errors.New("directus server is unreachable")

	// ErrServerDenied matches every *ServerDeniedError via errors.Is
	ErrServerDenied = errors.New("server denied this action")

	// ErrParse indicates a success response whose body could not be decoded
	ErrParse = errors.New("failed to parse server response")

	// ErrCacheUnavailable indicates the local cache could not be read or written.
	// It is never returned to callers; the engine logs it and treats the cache as a miss.
	ErrCacheUnavailable = errors.New("cache unavailable")

	// ErrTypeMismatch indicates a record field does not hold the requested type
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrMissingID indicates a record was built without a non-null id field
	ErrMissingID = errors.New("record id is required")

	// ErrInvalidRequest indicates the caller supplied arguments no request can be built from
	ErrInvalidRequest = errors.New("invalid request")
)

// ServerDeniedError is returned for non-2xx responses. Messages holds the
// "errors[].message" values of the body, in order.
type ServerDeniedError struct {
	StatusCode int
	Messages   []string
}

func (e *ServerDeniedError) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("server denied this action. HTTP code: %d. No error message in response", e.StatusCode)
	}
	return fmt.Sprintf("server denied this action. HTTP code: %d. %s", e.StatusCode, e.Message())
}

// Message returns the server messages joined by newlines.
func (e *ServerDeniedError) Message() string {
	return strings.Join(e.Messages, "\n")
}

// Is lets errors.Is(err, ErrServerDenied) match any denial.
func (e *ServerDeniedError) Is(target error) bool {
	return target == ErrServerDenied
}

// DeniedResponse builds the error for a non-success response.
func DeniedResponse(resp *RawResponse) *ServerDeniedError {
	return &ServerDeniedError{StatusCode: resp.StatusCode, Messages: ServerMessages(resp.Body)}
}

// ServerMessages returns errors[].message of a response body, in order.
func ServerMessages(body []byte) []string {
	if !gjson.ValidBytes(body) {
		return nil
	}
	var msgs []string
	gjson.GetBytes(body, "errors.#.message").ForEach(func(_, m gjson.Result) bool {
		if m.Type == gjson.String {
			msgs = append(msgs, m.Str)
		}
		return true
	})
	return msgs
}
