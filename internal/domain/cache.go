package domain

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"
)

// BodyBase64 marks an entry whose body is not UTF-8 text.
const BodyBase64 = "base64"

// CacheEntry is a stored raw HTTP response.
type CacheEntry struct {
	Key        string            `json:"key"`
	CreatedAt  time.Time         `json:"createdAt"`
	ValidUntil time.Time         `json:"validUntil"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
	StatusCode int               `json:"statusCode"`

	// BodyEncoding is BodyBase64 for binary bodies, empty for text
	BodyEncoding string `json:"bodyEncoding,omitempty"`
}

// NewCacheEntry snapshots resp under key. A negative maxAge is treated as zero
// so ValidUntil never precedes CreatedAt.
func NewCacheEntry(key string, resp *RawResponse, now time.Time, maxAge time.Duration) *CacheEntry {
	if maxAge < 0 {
		maxAge = 0
	}
	headers := make(map[string]string, len(resp.Header))
	for name := range resp.Header {
		headers[name] = resp.Header.Get(name)
	}
	e := &CacheEntry{
		Key:        key,
		CreatedAt:  now,
		ValidUntil: now.Add(maxAge),
		Headers:    headers,
		Body:       string(resp.Body),
		StatusCode: resp.StatusCode,
	}
	// JSON strings cannot carry invalid UTF-8
	if !utf8.Valid(resp.Body) {
		e.Body = base64.StdEncoding.EncodeToString(resp.Body)
		e.BodyEncoding = BodyBase64
	}
	return e
}

// IsFresh reports whether the entry may be served without a network call.
// An entry expiring exactly at now is stale.
func (e *CacheEntry) IsFresh(now time.Time) bool {
	return e.ValidUntil.After(now)
}

// BodyBytes returns the decoded body.
func (e *CacheEntry) BodyBytes() ([]byte, error) {
	if e.BodyEncoding == BodyBase64 {
		return base64.StdEncoding.DecodeString(e.Body)
	}
	return []byte(e.Body), nil
}

// Validate reports entries a store should treat as corrupt.
func (e *CacheEntry) Validate() error {
	if _, err := e.BodyBytes(); err != nil {
		return fmt.Errorf("%w: cached body: %v", ErrParse, err)
	}
	return nil
}

// Response rebuilds the raw response the entry was made from. Stores only
// return entries that pass Validate.
func (e *CacheEntry) Response() *RawResponse {
	body, _ := e.BodyBytes()
	header := make(http.Header, len(e.Headers))
	for name, value := range e.Headers {
		header.Set(name, value)
	}
	return &RawResponse{
		StatusCode: e.StatusCode,
		Header:     header,
		Body:       body,
	}
}

// Cache persists response snapshots with a tag index for bulk invalidation.
// Get never fails: missing, unreadable and corrupt entries are all misses.
type Cache interface {
	Get(key string) (*CacheEntry, bool)
	Put(entry *CacheEntry, tags []string) error
	Remove(key string) error
	RemoveByTag(tag string) error
	KeysWithTag(tag string) []string
	Clear() error
	Close() error
}

// CacheInspector lists what a cache holds.
type CacheInspector interface {
	Keys() []string
	Tags() []string
}
