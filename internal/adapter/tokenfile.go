package adapter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
)

// TokenFile persists the refresh token in a private file.
type TokenFile struct {
	path string
}

// NewTokenFile returns a token file at path, expanding a leading ~.
func NewTokenFile(path string) (*TokenFile, error) {
	if path == "" {
		return nil, errors.New("refresh token file path is empty")
	}
	expanded, err := ExpandHome(path)
	if err != nil {
		return nil, err
	}
	return &TokenFile{path: expanded}, nil
}

// Path returns the file location.
func (f *TokenFile) Path() string { return f.path }

// Load reads the stored token. ok is false when no file exists. A file that
// exists but is empty yields ok with an empty token.
func (f *TokenFile) Load(_ context.Context) (string, bool, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read refresh token: %w", err)
	}
	return strings.TrimSpace(string(data)), true, nil
}

// Save replaces the stored token. An empty token deletes the file.
func (f *TokenFile) Save(_ context.Context, token string) error {
	if token == "" {
		return f.Delete()
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	if err := atomic.WriteFile(f.path, strings.NewReader(token)); err != nil {
		return fmt.Errorf("failed to write refresh token: %w", err)
	}
	if err := os.Chmod(f.path, 0600); err != nil {
		return fmt.Errorf("failed to restrict refresh token: %w", err)
	}
	return nil
}

// Delete removes the stored token. A missing file is not an error.
func (f *TokenFile) Delete() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete refresh token: %w", err)
	}
	return nil
}
