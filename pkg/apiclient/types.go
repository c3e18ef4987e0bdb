package apiclient

import (
	"context"

	"github.com/eshaffer321/apiclient-go/internal/auth"
	"github.com/eshaffer321/apiclient-go/internal/types"
)

// Re-export types from internal package
type (
	Request     = types.Request
	Response    = types.Response
	Session     = types.Session
	RetryConfig = types.RetryConfig
	Hooks       = types.Hooks
	Logger      = types.Logger
)

// TokenStorage persists the access and refresh tokens
type TokenStorage = auth.TokenStorage

// Refresher exchanges a refresh token for a new session
type Refresher = auth.Refresher

// RateLimiter interface for rate limiting
type RateLimiter interface {
	Wait(ctx context.Context) error
}

// Transport executes a single attempt of a request. A non-2xx status is a
// response, not an error.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// NewMemoryStorage returns in-process token storage
func NewMemoryStorage() TokenStorage {
	return auth.NewMemoryStorage()
}

// NewFileStorage returns token storage backed by a JSON file
func NewFileStorage(path string) TokenStorage {
	return auth.NewFileStorage(path)
}

// DefaultRetryConfig returns the default retry settings
func DefaultRetryConfig() *RetryConfig {
	return types.DefaultRetryConfig()
}
