package types

import (
	"errors"
	"time"
)

const (
	// DefaultBaseURL is the default API origin
	DefaultBaseURL = "http://localhost:5000/api"

	// DefaultTimeout is the default per-request timeout
	DefaultTimeout = 30 * time.Second

	// DefaultClientVersion is sent in X-Client-Version when none is configured
	DefaultClientVersion = "1.0.0"

	// DefaultMaxRetryAttempts bounds the backoff retry path
	DefaultMaxRetryAttempts = 3

	// DefaultBaseRetryDelay is the first backoff delay
	DefaultBaseRetryDelay = 1 * time.Second

	// UserAgent is the user agent string
	UserAgent = "apiclient-go/1.0.0"
)

// Endpoints used by the auth service
const (
	RefreshEndpoint = "/auth/refresh"
	LoginEndpoint   = "/auth/login"
)

// Header names emitted by the request stages
const (
	HeaderAuthorization = "Authorization"
	HeaderRequestTime   = "X-Request-Time"
	HeaderClientVersion = "X-Client-Version"
	HeaderRequestID     = "X-Request-ID"
)

// Storage keys for persisted credentials
const (
	StorageKeyAccessToken  = "accessToken"
	StorageKeyRefreshToken = "refreshToken"
)

// Common errors
var (
	// ErrAuthRequired is returned when no access token is available
	ErrAuthRequired = errors.New("authentication required")

	// ErrRefreshFailed is returned when the credential refresh call fails
	ErrRefreshFailed = errors.New("token refresh failed")

	// ErrNoRefreshToken is returned when a refresh is needed but no refresh token is held
	ErrNoRefreshToken = errors.New("no refresh token")

	// ErrLoginFailed is returned when login fails
	ErrLoginFailed = errors.New("login failed")
)
