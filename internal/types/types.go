package types

import (
	"context"
	"net/http"
	"time"
)

// Session holds the credential state shared by all outbound requests
type Session struct {
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// IsAuthenticated reports whether an access token is present
func (s Session) IsAuthenticated() bool {
	return s.AccessToken != ""
}

// IsZero reports whether the session carries no credentials at all
func (s Session) IsZero() bool {
	return s.AccessToken == "" && s.RefreshToken == ""
}

// Request describes one logical request. RetryCount counts backoff re-issues.
type Request struct {
	ID         string            `json:"id"`
	Method     string            `json:"method"`
	URL        string            `json:"url"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       []byte            `json:"body,omitempty"`
	RetryCount int               `json:"retryCount"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// SetHeader sets a header, creating the map when needed
func (r *Request) SetHeader(key, value string) {
	if r.Headers == nil {
		r.Headers = make(map[string]string)
	}
	r.Headers[key] = value
}

// Response is the outcome of a transport call that produced a status code
type Response struct {
	StatusCode int           `json:"statusCode"`
	Headers    http.Header   `json:"headers,omitempty"`
	Body       []byte        `json:"body,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Logger interface for logging
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// RetryConfig configures the backoff retry path
type RetryConfig struct {
	Enabled     bool          `json:"enabled"`
	MaxAttempts int           `json:"maxAttempts"`
	BaseDelay   time.Duration `json:"baseDelay"`

	// MaxDelay caps a single backoff delay. Zero leaves delays uncapped.
	MaxDelay time.Duration `json:"maxDelay"`
}

// DefaultRetryConfig returns the default retry settings
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		Enabled:     true,
		MaxAttempts: DefaultMaxRetryAttempts,
		BaseDelay:   DefaultBaseRetryDelay,
	}
}

// Hooks provides lifecycle hooks for requests
type Hooks struct {
	OnRequest  func(ctx context.Context, req *Request)
	OnResponse func(ctx context.Context, req *Request, resp *Response)
	OnRetry    func(ctx context.Context, req *Request, delay time.Duration)
	OnError    func(ctx context.Context, err error)
}
