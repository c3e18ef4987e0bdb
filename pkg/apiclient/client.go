// Package apiclient is a resilient HTTP API client. Every request passes
// through ordered request stages that stamp identity and credentials, and a
// response pipeline that refreshes expired tokens once per burst of 401s and
// retries transient failures with exponential backoff.
package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/eshaffer321/apiclient-go/internal/auth"
	"github.com/eshaffer321/apiclient-go/internal/retry"
	"github.com/eshaffer321/apiclient-go/internal/transport"
	"github.com/eshaffer321/apiclient-go/internal/types"
	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	// DefaultBaseURL is the default API base URL
	DefaultBaseURL = types.DefaultBaseURL

	// DefaultTimeout is the default HTTP client timeout
	DefaultTimeout = types.DefaultTimeout

	// DefaultClientVersion is sent when ClientVersion is empty
	DefaultClientVersion = types.DefaultClientVersion
)

// Client is the API client. It is safe for concurrent use; all requests
// share one session.
type Client struct {
	baseURL       string
	clientVersion string
	httpClient    *http.Client
	transport     Transport
	options       *ClientOptions

	session  *auth.SessionStore
	tokens   *auth.TokenManager
	login    *auth.Service
	policy   *retry.Policy
	notifier *notifier
	stages   []RequestStage
	closers  []io.Closer
	logger   Logger
	now      func() time.Time

	retryEnabled bool
}

// ClientOptions configures the client
type ClientOptions struct {
	// BaseURL overrides the default API base URL
	BaseURL string

	// HTTPClient allows using a custom HTTP client
	HTTPClient *http.Client

	// Timeout sets the HTTP client timeout and bounds token refresh
	Timeout time.Duration

	// ClientVersion is sent as X-Client-Version
	ClientVersion string

	// Headers are added to every request
	Headers map[string]string

	// Session provides initial tokens, overriding anything in TokenStorage
	Session *Session

	// TokenStorage persists tokens. Defaults to in-memory storage.
	TokenStorage TokenStorage

	// Refresher overrides the default POST /auth/refresh call
	Refresher Refresher

	// Logger for debug logging
	Logger Logger

	// RetryConfig configures the backoff path. Nil uses the defaults;
	// Enabled false disables backoff retries.
	RetryConfig *RetryConfig

	// RateLimiter for rate limiting
	RateLimiter RateLimiter

	// Hooks for observability
	Hooks *Hooks

	// SentryDSN enables Sentry error tracking when set
	SentryDSN string

	// SentryOptions allows custom Sentry configuration
	SentryOptions *sentry.ClientOptions
}

// NewClient creates a new API client
func NewClient(opts *ClientOptions) (*Client, error) {
	if opts == nil {
		opts = &ClientOptions{}
	}

	initSentry(opts)

	// Set defaults
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}

	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{
			Timeout: DefaultTimeout,
		}
	}

	if opts.Timeout > 0 {
		// The caller's client may be shared; set the timeout on a copy
		hc := *opts.HTTPClient
		hc.Timeout = opts.Timeout
		opts.HTTPClient = &hc
	}

	if opts.ClientVersion == "" {
		opts.ClientVersion = DefaultClientVersion
	}

	retryConfig := opts.RetryConfig
	if retryConfig == nil {
		retryConfig = types.DefaultRetryConfig()
	}

	trans := transport.NewHTTPTransport(&transport.Options{
		BaseURL:    opts.BaseURL,
		HTTPClient: opts.HTTPClient,
		Headers:    opts.Headers,
		Logger:     opts.Logger,
		Hooks:      opts.Hooks,
	})

	c := &Client{
		baseURL:       trans.BaseURL(),
		clientVersion: opts.ClientVersion,
		httpClient:    opts.HTTPClient,
		transport:     trans,
		options:       opts,
		login:         auth.NewService(trans.BaseURL(), opts.HTTPClient, opts.Logger),
		policy:        retry.NewPolicy(retryConfig),
		notifier:      newNotifier(),
		logger:        opts.Logger,
		now:           time.Now,
		retryEnabled:  retryConfig.Enabled,
	}

	refresher := opts.Refresher
	if refresher == nil {
		refresher = c.login
	}

	c.session = auth.NewSessionStore(opts.TokenStorage, opts.Logger)
	c.tokens = auth.NewTokenManager(c.session, auth.TokenManagerOptions{
		Refresher: refresher,
		Logger:    opts.Logger,
		Timeout:   opts.HTTPClient.Timeout,
		OnExpired: c.notifier.emit,
	})
	c.stages = c.defaultStages()

	ctx := context.Background()

	// Restore persisted tokens
	if err := c.session.Load(ctx); err != nil {
		c.logWarn("Failed to load session", "error", err)
	}
	if opts.Session != nil {
		c.session.Set(ctx, *opts.Session)
	}

	if closer, ok := opts.TokenStorage.(io.Closer); ok {
		c.closers = append(c.closers, closer)
	}

	return c, nil
}

// NewClientWithToken creates a client with an access token
func NewClientWithToken(accessToken string) (*Client, error) {
	return NewClient(&ClientOptions{
		Session: &Session{AccessToken: accessToken},
	})
}

func initSentry(opts *ClientOptions) {
	if opts.SentryDSN == "" && opts.SentryOptions == nil {
		return
	}

	sentryOpts := sentry.ClientOptions{}

	// Use provided options if available, otherwise create new ones
	if opts.SentryOptions != nil {
		sentryOpts = *opts.SentryOptions
	}

	// Override DSN if provided separately
	if opts.SentryDSN != "" {
		sentryOpts.Dsn = opts.SentryDSN
	}

	if sentryOpts.Environment == "" {
		sentryOpts.Environment = "production"
	}

	// Log error but don't fail client creation
	if err := sentry.Init(sentryOpts); err != nil && opts.Logger != nil {
		opts.Logger.Error("Failed to initialize Sentry", "error", err)
	}
}

// Do sends req through the pipeline and returns the 2xx response or a
// *Error. req is owned by the call until it returns.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = c.now()
	}

	start := time.Now()
	resp, err := c.execute(ctx, req)
	duration := time.Since(start)

	if err != nil {
		c.captureError(ctx, req, err, duration)

		// Error hook
		if c.options.Hooks != nil && c.options.Hooks.OnError != nil {
			c.options.Hooks.OnError(ctx, err)
		}
	}

	return resp, err
}

// Get issues a GET request to path
func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.send(ctx, http.MethodGet, path, nil)
}

// Post issues a POST request with body encoded as JSON
func (c *Client) Post(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.send(ctx, http.MethodPost, path, body)
}

// Put issues a PUT request with body encoded as JSON
func (c *Client) Put(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.send(ctx, http.MethodPut, path, body)
}

// Patch issues a PATCH request with body encoded as JSON
func (c *Client) Patch(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.send(ctx, http.MethodPatch, path, body)
}

// Delete issues a DELETE request to path
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.send(ctx, http.MethodDelete, path, nil)
}

func (c *Client) send(ctx context.Context, method, path string, body interface{}) (*Response, error) {
	req := &Request{Method: method, URL: path}

	switch b := body.(type) {
	case nil:
	case []byte:
		req.Body = b
	case json.RawMessage:
		req.Body = b
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal request")
		}
		req.Body = data
	}

	return c.Do(ctx, req)
}

// OnSessionExpired registers fn to be called once each time the client loses
// its credentials. The returned function unsubscribes.
func (c *Client) OnSessionExpired(fn func(SessionExpiredEvent)) func() {
	return c.notifier.subscribe(fn)
}

// Login authenticates with email and password and stores the session
func (c *Client) Login(ctx context.Context, email, password string) error {
	session, err := c.login.Login(ctx, email, password)
	if err != nil {
		return err
	}
	c.session.Set(ctx, session)
	return nil
}

// Logout clears the session and persisted tokens. It does not emit a
// session-expired event.
func (c *Client) Logout(ctx context.Context) {
	c.session.Clear(ctx)
}

// SetSession replaces the session
func (c *Client) SetSession(ctx context.Context, session Session) {
	c.session.Set(ctx, session)
}

// Session returns the current session
func (c *Client) Session() Session {
	return c.session.Read()
}

// IsAuthenticated reports whether an access token is held
func (c *Client) IsAuthenticated() bool {
	return c.session.Read().IsAuthenticated()
}

// AccessToken returns the current access token or ErrAuthRequired
func (c *Client) AccessToken() (string, error) {
	return c.tokens.AccessToken()
}

// BaseURL returns the API base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Close flushes any pending Sentry events and releases storage
func (c *Client) Close() error {
	var firstErr error
	for _, closer := range c.closers {
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	// Flush Sentry events with a 2 second timeout
	sentry.Flush(2 * time.Second)
	return firstErr
}

// captureError reports terminal failures to Sentry. Cancellations are the
// caller's choice and are not reported.
func (c *Client) captureError(ctx context.Context, req *Request, err error, duration time.Duration) {
	kind := KindOf(err)
	if kind == types.KindCancelled {
		return
	}

	configure := func(scope *sentry.Scope) {
		scope.SetTag("http.method", req.Method)
		scope.SetTag("api.error_kind", string(kind))
		scope.SetTag("request_id", req.ID)
		scope.SetContext("request", map[string]interface{}{
			"url":         req.URL,
			"retry_count": req.RetryCount,
			"duration":    duration.String(),
		})
	}

	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.WithScope(func(scope *sentry.Scope) {
			configure(scope)
			hub.CaptureException(err)
		})
	} else {
		sentry.WithScope(func(scope *sentry.Scope) {
			configure(scope)
			sentry.CaptureException(err)
		})
	}

	c.logError("Request failed", "id", req.ID, "method", req.Method, "url", req.URL, "kind", string(kind), "error", err)
}

func (c *Client) logDebug(msg string, keysAndValues ...interface{}) {
	if c.logger != nil {
		c.logger.Debug(msg, keysAndValues...)
	}
}

func (c *Client) logWarn(msg string, keysAndValues ...interface{}) {
	if c.logger != nil {
		c.logger.Warn(msg, keysAndValues...)
	}
}

func (c *Client) logError(msg string, keysAndValues ...interface{}) {
	if c.logger != nil {
		c.logger.Error(msg, keysAndValues...)
	}
}

// String describes the client for logs
func (c *Client) String() string {
	return fmt.Sprintf("apiclient(%s)", c.baseURL)
}
