package transport

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/eshaffer321/apiclient-go/internal/types"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
)

const contentType = "application/json"

// HTTPTransport performs single request attempts. Retries are decided by the
// caller's response pipeline, so the retryable client never retries itself.
type HTTPTransport struct {
	baseURL     string
	httpClient  *http.Client
	retryClient *retryablehttp.Client
	headers     map[string]string
	logger      types.Logger
	hooks       *types.Hooks
}

// Options for HTTP transport
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Headers    map[string]string
	Logger     types.Logger
	Hooks      *types.Hooks
}

// NewHTTPTransport creates a new HTTP transport
func NewHTTPTransport(opts *Options) *HTTPTransport {
	if opts == nil {
		opts = &Options{}
	}

	// Set defaults
	if opts.BaseURL == "" {
		opts.BaseURL = types.DefaultBaseURL
	}

	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{
			Timeout: types.DefaultTimeout,
		}
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = opts.HTTPClient
	retryClient.RetryMax = 0
	retryClient.CheckRetry = checkNoRetry
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.Logger = nil
	if opts.Logger != nil {
		retryClient.Logger = &retryLogger{logger: opts.Logger}
	}

	// Set default headers
	headers := map[string]string{
		"Accept":     contentType,
		"User-Agent": types.UserAgent,
	}

	// Merge custom headers
	for k, v := range opts.Headers {
		headers[k] = v
	}

	return &HTTPTransport{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		httpClient:  opts.HTTPClient,
		retryClient: retryClient,
		headers:     headers,
		logger:      opts.Logger,
		hooks:       opts.Hooks,
	}
}

// BaseURL returns the origin requests are resolved against
func (t *HTTPTransport) BaseURL() string {
	return t.baseURL
}

// HTTPClient returns the underlying HTTP client
func (t *HTTPTransport) HTTPClient() *http.Client {
	return t.httpClient
}

// ResolveURL joins a relative path onto the base URL. Absolute URLs are returned unchanged.
func (t *HTTPTransport) ResolveURL(target string) string {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return target
	}
	if target == "" {
		return t.baseURL
	}
	if !strings.HasPrefix(target, "/") {
		target = "/" + target
	}
	return t.baseURL + target
}

// Do executes one attempt of req. A non-2xx status is not an error here; an
// error means no response was received.
func (t *HTTPTransport) Do(ctx context.Context, req *types.Request) (*types.Response, error) {
	var body interface{}
	if len(req.Body) > 0 {
		body = req.Body
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, req.Method, t.ResolveURL(req.URL), body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	// Set headers
	for k, v := range t.headers {
		httpReq.Header.Set(k, v)
	}
	if len(req.Body) > 0 {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	// Log request
	if t.logger != nil {
		t.logger.Debug("HTTP request", "id", req.ID, "method", req.Method, "url", req.URL, "retry", req.RetryCount)
	}

	// Execute request
	start := time.Now()
	resp, err := t.retryClient.Do(httpReq)
	duration := time.Since(start)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	// Read response
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response")
	}

	// Log response
	if t.logger != nil {
		t.logger.Debug("HTTP response", "id", req.ID, "status", resp.StatusCode, "duration", duration, "size", len(respBody))
	}

	out := &types.Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       respBody,
		Duration:   duration,
	}

	if t.hooks != nil && t.hooks.OnResponse != nil {
		t.hooks.OnResponse(ctx, req, out)
	}

	return out, nil
}

// checkNoRetry leaves every retry decision to the response pipeline
func checkNoRetry(_ context.Context, _ *http.Response, _ error) (bool, error) {
	return false, nil
}

// retryLogger adapts our logger to retryablehttp
type retryLogger struct {
	logger types.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, keysAndValues...)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg, keysAndValues...)
}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn(msg, keysAndValues...)
}
