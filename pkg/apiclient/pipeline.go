package apiclient

import (
	"context"
	"fmt"

	"github.com/eshaffer321/apiclient-go/internal/transport"
	"github.com/eshaffer321/apiclient-go/internal/types"
)

// execute drives one request to a terminal outcome. A 401 triggers one
// shared refresh and a single re-issue; a second 401 expires the session.
// Transient failures are re-issued with exponential backoff while the retry
// path is enabled.
func (c *Client) execute(ctx context.Context, req *Request) (*Response, error) {
	refreshed := false

	for {
		if err := c.waitRateLimit(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, types.Cancelled(req.ID, ctx.Err())
			}
			return nil, err
		}

		resp, err := c.attempt(ctx, req)
		if err == nil && isSuccess(resp.StatusCode) {
			return resp, nil
		}

		class := transport.Classify(ctx, req, resp, err)

		switch {
		case class.Kind == types.KindCancelled:
			return nil, class

		case class.Kind == types.KindUnauthorized && refreshed:
			c.tokens.Expire(ctx, class)
			return nil, types.SessionExpired(req.ID, class)

		case class.Kind == types.KindUnauthorized:
			refreshed = true
			if _, rerr := c.tokens.Refresh(ctx, bearerToken(req)); rerr != nil {
				if ctx.Err() != nil {
					return nil, types.Cancelled(req.ID, ctx.Err())
				}
				return nil, types.SessionExpired(req.ID, rerr)
			}
			c.logDebug("Retrying with refreshed token", "id", req.ID)

		case c.retryEnabled && c.policy.ShouldRetry(class, req.RetryCount):
			req.RetryCount++
			delay := c.policy.Delay(req.RetryCount)

			if c.options.Hooks != nil && c.options.Hooks.OnRetry != nil {
				c.options.Hooks.OnRetry(ctx, req, delay)
			}
			c.logDebug("Retrying request", "id", req.ID, "attempt", req.RetryCount, "delay", delay, "kind", string(class.Kind))

			if werr := c.policy.Wait(ctx, req.RetryCount); werr != nil {
				return nil, types.Cancelled(req.ID, werr)
			}

		default:
			return nil, class
		}
	}
}

func (c *Client) waitRateLimit(ctx context.Context) error {
	if c.options.RateLimiter == nil {
		return nil
	}
	if err := c.options.RateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

// attempt prepares and sends the request once
func (c *Client) attempt(ctx context.Context, req *Request) (*Response, error) {
	prepare(ctx, c.stages, req)

	if c.options.Hooks != nil && c.options.Hooks.OnRequest != nil {
		c.options.Hooks.OnRequest(ctx, req)
	}

	return c.transport.Do(ctx, req)
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
