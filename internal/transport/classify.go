package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/eshaffer321/apiclient-go/internal/types"
)

// errorBody is the error payload shape returned by the API
type errorBody struct {
	Message string              `json:"message"`
	Error   string              `json:"error"`
	Errors  map[string][]string `json:"errors"`
}

// Classify maps the outcome of one attempt to a typed failure. resp is nil
// when no response was received. Classify never fails: unrecognized
// statuses resolve to KindUnknown.
func Classify(ctx context.Context, req *types.Request, resp *types.Response, err error) *types.Error {
	requestID := ""
	if req != nil {
		requestID = req.ID
	}

	// Caller cancellation wins over whatever the transport reported
	if ctx != nil && ctx.Err() != nil {
		return types.Cancelled(requestID, ctx.Err())
	}
	if errors.Is(err, context.Canceled) {
		return types.Cancelled(requestID, err)
	}

	if err != nil || resp == nil {
		return &types.Error{
			Kind:      types.KindNetwork,
			Retryable: true,
			Message:   "Network error. Please check your connection.",
			RequestID: requestID,
			Err:       err,
		}
	}

	c := ClassifyStatus(resp.StatusCode, resp.Body)
	c.RequestID = requestID
	if c.Kind == types.KindRateLimited {
		c.RetryAfter = parseRetryAfter(resp.Headers.Get("Retry-After"), time.Now())
	}
	return c
}

// ClassifyStatus maps a non-2xx status code and its body to a classification
func ClassifyStatus(statusCode int, body []byte) *types.Error {
	// Try to parse error response
	var errResp errorBody
	_ = json.Unmarshal(body, &errResp)

	serverMsg := errResp.Message
	if serverMsg == "" {
		serverMsg = errResp.Error
	}

	c := &types.Error{
		StatusCode: statusCode,
		Body:       body,
	}

	// Map status codes to kinds
	switch statusCode {
	case http.StatusBadRequest:
		c.Kind = types.KindBadRequest
		c.Message = orDefault(serverMsg, "Invalid request")
	case http.StatusUnauthorized:
		c.Kind = types.KindUnauthorized
		c.Message = orDefault(serverMsg, "Unauthorized")
	case http.StatusForbidden:
		c.Kind = types.KindForbidden
		c.Message = "You do not have permission to perform this action"
	case http.StatusNotFound:
		c.Kind = types.KindNotFound
		c.Message = orDefault(serverMsg, "Resource not found")
	case http.StatusConflict:
		c.Kind = types.KindConflict
		c.Message = orDefault(serverMsg, "Conflict occurred")
	case http.StatusUnprocessableEntity:
		c.Kind = types.KindValidationFailed
		c.Message = orDefault(serverMsg, "Validation failed")
		c.FieldErrors = errResp.Errors
	case http.StatusTooManyRequests:
		c.Kind = types.KindRateLimited
		c.Message = "Too many requests. Please try again later."
	case http.StatusInternalServerError:
		c.Kind = types.KindServerError
		c.Message = "Server error. Please try again later."
	case http.StatusBadGateway:
		c.Kind = types.KindBadGateway
		c.Message = "Service temporarily unavailable"
	case http.StatusServiceUnavailable:
		c.Kind = types.KindServiceUnavailable
		c.Message = "Service is under maintenance. Please try again later."
	case http.StatusGatewayTimeout:
		c.Kind = types.KindGatewayTimeout
		c.Message = "Request timeout. Please try again."
	default:
		if statusCode >= 500 && statusCode <= 599 {
			c.Kind = types.KindServerError
			c.Message = "Server error occurred. Please try again later."
		} else {
			c.Kind = types.KindUnknown
			c.Message = orDefault(serverMsg, "Request failed")
		}
	}

	if c.Kind.IsServer() {
		c.Retryable = true

		// Create base detail with status code and description
		detail := strconv.Itoa(statusCode)
		if desc := httpStatusDescription(statusCode); desc != "" {
			detail = fmt.Sprintf("%d %s", statusCode, desc)
		}

		// Append parsed error message if available
		if serverMsg != "" {
			detail = fmt.Sprintf("%s: %s", detail, serverMsg)
		}
		c.WithDetail(detail)
	}

	return c
}

// httpStatusDescription returns a human-readable description for common HTTP status codes.
// This helps users understand errors like 525 (SSL Handshake Failed) which are Cloudflare-specific.
func httpStatusDescription(statusCode int) string {
	descriptions := map[int]string{
		500: "Internal Server Error",
		501: "Not Implemented",
		502: "Bad Gateway",
		503: "Service Unavailable",
		504: "Gateway Timeout",
		520: "Web Server Error",
		521: "Web Server Is Down",
		522: "Connection Timed Out",
		523: "Origin Is Unreachable",
		524: "A Timeout Occurred",
		525: "SSL Handshake Failed",
		526: "Invalid SSL Certificate",
		527: "Railgun Error",
		530: "Origin DNS Error",
	}
	return descriptions[statusCode]
}

// parseRetryAfter reads a Retry-After header given in seconds or as an HTTP date
func parseRetryAfter(value string, now time.Time) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func orDefault(msg, fallback string) string {
	if msg != "" {
		return msg
	}
	return fallback
}
