package types

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind is the stable category of a terminal failure
type ErrorKind string

const (
	KindNetwork            ErrorKind = "NETWORK_ERROR"
	KindBadRequest         ErrorKind = "BAD_REQUEST"
	KindUnauthorized       ErrorKind = "UNAUTHORIZED"
	KindForbidden          ErrorKind = "FORBIDDEN"
	KindNotFound           ErrorKind = "NOT_FOUND"
	KindConflict           ErrorKind = "CONFLICT"
	KindValidationFailed   ErrorKind = "VALIDATION_FAILED"
	KindRateLimited        ErrorKind = "RATE_LIMITED"
	KindServerError        ErrorKind = "SERVER_ERROR"
	KindBadGateway         ErrorKind = "BAD_GATEWAY"
	KindServiceUnavailable ErrorKind = "SERVICE_UNAVAILABLE"
	KindGatewayTimeout     ErrorKind = "GATEWAY_TIMEOUT"
	KindSessionExpired     ErrorKind = "SESSION_EXPIRED"
	KindCancelled          ErrorKind = "CANCELLED"
	KindUnknown            ErrorKind = "UNKNOWN"
)

// IsServer reports whether the kind is one of the 5xx kinds
func (k ErrorKind) IsServer() bool {
	switch k {
	case KindServerError, KindBadGateway, KindServiceUnavailable, KindGatewayTimeout:
		return true
	}
	return false
}

// Sentinels matched by (*Error).Is
var (
	ErrNetwork          = errors.New("network error")
	ErrBadRequest       = errors.New("bad request")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrNotFound         = errors.New("resource not found")
	ErrConflict         = errors.New("conflict")
	ErrValidationFailed = errors.New("validation failed")
	ErrRateLimited      = errors.New("rate limited")
	ErrServerError      = errors.New("server error")
	ErrSessionExpired   = errors.New("session expired")
	ErrCancelled        = errors.New("request cancelled")
	ErrUnknown          = errors.New("unknown error")
)

var kindSentinels = map[ErrorKind]error{
	KindNetwork:            ErrNetwork,
	KindBadRequest:         ErrBadRequest,
	KindUnauthorized:       ErrUnauthorized,
	KindForbidden:          ErrForbidden,
	KindNotFound:           ErrNotFound,
	KindConflict:           ErrConflict,
	KindValidationFailed:   ErrValidationFailed,
	KindRateLimited:        ErrRateLimited,
	KindServerError:        ErrServerError,
	KindBadGateway:         ErrServerError,
	KindServiceUnavailable: ErrServerError,
	KindGatewayTimeout:     ErrServerError,
	KindSessionExpired:     ErrSessionExpired,
	KindCancelled:          ErrCancelled,
	KindUnknown:            ErrUnknown,
}

// Error is the classification of a failed request. StatusCode is zero when
// no response was received.
type Error struct {
	Kind        ErrorKind           `json:"kind"`
	Retryable   bool                `json:"retryable"`
	Message     string              `json:"message"`
	StatusCode  int                 `json:"statusCode,omitempty"`
	FieldErrors map[string][]string `json:"fieldErrors,omitempty"`
	RetryAfter  time.Duration       `json:"retryAfter,omitempty"`
	RequestID   string              `json:"requestId,omitempty"`
	Body        []byte              `json:"-"`
	Err         error               `json:"-"`

	// detail is appended to Error() but kept out of the user-facing Message
	detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.detail != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.detail)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinel or another *Error of the same kind
func (e *Error) Is(target error) bool {
	if sentinel, ok := kindSentinels[e.Kind]; ok && sentinel == target {
		return true
	}
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithDetail returns the error with a diagnostic suffix for Error()
func (e *Error) WithDetail(detail string) *Error {
	e.detail = detail
	return e
}

// NewError creates a classification with the given kind and message
func NewError(kind ErrorKind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
	}
}

// SessionExpired builds the terminal error returned when credentials cannot be recovered
func SessionExpired(requestID string, cause error) *Error {
	return &Error{
		Kind:      KindSessionExpired,
		Message:   "Session expired. Please login again.",
		RequestID: requestID,
		Err:       cause,
	}
}

// Cancelled builds the terminal error returned when the caller cancels
func Cancelled(requestID string, cause error) *Error {
	return &Error{
		Kind:      KindCancelled,
		Message:   "Request cancelled",
		RequestID: requestID,
		Err:       cause,
	}
}

// AsError extracts a classification from err
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
