package apiclient

import (
	"errors"

	"github.com/eshaffer321/apiclient-go/internal/types"
)

// Error is the typed failure returned by Client.Do
type Error = types.Error

// ErrorKind is the stable category of a failure
type ErrorKind = types.ErrorKind

const (
	KindNetwork            = types.KindNetwork
	KindBadRequest         = types.KindBadRequest
	KindUnauthorized       = types.KindUnauthorized
	KindForbidden          = types.KindForbidden
	KindNotFound           = types.KindNotFound
	KindConflict           = types.KindConflict
	KindValidationFailed   = types.KindValidationFailed
	KindRateLimited        = types.KindRateLimited
	KindServerError        = types.KindServerError
	KindBadGateway         = types.KindBadGateway
	KindServiceUnavailable = types.KindServiceUnavailable
	KindGatewayTimeout     = types.KindGatewayTimeout
	KindSessionExpired     = types.KindSessionExpired
	KindCancelled          = types.KindCancelled
	KindUnknown            = types.KindUnknown
)

var (
	ErrNetwork          = types.ErrNetwork
	ErrBadRequest       = types.ErrBadRequest
	ErrUnauthorized     = types.ErrUnauthorized
	ErrForbidden        = types.ErrForbidden
	ErrNotFound         = types.ErrNotFound
	ErrConflict         = types.ErrConflict
	ErrValidationFailed = types.ErrValidationFailed
	ErrRateLimited      = types.ErrRateLimited
	ErrServerError      = types.ErrServerError
	ErrSessionExpired   = types.ErrSessionExpired
	ErrCancelled        = types.ErrCancelled
	ErrUnknown          = types.ErrUnknown

	// ErrAuthRequired is returned when no access token is held
	ErrAuthRequired = types.ErrAuthRequired

	// ErrRefreshFailed is returned when the refresh call fails
	ErrRefreshFailed = types.ErrRefreshFailed

	// ErrLoginFailed is returned when credentials are rejected
	ErrLoginFailed = types.ErrLoginFailed
)

// KindOf returns the kind of err, or KindUnknown when err is not typed
func KindOf(err error) ErrorKind {
	if e, ok := types.AsError(err); ok {
		return e.Kind
	}
	return types.KindUnknown
}

// IsAuthError reports whether err requires the user to authenticate again
func IsAuthError(err error) bool {
	return errors.Is(err, ErrSessionExpired) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrAuthRequired)
}

// IsRetryable reports whether err was classified as transient
func IsRetryable(err error) bool {
	e, ok := types.AsError(err)
	return ok && e.Retryable
}
