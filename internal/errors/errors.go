package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error taxonomy for the delegated auth gateway
var (
	// Configuration errors
	ErrConfiguration = errors.New("configuration error")

	// Authorization flow errors
	ErrStateMismatch       = errors.New("state mismatch")
	ErrAuthorizationDenied = errors.New("authorization denied")
	ErrNoPendingRequest    = errors.New("no pending authorization request")

	// Token errors
	ErrTokenExchangeFailed = errors.New("token exchange failed")
	ErrSpaTokenExpired     = errors.New("spa token expired")
	ErrNotConnected        = errors.New("not connected")
	ErrInvalidToken        = errors.New("invalid token")

	// Upstream errors
	ErrUpstreamAPI     = errors.New("upstream api error")
	ErrUpstreamTimeout = errors.New("upstream timeout")

	// Request errors
	ErrBadRequest       = errors.New("bad request")
	ErrMethodNotAllowed = errors.New("method not allowed")

	// Store errors
	ErrStore = errors.New("token store error")

	// Lifecycle errors
	ErrIllegalTransition = errors.New("illegal connection state transition")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New is errors.New, re-exported so callers need only one errors import
func New(text string) error {
	return errors.New(text)
}

// HTTPStatus maps an error to the status code a handler responds with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrBadRequest), errors.Is(err, ErrStateMismatch),
		errors.Is(err, ErrAuthorizationDenied), errors.Is(err, ErrNoPendingRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotConnected), errors.Is(err, ErrSpaTokenExpired), errors.Is(err, ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed
	case errors.Is(err, ErrUpstreamTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrTokenExchangeFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// UserMessage returns the remediation text shown to the user for the errors that
// require them to act.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrNotConnected):
		return "Not connected. Click Connect to sign in."
	case errors.Is(err, ErrSpaTokenExpired):
		return "Your session token has expired and cannot be refreshed by the server. Please reconnect."
	default:
		return ""
	}
}
