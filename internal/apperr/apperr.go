// Package apperr defines the proxy's small, closed error taxonomy and its
// mapping onto HTTP status codes.
package apperr

import (
	"fmt"
	"net/http"
)

// Kind is one of the four error categories the proxy distinguishes.
type Kind string

const (
	// BadRequest covers missing/invalid JSON bodies, malformed system
	// fields, and unknown endpoint contracts.
	BadRequest Kind = "bad_request"
	// UpstreamUnavailable covers connect failure, DNS failure, connection
	// reset, and timeout talking to the upstream.
	UpstreamUnavailable Kind = "upstream_unavailable"
	// UpstreamError covers a non-2xx reply received from the upstream.
	UpstreamError Kind = "upstream_error"
	// Unexpected covers anything else.
	Unexpected Kind = "unexpected"
)

// AppError is the structured error type returned by every proxy component.
type AppError struct {
	Kind       Kind
	Message    string
	StatusCode int // only meaningful for Kind == UpstreamError
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the HTTP status code this error maps to.
func (e *AppError) HTTPStatus() int {
	switch e.Kind {
	case BadRequest:
		return http.StatusBadRequest
	case UpstreamUnavailable:
		return http.StatusServiceUnavailable
	case UpstreamError:
		if e.StatusCode > 0 {
			return e.StatusCode
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Body returns the JSON-serializable error body for this error.
func (e *AppError) Body() map[string]string {
	return map[string]string{"error": e.Message}
}

// NewBadRequest builds a bad-request error.
func NewBadRequest(message string, cause error) *AppError {
	return &AppError{Kind: BadRequest, Message: message, Cause: cause}
}

// NewUpstreamUnavailable builds an upstream-unavailable error.
func NewUpstreamUnavailable(cause error) *AppError {
	return &AppError{Kind: UpstreamUnavailable, Message: "upstream unavailable", Cause: cause}
}

// NewUpstreamError builds an upstream-error with the upstream's own status
// and body text folded into the message, per the pass-through contract.
func NewUpstreamError(status int, body string) *AppError {
	return &AppError{
		Kind:       UpstreamError,
		Message:    fmt.Sprintf("Upstream API error: %d %s", status, body),
		StatusCode: status,
	}
}

// NewUnexpected builds a catch-all internal error.
func NewUnexpected(cause error) *AppError {
	return &AppError{Kind: Unexpected, Message: "internal server error", Cause: cause}
}

// As extracts an *AppError from err, wrapping it as Unexpected if it isn't
// already one.
func As(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return NewUnexpected(err)
}
