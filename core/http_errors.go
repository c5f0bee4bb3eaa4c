package core

import (
	"errors"
	"net/http"
)

// HTTPError represents an HTTP error with status code and a stable error key.
// The Key field is what clients match on; the status text is informational.
type HTTPError struct {
	Code int    // HTTP status code
	Key  string // Stable key (e.g., "not_found", "tenant_not_resolved")
}

// Error implements the error interface.
func (e HTTPError) Error() string {
	return e.Key
}

// 4xx Client Errors
var (
	ErrBadRequest          = HTTPError{Code: http.StatusBadRequest, Key: "bad_request"}
	ErrUnauthorized        = HTTPError{Code: http.StatusUnauthorized, Key: "unauthorized"}
	ErrForbidden           = HTTPError{Code: http.StatusForbidden, Key: "forbidden"}
	ErrNotFound            = HTTPError{Code: http.StatusNotFound, Key: "not_found"}
	ErrMethodNotAllowed    = HTTPError{Code: http.StatusMethodNotAllowed, Key: "method_not_allowed"}
	ErrConflict            = HTTPError{Code: http.StatusConflict, Key: "conflict"}
	ErrUnprocessableEntity = HTTPError{Code: http.StatusUnprocessableEntity, Key: "unprocessable_entity"}
	ErrTooManyRequests     = HTTPError{Code: http.StatusTooManyRequests, Key: "too_many_requests"}
)

// 5xx Server Errors
var (
	ErrInternalServerError = HTTPError{Code: http.StatusInternalServerError, Key: "internal_server_error"}
	ErrNotImplemented      = HTTPError{Code: http.StatusNotImplemented, Key: "not_implemented"}
	ErrServiceUnavailable  = HTTPError{Code: http.StatusServiceUnavailable, Key: "service_unavailable"}
	ErrGatewayTimeout      = HTTPError{Code: http.StatusGatewayTimeout, Key: "gateway_timeout"}
)

// NewHTTPError creates a custom HTTP error with the given status code and key.
//
// Example:
//
//	err := core.NewHTTPError(http.StatusBadRequest, "tenant_not_resolved")
func NewHTTPError(code int, key string) HTTPError {
	return HTTPError{Code: code, Key: key}
}

// WithCause attaches an underlying error so errors.Is keeps matching both.
func (e HTTPError) WithCause(cause error) error {
	if cause == nil {
		return e
	}
	return causedError{HTTPError: e, cause: cause}
}

type causedError struct {
	HTTPError
	cause error
}

func (e causedError) Error() string   { return e.Key + ": " + e.cause.Error() }
func (e causedError) Unwrap() []error { return []error{e.HTTPError, e.cause} }

// AsHTTPError extracts an HTTPError from err's chain.
func AsHTTPError(err error) (HTTPError, bool) {
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		return httpErr, true
	}
	return HTTPError{}, false
}
