package tenant

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/stockline/stockline/core"
)

// ErrorHandler handles errors that occur during tenant resolution.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// StateObserver is notified of every middleware state transition.
type StateObserver func(r *http.Request, state State)

// config holds middleware configuration.
type config struct {
	errorHandler ErrorHandler
	skipPaths    []string
	logger       *slog.Logger
	observer     StateObserver
}

// Option configures the middleware.
type Option func(*config)

// WithErrorHandler sets a custom error handler.
func WithErrorHandler(handler ErrorHandler) Option {
	return func(c *config) {
		if handler != nil {
			c.errorHandler = handler
		}
	}
}

// WithSkipPaths sets paths that bypass the tenant gate (health checks,
// metrics). Each entry matches itself and everything below it.
func WithSkipPaths(paths []string) Option {
	return func(c *config) {
		c.skipPaths = paths
	}
}

// WithLogger sets a custom logger for the middleware.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithStateObserver registers a callback for middleware state transitions.
func WithStateObserver(fn StateObserver) Option {
	return func(c *config) {
		c.observer = fn
	}
}

var (
	errNotResolvedHTTP = core.NewHTTPError(http.StatusBadRequest, "tenant_not_resolved")
	errNotFoundHTTP    = core.NewHTTPError(http.StatusInternalServerError, "tenant_not_found")
)

// HTTPError maps tenant errors onto HTTP errors: unresolvable requests are a
// client error, a tenant vanishing after binding is a server-side consistency gap.
func HTTPError(err error) error {
	switch {
	case errors.Is(err, ErrTenantNotResolved):
		return errNotResolvedHTTP.WithCause(err)
	case errors.Is(err, ErrTenantNotFound):
		return errNotFoundHTTP.WithCause(err)
	case errors.Is(err, ErrInvalidTenant):
		return core.ErrUnprocessableEntity.WithCause(err)
	case errors.Is(err, ErrDuplicateCode), errors.Is(err, ErrDuplicateDomain):
		return core.ErrConflict.WithCause(err)
	case errors.Is(err, ErrInvalidStatusTransition):
		return core.ErrBadRequest.WithCause(err)
	}
	return err
}

func defaultErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	core.Render(w, r, core.JSONError(HTTPError(err)))
}
