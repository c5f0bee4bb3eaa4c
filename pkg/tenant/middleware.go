package tenant

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/stockline/stockline/pkg/logger"
)

// State is a step of the per-request tenant gate.
type State string

const (
	StateStart     State = "start"
	StateResolving State = "resolving"
	StateBound     State = "bound"
	StateRejected  State = "rejected"
)

// SignalResolver turns a resolution signal into an active tenant.
// *Registry implements it.
type SignalResolver interface {
	Resolve(ctx context.Context, sig Signal) (*Tenant, error)
}

// Middleware is the request-entry gate. It resolves the tenant with the
// configured strategy and binds it to the request context. Requests that
// cannot be resolved are rejected before any downstream handler runs.
//
// START -> RESOLVING -> BOUND: tenant bound, next handler runs.
// START -> RESOLVING -> REJECTED: error handler runs, next handler never does.
func Middleware(resolver Resolver, tenants SignalResolver, opts ...Option) func(http.Handler) http.Handler {
	if resolver == nil || tenants == nil {
		panic("tenant: resolver and tenant source are required")
	}

	cfg := &config{
		errorHandler: defaultErrorHandler,
		logger:       slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipped(r.URL.Path, cfg.skipPaths) {
				next.ServeHTTP(w, r)
				return
			}

			state := StateStart
			transition := func(to State) {
				state = to
				if cfg.observer != nil {
					cfg.observer(r, state)
				}
			}
			transition(StateStart)

			reject := func(err error) {
				transition(StateRejected)
				cfg.logger.DebugContext(r.Context(), "tenant gate rejected request",
					slog.String("path", r.URL.Path), logger.Error(err))
				cfg.errorHandler(w, r, err)
			}

			transition(StateResolving)
			sig, ok := resolver.Signal(r)
			if !ok {
				reject(ErrTenantNotResolved)
				return
			}

			t, err := tenants.Resolve(r.Context(), sig)
			if err != nil {
				reject(err)
				return
			}

			ctx, err := WithTenant(r.Context(), t)
			if err != nil {
				reject(err)
				return
			}

			transition(StateBound)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireTenant rejects requests whose context carries no tenant. It guards
// routes mounted behind skip paths or composed outside Middleware.
func RequireTenant(errorHandler ErrorHandler) func(http.Handler) http.Handler {
	if errorHandler == nil {
		errorHandler = defaultErrorHandler
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !Has(r.Context()) {
				errorHandler(w, r, ErrTenantNotResolved)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// skipped reports whether path equals a skip path or lies below it. A skip
// path only matches whole segments: /health covers /health/live but not
// /healthcheck.
func skipped(path string, skipPaths []string) bool {
	for _, skip := range skipPaths {
		prefix := strings.TrimSuffix(skip, "/")
		if prefix == "" {
			return true
		}
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}
