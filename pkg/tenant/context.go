package tenant

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// contextKey is a private type to prevent collisions with other context keys.
type contextKey struct{}

// WithTenant binds a tenant to the context. A binding is immutable for the
// lifetime of the request: binding a second tenant onto a context that
// already carries one returns ErrTenantAlreadyBound.
func WithTenant(ctx context.Context, t *Tenant) (context.Context, error) {
	if t == nil {
		return ctx, ErrNoTenantInContext
	}
	if Has(ctx) {
		return ctx, ErrTenantAlreadyBound
	}
	return context.WithValue(ctx, contextKey{}, t.Clone()), nil
}

// FromContext retrieves the tenant from the context.
// Returns nil, false if no tenant is bound.
func FromContext(ctx context.Context) (*Tenant, bool) {
	if ctx == nil {
		return nil, false
	}
	t, ok := ctx.Value(contextKey{}).(*Tenant)
	if !ok || t == nil {
		return nil, false
	}
	return t, true
}

// IDFromContext retrieves just the tenant ID from the context.
func IDFromContext(ctx context.Context) (uuid.UUID, bool) {
	t, ok := FromContext(ctx)
	if !ok {
		return uuid.Nil, false
	}
	return t.ID, true
}

// Has reports whether a tenant is bound to the context.
func Has(ctx context.Context) bool {
	_, ok := FromContext(ctx)
	return ok
}

// MustFromContext retrieves the tenant from the context and panics if none is
// bound. Reaching business code without a tenant is a programming error.
func MustFromContext(ctx context.Context) *Tenant {
	t, ok := FromContext(ctx)
	if !ok {
		panic("tenant: no tenant in context")
	}
	return t
}

// MustID is MustFromContext(ctx).ID.
func MustID(ctx context.Context) uuid.UUID {
	return MustFromContext(ctx).ID
}

// LoggerExtractor returns a logger context extractor adding tenant_id.
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		if t, ok := FromContext(ctx); ok {
			return slog.Group("tenant", slog.String("id", t.ID.String()), slog.String("code", t.Code)), true
		}
		return slog.Attr{}, false
	}
}

// AuditExtractor returns an audit context extractor yielding the tenant id.
func AuditExtractor() func(ctx context.Context) (string, bool) {
	return func(ctx context.Context) (string, bool) {
		if id, ok := IDFromContext(ctx); ok {
			return id.String(), true
		}
		return "", false
	}
}
