package clientip

import (
	"context"
	"log/slog"
	"net/http"
)

type contextKey struct{}

// WithContext stores the client address in ctx.
func WithContext(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, contextKey{}, ip)
}

// FromContext returns the client address bound to ctx, or "".
func FromContext(ctx context.Context) string {
	ip, _ := ctx.Value(contextKey{}).(string)
	return ip
}

// LoggerExtractor adds the client address to log records.
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		ip := FromContext(ctx)
		return slog.String("client_ip", ip), ip != ""
	}
}

// AuditExtractor reports the client address for audit records.
func AuditExtractor() func(ctx context.Context) (string, bool) {
	return func(ctx context.Context) (string, bool) {
		ip := FromContext(ctx)
		return ip, ip != ""
	}
}

// Middleware binds the address resolved by res to the request context.
func (res *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithContext(r.Context(), res.IP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Middleware is Resolver.Middleware with the default header list.
func Middleware(next http.Handler) http.Handler {
	return defaultResolver.Middleware(next)
}
