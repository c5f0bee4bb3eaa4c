package requestid

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

// WithContext stores the request id in ctx.
func WithContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the request id bound to ctx, or "".
func FromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// LoggerExtractor tags log records with the request id.
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		id := FromContext(ctx)
		return slog.String("request_id", id), id != ""
	}
}

// AuditExtractor copies the request id onto audit records.
func AuditExtractor() func(ctx context.Context) (string, bool) {
	return func(ctx context.Context) (string, bool) {
		id := FromContext(ctx)
		return id, id != ""
	}
}
