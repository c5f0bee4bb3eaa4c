package useragent

import (
	"context"
	"log/slog"
	"net/http"
)

type ctxKey struct{}

// WithContext stores ua in ctx.
func WithContext(ctx context.Context, ua UserAgent) context.Context {
	return context.WithValue(ctx, ctxKey{}, ua)
}

// FromContext returns the user agent stored by Middleware.
func FromContext(ctx context.Context) (UserAgent, bool) {
	ua, ok := ctx.Value(ctxKey{}).(UserAgent)
	return ua, ok
}

// Middleware parses the User-Agent header once per request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua := Parse(r.UserAgent())
		next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), ua)))
	})
}

// LoggerExtractor adds the device class, and the bot name for bots.
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		ua, ok := FromContext(ctx)
		if !ok || ua.Raw == "" {
			return slog.Attr{}, false
		}
		if ua.IsBot() {
			return slog.Group("client", slog.String("device", ua.Device), slog.String("bot", ua.BotName)), true
		}
		return slog.Group("client", slog.String("device", ua.Device)), true
	}
}

// AuditExtractor yields the raw, truncated user agent.
func AuditExtractor() func(ctx context.Context) (string, bool) {
	return func(ctx context.Context) (string, bool) {
		ua, ok := FromContext(ctx)
		if !ok || ua.Raw == "" {
			return "", false
		}
		return ua.Raw, true
	}
}
