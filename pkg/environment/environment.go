package environment

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// Environment is the deployment stage the process runs in.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Parse normalizes common spellings ("prod", "dev", "stage") and falls back
// to Development for anything unrecognized.
func Parse(s string) Environment {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "production", "prod":
		return Production
	case "staging", "stage":
		return Staging
	}
	return Development
}

func (e Environment) String() string { return string(e) }

// IsProduction reports whether e is Production.
func (e Environment) IsProduction() bool { return e == Production }

type contextKey struct{}

// WithContext stores env in ctx.
func WithContext(ctx context.Context, env Environment) context.Context {
	return context.WithValue(ctx, contextKey{}, env)
}

// FromContext returns the environment bound to ctx, or "".
func FromContext(ctx context.Context) Environment {
	if ctx == nil {
		return ""
	}
	env, _ := ctx.Value(contextKey{}).(Environment)
	return env
}

// IsProduction reports whether ctx carries the production environment.
func IsProduction(ctx context.Context) bool {
	return FromContext(ctx).IsProduction()
}

// Middleware binds env to every request context.
func Middleware(env Environment) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r = r.WithContext(WithContext(r.Context(), env))
			next.ServeHTTP(w, r)
		})
	}
}

// LoggerExtractor tags log records with the bound environment under "env".
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		env := FromContext(ctx)
		return slog.String("env", string(env)), env != ""
	}
}
