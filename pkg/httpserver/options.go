package httpserver

import (
	"context"
	"log/slog"
	"time"
)

// Option configures the HTTP server. Zero or negative durations keep the
// current value.
type Option func(*Server)

// WithAddr sets the address the server listens on.
func WithAddr(addr string) Option {
	return func(s *Server) {
		if addr != "" {
			s.addr = addr
		}
	}
}

func WithReadTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.readTimeout = d
		}
	}
}

func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

func WithIdleTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.idleTimeout = d
		}
	}
}

// WithShutdownTimeout bounds draining in-flight requests plus running the
// shutdown hooks.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithShutdownHook registers fn to run after the listener has drained, in
// registration order. A failing hook is logged and does not stop the others.
func WithShutdownHook(name string, fn func(ctx context.Context) error) Option {
	return func(s *Server) {
		if fn != nil {
			s.hooks = append(s.hooks, hook{name: name, fn: fn})
		}
	}
}
