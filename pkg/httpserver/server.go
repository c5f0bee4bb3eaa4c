package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/stockline/stockline/pkg/logger"
)

type hook struct {
	name string
	fn   func(ctx context.Context) error
}

// Server runs an http.Server until its context ends, then drains it and
// runs the registered shutdown hooks.
type Server struct {
	addr            string
	readTimeout     time.Duration
	writeTimeout    time.Duration
	idleTimeout     time.Duration
	shutdownTimeout time.Duration
	logger          *slog.Logger
	hooks           []hook

	mu      sync.Mutex
	running bool
}

// New returns a configured Server.
func New(opts ...Option) *Server {
	s := &Server{
		addr:            ":8080",
		shutdownTimeout: 15 * time.Second,
		logger:          slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run listens on the configured address and serves handler until ctx is
// cancelled. It returns after the shutdown hooks have finished.
func (s *Server) Run(ctx context.Context, handler http.Handler) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return errors.Join(ErrStart, err)
	}
	return s.Serve(ctx, ln, handler)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener, handler http.Handler) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		_ = ln.Close()
		return ErrAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()

	if handler == nil {
		handler = http.NotFoundHandler()
	}
	srv := &http.Server{
		Handler:      handler,
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
		IdleTimeout:  s.idleTimeout,
		BaseContext:  func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.InfoContext(ctx, "http server started", slog.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return errors.Join(ErrStart, err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()

	s.logger.InfoContext(shutdownCtx, "http server shutting down")
	var errs []error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, errors.Join(ErrShutdown, err))
	}
	<-errCh

	for _, h := range s.hooks {
		if err := h.fn(shutdownCtx); err != nil {
			s.logger.ErrorContext(shutdownCtx, "shutdown hook failed", slog.String("hook", h.name), logger.Error(err))
			errs = append(errs, errors.Join(ErrShutdownHook, err))
		}
	}
	s.logger.InfoContext(shutdownCtx, "http server stopped")
	return errors.Join(errs...)
}
