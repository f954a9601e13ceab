// Package graceful runs an http.Server whose lifetime is bound to a context,
// used for the metrics and health sidecar.
package graceful

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// Server binds an http.Server to a context: when the context ends, the
// server drains in-flight requests within the shutdown timeout.
type Server struct {
	srv             *http.Server
	log             *slog.Logger
	shutdownTimeout time.Duration
}

// NewServer wraps srv. A nil srv produces a Server whose ListenAndServe is a
// no-op, which keeps call sites free of conditionals.
func NewServer(log *slog.Logger, srv *http.Server, shutdownTimeout time.Duration) *Server {
	if log == nil {
		log = slog.Default()
	}

	return &Server{
		srv:             srv,
		log:             log,
		shutdownTimeout: shutdownTimeout,
	}
}

// ListenAndServe serves until ctx ends or the listener fails, then drains.
// The returned error is the listener failure if there was one, otherwise
// whatever Shutdown reported.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}

	listenErr := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", slog.String("addr", s.srv.Addr))
		listenErr <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-listenErr:
		// Listener died on its own; nothing left to drain.
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down http server", slog.Duration("timeout", s.shutdownTimeout))

	drainCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(drainCtx); err != nil {
		s.log.Error("http server drain failed", slog.Any("error", err))
		return err
	}

	if err := <-listenErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
