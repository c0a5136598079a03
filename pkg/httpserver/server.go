// Package httpserver provides the shared HTTP listener: the platform
// surface (probes, metrics) plus the registration point for the legacy
// catch-all.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/switchyard-io/switchyard/internal/logger"
	"github.com/switchyard-io/switchyard/pkg/config"
)

// Server is the shared HTTP server.
//
// The server is created stopped; Serve blocks until the context is
// cancelled or the listener fails. The catch-all must be registered on the
// Router before Serve is called.
type Server struct {
	server       *http.Server
	router       *Router
	cfg          config.ServerConfig
	mu           sync.Mutex
	listener     net.Listener
	shutdownOnce sync.Once
}

// NewServer creates the shared server around an already-built router.
//
// The server sets no ReadTimeout or WriteTimeout: those are connection
// deadlines and would cut off slow or large bodies streaming through the
// legacy catch-all. Header reads and idle keep-alives stay bounded; the
// platform routes carry their own per-route timeout inside the router.
func NewServer(cfg config.ServerConfig, router *Router) *Server {
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	return &Server{
		server: srv,
		router: router,
		cfg:    cfg,
	}
}

// Router returns the router so callers can register the catch-all.
func (s *Server) Router() *Router {
	return s.router
}

// Addr returns the bound listen address, or the configured address before
// Serve has bound the socket.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.server.Addr
}

// Serve binds the listener and blocks until the context is cancelled or
// the server fails. Cancellation triggers graceful shutdown.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", s.server.Addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("HTTP server shutdown signal received")
		// Fresh context: the cancelled one would abort the drain immediately
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("http server failed: %w", err)
	}
}

// Stop initiates graceful shutdown. Safe to call multiple times and
// concurrently with Serve.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("http server shutdown: %w", err)
			logger.Error("HTTP server shutdown error", "error", err)
		} else {
			logger.Info("HTTP server stopped gracefully")
		}
	})
	return shutdownErr
}
