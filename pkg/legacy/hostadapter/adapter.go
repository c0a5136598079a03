// Package hostadapter provides the in-process Adapter implementation: a
// host for the legacy server's HTTP handlers that can either bind its own
// socket or run handoff-only behind the shared listener.
package hostadapter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/mitchellh/mapstructure"

	"github.com/switchyard-io/switchyard/internal/logger"
	"github.com/switchyard-io/switchyard/pkg/legacy"
)

// HostAdapter hosts legacy request handlers.
//
// In auto-listen mode it binds its own socket and serves the registered
// handlers directly; otherwise it only answers through the shared-listener
// handoff path. Either way the same handler registry backs both entry
// points.
type HostAdapter struct {
	*legacy.HandlerRegistry

	view legacy.HTTPView

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
	ready    bool
	closed   bool
}

// Factory implements legacy.AdapterFactory. Register is called with every
// new adapter before it is returned, giving the embedding application one
// place to attach its legacy handlers.
type Factory struct {
	// Register attaches the legacy handlers to a fresh adapter. May be nil.
	Register func(*HostAdapter)
}

// CreateAdapter builds a HostAdapter from the resolved http view.
func (f *Factory) CreateAdapter(_ context.Context, params legacy.AdapterParams) (legacy.Adapter, error) {
	a := &HostAdapter{
		HandlerRegistry: legacy.NewHandlerRegistry(),
		view:            params.HTTP,
	}
	if f.Register != nil {
		f.Register(a)
	}
	return a, nil
}

// ApplyLoggingConfig reconfigures logging from the raw settings tree of a
// new snapshot. Unknown or absent sections are ignored; a snapshot that
// does not touch logging changes nothing.
func (a *HostAdapter) ApplyLoggingConfig(settings map[string]any) {
	raw, ok := settings["logging"].(map[string]any)
	if !ok {
		return
	}

	var section struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	}
	if err := mapstructure.Decode(raw, &section); err != nil {
		logger.Warn("Ignoring malformed logging section", "error", err)
		return
	}

	if section.Level != "" {
		logger.SetLevel(section.Level)
	}
	if section.Format != "" {
		logger.SetFormat(section.Format)
	}
	logger.Debug("Adapter applied logging configuration",
		"level", section.Level,
		"format", section.Format,
	)
}

// Listen binds the adapter's own socket and starts serving the registered
// handlers. The bind happens synchronously so address conflicts surface to
// the caller; serving continues in the background until Close.
func (a *HostAdapter) Listen(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return fmt.Errorf("adapter is closed")
	}
	if a.srv != nil {
		return fmt.Errorf("adapter already listening")
	}

	ln, err := net.Listen("tcp", a.view.Addr())
	if err != nil {
		return fmt.Errorf("bind %s: %w", a.view.Addr(), err)
	}

	srv := &http.Server{
		Handler: http.HandlerFunc(a.serveOwn),
	}
	a.listener = ln
	a.srv = srv
	a.ready = true

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Adapter server error", "error", err)
		}
	}()

	logger.Info("Adapter listening", "addr", ln.Addr().String())
	return nil
}

// Ready initializes the adapter without binding a socket. Requests then
// only arrive through the shared-listener handoff.
func (a *HostAdapter) Ready(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return fmt.Errorf("adapter is closed")
	}
	a.ready = true

	logger.Info("Adapter ready without socket")
	return nil
}

// Close shuts the adapter down. Safe to call on an adapter that never
// listened; a second call is a no-op.
func (a *HostAdapter) Close(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.ready = false
	srv := a.srv
	a.srv = nil
	a.listener = nil
	a.mu.Unlock()

	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown adapter server: %w", err)
		}
	}

	logger.Info("Adapter closed")
	return nil
}

// Addr returns the bound listen address, or empty when not listening.
func (a *HostAdapter) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// serveOwn serves requests arriving on the adapter's own socket.
func (a *HostAdapter) serveOwn(w http.ResponseWriter, r *http.Request) {
	if a.HandlerCount() == 0 {
		http.NotFound(w, r)
		return
	}
	a.InvokeHandlers(w, r)
}
