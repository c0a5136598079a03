package legacy

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// SupervisorDescriptor describes a delegation to the external multi-process
// supervisor. No adapter exists in this topology; the supervisor owns the
// legacy processes.
type SupervisorDescriptor struct {
	// ID uniquely identifies this delegation.
	ID uuid.UUID

	// Settings is the raw snapshot tree handed to the supervisor.
	Settings map[string]any

	// BasePathProxy forwards base-path-prefixed requests to the supervised
	// process. Nil when no base-path override was requested.
	BasePathProxy http.Handler
}

// SupervisorFactory builds the supervisor delegation. Implemented by the
// external process supervisor; invoked at most once per start, only in
// supervisor mode.
type SupervisorFactory interface {
	CreateSupervisor(ctx context.Context, snapshot SettingsView, basePathProxy http.Handler) (*SupervisorDescriptor, error)
}

// NewSupervisorDescriptor assembles a descriptor with a fresh ID. Factory
// implementations usually call this after spawning their processes.
func NewSupervisorDescriptor(snapshot SettingsView, basePathProxy http.Handler) *SupervisorDescriptor {
	return &SupervisorDescriptor{
		ID:            uuid.New(),
		Settings:      snapshot.Raw(),
		BasePathProxy: basePathProxy,
	}
}

// NewBasePathProxy builds the reverse proxy used when a base-path override
// is requested in supervisor mode. Requests arriving under dev.BasePath are
// stripped of the prefix and forwarded to the supervised process at
// legacy.http host and dev.ProxyTargetPort.
func NewBasePathProxy(dev DevView, httpView HTTPView) (http.Handler, error) {
	if dev.BasePath == "" {
		return nil, fmt.Errorf("base-path proxy requires a base path")
	}
	if dev.ProxyTargetPort <= 0 {
		return nil, fmt.Errorf("base-path proxy requires a target port")
	}

	host := httpView.Host
	if host == "" {
		host = "localhost"
	}
	target, err := url.Parse(fmt.Sprintf("http://%s:%d", host, dev.ProxyTargetPort))
	if err != nil {
		return nil, fmt.Errorf("parse proxy target: %w", err)
	}

	prefix := "/" + strings.Trim(dev.BasePath, "/")
	proxy := httputil.NewSingleHostReverseProxy(target)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != prefix && !strings.HasPrefix(r.URL.Path, prefix+"/") {
			http.NotFound(w, r)
			return
		}
		r2 := r.Clone(r.Context())
		r2.URL.Path = strings.TrimPrefix(r.URL.Path, prefix)
		if r2.URL.Path == "" {
			r2.URL.Path = "/"
		}
		proxy.ServeHTTP(w, r2)
	}), nil
}
