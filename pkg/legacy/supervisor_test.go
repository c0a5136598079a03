package legacy

import (
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/google/uuid"

	"github.com/switchyard-io/switchyard/pkg/config"
)

func TestBasePathProxyStripsPrefixAndForwards(t *testing.T) {
	var gotPath string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer backend.Close()

	u, err := url.Parse(backend.URL)
	if err != nil {
		t.Fatalf("parse backend url: %v", err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatalf("split backend host: %v", err)
	}
	port, _ := strconv.Atoi(portStr)

	proxy, err := NewBasePathProxy(
		DevView{BasePath: "/xyz", ProxyTargetPort: port},
		HTTPView{Host: host, Port: 5602},
	)
	if err != nil {
		t.Fatalf("NewBasePathProxy failed: %v", err)
	}

	rec := httptest.NewRecorder()
	proxy.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/xyz/app/home", nil))

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want backend's 204", rec.Code)
	}
	if gotPath != "/app/home" {
		t.Errorf("backend saw path %q, want /app/home", gotPath)
	}

	// Requests outside the base path are not forwarded.
	rec = httptest.NewRecorder()
	proxy.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/other", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("off-prefix status = %d, want 404", rec.Code)
	}
}

func TestBasePathProxyValidation(t *testing.T) {
	if _, err := NewBasePathProxy(DevView{}, HTTPView{}); err == nil {
		t.Error("expected error for missing base path")
	}
	if _, err := NewBasePathProxy(DevView{BasePath: "/xyz"}, HTTPView{}); err == nil {
		t.Error("expected error for missing target port")
	}
}

func TestSupervisorDescriptorCarriesSettings(t *testing.T) {
	snap := config.NewSnapshot(map[string]any{"legacy": map[string]any{"mode": "supervisor"}})

	desc := NewSupervisorDescriptor(snap, nil)
	if desc.ID == uuid.Nil {
		t.Error("descriptor ID not assigned")
	}
	if _, ok := desc.Settings["legacy"]; !ok {
		t.Error("descriptor missing settings tree")
	}
}

func TestHTTPViewAutoListenDefaultsTrue(t *testing.T) {
	if !(HTTPView{}).AutoListenEnabled() {
		t.Error("unset auto_listen should default to enabled")
	}
	f := false
	if (HTTPView{AutoListen: &f}).AutoListenEnabled() {
		t.Error("explicit false should disable auto listen")
	}
}
