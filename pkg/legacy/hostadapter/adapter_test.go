package hostadapter

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/switchyard-io/switchyard/pkg/legacy"
)

func boolPtr(b bool) *bool { return &b }

func TestFactoryRegistersHandlers(t *testing.T) {
	factory := &Factory{Register: func(a *HostAdapter) {
		a.RegisterHandler(func(w http.ResponseWriter, r *http.Request) {})
	}}

	adapter, err := factory.CreateAdapter(context.Background(), legacy.AdapterParams{})
	if err != nil {
		t.Fatalf("CreateAdapter failed: %v", err)
	}

	host, ok := adapter.(*HostAdapter)
	if !ok {
		t.Fatalf("adapter type %T, want *HostAdapter", adapter)
	}
	if host.HandlerCount() != 1 {
		t.Errorf("HandlerCount = %d, want 1", host.HandlerCount())
	}
}

func TestListenServesRegisteredHandlers(t *testing.T) {
	a := &HostAdapter{
		HandlerRegistry: legacy.NewHandlerRegistry(),
		// Port 0 lets the kernel pick a free port.
		view: legacy.HTTPView{Host: "127.0.0.1", Port: 0, AutoListen: boolPtr(true)},
	}
	a.RegisterHandler(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "legacy says hi")
	})

	if err := a.Listen(context.Background()); err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer a.Close(context.Background())

	addr := a.Addr()
	if addr == "" {
		t.Fatal("no listen address after Listen")
	}

	resp, err := http.Get("http://" + addr + "/anything")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "legacy says hi" {
		t.Errorf("body = %q", body)
	}
}

func TestReadyDoesNotBind(t *testing.T) {
	a := &HostAdapter{HandlerRegistry: legacy.NewHandlerRegistry()}

	if err := a.Ready(context.Background()); err != nil {
		t.Fatalf("Ready failed: %v", err)
	}
	if a.Addr() != "" {
		t.Error("Ready must not bind a socket")
	}
	if err := a.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestCloseIdempotentAndBlocksReuse(t *testing.T) {
	a := &HostAdapter{HandlerRegistry: legacy.NewHandlerRegistry()}

	if err := a.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := a.Close(context.Background()); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if err := a.Listen(context.Background()); err == nil {
		t.Error("Listen on closed adapter should fail")
	}
	if err := a.Ready(context.Background()); err == nil {
		t.Error("Ready on closed adapter should fail")
	}
}

func TestApplyLoggingConfigIgnoresUnrelatedSettings(t *testing.T) {
	a := &HostAdapter{HandlerRegistry: legacy.NewHandlerRegistry()}

	// None of these should panic or change anything.
	a.ApplyLoggingConfig(nil)
	a.ApplyLoggingConfig(map[string]any{"server": map[string]any{"port": 1}})
	a.ApplyLoggingConfig(map[string]any{"logging": "not a map"})
}
