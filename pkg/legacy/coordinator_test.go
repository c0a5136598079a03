package legacy

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/switchyard-io/switchyard/pkg/config"
)

type fakeAdapter struct {
	*HandlerRegistry

	mu          sync.Mutex
	listenErr   error
	listenCalls int
	readyCalls  int
	closeCalls  int
	applied     []map[string]any
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{HandlerRegistry: NewHandlerRegistry()}
}

func (a *fakeAdapter) ApplyLoggingConfig(settings map[string]any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.applied = append(a.applied, settings)
}

func (a *fakeAdapter) Listen(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listenCalls++
	return a.listenErr
}

func (a *fakeAdapter) Ready(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.readyCalls++
	return nil
}

func (a *fakeAdapter) Close(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closeCalls++
	return nil
}

func (a *fakeAdapter) counts() (listen, ready, closed int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.listenCalls, a.readyCalls, a.closeCalls
}

type fakeFactory struct {
	adapter *fakeAdapter
	err     error
	params  AdapterParams
	calls   int
}

func (f *fakeFactory) CreateAdapter(_ context.Context, params AdapterParams) (Adapter, error) {
	f.calls++
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	return f.adapter, nil
}

type fakeRegistrar struct {
	handler http.Handler
	calls   int
}

func (r *fakeRegistrar) RegisterCatchAll(h http.Handler) {
	r.calls++
	r.handler = h
}

type fakeSupervisorFactory struct {
	desc  *SupervisorDescriptor
	err   error
	snap  SettingsView
	proxy http.Handler
	calls int
}

func (f *fakeSupervisorFactory) CreateSupervisor(_ context.Context, snap SettingsView, basePathProxy http.Handler) (*SupervisorDescriptor, error) {
	f.calls++
	f.snap = snap
	f.proxy = basePathProxy
	if f.err != nil {
		return nil, f.err
	}
	if f.desc == nil {
		f.desc = NewSupervisorDescriptor(snap, basePathProxy)
	}
	return f.desc, nil
}

func publishSettings(t *testing.T, d *config.Distributor, settings map[string]any) {
	t.Helper()
	d.Publish(config.NewSnapshot(settings))
}

func autoListenSettings(enabled bool) map[string]any {
	return map[string]any{
		"legacy": map[string]any{
			"http": map[string]any{
				"auto_listen": enabled,
				"host":        "localhost",
				"port":        5602,
			},
		},
	}
}

func newTestCoordinator(topology string, factory *fakeFactory, supFactory *fakeSupervisorFactory) (*Coordinator, *config.Distributor) {
	d := config.NewDistributor(nil)
	c := NewCoordinator(CoordinatorParams{
		Distributor:       d,
		Topology:          topology,
		AdapterFactory:    factory,
		SupervisorFactory: supFactory,
	}, NewHandoffProxy(nil))
	return c, d
}

// Shared-listener start with auto-listen enabled: Listen is called, the
// proxy answers 503 until the adapter comes up and forwards afterwards.
func TestStartInProcessSharedListener(t *testing.T) {
	adapter := newFakeAdapter()
	var handled bool
	adapter.RegisterHandler(func(w http.ResponseWriter, r *http.Request) {
		handled = true
		w.WriteHeader(http.StatusOK)
	})
	factory := &fakeFactory{adapter: adapter}
	c, d := newTestCoordinator(TopologyInProcess, factory, nil)
	shared := &fakeRegistrar{}

	publishSettings(t, d, autoListenSettings(true))

	// Before start completes the catch-all does not exist yet; simulate
	// the pre-ready window by serving through the proxy directly.
	rec := httptest.NewRecorder()
	c.Proxy().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("pre-start status = %d, want 503", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "30" {
		t.Fatalf("pre-start Retry-After = %q, want 30", rec.Header().Get("Retry-After"))
	}

	if err := c.Start(context.Background(), shared); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if c.State() != StateRunning {
		t.Errorf("state = %s, want running", c.State())
	}
	listen, ready, _ := adapter.counts()
	if listen != 1 || ready != 0 {
		t.Errorf("listen=%d ready=%d, want listen once", listen, ready)
	}
	if shared.calls != 1 || shared.handler == nil {
		t.Error("catch-all was not registered on the shared listener")
	}
	if factory.params.SharedProxy != c.Proxy() {
		t.Error("adapter constructor did not receive the shared proxy")
	}

	// After start, requests through the registered catch-all are handed to
	// the adapter's handlers.
	rec = httptest.NewRecorder()
	shared.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/unclaimed", nil))
	if !handled {
		t.Error("adapter handler was not invoked through the catch-all")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("post-start status = %d, want handler's 200", rec.Code)
	}

	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

// Supervisor topology with a base-path override: no adapter is created and
// the factory receives the snapshot paired with a reverse-proxy handle.
func TestStartSupervisorWithBasePath(t *testing.T) {
	factory := &fakeFactory{adapter: newFakeAdapter()}
	supFactory := &fakeSupervisorFactory{}
	c, d := newTestCoordinator(TopologySupervisor, factory, supFactory)

	settings := autoListenSettings(true)
	settings["dev"] = map[string]any{
		"base_path":         "/xyz",
		"proxy_target_port": 5603,
	}
	publishSettings(t, d, settings)

	if err := c.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if factory.calls != 0 {
		t.Error("adapter factory must not be called in supervisor topology")
	}
	if supFactory.calls != 1 {
		t.Fatalf("supervisor factory calls = %d, want 1", supFactory.calls)
	}
	if supFactory.proxy == nil {
		t.Error("base-path override requested but no proxy handle passed")
	}
	if supFactory.snap == nil {
		t.Error("supervisor factory did not receive the snapshot")
	}
	if c.Supervisor() == nil {
		t.Error("supervisor descriptor not stored")
	}
	if c.State() != StateRunning {
		t.Errorf("state = %s, want running", c.State())
	}

	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if c.Supervisor() != nil {
		t.Error("supervisor descriptor should be cleared on stop")
	}
}

// Supervisor topology without a base path builds no proxy handle.
func TestStartSupervisorWithoutBasePath(t *testing.T) {
	supFactory := &fakeSupervisorFactory{}
	c, d := newTestCoordinator(TopologySupervisor, nil, supFactory)

	publishSettings(t, d, autoListenSettings(true))

	if err := c.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer c.Stop(context.Background())

	if supFactory.proxy != nil {
		t.Error("no base path requested, proxy handle should be nil")
	}
}

// auto_listen: false selects Ready over Listen; no socket is bound.
func TestStartInProcessAutoListenDisabled(t *testing.T) {
	adapter := newFakeAdapter()
	factory := &fakeFactory{adapter: adapter}
	c, d := newTestCoordinator(TopologyInProcess, factory, nil)

	publishSettings(t, d, autoListenSettings(false))

	if err := c.Start(context.Background(), &fakeRegistrar{}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer c.Stop(context.Background())

	listen, ready, _ := adapter.counts()
	if listen != 0 || ready != 1 {
		t.Errorf("listen=%d ready=%d, want ready once and no listen", listen, ready)
	}
}

// Without a shared listener the constructor gets an auto-listen-disabled
// marker, regardless of the configured value.
func TestStartInProcessStandaloneForcesAutoListenOff(t *testing.T) {
	adapter := newFakeAdapter()
	factory := &fakeFactory{adapter: adapter}
	c, d := newTestCoordinator(TopologyInProcess, factory, nil)

	publishSettings(t, d, autoListenSettings(true))

	if err := c.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer c.Stop(context.Background())

	if factory.params.HTTP.AutoListen == nil || *factory.params.HTTP.AutoListen {
		t.Error("constructor params should carry auto-listen disabled")
	}
	listen, ready, _ := adapter.counts()
	if listen != 0 || ready != 1 {
		t.Errorf("listen=%d ready=%d, want ready only", listen, ready)
	}
}

// Listen failure: close is invoked exactly once and the caller sees the
// original listen error.
func TestListenFailureClosesAdapterOnce(t *testing.T) {
	adapter := newFakeAdapter()
	listenErr := errors.New("port already in use")
	adapter.listenErr = listenErr
	factory := &fakeFactory{adapter: adapter}
	c, d := newTestCoordinator(TopologyInProcess, factory, nil)

	publishSettings(t, d, autoListenSettings(true))

	err := c.Start(context.Background(), &fakeRegistrar{})
	if !errors.Is(err, listenErr) {
		t.Fatalf("Start error = %v, want the listen error", err)
	}

	_, _, closed := adapter.counts()
	if closed != 1 {
		t.Errorf("close calls = %d, want exactly 1", closed)
	}
	if c.State() != StateStopped {
		t.Errorf("state after failed start = %s, want stopped", c.State())
	}
	if c.Proxy().Ready() {
		t.Error("proxy must not point at a failed adapter")
	}
}

// Stop on a never-started coordinator performs no operations.
func TestStopNeverStarted(t *testing.T) {
	adapter := newFakeAdapter()
	c, _ := newTestCoordinator(TopologyInProcess, &fakeFactory{adapter: adapter}, nil)

	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("Stop on stopped coordinator failed: %v", err)
	}
	if _, _, closed := adapter.counts(); closed != 0 {
		t.Errorf("close calls = %d, want 0", closed)
	}
}

// Double stop closes the adapter at most once.
func TestStopIdempotent(t *testing.T) {
	adapter := newFakeAdapter()
	c, d := newTestCoordinator(TopologyInProcess, &fakeFactory{adapter: adapter}, nil)

	publishSettings(t, d, autoListenSettings(true))
	if err := c.Start(context.Background(), &fakeRegistrar{}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("first Stop failed: %v", err)
	}
	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("second Stop failed: %v", err)
	}

	if _, _, closed := adapter.counts(); closed != 1 {
		t.Errorf("close calls = %d, want exactly 1", closed)
	}
}

// Stop during the pending first-snapshot wait cancels the start.
func TestStopCancelsPendingStart(t *testing.T) {
	c, _ := newTestCoordinator(TopologyInProcess, &fakeFactory{adapter: newFakeAdapter()}, nil)

	startErr := make(chan error, 1)
	go func() {
		startErr <- c.Start(context.Background(), &fakeRegistrar{})
	}()

	// Wait until the start is pending on the first snapshot.
	deadline := time.After(time.Second)
	for c.State() != StateStarting {
		select {
		case <-deadline:
			t.Fatal("coordinator never entered starting")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	select {
	case err := <-startErr:
		if !errors.Is(err, ErrStartCancelled) {
			t.Errorf("Start error = %v, want ErrStartCancelled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Start never returned after Stop")
	}
	if c.State() != StateStopped {
		t.Errorf("state = %s, want stopped", c.State())
	}
}

// Starting twice without stopping fails.
func TestDoubleStartRejected(t *testing.T) {
	adapter := newFakeAdapter()
	c, d := newTestCoordinator(TopologyInProcess, &fakeFactory{adapter: adapter}, nil)

	publishSettings(t, d, autoListenSettings(true))
	if err := c.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer c.Stop(context.Background())

	if err := c.Start(context.Background(), nil); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start error = %v, want ErrAlreadyStarted", err)
	}
}

// Snapshots published while the adapter is running reach it through the
// side channel; after stop they no longer do.
func TestConfigPushReachesOnlyLiveAdapter(t *testing.T) {
	adapter := newFakeAdapter()
	c, d := newTestCoordinator(TopologyInProcess, &fakeFactory{adapter: adapter}, nil)

	publishSettings(t, d, autoListenSettings(true))
	if err := c.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	publishSettings(t, d, map[string]any{"logging": map[string]any{"level": "DEBUG"}})

	adapter.mu.Lock()
	applied := len(adapter.applied)
	adapter.mu.Unlock()
	if applied != 1 {
		t.Errorf("applied configs = %d, want 1", applied)
	}

	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	publishSettings(t, d, map[string]any{"logging": map[string]any{"level": "ERROR"}})

	adapter.mu.Lock()
	appliedAfter := len(adapter.applied)
	adapter.mu.Unlock()
	if appliedAfter != applied {
		t.Error("config push reached a closed adapter")
	}
}
