package legacy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/switchyard-io/switchyard/internal/logger"
	"github.com/switchyard-io/switchyard/pkg/config"
)

// State is the coordinator lifecycle state.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Topology selects the startup path. The two are mutually exclusive.
const (
	TopologyInProcess  = "inprocess"
	TopologySupervisor = "supervisor"
)

var (
	// ErrAlreadyStarted is returned by Start when the coordinator is not
	// in the stopped state.
	ErrAlreadyStarted = errors.New("coordinator already started")

	// ErrStartCancelled is returned by Start when Stop was called while
	// the first-snapshot wait was still pending.
	ErrStartCancelled = errors.New("start cancelled by stop")
)

// CatchAllRegistrar is the shared listener's registration surface for the
// handoff catch-all. RegisterCatchAll must be called only after every
// platform route has been registered, so the catch-all only catches what
// nothing else claimed; the coordinator's call sequence enforces this.
type CatchAllRegistrar interface {
	RegisterCatchAll(h http.Handler)
}

// Console is the optional interactive console attached to the in-process
// adapter. Whether it runs is gated twice: by configuration and by the
// external cluster designation (at most one process per cluster).
type Console interface {
	Start(adapter Adapter) error
	Stop()
}

// CoordinatorParams collects the coordinator's collaborators. Factories
// are supplied once at construction and resolved at the point of use.
type CoordinatorParams struct {
	// Distributor is the live configuration broadcast.
	Distributor *config.Distributor

	// Topology selects between the in-process adapter and the external
	// supervisor. One of TopologyInProcess, TopologySupervisor.
	Topology string

	// AdapterFactory constructs the in-process adapter. Required for the
	// in-process topology.
	AdapterFactory AdapterFactory

	// SupervisorFactory builds the supervisor delegation. Required for the
	// supervisor topology.
	SupervisorFactory SupervisorFactory

	// Console, when non-nil and RunConsole is set, is started against the
	// adapter after construction.
	Console Console

	// RunConsole is the external cluster designation selecting this
	// process as the one console host. Not decided here.
	RunConsole bool
}

// Coordinator owns the legacy handoff lifecycle.
//
// It waits for the first configuration snapshot, chooses the topology,
// wires the handoff proxy to the adapter, and tears everything down in the
// inverse order on stop. The adapter handle and the config subscription are
// exclusively owned here; the proxy only ever holds a read reference that
// the coordinator refreshes.
type Coordinator struct {
	params CoordinatorParams
	proxy  *HandoffProxy

	mu          sync.Mutex
	state       State
	adapter     Adapter
	sub         *config.Subscription
	supervisor  *SupervisorDescriptor
	startCancel context.CancelFunc
	consoleUp   bool
	lastSeen    uint64
}

// NewCoordinator creates a stopped coordinator. The proxy is created here
// and installed on the shared listener during Start.
func NewCoordinator(params CoordinatorParams, proxy *HandoffProxy) *Coordinator {
	return &Coordinator{
		params: params,
		proxy:  proxy,
	}
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Proxy returns the handoff proxy owned by this coordinator.
func (c *Coordinator) Proxy() *HandoffProxy {
	return c.proxy
}

// Supervisor returns the supervisor descriptor, or nil outside the
// supervisor topology.
func (c *Coordinator) Supervisor() *SupervisorDescriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.supervisor
}

// Start drives the coordinator from Stopped to Running.
//
// shared is the platform listener's catch-all registration surface, or nil
// when the adapter should run standalone. Errors from adapter construction
// or listen are propagated to the caller without internal retries; retry
// policy belongs to the caller.
//
// Stop called while the first-snapshot wait is pending cancels the start;
// Start then returns ErrStartCancelled.
func (c *Coordinator) Start(ctx context.Context, shared CatchAllRegistrar) error {
	c.mu.Lock()
	if c.state != StateStopped {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w (state %s)", ErrAlreadyStarted, state)
	}
	c.state = StateStarting
	startCtx, cancel := context.WithCancel(ctx)
	c.startCancel = cancel
	c.mu.Unlock()
	defer cancel()

	logger.Info("Legacy coordinator starting", logger.Component("coordinator"), "topology", c.params.Topology)

	snap, err := c.params.Distributor.First(startCtx)
	if err != nil {
		return c.failStart(fmt.Errorf("await first config snapshot: %w", c.cancellation(err)))
	}

	if c.params.Topology == TopologySupervisor {
		return c.startSupervisor(startCtx, snap)
	}
	return c.startInProcess(startCtx, snap, shared)
}

// cancellation maps a context error caused by Stop to ErrStartCancelled.
func (c *Coordinator) cancellation(err error) error {
	c.mu.Lock()
	stopping := c.state == StateStopping || c.state == StateStopped
	c.mu.Unlock()
	if stopping && errors.Is(err, context.Canceled) {
		return ErrStartCancelled
	}
	return err
}

// failStart rolls the state machine back to Stopped, unless Stop already
// took ownership of the transition.
func (c *Coordinator) failStart(err error) error {
	c.mu.Lock()
	if c.state == StateStarting {
		c.state = StateStopped
	}
	c.startCancel = nil
	c.mu.Unlock()
	return err
}

// startSupervisor delegates to the external multi-process supervisor. No
// adapter is created; the coordinator moves to Running with adapter = none.
func (c *Coordinator) startSupervisor(ctx context.Context, snap *config.Snapshot) error {
	if c.params.SupervisorFactory == nil {
		return c.failStart(fmt.Errorf("supervisor topology selected but no supervisor factory supplied"))
	}

	// The dev/http views are read exactly once, as a pair.
	devView, err := resolveDevView(snap)
	if err != nil {
		return c.failStart(err)
	}
	httpView, err := resolveHTTPView(snap)
	if err != nil {
		return c.failStart(err)
	}

	var basePathProxy http.Handler
	if devView.BasePath != "" {
		basePathProxy, err = NewBasePathProxy(devView, httpView)
		if err != nil {
			return c.failStart(fmt.Errorf("build base-path proxy: %w", err))
		}
	}

	desc, err := c.params.SupervisorFactory.CreateSupervisor(ctx, snap, basePathProxy)
	if err != nil {
		return c.failStart(fmt.Errorf("create supervisor: %w", err))
	}

	c.mu.Lock()
	if c.state != StateStarting {
		c.mu.Unlock()
		return ErrStartCancelled
	}
	c.supervisor = desc
	c.state = StateRunning
	c.startCancel = nil
	c.mu.Unlock()

	logger.Info("Legacy coordinator running",
		"topology", TopologySupervisor,
		"supervisor_id", desc.ID.String(),
		"base_path_proxy", basePathProxy != nil,
	)
	return nil
}

// startInProcess constructs and starts the in-process adapter.
func (c *Coordinator) startInProcess(ctx context.Context, snap *config.Snapshot, shared CatchAllRegistrar) error {
	if c.params.AdapterFactory == nil {
		return c.failStart(fmt.Errorf("in-process topology selected but no adapter factory supplied"))
	}

	httpView, err := resolveHTTPView(snap)
	if err != nil {
		return c.failStart(err)
	}

	params := AdapterParams{HTTP: httpView, Snapshot: snap}
	if shared != nil {
		// Register the catch-all now that the platform router has finished
		// registering its own routes.
		shared.RegisterCatchAll(c.proxy)
		params.SharedProxy = c.proxy
	} else {
		// Standalone construction gets an explicit auto-listen-disabled
		// marker instead of a decorated listener.
		disabled := false
		params.HTTP.AutoListen = &disabled
	}

	adapter, err := c.params.AdapterFactory.CreateAdapter(ctx, params)
	if err != nil {
		return c.failStart(fmt.Errorf("create adapter: %w", err))
	}

	// Store the adapter and open the config link before listen: from here
	// on snapshots reach the adapter. The push hook checks for a live
	// adapter, so no push can ever reach one that does not exist.
	c.mu.Lock()
	if c.state != StateStarting {
		c.mu.Unlock()
		closeErr := adapter.Close(context.WithoutCancel(ctx))
		if closeErr != nil {
			logger.Warn("Adapter close after cancelled start failed", logger.Err(closeErr))
		}
		return ErrStartCancelled
	}
	c.adapter = adapter
	c.mu.Unlock()

	c.params.Distributor.SetPush(c.pushToAdapter)
	c.setSubscription(c.params.Distributor.Subscribe(c.onSnapshot))

	if c.params.Console != nil && c.params.RunConsole {
		if err := c.params.Console.Start(adapter); err != nil {
			logger.Warn("Console failed to start", logger.Err(err))
		} else {
			c.mu.Lock()
			c.consoleUp = true
			c.mu.Unlock()
		}
	}

	autoListen := params.HTTP.AutoListenEnabled()
	if autoListen {
		err = adapter.Listen(ctx)
	} else {
		err = adapter.Ready(ctx)
	}
	if err != nil {
		// Fail fast: best-effort close, then surface the original error.
		// No partial state is left running.
		c.teardown(context.WithoutCancel(ctx))
		return c.failStart(fmt.Errorf("start adapter: %w", err))
	}

	c.mu.Lock()
	if c.state != StateStarting {
		c.mu.Unlock()
		return ErrStartCancelled
	}
	c.proxy.SetTarget(adapter)
	c.state = StateRunning
	c.startCancel = nil
	c.mu.Unlock()

	logger.Info("Legacy coordinator running",
		"topology", TopologyInProcess,
		"auto_listen", autoListen,
		"addr", httpView.Addr(),
	)
	return nil
}

// pushToAdapter is the distributor's side-channel hook. It runs before any
// first-snapshot waiter or general subscriber sees the snapshot.
func (c *Coordinator) pushToAdapter(snap *config.Snapshot) {
	c.mu.Lock()
	adapter := c.adapter
	c.mu.Unlock()

	if adapter == nil {
		return
	}
	adapter.ApplyLoggingConfig(snap.Raw())
	logger.Debug("Config pushed to adapter", logger.Component("coordinator"), logger.Revision(snap.Revision()))
}

// onSnapshot tracks the last revision seen over the subscription. The
// adapter push itself rides the side channel, which is ordered ahead of
// this delivery.
func (c *Coordinator) onSnapshot(snap *config.Snapshot) {
	c.mu.Lock()
	c.lastSeen = snap.Revision()
	c.mu.Unlock()
}

// LastRevision returns the revision of the newest snapshot delivered over
// the coordinator's subscription, or 0.
func (c *Coordinator) LastRevision() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeen
}

func (c *Coordinator) setSubscription(sub *config.Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sub = sub
}

// Stop drives the coordinator back to Stopped.
//
// Teardown order is strict: the config subscription is released first, the
// push hook cleared, and only then the adapter closed, so no config push
// can reach a closing or closed adapter. Stop is idempotent: a second call
// performs no operations. Stop during a pending Start cancels the start.
func (c *Coordinator) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateStopped || c.state == StateStopping {
		c.mu.Unlock()
		return nil
	}
	if c.state == StateStarting && c.startCancel != nil {
		c.startCancel()
	}
	c.state = StateStopping
	c.mu.Unlock()

	logger.Info("Legacy coordinator stopping")

	err := c.teardown(ctx)

	c.mu.Lock()
	c.state = StateStopped
	c.supervisor = nil
	c.startCancel = nil
	c.mu.Unlock()

	logger.Info("Legacy coordinator stopped")
	return err
}

// teardown releases the subscription, the push hook, the console, the
// proxy target, and finally the adapter. Every step is guarded so teardown
// is safe to run with any subset of the resources present.
func (c *Coordinator) teardown(ctx context.Context) error {
	c.mu.Lock()
	sub := c.sub
	c.sub = nil
	adapter := c.adapter
	c.adapter = nil
	consoleUp := c.consoleUp
	c.consoleUp = false
	c.mu.Unlock()

	if sub != nil {
		sub.Release()
	}
	c.params.Distributor.SetPush(nil)

	if consoleUp && c.params.Console != nil {
		c.params.Console.Stop()
	}

	if c.proxy != nil {
		c.proxy.ClearTarget()
	}

	if adapter != nil {
		if err := adapter.Close(ctx); err != nil {
			return fmt.Errorf("close adapter: %w", err)
		}
	}
	return nil
}
