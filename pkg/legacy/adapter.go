// Package legacy coordinates the handoff between the new platform HTTP
// surface and the previous-generation server implementation during the
// transition period.
//
// Three pieces cooperate:
//   - the config distributor (pkg/config) feeds live snapshots to whichever
//     implementation is active,
//   - the Coordinator decides between the in-process adapter topology and
//     the external supervisor topology and manages start/stop ordering,
//   - the HandoffProxy bridges requests unclaimed by the platform router to
//     the adapter at the raw transport level.
package legacy

import (
	"context"
	"net/http"
)

// Handler receives the raw request/response transport objects. The handler
// owns writing the response; the caller writes nothing.
type Handler func(w http.ResponseWriter, r *http.Request)

// Forwarder is the observer-style forwarding interface between the handoff
// proxy and the legacy implementation. Handlers are invoked synchronously
// with the raw transport objects.
type Forwarder interface {
	// RegisterHandler adds a handler to the invocation list.
	RegisterHandler(h Handler)

	// InvokeHandlers invokes every registered handler, in registration
	// order, with the raw request and response.
	InvokeHandlers(w http.ResponseWriter, r *http.Request)
}

// Adapter is the in-process host of the legacy server implementation.
//
// Lifecycle: constructed by an AdapterFactory during coordinator start,
// then exactly one of Listen (binds its own socket) or Ready (initializes
// without binding) is called, then Close during coordinator stop. At most
// one adapter is alive per coordinator.
type Adapter interface {
	Forwarder

	// ApplyLoggingConfig pushes the raw settings tree of a new snapshot to
	// the legacy implementation so it can reconfigure its logging live.
	ApplyLoggingConfig(settings map[string]any)

	// Listen binds the adapter's own HTTP socket and starts serving.
	Listen(ctx context.Context) error

	// Ready initializes the adapter without binding a socket. The adapter
	// is then reachable only through the shared-listener handoff path.
	Ready(ctx context.Context) error

	// Close releases the adapter's resources. Called at most once.
	Close(ctx context.Context) error
}

// AdapterParams carries everything an AdapterFactory needs to construct an
// adapter: the resolved legacy HTTP view, the snapshot it came from, and,
// in shared-listener mode, the proxy whose catch-all delivers unclaimed
// requests to the adapter.
type AdapterParams struct {
	// HTTP is the resolved legacy.http configuration view. When no shared
	// listener was supplied the coordinator forces auto-listen off here.
	HTTP HTTPView

	// Snapshot is the first configuration snapshot, for implementations
	// that read more than the http section.
	Snapshot SettingsView

	// SharedProxy is the handoff proxy installed on the shared listener,
	// or nil when the adapter runs standalone.
	SharedProxy *HandoffProxy
}

// SettingsView is the read surface an adapter gets on a snapshot.
type SettingsView interface {
	Raw() map[string]any
	Has(path string) bool
	Decode(path string, out any) error
}

// AdapterFactory constructs adapters. Supplied once at coordinator
// construction; invoked at most once per start.
type AdapterFactory interface {
	CreateAdapter(ctx context.Context, params AdapterParams) (Adapter, error)
}
