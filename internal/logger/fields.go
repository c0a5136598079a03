package logger

import (
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so logs from the
// platform router, the handoff proxy, and the legacy adapter aggregate cleanly.
const (
	// Distributed tracing
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// HTTP request
	KeyRequestID = "request_id" // Middleware-assigned request ID
	KeyMethod    = "method"     // HTTP method
	KeyPath      = "path"       // Request path
	KeyStatus    = "status"     // HTTP response status
	KeyClientIP  = "client_ip"  // Client IP address (without port)
	KeyBytes     = "bytes"      // Response bytes written

	// Lifecycle and configuration
	KeyComponent = "component" // Emitting component: coordinator, proxy, distributor, ...
	KeyState     = "state"     // Coordinator lifecycle state
	KeyTopology  = "topology"  // Startup topology: inprocess, supervisor
	KeyRevision  = "revision"  // Configuration snapshot revision
	KeyHandlers  = "handlers"  // Registered legacy handler count

	// Operation metadata
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
)

// Field constructors for type safety. The tracing and request keys have no
// constructors: those fields ride the request context and are appended by
// the *Ctx logging functions.

// Component returns a slog.Attr naming the emitting component
func Component(name string) slog.Attr {
	return slog.String(KeyComponent, name)
}

// Revision returns a slog.Attr for a snapshot revision
func Revision(rev uint64) slog.Attr {
	return slog.Uint64(KeyRevision, rev)
}

// Err returns a slog.Attr for an error value; nil-safe
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
