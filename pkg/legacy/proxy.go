package legacy

import (
	"fmt"
	"net/http"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/switchyard-io/switchyard/internal/telemetry"
	"github.com/switchyard-io/switchyard/pkg/metrics"
)

// retryAfterSeconds is the advisory retry interval returned while the
// legacy backend is still starting.
const retryAfterSeconds = 30

// HandoffProxy is the catch-all route bridging requests unclaimed by the
// platform router to the legacy adapter.
//
// The proxy holds a non-owning reference to the current adapter, refreshed
// by the coordinator and never by the proxy itself. While the reference is
// unset every request gets a deterministic 503 with a Retry-After header;
// once set, the raw request and response writer are handed to the adapter
// synchronously and the proxy writes nothing, so the adapter fully owns the
// response.
//
// Requests reach the proxy unparsed and unbounded: the catch-all route must
// be registered without the body-size or parsing middleware the platform
// routes use, because the legacy implementation does its own parsing and
// may accept larger payloads.
type HandoffProxy struct {
	mu      sync.RWMutex
	target  Forwarder
	metrics *metrics.ProxyMetrics
}

// NewHandoffProxy creates a proxy with no target. m may be nil (metrics
// disabled).
func NewHandoffProxy(m *metrics.ProxyMetrics) *HandoffProxy {
	return &HandoffProxy{metrics: m}
}

// SetTarget points the proxy at an adapter. Called by the coordinator once
// the adapter has finished listen/ready.
func (p *HandoffProxy) SetTarget(f Forwarder) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.target = f
}

// ClearTarget detaches the proxy from its adapter. Called by the
// coordinator before the adapter is closed.
func (p *HandoffProxy) ClearTarget() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.target = nil
}

// Ready reports whether the proxy currently has a target.
func (p *HandoffProxy) Ready() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.target != nil
}

// ServeHTTP implements the catch-all. It never blocks on an absent target
// and never retries; the Retry-After header is advisory to the client.
func (p *HandoffProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.RLock()
	target := p.target
	p.mu.RUnlock()

	if target == nil {
		p.metrics.RecordUnready()
		w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfterSeconds))
		http.Error(w, "server is not ready yet", http.StatusServiceUnavailable)
		return
	}

	ctx, span := telemetry.StartSpan(r.Context(), "legacy.handoff",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.path", r.URL.Path),
		))
	defer span.End()

	target.InvokeHandlers(w, r.WithContext(ctx))
	p.metrics.RecordForwarded(r.Method)
}
