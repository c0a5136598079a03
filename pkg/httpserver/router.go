package httpserver

import (
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/switchyard-io/switchyard/internal/logger"
	"github.com/switchyard-io/switchyard/internal/telemetry"
	"github.com/switchyard-io/switchyard/pkg/legacy"
)

// StatusSource reports the handoff lifecycle state for the readiness probe.
type StatusSource interface {
	State() legacy.State
	LastRevision() uint64
}

// Router is the shared platform router.
//
// Platform routes (probes, metrics) are registered at construction; the
// legacy catch-all is registered afterwards through RegisterCatchAll, so
// the call sequence guarantees the catch-all only receives requests no
// platform route claimed.
type Router struct {
	mux     *chi.Mux
	status  StatusSource
	metrics http.Handler
}

// NewRouter creates the platform router.
//
// Routes:
//   - GET /healthz - liveness probe
//   - GET /readyz - readiness probe backed by the coordinator state
//   - GET /metrics - Prometheus metrics (404 when metrics are disabled)
//
// Parameters:
//   - status: coordinator state source (may be nil; readyz then reports 503)
//   - metricsHandler: Prometheus handler (may be nil)
//   - platformTimeout: per-route timeout for the platform routes (0 disables)
func NewRouter(status StatusSource, metricsHandler http.Handler, platformTimeout time.Duration) *Router {
	router := &Router{
		status:  status,
		metrics: metricsHandler,
	}

	mux := chi.NewRouter()

	// Middleware stack - order matters. No timeout and no body size cap
	// here: the legacy catch-all must pass payloads through raw and
	// unbounded, and the server-level deadlines are off for the same
	// reason. Only the platform group below is bounded.
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(requestLogger)
	mux.Use(middleware.Recoverer)

	mux.Group(func(r chi.Router) {
		if platformTimeout > 0 {
			r.Use(middleware.Timeout(platformTimeout))
		}
		r.Get("/healthz", router.liveness)
		r.Get("/readyz", router.readiness)
		if metricsHandler != nil {
			r.Handle("/metrics", metricsHandler)
		}
	})

	router.mux = mux
	return router
}

// RegisterCatchAll installs the fallback handler for every method and path
// no platform route claimed. Must be called before the server starts
// serving and after all platform routes exist; the coordinator's start
// sequence enforces this ordering.
func (rt *Router) RegisterCatchAll(h http.Handler) {
	rt.mux.Handle("/*", h)
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.mux.ServeHTTP(w, r)
}

func (rt *Router) liveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readiness reports ready only while the coordinator is running. The
// response carries the lifecycle state and the last config revision seen,
// which makes a stuck config pipeline visible from the outside.
func (rt *Router) readiness(w http.ResponseWriter, _ *http.Request) {
	if rt.status == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unknown"})
		return
	}

	state := rt.status.State()
	body := map[string]any{
		"state":    state.String(),
		"revision": rt.status.LastRevision(),
	}
	if state != legacy.StateRunning {
		writeJSON(w, http.StatusServiceUnavailable, body)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

// requestLogger opens the request span and seeds the request-scoped log
// context, then logs start and completion. Downstream handlers, the
// handoff proxy included, read both from the request context.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := telemetry.StartSpan(r.Context(), "http.request")
		defer span.End()

		lc := logger.NewLogContext(clientIP(r.RemoteAddr)).WithRequest(r.Method, r.URL.Path)
		lc.RequestID = middleware.GetReqID(r.Context())
		lc = lc.WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx))
		ctx = logger.WithContext(ctx, lc)

		logger.DebugCtx(ctx, "Request started")

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r.WithContext(ctx))

		logger.InfoCtx(ctx, "Request completed",
			logger.KeyStatus, ww.Status(),
			logger.KeyBytes, ww.BytesWritten(),
			logger.KeyDurationMs, lc.DurationMs(),
		)
	})
}

// clientIP strips the port from a RemoteAddr. RealIP may already have
// replaced the address with a bare IP from the forwarding headers.
func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
