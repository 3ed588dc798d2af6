// Package gateway assembles the routing table, token validator, forwarder,
// and the gateway's own endpoints into a single http.Handler.
package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"github.com/aidevops/gateway/internal/auth"
	"github.com/aidevops/gateway/internal/config"
	"github.com/aidevops/gateway/internal/errors"
	"github.com/aidevops/gateway/internal/health"
	"github.com/aidevops/gateway/internal/logging"
	"github.com/aidevops/gateway/internal/metrics"
	"github.com/aidevops/gateway/internal/middleware"
	"github.com/aidevops/gateway/internal/proxy"
	"github.com/aidevops/gateway/internal/registry"
	"github.com/aidevops/gateway/internal/router"
)

// Gateway routes platform traffic to downstream services and serves its own
// health and metrics endpoints.
type Gateway struct {
	cfg       *config.Config
	registry  *registry.Registry
	table     *router.Table
	validator *auth.RemoteValidator
	forwarder *proxy.Forwarder
	checker   *health.Checker
	collector *metrics.Collector
	handlers  map[*router.Route]http.Handler
	handler   http.Handler
}

// New builds a gateway from configuration.
func New(cfg *config.Config) (*Gateway, error) {
	reg, err := registry.New(cfg.Services)
	if err != nil {
		return nil, err
	}

	collector := metrics.NewCollector()

	validator, err := auth.NewRemoteValidator(cfg.Auth)
	if err != nil {
		return nil, err
	}
	validator.OnResult = collector.RecordAuthResult

	checker := health.NewChecker(reg, cfg.Health, health.WithOnChange(func(service string, status health.Status) {
		collector.SetBackendUp(service, status == health.StatusHealthy)
	}))

	pool := proxy.NewTransportPool(cfg.Proxy.CircuitBreaker)
	forwarder := proxy.New(reg, pool, cfg.Proxy)

	table, err := router.NewTable(router.BuildRoutes(cfg.Services, cfg.Admin))
	if err != nil {
		return nil, err
	}

	g := &Gateway{
		cfg:       cfg,
		registry:  reg,
		table:     table,
		validator: validator,
		forwarder: forwarder,
		checker:   checker,
		collector: collector,
		handlers:  make(map[*router.Route]http.Handler, len(table.Routes())),
	}

	for _, route := range table.Routes() {
		fwd, err := forwarder.Handler(route)
		if err != nil {
			return nil, err
		}
		gate := auth.Gate(validator, route.Auth, cfg.Auth.InjectHeaders)
		g.handlers[route] = g.instrument(route.Service, gate(fwd))
	}

	g.handler = g.buildHandler()
	return g, nil
}

// Handler returns the gateway's root handler.
func (g *Gateway) Handler() http.Handler {
	return g.handler
}

// Checker exposes the backend health checker for lifecycle control.
func (g *Gateway) Checker() *health.Checker {
	return g.checker
}

// buildHandler wires the gateway's own endpoints in front of the proxy
// dispatch and wraps everything in the shared middleware chain.
func (g *Gateway) buildHandler() http.Handler {
	local := httprouter.New()
	local.HandleMethodNotAllowed = false
	local.HandleOPTIONS = false
	local.RedirectTrailingSlash = false
	local.RedirectFixedPath = false
	local.GET("/", wrap(g.handleRoot))
	local.GET("/health", wrap(g.handleHealth))
	local.GET("/health/services", wrap(g.handleServiceHealth))
	local.Handler(http.MethodGet, "/metrics", g.collector.Handler())
	local.NotFound = http.HandlerFunc(g.dispatch)

	chain := middleware.NewChain(
		middleware.RequestID(),
		middleware.Recovery(),
	)
	if g.cfg.CORS.Enabled {
		chain = chain.Append(middleware.CORS(g.cfg.CORS))
	}
	if g.cfg.RateLimit.Enabled {
		chain = chain.Append(middleware.NewRateLimiter(g.cfg.RateLimit).Middleware())
	}
	if g.cfg.Logging.AccessLogEnabled() {
		chain = chain.Append(middleware.AccessLog(logging.Global()))
	}

	return chain.Then(local)
}

// dispatch resolves proxied paths against the routing table.
func (g *Gateway) dispatch(w http.ResponseWriter, r *http.Request) {
	m := g.table.Match(r.URL.Path)
	if m == nil {
		errors.ErrNotFound.WriteJSON(w)
		return
	}

	h, ok := g.handlers[m.Route]
	if !ok {
		errors.ErrInternalServer.WriteJSON(w)
		return
	}
	h.ServeHTTP(w, r.WithContext(router.WithMatch(r.Context(), m)))
}

// instrument records request count and latency per service.
func (g *Gateway) instrument(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &recordingWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		g.collector.RecordRequest(service, r.Method, rec.status, time.Since(start))
	})
}

type recordingWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *recordingWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (g *Gateway) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Welcome to AI DevOps Assistant API Gateway",
	})
}

// handleHealth is the gateway's own liveness endpoint. It reports on the
// gateway process only, never on downstream services.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "api-gateway",
	})
}

// serviceHealthEntry is one service's row in the aggregation response.
type serviceHealthEntry struct {
	Status    string  `json:"status"`
	LatencyMS float64 `json:"latency_ms"`
	CheckedAt string  `json:"checked_at,omitempty"`
	Error     string  `json:"error,omitempty"`
}

func (g *Gateway) handleServiceHealth(w http.ResponseWriter, r *http.Request) {
	snapshot := g.checker.Snapshot()

	services := make(map[string]serviceHealthEntry, len(snapshot))
	overall := "healthy"
	for name, res := range snapshot {
		entry := serviceHealthEntry{
			Status:    string(res.Status),
			LatencyMS: float64(res.Latency) / float64(time.Millisecond),
			Error:     res.Error,
		}
		if !res.CheckedAt.IsZero() {
			entry.CheckedAt = res.CheckedAt.UTC().Format(time.RFC3339)
		}
		services[name] = entry
		if res.Status != health.StatusHealthy {
			overall = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   overall,
		"services": services,
	})
}

func wrap(h http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.Debug("response encode failed", zap.Error(err))
	}
}
