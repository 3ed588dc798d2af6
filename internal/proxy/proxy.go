// Package proxy forwards gateway requests to downstream services. The
// forwarder buffers the request body, rewrites addressing headers, and relays
// the backend response verbatim, whatever its status code. Backends that
// cannot be reached surface as 503 with the failure cause in the detail.
package proxy

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aidevops/gateway/internal/config"
	"github.com/aidevops/gateway/internal/errors"
	"github.com/aidevops/gateway/internal/logging"
	"github.com/aidevops/gateway/internal/registry"
	"github.com/aidevops/gateway/internal/router"
)

// requestStripHeaders are removed before forwarding. Host and Content-Length
// are rebuilt for the backend, Accept-Encoding is left to the transport so
// response decoding stays transparent, and the rest are hop-by-hop.
var requestStripHeaders = []string{
	"Host",
	"Content-Length",
	"Transfer-Encoding",
	"Connection",
	"Accept-Encoding",
	"Keep-Alive",
	"Proxy-Connection",
	"Upgrade",
}

// responseStripHeaders are dropped from backend responses. The forwarder
// writes decoded bodies, so encoding headers would mislead the client.
var responseStripHeaders = []string{
	"Content-Encoding",
	"Transfer-Encoding",
	"Connection",
}

// Forwarder relays matched requests to their backend service.
type Forwarder struct {
	registry       *registry.Registry
	pool           *TransportPool
	defaultTimeout time.Duration
	maxBodySize    int64
}

// New builds a forwarder over the given registry.
func New(reg *registry.Registry, pool *TransportPool, cfg config.ProxyConfig) *Forwarder {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Forwarder{
		registry:       reg,
		pool:           pool,
		defaultTimeout: timeout,
		maxBodySize:    cfg.MaxBodySize,
	}
}

// Handler returns the forwarding handler for one route. Service resolution
// and transport selection happen once here, not per request.
func (f *Forwarder) Handler(route *router.Route) (http.Handler, error) {
	svc, ok := f.registry.Lookup(route.Service)
	if !ok {
		return nil, errors.New(http.StatusServiceUnavailable, "unknown service "+route.Service)
	}

	transport := f.pool.Get(svc.Name)
	timeout := svc.Timeout
	if timeout <= 0 {
		timeout = f.defaultTimeout
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.forward(w, r, svc, transport, timeout)
	}), nil
}

func (f *Forwarder) forward(w http.ResponseWriter, r *http.Request, svc *registry.Service, transport http.RoundTripper, timeout time.Duration) {
	targetPath := r.URL.Path
	if m := router.MatchFromContext(r.Context()); m != nil {
		targetPath = m.TargetPath
	}

	body, err := readBody(w, r, f.maxBodySize)
	if err != nil {
		var maxErr *http.MaxBytesError
		if stderrors.As(err, &maxErr) {
			errors.ErrPayloadTooLarge.WriteJSON(w)
			return
		}
		errors.ErrInternalServer.WriteJSON(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	target := *svc.BaseURL
	target.Path = targetPath
	target.RawQuery = r.URL.RawQuery

	req, err := http.NewRequestWithContext(ctx, r.Method, target.String(), bytes.NewReader(body))
	if err != nil {
		errors.ErrInternalServer.WriteJSON(w)
		return
	}
	req.ContentLength = int64(len(body))

	copyRequestHeaders(req.Header, r.Header)
	setForwardedHeaders(req.Header, r)

	resp, err := transport.RoundTrip(req)
	if err != nil {
		f.writeUnavailable(w, r, svc, err)
		return
	}
	defer resp.Body.Close()

	copyResponseHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		// Headers are already on the wire; nothing left but to log.
		logging.Debug("response copy interrupted",
			zap.String("service", svc.Name),
			zap.Error(err))
	}
}

// writeUnavailable maps a transport failure to the 503 body clients depend
// on, with a cause they can act on rather than a raw dial error.
func (f *Forwarder) writeUnavailable(w http.ResponseWriter, r *http.Request, svc *registry.Service, err error) {
	cause := "connection failed"
	switch {
	case stderrors.Is(err, ErrCircuitOpen):
		cause = "circuit breaker open"
	case stderrors.Is(err, context.DeadlineExceeded):
		cause = "request timed out"
	case stderrors.Is(err, context.Canceled):
		cause = "request canceled"
	default:
		var netErr net.Error
		if stderrors.As(err, &netErr) && netErr.Timeout() {
			cause = "request timed out"
		}
	}

	logging.Error("backend request failed",
		zap.String("service", svc.Name),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err))

	errors.ErrServiceUnavailable.WithDetail("Service unavailable: " + cause).WriteJSON(w)
}

// readBody drains the request body, bounded when a limit is configured.
func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	reader := r.Body
	if limit > 0 {
		reader = http.MaxBytesReader(w, r.Body, limit)
	}
	return io.ReadAll(reader)
}

func copyRequestHeaders(dst, src http.Header) {
	strip := make(map[string]bool, len(requestStripHeaders)+4)
	for _, h := range requestStripHeaders {
		strip[h] = true
	}
	// Headers named by Connection are hop-by-hop too.
	for _, v := range src.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				strip[http.CanonicalHeaderKey(name)] = true
			}
		}
	}

	for name, values := range src {
		if strip[name] {
			continue
		}
		dst[name] = values
	}
}

func copyResponseHeaders(dst, src http.Header) {
	strip := make(map[string]bool, len(responseStripHeaders))
	for _, h := range responseStripHeaders {
		strip[h] = true
	}
	for name, values := range src {
		if strip[name] {
			continue
		}
		for _, v := range values {
			dst.Add(name, v)
		}
	}
}

func setForwardedHeaders(h http.Header, r *http.Request) {
	clientIP := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		clientIP = host
	}
	if prior := r.Header.Get("X-Forwarded-For"); prior != "" {
		clientIP = prior + ", " + clientIP
	}
	h.Set("X-Forwarded-For", clientIP)

	proto := "http"
	if r.TLS != nil {
		proto = "https"
	}
	h.Set("X-Forwarded-Proto", proto)
	h.Set("X-Forwarded-Host", r.Host)
}
