package proxy

import (
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/aidevops/gateway/internal/config"
	"github.com/aidevops/gateway/internal/logging"
)

// ErrCircuitOpen is returned by the transport when the service's breaker
// rejects the request without dialing the backend.
var ErrCircuitOpen = errors.New("circuit breaker open")

// TransportConfig configures the shared backend transport.
type TransportConfig struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	DialTimeout         time.Duration
	TLSHandshakeTimeout time.Duration
}

// DefaultTransportConfig is used when the pool is built without overrides.
var DefaultTransportConfig = TransportConfig{
	MaxIdleConns:        100,
	MaxIdleConnsPerHost: 10,
	IdleConnTimeout:     90 * time.Second,
	DialTimeout:         10 * time.Second,
	TLSHandshakeTimeout: 10 * time.Second,
}

// NewTransport builds the http.Transport shared by all backends. Compression
// stays on its default so the client transparently decodes gzip bodies and
// the gateway hands plain bytes to callers.
func NewTransport(cfg TransportConfig) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// TransportPool hands out a round tripper per service. All services share the
// underlying connection pool; when breakers are enabled each service gets its
// own, so one failing backend cannot trip the others.
type TransportPool struct {
	base  http.RoundTripper
	cb    config.CircuitBreakerConfig
	mu    sync.Mutex
	trips map[string]http.RoundTripper
}

// NewTransportPool builds a pool over the default transport.
func NewTransportPool(cb config.CircuitBreakerConfig) *TransportPool {
	return NewTransportPoolWith(NewTransport(DefaultTransportConfig), cb)
}

// NewTransportPoolWith builds a pool over an explicit base transport.
func NewTransportPoolWith(base http.RoundTripper, cb config.CircuitBreakerConfig) *TransportPool {
	return &TransportPool{
		base:  base,
		cb:    cb,
		trips: make(map[string]http.RoundTripper),
	}
}

// Get returns the round tripper for a service, creating it on first use.
func (p *TransportPool) Get(service string) http.RoundTripper {
	if !p.cb.Enabled {
		return p.base
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if rt, ok := p.trips[service]; ok {
		return rt
	}
	rt := newBreakerTransport(service, p.base, p.cb)
	p.trips[service] = rt
	return rt
}

// breakerTransport wraps a transport with a circuit breaker. Only transport
// errors count as failures: a backend that answers, even with a 5xx, is up.
type breakerTransport struct {
	next    http.RoundTripper
	breaker *gobreaker.CircuitBreaker[*http.Response]
}

func newBreakerTransport(service string, next http.RoundTripper, cfg config.CircuitBreakerConfig) *breakerTransport {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	openTimeout := cfg.OpenTimeout
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}
	halfOpen := cfg.HalfOpenRequests
	if halfOpen == 0 {
		halfOpen = 1
	}

	settings := gobreaker.Settings{
		Name:        service,
		MaxRequests: halfOpen,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn("circuit breaker state change",
				zap.String("service", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &breakerTransport{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[*http.Response](settings),
	}
}

func (t *breakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.breaker.Execute(func() (*http.Response, error) {
		return t.next.RoundTrip(req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrCircuitOpen
		}
		return nil, err
	}
	return resp, nil
}
