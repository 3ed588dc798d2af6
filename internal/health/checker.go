// Package health actively probes downstream service health endpoints and
// keeps the last known status per service for the aggregation endpoint.
package health

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aidevops/gateway/internal/config"
	"github.com/aidevops/gateway/internal/logging"
	"github.com/aidevops/gateway/internal/registry"
)

// Status is the gateway's view of one downstream service.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusUnknown   Status = "unknown"
)

// Result is a point-in-time status snapshot for a service.
type Result struct {
	Service   string
	Status    Status
	Latency   time.Duration
	Error     string
	CheckedAt time.Time
}

type serviceState struct {
	service      *registry.Service
	status       Status
	prevNotified Status
	result       Result
	pass         int
	fail         int
}

// Checker probes every registered service on a fixed interval. A service
// flips healthy after HealthyAfter consecutive passes and unhealthy after
// UnhealthyAfter consecutive failures, so a single flaky probe never flaps
// the reported status.
type Checker struct {
	client         *http.Client
	interval       time.Duration
	healthyAfter   int
	unhealthyAfter int
	onChange       func(service string, status Status)

	mu     sync.RWMutex
	states map[string]*serviceState

	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Checker.
type Option func(*Checker)

// WithOnChange registers a callback fired on every status transition.
func WithOnChange(fn func(service string, status Status)) Option {
	return func(c *Checker) { c.onChange = fn }
}

// NewChecker builds a checker over all services in the registry.
func NewChecker(reg *registry.Registry, cfg config.HealthConfig, opts ...Option) *Checker {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	healthyAfter := cfg.HealthyAfter
	if healthyAfter <= 0 {
		healthyAfter = 2
	}
	unhealthyAfter := cfg.UnhealthyAfter
	if unhealthyAfter <= 0 {
		unhealthyAfter = 3
	}

	c := &Checker{
		client:         &http.Client{Timeout: timeout},
		interval:       interval,
		healthyAfter:   healthyAfter,
		unhealthyAfter: unhealthyAfter,
		states:         make(map[string]*serviceState, reg.Len()),
	}
	for _, name := range reg.Names() {
		svc, _ := reg.Lookup(name)
		c.states[name] = &serviceState{
			service:      svc,
			status:       StatusUnknown,
			prevNotified: StatusUnknown,
			result:       Result{Service: name, Status: StatusUnknown},
		}
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start launches the probe loop. It returns immediately; probing continues
// until Stop is called or ctx is canceled.
func (c *Checker) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})

	go func() {
		defer close(c.done)

		c.checkAll(ctx)

		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.checkAll(ctx)
			}
		}
	}()
}

// Stop halts probing and waits for the loop to exit.
func (c *Checker) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
}

// Snapshot returns the current status of every service, keyed by name.
func (c *Checker) Snapshot() map[string]Result {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]Result, len(c.states))
	for name, state := range c.states {
		out[name] = state.result
	}
	return out
}

// IsHealthy reports whether a service's last settled status is healthy.
func (c *Checker) IsHealthy(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	state, ok := c.states[name]
	return ok && state.status == StatusHealthy
}

func (c *Checker) checkAll(ctx context.Context) {
	c.mu.RLock()
	names := make([]string, 0, len(c.states))
	for name := range c.states {
		names = append(names, name)
	}
	c.mu.RUnlock()

	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			c.check(ctx, name)
		}(name)
	}
	wg.Wait()
}

func (c *Checker) check(ctx context.Context, name string) {
	c.mu.RLock()
	state, ok := c.states[name]
	if !ok {
		c.mu.RUnlock()
		return
	}
	svc := state.service
	c.mu.RUnlock()

	target := *svc.BaseURL
	target.Path = svc.HealthPath

	start := time.Now()
	healthy := false
	var probeErr error

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		probeErr = err
	} else if resp, err := c.client.Do(req); err != nil {
		probeErr = err
	} else {
		resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 400 {
			healthy = true
		} else {
			probeErr = fmt.Errorf("unhealthy status code: %d", resp.StatusCode)
		}
	}

	c.record(name, healthy, time.Since(start), probeErr)
}

func (c *Checker) record(name string, healthy bool, latency time.Duration, probeErr error) {
	c.mu.Lock()
	state, ok := c.states[name]
	if !ok {
		c.mu.Unlock()
		return
	}

	if healthy {
		state.fail = 0
		state.pass++
		if state.pass >= c.healthyAfter {
			state.status = StatusHealthy
		}
	} else {
		state.pass = 0
		state.fail++
		if state.fail >= c.unhealthyAfter {
			state.status = StatusUnhealthy
		}
	}

	errText := ""
	if probeErr != nil {
		errText = probeErr.Error()
	}
	state.result = Result{
		Service:   name,
		Status:    state.status,
		Latency:   latency,
		Error:     errText,
		CheckedAt: time.Now(),
	}

	changed := Status("")
	if prev := state.prevNotified; prev != state.status {
		state.prevNotified = state.status
		changed = state.status
	}
	c.mu.Unlock()

	if changed != "" {
		logging.Info("service health changed",
			zap.String("service", name),
			zap.String("status", string(changed)))
		if c.onChange != nil {
			c.onChange(name, changed)
		}
	}
}
