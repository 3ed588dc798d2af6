package registry

import (
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/aidevops/gateway/internal/config"
)

// Service is one downstream service entry. Entries are resolved once at
// startup and never mutated afterwards.
type Service struct {
	Name       string
	BaseURL    *url.URL
	Timeout    time.Duration // 0 = use the proxy default
	HealthPath string
}

// Registry maps logical service names to backends. It is immutable after New,
// so lookups need no locking.
type Registry struct {
	services map[string]*Service
	names    []string
}

// New builds a registry from configuration.
func New(cfgs map[string]config.ServiceConfig) (*Registry, error) {
	r := &Registry{
		services: make(map[string]*Service, len(cfgs)),
		names:    make([]string, 0, len(cfgs)),
	}

	for name, sc := range cfgs {
		base, err := url.Parse(sc.URL)
		if err != nil {
			return nil, fmt.Errorf("service %q: invalid url: %w", name, err)
		}
		healthPath := sc.HealthPath
		if healthPath == "" {
			healthPath = "/health"
		}
		r.services[name] = &Service{
			Name:       name,
			BaseURL:    base,
			Timeout:    sc.Timeout,
			HealthPath: healthPath,
		}
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)

	return r, nil
}

// Lookup resolves a logical service name.
func (r *Registry) Lookup(name string) (*Service, bool) {
	svc, ok := r.services[name]
	return svc, ok
}

// Names returns all service names in sorted order.
func (r *Registry) Names() []string {
	return r.names
}

// Len returns the number of registered services.
func (r *Registry) Len() int {
	return len(r.services)
}
