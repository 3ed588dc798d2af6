package router

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aidevops/gateway/internal/auth"
	"github.com/aidevops/gateway/internal/config"
)

// Route is one entry in the static routing table: a path prefix mapped to a
// logical service with an auth requirement. The table is built once at
// startup and never changes.
type Route struct {
	// Prefix is the gateway-side path prefix, e.g. "/api/v1/logs".
	Prefix string
	// Exact restricts the route to the prefix itself (no subpaths).
	Exact bool
	// Service is the logical backend name resolved via the registry.
	Service string
	// Rewrite replaces the matched prefix on the backend side.
	// Empty means the path is forwarded unchanged.
	Rewrite string
	// Auth is the route's gate requirement.
	Auth auth.Requirement

	segments []string
	order    int
}

// Match is the result of resolving a request path.
type Match struct {
	Route      *Route
	TargetPath string
}

// Table resolves request paths by longest matching prefix. Exact routes win
// over prefix routes of the same length.
type Table struct {
	routes []*Route
}

// NewTable validates and compiles a routing table. Two routes claiming the
// same prefix with the same match mode are a configuration error.
func NewTable(routes []Route) (*Table, error) {
	t := &Table{routes: make([]*Route, 0, len(routes))}

	seen := make(map[string]bool, len(routes))
	for i := range routes {
		r := routes[i]
		r.Prefix = "/" + strings.Trim(r.Prefix, "/")
		r.segments = splitPath(r.Prefix)
		r.order = i

		key := r.Prefix
		if r.Exact {
			key = "=" + key
		}
		if seen[key] {
			return nil, fmt.Errorf("overlapping route for prefix %q", r.Prefix)
		}
		seen[key] = true

		t.routes = append(t.routes, &r)
	}

	// Longest prefix first; exact before prefix at equal length;
	// insertion order as the final tie-breaker.
	sort.SliceStable(t.routes, func(i, j int) bool {
		si, sj := len(t.routes[i].segments), len(t.routes[j].segments)
		if si != sj {
			return si > sj
		}
		if t.routes[i].Exact != t.routes[j].Exact {
			return t.routes[i].Exact
		}
		return t.routes[i].order < t.routes[j].order
	})

	return t, nil
}

// Match resolves a request path, or returns nil when no route claims it.
func (t *Table) Match(path string) *Match {
	reqSegments := splitPath(path)

	for _, r := range t.routes {
		if r.Exact {
			if len(reqSegments) == len(r.segments) && pathHasPrefix(reqSegments, r.segments) {
				return &Match{Route: r, TargetPath: r.targetPath(path)}
			}
			continue
		}
		if pathHasPrefix(reqSegments, r.segments) {
			return &Match{Route: r, TargetPath: r.targetPath(path)}
		}
	}

	return nil
}

type matchKey struct{}

// WithMatch stores the resolved match on the request context so that the
// forwarding handler can pick up the rewritten target path.
func WithMatch(ctx context.Context, m *Match) context.Context {
	return context.WithValue(ctx, matchKey{}, m)
}

// MatchFromContext retrieves the match stored by WithMatch, or nil.
func MatchFromContext(ctx context.Context) *Match {
	m, _ := ctx.Value(matchKey{}).(*Match)
	return m
}

// Routes returns the compiled routes in match order.
func (t *Table) Routes() []*Route {
	return t.routes
}

// targetPath computes the backend-side path for a matched request path.
func (r *Route) targetPath(requestPath string) string {
	if r.Rewrite == "" {
		return requestPath
	}
	if r.Exact {
		return r.Rewrite
	}
	suffix := stripRoutePrefix(r.Prefix, requestPath)
	return singleJoinSlash(r.Rewrite, suffix)
}

// BuildRoutes derives the platform routing table from the configured
// services. Per service: an unauthenticated exact health route rewritten to
// the backend's health path, and an authenticated prefix route mirroring the
// gateway path. Login/register stay unauthenticated, and the admin prefix is
// role-gated with its own dispatch.
func BuildRoutes(services map[string]config.ServiceConfig, admin config.AdminConfig) []Route {
	names := make([]string, 0, len(services))
	for name := range services {
		names = append(names, name)
	}
	sort.Strings(names)

	routes := make([]Route, 0, 2*len(names)+len(admin.Services)+2)

	for _, name := range names {
		healthPath := services[name].HealthPath
		if healthPath == "" {
			healthPath = "/health"
		}
		routes = append(routes, Route{
			Prefix:  "/api/v1/" + name + "/health",
			Exact:   true,
			Service: name,
			Rewrite: healthPath,
			Auth:    auth.RequireNone,
		})
		routes = append(routes, Route{
			Prefix:  "/api/v1/" + name,
			Service: name,
			Auth:    auth.RequireUser,
		})
	}

	// Login and registration are forwarded to user-management without auth,
	// so that credential acquisition never deadlocks behind the gate.
	if _, ok := services["users"]; ok {
		routes = append(routes, Route{
			Prefix:  "/api/v1/auth",
			Service: "users",
			Auth:    auth.RequireNone,
		})
	}

	for _, name := range admin.Services {
		routes = append(routes, Route{
			Prefix:  "/api/v1/admin/" + name,
			Service: name,
			Auth:    auth.RequireAdmin,
		})
	}
	if admin.DefaultService != "" {
		routes = append(routes, Route{
			Prefix:  "/api/v1/admin",
			Service: admin.DefaultService,
			Auth:    auth.RequireAdmin,
		})
	}

	return routes
}

// splitPath splits a URL path into non-empty segments.
func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// pathHasPrefix checks if reqSegments starts with prefixSegments.
func pathHasPrefix(reqSegments, prefixSegments []string) bool {
	if len(reqSegments) < len(prefixSegments) {
		return false
	}
	for i, seg := range prefixSegments {
		if reqSegments[i] != seg {
			return false
		}
	}
	return true
}

// stripRoutePrefix removes the route's path prefix from the request path.
func stripRoutePrefix(pattern, path string) string {
	pattern = strings.Trim(pattern, "/")
	path = strings.Trim(path, "/")

	if pattern == "" {
		return "/" + path
	}

	patternParts := strings.Split(pattern, "/")
	pathParts := strings.Split(path, "/")

	if len(pathParts) <= len(patternParts) {
		return "/"
	}

	suffix := strings.Join(pathParts[len(patternParts):], "/")
	if suffix == "" {
		return "/"
	}
	return "/" + suffix
}

// singleJoinSlash joins two URL path segments with exactly one slash.
func singleJoinSlash(a, b string) string {
	aslash := strings.HasSuffix(a, "/")
	bslash := strings.HasPrefix(b, "/")
	switch {
	case aslash && bslash:
		return a + b[1:]
	case !aslash && !bslash:
		return a + "/" + b
	}
	return a + b
}
