// Package auth turns a bearer credential into an authenticated identity by
// delegating to the user-management service. Signature verification lives
// there; the gateway only gates requests on the outcome.
package auth

import (
	"context"
	"strings"
)

// Identity describes the authenticated principal as reported by
// user-management's validate endpoint.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Active   bool   `json:"is_active"`
}

// IsAdmin reports whether the identity carries the admin role.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == "admin"
}

// Context is the outcome of validating a request's credentials.
// Exactly one of Anonymous or Identity is meaningful; a rejection is
// reported as an error by the Validator instead.
type Context struct {
	// Anonymous is set when authentication is disabled and no identity
	// was established.
	Anonymous bool
	// Identity is the validated principal.
	Identity *Identity
	// Degraded marks identities produced by the insecure debug fallback
	// while user-management was unreachable.
	Degraded bool
}

// Validator turns an Authorization header value into a Context.
// Implementations must be safe for concurrent use.
type Validator interface {
	Validate(ctx context.Context, authorization string) (*Context, error)
}

// bearerToken extracts the token from an Authorization header value.
func bearerToken(authorization string) (string, bool) {
	if len(authorization) < 8 {
		return "", false
	}
	scheme := authorization[:7]
	if !strings.EqualFold(scheme, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(authorization[7:])
	if token == "" {
		return "", false
	}
	return token, true
}
