package auth

import (
	"context"
	"net/http"

	"github.com/aidevops/gateway/internal/errors"
	"github.com/aidevops/gateway/internal/middleware"
)

// Requirement is a route's authentication requirement.
type Requirement int

const (
	// RequireNone bypasses the validator entirely (health probes, login).
	RequireNone Requirement = iota
	// RequireUser needs a valid bearer token.
	RequireUser
	// RequireAdmin needs a valid bearer token carrying the admin role.
	RequireAdmin
)

type identityKey struct{}

// IdentityFromRequest returns the validated identity, if any.
func IdentityFromRequest(r *http.Request) *Identity {
	if id, ok := r.Context().Value(identityKey{}).(*Identity); ok {
		return id
	}
	return nil
}

// Gate returns the auth middleware for a route. The gate decision completes
// strictly before the wrapped handler (and therefore any backend call) runs.
// Whitelisted routes never invoke the validator.
func Gate(v Validator, requirement Requirement, injectHeaders bool) middleware.Middleware {
	return func(next http.Handler) http.Handler {
		if requirement == RequireNone {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx, err := v.Validate(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				ge, ok := errors.IsGatewayError(err)
				if !ok {
					ge = errors.ErrInternalServer
				}
				if ge.Code == http.StatusUnauthorized {
					w.Header().Set("WWW-Authenticate", `Bearer`)
				}
				ge.WriteJSON(w)
				return
			}

			if authCtx.Anonymous {
				// Auth disabled: pass through with no synthesized identity.
				next.ServeHTTP(w, r)
				return
			}

			if requirement == RequireAdmin && !authCtx.Identity.IsAdmin() {
				errors.ErrForbidden.WriteJSON(w)
				return
			}

			if injectHeaders {
				r.Header.Set("X-User-Id", authCtx.Identity.ID)
				r.Header.Set("X-User-Name", authCtx.Identity.Username)
				r.Header.Set("X-User-Role", authCtx.Identity.Role)
			}

			ctx := context.WithValue(r.Context(), identityKey{}, authCtx.Identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
