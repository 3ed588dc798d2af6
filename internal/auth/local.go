package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// InsecureFallback decodes token claims WITHOUT verifying the signature.
// It exists only so local development keeps working while user-management is
// down, and is reachable only when auth.debug_fallback is set.
type InsecureFallback struct {
	parser *jwt.Parser
}

// NewInsecureFallback creates the fallback decoder.
func NewInsecureFallback() *InsecureFallback {
	return &InsecureFallback{
		parser: jwt.NewParser(),
	}
}

// Decode extracts an identity from the token's unverified claims. Tokens that
// do not decode degrade to a fixed debug identity rather than failing, so the
// fallback never turns an outage into a 401.
func (f *InsecureFallback) Decode(token string) *Identity {
	claims := jwt.MapClaims{}
	if _, _, err := f.parser.ParseUnverified(token, claims); err != nil {
		return debugIdentity()
	}

	identity := &Identity{Active: true}
	if sub, err := claims.GetSubject(); err == nil {
		identity.Username = sub
	}
	if id, ok := claims["user_id"].(string); ok {
		identity.ID = id
	}
	if role, ok := claims["role"].(string); ok {
		identity.Role = role
	}

	if identity.ID == "" && identity.Username == "" {
		return debugIdentity()
	}
	if identity.Role == "" {
		identity.Role = "admin"
	}
	return identity
}

func debugIdentity() *Identity {
	return &Identity{
		ID:       "debug",
		Username: "debug",
		Role:     "admin",
		Active:   true,
	}
}
