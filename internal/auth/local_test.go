package auth

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return signed
}

func TestInsecureFallbackDecodesClaims(t *testing.T) {
	f := NewInsecureFallback()

	token := signedToken(t, jwt.MapClaims{
		"sub":     "alice",
		"user_id": "7",
		"role":    "user",
	})

	identity := f.Decode(token)
	if identity.Username != "alice" || identity.ID != "7" || identity.Role != "user" {
		t.Errorf("Unexpected identity: %+v", identity)
	}
	if !identity.Active {
		t.Error("Fallback identities are always active")
	}
}

func TestInsecureFallbackGarbageToken(t *testing.T) {
	f := NewInsecureFallback()

	identity := f.Decode("not.a.jwt")
	if identity.ID != "debug" || identity.Role != "admin" {
		t.Errorf("Expected debug identity for garbage token, got %+v", identity)
	}
}

func TestInsecureFallbackEmptyClaims(t *testing.T) {
	f := NewInsecureFallback()

	identity := f.Decode(signedToken(t, jwt.MapClaims{"exp": 9999999999}))
	if identity.ID != "debug" {
		t.Errorf("Token without subject should degrade to debug identity, got %+v", identity)
	}
}
