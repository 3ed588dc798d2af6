package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aidevops/gateway/internal/errors"
)

// fakeValidator counts invocations and returns a fixed outcome.
type fakeValidator struct {
	calls   int
	authCtx *Context
	err     error
}

func (f *fakeValidator) Validate(ctx context.Context, authorization string) (*Context, error) {
	f.calls++
	return f.authCtx, f.err
}

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestGateRequireNoneSkipsValidator(t *testing.T) {
	v := &fakeValidator{}
	var called bool

	handler := Gate(v, RequireNone, false)(okHandler(&called))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/v1/users/health", nil))

	if v.calls != 0 {
		t.Errorf("Whitelisted route must never invoke the validator, got %d calls", v.calls)
	}
	if !called {
		t.Error("Handler should run")
	}
}

func TestGateRejectsWith401(t *testing.T) {
	v := &fakeValidator{err: errors.ErrUnauthorized}
	var called bool

	handler := Gate(v, RequireUser, false)(okHandler(&called))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/api/v1/logs/search", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rr.Code)
	}
	if rr.Header().Get("WWW-Authenticate") == "" {
		t.Error("401 responses should carry WWW-Authenticate")
	}
	if called {
		t.Error("Handler must not run after rejection")
	}
}

func TestGateAdminRoleEnforced(t *testing.T) {
	v := &fakeValidator{authCtx: &Context{Identity: &Identity{ID: "1", Username: "demo", Role: "user"}}}
	var called bool

	handler := Gate(v, RequireAdmin, false)(okHandler(&called))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/api/v1/admin/users", nil))

	if rr.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for non-admin, got %d", rr.Code)
	}
	if called {
		t.Error("Backend must never see a request that failed the role check")
	}
}

func TestGateAdminAllowed(t *testing.T) {
	v := &fakeValidator{authCtx: &Context{Identity: &Identity{ID: "1", Username: "root", Role: "admin"}}}
	var called bool

	handler := Gate(v, RequireAdmin, false)(okHandler(&called))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/api/v1/admin/users", nil))

	if rr.Code != http.StatusOK || !called {
		t.Errorf("Admin should pass, got %d", rr.Code)
	}
}

func TestGateInjectsHeaders(t *testing.T) {
	v := &fakeValidator{authCtx: &Context{Identity: &Identity{ID: "42", Username: "demo", Role: "user"}}}
	var got http.Header

	handler := Gate(v, RequireUser, true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	if got.Get("X-User-Id") != "42" || got.Get("X-User-Name") != "demo" || got.Get("X-User-Role") != "user" {
		t.Errorf("Expected injected identity headers, got %v", got)
	}
}

func TestGateAnonymousNoSynthesizedIdentity(t *testing.T) {
	v := &fakeValidator{authCtx: &Context{Anonymous: true}}
	var got http.Header

	handler := Gate(v, RequireUser, true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	if got.Get("X-User-Id") != "" {
		t.Error("Anonymous pass-through must not synthesize identity headers")
	}
}

func TestIdentityFromRequest(t *testing.T) {
	v := &fakeValidator{authCtx: &Context{Identity: &Identity{ID: "9"}}}
	var identity *Identity

	handler := Gate(v, RequireUser, false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity = IdentityFromRequest(r)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	if identity == nil || identity.ID != "9" {
		t.Errorf("Expected identity in context, got %+v", identity)
	}
}
