package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aidevops/gateway/internal/config"
)

func TestServerRunContextShutsDownCleanly(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer backend.Close()

	cfg := config.DefaultConfig()
	cfg.Listen = "127.0.0.1:0"
	cfg.Auth.Enabled = false
	cfg.Services = map[string]config.ServiceConfig{
		"logs": {URL: backend.URL},
	}
	cfg.Admin = config.AdminConfig{}
	cfg.Server.ShutdownTimeout = 2 * time.Second

	srv, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.RunContext(ctx)
	}()

	// Give the listener a moment to come up, then trigger shutdown.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("RunContext: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestNewServerRejectsBadConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Services = map[string]config.ServiceConfig{
		"logs": {URL: "://not-a-url"},
	}
	if _, err := NewServer(cfg); err == nil {
		t.Fatal("expected an error for an invalid service URL")
	}
}
