package config

import (
	"strings"
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	loader := NewLoader()
	cfg, err := loader.Parse([]byte("listen: \":9090\"\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Listen != ":9090" {
		t.Errorf("Expected listen :9090, got %s", cfg.Listen)
	}
	if cfg.Proxy.Timeout != 30*time.Second {
		t.Errorf("Expected default proxy timeout 30s, got %v", cfg.Proxy.Timeout)
	}
	if cfg.Auth.Timeout != 10*time.Second {
		t.Errorf("Expected default auth timeout 10s, got %v", cfg.Auth.Timeout)
	}
	if len(cfg.Services) != 9 {
		t.Errorf("Expected 9 default services, got %d", len(cfg.Services))
	}
	if cfg.Services["users"].URL != "http://user-management:8081" {
		t.Errorf("Unexpected default users URL: %s", cfg.Services["users"].URL)
	}
	if cfg.Services["predictions"].Timeout != 120*time.Second {
		t.Errorf("Expected extended predictions timeout, got %v", cfg.Services["predictions"].Timeout)
	}
}

func TestParseOverrides(t *testing.T) {
	yamlData := `
listen: ":8088"
auth:
  enabled: false
  timeout: 5s
proxy:
  timeout: 45s
  max_body_size: 1048576
services:
  users:
    url: http://localhost:18081
`
	loader := NewLoader()
	cfg, err := loader.Parse([]byte(yamlData))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Auth.Enabled {
		t.Error("Expected auth disabled")
	}
	if cfg.Proxy.Timeout != 45*time.Second {
		t.Errorf("Expected 45s, got %v", cfg.Proxy.Timeout)
	}
	if cfg.Proxy.MaxBodySize != 1048576 {
		t.Errorf("Expected 1MiB max body, got %d", cfg.Proxy.MaxBodySize)
	}
	if cfg.Services["users"].URL != "http://localhost:18081" {
		t.Errorf("Expected overridden users URL, got %s", cfg.Services["users"].URL)
	}
}

func TestEnvVarExpansion(t *testing.T) {
	t.Setenv("USER_MANAGEMENT_URL", "http://users.internal:8081")

	yamlData := `
services:
  users:
    url: ${USER_MANAGEMENT_URL}
`
	loader := NewLoader()
	cfg, err := loader.Parse([]byte(yamlData))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Services["users"].URL != "http://users.internal:8081" {
		t.Errorf("Expected env-expanded URL, got %s", cfg.Services["users"].URL)
	}
}

func TestEnvVarUnsetKeepsPlaceholder(t *testing.T) {
	loader := NewLoader()
	out := loader.expandEnvVars("url: ${DEFINITELY_NOT_SET_VAR}")
	if out != "url: ${DEFINITELY_NOT_SET_VAR}" {
		t.Errorf("Unset variable should keep placeholder, got %q", out)
	}
}

func TestValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "reserved service name",
			yaml:    "services:\n  admin:\n    url: http://x:1\n",
			wantErr: "reserved",
		},
		{
			name:    "bad service url",
			yaml:    "services:\n  users:\n    url: \"not a url\"\n",
			wantErr: "users",
		},
		{
			name:    "missing validate url",
			yaml:    "auth:\n  enabled: true\n  validate_url: \"\"\n",
			wantErr: "validate_url",
		},
		{
			name:    "unknown admin service",
			yaml:    "admin:\n  default_service: nope\n",
			wantErr: "admin.default_service",
		},
		{
			name:    "zero proxy timeout",
			yaml:    "proxy:\n  timeout: 0s\n",
			wantErr: "proxy.timeout",
		},
		{
			name:    "rate limit without rps",
			yaml:    "rate_limit:\n  enabled: true\n  rps: 0\n",
			wantErr: "rate_limit.rps",
		},
	}

	loader := NewLoader()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loader.Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	loader := NewLoader()
	if _, err := loader.Load("/nonexistent/gateway.yaml"); err == nil {
		t.Error("Expected error for missing file")
	}
}
