package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/goccy/go-yaml"
)

// reservedServiceNames are path segments the router claims for itself.
// "auth" is the unauthenticated login/register prefix (forwarded to users)
// and "admin" is the role-gated prefix with its own dispatch.
var reservedServiceNames = map[string]bool{
	"auth":  true,
	"admin": true,
}

// Loader handles configuration loading and parsing.
type Loader struct {
	envPattern *regexp.Regexp
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		envPattern: regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`),
	}
}

// Load reads and parses a configuration file.
func (l *Loader) Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return l.Parse(data)
}

// Parse parses configuration from YAML bytes on top of DefaultConfig.
func (l *Loader) Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := l.expandEnvVars(string(data))

	// Start with defaults
	cfg := DefaultConfig()

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := l.validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} with environment variable values.
func (l *Loader) expandEnvVars(input string) string {
	return l.envPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := strings.TrimPrefix(strings.TrimSuffix(match, "}"), "${")
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match // Keep original if env var not set
	})
}

// validate checks configuration for errors.
func (l *Loader) validate(cfg *Config) error {
	if cfg.Listen == "" {
		return fmt.Errorf("listen address is required")
	}

	if len(cfg.Services) == 0 {
		return fmt.Errorf("at least one service is required")
	}

	for name, svc := range cfg.Services {
		if name == "" {
			return fmt.Errorf("service name must not be empty")
		}
		if reservedServiceNames[name] {
			return fmt.Errorf("service name %q is reserved", name)
		}
		if strings.ContainsAny(name, "/ ") {
			return fmt.Errorf("service %q: name must be a single path segment", name)
		}
		if err := validateServiceURL(name, svc.URL); err != nil {
			return err
		}
		if svc.Timeout < 0 {
			return fmt.Errorf("service %q: timeout must not be negative", name)
		}
	}

	if cfg.Auth.Enabled {
		if cfg.Auth.ValidateURL == "" {
			return fmt.Errorf("auth.validate_url is required when auth is enabled")
		}
		if _, err := url.ParseRequestURI(cfg.Auth.ValidateURL); err != nil {
			return fmt.Errorf("auth.validate_url is invalid: %w", err)
		}
	}
	if cfg.Auth.Timeout <= 0 {
		return fmt.Errorf("auth.timeout must be positive")
	}
	if cfg.Auth.CacheTTL > 0 && cfg.Auth.CacheSize <= 0 {
		return fmt.Errorf("auth.cache_size must be positive when caching is enabled")
	}

	if cfg.Proxy.Timeout <= 0 {
		return fmt.Errorf("proxy.timeout must be positive")
	}
	if cfg.Proxy.MaxBodySize <= 0 {
		return fmt.Errorf("proxy.max_body_size must be positive")
	}

	if cfg.Admin.DefaultService != "" {
		if _, ok := cfg.Services[cfg.Admin.DefaultService]; !ok {
			return fmt.Errorf("admin.default_service %q is not a configured service", cfg.Admin.DefaultService)
		}
	}
	seen := make(map[string]bool, len(cfg.Admin.Services))
	for _, name := range cfg.Admin.Services {
		if _, ok := cfg.Services[name]; !ok {
			return fmt.Errorf("admin service %q is not a configured service", name)
		}
		if seen[name] {
			return fmt.Errorf("duplicate admin service %q", name)
		}
		seen[name] = true
	}

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.RPS <= 0 {
			return fmt.Errorf("rate_limit.rps must be positive")
		}
		if cfg.RateLimit.Burst <= 0 {
			return fmt.Errorf("rate_limit.burst must be positive")
		}
	}

	if cfg.Health.Interval <= 0 {
		return fmt.Errorf("health.interval must be positive")
	}
	if cfg.Health.Timeout <= 0 {
		return fmt.Errorf("health.timeout must be positive")
	}

	return nil
}

func validateServiceURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("service %q: url is required", name)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("service %q: invalid url: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("service %q: url scheme must be http or https", name)
	}
	if u.Host == "" {
		return fmt.Errorf("service %q: url host is required", name)
	}
	return nil
}
