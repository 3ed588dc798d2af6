package config

import "time"

// Config is the root gateway configuration. It is loaded once at startup and
// treated as immutable afterwards.
type Config struct {
	Listen    string                   `yaml:"listen"`
	Server    ServerConfig             `yaml:"server"`
	Logging   LoggingConfig            `yaml:"logging"`
	Auth      AuthConfig               `yaml:"auth"`
	Proxy     ProxyConfig              `yaml:"proxy"`
	CORS      CORSConfig               `yaml:"cors"`
	RateLimit RateLimitConfig          `yaml:"rate_limit"`
	Services  map[string]ServiceConfig `yaml:"services"`
	Admin     AdminConfig              `yaml:"admin"`
	Health    HealthConfig             `yaml:"health"`
}

// ServerConfig holds timeouts for the gateway's own listener.
type ServerConfig struct {
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig configures the structured logger and the access log.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	AccessLog  *bool  `yaml:"access_log"` // nil = enabled
}

// AuthConfig configures the token validator.
//
// Enabled=false is a development-mode bypass: every request passes the gate
// anonymously. DebugFallback trusts locally decoded, unverified token claims
// when the user-management service is unreachable; it must never be set in
// production.
type AuthConfig struct {
	Enabled       bool          `yaml:"enabled"`
	ValidateURL   string        `yaml:"validate_url"`
	Timeout       time.Duration `yaml:"timeout"`
	DebugFallback bool          `yaml:"debug_fallback"`
	CacheTTL      time.Duration `yaml:"cache_ttl"` // 0 = no caching
	CacheSize     int           `yaml:"cache_size"`
	InjectHeaders bool          `yaml:"inject_headers"`
}

// ProxyConfig configures request forwarding.
type ProxyConfig struct {
	Timeout        time.Duration        `yaml:"timeout"`
	MaxBodySize    int64                `yaml:"max_body_size"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig configures per-service failure isolation.
type CircuitBreakerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	FailureThreshold uint32        `yaml:"failure_threshold"`
	OpenTimeout      time.Duration `yaml:"open_timeout"`
	HalfOpenRequests uint32        `yaml:"half_open_requests"`
}

// CORSConfig configures cross-origin headers on gateway responses.
type CORSConfig struct {
	Enabled          bool     `yaml:"enabled"`
	AllowedOrigins   []string `yaml:"allowed_origins"`
	AllowedMethods   []string `yaml:"allowed_methods"`
	AllowedHeaders   []string `yaml:"allowed_headers"`
	AllowCredentials bool     `yaml:"allow_credentials"`
	MaxAge           int      `yaml:"max_age"`
}

// RateLimitConfig configures per-client request rate limiting.
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled"`
	RPS     float64 `yaml:"rps"`
	Burst   int     `yaml:"burst"`
}

// ServiceConfig describes one downstream service.
type ServiceConfig struct {
	URL        string        `yaml:"url"`
	Timeout    time.Duration `yaml:"timeout"`     // 0 = proxy.timeout
	HealthPath string        `yaml:"health_path"` // default "/health"
}

// AdminConfig maps /api/v1/admin/{service}/... sub-prefixes to services.
// Requests under an unmapped admin sub-path go to DefaultService.
type AdminConfig struct {
	DefaultService string   `yaml:"default_service"`
	Services       []string `yaml:"services"`
}

// HealthConfig configures the active backend health checker.
type HealthConfig struct {
	Interval       time.Duration `yaml:"interval"`
	Timeout        time.Duration `yaml:"timeout"`
	HealthyAfter   int           `yaml:"healthy_after"`
	UnhealthyAfter int           `yaml:"unhealthy_after"`
}

// DefaultConfig returns the configuration used when fields are absent from
// the YAML file. Service URLs default to the platform's compose hostnames.
func DefaultConfig() *Config {
	return &Config{
		Listen: ":8080",
		Server: ServerConfig{
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
			ShutdownTimeout:   15 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Auth: AuthConfig{
			Enabled:     true,
			ValidateURL: "http://user-management:8081/api/v1/users/validate",
			Timeout:     10 * time.Second,
			CacheSize:   1024,
		},
		Proxy: ProxyConfig{
			Timeout:     30 * time.Second,
			MaxBodySize: 10 << 20,
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:          true,
				FailureThreshold: 5,
				OpenTimeout:      30 * time.Second,
				HalfOpenRequests: 1,
			},
		},
		CORS: CORSConfig{
			Enabled:        true,
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
		},
		Services: map[string]ServiceConfig{
			"users":         {URL: "http://user-management:8081"},
			"monitoring":    {URL: "http://infrastructure-monitor:8082"},
			"predictions":   {URL: "http://ai-prediction:8083", Timeout: 120 * time.Second},
			"logs":          {URL: "http://log-analysis:8084"},
			"cicd":          {URL: "http://cicd-optimization:8085"},
			"resources":     {URL: "http://resource-optimization:8086"},
			"notifications": {URL: "http://notification:8087"},
			"nlp":           {URL: "http://natural-language:8088", Timeout: 120 * time.Second},
			"reports":       {URL: "http://reporting:8089"},
		},
		Admin: AdminConfig{
			DefaultService: "users",
			Services:       []string{"users", "monitoring"},
		},
		Health: HealthConfig{
			Interval:       10 * time.Second,
			Timeout:        5 * time.Second,
			HealthyAfter:   2,
			UnhealthyAfter: 3,
		},
	}
}

// AccessLogEnabled reports whether access logging is on (nil means yes).
func (c LoggingConfig) AccessLogEnabled() bool {
	return c.AccessLog == nil || *c.AccessLog
}
