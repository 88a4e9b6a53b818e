// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Definitions DefinitionsConfig `yaml:"definitions"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	OpenAPI     OpenAPIConfig     `yaml:"openapi"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
}

// Addr returns the host:port the server binds to.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DefinitionsConfig locates the route and schema manifests.
type DefinitionsConfig struct {
	RoutesFile string `yaml:"routes_file"`
	SchemaDir  string `yaml:"schema_dir"`
	Watch      bool   `yaml:"watch"` // reload on manifest file changes
}

// RateLimitConfig configures per-client rate limiting.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"` // Enable /metrics endpoint
}

// OpenAPIConfig configures the generated OpenAPI document and docs UI.
type OpenAPIConfig struct {
	Enabled   bool   `yaml:"enabled"` // Enable /openapi.json and /docs
	Title     string `yaml:"title"`
	Version   string `yaml:"version"`
	ServerURL string `yaml:"server_url"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(&cfg)

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
// This is useful for Docker deployments where no config file is needed.
//
// Environment variables:
//
//	INTAKE_ROUTES_FILE       - Routes manifest path (required)
//	INTAKE_SCHEMA_DIR        - Schema manifest directory
//	INTAKE_WATCH             - Reload on manifest changes (default: false)
//	INTAKE_SERVER_HOST       - Server host (default: 0.0.0.0)
//	INTAKE_SERVER_PORT       - Server port (default: 8080)
//	INTAKE_RATELIMIT_ENABLED - Enable rate limiting (default: false)
//	INTAKE_LOG_LEVEL         - Log level: debug, info, warn, error (default: info)
//	INTAKE_LOG_FORMAT        - Log format: json or console (default: json)
//	INTAKE_METRICS_ENABLED   - Enable /metrics endpoint (default: false)
//	INTAKE_OPENAPI_ENABLED   - Enable /openapi.json and /docs (default: false)
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback tries to load from file, falls back to environment variables.
// This is the recommended method for Docker deployments.
func LoadWithFallback(path string) (*Config, error) {
	// Try loading from file first
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	// Check if we have enough env vars to run
	if os.Getenv("INTAKE_ROUTES_FILE") != "" {
		return LoadFromEnv()
	}

	// No config available
	return nil, fmt.Errorf("no configuration found: provide config file or set INTAKE_ROUTES_FILE")
}

// HasEnvConfig returns true if essential environment variables are set.
func HasEnvConfig() bool {
	return os.Getenv("INTAKE_ROUTES_FILE") != ""
}

// applyEnvOverrides applies INTAKE_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	// Server configuration
	if v := os.Getenv("INTAKE_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("INTAKE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("INTAKE_SERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("INTAKE_SERVER_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}
	if v := os.Getenv("INTAKE_SERVER_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.RequestTimeout = d
		}
	}
	if v := os.Getenv("INTAKE_SERVER_MAX_BODY_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Server.MaxBodyBytes = n
		}
	}

	// Definitions configuration
	if v := os.Getenv("INTAKE_ROUTES_FILE"); v != "" {
		cfg.Definitions.RoutesFile = v
	}
	if v := os.Getenv("INTAKE_SCHEMA_DIR"); v != "" {
		cfg.Definitions.SchemaDir = v
	}
	if v := os.Getenv("INTAKE_WATCH"); v != "" {
		cfg.Definitions.Watch = parseBool(v)
	}

	// Rate limit configuration
	if v := os.Getenv("INTAKE_RATELIMIT_ENABLED"); v != "" {
		cfg.RateLimit.Enabled = parseBool(v)
	}
	if v := os.Getenv("INTAKE_RATELIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimit.RequestsPerSecond = f
		}
	}
	if v := os.Getenv("INTAKE_RATELIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit.Burst = n
		}
	}

	// Logging configuration
	if v := os.Getenv("INTAKE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("INTAKE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Metrics configuration
	if v := os.Getenv("INTAKE_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}

	// OpenAPI configuration
	if v := os.Getenv("INTAKE_OPENAPI_ENABLED"); v != "" {
		cfg.OpenAPI.Enabled = parseBool(v)
	}
	if v := os.Getenv("INTAKE_OPENAPI_TITLE"); v != "" {
		cfg.OpenAPI.Title = v
	}
	if v := os.Getenv("INTAKE_OPENAPI_SERVER_URL"); v != "" {
		cfg.OpenAPI.ServerURL = v
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 60 * time.Second
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 10 << 20 // 10MB
	}

	if cfg.RateLimit.RequestsPerSecond == 0 {
		cfg.RateLimit.RequestsPerSecond = 10
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = 20
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.OpenAPI.Title == "" {
		cfg.OpenAPI.Title = "intake"
	}
	if cfg.OpenAPI.Version == "" {
		cfg.OpenAPI.Version = "1.0.0"
	}
}

func validate(cfg *Config) error {
	if cfg.Definitions.RoutesFile == "" {
		return fmt.Errorf("definitions.routes_file is required")
	}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error, got %q", cfg.Logging.Level)
	}

	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format)
	}

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limit.requests_per_second must be positive, got %v", cfg.RateLimit.RequestsPerSecond)
		}
		if cfg.RateLimit.Burst < 1 {
			return fmt.Errorf("rate_limit.burst must be at least 1, got %d", cfg.RateLimit.Burst)
		}
	}

	return nil
}
