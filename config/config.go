// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// DatabaseConfig configures the database.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"` // SQLite file path or ":memory:"
}

// APIConfig configures the generated resource endpoints.
type APIConfig struct {
	BasePath   string `yaml:"base_path"`    // Prefix of every resource route, e.g. /api
	PerPage    int    `yaml:"per_page"`     // Default collection page size
	MaxPerPage int    `yaml:"max_per_page"` // Largest page size a client may request
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // Enable /metrics endpoint
	Path    string `yaml:"path"`    // Custom path (default: /metrics)
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	data = []byte(os.ExpandEnv(string(data)))

	cfg := Config{Metrics: MetricsConfig{Enabled: true}}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
//
// Environment variables:
//
//	APISTUB_SERVER_HOST       - Server host (default: 0.0.0.0)
//	APISTUB_SERVER_PORT       - Server port (default: 8080)
//	APISTUB_DATABASE_DSN      - Database path (default: apistub.db)
//	APISTUB_API_BASE_PATH     - Route prefix (default: none)
//	APISTUB_API_PER_PAGE      - Default page size (default: 20)
//	APISTUB_API_MAX_PER_PAGE  - Page size cap (default: 100)
//	APISTUB_LOG_LEVEL         - Log level: debug, info, warn, error (default: info)
//	APISTUB_LOG_FORMAT        - Log format: json or console (default: json)
//	APISTUB_METRICS_ENABLED   - Enable /metrics endpoint (default: true)
//	APISTUB_METRICS_PATH      - Metrics path (default: /metrics)
func LoadFromEnv() (*Config, error) {
	cfg := Config{Metrics: MetricsConfig{Enabled: true}}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback loads from the file when it exists and from environment
// variables otherwise.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

// envBindings maps APISTUB_* variables onto config fields.
var envBindings = []struct {
	name  string
	apply func(cfg *Config, v string) error
}{
	{"APISTUB_SERVER_HOST", func(c *Config, v string) error { c.Server.Host = v; return nil }},
	{"APISTUB_SERVER_PORT", func(c *Config, v string) error { return setInt(&c.Server.Port, v) }},
	{"APISTUB_SERVER_READ_TIMEOUT", func(c *Config, v string) error { return setDuration(&c.Server.ReadTimeout, v) }},
	{"APISTUB_SERVER_WRITE_TIMEOUT", func(c *Config, v string) error { return setDuration(&c.Server.WriteTimeout, v) }},
	{"APISTUB_DATABASE_DSN", func(c *Config, v string) error { c.Database.DSN = v; return nil }},
	{"APISTUB_API_BASE_PATH", func(c *Config, v string) error { c.API.BasePath = v; return nil }},
	{"APISTUB_API_PER_PAGE", func(c *Config, v string) error { return setInt(&c.API.PerPage, v) }},
	{"APISTUB_API_MAX_PER_PAGE", func(c *Config, v string) error { return setInt(&c.API.MaxPerPage, v) }},
	{"APISTUB_LOG_LEVEL", func(c *Config, v string) error { c.Logging.Level = v; return nil }},
	{"APISTUB_LOG_FORMAT", func(c *Config, v string) error { c.Logging.Format = v; return nil }},
	{"APISTUB_METRICS_ENABLED", func(c *Config, v string) error { c.Metrics.Enabled = parseBool(v); return nil }},
	{"APISTUB_METRICS_PATH", func(c *Config, v string) error { c.Metrics.Path = v; return nil }},
}

// applyEnvOverrides lets the environment win over the file. A value that
// does not parse is an error naming the variable.
func applyEnvOverrides(cfg *Config) error {
	for _, b := range envBindings {
		v := os.Getenv(b.name)
		if v == "" {
			continue
		}
		if err := b.apply(cfg, v); err != nil {
			return fmt.Errorf("%s=%q: %w", b.name, v, err)
		}
	}
	return nil
}

func setInt(dst *int, v string) error {
	n, err := strconv.Atoi(v)
	if err == nil {
		*dst = n
	}
	return err
}

func setDuration(dst *time.Duration, v string) error {
	d, err := time.ParseDuration(v)
	if err == nil {
		*dst = d
	}
	return err
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
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
		cfg.Server.RequestTimeout = 30 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "apistub.db"
	}

	cfg.API.BasePath = strings.TrimSuffix(cfg.API.BasePath, "/")
	if cfg.API.PerPage == 0 {
		cfg.API.PerPage = 20
	}
	if cfg.API.MaxPerPage == 0 {
		cfg.API.MaxPerPage = 100
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}

	if cfg.API.BasePath != "" && !strings.HasPrefix(cfg.API.BasePath, "/") {
		return fmt.Errorf("api.base_path must start with '/', got %q", cfg.API.BasePath)
	}
	if cfg.API.PerPage < 1 {
		return fmt.Errorf("api.per_page must be positive, got %d", cfg.API.PerPage)
	}
	if cfg.API.MaxPerPage < cfg.API.PerPage {
		return fmt.Errorf("api.max_per_page (%d) must not be less than api.per_page (%d)",
			cfg.API.MaxPerPage, cfg.API.PerPage)
	}

	if _, err := zerolog.ParseLevel(cfg.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if f := cfg.Logging.Format; f != "json" && f != "console" {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format)
	}

	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with '/', got %q", cfg.Metrics.Path)
	}

	return nil
}
