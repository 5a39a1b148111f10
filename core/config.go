package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the weekorder service.
// It supports layered configuration priority:
//  1. Default values (lowest priority)
//  2. Environment variables
//  3. Config file (via WithConfigFile)
//  4. Functional options (highest priority)
//
// Example usage:
//
//	cfg, err := NewConfig(
//	    WithPort(8080),
//	    WithDatabase(DriverPostgres, "postgres://localhost/weekorder"),
//	    WithTimeZone("Europe/Berlin"),
//	)
type Config struct {
	// Core configuration
	Name    string `json:"name" yaml:"name"`
	Port    int    `json:"port" yaml:"port"`
	Address string `json:"address" yaml:"address"`

	// HTTP server configuration
	HTTP HTTPConfig `json:"http" yaml:"http"`

	// Persistence
	Database DatabaseConfig `json:"database" yaml:"database"`
	Redis    RedisConfig    `json:"redis" yaml:"redis"`

	// Identity
	Auth AuthConfig `json:"auth" yaml:"auth"`

	// Weekly ordering rules
	Ordering OrderingConfig `json:"ordering" yaml:"ordering"`

	// Observability
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`
	Logging   LoggingConfig   `json:"logging" yaml:"logging"`

	// Development mode
	Development DevelopmentConfig `json:"development" yaml:"development"`
}

// HTTPConfig contains HTTP server configuration including timeouts, limits, and CORS settings.
type HTTPConfig struct {
	ReadTimeout     time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
	// RequestTimeout bounds every API handler through its context
	RequestTimeout  time.Duration `json:"request_timeout" yaml:"request_timeout"`
	MaxHeaderBytes  int           `json:"max_header_bytes" yaml:"max_header_bytes"`
	HealthCheckPath string        `json:"health_check_path" yaml:"health_check_path"`
	CORS            CORSConfig    `json:"cors" yaml:"cors"`
}

// CORSConfig contains Cross-Origin Resource Sharing (CORS) configuration.
// Supports wildcard domains (e.g., *.example.com) and wildcard ports (e.g., http://localhost:*).
type CORSConfig struct {
	Enabled          bool     `json:"enabled" yaml:"enabled"`
	AllowedOrigins   []string `json:"allowed_origins" yaml:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods" yaml:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers" yaml:"allowed_headers"`
	ExposedHeaders   []string `json:"exposed_headers" yaml:"exposed_headers"`
	AllowCredentials bool     `json:"allow_credentials" yaml:"allow_credentials"`
	MaxAge           int      `json:"max_age" yaml:"max_age"`
}

// DatabaseConfig selects and tunes the persistence backend.
// Driver "memory" keeps everything in process; "postgres" requires a DSN.
type DatabaseConfig struct {
	Driver          string        `json:"driver" yaml:"driver"`
	DSN             string        `json:"dsn" yaml:"dsn"`
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	AutoMigrate     bool          `json:"auto_migrate" yaml:"auto_migrate"`
	LogQueries      bool          `json:"log_queries" yaml:"log_queries"`
}

// RedisConfig enables the distributed per-store submission lock.
type RedisConfig struct {
	Enabled   bool          `json:"enabled" yaml:"enabled"`
	URL       string        `json:"url" yaml:"url"`
	DB        int           `json:"db" yaml:"db"`
	Namespace string        `json:"namespace" yaml:"namespace"`
	LockTTL   time.Duration `json:"lock_ttl" yaml:"lock_ttl"`
}

// AuthConfig contains token signing settings.
type AuthConfig struct {
	JWTSecret string        `json:"jwt_secret" yaml:"jwt_secret"`
	TokenTTL  time.Duration `json:"token_ttl" yaml:"token_ttl"`
}

// OrderingConfig contains the weekly ordering rules.
type OrderingConfig struct {
	// TimeZone is the IANA zone whose Monday 00:00 starts an order week
	TimeZone string `json:"timezone" yaml:"timezone"`
}

// Location resolves the configured week time zone.
func (o OrderingConfig) Location() (*time.Location, error) {
	name := o.TimeZone
	if name == "" {
		name = "UTC"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown ordering timezone %q: %w", name, ErrInvalidConfiguration)
	}
	return loc, nil
}

// TelemetryConfig contains observability configuration for metrics and distributed tracing.
// This is an optional module - telemetry is only initialized when Enabled=true.
type TelemetryConfig struct {
	Enabled        bool    `json:"enabled" yaml:"enabled"`
	Exporter       string  `json:"exporter" yaml:"exporter"`
	Endpoint       string  `json:"endpoint" yaml:"endpoint"`
	ServiceName    string  `json:"service_name" yaml:"service_name"`
	MetricsEnabled bool    `json:"metrics_enabled" yaml:"metrics_enabled"`
	TracingEnabled bool    `json:"tracing_enabled" yaml:"tracing_enabled"`
	SamplingRate   float64 `json:"sampling_rate" yaml:"sampling_rate"`
	Insecure       bool    `json:"insecure" yaml:"insecure"`
}

// LoggingConfig contains logging configuration.
// Supports structured (JSON) and human-readable (text) formats.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
	Output string `json:"output" yaml:"output"`
}

// DevelopmentConfig contains settings for local development and testing.
//
// WARNING: Never enable development mode in production!
type DevelopmentConfig struct {
	Enabled    bool `json:"enabled" yaml:"enabled"`
	PrettyLogs bool `json:"pretty_logs" yaml:"pretty_logs"`
}

// Option is a functional option for configuring the service.
// Options are applied in order and can return an error if the configuration is invalid.
type Option func(*Config) error

// DevelopmentJWTSecret is used only when development mode is on and no secret is configured
const DevelopmentJWTSecret = "weekorder-development-secret"

// DefaultConfig returns a configuration with sensible defaults.
// The defaults are adjusted based on the detected environment:
//   - Kubernetes: 0.0.0.0 binding, JSON logging
//   - Local: localhost binding, text logging, development mode
func DefaultConfig() *Config {
	cfg := &Config{
		Name: "weekorder",
		Port: 8080,
		HTTP: HTTPConfig{
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RequestTimeout:  15 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			HealthCheckPath: "/health",
			CORS: CORSConfig{
				Enabled:          false,
				AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowedHeaders:   []string{"Content-Type", "Authorization"},
				AllowCredentials: false,
				MaxAge:           86400,
			},
		},
		Database: DatabaseConfig{
			Driver:          DriverMemory,
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			AutoMigrate:     true,
		},
		Redis: RedisConfig{
			Enabled:   false,
			DB:        RedisDBLocks,
			Namespace: DefaultRedisNamespace,
			LockTTL:   DefaultSubmitLockTTL,
		},
		Auth: AuthConfig{
			TokenTTL: 7 * 24 * time.Hour,
		},
		Ordering: OrderingConfig{
			TimeZone: "UTC",
		},
		Telemetry: TelemetryConfig{
			Enabled:        false,
			Exporter:       ExporterOTLPHTTP,
			ServiceName:    "weekorder",
			MetricsEnabled: true,
			TracingEnabled: true,
			SamplingRate:   1.0,
			Insecure:       true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}

	cfg.DetectEnvironment()

	return cfg
}

// DetectEnvironment adjusts defaults for Kubernetes or local execution.
func (c *Config) DetectEnvironment() {
	if os.Getenv(EnvKubernetes) != "" {
		c.Address = "0.0.0.0"
		c.Logging.Format = "json"
		return
	}

	c.Address = "localhost"
	if os.Getenv(EnvPrefix+"DEV_MODE") == "" {
		c.Development.Enabled = true
		c.Development.PrettyLogs = true
		c.Logging.Format = "text"
	}
}

// LoadFromEnv loads configuration from environment variables.
//
// Variable naming convention:
//   - Service-specific: WEEKORDER_<SETTING>
//   - Standard variables: PORT, DATABASE_URL, REDIS_URL, JWT_SECRET, OTEL_EXPORTER_OTLP_ENDPOINT
//
// Returns an error if environment variables contain invalid values.
func (c *Config) LoadFromEnv() error {
	env := func(name string) string { return os.Getenv(EnvPrefix + name) }

	// Core settings
	if v := env("NAME"); v != "" {
		c.Name = v
	}
	for _, v := range []string{os.Getenv(EnvPort), env("PORT")} {
		if v == "" {
			continue
		}
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid port %q: %w", v, ErrInvalidConfiguration)
		}
		c.Port = port
	}
	if v := env("ADDRESS"); v != "" {
		c.Address = v
	}

	// HTTP settings
	durations := []struct {
		name   string
		target *time.Duration
	}{
		{"HTTP_READ_TIMEOUT", &c.HTTP.ReadTimeout},
		{"HTTP_WRITE_TIMEOUT", &c.HTTP.WriteTimeout},
		{"HTTP_IDLE_TIMEOUT", &c.HTTP.IdleTimeout},
		{"HTTP_SHUTDOWN_TIMEOUT", &c.HTTP.ShutdownTimeout},
		{"HTTP_REQUEST_TIMEOUT", &c.HTTP.RequestTimeout},
		{"DB_CONN_MAX_LIFETIME", &c.Database.ConnMaxLifetime},
		{"REDIS_LOCK_TTL", &c.Redis.LockTTL},
		{"TOKEN_TTL", &c.Auth.TokenTTL},
	}
	for _, d := range durations {
		v := env(d.name)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s %q: %w", EnvPrefix, d.name, v, ErrInvalidConfiguration)
		}
		*d.target = parsed
	}

	// CORS settings
	if v := env("CORS_ENABLED"); v != "" {
		c.HTTP.CORS.Enabled = parseBool(v)
	}
	if v := env("CORS_ORIGINS"); v != "" {
		c.HTTP.CORS.AllowedOrigins = parseStringList(v)
	}
	if v := env("CORS_CREDENTIALS"); v != "" {
		c.HTTP.CORS.AllowCredentials = parseBool(v)
	}

	// Database settings
	if v := env("DB_DRIVER"); v != "" {
		c.Database.Driver = strings.ToLower(v)
	}
	if v := os.Getenv(EnvDatabaseURL); v != "" {
		c.Database.DSN = v
		if env("DB_DRIVER") == "" {
			c.Database.Driver = DriverPostgres
		}
	}
	if v := env("DB_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := env("DB_MAX_OPEN_CONNS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sDB_MAX_OPEN_CONNS %q: %w", EnvPrefix, v, ErrInvalidConfiguration)
		}
		c.Database.MaxOpenConns = n
	}
	if v := env("DB_AUTO_MIGRATE"); v != "" {
		c.Database.AutoMigrate = parseBool(v)
	}

	// Redis settings
	if v := os.Getenv(EnvRedisURL); v != "" {
		c.Redis.URL = v
	}
	if v := env("REDIS_URL"); v != "" {
		c.Redis.URL = v
	}
	if v := env("REDIS_ENABLED"); v != "" {
		c.Redis.Enabled = parseBool(v)
	}
	if v := env("REDIS_NAMESPACE"); v != "" {
		c.Redis.Namespace = v
	}

	// Auth settings
	if v := os.Getenv(EnvJWTSecret); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := env("JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}

	// Ordering settings
	if v := env("TIMEZONE"); v != "" {
		c.Ordering.TimeZone = v
	}

	// Telemetry settings
	if v := env("TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = parseBool(v)
	}
	if v := env("TELEMETRY_EXPORTER"); v != "" {
		c.Telemetry.Exporter = strings.ToLower(v)
	}
	if v := os.Getenv(EnvOTELEndpoint); v != "" {
		c.Telemetry.Endpoint = v
	}
	if v := env("TELEMETRY_ENDPOINT"); v != "" {
		c.Telemetry.Endpoint = v
	}
	if v := os.Getenv(EnvOTELService); v != "" {
		c.Telemetry.ServiceName = v
	}
	if v := env("TELEMETRY_SAMPLING_RATE"); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %sTELEMETRY_SAMPLING_RATE %q: %w", EnvPrefix, v, ErrInvalidConfiguration)
		}
		c.Telemetry.SamplingRate = rate
	}

	// Logging settings
	if v := env("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := env("LOG_FORMAT"); v != "" {
		c.Logging.Format = strings.ToLower(v)
	}
	if v := env("LOG_OUTPUT"); v != "" {
		c.Logging.Output = v
	}

	// Development settings
	if v := env("DEV_MODE"); v != "" {
		c.Development.Enabled = parseBool(v)
		if !c.Development.Enabled {
			c.Development.PrettyLogs = false
		}
	}

	return nil
}

// LoadFromFile loads configuration from a JSON or YAML file.
// File settings override environment variables but are overridden by functional options.
//
// Example YAML:
//
//	port: 9090
//	database:
//	  driver: postgres
//	  dsn: postgres://weekorder@localhost/weekorder
//	ordering:
//	  timezone: Europe/Berlin
func (c *Config) LoadFromFile(path string) error {
	cleanPath := filepath.Clean(path)

	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config file extension %s: %w", ext, ErrInvalidConfiguration)
	}

	if !filepath.IsAbs(cleanPath) {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		cleanPath = filepath.Join(wd, cleanPath)
	}

	data, err := os.ReadFile(filepath.Clean(cleanPath)) // nosec G304 -- path is validated
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", cleanPath, err)
	}

	switch ext {
	case ".json":
		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse JSON config file: %v: %w", err, ErrInvalidConfiguration)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse YAML config file: %v: %w", err, ErrInvalidConfiguration)
		}
	}

	return nil
}

// Validate checks if the configuration is valid and returns an error if not.
//
// Validation rules:
//   - Port must be between 1 and 65535
//   - Database driver must be memory or postgres; postgres needs a DSN
//   - Redis URL is required when the submission lock is enabled
//   - A JWT secret is required outside development mode
//   - The ordering timezone must resolve
//   - Telemetry exporter must be known; OTLP exporters need an endpoint
func (c *Config) Validate() error {
	invalid := func(msg string, err error) error {
		return &Error{Op: "Config.Validate", Kind: "config", Message: msg, Err: err}
	}

	if c.Port < 1 || c.Port > 65535 {
		return invalid(fmt.Sprintf("invalid port: %d", c.Port), ErrInvalidConfiguration)
	}
	if c.Name == "" {
		return invalid("service name is required", ErrMissingConfiguration)
	}

	switch c.Database.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Database.DSN == "" {
			return invalid("database DSN is required for the postgres driver", ErrMissingConfiguration)
		}
	default:
		return invalid(fmt.Sprintf("unsupported database driver: %q", c.Database.Driver), ErrInvalidConfiguration)
	}

	if c.Redis.Enabled {
		if c.Redis.URL == "" {
			return invalid("redis URL is required when the submission lock is enabled", ErrMissingConfiguration)
		}
		if c.Redis.LockTTL <= 0 {
			return invalid("redis lock TTL must be positive", ErrInvalidConfiguration)
		}
	}

	if c.Auth.JWTSecret == "" && !c.Development.Enabled {
		return invalid("JWT secret is required outside development mode", ErrMissingConfiguration)
	}
	if c.Auth.TokenTTL <= 0 {
		return invalid("token TTL must be positive", ErrInvalidConfiguration)
	}

	if _, err := c.Ordering.Location(); err != nil {
		return invalid(fmt.Sprintf("unknown ordering timezone: %q", c.Ordering.TimeZone), ErrInvalidConfiguration)
	}

	if c.Telemetry.Enabled {
		switch c.Telemetry.Exporter {
		case ExporterStdout:
		case ExporterOTLPGRPC, ExporterOTLPHTTP:
			if c.Telemetry.Endpoint == "" {
				return invalid("telemetry endpoint is required when telemetry is enabled", ErrMissingConfiguration)
			}
		default:
			return invalid(fmt.Sprintf("unsupported telemetry exporter: %q", c.Telemetry.Exporter), ErrInvalidConfiguration)
		}
		if c.Telemetry.SamplingRate < 0 || c.Telemetry.SamplingRate > 1 {
			return invalid(fmt.Sprintf("sampling rate must be within [0, 1]: %v", c.Telemetry.SamplingRate), ErrInvalidConfiguration)
		}
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return invalid(fmt.Sprintf("invalid log level: %q", c.Logging.Level), ErrInvalidConfiguration)
	}

	return nil
}

// EffectiveJWTSecret returns the configured secret, or the development secret in dev mode.
func (c *Config) EffectiveJWTSecret() string {
	if c.Auth.JWTSecret == "" && c.Development.Enabled {
		return DevelopmentJWTSecret
	}
	return c.Auth.JWTSecret
}

// ListenAddress returns host:port for the HTTP server.
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Address, c.Port)
}

// Helper functions

// parseStringList splits a comma-separated string into a slice of strings.
// Whitespace is trimmed from each element, and empty strings are filtered out.
// Example: "a, b, c" -> ["a", "b", "c"]
func parseStringList(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// parseBool converts a string to a boolean value.
// Accepts: "true", "1", "yes", "on" (case-insensitive) as true.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// Functional Options

// WithName sets the service name used in logs and telemetry.
func WithName(name string) Option {
	return func(c *Config) error {
		c.Name = name
		return nil
	}
}

// WithPort sets the HTTP server port.
// Returns an error if the port is outside 1-65535.
func WithPort(port int) Option {
	return func(c *Config) error {
		if port < 1 || port > 65535 {
			return &Error{
				Op:      "WithPort",
				Kind:    "config",
				Message: fmt.Sprintf("invalid port: %d", port),
				Err:     ErrInvalidConfiguration,
			}
		}
		c.Port = port
		return nil
	}
}

// WithAddress sets the bind address.
func WithAddress(address string) Option {
	return func(c *Config) error {
		c.Address = address
		return nil
	}
}

// WithCORS enables CORS for the given origins.
func WithCORS(origins []string, credentials bool) Option {
	return func(c *Config) error {
		c.HTTP.CORS.Enabled = true
		c.HTTP.CORS.AllowedOrigins = origins
		c.HTTP.CORS.AllowCredentials = credentials
		return nil
	}
}

// WithRequestTimeout bounds every API request.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Config) error {
		c.HTTP.RequestTimeout = d
		return nil
	}
}

// WithDatabase selects the persistence backend.
func WithDatabase(driver, dsn string) Option {
	return func(c *Config) error {
		c.Database.Driver = driver
		c.Database.DSN = dsn
		return nil
	}
}

// WithRedisLock enables the Redis submission lock.
func WithRedisLock(url string, ttl time.Duration) Option {
	return func(c *Config) error {
		c.Redis.Enabled = true
		c.Redis.URL = url
		if ttl > 0 {
			c.Redis.LockTTL = ttl
		}
		return nil
	}
}

// WithJWTSecret sets the token signing secret.
func WithJWTSecret(secret string) Option {
	return func(c *Config) error {
		c.Auth.JWTSecret = secret
		return nil
	}
}

// WithTimeZone sets the IANA zone whose weeks bound weekly orders.
func WithTimeZone(name string) Option {
	return func(c *Config) error {
		if _, err := (OrderingConfig{TimeZone: name}).Location(); err != nil {
			return &Error{
				Op:      "WithTimeZone",
				Kind:    "config",
				Message: fmt.Sprintf("unknown ordering timezone: %q", name),
				Err:     ErrInvalidConfiguration,
			}
		}
		c.Ordering.TimeZone = name
		return nil
	}
}

// WithTelemetry enables telemetry with the given exporter and endpoint.
func WithTelemetry(enabled bool, exporter, endpoint string) Option {
	return func(c *Config) error {
		c.Telemetry.Enabled = enabled
		c.Telemetry.Exporter = exporter
		c.Telemetry.Endpoint = endpoint
		return nil
	}
}

// WithLogLevel sets the minimum log level.
func WithLogLevel(level string) Option {
	return func(c *Config) error {
		c.Logging.Level = strings.ToLower(level)
		return nil
	}
}

// WithLogFormat sets the log format ("json" or "text").
func WithLogFormat(format string) Option {
	return func(c *Config) error {
		c.Logging.Format = strings.ToLower(format)
		return nil
	}
}

// WithConfigFile loads settings from a JSON or YAML file.
func WithConfigFile(path string) Option {
	return func(c *Config) error {
		return c.LoadFromFile(path)
	}
}

// WithDevelopmentMode toggles development defaults: text logs, debug level, every request logged.
func WithDevelopmentMode(enabled bool) Option {
	return func(c *Config) error {
		c.Development.Enabled = enabled
		if enabled {
			c.Development.PrettyLogs = true
			c.Logging.Level = "debug"
			c.Logging.Format = "text"
		}
		return nil
	}
}

// NewConfig creates a new configuration with the provided options.
// Configuration is applied in the following order:
//  1. Default values from DefaultConfig()
//  2. Environment variables via LoadFromEnv()
//  3. Functional options (highest priority)
//  4. Validation via Validate()
func NewConfig(opts ...Option) (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env config: %w", err)
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
