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

// Config holds all configuration options for the Grocery Guessr service.
// It supports three-layer configuration priority:
//  1. Default values (lowest priority)
//  2. Environment variables (medium priority)
//  3. Functional options (highest priority)
//
// A config file (JSON or YAML) can be layered in with WithConfigFile.
//
// Example usage:
//
//	cfg, err := NewConfig(
//	    WithPort(8080),
//	    WithStoreProvider("redis"),
//	    WithRedisURL("redis://localhost:6379"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
type Config struct {
	Name    string `json:"name" yaml:"name" env:"GUESSR_NAME" default:"grocery-guessr"`
	Port    int    `json:"port" yaml:"port" env:"GUESSR_PORT,PORT" default:"8080"`
	Address string `json:"address" yaml:"address" env:"GUESSR_ADDRESS"`

	HTTP        HTTPConfig        `json:"http" yaml:"http"`
	Memory      MemoryConfig      `json:"memory" yaml:"memory"`
	Game        GameConfig        `json:"game" yaml:"game"`
	Telemetry   TelemetryConfig   `json:"telemetry" yaml:"telemetry"`
	Logging     LoggingConfig     `json:"logging" yaml:"logging"`
	Development DevelopmentConfig `json:"development" yaml:"development"`
}

// HTTPConfig contains HTTP server configuration including timeouts and CORS settings.
type HTTPConfig struct {
	ReadTimeout     time.Duration `json:"read_timeout" yaml:"read_timeout" env:"GUESSR_HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `json:"write_timeout" yaml:"write_timeout" env:"GUESSR_HTTP_WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `json:"idle_timeout" yaml:"idle_timeout" env:"GUESSR_HTTP_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" env:"GUESSR_HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
	IdentityHeader  string        `json:"identity_header" yaml:"identity_header" env:"GUESSR_IDENTITY_HEADER" default:"X-Guessr-User"`
	CORS            CORSConfig    `json:"cors" yaml:"cors"`
}

// CORSConfig contains Cross-Origin Resource Sharing (CORS) configuration.
// Supports wildcard subdomains (e.g., *.example.com).
type CORSConfig struct {
	Enabled          bool     `json:"enabled" yaml:"enabled" env:"GUESSR_CORS_ENABLED" default:"false"`
	AllowedOrigins   []string `json:"allowed_origins" yaml:"allowed_origins" env:"GUESSR_CORS_ORIGINS"`
	AllowedMethods   []string `json:"allowed_methods" yaml:"allowed_methods" default:"GET,POST,OPTIONS"`
	AllowedHeaders   []string `json:"allowed_headers" yaml:"allowed_headers" default:"Content-Type,X-Guessr-User"`
	ExposedHeaders   []string `json:"exposed_headers" yaml:"exposed_headers" default:"X-Request-ID"`
	AllowCredentials bool     `json:"allow_credentials" yaml:"allow_credentials" default:"false"`
	MaxAge           int      `json:"max_age" yaml:"max_age" default:"86400"`
}

// MemoryConfig selects and configures the key/value store.
// Provider is one of "inmemory", "redis", "postgres" or "sqlite".
type MemoryConfig struct {
	Provider         string        `json:"provider" yaml:"provider" env:"GUESSR_STORE_PROVIDER" default:"inmemory"`
	RedisURL         string        `json:"redis_url" yaml:"redis_url" env:"GUESSR_REDIS_URL,REDIS_URL"`
	RedisDB          int           `json:"redis_db" yaml:"redis_db" env:"GUESSR_REDIS_DB" default:"0"`
	PostgresURL      string        `json:"postgres_url" yaml:"postgres_url" env:"GUESSR_POSTGRES_URL,DATABASE_URL"`
	SQLitePath       string        `json:"sqlite_path" yaml:"sqlite_path" env:"GUESSR_SQLITE_PATH" default:"guessr.db"`
	Namespace        string        `json:"namespace" yaml:"namespace" env:"GUESSR_STORE_NAMESPACE"`
	OperationTimeout time.Duration `json:"operation_timeout" yaml:"operation_timeout" env:"GUESSR_STORE_TIMEOUT" default:"3s"`

	// Circuit breaker in front of networked backends. Ignored for inmemory.
	CircuitBreaker   bool          `json:"circuit_breaker" yaml:"circuit_breaker" env:"GUESSR_STORE_CIRCUIT_BREAKER" default:"true"`
	BreakerThreshold int           `json:"breaker_threshold" yaml:"breaker_threshold" env:"GUESSR_STORE_BREAKER_THRESHOLD" default:"5"`
	BreakerCooldown  time.Duration `json:"breaker_cooldown" yaml:"breaker_cooldown" env:"GUESSR_STORE_BREAKER_COOLDOWN" default:"30s"`
}

// GameConfig holds the tunable game rules.
type GameConfig struct {
	PostCooldown       time.Duration `json:"post_cooldown" yaml:"post_cooldown" env:"GUESSR_POST_COOLDOWN" default:"5m"`
	GuessCap           int           `json:"guess_cap" yaml:"guess_cap" env:"GUESSR_GUESS_CAP" default:"3"`
	PostPoints         int           `json:"post_points" yaml:"post_points" env:"GUESSR_POST_POINTS" default:"50"`
	LeaderboardSize    int           `json:"leaderboard_size" yaml:"leaderboard_size" env:"GUESSR_LEADERBOARD_SIZE" default:"10"`
	AccuracyMinGuesses int           `json:"accuracy_min_guesses" yaml:"accuracy_min_guesses" env:"GUESSR_ACCURACY_MIN_GUESSES" default:"10"`
	MaxWriteAttempts   int           `json:"max_write_attempts" yaml:"max_write_attempts" env:"GUESSR_MAX_WRITE_ATTEMPTS" default:"5"`
}

// TelemetryConfig contains tracing and metrics configuration.
// Exporter is "stdout", "otlp" or "none"; otlp requires Endpoint.
type TelemetryConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled" env:"GUESSR_TELEMETRY_ENABLED" default:"false"`
	Exporter    string  `json:"exporter" yaml:"exporter" env:"GUESSR_TELEMETRY_EXPORTER" default:"otlp"`
	Endpoint    string  `json:"endpoint" yaml:"endpoint" env:"GUESSR_TELEMETRY_ENDPOINT,OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName string  `json:"service_name" yaml:"service_name" env:"OTEL_SERVICE_NAME"`
	SampleRate  float64 `json:"sample_rate" yaml:"sample_rate" env:"GUESSR_TELEMETRY_SAMPLE_RATE" default:"1.0"`
	Insecure    bool    `json:"insecure" yaml:"insecure" env:"GUESSR_TELEMETRY_INSECURE" default:"true"`

	// Protocol selects the OTLP trace transport: "grpc" or "http".
	Protocol string `json:"protocol" yaml:"protocol" env:"GUESSR_TELEMETRY_PROTOCOL,OTEL_EXPORTER_OTLP_PROTOCOL" default:"grpc"`

	// MetricsEndpoint enables OTLP/HTTP metric export. Empty keeps metrics
	// on the global meter.
	MetricsEndpoint string        `json:"metrics_endpoint" yaml:"metrics_endpoint" env:"GUESSR_TELEMETRY_METRICS_ENDPOINT,OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"`
	MetricsInterval time.Duration `json:"metrics_interval" yaml:"metrics_interval" env:"GUESSR_TELEMETRY_METRICS_INTERVAL" default:"30s"`
}

// LoggingConfig contains logging configuration.
// Supports structured (JSON) and human-readable (text) formats.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" env:"GUESSR_LOG_LEVEL" default:"info"`
	Format string `json:"format" yaml:"format" env:"GUESSR_LOG_FORMAT" default:"json"`
	Output string `json:"output" yaml:"output" env:"GUESSR_LOG_OUTPUT" default:"stdout"`
}

// DevelopmentConfig contains settings for local development.
//
// WARNING: Never enable development mode in production!
type DevelopmentConfig struct {
	Enabled      bool `json:"enabled" yaml:"enabled" env:"GUESSR_DEV_MODE" default:"false"`
	DebugLogging bool `json:"debug_logging" yaml:"debug_logging" env:"GUESSR_DEBUG" default:"false"`
	PrettyLogs   bool `json:"pretty_logs" yaml:"pretty_logs" env:"GUESSR_PRETTY_LOGS" default:"false"`
}

// Option is a functional option for configuring the service.
// Options are applied in order and can return an error if the configuration is invalid.
type Option func(*Config) error

// DefaultConfig returns a configuration with sensible defaults.
// The in-memory store is the default so a bare binary is playable locally.
func DefaultConfig() *Config {
	return &Config{
		Name:    "grocery-guessr",
		Port:    8080,
		Address: "",
		HTTP: HTTPConfig{
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			IdentityHeader:  "X-Guessr-User",
			CORS: CORSConfig{
				Enabled:        false,
				AllowedMethods: []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "X-Guessr-User"},
				ExposedHeaders: []string{"X-Request-ID"},
				MaxAge:         86400,
			},
		},
		Memory: MemoryConfig{
			Provider:         "inmemory",
			RedisDB:          0,
			SQLitePath:       "guessr.db",
			OperationTimeout: 3 * time.Second,
			CircuitBreaker:   true,
			BreakerThreshold: 5,
			BreakerCooldown:  30 * time.Second,
		},
		Game: GameConfig{
			PostCooldown:       5 * time.Minute,
			GuessCap:           3,
			PostPoints:         50,
			LeaderboardSize:    10,
			AccuracyMinGuesses: 10,
			MaxWriteAttempts:   5,
		},
		Telemetry: TelemetryConfig{
			Enabled:         false,
			Exporter:        "otlp",
			SampleRate:      1.0,
			Insecure:        true,
			Protocol:        "grpc",
			MetricsInterval: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables take precedence over defaults but are overridden by functional options.
//
// Variable naming convention:
//   - Service-specific: GUESSR_<SETTING>
//   - Standard variables: PORT, REDIS_URL, DATABASE_URL, OTEL_EXPORTER_OTLP_ENDPOINT
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("GUESSR_NAME"); v != "" {
		c.Name = v
	}
	if v := firstEnv("GUESSR_PORT", "PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid port %q: %w", v, ErrInvalidConfiguration)
		}
		c.Port = port
	}
	if v := os.Getenv("GUESSR_ADDRESS"); v != "" {
		c.Address = v
	}

	// HTTP
	if err := envDuration("GUESSR_HTTP_READ_TIMEOUT", &c.HTTP.ReadTimeout); err != nil {
		return err
	}
	if err := envDuration("GUESSR_HTTP_WRITE_TIMEOUT", &c.HTTP.WriteTimeout); err != nil {
		return err
	}
	if err := envDuration("GUESSR_HTTP_IDLE_TIMEOUT", &c.HTTP.IdleTimeout); err != nil {
		return err
	}
	if err := envDuration("GUESSR_HTTP_SHUTDOWN_TIMEOUT", &c.HTTP.ShutdownTimeout); err != nil {
		return err
	}
	if v := os.Getenv("GUESSR_IDENTITY_HEADER"); v != "" {
		c.HTTP.IdentityHeader = v
	}
	if v := os.Getenv("GUESSR_CORS_ENABLED"); v != "" {
		c.HTTP.CORS.Enabled = parseBool(v)
	}
	if v := os.Getenv("GUESSR_CORS_ORIGINS"); v != "" {
		c.HTTP.CORS.AllowedOrigins = parseStringList(v)
	}

	// Store
	if v := os.Getenv("GUESSR_STORE_PROVIDER"); v != "" {
		c.Memory.Provider = v
	}
	if v := firstEnv("GUESSR_REDIS_URL", "REDIS_URL"); v != "" {
		c.Memory.RedisURL = v
	}
	if err := envInt("GUESSR_REDIS_DB", &c.Memory.RedisDB); err != nil {
		return err
	}
	if v := firstEnv("GUESSR_POSTGRES_URL", "DATABASE_URL"); v != "" {
		c.Memory.PostgresURL = v
	}
	if v := os.Getenv("GUESSR_SQLITE_PATH"); v != "" {
		c.Memory.SQLitePath = v
	}
	if v := os.Getenv("GUESSR_STORE_NAMESPACE"); v != "" {
		c.Memory.Namespace = v
	}
	if err := envDuration("GUESSR_STORE_TIMEOUT", &c.Memory.OperationTimeout); err != nil {
		return err
	}
	if v := os.Getenv("GUESSR_STORE_CIRCUIT_BREAKER"); v != "" {
		c.Memory.CircuitBreaker = parseBool(v)
	}
	if err := envInt("GUESSR_STORE_BREAKER_THRESHOLD", &c.Memory.BreakerThreshold); err != nil {
		return err
	}
	if err := envDuration("GUESSR_STORE_BREAKER_COOLDOWN", &c.Memory.BreakerCooldown); err != nil {
		return err
	}

	// Game rules
	if err := envDuration("GUESSR_POST_COOLDOWN", &c.Game.PostCooldown); err != nil {
		return err
	}
	if err := envInt("GUESSR_GUESS_CAP", &c.Game.GuessCap); err != nil {
		return err
	}
	if err := envInt("GUESSR_POST_POINTS", &c.Game.PostPoints); err != nil {
		return err
	}
	if err := envInt("GUESSR_LEADERBOARD_SIZE", &c.Game.LeaderboardSize); err != nil {
		return err
	}
	if err := envInt("GUESSR_ACCURACY_MIN_GUESSES", &c.Game.AccuracyMinGuesses); err != nil {
		return err
	}
	if err := envInt("GUESSR_MAX_WRITE_ATTEMPTS", &c.Game.MaxWriteAttempts); err != nil {
		return err
	}

	// Telemetry
	if v := os.Getenv("GUESSR_TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = parseBool(v)
	}
	if v := os.Getenv("GUESSR_TELEMETRY_EXPORTER"); v != "" {
		c.Telemetry.Exporter = v
	}
	if v := firstEnv("GUESSR_TELEMETRY_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.Telemetry.Endpoint = v
	}
	if v := os.Getenv("OTEL_SERVICE_NAME"); v != "" {
		c.Telemetry.ServiceName = v
	}
	if v := os.Getenv("GUESSR_TELEMETRY_SAMPLE_RATE"); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid sample rate %q: %w", v, ErrInvalidConfiguration)
		}
		c.Telemetry.SampleRate = rate
	}
	if v := os.Getenv("GUESSR_TELEMETRY_INSECURE"); v != "" {
		c.Telemetry.Insecure = parseBool(v)
	}
	if v := firstEnv("GUESSR_TELEMETRY_PROTOCOL", "OTEL_EXPORTER_OTLP_PROTOCOL"); v != "" {
		c.Telemetry.Protocol = v
	}
	if v := firstEnv("GUESSR_TELEMETRY_METRICS_ENDPOINT", "OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"); v != "" {
		c.Telemetry.MetricsEndpoint = v
	}
	if err := envDuration("GUESSR_TELEMETRY_METRICS_INTERVAL", &c.Telemetry.MetricsInterval); err != nil {
		return err
	}

	// Logging
	if v := os.Getenv("GUESSR_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("GUESSR_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("GUESSR_LOG_OUTPUT"); v != "" {
		c.Logging.Output = v
	}

	// Development
	if v := os.Getenv("GUESSR_DEV_MODE"); v != "" {
		c.Development.Enabled = parseBool(v)
		if c.Development.Enabled {
			c.Development.PrettyLogs = true
			c.Logging.Format = "text"
		}
	}
	if v := os.Getenv("GUESSR_DEBUG"); v != "" {
		c.Development.DebugLogging = parseBool(v)
	}
	if v := os.Getenv("GUESSR_PRETTY_LOGS"); v != "" {
		c.Development.PrettyLogs = parseBool(v)
	}

	return nil
}

// LoadFromFile loads configuration from a JSON or YAML file.
// Values present in the file override what is already set.
func (c *Config) LoadFromFile(path string) error {
	cleanPath := filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config file extension %s: %w", ext, ErrInvalidConfiguration)
	}

	data, err := os.ReadFile(cleanPath) // nosec G304 -- operator supplied path
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
// This method is called automatically by NewConfig().
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return &GuessrError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: fmt.Sprintf("invalid port: %d", c.Port),
			Err:     ErrInvalidConfiguration,
		}
	}

	if c.Name == "" {
		return &GuessrError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: "service name is required",
			Err:     ErrMissingConfiguration,
		}
	}

	switch c.Memory.Provider {
	case "inmemory", "memory":
	case "redis":
		if c.Memory.RedisURL == "" {
			return &GuessrError{
				Op:      "Config.Validate",
				Kind:    "config",
				Message: "redis URL is required for the redis store provider",
				Err:     ErrMissingConfiguration,
			}
		}
	case "postgres":
		if c.Memory.PostgresURL == "" {
			return &GuessrError{
				Op:      "Config.Validate",
				Kind:    "config",
				Message: "postgres URL is required for the postgres store provider",
				Err:     ErrMissingConfiguration,
			}
		}
	case "sqlite":
		if c.Memory.SQLitePath == "" {
			return &GuessrError{
				Op:      "Config.Validate",
				Kind:    "config",
				Message: "sqlite path is required for the sqlite store provider",
				Err:     ErrMissingConfiguration,
			}
		}
	default:
		return &GuessrError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: fmt.Sprintf("unknown store provider: %s", c.Memory.Provider),
			Err:     ErrInvalidConfiguration,
		}
	}

	if c.Memory.CircuitBreaker && (c.Memory.BreakerThreshold < 1 || c.Memory.BreakerCooldown <= 0) {
		return &GuessrError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: "store circuit breaker needs a threshold >= 1 and a positive cooldown",
			Err:     ErrInvalidConfiguration,
		}
	}

	if c.Game.PostCooldown < 0 || c.Game.GuessCap < 1 || c.Game.LeaderboardSize < 1 || c.Game.MaxWriteAttempts < 1 {
		return &GuessrError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: "game rules must be positive (cooldown >= 0, guess cap, leaderboard size and write attempts >= 1)",
			Err:     ErrInvalidConfiguration,
		}
	}

	if c.Telemetry.Enabled && c.Telemetry.Exporter == "otlp" && c.Telemetry.Endpoint == "" {
		return &GuessrError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: "telemetry endpoint is required for the otlp exporter",
			Err:     ErrMissingConfiguration,
		}
	}
	if c.Telemetry.Enabled && c.Telemetry.Exporter == "otlp" {
		switch strings.ToLower(c.Telemetry.Protocol) {
		case "", "grpc", "http", "http/protobuf":
		default:
			return &GuessrError{
				Op:      "Config.Validate",
				Kind:    "config",
				Message: fmt.Sprintf("unsupported otlp protocol: %s", c.Telemetry.Protocol),
				Err:     ErrInvalidConfiguration,
			}
		}
	}

	return nil
}

// Helper functions

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

func envDuration(name string, dst *time.Duration) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid duration for %s=%q: %w", name, v, ErrInvalidConfiguration)
	}
	*dst = d
	return nil
}

func envInt(name string, dst *int) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid integer for %s=%q: %w", name, v, ErrInvalidConfiguration)
	}
	*dst = n
	return nil
}

// parseStringList splits a comma-separated string into a slice of strings.
// Whitespace is trimmed from each element, and empty strings are filtered out.
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

// WithName sets the service name used in logs and traces.
func WithName(name string) Option {
	return func(c *Config) error {
		c.Name = name
		return nil
	}
}

// WithPort sets the HTTP server port.
func WithPort(port int) Option {
	return func(c *Config) error {
		if port < 1 || port > 65535 {
			return &GuessrError{
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

// WithStoreProvider selects the key/value store backend.
func WithStoreProvider(provider string) Option {
	return func(c *Config) error {
		c.Memory.Provider = provider
		return nil
	}
}

// WithRedisURL sets the Redis URL and switches the store provider to redis.
func WithRedisURL(url string) Option {
	return func(c *Config) error {
		c.Memory.RedisURL = url
		c.Memory.Provider = "redis"
		return nil
	}
}

// WithPostgresURL sets the PostgreSQL URL and switches the store provider to postgres.
func WithPostgresURL(url string) Option {
	return func(c *Config) error {
		c.Memory.PostgresURL = url
		c.Memory.Provider = "postgres"
		return nil
	}
}

// WithSQLitePath sets the SQLite file and switches the store provider to sqlite.
func WithSQLitePath(path string) Option {
	return func(c *Config) error {
		c.Memory.SQLitePath = path
		c.Memory.Provider = "sqlite"
		return nil
	}
}

// WithPostCooldown overrides the per-user posting cooldown.
func WithPostCooldown(d time.Duration) Option {
	return func(c *Config) error {
		c.Game.PostCooldown = d
		return nil
	}
}

// WithGuessCap overrides the per-post guess cap.
func WithGuessCap(n int) Option {
	return func(c *Config) error {
		c.Game.GuessCap = n
		return nil
	}
}

// WithTelemetry enables tracing with the given exporter and endpoint.
func WithTelemetry(exporter, endpoint string) Option {
	return func(c *Config) error {
		c.Telemetry.Enabled = true
		c.Telemetry.Exporter = exporter
		c.Telemetry.Endpoint = endpoint
		return nil
	}
}

// WithLogLevel sets the logging level (debug, info, warn, error).
func WithLogLevel(level string) Option {
	return func(c *Config) error {
		c.Logging.Level = level
		return nil
	}
}

// WithLogFormat sets the logging format (json or text).
func WithLogFormat(format string) Option {
	return func(c *Config) error {
		c.Logging.Format = format
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

// WithConfigFile loads settings from a JSON or YAML file.
func WithConfigFile(path string) Option {
	return func(c *Config) error {
		return c.LoadFromFile(path)
	}
}

// WithDevelopmentMode switches on text logs with colour and debug output.
func WithDevelopmentMode(enabled bool) Option {
	return func(c *Config) error {
		c.Development.Enabled = enabled
		if enabled {
			c.Development.PrettyLogs = true
			c.Development.DebugLogging = true
			c.Logging.Format = "text"
		}
		return nil
	}
}

// NewConfig creates a new configuration with the given options.
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
