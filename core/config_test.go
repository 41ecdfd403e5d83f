package core

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultConfig verifies that DefaultConfig returns valid defaults
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "grocery-guessr", cfg.Name)
	assert.Equal(t, 8080, cfg.Port)

	assert.Equal(t, 15*time.Second, cfg.HTTP.ReadTimeout)
	assert.Equal(t, "X-Guessr-User", cfg.HTTP.IdentityHeader)
	assert.False(t, cfg.HTTP.CORS.Enabled)

	assert.Equal(t, "inmemory", cfg.Memory.Provider)
	assert.True(t, cfg.Memory.CircuitBreaker)
	assert.Equal(t, 5, cfg.Memory.BreakerThreshold)

	// game rules
	assert.Equal(t, 5*time.Minute, cfg.Game.PostCooldown)
	assert.Equal(t, 3, cfg.Game.GuessCap)
	assert.Equal(t, 50, cfg.Game.PostPoints)
	assert.Equal(t, 10, cfg.Game.LeaderboardSize)
	assert.Equal(t, 10, cfg.Game.AccuracyMinGuesses)

	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("REDIS_URL", "redis://cache:6379")
	t.Setenv("GUESSR_STORE_PROVIDER", "redis")
	t.Setenv("GUESSR_POST_COOLDOWN", "90s")
	t.Setenv("GUESSR_GUESS_CAP", "5")
	t.Setenv("GUESSR_CORS_ORIGINS", "https://a.example.com, ,https://b.example.com")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("GUESSR_STORE_CIRCUIT_BREAKER", "false")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "http/protobuf")
	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "collector:4318")
	t.Setenv("GUESSR_STORE_BREAKER_COOLDOWN", "1m")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "redis", cfg.Memory.Provider)
	assert.Equal(t, "redis://cache:6379", cfg.Memory.RedisURL)
	assert.Equal(t, 90*time.Second, cfg.Game.PostCooldown)
	assert.Equal(t, 5, cfg.Game.GuessCap)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.HTTP.CORS.AllowedOrigins)
	assert.Equal(t, "collector:4317", cfg.Telemetry.Endpoint)
	assert.False(t, cfg.Memory.CircuitBreaker)
	assert.Equal(t, "http/protobuf", cfg.Telemetry.Protocol)
	assert.Equal(t, "collector:4318", cfg.Telemetry.MetricsEndpoint)
	assert.Equal(t, time.Minute, cfg.Memory.BreakerCooldown)
}

func TestLoadFromEnv_GuessrVariablesWinOverStandard(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("GUESSR_PORT", "7070")
	t.Setenv("DATABASE_URL", "postgres://standard")
	t.Setenv("GUESSR_POSTGRES_URL", "postgres://specific")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, 7070, cfg.Port)
	assert.Equal(t, "postgres://specific", cfg.Memory.PostgresURL)
}

func TestLoadFromEnv_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad port", "GUESSR_PORT", "eighty"},
		{"bad duration", "GUESSR_POST_COOLDOWN", "five minutes"},
		{"bad int", "GUESSR_GUESS_CAP", "three"},
		{"bad sample rate", "GUESSR_TELEMETRY_SAMPLE_RATE", "all"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			err := DefaultConfig().LoadFromEnv()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfiguration))
		})
	}
}

func TestDevModeSwitchesToText(t *testing.T) {
	t.Setenv("GUESSR_DEV_MODE", "yes")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.True(t, cfg.Development.Enabled)
	assert.True(t, cfg.Development.PrettyLogs)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("yaml", func(t *testing.T) {
		path := filepath.Join(dir, "guessr.yaml")
		content := `
name: guessr-staging
port: 8181
memory:
  provider: sqlite
  sqlite_path: /var/lib/guessr/guessr.db
game:
  guess_cap: 4
logging:
  level: debug
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		cfg := DefaultConfig()
		require.NoError(t, cfg.LoadFromFile(path))

		assert.Equal(t, "guessr-staging", cfg.Name)
		assert.Equal(t, 8181, cfg.Port)
		assert.Equal(t, "sqlite", cfg.Memory.Provider)
		assert.Equal(t, "/var/lib/guessr/guessr.db", cfg.Memory.SQLitePath)
		assert.Equal(t, 4, cfg.Game.GuessCap)
		assert.Equal(t, "debug", cfg.Logging.Level)
		// untouched values keep their defaults
		assert.Equal(t, 50, cfg.Game.PostPoints)
	})

	t.Run("json", func(t *testing.T) {
		path := filepath.Join(dir, "guessr.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"port": 8282, "memory": {"provider": "redis", "redis_url": "redis://r:6379"}}`), 0o600))

		cfg := DefaultConfig()
		require.NoError(t, cfg.LoadFromFile(path))

		assert.Equal(t, 8282, cfg.Port)
		assert.Equal(t, "redis://r:6379", cfg.Memory.RedisURL)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		err := DefaultConfig().LoadFromFile(filepath.Join(dir, "guessr.toml"))
		assert.True(t, errors.Is(err, ErrInvalidConfiguration))
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(dir, "broken.yml")
		require.NoError(t, os.WriteFile(path, []byte("port: [not, a, port"), 0o600))
		err := DefaultConfig().LoadFromFile(path)
		assert.True(t, errors.Is(err, ErrInvalidConfiguration))
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"valid defaults", func(*Config) {}, nil},
		{"port out of range", func(c *Config) { c.Port = 70000 }, ErrInvalidConfiguration},
		{"missing name", func(c *Config) { c.Name = "" }, ErrMissingConfiguration},
		{"redis without url", func(c *Config) { c.Memory.Provider = "redis" }, ErrMissingConfiguration},
		{"postgres without url", func(c *Config) { c.Memory.Provider = "postgres" }, ErrMissingConfiguration},
		{"unknown provider", func(c *Config) { c.Memory.Provider = "etcd" }, ErrInvalidConfiguration},
		{"zero guess cap", func(c *Config) { c.Game.GuessCap = 0 }, ErrInvalidConfiguration},
		{"breaker without threshold", func(c *Config) { c.Memory.BreakerThreshold = 0 }, ErrInvalidConfiguration},
		{"breaker disabled ignores threshold", func(c *Config) {
			c.Memory.CircuitBreaker = false
			c.Memory.BreakerThreshold = 0
		}, nil},
		{"otlp without endpoint", func(c *Config) {
			c.Telemetry.Enabled = true
			c.Telemetry.Exporter = "otlp"
		}, ErrMissingConfiguration},
		{"unknown otlp protocol", func(c *Config) {
			c.Telemetry.Enabled = true
			c.Telemetry.Exporter = "otlp"
			c.Telemetry.Endpoint = "collector:4317"
			c.Telemetry.Protocol = "thrift"
		}, ErrInvalidConfiguration},
		{"stdout exporter needs no endpoint", func(c *Config) {
			c.Telemetry.Enabled = true
			c.Telemetry.Exporter = "stdout"
		}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr))

			var ge *GuessrError
			require.True(t, errors.As(err, &ge))
			assert.Equal(t, "config", ge.Kind)
		})
	}
}

func TestNewConfig_OptionsOverrideEnv(t *testing.T) {
	t.Setenv("GUESSR_PORT", "9090")

	cfg, err := NewConfig(
		WithPort(7000),
		WithRedisURL("redis://localhost:6379"),
		WithGuessCap(2),
		WithPostCooldown(time.Minute),
	)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, "redis", cfg.Memory.Provider)
	assert.Equal(t, 2, cfg.Game.GuessCap)
	assert.Equal(t, time.Minute, cfg.Game.PostCooldown)
}

func TestNewConfig_InvalidOption(t *testing.T) {
	_, err := NewConfig(WithPort(0))
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))
}

func TestParseHelpers(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, parseStringList(" a ,, b "))
	assert.Empty(t, parseStringList(""))

	for _, v := range []string{"true", "1", "YES", "On"} {
		assert.True(t, parseBool(v), v)
	}
	for _, v := range []string{"false", "0", "no", ""} {
		assert.False(t, parseBool(v), v)
	}
}
