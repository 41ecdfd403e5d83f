package store

import (
	"context"
	"fmt"

	"github.com/L-Mariam/Grocery-Guessr/core"
	"github.com/L-Mariam/Grocery-Guessr/resilience"
)

// New builds the store selected by cfg.Provider, wrapped with the configured
// namespace and operation timeout. Networked backends also get a circuit
// breaker unless cfg.CircuitBreaker is off. telemetry may be nil.
func New(ctx context.Context, cfg core.MemoryConfig, logger core.Logger, telemetry core.Telemetry) (core.Store, error) {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if cal, ok := logger.(core.ComponentAwareLogger); ok {
		logger = cal.WithComponent("store")
	}

	var (
		backend core.Store
		err     error
	)
	switch cfg.Provider {
	case "", "inmemory", "memory":
		mem := NewMemoryStore()
		mem.SetLogger(logger)
		backend = mem
	case "redis":
		backend, err = NewRedisStore(ctx, RedisOptions{
			RedisURL: cfg.RedisURL,
			DB:       cfg.RedisDB,
			Logger:   logger,
		})
	case "postgres":
		backend, err = NewPostgresStore(ctx, cfg.PostgresURL, logger)
	case "sqlite":
		backend, err = NewSQLiteStore(cfg.SQLitePath, logger)
	default:
		return nil, fmt.Errorf("unknown store provider %q: %w", cfg.Provider, core.ErrInvalidConfiguration)
	}
	if err != nil {
		return nil, err
	}

	guarded := false
	if cfg.CircuitBreaker && !isMemoryProvider(cfg.Provider) {
		breaker, err := resilience.NewCircuitBreaker(&resilience.CircuitBreakerConfig{
			Name:             "store-" + cfg.Provider,
			FailureThreshold: cfg.BreakerThreshold,
			SleepWindow:      cfg.BreakerCooldown,
			HalfOpenRequests: 1,
			Logger:           logger,
			Telemetry:        telemetry,
		})
		if err != nil {
			_ = backend.Close()
			return nil, err
		}
		backend = NewGuarded(backend, breaker)
		guarded = true
	}

	logger.Info("Store initialized", map[string]interface{}{
		"provider":        cfg.Provider,
		"namespace":       cfg.Namespace,
		"timeout":         cfg.OperationTimeout.String(),
		"circuit_breaker": guarded,
	})

	return NewScoped(backend, cfg.Namespace, cfg.OperationTimeout), nil
}

func isMemoryProvider(provider string) bool {
	switch provider {
	case "", "inmemory", "memory":
		return true
	}
	return false
}
