package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/L-Mariam/Grocery-Guessr/core"
	"github.com/go-redis/redis/v8"
)

// RedisStore is a core.Store backed by a single Redis database.
// CompareAndSwap uses WATCH/MULTI/EXEC so a concurrent writer aborts the
// transaction instead of being overwritten.
type RedisStore struct {
	client *redis.Client
	db     int
	logger core.Logger
}

// RedisOptions configures the Redis store
type RedisOptions struct {
	RedisURL string
	DB       int
	Logger   core.Logger
}

// NewRedisStore parses the URL, connects and pings the server.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	logger := opts.Logger
	if logger == nil {
		logger = &core.NoOpLogger{}
	}

	if opts.RedisURL == "" {
		return nil, fmt.Errorf("redis URL is required: %w", core.ErrInvalidConfiguration)
	}

	redisOpt, err := redis.ParseURL(opts.RedisURL)
	if err != nil {
		logger.Error("Failed to parse Redis URL", map[string]interface{}{
			"error":      err,
			"error_type": fmt.Sprintf("%T", err),
		})
		return nil, fmt.Errorf("invalid Redis URL: %w", core.ErrInvalidConfiguration)
	}
	if opts.DB > 0 && opts.DB <= 15 {
		redisOpt.DB = opts.DB
	}

	client := redis.NewClient(redisOpt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Error("Failed to connect to Redis", map[string]interface{}{
			"error":      err,
			"error_type": fmt.Sprintf("%T", err),
			"db":         redisOpt.DB,
		})
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis DB %d: %w", redisOpt.DB, core.ErrConnectionFailed)
	}

	logger.Info("Redis store connected", map[string]interface{}{
		"db": redisOpt.DB,
	})

	return NewRedisStoreFromClient(client, logger), nil
}

// NewRedisStoreFromClient wraps an existing client without pinging it.
func NewRedisStoreFromClient(client *redis.Client, logger core.Logger) *RedisStore {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &RedisStore{
		client: client,
		db:     client.Options().DB,
		logger: logger,
	}
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		r.logger.ErrorWithContext(ctx, "Redis get failed", map[string]interface{}{
			"operation": "store_get",
			"key":       key,
			"error":     err,
		})
		return "", false, unavailable("RedisStore.Get", key, err)
	}
	return value, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		r.logger.ErrorWithContext(ctx, "Redis set failed", map[string]interface{}{
			"operation": "store_set",
			"key":       key,
			"error":     err,
		})
		return unavailable("RedisStore.Set", key, err)
	}
	return nil
}

func (r *RedisStore) CompareAndSwap(ctx context.Context, key, expected string, expectedFound bool, value string) (bool, error) {
	swapped := false

	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Result()
		found := true
		if errors.Is(err, redis.Nil) {
			found = false
		} else if err != nil {
			return err
		}

		if found != expectedFound || (found && current != expected) {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, value, 0)
			return nil
		})
		if err != nil {
			return err
		}
		swapped = true
		return nil
	}

	err := r.client.Watch(ctx, txf, key)
	if errors.Is(err, redis.TxFailedErr) {
		r.logger.DebugWithContext(ctx, "Redis compare-and-swap lost race", map[string]interface{}{
			"operation": "store_cas",
			"key":       key,
		})
		return false, nil
	}
	if err != nil {
		return false, unavailable("RedisStore.CompareAndSwap", key, err)
	}
	return swapped, nil
}

func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return unavailable("RedisStore.Ping", "", err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	r.logger.Info("Closing Redis store", map[string]interface{}{
		"db": r.db,
	})
	return r.client.Close()
}
