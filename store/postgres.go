package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/L-Mariam/Grocery-Guessr/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS guessr_kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore keeps every key as a row of the guessr_kv table.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger core.Logger
}

// NewPostgresStore connects a pool, pings it and creates the table if needed.
func NewPostgresStore(ctx context.Context, dsn string, logger core.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if dsn == "" {
		return nil, fmt.Errorf("postgres URL is required: %w", core.ErrInvalidConfiguration)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(connectCtx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %v: %w", err, core.ErrInvalidConfiguration)
	}

	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		logger.Error("Failed to connect to PostgreSQL", map[string]interface{}{
			"error":      err,
			"error_type": fmt.Sprintf("%T", err),
		})
		return nil, fmt.Errorf("unable to ping database: %v: %w", err, core.ErrConnectionFailed)
	}

	if _, err := pool.Exec(connectCtx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %v: %w", err, core.ErrStoreUnavailable)
	}

	logger.Info("PostgreSQL store connected", nil)

	return &PostgresStore{pool: pool, logger: logger}, nil
}

func (p *PostgresStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := p.pool.QueryRow(ctx, `SELECT value FROM guessr_kv WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, unavailable("PostgresStore.Get", key, err)
	}
	return value, true, nil
}

func (p *PostgresStore) Set(ctx context.Context, key, value string) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO guessr_kv (key, value, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value)
	if err != nil {
		return unavailable("PostgresStore.Set", key, err)
	}
	return nil
}

func (p *PostgresStore) CompareAndSwap(ctx context.Context, key, expected string, expectedFound bool, value string) (bool, error) {
	var (
		query string
		args  []any
	)
	if expectedFound {
		query = `UPDATE guessr_kv SET value = $3, updated_at = now() WHERE key = $1 AND value = $2`
		args = []any{key, expected, value}
	} else {
		query = `INSERT INTO guessr_kv (key, value, updated_at) VALUES ($1, $2, now()) ON CONFLICT (key) DO NOTHING`
		args = []any{key, value}
	}

	tag, err := p.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, unavailable("PostgresStore.CompareAndSwap", key, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return unavailable("PostgresStore.Ping", "", err)
	}
	return nil
}

func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}
