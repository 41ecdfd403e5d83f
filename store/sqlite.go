package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/L-Mariam/Grocery-Guessr/core"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is a single-file core.Store for small deployments.
type SQLiteStore struct {
	conn   *sql.DB
	logger core.Logger
}

// NewSQLiteStore opens (or creates) the database file and migrates it.
// Pass ":memory:" for a throwaway database.
func NewSQLiteStore(path string, logger core.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required: %w", core.ErrInvalidConfiguration)
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	conn, err := sql.Open("sqlite3", path+sep+"_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v: %w", err, core.ErrStoreUnavailable)
	}
	// one writer at a time; also keeps a :memory: database on a single connection
	conn.SetMaxOpenConns(1)

	s := &SQLiteStore{conn: conn, logger: logger}
	if err := s.migrate(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %v: %w", err, core.ErrStoreUnavailable)
	}

	logger.Info("SQLite store opened", map[string]interface{}{
		"path": path,
	})
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.conn.Exec(`
	CREATE TABLE IF NOT EXISTS guessr_kv (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`)
	return err
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.conn.QueryRowContext(ctx, `SELECT value FROM guessr_kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, unavailable("SQLiteStore.Get", key, err)
	}
	return value, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO guessr_kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value)
	if err != nil {
		return unavailable("SQLiteStore.Set", key, err)
	}
	return nil
}

func (s *SQLiteStore) CompareAndSwap(ctx context.Context, key, expected string, expectedFound bool, value string) (bool, error) {
	var (
		result sql.Result
		err    error
	)
	if expectedFound {
		result, err = s.conn.ExecContext(ctx,
			`UPDATE guessr_kv SET value = ?, updated_at = CURRENT_TIMESTAMP WHERE key = ? AND value = ?`,
			value, key, expected)
	} else {
		result, err = s.conn.ExecContext(ctx,
			`INSERT INTO guessr_kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO NOTHING`,
			key, value)
	}
	if err != nil {
		return false, unavailable("SQLiteStore.CompareAndSwap", key, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, unavailable("SQLiteStore.CompareAndSwap", key, err)
	}
	return rows == 1, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.conn.PingContext(ctx); err != nil {
		return unavailable("SQLiteStore.Ping", "", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}
