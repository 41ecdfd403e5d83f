package store

import (
	"context"
	"sync"

	"github.com/L-Mariam/Grocery-Guessr/core"
)

// MemoryStore is an in-process core.Store. State lives only as long as the
// process, which makes it the default for local play and for tests.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]string
	logger core.Logger
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:   make(map[string]string),
		logger: &core.NoOpLogger{},
	}
}

// SetLogger configures the logger for this store
func (m *MemoryStore) SetLogger(logger core.Logger) {
	if logger != nil {
		m.logger = logger
	}
}

func (m *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, unavailable("MemoryStore.Get", key, err)
	}

	m.mu.RLock()
	value, ok := m.data[key]
	m.mu.RUnlock()

	m.logger.Debug("Store lookup", map[string]interface{}{
		"operation": "store_get",
		"key":       key,
		"found":     ok,
	})
	return value, ok, nil
}

func (m *MemoryStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return unavailable("MemoryStore.Set", key, err)
	}

	m.mu.Lock()
	m.data[key] = value
	m.mu.Unlock()

	m.logger.Debug("Store set", map[string]interface{}{
		"operation":  "store_set",
		"key":        key,
		"value_size": len(value),
	})
	return nil
}

func (m *MemoryStore) CompareAndSwap(ctx context.Context, key, expected string, expectedFound bool, value string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, unavailable("MemoryStore.CompareAndSwap", key, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current, found := m.data[key]
	if found != expectedFound || (found && current != expected) {
		m.logger.Debug("Store compare-and-swap conflict", map[string]interface{}{
			"operation": "store_cas",
			"key":       key,
		})
		return false, nil
	}
	m.data[key] = value
	return true, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *MemoryStore) Close() error {
	return nil
}

// Len reports the number of keys held.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
