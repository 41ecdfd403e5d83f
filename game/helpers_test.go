package game

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/L-Mariam/Grocery-Guessr/core"
	"github.com/L-Mariam/Grocery-Guessr/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("post-%d", n)
	}
}

// faultyStore fails selected operations by key prefix.
type faultyStore struct {
	*store.MemoryStore
	mu          sync.Mutex
	failGet     []string
	failSet     []string
	failCAS     []string
	corruptRead []string
}

func newFaultyStore() *faultyStore {
	return &faultyStore{MemoryStore: store.NewMemoryStore()}
}

func matches(prefixes []string, key string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

func (f *faultyStore) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	failing, corrupt := matches(f.failGet, key), matches(f.corruptRead, key)
	f.mu.Unlock()
	if failing {
		return "", false, &core.GuessrError{Op: "faultyStore.Get", Kind: "store", ID: key, Err: core.ErrStoreUnavailable}
	}
	if corrupt {
		return "{not json", true, nil
	}
	return f.MemoryStore.Get(ctx, key)
}

func (f *faultyStore) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	failing := matches(f.failSet, key)
	f.mu.Unlock()
	if failing {
		return &core.GuessrError{Op: "faultyStore.Set", Kind: "store", ID: key, Err: core.ErrStoreUnavailable}
	}
	return f.MemoryStore.Set(ctx, key, value)
}

func (f *faultyStore) CompareAndSwap(ctx context.Context, key, expected string, expectedFound bool, value string) (bool, error) {
	f.mu.Lock()
	failing := matches(f.failCAS, key)
	f.mu.Unlock()
	if failing {
		return false, &core.GuessrError{Op: "faultyStore.CompareAndSwap", Kind: "store", ID: key, Err: core.ErrStoreUnavailable}
	}
	return f.MemoryStore.CompareAndSwap(ctx, key, expected, expectedFound, value)
}

type recordedMetric struct {
	name   string
	value  float64
	labels map[string]string
}

type recordingTelemetry struct {
	mu      sync.Mutex
	spans   []string
	metrics []recordedMetric
}

func (r *recordingTelemetry) StartSpan(ctx context.Context, name string) (context.Context, core.Span) {
	r.mu.Lock()
	r.spans = append(r.spans, name)
	r.mu.Unlock()
	return ctx, &core.NoOpSpan{}
}

func (r *recordingTelemetry) RecordMetric(name string, value float64, labels map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = append(r.metrics, recordedMetric{name, value, labels})
}

func (r *recordingTelemetry) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.metrics {
		if m.name == name {
			n++
		}
	}
	return n
}

type harness struct {
	manager *Manager
	store   core.Store
	clock   *testClock
	logs    *bytes.Buffer
	tel     *recordingTelemetry
}

func newHarness(t *testing.T, s core.Store, opts ...Option) *harness {
	t.Helper()
	if s == nil {
		s = store.NewMemoryStore()
	}
	clock := newTestClock()
	logs := &bytes.Buffer{}
	logger := core.NewProductionLogger(core.LoggingConfig{Level: "debug", Format: "json"}, core.DevelopmentConfig{}, "guessr-test")
	logger.SetOutput(logs)
	tel := &recordingTelemetry{}

	base := []Option{
		WithClock(clock.Now),
		WithIDGenerator(sequentialIDs()),
		WithLogger(logger),
		WithTelemetry(tel),
	}
	return &harness{
		manager: NewManager(s, append(base, opts...)...),
		store:   s,
		clock:   clock,
		logs:    logs,
		tel:     tel,
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func milkDraft() PostDraft {
	return PostDraft{
		Items:    []ItemDraft{{Item: "Milk", Qty: dec("1"), Price: dec("3.50")}},
		Currency: "USD",
		Location: "NY, US",
	}
}

func (h *harness) post(t *testing.T, id string) *GroceryPost {
	t.Helper()
	raw, found, err := h.store.Get(context.Background(), postKey(id))
	require.NoError(t, err)
	require.True(t, found, "post %s missing", id)
	var p GroceryPost
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	return &p
}

func (h *harness) profile(t *testing.T, username string) *UserProfile {
	t.Helper()
	raw, found, err := h.store.Get(context.Background(), userKey(username))
	require.NoError(t, err)
	if !found {
		return nil
	}
	var p UserProfile
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	return &p
}

func (h *harness) raw(t *testing.T, key string) (string, bool) {
	t.Helper()
	v, found, err := h.store.Get(context.Background(), key)
	require.NoError(t, err)
	return v, found
}

func achievementIDs(as []Achievement) []string {
	ids := make([]string, 0, len(as))
	for _, a := range as {
		ids = append(ids, a.ID)
	}
	return ids
}
