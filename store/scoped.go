package store

import (
	"context"
	"time"

	"github.com/L-Mariam/Grocery-Guessr/core"
)

// Scoped decorates a core.Store with a key namespace and a per-call timeout.
// A zero timeout leaves the caller's context untouched.
type Scoped struct {
	inner     core.Store
	namespace string
	timeout   time.Duration
}

// NewScoped wraps inner. An empty namespace leaves keys unchanged.
func NewScoped(inner core.Store, namespace string, timeout time.Duration) *Scoped {
	return &Scoped{inner: inner, namespace: namespace, timeout: timeout}
}

func (s *Scoped) key(k string) string {
	if s.namespace == "" {
		return k
	}
	return s.namespace + ":" + k
}

func (s *Scoped) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Scoped) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.inner.Get(ctx, s.key(key))
}

func (s *Scoped) Set(ctx context.Context, key, value string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.inner.Set(ctx, s.key(key), value)
}

func (s *Scoped) CompareAndSwap(ctx context.Context, key, expected string, expectedFound bool, value string) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.inner.CompareAndSwap(ctx, s.key(key), expected, expectedFound, value)
}

func (s *Scoped) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.inner.Ping(ctx)
}

func (s *Scoped) Close() error {
	return s.inner.Close()
}
