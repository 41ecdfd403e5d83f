package store

import (
	"context"
	"errors"

	"github.com/L-Mariam/Grocery-Guessr/core"
	"github.com/L-Mariam/Grocery-Guessr/resilience"
)

// Guarded fails fast with core.ErrCircuitOpen while the backend behind it
// keeps failing, instead of letting every request wait out its timeout.
type Guarded struct {
	inner   core.Store
	breaker *resilience.CircuitBreaker
}

// NewGuarded wraps inner with breaker.
func NewGuarded(inner core.Store, breaker *resilience.CircuitBreaker) *Guarded {
	return &Guarded{inner: inner, breaker: breaker}
}

func (g *Guarded) Get(ctx context.Context, key string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := g.breaker.Execute(ctx, func() error {
		var err error
		value, found, err = g.inner.Get(ctx, key)
		return err
	})
	return value, found, g.wrap("Get", key, err)
}

func (g *Guarded) Set(ctx context.Context, key, value string) error {
	err := g.breaker.Execute(ctx, func() error {
		return g.inner.Set(ctx, key, value)
	})
	return g.wrap("Set", key, err)
}

func (g *Guarded) CompareAndSwap(ctx context.Context, key, expected string, expectedFound bool, value string) (bool, error) {
	var swapped bool
	err := g.breaker.Execute(ctx, func() error {
		var err error
		swapped, err = g.inner.CompareAndSwap(ctx, key, expected, expectedFound, value)
		return err
	})
	return swapped, g.wrap("CompareAndSwap", key, err)
}

// Ping bypasses the breaker so health checks report the backend itself.
func (g *Guarded) Ping(ctx context.Context) error {
	return g.inner.Ping(ctx)
}

func (g *Guarded) Close() error {
	return g.inner.Close()
}

// State reports the breaker state for diagnostics.
func (g *Guarded) State() resilience.CircuitState {
	return g.breaker.GetState()
}

// wrap turns a rejection or recovered panic into a store error. Backend
// errors are already wrapped by the backend and pass through untouched.
func (g *Guarded) wrap(op, key string, err error) error {
	if err == nil {
		return nil
	}
	var ge *core.GuessrError
	if errors.As(err, &ge) {
		return err
	}
	return &core.GuessrError{Op: "Guarded." + op, Kind: "store", ID: key, Err: err}
}
