package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/L-Mariam/Grocery-Guessr/core"
	"github.com/L-Mariam/Grocery-Guessr/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGuardedRedis(t *testing.T, threshold int, cooldown time.Duration) (*Guarded, func(string)) {
	t.Helper()
	mr, client := setupTestRedis(t)

	cfg := resilience.DefaultConfig()
	cfg.Name = "store-redis"
	cfg.FailureThreshold = threshold
	cfg.SleepWindow = cooldown
	breaker, err := resilience.NewCircuitBreaker(cfg)
	require.NoError(t, err)

	return NewGuarded(NewRedisStoreFromClient(client, nil), breaker), mr.SetError
}

func TestGuarded_FailsFastWhileBackendIsDown(t *testing.T) {
	ctx := context.Background()
	g, setError := newGuardedRedis(t, 2, time.Hour)

	require.NoError(t, g.Set(ctx, "post:1", "v1"))

	setError("ERR backend gone")
	for i := 0; i < 2; i++ {
		_, _, err := g.Get(ctx, "post:1")
		require.Error(t, err)
		assert.False(t, errors.Is(err, core.ErrCircuitOpen))
	}
	assert.Equal(t, resilience.StateOpen, g.State())

	setError("")
	_, _, err := g.Get(ctx, "post:1")
	require.Error(t, err, "circuit stays open for the sleep window even after recovery")
	assert.True(t, errors.Is(err, core.ErrCircuitOpen))
	assert.True(t, core.IsStoreError(err))

	var ge *core.GuessrError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, "store", ge.Kind)
	assert.Equal(t, "post:1", ge.ID)
	assert.Equal(t, "Guarded.Get", ge.Op)

	swapped, err := g.CompareAndSwap(ctx, "post:1", "v1", true, "v2")
	assert.False(t, swapped)
	assert.True(t, errors.Is(err, core.ErrCircuitOpen))

	assert.NoError(t, g.Ping(ctx), "ping reaches the backend directly")
}

func TestGuarded_RecoversAfterSleepWindow(t *testing.T) {
	ctx := context.Background()
	g, setError := newGuardedRedis(t, 1, 20*time.Millisecond)

	setError("ERR backend gone")
	assert.Error(t, g.Set(ctx, "user:bob", "{}"))
	require.Equal(t, resilience.StateOpen, g.State())

	setError("")
	time.Sleep(30 * time.Millisecond)

	require.NoError(t, g.Set(ctx, "user:bob", "{}"))
	assert.Equal(t, resilience.StateClosed, g.State())

	value, found, err := g.Get(ctx, "user:bob")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "{}", value)
}

func TestGuarded_LostRacesDoNotTrip(t *testing.T) {
	ctx := context.Background()
	g, _ := newGuardedRedis(t, 1, time.Hour)

	require.NoError(t, g.Set(ctx, "post:1", "v2"))
	for i := 0; i < 3; i++ {
		swapped, err := g.CompareAndSwap(ctx, "post:1", "v1", true, "v3")
		require.NoError(t, err)
		assert.False(t, swapped)
	}
	_, found, err := g.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	assert.Equal(t, resilience.StateClosed, g.State())
}

func TestNew_WrapsNetworkedBackendsWithBreaker(t *testing.T) {
	ctx := context.Background()
	mr, _ := setupTestRedis(t)

	s, err := New(ctx, core.MemoryConfig{
		Provider:         "redis",
		RedisURL:         "redis://" + mr.Addr(),
		CircuitBreaker:   true,
		BreakerThreshold: 1,
		BreakerCooldown:  time.Hour,
	}, nil, nil)
	require.NoError(t, err)
	defer s.Close()

	mr.SetError("ERR backend gone")
	assert.Error(t, s.Set(ctx, "post:1", "x"))

	mr.SetError("")
	err = s.Set(ctx, "post:1", "x")
	assert.True(t, errors.Is(err, core.ErrCircuitOpen))

	t.Run("memory is never wrapped", func(t *testing.T) {
		s, err := New(ctx, core.MemoryConfig{Provider: "inmemory", CircuitBreaker: true}, nil, nil)
		require.NoError(t, err)
		scoped, ok := s.(*Scoped)
		require.True(t, ok)
		_, guarded := scoped.inner.(*Guarded)
		assert.False(t, guarded)
	})

	t.Run("invalid breaker settings", func(t *testing.T) {
		_, err := New(ctx, core.MemoryConfig{
			Provider:       "redis",
			RedisURL:       "redis://" + mr.Addr(),
			CircuitBreaker: true,
		}, nil, nil)
		assert.True(t, core.IsConfigurationError(err))
	})
}
