package resilience

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/L-Mariam/Grocery-Guessr/core"
)

// CircuitState represents the state of a circuit breaker
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrorClassifier reports whether an error counts against the circuit.
type ErrorClassifier func(error) bool

// DefaultErrorClassifier counts only infrastructure failures. Missing keys,
// lost compare-and-swap races and caller cancellation say nothing about the
// health of the backend.
func DefaultErrorClassifier(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return core.IsStoreError(err)
}

// CircuitBreakerConfig configures a circuit breaker
type CircuitBreakerConfig struct {
	Name string

	// FailureThreshold consecutive counted failures open the circuit.
	FailureThreshold int
	// SleepWindow is how long the circuit stays open before probing.
	SleepWindow time.Duration
	// HalfOpenRequests is the number of concurrent probes allowed while half-open.
	HalfOpenRequests int

	ErrorClassifier ErrorClassifier
	Logger          core.Logger
	Telemetry       core.Telemetry

	// now is swapped in tests.
	now func() time.Time
}

// DefaultConfig returns production defaults for a store circuit breaker.
func DefaultConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Name:             "store",
		FailureThreshold: 5,
		SleepWindow:      30 * time.Second,
		HalfOpenRequests: 1,
		ErrorClassifier:  DefaultErrorClassifier,
	}
}

// Validate checks the configuration.
func (c *CircuitBreakerConfig) Validate() error {
	switch {
	case c.FailureThreshold < 1:
		return fmt.Errorf("failure threshold must be at least 1: %w", core.ErrInvalidConfiguration)
	case c.SleepWindow <= 0:
		return fmt.Errorf("sleep window must be positive: %w", core.ErrInvalidConfiguration)
	case c.HalfOpenRequests < 1:
		return fmt.Errorf("half-open requests must be at least 1: %w", core.ErrInvalidConfiguration)
	}
	return nil
}

// CircuitBreaker stops calls to a failing dependency for a sleep window,
// then lets a limited number of probes through to decide whether it has
// recovered.
type CircuitBreaker struct {
	config *CircuitBreakerConfig

	mu                  sync.Mutex
	state               CircuitState
	consecutiveFailures int
	openedAt            time.Time
	halfOpenInFlight    int
}

// NewCircuitBreaker creates a circuit breaker. A nil config uses DefaultConfig.
func NewCircuitBreaker(config *CircuitBreakerConfig) (*CircuitBreaker, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, &core.GuessrError{Op: "resilience.NewCircuitBreaker", Kind: "config", Err: err}
	}
	if config.ErrorClassifier == nil {
		config.ErrorClassifier = DefaultErrorClassifier
	}
	if config.Logger == nil {
		config.Logger = &core.NoOpLogger{}
	}
	if config.Telemetry == nil {
		config.Telemetry = &core.NoOpTelemetry{}
	}
	if config.now == nil {
		config.now = time.Now
	}

	return &CircuitBreaker{config: config, state: StateClosed}, nil
}

// Execute runs fn when the circuit allows it. A rejected call returns an
// error wrapping core.ErrCircuitOpen without invoking fn. A panic in fn is
// recovered, counted as a failure and returned as an error.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) (err error) {
	probe, ok := cb.allow()
	if !ok {
		cb.config.Logger.DebugWithContext(ctx, "Circuit breaker rejected execution", map[string]interface{}{
			"name": cb.config.Name,
		})
		return fmt.Errorf("circuit breaker '%s' is open: %w", cb.config.Name, core.ErrCircuitOpen)
	}

	defer func() {
		if r := recover(); r != nil {
			cb.config.Logger.ErrorWithContext(ctx, "Circuit breaker caught panic", map[string]interface{}{
				"name":  cb.config.Name,
				"panic": fmt.Sprintf("%v", r),
				"type":  fmt.Sprintf("%T", r),
			})
			err = fmt.Errorf("panic in circuit breaker: %v\nStack:\n%s: %w", r, debug.Stack(), core.ErrStoreUnavailable)
		}
		cb.record(probe, err)
	}()

	return fn()
}

// allow decides whether a call may proceed and whether it is a half-open probe.
func (cb *CircuitBreaker) allow() (probe bool, ok bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.config.now().Sub(cb.openedAt) < cb.config.SleepWindow {
			return false, false
		}
		cb.transitionLocked(StateHalfOpen)
		fallthrough
	case StateHalfOpen:
		if cb.halfOpenInFlight >= cb.config.HalfOpenRequests {
			return false, false
		}
		cb.halfOpenInFlight++
		return true, true
	default:
		return false, true
	}
}

func (cb *CircuitBreaker) record(probe bool, err error) {
	failed := cb.config.ErrorClassifier(err)

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if probe {
		if cb.halfOpenInFlight > 0 {
			cb.halfOpenInFlight--
		}
		// a Reset or earlier probe may already have settled the state
		if cb.state != StateHalfOpen {
			return
		}
		if failed {
			cb.transitionLocked(StateOpen)
		} else {
			cb.transitionLocked(StateClosed)
		}
		return
	}

	if !failed {
		cb.consecutiveFailures = 0
		return
	}
	cb.consecutiveFailures++
	if cb.state == StateClosed && cb.consecutiveFailures >= cb.config.FailureThreshold {
		cb.config.Logger.Warn("Circuit breaker opening due to consecutive failures", map[string]interface{}{
			"name":     cb.config.Name,
			"failures": cb.consecutiveFailures,
			"error":    err,
		})
		cb.transitionLocked(StateOpen)
	}
}

func (cb *CircuitBreaker) transitionLocked(newState CircuitState) {
	oldState := cb.state
	if oldState == newState {
		return
	}

	cb.state = newState
	cb.consecutiveFailures = 0
	switch newState {
	case StateOpen:
		cb.openedAt = cb.config.now()
	case StateHalfOpen:
		cb.halfOpenInFlight = 0
	}

	cb.config.Logger.Info("Circuit breaker state changed", map[string]interface{}{
		"name": cb.config.Name,
		"from": oldState.String(),
		"to":   newState.String(),
	})
	cb.config.Telemetry.RecordMetric("guessr.store.circuit_state_changes", 1, map[string]string{
		"name": cb.config.Name,
		"from": oldState.String(),
		"to":   newState.String(),
	})
}

// GetState returns the current state
func (cb *CircuitBreaker) GetState() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset closes the circuit and clears the failure count.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transitionLocked(StateClosed)
	cb.consecutiveFailures = 0
	cb.halfOpenInFlight = 0
}
