package core

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for comparison using errors.Is()
// These are generic errors that can be wrapped with additional context
var (
	// Storage errors
	ErrNotFound         = errors.New("not found")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrConflict         = errors.New("concurrent modification")
	ErrCorruptRecord    = errors.New("corrupt record")

	// Configuration errors
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrMissingConfiguration = errors.New("missing required configuration")

	// Operation errors
	ErrTimeout            = errors.New("operation timeout")
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")
	ErrConnectionFailed   = errors.New("connection failed")
	ErrCircuitOpen        = errors.New("circuit breaker open")
)

// GuessrError provides structured error information with context.
// Message is safe to show to a player; Error() is meant for logs.
type GuessrError struct {
	Op      string // Operation that failed (e.g., "Manager.SubmitGuess")
	Kind    string // Error kind (e.g., "validation", "store", "config")
	ID      string // Optional ID of the entity involved
	Message string // Human-readable message
	Err     error  // Underlying error for wrapping
}

// Error returns the string representation of the error
func (e *GuessrError) Error() string {
	if e.Op != "" && e.Err != nil {
		if e.ID != "" {
			return fmt.Sprintf("%s [%s]: %v", e.Op, e.ID, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s error", e.Kind)
}

// Unwrap returns the underlying error for use with errors.Is/As
func (e *GuessrError) Unwrap() error {
	return e.Err
}

// NewGuessrError creates a new GuessrError
func NewGuessrError(op, kind string, err error) *GuessrError {
	return &GuessrError{
		Op:   op,
		Kind: kind,
		Err:  err,
	}
}

// IsRetryable checks if an error is retryable.
// Conflicts from a compare-and-swap and transient store failures qualify.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConnectionFailed)
}

// IsNotFound checks if an error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsStoreError checks if an error came from the persistence layer
func IsStoreError(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrConnectionFailed) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrCircuitOpen)
}

// IsConfigurationError checks if an error is configuration-related
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration) ||
		errors.Is(err, ErrMissingConfiguration)
}

// UserMessage extracts the player-facing message from an error chain.
// Errors without one collapse to a generic message so internal detail never leaks.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var ge *GuessrError
	for e := err; e != nil; e = errors.Unwrap(e) {
		if errors.As(e, &ge) && ge.Message != "" {
			return ge.Message
		}
	}
	if IsStoreError(err) {
		return "The game is temporarily unavailable. Please try again."
	}
	return genericUserMessage
}

const genericUserMessage = "Something went wrong. Please try again."
