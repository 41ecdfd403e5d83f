package game

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/L-Mariam/Grocery-Guessr/core"
)

// Sentinel errors for the game rules. Every rejection the manager returns
// wraps exactly one of these inside a core.GuessrError whose Message is
// safe to show a player.
var (
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	ErrPostNotFound        = fmt.Errorf("grocery post %w", core.ErrNotFound)
	ErrProfileNotFound     = fmt.Errorf("user profile %w", core.ErrNotFound)
	ErrOwnerGuess          = errors.New("poster cannot guess on own post")
	ErrDuplicateGuess      = errors.New("user already guessed on post")
	ErrRateLimitExceeded   = errors.New("rate limit exceeded")
	ErrUnauthenticated     = errors.New("no acting user")
	ErrRevealLocked        = errors.New("reveal requires a guess")
	ErrValidation          = errors.New("validation failed")
)

// ValidationError is one field-tagged problem with user input.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationFailure carries every validation error found for a request.
type ValidationFailure struct {
	Errors []ValidationError
}

func (v *ValidationFailure) Error() string {
	msgs := make([]string, 0, len(v.Errors))
	for _, e := range v.Errors {
		msgs = append(msgs, e.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (v *ValidationFailure) Unwrap() error { return ErrValidation }

// IsUserError reports whether err is a rejection the player caused, as
// opposed to an infrastructure failure.
func IsUserError(err error) bool {
	for _, target := range []error{
		ErrValidation, ErrUnsupportedCurrency, ErrPostNotFound, ErrProfileNotFound,
		ErrOwnerGuess, ErrDuplicateGuess, ErrRateLimitExceeded, ErrUnauthenticated, ErrRevealLocked,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// ValidationErrors extracts the field errors from err, if any.
func ValidationErrors(err error) []ValidationError {
	var vf *ValidationFailure
	if errors.As(err, &vf) {
		return vf.Errors
	}
	return nil
}

func rejection(op, kind, id, message string, err error) error {
	return &core.GuessrError{Op: op, Kind: kind, ID: id, Message: message, Err: err}
}

func validationRejection(op string, errs []ValidationError) error {
	message := "Validation failed. Please check your input."
	if len(errs) == 1 {
		message = errs[0].Message
	}
	return rejection(op, "validation", "", message, &ValidationFailure{Errors: errs})
}

func unauthenticated(op, action string) error {
	return rejection(op, "auth", "", fmt.Sprintf("You must be logged in to %s.", action), ErrUnauthenticated)
}

func postNotFound(op, postID string) error {
	return rejection(op, "not_found", postID, "Could not find grocery post data.", ErrPostNotFound)
}

func postCooldown(op, username string, cooldown time.Duration) error {
	return rejection(op, "rate_limit", username,
		fmt.Sprintf("Please wait %s before posting again.", humanDuration(cooldown)), ErrRateLimitExceeded)
}

func guessCapReached(op, postID string, limit int) error {
	return rejection(op, "rate_limit", postID,
		fmt.Sprintf("You can only make %d guesses per post.", limit), ErrRateLimitExceeded)
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Minute && d%time.Minute == 0:
		if n := int(d / time.Minute); n != 1 {
			return fmt.Sprintf("%d minutes", n)
		}
		return "1 minute"
	case d >= time.Second && d%time.Second == 0:
		if n := int(d / time.Second); n != 1 {
			return fmt.Sprintf("%d seconds", n)
		}
		return "1 second"
	default:
		return d.String()
	}
}
