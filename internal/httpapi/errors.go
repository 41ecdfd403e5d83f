package httpapi

import (
	"errors"
	"net/http"

	"github.com/L-Mariam/Grocery-Guessr/core"
	"github.com/L-Mariam/Grocery-Guessr/game"
)

// statusFor maps a manager error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, game.ErrValidation), errors.Is(err, game.ErrUnsupportedCurrency):
		return http.StatusBadRequest
	case errors.Is(err, game.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, game.ErrRevealLocked):
		return http.StatusForbidden
	case errors.Is(err, game.ErrOwnerGuess), errors.Is(err, game.ErrDuplicateGuess):
		return http.StatusConflict
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, game.ErrRateLimitExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, core.ErrMaxRetriesExceeded), core.IsStoreError(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers with the player-facing message only.
func writeError(w http.ResponseWriter, err error) {
	failure(w, statusFor(err), core.UserMessage(err), game.ValidationErrors(err))
}
