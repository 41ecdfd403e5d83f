// Package store provides the key/value backends behind core.Store.
//
// Every backend honours the same contract: a missing key is found=false
// with a nil error, transport failures wrap core.ErrStoreUnavailable, and
// CompareAndSwap is the single conditional write.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/L-Mariam/Grocery-Guessr/core"
)

// unavailable wraps a backend failure so callers can classify it with
// core.IsStoreError while keeping the key out of user-facing messages.
func unavailable(op, key string, err error) error {
	sentinel := core.ErrStoreUnavailable
	if errors.Is(err, context.DeadlineExceeded) {
		sentinel = core.ErrTimeout
	}
	return &core.GuessrError{
		Op:   op,
		Kind: "store",
		ID:   key,
		Err:  fmt.Errorf("%v: %w", err, sentinel),
	}
}
