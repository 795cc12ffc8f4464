// Package sessions implements the refresh ledger: the durable record of
// every refresh token ever issued, its revoked status, and its successor
// link. The ledger is the sole authority on refresh-token validity — a
// syntactically valid, unexpired refresh token whose entry is revoked or
// missing must be rejected by the caller.
package sessions

import (
	"context"

	"github.com/dkuzmenko/authd/internal/server/models"
)

// Repository defines the ledger operations. Implementations must make
// Revoke an atomic compare-and-swap on the revoked flag so that two
// concurrent revocations of the same active entry have exactly one winner.
type Repository interface {
	// Record inserts a new active entry. Returns common.ErrConflict when the
	// token id already exists; that should never happen with fresh jti
	// generation and indicates an invariant violation.
	Record(ctx context.Context, session *models.RefreshSession) error

	// Find returns the entry for the given token id or common.ErrorNotFound.
	Find(ctx context.Context, id string) (*models.RefreshSession, error)

	// Revoke atomically flips revoked from false to true and stores the
	// successor link (successorID may be empty, e.g. at logout). Returns
	// common.ErrAlreadyRevoked when the entry was revoked before this call
	// and common.ErrorNotFound when it does not exist. The revoked flag
	// never transitions back to false.
	Revoke(ctx context.Context, id string, successorID string) error
}

// Rotator is an optional Repository extension. Backends that can revoke an
// entry and record its successor atomically implement it; callers fall back
// to a separate Revoke and Record when they don't.
type Rotator interface {
	Rotate(ctx context.Context, oldID string, next *models.RefreshSession) error
}
