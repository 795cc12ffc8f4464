package models

import "time"

// RefreshSession is the ledger entry kept for every refresh token ever
// issued. ID is the token's jti claim. Revoked only ever transitions
// false -> true. SuccessorID is empty until the entry is rotated, after
// which it points at the entry minted in its place. Entries are never
// deleted by the service itself; expiry-based cleanup is a housekeeping
// concern outside the core.
type RefreshSession struct {
	ID          string
	UserID      string
	Revoked     bool
	ExpiresAt   time.Time
	SuccessorID string
	CreatedAt   time.Time
}
