// Package common defines shared constants and sentinel errors used across
// client and server layers of authd. Callers should use errors.Is to match
// these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// ErrConflict marks a ledger invariant violation: an insert hit a token id
	// that is already recorded. Should not occur with unique id generation.
	ErrConflict = errors.New("token id conflict")

	// ErrAlreadyRevoked is returned by the sessions repository when a revoke
	// lost the compare-and-swap because the entry was revoked earlier. The
	// session service decides what that signal means.
	ErrAlreadyRevoked = errors.New("already revoked")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Credential decode errors.
	ErrTokenExpired = errors.New("token expired")
	ErrInvalidToken = errors.New("invalid token")

	// Login errors. Unknown email and wrong password both map here.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Refresh-specific ledger rejections.
	ErrNoSuchSession  = errors.New("no such session")
	ErrSessionRevoked = errors.New("session revoked")
)
