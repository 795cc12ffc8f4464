// Package password provides the password hashing capability used at
// registration and login.
package password

import "golang.org/x/crypto/bcrypt"

// Hasher hashes secrets and verifies candidates against stored digests.
type Hasher interface {
	Hash(secret string) ([]byte, error)
	Verify(secret string, digest []byte) bool
}

// BcryptHasher implements Hasher with bcrypt at a configurable cost.
type BcryptHasher struct {
	cost int
}

func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(secret string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(secret), h.cost)
}

func (h *BcryptHasher) Verify(secret string, digest []byte) bool {
	return bcrypt.CompareHashAndPassword(digest, []byte(secret)) == nil
}
