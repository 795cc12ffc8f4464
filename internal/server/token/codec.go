// Package token implements the signed credential codec. Credentials are
// HS256 JWTs carrying a subject, a unique token id (jti), issue and expiry
// times, and a kind tag distinguishing access from refresh tokens.
package token

import (
	"errors"
	"time"

	"github.com/dkuzmenko/authd/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind tags a credential as access or refresh. The two are never
// interchangeable: a token presented with the wrong kind is rejected.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Claims is the claim set carried by every credential.
type Claims struct {
	jwt.RegisteredClaims
	TokenKind string `json:"typ"`
}

// Kind returns the credential kind tag.
func (c *Claims) Kind() Kind { return Kind(c.TokenKind) }

// Codec mints and decodes credentials with a process-wide secret and fixed
// per-kind lifetimes. It performs no I/O.
type Codec struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewCodec(secret []byte, accessTTL, refreshTTL time.Duration) *Codec {
	return &Codec{
		secret:     secret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// WithClock replaces the codec's time source. Used by tests to pin expiry
// boundaries.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	c.now = now
	return c
}

func (c *Codec) lifetime(kind Kind) time.Duration {
	if kind == KindRefresh {
		return c.refreshTTL
	}
	return c.accessTTL
}

// Mint issues a fresh credential for subject with a newly generated jti.
// The claim set is returned alongside the encoded string so the caller can
// populate the refresh ledger without re-decoding.
func (c *Codec) Mint(subject string, kind Kind) (string, *Claims, error) {
	now := c.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.lifetime(kind))),
		},
		TokenKind: string(kind),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", nil, err
	}

	return signed, claims, nil
}

// Decode verifies the signature, the kind tag and the expiry of the
// presented credential.
//
// It fails with common.ErrTokenExpired when only the time check fails and
// with common.ErrInvalidToken for signature, shape or kind mismatches.
// Callers branch on the two outcomes but both are terminal.
func (c *Codec) Decode(tokenString string, expected Kind) (*Claims, error) {
	claims := &Claims{}

	tok, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !tok.Valid || claims.Kind() != expected {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
