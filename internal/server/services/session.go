// Package services contains server-side business logic. This file implements
// SessionService, which handles registration, login, refresh-token rotation
// and the access guard used on protected requests.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dkuzmenko/authd/internal/common"
	"github.com/dkuzmenko/authd/internal/logging"
	"github.com/dkuzmenko/authd/internal/server/models"
	"github.com/dkuzmenko/authd/internal/server/password"
	"github.com/dkuzmenko/authd/internal/server/repositories/sessions"
	"github.com/dkuzmenko/authd/internal/server/repositories/users"
	"github.com/dkuzmenko/authd/internal/server/token"
	"github.com/google/uuid"
)

// TokenPair bundles a short-lived access token and a long-lived refresh
// token. RefreshExpiresAt lets the transport scope the refresh channel (the
// cookie lifetime) to the token's own expiry.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// SessionService orchestrates login, refresh and logout against the token
// codec and the refresh ledger, and enforces the rotation invariant: every
// accepted refresh revokes the presented entry before its successor becomes
// visible.
type SessionService struct {
	users    users.Repository
	sessions sessions.Repository
	codec    *token.Codec
	hasher   password.Hasher
	logger   logging.Logger
}

func NewSessionService(u users.Repository, s sessions.Repository, c *token.Codec, h password.Hasher, l logging.Logger) *SessionService {
	return &SessionService{
		users:    u,
		sessions: s,
		codec:    c,
		hasher:   h,
		logger:   l.With("module", "session_service"),
	}
}

// NormalizeEmail lowercases and trims an email so lookups are
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a new user account. Returns common.ErrorAlreadyExists
// when the email is taken.
func (s *SessionService) Register(ctx context.Context, email, pwd string) (*models.User, error) {
	digest, err := s.hasher.Hash(pwd)
	if err != nil {
		s.logger.Error(ctx, "password hashing failed", "error", err)
		return nil, common.ErrorInternal
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        NormalizeEmail(email),
		PasswordHash: digest,
	}

	created, err := s.users.Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.ErrorAlreadyExists
		}
		s.logger.Error(ctx, "user creation failed", "error", err)
		return nil, common.ErrorInternal
	}
	return created, nil
}

// Login verifies the password and, on success, returns a fresh token pair.
// An unknown email and a wrong password are indistinguishable to the
// caller: both yield common.ErrInvalidCredentials.
func (s *SessionService) Login(ctx context.Context, email, pwd string) (*TokenPair, error) {
	user, err := s.users.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidCredentials
		}
		s.logger.Error(ctx, "user lookup failed", "error", err)
		return nil, common.ErrorInternal
	}

	if !s.hasher.Verify(pwd, user.PasswordHash) {
		return nil, common.ErrInvalidCredentials
	}

	return s.issuePair(ctx, user.ID)
}

// Refresh rotates the presented refresh token: the old ledger entry is
// revoked (with the successor link) before the new entry is recorded, so at
// no point do two active entries exist for one lineage. Presenting an
// already-revoked token is the replay signal and always fails with
// common.ErrSessionRevoked.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.codec.Decode(refreshToken, token.KindRefresh)
	if err != nil {
		return nil, err
	}

	entry, err := s.sessions.Find(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrNoSuchSession
		}
		s.logger.Error(ctx, "ledger lookup failed", "error", err)
		return nil, common.ErrorInternal
	}
	if entry.Revoked {
		s.logger.Warn(ctx, "refresh token reuse detected", "jti", claims.ID, "user_id", entry.UserID)
		return nil, common.ErrSessionRevoked
	}

	access, _, err := s.codec.Mint(entry.UserID, token.KindAccess)
	if err != nil {
		s.logger.Error(ctx, "access token mint failed", "error", err)
		return nil, common.ErrorInternal
	}
	refresh, refreshClaims, err := s.codec.Mint(entry.UserID, token.KindRefresh)
	if err != nil {
		s.logger.Error(ctx, "refresh token mint failed", "error", err)
		return nil, common.ErrorInternal
	}

	next := &models.RefreshSession{
		ID:        refreshClaims.ID,
		UserID:    entry.UserID,
		ExpiresAt: refreshClaims.ExpiresAt.Time,
	}

	// CAS on the old entry decides the winner between concurrent refreshes.
	// Backends that support it do revoke+record in one transaction.
	if rot, ok := s.sessions.(sessions.Rotator); ok {
		err = rot.Rotate(ctx, claims.ID, next)
	} else {
		err = s.rotateTwoStep(ctx, claims.ID, next)
	}
	if err != nil {
		switch {
		case errors.Is(err, common.ErrAlreadyRevoked):
			s.logger.Warn(ctx, "lost refresh rotation race", "jti", claims.ID)
			return nil, common.ErrSessionRevoked
		case errors.Is(err, common.ErrorNotFound):
			return nil, common.ErrNoSuchSession
		default:
			s.logger.Error(ctx, "ledger rotation failed", "jti", claims.ID, "error", err)
			return nil, common.ErrorInternal
		}
	}

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshClaims.ExpiresAt.Time,
	}, nil
}

// Logout revokes the presented refresh token. It is best effort and never
// fails visibly: a missing, malformed or already-revoked token still counts
// as a successful logout. Inner failures are logged and swallowed.
func (s *SessionService) Logout(ctx context.Context, refreshToken string) {
	claims, err := s.codec.Decode(refreshToken, token.KindRefresh)
	if err != nil {
		s.logger.Debug(ctx, "logout with undecodable token", "error", err)
		return
	}

	if err := s.sessions.Revoke(ctx, claims.ID, ""); err != nil {
		switch {
		case errors.Is(err, common.ErrAlreadyRevoked), errors.Is(err, common.ErrorNotFound):
			s.logger.Debug(ctx, "logout on inactive session", "jti", claims.ID)
		default:
			s.logger.Warn(ctx, "logout revoke failed", "jti", claims.ID, "error", err)
		}
	}
}

// Authorize validates an access token and resolves it to the calling user.
// The ledger is not consulted: access tokens are stateless and cannot be
// revoked individually before expiry. A deleted account loses access even
// with an unexpired token.
func (s *SessionService) Authorize(ctx context.Context, accessToken string) (*models.User, error) {
	claims, err := s.codec.Decode(accessToken, token.KindAccess)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		s.logger.Error(ctx, "user lookup failed", "error", err)
		return nil, common.ErrorInternal
	}
	return user, nil
}

// rotateTwoStep is the non-transactional rotation: the old entry is revoked
// with the successor link before the new one becomes visible.
func (s *SessionService) rotateTwoStep(ctx context.Context, oldID string, next *models.RefreshSession) error {
	if err := s.sessions.Revoke(ctx, oldID, next.ID); err != nil {
		return err
	}
	return s.sessions.Record(ctx, next)
}

func (s *SessionService) issuePair(ctx context.Context, userID string) (*TokenPair, error) {
	access, _, err := s.codec.Mint(userID, token.KindAccess)
	if err != nil {
		s.logger.Error(ctx, "access token mint failed", "error", err)
		return nil, common.ErrorInternal
	}
	refresh, refreshClaims, err := s.codec.Mint(userID, token.KindRefresh)
	if err != nil {
		s.logger.Error(ctx, "refresh token mint failed", "error", err)
		return nil, common.ErrorInternal
	}

	if err := s.sessions.Record(ctx, &models.RefreshSession{
		ID:        refreshClaims.ID,
		UserID:    userID,
		ExpiresAt: refreshClaims.ExpiresAt.Time,
	}); err != nil {
		s.logger.Error(ctx, "ledger record failed", "jti", refreshClaims.ID, "error", err)
		return nil, common.ErrorInternal
	}

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshClaims.ExpiresAt.Time,
	}, nil
}
