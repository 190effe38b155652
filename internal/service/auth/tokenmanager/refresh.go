package tokenmanager

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/tokenauth/internal/apperrors"
	"github.com/nkiryanov/tokenauth/internal/models"
	"github.com/nkiryanov/tokenauth/internal/service/auth/claims"
)

// RefreshToken is valid only while its session id equals the one stored for the user
type RefreshToken struct {
	Raw    string
	Claims claims.Claims

	user models.User
}

// User resolved while parsing. Zero value for just issued tokens
func (r RefreshToken) User() models.User {
	return r.user
}

func (r RefreshToken) SessionID() string {
	return r.Claims.SessionID
}

func (r RefreshToken) ExpiresAt() time.Time {
	return r.Claims.ExpiresAt
}

// IssueRefresh signs a refresh token with a new session id and stores the id for the user
// Any refresh token issued for the user before is revoked
func (m *TokenManager) IssueRefresh(ctx context.Context, userID uuid.UUID) (RefreshToken, error) {
	sessionID, err := newSessionID()
	if err != nil {
		return RefreshToken{}, err
	}

	c := claims.Claims{
		Subject:   m.ref.Wrap(userID),
		SessionID: sessionID,
		Audience:  RefreshAudience,
		ExpiresAt: m.issuedAt().Add(m.refreshTTL),
	}

	raw, err := m.codec.Encode(c)
	if err != nil {
		return RefreshToken{}, fmt.Errorf("error while signing refresh token. Err: %w", err)
	}

	// The only write: last writer wins and everything issued before is dead
	err = m.sessions.SetSessionID(ctx, userID, sessionID, c.ExpiresAt)
	if err != nil {
		return RefreshToken{}, fmt.Errorf("error while storing refresh session. Err: %w", err)
	}

	return RefreshToken{Raw: raw, Claims: c}, nil
}

// ParseRefresh validates the token and resolves its user
//
// Fails with:
//   - apperrors.ErrTokenExpired, apperrors.ErrMalformedToken if token can't be decoded
//   - apperrors.ErrCustomClaim if token is not a refresh one
//   - apperrors.ErrUserNotFound if the user is gone
//   - apperrors.ErrSessionMismatch if token session id is not the stored one (or nothing is stored)
func (m *TokenManager) ParseRefresh(ctx context.Context, raw string) (RefreshToken, error) {
	c, err := m.codec.Decode(raw, claims.Audience(RefreshAudience))
	if err != nil {
		return RefreshToken{}, fmt.Errorf("error while parsing refresh token. Err: %w", err)
	}

	userID, err := m.ref.Unwrap(c.Subject)
	if err != nil {
		return RefreshToken{}, err
	}

	user, err := m.users.GetUserByID(ctx, userID)
	if err != nil {
		return RefreshToken{}, fmt.Errorf("error while resolving refresh token user. Err: %w", err)
	}

	stored, err := m.sessions.GetSessionID(ctx, userID)
	if err != nil {
		return RefreshToken{}, fmt.Errorf("error while reading refresh session. Err: %w", err)
	}

	err = claims.Verify(c, claims.Verifier{
		Claim: claims.SessionIDClaim,
		Verify: func(value any, _ claims.Claims) bool {
			jti, _ := value.(string)
			return stored != "" && jti == stored
		},
	})
	if err != nil {
		return RefreshToken{}, fmt.Errorf("%w: user %s: %w", apperrors.ErrSessionMismatch, userID, err)
	}

	return RefreshToken{Raw: raw, Claims: c, user: user}, nil
}
