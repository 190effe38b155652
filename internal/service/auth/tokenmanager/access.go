package tokenmanager

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/tokenauth/internal/models"
	"github.com/nkiryanov/tokenauth/internal/service/auth/claims"
)

// AccessToken is a parsed or just issued access token
// It is never persisted and checked by signature, expiration and audience only
type AccessToken struct {
	Raw    string
	Claims claims.Claims

	m *TokenManager
}

func (a AccessToken) ExpiresAt() time.Time {
	return a.Claims.ExpiresAt
}

// UserID unwraps the token subject
func (a AccessToken) UserID() (uuid.UUID, error) {
	return a.m.ref.Unwrap(a.Claims.Subject)
}

// ResolveUser looks up the token owner. Fails with apperrors.ErrUserNotFound if there is no such user
func (a AccessToken) ResolveUser(ctx context.Context) (models.User, error) {
	userID, err := a.UserID()
	if err != nil {
		return models.User{}, err
	}

	user, err := a.m.users.GetUserByID(ctx, userID)
	if err != nil {
		return models.User{}, fmt.Errorf("error while resolving access token user. Err: %w", err)
	}

	return user, nil
}

type accessOptions struct {
	extra    map[string]any
	lifetime time.Duration
}

type AccessOption func(*accessOptions)

// WithClaims adds custom claims. Registered claims (sub, exp, jti, aud) can't be overridden
func WithClaims(extra map[string]any) AccessOption {
	return func(o *accessOptions) {
		if o.extra == nil {
			o.extra = make(map[string]any, len(extra))
		}
		maps.Copy(o.extra, extra)
	}
}

// WithLifetime overrides configured access token lifetime
func WithLifetime(d time.Duration) AccessOption {
	return func(o *accessOptions) {
		o.lifetime = d
	}
}

func (m *TokenManager) IssueAccess(userID uuid.UUID, opts ...AccessOption) (AccessToken, error) {
	o := accessOptions{lifetime: m.accessTTL}
	for _, opt := range opts {
		opt(&o)
	}

	c := claims.Claims{
		Subject:   m.ref.Wrap(userID),
		Audience:  AccessAudience,
		ExpiresAt: m.issuedAt().Add(o.lifetime),
		Extra:     o.extra,
	}

	raw, err := m.codec.Encode(c)
	if err != nil {
		return AccessToken{}, fmt.Errorf("error while signing access token. Err: %w", err)
	}

	return AccessToken{Raw: raw, Claims: c, m: m}, nil
}

// Parse and validate access token: signature, expiration and audience
// Refresh tokens are rejected with apperrors.ErrCustomClaim
func (m *TokenManager) ParseAccess(raw string) (AccessToken, error) {
	c, err := m.codec.Decode(raw, claims.Audience(AccessAudience), noSessionID)
	if err != nil {
		return AccessToken{}, fmt.Errorf("error while parsing access token. Err: %w", err)
	}

	return AccessToken{Raw: raw, Claims: c, m: m}, nil
}

var noSessionID = claims.Verifier{
	Claim: claims.SessionIDClaim,
	Verify: func(value any, _ claims.Claims) bool {
		jti, _ := value.(string)
		return jti == ""
	},
}
