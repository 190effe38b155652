// Package tokenmanager issues and parses access and refresh tokens.
//
// Access tokens are stateless: signature, expiration and audience is all that is checked.
// Refresh tokens carry a session id (jti) that must equal the one stored for
// the user. Every issued refresh token overwrites the stored id, so any
// refresh token issued before is revoked the moment a new one is issued.
package tokenmanager

import (
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/nkiryanov/tokenauth/internal/repository"
	"github.com/nkiryanov/tokenauth/internal/service/auth/claims"
	"github.com/nkiryanov/tokenauth/internal/service/auth/opaque"
)

const (
	defaultAccessTokenTTL  = 30 * time.Minute
	defaultSigningMethod   = "HS256"
	defaultRefreshTokenTTL = 24 * time.Hour
)

// Audiences keep access and refresh tokens apart, both are signed with the same key
const (
	AccessAudience  = "access"
	RefreshAudience = "refresh"
)

// Token manager with sensible default
type Config struct {
	// Secret key to sign tokens and derive subject reference key
	// Required to be set
	SecretKey string

	// JWT MAC (Message Authentication Code) algorithm
	// If not set than default is used
	Alg string

	// Access and refresh token lifetimes
	// If not set than default is used
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Clock. time.Now if not set
	TimeFunc func() time.Time
}

type TokenManager struct {
	codec *claims.Codec
	ref   *opaque.Reference

	// Access and refresh token lifetimes
	accessTTL  time.Duration
	refreshTTL time.Duration

	users    repository.UserRepo
	sessions repository.SessionRepo

	now func() time.Time
}

func New(cfg Config, users repository.UserRepo, sessions repository.SessionRepo) (*TokenManager, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}
	if cfg.TimeFunc == nil {
		cfg.TimeFunc = time.Now
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTTL, defaultAccessTokenTTL)
	setDefaultDuration(&cfg.RefreshTTL, defaultRefreshTokenTTL)

	codec, err := claims.New(claims.Config{
		Key:      []byte(cfg.SecretKey),
		Alg:      cfg.Alg,
		TimeFunc: cfg.TimeFunc,
	})
	if err != nil {
		return nil, fmt.Errorf("error while creating claims codec. Err: %w", err)
	}

	ref, err := opaque.New([]byte(cfg.SecretKey))
	if err != nil {
		return nil, fmt.Errorf("error while creating subject reference. Err: %w", err)
	}

	return &TokenManager{
		codec:      codec,
		ref:        ref,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		users:      users,
		sessions:   sessions,
		now:        cfg.TimeFunc,
	}, nil
}

// Subject returns the opaque reference tokens carry instead of the raw user id
func (m *TokenManager) Subject(userID uuid.UUID) string {
	return m.ref.Wrap(userID)
}

// JWT keeps expiration with seconds precision, so issue time is truncated too.
// Otherwise the returned expiration would be a bit later than the real one
func (m *TokenManager) issuedAt() time.Time {
	return m.now().Truncate(time.Second)
}

// 128 random bits hashed down to fixed width hex string
func newSessionID() (string, error) {
	seed, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("error while generating session seed. Err: %w", err)
	}

	sum := blake3.Sum256(seed[:])
	return hex.EncodeToString(sum[:16]), nil
}
