// Package claims encodes and decodes signed token claims.
//
// Codec is a pure function over its inputs: it holds the signing key and
// algorithm only and never touches any storage.
package claims

import (
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nkiryanov/tokenauth/internal/apperrors"
)

// Registered claim names the codec handles itself
const (
	SubjectClaim    = "sub"
	SessionIDClaim  = "jti"
	ExpirationClaim = "exp"
	AudienceClaim   = "aud"
)

// Claims carried by every token
type Claims struct {
	// Opaque reference to the user
	Subject string

	// Refresh session id. Empty for access tokens
	SessionID string

	// Token kind the token is issued for, e.g. "access" or "refresh"
	Audience string

	// Token is valid strictly before this moment
	ExpiresAt time.Time

	// Any custom claims. Must not use the registered claim names
	Extra map[string]any
}

// Value returns raw claim value by its name
func (c Claims) Value(name string) (any, bool) {
	switch name {
	case SubjectClaim:
		return c.Subject, c.Subject != ""
	case SessionIDClaim:
		return c.SessionID, c.SessionID != ""
	case ExpirationClaim:
		return c.ExpiresAt, !c.ExpiresAt.IsZero()
	case AudienceClaim:
		return c.Audience, c.Audience != ""
	}

	v, ok := c.Extra[name]
	return v, ok
}

// Verifier checks a single claim after the signature and expiration are verified
// Decoding fails with apperrors.ErrCustomClaim if Verify returns false
type Verifier struct {
	Claim  string
	Verify func(value any, c Claims) bool
}

// Audience rejects tokens not issued for the audience
func Audience(aud string) Verifier {
	return Verifier{
		Claim: AudienceClaim,
		Verify: func(value any, _ Claims) bool {
			got, _ := value.(string)
			return got == aud
		},
	}
}

type Config struct {
	// Symmetric key to sign and verify tokens
	Key []byte

	// JWT MAC algorithm name, e.g. HS256
	Alg string

	// Clock used to verify expiration. time.Now if not set
	TimeFunc func() time.Time
}

type Codec struct {
	key    []byte
	method jwt.SigningMethod
	now    func() time.Time
}

func New(cfg Config) (*Codec, error) {
	if len(cfg.Key) == 0 {
		return nil, errors.New("signing key must not be empty")
	}

	method, ok := jwt.GetSigningMethod(cfg.Alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q, only HMAC ones allowed", cfg.Alg)
	}

	now := cfg.TimeFunc
	if now == nil {
		now = time.Now
	}

	return &Codec{key: cfg.Key, method: method, now: now}, nil
}

func (c *Codec) Alg() string {
	return c.method.Alg()
}

// Encode signs claims and returns the token string
func (c *Codec) Encode(claims Claims) (string, error) {
	if claims.ExpiresAt.IsZero() {
		return "", errors.New("expiration must be set")
	}

	payload := make(jwt.MapClaims, len(claims.Extra)+4)
	maps.Copy(payload, claims.Extra)

	// Extra never sets registered claims, even the ones left empty
	delete(payload, SessionIDClaim)
	delete(payload, AudienceClaim)

	payload[SubjectClaim] = claims.Subject
	payload[ExpirationClaim] = jwt.NewNumericDate(claims.ExpiresAt)
	if claims.SessionID != "" {
		payload[SessionIDClaim] = claims.SessionID
	}
	if claims.Audience != "" {
		payload[AudienceClaim] = claims.Audience
	}

	token, err := jwt.NewWithClaims(c.method, payload).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("error while signing token. Err: %w", err)
	}

	return token, nil
}

// Decode verifies signature and expiration, then runs verifiers
//
// Fails with:
//   - apperrors.ErrTokenExpired if now is not before expiration
//   - apperrors.ErrCustomClaim if any verifier rejects the claims
//   - apperrors.ErrMalformedToken on any other problem (signature, structure, algorithm)
func (c *Codec) Decode(token string, verifiers ...Verifier) (Claims, error) {
	payload := jwt.MapClaims{}

	_, err := jwt.ParseWithClaims(
		token,
		payload,
		func(t *jwt.Token) (any, error) {
			return c.key, nil
		},
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)

	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return Claims{}, fmt.Errorf("%w: %w", apperrors.ErrTokenExpired, err)
	default:
		return Claims{}, fmt.Errorf("%w: %w", apperrors.ErrMalformedToken, err)
	}

	claims, err := fromPayload(payload)
	if err != nil {
		return Claims{}, err
	}

	if err := Verify(claims, verifiers...); err != nil {
		return Claims{}, err
	}

	return claims, nil
}

// Verify runs verifiers against already decoded claims
// Missing claim is passed to the verifier as nil value
func Verify(claims Claims, verifiers ...Verifier) error {
	for _, v := range verifiers {
		value, _ := claims.Value(v.Claim)
		if !v.Verify(value, claims) {
			return fmt.Errorf("%w: claim %q", apperrors.ErrCustomClaim, v.Claim)
		}
	}

	return nil
}

func fromPayload(payload jwt.MapClaims) (Claims, error) {
	var claims Claims

	sub, err := payload.GetSubject()
	if err != nil {
		return claims, fmt.Errorf("%w: %w", apperrors.ErrMalformedToken, err)
	}

	exp, err := payload.GetExpirationTime()
	if err != nil || exp == nil {
		return claims, fmt.Errorf("%w: invalid exp claim", apperrors.ErrMalformedToken)
	}

	var jti string
	if raw, ok := payload[SessionIDClaim]; ok {
		jti, ok = raw.(string)
		if !ok {
			return claims, fmt.Errorf("%w: jti claim must be a string", apperrors.ErrMalformedToken)
		}
	}

	aud, err := payload.GetAudience()
	if err != nil || len(aud) > 1 {
		return claims, fmt.Errorf("%w: aud claim must be a single string", apperrors.ErrMalformedToken)
	}

	extra := make(map[string]any)
	for k, v := range payload {
		switch k {
		case SubjectClaim, SessionIDClaim, ExpirationClaim, AudienceClaim:
		default:
			extra[k] = v
		}
	}

	claims.Subject = sub
	claims.SessionID = jti
	claims.ExpiresAt = exp.Time
	if len(aud) == 1 {
		claims.Audience = aud[0]
	}
	claims.Extra = extra

	return claims, nil
}
