package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserNotActivated   = errors.New("user not activated")
	ErrPasswordMismatch   = errors.New("password mismatch")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Any failure while decoding a signed token wraps this one
	ErrTokenDecode = errors.New("token decode error")

	ErrMalformedToken = fmt.Errorf("malformed token: %w", ErrTokenDecode)
	ErrTokenExpired   = fmt.Errorf("token is expired: %w", ErrTokenDecode)
	ErrCustomClaim    = fmt.Errorf("claim verification failed: %w", ErrTokenDecode)

	// Refresh token session id does not match the one stored for the user.
	// Either the token was rotated, the user logged out or the token was stolen
	ErrSessionMismatch = fmt.Errorf("refresh session mismatch: %w", ErrCustomClaim)

	// Opaque subject could not be unwrapped. Treated as malformed token
	ErrReference = fmt.Errorf("invalid subject reference: %w", ErrMalformedToken)

	// No refresh credential presented at all. It is a state, not a decode failure
	ErrNotLoggedIn = errors.New("not logged in")

	// Logout could not confirm the session was cleared
	ErrSessionNotCleared = errors.New("session not cleared")
)
