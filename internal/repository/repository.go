package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/tokenauth/internal/models"
)

type CreateUserParams struct {
	Name           string
	Email          string
	HashedPassword string
	Activated      bool
}

// User repository interface
type UserRepo interface {
	// Create user
	// If activated user with the same email (case insensitive) exists has to return apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, params CreateUserParams) (models.User, error)

	// Get user by its id
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)

	// Get activated user by email, case insensitive
	// If there is no such activated user must return apperrors.ErrUserNotFound
	GetActiveUserByEmail(ctx context.Context, email string) (models.User, error)
}

// Refresh session repository interface
// Holds the only valid refresh session id per user
type SessionRepo interface {
	// Overwrite user session id. Last writer wins
	// expiresAt is the refresh token expiration, storage may forget the id after it
	// If user not found must return apperrors.ErrUserNotFound
	SetSessionID(ctx context.Context, userID uuid.UUID, sessionID string, expiresAt time.Time) error

	// Return current session id or empty string if there is no active session
	GetSessionID(ctx context.Context, userID uuid.UUID) (string, error)

	// Forget user session id
	ClearSessionID(ctx context.Context, userID uuid.UUID) error
}

type Storage interface {
	User() UserRepo
	Session() SessionRepo
}
