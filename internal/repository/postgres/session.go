package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/tokenauth/internal/apperrors"
)

// Keeps refresh session id in users.refresh_session_id column
// Single row UPDATE is atomic, so concurrent writers end up with the last one value
type SessionRepo struct {
	DB DBTX
}

const setSessionID = `-- name: SetSessionID
UPDATE users
SET refresh_session_id = $2
WHERE id = $1
`

// expiresAt is not stored: an expired refresh token fails on its own exp claim
func (r *SessionRepo) SetSessionID(ctx context.Context, userID uuid.UUID, sessionID string, _ time.Time) error {
	tag, err := r.DB.Exec(ctx, setSessionID, userID, sessionID)
	switch {
	case err != nil:
		return fmt.Errorf("db error: %w", err)
	case tag.RowsAffected() == 0:
		return apperrors.ErrUserNotFound
	default:
		return nil
	}
}

const getSessionID = `-- name: GetSessionID
SELECT COALESCE(refresh_session_id, '')
FROM users
WHERE id = $1
`

func (r *SessionRepo) GetSessionID(ctx context.Context, userID uuid.UUID) (string, error) {
	rows, _ := r.DB.Query(ctx, getSessionID, userID)
	sessionID, err := pgx.CollectOneRow(rows, pgx.RowTo[string])

	switch {
	case err == nil:
		return sessionID, nil
	case errors.Is(err, pgx.ErrNoRows):
		return "", apperrors.ErrUserNotFound
	default:
		return "", fmt.Errorf("db error: %w", err)
	}
}

const clearSessionID = `-- name: ClearSessionID
UPDATE users
SET refresh_session_id = NULL
WHERE id = $1
`

func (r *SessionRepo) ClearSessionID(ctx context.Context, userID uuid.UUID) error {
	_, err := r.DB.Exec(ctx, clearSessionID, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
