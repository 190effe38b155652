// Package redisstore keeps refresh session ids in redis.
// Each user has a single key, so the overwrite on issue is a single SET.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/nkiryanov/tokenauth/internal/repository"
)

const keyPrefix = "refresh_session:"

// Users live elsewhere, so the user repo is asked whether the session owner exists
type SessionRepo struct {
	rdb   redis.Cmdable
	users repository.UserRepo
	now   func() time.Time
}

func NewSessionRepo(rdb redis.Cmdable, users repository.UserRepo) *SessionRepo {
	return &SessionRepo{rdb: rdb, users: users, now: time.Now}
}

func sessionKey(userID uuid.UUID) string {
	return keyPrefix + userID.String()
}

// SetSessionID overwrites stored session id. The key expires together with the refresh token
// Fails with apperrors.ErrUserNotFound if there is no such user
func (r *SessionRepo) SetSessionID(ctx context.Context, userID uuid.UUID, sessionID string, expiresAt time.Time) error {
	if _, err := r.users.GetUserByID(ctx, userID); err != nil {
		return fmt.Errorf("error while checking session owner. Err: %w", err)
	}

	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return r.ClearSessionID(ctx, userID)
	}

	err := r.rdb.Set(ctx, sessionKey(userID), sessionID, ttl).Err()
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}

	return nil
}

// GetSessionID returns empty string if there is no active session
func (r *SessionRepo) GetSessionID(ctx context.Context, userID uuid.UUID) (string, error) {
	sessionID, err := r.rdb.Get(ctx, sessionKey(userID)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "", nil
	case err != nil:
		return "", fmt.Errorf("redis error: %w", err)
	}

	return sessionID, nil
}

func (r *SessionRepo) ClearSessionID(ctx context.Context, userID uuid.UUID) error {
	err := r.rdb.Del(ctx, sessionKey(userID)).Err()
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}

	return nil
}
