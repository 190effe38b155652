package memory

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/tokenauth/internal/apperrors"
	"github.com/nkiryanov/tokenauth/internal/repository"
)

func TestStorage(t *testing.T) {
	t.Parallel()

	params := repository.CreateUserParams{
		Name:           "Test User",
		Email:          "test@example.com",
		HashedPassword: "hashed",
		Activated:      true,
	}

	t.Run("User", func(t *testing.T) {
		t.Run("create and get ok", func(t *testing.T) {
			s := NewStorage()

			created, err := s.User().CreateUser(t.Context(), params)
			require.NoError(t, err)

			byID, err := s.User().GetUserByID(t.Context(), created.ID)
			require.NoError(t, err)
			require.Equal(t, created, byID)

			byEmail, err := s.User().GetActiveUserByEmail(t.Context(), "TEST@example.com")
			require.NoError(t, err, "email lookup must be case insensitive")
			require.Equal(t, created, byEmail)
		})

		t.Run("duplicate active email fail", func(t *testing.T) {
			s := NewStorage()
			_, err := s.User().CreateUser(t.Context(), params)
			require.NoError(t, err)

			dup := params
			dup.Email = "Test@Example.com"
			_, err = s.User().CreateUser(t.Context(), dup)

			require.ErrorIs(t, err, apperrors.ErrUserAlreadyExists)
		})

		t.Run("inactive user not found by email", func(t *testing.T) {
			s := NewStorage()
			inactive := params
			inactive.Activated = false
			_, err := s.User().CreateUser(t.Context(), inactive)
			require.NoError(t, err)

			_, err = s.User().GetActiveUserByEmail(t.Context(), params.Email)

			require.ErrorIs(t, err, apperrors.ErrUserNotFound)
		})

		t.Run("not existed user", func(t *testing.T) {
			_, err := NewStorage().User().GetUserByID(t.Context(), uuid.New())
			require.ErrorIs(t, err, apperrors.ErrUserNotFound)
		})
	})

	t.Run("Session", func(t *testing.T) {
		t.Run("set overwrites", func(t *testing.T) {
			s := NewStorage()
			user, err := s.User().CreateUser(t.Context(), params)
			require.NoError(t, err)
			expiresAt := time.Now().Add(time.Hour)

			require.NoError(t, s.Session().SetSessionID(t.Context(), user.ID, "first", expiresAt))
			require.NoError(t, s.Session().SetSessionID(t.Context(), user.ID, "second", expiresAt))

			got, err := s.Session().GetSessionID(t.Context(), user.ID)
			require.NoError(t, err)
			require.Equal(t, "second", got)
		})

		t.Run("clear", func(t *testing.T) {
			s := NewStorage()
			user, err := s.User().CreateUser(t.Context(), params)
			require.NoError(t, err)
			require.NoError(t, s.Session().SetSessionID(t.Context(), user.ID, "first", time.Now().Add(time.Hour)))

			require.NoError(t, s.Session().ClearSessionID(t.Context(), user.ID))

			got, err := s.Session().GetSessionID(t.Context(), user.ID)
			require.NoError(t, err)
			require.Empty(t, got)
		})

		t.Run("expired session forgotten", func(t *testing.T) {
			s := NewStorage()
			user, err := s.User().CreateUser(t.Context(), params)
			require.NoError(t, err)
			require.NoError(t, s.Session().SetSessionID(t.Context(), user.ID, "first", time.Now().Add(-time.Second)))

			got, err := s.Session().GetSessionID(t.Context(), user.ID)
			require.NoError(t, err)
			require.Empty(t, got)
		})

		t.Run("set for unknown user fail", func(t *testing.T) {
			err := NewStorage().Session().SetSessionID(t.Context(), uuid.New(), "id", time.Now().Add(time.Hour))
			require.ErrorIs(t, err, apperrors.ErrUserNotFound)
		})

		t.Run("concurrent writers keep one value", func(t *testing.T) {
			s := NewStorage()
			user, err := s.User().CreateUser(t.Context(), params)
			require.NoError(t, err)

			ids := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
			var wg sync.WaitGroup
			for _, id := range ids {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_ = s.Session().SetSessionID(t.Context(), user.ID, id, time.Now().Add(time.Hour))
				}()
			}
			wg.Wait()

			got, err := s.Session().GetSessionID(t.Context(), user.ID)
			require.NoError(t, err)
			require.Contains(t, ids, got)
		})
	})
}
