// Package memory keeps users and refresh sessions in process memory.
// Useful for local runs and fast tests, everything is lost on restart.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/tokenauth/internal/apperrors"
	"github.com/nkiryanov/tokenauth/internal/models"
	"github.com/nkiryanov/tokenauth/internal/repository"
)

type session struct {
	id        string
	expiresAt time.Time
}

type Storage struct {
	mu       sync.RWMutex
	users    map[uuid.UUID]models.User
	sessions map[uuid.UUID]session

	now func() time.Time
}

type Option func(*Storage)

// WithClock sets the clock used to expire sessions
func WithClock(now func() time.Time) Option {
	return func(s *Storage) {
		s.now = now
	}
}

func NewStorage(opts ...Option) *Storage {
	s := &Storage{
		users:    make(map[uuid.UUID]models.User),
		sessions: make(map[uuid.UUID]session),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Storage) User() repository.UserRepo {
	return &UserRepo{s: s}
}

func (s *Storage) Session() repository.SessionRepo {
	return &SessionRepo{s: s}
}

type UserRepo struct {
	s *Storage
}

func (r *UserRepo) CreateUser(_ context.Context, params repository.CreateUserParams) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if params.Activated {
		for _, u := range r.s.users {
			if u.Activated && strings.EqualFold(u.Email, params.Email) {
				return models.User{}, apperrors.ErrUserAlreadyExists
			}
		}
	}

	user := models.User{
		ID:             uuid.New(),
		CreatedAt:      r.s.now().UTC().Truncate(time.Microsecond),
		Name:           params.Name,
		Email:          params.Email,
		HashedPassword: params.HashedPassword,
		Activated:      params.Activated,
	}
	r.s.users[user.ID] = user

	return user, nil
}

func (r *UserRepo) GetUserByID(_ context.Context, userID uuid.UUID) (models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	user, ok := r.s.users[userID]
	if !ok {
		return user, apperrors.ErrUserNotFound
	}
	return user, nil
}

func (r *UserRepo) GetActiveUserByEmail(_ context.Context, email string) (models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if u.Activated && strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return models.User{}, apperrors.ErrUserNotFound
}

type SessionRepo struct {
	s *Storage
}

func (r *SessionRepo) SetSessionID(_ context.Context, userID uuid.UUID, sessionID string, expiresAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[userID]; !ok {
		return apperrors.ErrUserNotFound
	}

	r.s.sessions[userID] = session{id: sessionID, expiresAt: expiresAt}
	return nil
}

func (r *SessionRepo) GetSessionID(_ context.Context, userID uuid.UUID) (string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	sess, ok := r.s.sessions[userID]
	if !ok || !r.s.now().Before(sess.expiresAt) {
		return "", nil
	}
	return sess.id, nil
}

func (r *SessionRepo) ClearSessionID(_ context.Context, userID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	delete(r.s.sessions, userID)
	return nil
}
