package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/nkiryanov/tokenauth/internal/apperrors"
	"github.com/nkiryanov/tokenauth/internal/logger"
	"github.com/nkiryanov/tokenauth/internal/models"
	"github.com/nkiryanov/tokenauth/internal/repository"
	"github.com/nkiryanov/tokenauth/internal/service/auth/tokenmanager"
)

// Interface to create or compare user password hashes
type PasswordHasher interface {
	// Generate Hash from password
	Hash(password string) (string, error)

	// Compare known hashedPassword and user provided password
	// Must be protected against timing attacks
	Compare(hashedPassword string, password string) error
}

type Config struct {
	// Hasher to user during user registration or login process
	// BcryptHasher if not set
	Hasher PasswordHasher

	// NoOp logger if not set
	Logger logger.Logger
}

// Auth service
type AuthService struct {
	// Manager to issue and parse access and refresh tokens
	tokens *tokenmanager.TokenManager

	// hasher to hash or compare user passwords
	hasher PasswordHasher

	// Hash compared when there is no such user, so both login failures take the same time
	dummyHash string

	users    repository.UserRepo
	sessions repository.SessionRepo

	logger logger.Logger
}

func NewService(cfg Config, tokens *tokenmanager.TokenManager, users repository.UserRepo, sessions repository.SessionRepo) (*AuthService, error) {
	if tokens == nil || users == nil || sessions == nil {
		return nil, errors.New("token manager and repos must not be nil")
	}

	// Set default bcrypt hasher if not user provided by user
	hasher := cfg.Hasher
	if hasher == nil {
		hasher = BcryptHasher{}
	}

	l := cfg.Logger
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	dummyHash, err := hasher.Hash(rand.Text())
	if err != nil {
		return nil, fmt.Errorf("error while preparing dummy hash. Err: %w", err)
	}

	return &AuthService{
		tokens:    tokens,
		hasher:    hasher,
		dummyHash: dummyHash,
		users:     users,
		sessions:  sessions,
		logger:    l.With("service", "auth"),
	}, nil
}

// Register creates activated user
func (s *AuthService) Register(ctx context.Context, name string, email string, password string) (models.User, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return models.User{}, fmt.Errorf("can't use this as password, Err: %w", err)
	}

	user, err := s.users.CreateUser(ctx, repository.CreateUserParams{
		Name:           name,
		Email:          email,
		HashedPassword: hash,
		Activated:      true,
	})
	if err != nil {
		return models.User{}, fmt.Errorf("can't create user. Err: %w", err)
	}

	s.logger.Info("user registered", "user_id", user.ID)
	return user, nil
}

// Login checks credentials of an activated user and starts new session
// Any session started before is revoked
//
// Fails with apperrors.ErrInvalidCredentials whatever is wrong with credentials
// The real cause is joined to the error for logging only
func (s *AuthService) Login(ctx context.Context, email string, password string) (models.Session, error) {
	user, err := s.users.GetActiveUserByEmail(ctx, email)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		_ = s.hasher.Compare(s.dummyHash, password)
		return models.Session{}, s.invalidCredentials(err)
	case err != nil:
		return models.Session{}, fmt.Errorf("error while looking up user. Err: %w", err)
	}

	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		return models.Session{}, s.invalidCredentials(apperrors.ErrPasswordMismatch)
	}

	session, err := s.startSession(ctx, user)
	if err != nil {
		return models.Session{}, err
	}

	s.logger.Info("user logged in", "user_id", user.ID)
	return session, nil
}

func (s *AuthService) invalidCredentials(cause error) error {
	err := errors.Join(apperrors.ErrInvalidCredentials, cause)
	s.logger.Info("login failed", "error", err)
	return err
}

// Refresh rotates the refresh token and issues new access token
// Presented refresh token is dead after success
func (s *AuthService) Refresh(ctx context.Context, rawRefresh string) (models.Session, error) {
	if rawRefresh == "" {
		return models.Session{}, apperrors.ErrNotLoggedIn
	}

	refresh, err := s.tokens.ParseRefresh(ctx, rawRefresh)
	if err != nil {
		if errors.Is(err, apperrors.ErrSessionMismatch) {
			s.logger.Warn("superseded refresh token presented, possible token theft", "error", err)
		}
		return models.Session{}, err
	}

	return s.startSession(ctx, refresh.User())
}

// Logout clears stored session of the refresh token owner
//
// Fails with:
//   - apperrors.ErrNotLoggedIn if no token presented
//   - any refresh token parse error (already logged out token fails with apperrors.ErrSessionMismatch)
//   - apperrors.ErrSessionNotCleared if the session is still there after clearing
func (s *AuthService) Logout(ctx context.Context, rawRefresh string) error {
	if rawRefresh == "" {
		return apperrors.ErrNotLoggedIn
	}

	refresh, err := s.tokens.ParseRefresh(ctx, rawRefresh)
	if err != nil {
		return err
	}
	userID := refresh.User().ID

	if err := s.sessions.ClearSessionID(ctx, userID); err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrSessionNotCleared, err)
	}

	// Other session id means concurrent login happened after clearing, the presented session is gone anyway
	stored, err := s.sessions.GetSessionID(ctx, userID)
	switch {
	case err != nil:
		return fmt.Errorf("%w: %w", apperrors.ErrSessionNotCleared, err)
	case stored == refresh.SessionID():
		return apperrors.ErrSessionNotCleared
	}

	s.logger.Info("user logged out", "user_id", userID)
	return nil
}

// Authenticate returns the access token owner
func (s *AuthService) Authenticate(ctx context.Context, rawAccess string) (models.User, error) {
	if rawAccess == "" {
		return models.User{}, apperrors.ErrNotLoggedIn
	}

	access, err := s.tokens.ParseAccess(rawAccess)
	if err != nil {
		return models.User{}, err
	}

	return access.ResolveUser(ctx)
}

// AuthenticateActive is Authenticate that fails with apperrors.ErrUserNotActivated for inactive users
func (s *AuthService) AuthenticateActive(ctx context.Context, rawAccess string) (models.User, error) {
	user, err := s.Authenticate(ctx, rawAccess)
	if err != nil {
		return models.User{}, err
	}

	if !user.Activated {
		return models.User{}, apperrors.ErrUserNotActivated
	}

	return user, nil
}

// Refresh token goes first: if it can't be stored there is no point in access token
func (s *AuthService) startSession(ctx context.Context, user models.User) (models.Session, error) {
	refresh, err := s.tokens.IssueRefresh(ctx, user.ID)
	if err != nil {
		return models.Session{}, fmt.Errorf("refresh token could not be issued. Err: %w", err)
	}

	access, err := s.tokens.IssueAccess(user.ID)
	if err != nil {
		return models.Session{}, fmt.Errorf("access token could not be issued. Err: %w", err)
	}

	return models.Session{
		Pair: models.TokenPair{
			Access:  models.IssuedToken{Value: access.Raw, ExpiresAt: access.ExpiresAt()},
			Refresh: models.IssuedToken{Value: refresh.Raw, ExpiresAt: refresh.ExpiresAt()},
		},
		User:    user,
		Subject: access.Claims.Subject,
	}, nil
}
