package handlers

import (
	"context"
	"net/http"

	"github.com/nkiryanov/tokenauth/internal/handlers/middleware"
	"github.com/nkiryanov/tokenauth/internal/logger"
	"github.com/nkiryanov/tokenauth/internal/models"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	authService authService,
	cookie SessionCookie,
	logger logger.Logger,
) http.Handler {
	withAuth := middleware.Auth(authService, cookie.Clear)

	api := http.NewServeMux()

	api.Handle("POST /auth_token", handleLogin(authService, cookie, logger))
	api.Handle("POST /auth_token/refresh", handleTokenRefresh(authService, cookie, logger))
	api.Handle("DELETE /auth_token", handleLogout(authService, cookie, logger))

	api.Handle("GET /users", withAuth(handleUserMe()))
	api.Handle("POST /users", handleRegister(authService, logger))

	root := http.NewServeMux()
	root.Handle("/api/v1/", http.StripPrefix("/api/v1", api))

	handler := chain(root,
		middleware.LoggerMiddleware(logger),
		middleware.XHR,
	)

	return handler
}

type authService interface {
	// Register activated user
	// Has to return apperrors.ErrUserAlreadyExists if user already exists
	Register(ctx context.Context, name string, email string, password string) (models.User, error)

	// Login user with email and password
	// Has to return apperrors.ErrInvalidCredentials for any credentials problem
	Login(ctx context.Context, email string, password string) (models.Session, error)

	// Rotate refresh token and issue new access token
	// Has to return apperrors.ErrNotLoggedIn if token is empty, apperrors.ErrSessionMismatch if token was revoked
	Refresh(ctx context.Context, rawRefresh string) (models.Session, error)

	// Clear session of the refresh token owner
	// Has to return apperrors.ErrSessionNotCleared if session can't be cleared
	Logout(ctx context.Context, rawRefresh string) error

	// Resolve access token user
	Authenticate(ctx context.Context, rawAccess string) (models.User, error)
}
