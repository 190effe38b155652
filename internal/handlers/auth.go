package handlers

import (
	"errors"
	"net/http"

	"github.com/nkiryanov/tokenauth/internal/apperrors"
	"github.com/nkiryanov/tokenauth/internal/handlers/render"
	"github.com/nkiryanov/tokenauth/internal/logger"
	"github.com/nkiryanov/tokenauth/internal/models"
)

const InvalidSessionErrorType = "invalid_session"

// Payload returned on login and refresh
type sessionResponse struct {
	Token   string                `json:"token"`
	Expires int64                 `json:"expires"`
	User    models.UserProjection `json:"user"`
}

func newSessionResponse(s models.Session) sessionResponse {
	return sessionResponse{
		Token:   s.Pair.Access.Value,
		Expires: s.Pair.Access.ExpiresAt.Unix(),
		User:    s.User.Projection(s.Subject),
	}
}

func handleLogin(authService authService, cookie SessionCookie, l logger.Logger) http.Handler {
	type request struct {
		Auth struct {
			Email    string `json:"email" validate:"required"`
			Password string `json:"password" validate:"required"`
		} `json:"auth"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Whatever happens the previous session cookie is gone
		cookie.Clear(w)

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		session, err := authService.Login(r.Context(), data.Auth.Email, data.Auth.Password)
		switch {
		case errors.Is(err, apperrors.ErrInvalidCredentials):
			render.Status(w, http.StatusNotFound)
			return
		case err != nil:
			l.Error("login failed", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		cookie.Set(w, session.Pair.Refresh.Value, session.Pair.Refresh.ExpiresAt)
		render.JSON(w, newSessionResponse(session))
	})
}

func handleTokenRefresh(authService authService, cookie SessionCookie, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := authService.Refresh(r.Context(), cookie.Read(r))
		if err != nil {
			renderSessionError(w, err, cookie, l)
			return
		}

		cookie.Set(w, session.Pair.Refresh.Value, session.Pair.Refresh.ExpiresAt)
		render.JSON(w, newSessionResponse(session))
	})
}

func handleLogout(authService authService, cookie SessionCookie, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := authService.Logout(r.Context(), cookie.Read(r))
		if err != nil {
			renderSessionError(w, err, cookie, l)
			return
		}

		cookie.Clear(w)
		render.Status(w, http.StatusOK)
	})
}

// Any failure to find the session kills the cookie, so client does not retry with a known bad token
func renderSessionError(w http.ResponseWriter, err error, cookie SessionCookie, l logger.Logger) {
	switch {
	case errors.Is(err, apperrors.ErrSessionMismatch):
		cookie.Clear(w)
		render.Error(w, InvalidSessionErrorType, "Invalid jti for refresh token", http.StatusUnauthorized)
	case errors.Is(err, apperrors.ErrNotLoggedIn),
		errors.Is(err, apperrors.ErrTokenDecode),
		errors.Is(err, apperrors.ErrUserNotFound):
		cookie.Clear(w)
		render.Status(w, http.StatusUnauthorized)
	case errors.Is(err, apperrors.ErrSessionNotCleared):
		l.Error("session not cleared", "error", err)
		render.ServiceError(w, "Could not delete session", http.StatusInternalServerError)
	default:
		l.Error("session request failed", "error", err)
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
	}
}
