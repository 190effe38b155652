package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/nkiryanov/tokenauth/internal/apperrors"
	"github.com/nkiryanov/tokenauth/internal/handlers/render"
	"github.com/nkiryanov/tokenauth/internal/handlers/userctx"
	"github.com/nkiryanov/tokenauth/internal/models"
)

type authenticator interface {
	Authenticate(ctx context.Context, rawAccess string) (models.User, error)
}

const bearerPrefix = "Bearer "

// Access token from Authorization header. Bearer scheme is optional
func AccessFromRequest(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) >= len(bearerPrefix) && strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return strings.TrimSpace(header[len(bearerPrefix):])
	}
	return header
}

// Auth resolves access token user once per request and puts it to the request context
// If the token or its user is invalid the refresh credential is cleared with onFail and 401 returned without body
// Any other failure is 500 and leaves the refresh credential as is
func Auth(a authenticator, onFail func(http.ResponseWriter)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := userctx.FromContext(r.Context()); ok {
				next.ServeHTTP(w, r)
				return
			}

			user, err := a.Authenticate(r.Context(), AccessFromRequest(r))
			switch {
			case err == nil:
			case isUnauthenticated(err):
				if onFail != nil {
					onFail(w)
				}
				render.Status(w, http.StatusUnauthorized)
				return
			default:
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			next.ServeHTTP(w, r.WithContext(userctx.New(r.Context(), user)))
		})
	}
}

func isUnauthenticated(err error) bool {
	return errors.Is(err, apperrors.ErrTokenDecode) ||
		errors.Is(err, apperrors.ErrUserNotFound) ||
		errors.Is(err, apperrors.ErrNotLoggedIn) ||
		errors.Is(err, apperrors.ErrUserNotActivated)
}
