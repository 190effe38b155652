package middleware

import (
	"net/http"

	"github.com/nkiryanov/tokenauth/internal/handlers/render"
)

// XHR accepts requests with 'X-Requested-With: XMLHttpRequest' header only
// Other origins can't set custom headers without CORS preflight, so it is enough to stop CSRF
func XHR(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Requested-With") != "XMLHttpRequest" {
			render.ServiceError(w, "Forbidden", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}
