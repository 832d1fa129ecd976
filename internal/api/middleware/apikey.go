package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/ndewijer/Finance-Insights/internal/api/response"
)

// APIKeyMiddleware returns a middleware requiring key in the apikey (or
// X-API-Key) header. An empty key disables the check.
func APIKeyMiddleware(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("apikey")
			if got == "" {
				got = r.Header.Get("X-API-Key")
			}
			if got == "" {
				response.RespondError(w, http.StatusUnauthorized, "unauthorized", "Missing API key")
				return
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				response.RespondError(w, http.StatusUnauthorized, "unauthorized", "Invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
