package middleware

import (
	"net/http"
	"strings"

	"github.com/ndewijer/Finance-Insights/internal/api/response"
	"github.com/ndewijer/Finance-Insights/internal/auth"
	"github.com/ndewijer/Finance-Insights/internal/logger"
)

// BearerAuth returns a middleware that verifies the Authorization bearer
// token with issuer and stores the token subject as the request's user id.
// Requests without a valid token get 401.
func BearerAuth(issuer *auth.Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				response.RespondError(w, http.StatusUnauthorized, "Missing or invalid Authorization header", "")
				return
			}

			claims, err := issuer.Verify(token)
			if err != nil {
				log := logger.FromContext(r.Context(), logger.Nop())
				log.Debug().Err(err).Msg("bearer token rejected")
				response.RespondError(w, http.StatusUnauthorized, "Invalid token", "")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), claims.Subject)))
		})
	}
}

// OptionalBearerAuth is BearerAuth for routes that also serve guests: a
// valid token sets the user id, a missing or invalid one is ignored.
func OptionalBearerAuth(issuer *auth.Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token, ok := bearerToken(r); ok {
				if claims, err := issuer.Verify(token); err == nil {
					r = r.WithContext(auth.WithUserID(r.Context(), claims.Subject))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
