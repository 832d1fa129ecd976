package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// NewCORS returns the CORS policy shared by the analysis backend and the
// finsight JSON surface. Browsers send the identity provider's apikey and
// X-Client-Info headers on /auth/v1 calls, so both are allowed.
func NewCORS(allowedOrigins []string) *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-API-Key", "apikey", "X-Client-Info"},
		ExposedHeaders: []string{"Content-Type", "X-Request-Id"},
		// Bearer tokens travel in headers, never cookies.
		AllowCredentials: false,
		MaxAge:           600,
	})
}
