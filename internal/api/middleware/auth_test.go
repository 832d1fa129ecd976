package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ndewijer/Finance-Insights/internal/api/middleware"
	"github.com/ndewijer/Finance-Insights/internal/auth"
	"github.com/ndewijer/Finance-Insights/internal/model"
)

func TestBearerAuth(t *testing.T) {
	issuer := auth.NewIssuer("middleware-test-secret", time.Hour)
	token, _, err := issuer.Issue(model.User{ID: "user-1", Email: "a@example.com"})
	if err != nil {
		t.Fatalf("Issue() returned unexpected error: %v", err)
	}

	var gotUser string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _ = auth.UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	mw := middleware.BearerAuth(issuer)(next)

	tests := []struct {
		name   string
		header string
		status int
		user   string
	}{
		{"valid token", "Bearer " + token, http.StatusOK, "user-1"},
		{"lowercase scheme", "bearer " + token, http.StatusOK, "user-1"},
		{"missing header", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized, ""},
		{"empty token", "Bearer ", http.StatusUnauthorized, ""},
		{"garbage token", "Bearer not.a.jwt", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotUser = ""
			req := httptest.NewRequest(http.MethodGet, "/api/user_data", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			mw.ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Errorf("Expected %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
			if gotUser != tt.user {
				t.Errorf("Expected user %q, got %q", tt.user, gotUser)
			}
		})
	}

	t.Run("token from another secret", func(t *testing.T) {
		other, _, _ := auth.NewIssuer("another-secret", time.Hour).Issue(model.User{ID: "user-2"})
		req := httptest.NewRequest(http.MethodGet, "/api/user_data", nil)
		req.Header.Set("Authorization", "Bearer "+other)
		w := httptest.NewRecorder()
		mw.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", w.Code)
		}
	})
}

func TestOptionalBearerAuth(t *testing.T) {
	issuer := auth.NewIssuer("middleware-test-secret", time.Hour)
	token, _, err := issuer.Issue(model.User{ID: "user-1"})
	if err != nil {
		t.Fatalf("Issue() returned unexpected error: %v", err)
	}

	tests := []struct {
		name   string
		header string
		user   string
	}{
		{"valid token", "Bearer " + token, "user-1"},
		{"no header", "", ""},
		{"invalid token", "Bearer nope", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUser string
			mw := middleware.OptionalBearerAuth(issuer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser, _ = auth.UserIDFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodPost, "/api/create_link_token", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			mw.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Errorf("Expected 200, got %d", w.Code)
			}
			if gotUser != tt.user {
				t.Errorf("Expected user %q, got %q", tt.user, gotUser)
			}
		})
	}
}
