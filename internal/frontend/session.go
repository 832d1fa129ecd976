package frontend

import (
	"net/http"

	"github.com/ndewijer/Finance-Insights/internal/api/response"
	"github.com/ndewijer/Finance-Insights/internal/model"
	"github.com/ndewijer/Finance-Insights/internal/reconcile"
)

// SessionView is the identity state shown by the user interface.
type SessionView struct {
	Authenticated bool                       `json:"authenticated"`
	User          *model.Credential          `json:"user,omitempty"`
	Migration     *reconcile.MigrationResult `json:"migration,omitempty"`
	// PendingConfirmation is set after a sign-up that must be confirmed by
	// email before a session is issued.
	PendingConfirmation bool `json:"pending_confirmation,omitempty"`
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type recoverRequest struct {
	Email string `json:"email"`
}

type passwordRequest struct {
	Password string `json:"password"`
	Confirm  string `json:"confirm"`
}

func (s *Server) sessionView() SessionView {
	var view SessionView
	if cred, ok := s.sessions.Current(); ok {
		view.Authenticated = true
		view.User = &cred
	}
	if res, ok := s.reconciler.LastMigration(); ok {
		view.Migration = &res
	}
	return view
}

// GetSession returns the current identity.
//
// Endpoint: GET /api/session
// Response: 200 OK with SessionView
func (s *Server) GetSession(w http.ResponseWriter, _ *http.Request) {
	response.RespondJSON(w, http.StatusOK, s.sessionView())
}

// SignIn authenticates with email and password.
//
// Endpoint: POST /api/session/signin
// Request Body: {"email": "...", "password": "..."}
// Response: 200 OK with SessionView
// Error: 400 for missing fields, 401 when the provider rejects the credentials
func (s *Server) SignIn(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJSON[credentialsRequest](r)
	if err != nil {
		s.respondBadRequest(w, err)
		return
	}
	if _, err := s.sessions.SignIn(r.Context(), req.Email, req.Password); err != nil {
		s.respondFailure(w, err)
		return
	}
	response.RespondJSON(w, http.StatusOK, s.sessionView())
}

// SignUp registers a new account. A guest analysis held in the store is
// migrated to the account before the response is written; the outcome is
// reported under migration and never fails the sign-up.
//
// Endpoint: POST /api/session/signup
// Request Body: {"email": "...", "password": "..."}
// Response: 200 OK with SessionView
// Error: 400 for invalid input, 401 when the provider rejects the sign-up
func (s *Server) SignUp(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJSON[credentialsRequest](r)
	if err != nil {
		s.respondBadRequest(w, err)
		return
	}
	cred, err := s.sessions.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		s.respondFailure(w, err)
		return
	}

	view := s.sessionView()
	if !cred.HasSession() {
		view.PendingConfirmation = true
		view.Migration = nil
	}
	response.RespondJSON(w, http.StatusOK, view)
}

// SignOut drops the session and clears the analysis.
//
// Endpoint: POST /api/session/signout
// Response: 200 OK with SessionView
// Error: 401 or 502 when the provider call failed; the local session is cleared regardless
func (s *Server) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.SignOut(r.Context()); err != nil {
		s.respondFailure(w, err)
		return
	}
	response.RespondJSON(w, http.StatusOK, s.sessionView())
}

// Refresh rotates the session tokens.
//
// Endpoint: POST /api/session/refresh
// Response: 200 OK with SessionView
// Error: 400 when signed out, 401 when the refresh token is rejected
func (s *Server) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Refresh(r.Context()); err != nil {
		s.respondFailure(w, err)
		return
	}
	response.RespondJSON(w, http.StatusOK, s.sessionView())
}

// Recover requests a password reset email.
//
// Endpoint: POST /api/session/recover
// Request Body: {"email": "..."}
// Response: 200 OK {"status": "sent"}
// Error: 400 for a malformed email
func (s *Server) Recover(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJSON[recoverRequest](r)
	if err != nil {
		s.respondBadRequest(w, err)
		return
	}
	if err := s.sessions.ResetPassword(r.Context(), req.Email); err != nil {
		s.respondFailure(w, err)
		return
	}
	response.RespondJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

// UpdatePassword sets a new password for the signed-in user.
//
// Endpoint: POST /api/session/password
// Request Body: {"password": "...", "confirm": "..."}
// Response: 200 OK {"status": "updated"}
// Error: 400 for a weak or mismatched password or when signed out
func (s *Server) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJSON[passwordRequest](r)
	if err != nil {
		s.respondBadRequest(w, err)
		return
	}
	if err := s.sessions.UpdatePassword(r.Context(), req.Password, req.Confirm); err != nil {
		s.respondFailure(w, err)
		return
	}
	response.RespondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}
