package handlers

import (
	"errors"
	"net/http"
	"unicode"
	"unicode/utf8"

	"github.com/ndewijer/Finance-Insights/internal/api/request"
	"github.com/ndewijer/Finance-Insights/internal/api/response"
	"github.com/ndewijer/Finance-Insights/internal/apperrors"
	"github.com/ndewijer/Finance-Insights/internal/identity"
	"github.com/ndewijer/Finance-Insights/internal/service"
	"github.com/ndewijer/Finance-Insights/internal/validation"
)

// IdentityHandler serves the development identity provider. Requests and
// responses follow the GoTrue wire format so the identity client can talk
// to it unchanged.
type IdentityHandler struct {
	identityService *service.IdentityService
}

// NewIdentityHandler creates a new IdentityHandler
func NewIdentityHandler(identityService *service.IdentityService) *IdentityHandler {
	return &IdentityHandler{
		identityService: identityService,
	}
}

// SignUp registers an account and opens a session.
//
// Endpoint: POST /auth/v1/signup
// Request Body: {"email": "...", "password": "..."}
// Response: 200 OK with identity.SessionResponse
// Error: 422 Unprocessable Entity for invalid input or an existing account
func (h *IdentityHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.CredentialsRequest](r)
	if err != nil {
		respondAuthError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validation.ValidateCredentials(req, true); err != nil {
		respondAuthError(w, http.StatusUnprocessableEntity, firstFieldMessage(err))
		return
	}

	sess, err := h.identityService.SignUp(req.Email, req.Password)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	response.RespondJSON(w, http.StatusOK, sess)
}

// Token opens a session from a password or rotates a refresh token,
// depending on the grant_type query parameter.
//
// Endpoint: POST /auth/v1/token?grant_type=password|refresh_token
// Request Body: {"email", "password"} or {"refresh_token"}
// Response: 200 OK with identity.SessionResponse
// Error: 400 Bad Request for rejected credentials or tokens
func (h *IdentityHandler) Token(w http.ResponseWriter, r *http.Request) {
	var (
		sess identity.SessionResponse
		err  error
	)

	switch grant := r.URL.Query().Get("grant_type"); grant {
	case "password":
		req, perr := parseJSON[request.CredentialsRequest](r)
		if perr != nil {
			respondAuthError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if verr := validation.ValidateCredentials(req, false); verr != nil {
			respondAuthError(w, http.StatusBadRequest, firstFieldMessage(verr))
			return
		}
		sess, err = h.identityService.SignIn(req.Email, req.Password)
	case "refresh_token":
		req, perr := parseJSON[request.RefreshTokenRequest](r)
		if perr != nil {
			respondAuthError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		sess, err = h.identityService.Refresh(req.RefreshToken)
	default:
		respondAuthError(w, http.StatusBadRequest, "Unsupported grant type: "+grant)
		return
	}

	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	response.RespondJSON(w, http.StatusOK, sess)
}

// Logout revokes the caller's refresh tokens.
//
// Endpoint: POST /auth/v1/logout (bearer)
// Response: 204 No Content
// Error: 401 Unauthorized without a valid bearer token
func (h *IdentityHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := h.identityService.SignOut(userID); err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Recover accepts a password reset request. The response never reveals
// whether the address is registered.
//
// Endpoint: POST /auth/v1/recover
// Request Body: {"email": "..."}
// Response: 200 OK with an empty object
// Error: 422 Unprocessable Entity for a malformed address
func (h *IdentityHandler) Recover(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.RecoverRequest](r)
	if err != nil {
		respondAuthError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validation.ValidateRecover(req); err != nil {
		respondAuthError(w, http.StatusUnprocessableEntity, firstFieldMessage(err))
		return
	}
	if err := h.identityService.Recover(req.Email); err != nil {
		h.respondServiceError(w, err)
		return
	}
	response.RespondJSON(w, http.StatusOK, struct{}{})
}

// GetUser returns the account behind the bearer token.
//
// Endpoint: GET /auth/v1/user (bearer)
// Response: 200 OK with identity.UserResponse
// Error: 401 Unauthorized without a valid bearer token
func (h *IdentityHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	user, err := h.identityService.GetUser(userID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	response.RespondJSON(w, http.StatusOK, identity.UserResponse{ID: user.ID, Email: user.Email})
}

// UpdateUser changes the caller's password.
//
// Endpoint: PUT /auth/v1/user (bearer)
// Request Body: {"password": "..."}
// Response: 200 OK with identity.UserResponse
// Error: 422 Unprocessable Entity for a weak password
func (h *IdentityHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	req, err := parseJSON[request.UpdateUserRequest](r)
	if err != nil {
		respondAuthError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validation.ValidateUpdateUser(req); err != nil {
		respondAuthError(w, http.StatusUnprocessableEntity, firstFieldMessage(err))
		return
	}

	user, err := h.identityService.UpdatePassword(userID, req.Password)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	response.RespondJSON(w, http.StatusOK, identity.UserResponse{ID: user.ID, Email: user.Email})
}

func (h *IdentityHandler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperrors.ErrInvalidCredentials),
		errors.Is(err, apperrors.ErrInvalidToken):
		respondAuthError(w, http.StatusBadRequest, capitalize(err.Error()))
	case errors.Is(err, apperrors.ErrUserExists),
		errors.Is(err, apperrors.ErrWeakPassword),
		errors.Is(err, apperrors.ErrInvalidEmail):
		respondAuthError(w, http.StatusUnprocessableEntity, capitalize(err.Error()))
	case errors.Is(err, apperrors.ErrUserNotFound):
		respondAuthError(w, http.StatusNotFound, "User not found")
	default:
		respondAuthError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// respondAuthError writes a GoTrue-shaped error body.
func respondAuthError(w http.ResponseWriter, status int, msg string) {
	response.RespondJSON(w, status, identity.ErrorResponse{Code: status, Msg: msg})
}

func firstFieldMessage(err error) string {
	var verr *validation.Error
	if errors.As(err, &verr) {
		if details := verr.Details(); len(details) > 0 {
			return capitalize(details[0].Msg)
		}
	}
	return capitalize(err.Error())
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
