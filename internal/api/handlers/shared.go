package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ndewijer/Finance-Insights/internal/aggregator"
	"github.com/ndewijer/Finance-Insights/internal/api/response"
	"github.com/ndewijer/Finance-Insights/internal/apperrors"
	"github.com/ndewijer/Finance-Insights/internal/auth"
	"github.com/ndewijer/Finance-Insights/internal/validation"
)

// errEmptyBody is returned by parseJSON when the request has no body.
var errEmptyBody = errors.New("request body is empty")

// parseJSON decodes the request body into a value of type T.
func parseJSON[T any](r *http.Request) (T, error) {
	var v T
	if r.Body == nil || r.Body == http.NoBody {
		return v, errEmptyBody
	}
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		return v, err
	}
	return v, nil
}

// respondValidationError writes a 400 response. Field-level failures are
// returned as details.
func respondValidationError(w http.ResponseWriter, err error) {
	var verr *validation.Error
	if errors.As(err, &verr) {
		response.RespondError(w, http.StatusBadRequest, "validation failed", verr.Details())
		return
	}
	response.RespondError(w, http.StatusBadRequest, "validation failed", err.Error())
}

// respondBankError maps bank-link failures onto HTTP statuses. Anything not
// recognized is a 500 carrying fallback as the message.
func respondBankError(w http.ResponseWriter, err error, fallback error) {
	if apiErr, ok := aggregator.IsAPIError(err); ok {
		response.RespondError(w, http.StatusBadGateway, apiErr.Reason(), apiErr.ErrorCode)
		return
	}
	switch {
	case errors.Is(err, apperrors.ErrBankLinkingNotConfigured),
		errors.Is(err, apperrors.ErrEncryptionNotConfigured):
		response.RespondError(w, http.StatusServiceUnavailable, err.Error(), "")
	case errors.Is(err, apperrors.ErrMissingPublicToken),
		errors.Is(err, apperrors.ErrMissingAccessToken):
		response.RespondError(w, http.StatusBadRequest, err.Error(), "")
	case errors.Is(err, apperrors.ErrLinkedItemNotFound):
		response.RespondError(w, http.StatusNotFound, apperrors.ErrLinkedItemNotFound.Error(), "")
	default:
		response.RespondError(w, http.StatusInternalServerError, fallback.Error(), err.Error())
	}
}

// requireUser returns the authenticated user id or writes a 401.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok || userID == "" {
		response.RespondError(w, http.StatusUnauthorized, "unauthorized", apperrors.ErrNotSignedIn.Error())
		return "", false
	}
	return userID, true
}
