package handlers

import (
	"net/http"

	"github.com/ndewijer/Finance-Insights/internal/api/request"
	"github.com/ndewijer/Finance-Insights/internal/api/response"
	"github.com/ndewijer/Finance-Insights/internal/apperrors"
	"github.com/ndewijer/Finance-Insights/internal/auth"
	"github.com/ndewijer/Finance-Insights/internal/service"
)

// BankLinkHandler handles the bank-link handshake and transaction pulls.
type BankLinkHandler struct {
	linkService *service.LinkService
}

// NewBankLinkHandler creates a new BankLinkHandler
func NewBankLinkHandler(linkService *service.LinkService) *BankLinkHandler {
	return &BankLinkHandler{
		linkService: linkService,
	}
}

// CreateLinkToken requests a short-lived token for the bank-link widget.
// Anonymous callers get a guest client id.
//
// Endpoint: POST /api/create_link_token
// Response: 200 OK with model.LinkToken
// Error: 502 Bad Gateway if the aggregator rejects the request
// Error: 503 Service Unavailable if bank linking is not configured
func (h *BankLinkHandler) CreateLinkToken(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	token, err := h.linkService.CreateLinkToken(r.Context(), userID)
	if err != nil {
		respondBankError(w, err, apperrors.ErrFailedToCreateLinkToken)
		return
	}

	response.RespondJSON(w, http.StatusOK, token)
}

// ExchangePublicToken trades the widget's public token for an access token.
//
// Endpoint: POST /api/exchange_public_token
// Request Body: {"public_token": "..."}
// Response: 200 OK with model.ExchangeResult
// Error: 400 Bad Request if the public token is missing
// Error: 502 Bad Gateway if the aggregator rejects the token
func (h *BankLinkHandler) ExchangePublicToken(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.ExchangePublicTokenRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	res, err := h.linkService.Exchange(r.Context(), req.PublicToken)
	if err != nil {
		respondBankError(w, err, apperrors.ErrFailedToExchangeToken)
		return
	}

	res.Status = "success"
	response.RespondJSON(w, http.StatusOK, res)
}

// Transactions pulls recent transactions for an access token and analyzes them.
//
// Endpoint: POST /api/transactions
// Request Body: {"access_token": "..."}
// Response: 200 OK with model.PullResult
// Error: 400 Bad Request if the access token is missing
// Error: 502 Bad Gateway if the aggregator rejects the pull
func (h *BankLinkHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.TransactionsRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	res, err := h.linkService.Pull(r.Context(), req.AccessToken)
	if err != nil {
		respondBankError(w, err, apperrors.ErrFailedToPullTransactions)
		return
	}

	response.RespondJSON(w, http.StatusOK, res)
}

// LinkedTransactions pulls transactions for the bank connection saved on
// the caller's account.
//
// Endpoint: POST /api/linked_transactions (bearer)
// Response: 200 OK with model.PullResult
// Error: 404 Not Found if the account has no saved bank connection
// Error: 502 Bad Gateway if the aggregator rejects the pull
func (h *BankLinkHandler) LinkedTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	res, err := h.linkService.PullLinked(r.Context(), userID)
	if err != nil {
		respondBankError(w, err, apperrors.ErrFailedToPullTransactions)
		return
	}

	response.RespondJSON(w, http.StatusOK, res)
}
