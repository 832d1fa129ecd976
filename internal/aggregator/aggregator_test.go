package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/Finance-Insights/internal/apperrors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(Options{
		BaseURL:      srv.URL + "/",
		ClientID:     "client",
		Secret:       "secret",
		ClientName:   "Finance Insights",
		CountryCodes: []string{"CA"},
	}, srv.Client())
}

func TestCreateLinkToken(t *testing.T) {
	var got linkTokenCreateRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/link/token/create", r.URL.Path)
		assert.Equal(t, APIVersion, r.Header.Get("Plaid-Version"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"link_token":"link-sandbox-1","expiration":"2024-01-01T00:00:00Z","request_id":"r1"}`)
	})

	tok, err := c.CreateLinkToken(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "link-sandbox-1", tok.LinkToken)
	assert.Equal(t, "user-1", got.User.ClientUserID)
	assert.Equal(t, []string{"transactions"}, got.Products)
	assert.Equal(t, []string{"CA"}, got.CountryCodes)
	assert.Equal(t, "en", got.Language)
}

func TestCreateLinkTokenAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error_type":"INVALID_REQUEST","error_code":"INVALID_FIELD","error_message":"client_id must be a properly formatted, non-empty string"}`)
	})

	_, err := c.CreateLinkToken(context.Background(), "user-1")
	apiErr, ok := IsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "INVALID_FIELD", apiErr.ErrorCode)
	assert.Contains(t, apiErr.Reason(), "client_id")
}

func TestCreateLinkTokenEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{}`)
	})

	_, err := c.CreateLinkToken(context.Background(), "user-1")
	assert.ErrorIs(t, err, apperrors.ErrFailedToCreateLinkToken)
}

func TestExchangePublicToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req publicTokenExchangeRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "public-1", req.PublicToken)
		fmt.Fprint(w, `{"access_token":"access-1","item_id":"item-1"}`)
	})

	res, err := c.ExchangePublicToken(context.Background(), "public-1")
	require.NoError(t, err)
	assert.Equal(t, "success", res.Status)
	assert.Equal(t, "access-1", res.AccessToken)
	assert.Equal(t, "item-1", res.ItemID)

	_, err = c.ExchangePublicToken(context.Background(), "")
	assert.ErrorIs(t, err, apperrors.ErrMissingPublicToken)
}

func TestGetTransactionsPaginatesAndFlipsSign(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req transactionsGetRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "2024-01-01", req.StartDate)
		assert.Equal(t, "2024-03-31", req.EndDate)

		switch req.Options.Offset {
		case 0:
			fmt.Fprint(w, `{"total_transactions":3,"transactions":[
				{"transaction_id":"t1","date":"2024-01-05","name":"Payroll","amount":-2500,"personal_finance_category":{"primary":"INCOME"}},
				{"transaction_id":"t2","date":"2024-01-06","merchant_name":"Starbucks","amount":4.5}
			]}`)
		case 2:
			fmt.Fprint(w, `{"total_transactions":3,"transactions":[
				{"transaction_id":"t3","date":"2024-01-07","amount":12.345,"personal_finance_category":{"detailed":"FOOD_AND_DRINK_COFFEE"}}
			]}`)
		default:
			t.Errorf("unexpected offset %d", req.Options.Offset)
		}
	})

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	txns, err := c.GetTransactions(context.Background(), "access-1", start, end)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	require.Len(t, txns, 3)

	assert.Equal(t, 2500.0, txns[0].Amount)
	assert.Equal(t, "INCOME", txns[0].Category)
	assert.Equal(t, "Starbucks", txns[1].Merchant)
	assert.Equal(t, -4.5, txns[1].Amount)
	assert.Equal(t, "Unknown", txns[2].Merchant)
	assert.Equal(t, -12.35, txns[2].Amount)
	assert.Equal(t, "FOOD_AND_DRINK_COFFEE", txns[2].Category)
}

func TestGetTransactionsRequiresAccessToken(t *testing.T) {
	c := NewHTTPClient(Options{}, nil)
	_, err := c.GetTransactions(context.Background(), "", time.Now(), time.Now())
	assert.ErrorIs(t, err, apperrors.ErrMissingAccessToken)
}

func TestNonJSONErrorBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	})

	_, err := c.ExchangePublicToken(context.Background(), "p")
	apiErr, ok := IsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "bad gateway", apiErr.Reason())
}
