// Package aggregator talks to a Plaid-compatible account aggregation API.
package aggregator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ndewijer/Finance-Insights/internal/apperrors"
	"github.com/ndewijer/Finance-Insights/internal/model"
)

// APIVersion is sent with every request.
const APIVersion = "2020-09-14"

// pageSize is the largest page transactions/get accepts.
const pageSize = 500

// Client defines the aggregation operations used by the backend.
// This interface enables dependency injection and testing with mock implementations.
type Client interface {
	CreateLinkToken(ctx context.Context, clientUserID string) (model.LinkToken, error)
	ExchangePublicToken(ctx context.Context, publicToken string) (model.ExchangeResult, error)
	GetTransactions(ctx context.Context, accessToken string, start, end time.Time) ([]model.Transaction, error)
}

// Options configures an HTTPClient.
type Options struct {
	BaseURL      string
	ClientID     string
	Secret       string
	ClientName   string
	CountryCodes []string
	Language     string
}

// HTTPClient implements Client over the aggregator's JSON API.
type HTTPClient struct {
	opts       Options
	httpClient *http.Client
}

// NewHTTPClient creates a new aggregation client.
//
// Parameters:
//   - opts: credentials and link defaults; Language defaults to "en"
//   - httpClient: transport to use, nil for a client with a 30 second timeout
//
// Returns:
//   - *HTTPClient: A new client instance ready for use
func NewHTTPClient(opts Options, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Language == "" {
		opts.Language = "en"
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &HTTPClient{opts: opts, httpClient: httpClient}
}

// CreateLinkToken requests a short-lived token that opens the bank-link
// widget for the transactions product.
//
// Parameters:
//   - clientUserID: stable id of the end user, opaque to the aggregator
//
// Returns:
//   - model.LinkToken: the token and its expiry
//   - error: *APIError for aggregator rejections
func (c *HTTPClient) CreateLinkToken(ctx context.Context, clientUserID string) (model.LinkToken, error) {
	req := linkTokenCreateRequest{
		ClientID:     c.opts.ClientID,
		Secret:       c.opts.Secret,
		ClientName:   c.opts.ClientName,
		Language:     c.opts.Language,
		CountryCodes: c.opts.CountryCodes,
		Products:     []string{"transactions"},
		User:         linkTokenUser{ClientUserID: clientUserID},
	}
	var out model.LinkToken
	if err := c.post(ctx, "/link/token/create", req, &out); err != nil {
		return model.LinkToken{}, err
	}
	if out.LinkToken == "" {
		return model.LinkToken{}, fmt.Errorf("%w: empty link token", apperrors.ErrFailedToCreateLinkToken)
	}
	return out, nil
}

// ExchangePublicToken swaps the widget's public token for a durable access token.
//
// Returns:
//   - model.ExchangeResult: access token and item id, Status "success"
//   - error: *APIError for aggregator rejections
func (c *HTTPClient) ExchangePublicToken(ctx context.Context, publicToken string) (model.ExchangeResult, error) {
	if publicToken == "" {
		return model.ExchangeResult{}, apperrors.ErrMissingPublicToken
	}
	req := publicTokenExchangeRequest{
		ClientID:    c.opts.ClientID,
		Secret:      c.opts.Secret,
		PublicToken: publicToken,
	}
	var out publicTokenExchangeResponse
	if err := c.post(ctx, "/item/public_token/exchange", req, &out); err != nil {
		return model.ExchangeResult{}, err
	}
	if out.AccessToken == "" {
		return model.ExchangeResult{}, fmt.Errorf("%w: empty access token", apperrors.ErrFailedToExchangeToken)
	}
	return model.ExchangeResult{Status: "success", AccessToken: out.AccessToken, ItemID: out.ItemID}, nil
}

// GetTransactions pulls every transaction between start and end, following
// pagination, and converts them to the shared sign convention.
//
// Returns:
//   - []model.Transaction: never nil
//   - error: *APIError for aggregator rejections
func (c *HTTPClient) GetTransactions(ctx context.Context, accessToken string, start, end time.Time) ([]model.Transaction, error) {
	if accessToken == "" {
		return nil, apperrors.ErrMissingAccessToken
	}

	txns := []model.Transaction{}
	for offset := 0; ; {
		req := transactionsGetRequest{
			ClientID:    c.opts.ClientID,
			Secret:      c.opts.Secret,
			AccessToken: accessToken,
			StartDate:   start.Format("2006-01-02"),
			EndDate:     end.Format("2006-01-02"),
			Options:     transactionsGetOptions{Count: pageSize, Offset: offset},
		}
		var page transactionsGetResponse
		if err := c.post(ctx, "/transactions/get", req, &page); err != nil {
			return nil, err
		}
		for _, t := range page.Transactions {
			txns = append(txns, t.Common())
		}
		offset += len(page.Transactions)
		if len(page.Transactions) == 0 || offset >= page.TotalTransactions {
			return txns, nil
		}
	}
}

func (c *HTTPClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Plaid-Version", APIVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("aggregator request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read aggregator response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.Unmarshal(data, apiErr); err != nil || apiErr.ErrorCode == "" && apiErr.ErrorMessage == "" {
			apiErr.ErrorMessage = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode aggregator response: %w", err)
	}
	return nil
}

// IsAPIError reports whether err carries an aggregator rejection and returns it.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
