// Package apiclient talks to the analysis server. Every operation is a single
// attempt; failures come back as *apperrors.Failure.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ndewijer/Finance-Insights/internal/apperrors"
	"github.com/ndewijer/Finance-Insights/internal/model"
)

// StatementsField is the multipart field carrying uploaded statements.
const StatementsField = "statements"

// Client defines the server operations used by the front end.
// This interface enables dependency injection and testing with mock implementations.
type Client interface {
	CreateHandshakeToken(ctx context.Context) (model.LinkToken, error)
	ExchangeHandshake(ctx context.Context, publicToken string) (model.ExchangeResult, error)
	PullTransactions(ctx context.Context, accessToken string) (model.PullResult, error)
	UploadStatements(ctx context.Context, files []UploadFile) (model.UploadResult, error)
	SaveStatements(ctx context.Context, bearer string, files []model.StatementFile) (model.SaveStatementsResult, error)
	SaveAnalysis(ctx context.Context, bearer string, req model.SaveAnalysisRequest) error
	GetUserData(ctx context.Context, bearer string) (model.UserData, error)
	DeleteStatement(ctx context.Context, bearer, statementID string) (model.UserData, error)
	RerunAnalysis(ctx context.Context, bearer string) (model.UserData, error)
}

// UploadFile is one statement file as selected by the user.
type UploadFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// HTTPClient implements Client over HTTP/JSON.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewHTTPClient creates a client for the server at baseURL.
//
// Parameters:
//   - baseURL: Server root, e.g. "http://127.0.0.1:8000" (no trailing slash)
//   - httpClient: Transport to use; nil selects a default client
//   - log: Logger for per-request debug lines
//
// Returns:
//   - *HTTPClient: A new client instance ready for use
func NewHTTPClient(baseURL string, httpClient *http.Client, log zerolog.Logger) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		log:        log.With().Str("component", "apiclient").Logger(),
	}
}

// CreateHandshakeToken requests a short-lived token for the bank-link widget.
func (c *HTTPClient) CreateHandshakeToken(ctx context.Context) (model.LinkToken, error) {
	var out model.LinkToken
	if err := c.doJSON(ctx, "create link token", http.MethodPost, "/api/create_link_token", "", struct{}{}, &out); err != nil {
		return model.LinkToken{}, err
	}
	if out.LinkToken == "" {
		return model.LinkToken{}, apperrors.Server("create link token", http.StatusOK, apperrors.ErrFailedToCreateLinkToken.Error())
	}
	return out, nil
}

// ExchangeHandshake trades the widget's public token for a durable access token.
// A response without an access token is reported as a server failure.
func (c *HTTPClient) ExchangeHandshake(ctx context.Context, publicToken string) (model.ExchangeResult, error) {
	var out model.ExchangeResult
	body := map[string]string{"public_token": publicToken}
	if err := c.doJSON(ctx, "exchange public token", http.MethodPost, "/api/exchange_public_token", "", body, &out); err != nil {
		return model.ExchangeResult{}, err
	}
	if out.AccessToken == "" {
		return model.ExchangeResult{}, apperrors.Server("exchange public token", http.StatusOK, apperrors.ErrFailedToExchangeToken.Error())
	}
	return out, nil
}

// PullTransactions fetches recent bank transactions and their analysis.
func (c *HTTPClient) PullTransactions(ctx context.Context, accessToken string) (model.PullResult, error) {
	var out model.PullResult
	body := map[string]string{"access_token": accessToken}
	if err := c.doJSON(ctx, "fetch transactions", http.MethodPost, "/api/transactions", "", body, &out); err != nil {
		return model.PullResult{}, err
	}
	return out, nil
}

// UploadStatements sends the whole batch in one multipart request.
func (c *HTTPClient) UploadStatements(ctx context.Context, files []UploadFile) (model.UploadResult, error) {
	const op = "upload statements"
	if len(files) == 0 {
		return model.UploadResult{}, apperrors.Validation(op, apperrors.ErrNoFilesSelected)
	}

	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for _, f := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", multipart.FileContentDisposition(StatementsField, f.Name))
		contentType := f.ContentType
		if contentType == "" {
			contentType = "application/pdf"
		}
		header.Set("Content-Type", contentType)

		part, err := mw.CreatePart(header)
		if err != nil {
			return model.UploadResult{}, apperrors.Network(op, 0, err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return model.UploadResult{}, apperrors.Network(op, 0, err)
		}
	}
	if err := mw.Close(); err != nil {
		return model.UploadResult{}, apperrors.Network(op, 0, err)
	}

	var out model.UploadResult
	if err := c.do(ctx, op, http.MethodPost, "/api/upload_statement", "", buf, mw.FormDataContentType(), &out); err != nil {
		return model.UploadResult{}, err
	}
	return out, nil
}

// SaveStatements persists uploaded statement files to the signed-in account.
func (c *HTTPClient) SaveStatements(ctx context.Context, bearer string, files []model.StatementFile) (model.SaveStatementsResult, error) {
	const op = "save statements"
	if bearer == "" {
		return model.SaveStatementsResult{}, apperrors.Validation(op, apperrors.ErrNotSignedIn)
	}
	var out model.SaveStatementsResult
	req := model.SaveStatementsRequest{Statements: files}
	if err := c.doJSON(ctx, op, http.MethodPost, "/api/save_statements", bearer, req, &out); err != nil {
		return model.SaveStatementsResult{}, err
	}
	return out, nil
}

// SaveAnalysis stores a summary snapshot for the signed-in account.
func (c *HTTPClient) SaveAnalysis(ctx context.Context, bearer string, req model.SaveAnalysisRequest) error {
	const op = "save analysis"
	if bearer == "" {
		return apperrors.Validation(op, apperrors.ErrNotSignedIn)
	}
	return c.doJSON(ctx, op, http.MethodPost, "/api/save_analysis", bearer, req, nil)
}

// GetUserData returns the account's statements and the summary over all of them.
func (c *HTTPClient) GetUserData(ctx context.Context, bearer string) (model.UserData, error) {
	return c.userData(ctx, "load user data", http.MethodGet, "/api/user_data", bearer)
}

// DeleteStatement removes one statement and returns the recomputed account data.
func (c *HTTPClient) DeleteStatement(ctx context.Context, bearer, statementID string) (model.UserData, error) {
	return c.userData(ctx, "delete statement", http.MethodDelete, "/api/statements/"+url.PathEscape(statementID), bearer)
}

// RerunAnalysis recomputes the account summary from all saved statements.
func (c *HTTPClient) RerunAnalysis(ctx context.Context, bearer string) (model.UserData, error) {
	return c.userData(ctx, "rerun analysis", http.MethodPost, "/api/rerun_analysis", bearer)
}

func (c *HTTPClient) userData(ctx context.Context, op, method, path, bearer string) (model.UserData, error) {
	if bearer == "" {
		return model.UserData{}, apperrors.Validation(op, apperrors.ErrNotSignedIn)
	}
	var out model.UserData
	var body any
	if method == http.MethodPost {
		body = struct{}{}
	}
	if err := c.doJSON(ctx, op, method, path, bearer, body, &out); err != nil {
		return model.UserData{}, err
	}
	return out, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, op, method, path, bearer string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return apperrors.Network(op, 0, fmt.Errorf("encode request: %w", err))
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.do(ctx, op, method, path, bearer, body, contentType, out)
}

// do executes one request. A structured error in the body wins over the
// status code, so a 200 carrying {"error": ...} is still a server failure.
func (c *HTTPClient) do(ctx context.Context, op, method, path, bearer string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return apperrors.Network(op, 0, err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug().Str("op", op).Err(err).Msg("request failed")
		return apperrors.Network(op, 0, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.Network(op, resp.StatusCode, err)
	}

	c.log.Debug().
		Str("op", op).
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("api request")

	if reason := ExtractError(data); reason != "" {
		return apperrors.Server(op, resp.StatusCode, reason)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperrors.Network(op, resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperrors.Network(op, resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
