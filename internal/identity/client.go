// Package identity is a client for a GoTrue-compatible identity provider.
// It implements session.IdentityProvider.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ndewijer/Finance-Insights/internal/apperrors"
	"github.com/ndewijer/Finance-Insights/internal/model"
)

// Client calls the provider's /auth/v1 endpoints.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates an identity client.
//
// Parameters:
//   - baseURL: Provider root; endpoints live under /auth/v1
//   - apiKey: Sent as the apikey header when non-empty
//   - httpClient: Transport to use; nil selects a default client
//
// Returns:
//   - *Client: A new client instance ready for use
func NewClient(baseURL, apiKey string, httpClient *http.Client, log zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
		log:        log.With().Str("component", "identity").Logger(),
	}
}

// SessionResponse is the provider's session payload.
type SessionResponse struct {
	AccessToken  string       `json:"access_token"`
	TokenType    string       `json:"token_type,omitempty"`
	ExpiresIn    int          `json:"expires_in,omitempty"`
	ExpiresAt    int64        `json:"expires_at,omitempty"`
	RefreshToken string       `json:"refresh_token"`
	User         UserResponse `json:"user"`
}

// UserResponse is the provider's user payload.
type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// ErrorResponse covers both error shapes the provider uses.
type ErrorResponse struct {
	Code             int    `json:"code,omitempty"`
	Msg              string `json:"msg,omitempty"`
	Message          string `json:"message,omitempty"`
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// Reason returns the most specific text in the error body.
func (e ErrorResponse) Reason() string {
	for _, s := range []string{e.ErrorDescription, e.Msg, e.Message, e.Error} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignIn exchanges email and password for a session.
func (c *Client) SignIn(ctx context.Context, email, password string) (model.Credential, error) {
	var out SessionResponse
	err := c.do(ctx, "sign in", http.MethodPost, "/auth/v1/token?grant_type=password", "", credentialsRequest{email, password}, &out)
	if err != nil {
		return model.Credential{}, err
	}
	return out.credential(), nil
}

// SignUp registers a user. When email confirmation is required the provider
// returns the bare user and the credential has no access token.
func (c *Client) SignUp(ctx context.Context, email, password string) (model.Credential, error) {
	var raw json.RawMessage
	err := c.do(ctx, "sign up", http.MethodPost, "/auth/v1/signup", "", credentialsRequest{email, password}, &raw)
	if err != nil {
		return model.Credential{}, err
	}

	var sess SessionResponse
	if err := json.Unmarshal(raw, &sess); err == nil && sess.AccessToken != "" {
		return sess.credential(), nil
	}
	var user UserResponse
	if err := json.Unmarshal(raw, &user); err != nil {
		return model.Credential{}, apperrors.Network("sign up", http.StatusOK, fmt.Errorf("decode user: %w", err))
	}
	return model.Credential{UserID: user.ID, Email: user.Email}, nil
}

// SignOut revokes the session's refresh tokens.
func (c *Client) SignOut(ctx context.Context, cred model.Credential) error {
	return c.do(ctx, "sign out", http.MethodPost, "/auth/v1/logout", cred.AccessToken, nil, nil)
}

// Refresh rotates a refresh token into a new session.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (model.Credential, error) {
	var out SessionResponse
	body := map[string]string{"refresh_token": refreshToken}
	if err := c.do(ctx, "refresh", http.MethodPost, "/auth/v1/token?grant_type=refresh_token", "", body, &out); err != nil {
		return model.Credential{}, err
	}
	return out.credential(), nil
}

// ResetPasswordForEmail asks the provider to send a recovery email.
func (c *Client) ResetPasswordForEmail(ctx context.Context, email string) error {
	return c.do(ctx, "reset password", http.MethodPost, "/auth/v1/recover", "", map[string]string{"email": email}, nil)
}

// UpdatePassword changes the signed-in user's password.
func (c *Client) UpdatePassword(ctx context.Context, cred model.Credential, password string) error {
	return c.do(ctx, "update password", http.MethodPut, "/auth/v1/user", cred.AccessToken, map[string]string{"password": password}, nil)
}

func (s SessionResponse) credential() model.Credential {
	cred := model.Credential{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		UserID:       s.User.ID,
		Email:        s.User.Email,
	}
	switch {
	case s.ExpiresAt > 0:
		cred.ExpiresAt = time.Unix(s.ExpiresAt, 0).UTC()
	case s.ExpiresIn > 0:
		cred.ExpiresAt = time.Now().UTC().Add(time.Duration(s.ExpiresIn) * time.Second)
	}
	return cred
}

// do sends one request. Provider rejections (4xx with a reason) become auth
// failures; anything else that is not a success is a network failure.
func (c *Client) do(ctx context.Context, op, method, path, bearer string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return apperrors.Network(op, 0, fmt.Errorf("encode request: %w", err))
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return apperrors.Network(op, 0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Network(op, 0, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.Network(op, resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e ErrorResponse
		_ = json.Unmarshal(data, &e)
		reason := e.Reason()
		c.log.Debug().Str("op", op).Int("status", resp.StatusCode).Str("reason", reason).Msg("identity request rejected")
		if reason != "" && resp.StatusCode < 500 {
			return &apperrors.Failure{Kind: apperrors.KindAuth, Op: op, Message: reason, Status: resp.StatusCode, Err: sentinelFor(reason)}
		}
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

// sentinelFor maps well-known provider reasons onto package sentinels so
// callers can use errors.Is.
func sentinelFor(reason string) error {
	r := strings.ToLower(reason)
	switch {
	case strings.Contains(r, "invalid login credentials"):
		return apperrors.ErrInvalidCredentials
	case strings.Contains(r, "already registered"):
		return apperrors.ErrUserExists
	case strings.Contains(r, "at least 6 characters"):
		return apperrors.ErrWeakPassword
	case strings.Contains(r, "token"):
		return apperrors.ErrInvalidToken
	}
	return fmt.Errorf("%s", reason)
}
