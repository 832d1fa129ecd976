package model

import "time"

// Credential is the bearer credential issued by the identity provider.
type Credential struct {
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
}

// HasSession reports whether the provider issued an access token.
// Sign-ups awaiting email confirmation come back without one.
func (c Credential) HasSession() bool {
	return c.AccessToken != ""
}

// User is an account known to the identity provider.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
