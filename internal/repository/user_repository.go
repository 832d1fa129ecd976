package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ndewijer/Finance-Insights/internal/apperrors"
	"github.com/ndewijer/Finance-Insights/internal/model"
)

// UserRepository provides data access methods for the users and
// refresh_tokens tables used by the development identity provider.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new UserRepository with the provided database connection.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// InsertUser stores a new user. Emails are compared case-insensitively.
// Returns apperrors.ErrUserExists when the email is already registered.
func (s *UserRepository) InsertUser(u model.User) error {
	query := `
		INSERT INTO users (id, email, password_hash, created_at)
		VALUES (?, ?, ?, ?)
	`
	_, err := s.db.Exec(query, u.ID, strings.ToLower(u.Email), u.PasswordHash, FormatTime(u.CreatedAt))
	if isUniqueViolation(err) {
		return apperrors.ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetUserByEmail returns apperrors.ErrUserNotFound when no user has the email.
func (s *UserRepository) GetUserByEmail(email string) (model.User, error) {
	query := `
		SELECT id, email, password_hash, created_at
		FROM users
		WHERE email = ?
	`
	return s.scanUser(s.db.QueryRow(query, strings.ToLower(email)))
}

// GetUserByID returns apperrors.ErrUserNotFound when the id is unknown.
func (s *UserRepository) GetUserByID(id string) (model.User, error) {
	query := `
		SELECT id, email, password_hash, created_at
		FROM users
		WHERE id = ?
	`
	return s.scanUser(s.db.QueryRow(query, id))
}

func (s *UserRepository) scanUser(row *sql.Row) (model.User, error) {
	var u model.User
	var createdAt string
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, apperrors.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("failed to query user: %w", err)
	}
	if u.CreatedAt, err = ParseTime(createdAt); err != nil {
		return model.User{}, err
	}
	return u, nil
}

// UpdatePasswordHash replaces the stored hash for a user.
func (s *UserRepository) UpdatePasswordHash(userID, hash string) error {
	res, err := s.db.Exec("UPDATE users SET password_hash = ? WHERE id = ?", hash, userID)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

// InsertRefreshToken stores an opaque refresh token for a user.
func (s *UserRepository) InsertRefreshToken(token, userID string, expiresAt, now time.Time) error {
	query := `
		INSERT INTO refresh_tokens (token, user_id, expires_at, revoked, created_at)
		VALUES (?, ?, ?, 0, ?)
	`
	if _, err := s.db.Exec(query, token, userID, FormatTime(expiresAt), FormatTime(now)); err != nil {
		return fmt.Errorf("failed to insert refresh token: %w", err)
	}
	return nil
}

// ConsumeRefreshToken revokes a live refresh token and returns its user.
// Tokens are single use: a second call with the same token fails with
// apperrors.ErrInvalidToken.
func (s *UserRepository) ConsumeRefreshToken(token string, now time.Time) (string, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var userID string
	err = tx.QueryRow(`
		SELECT user_id
		FROM refresh_tokens
		WHERE token = ? AND revoked = 0 AND expires_at > ?
	`, token, FormatTime(now)).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperrors.ErrInvalidToken
	}
	if err != nil {
		return "", fmt.Errorf("failed to query refresh token: %w", err)
	}

	if _, err := tx.Exec("UPDATE refresh_tokens SET revoked = 1 WHERE token = ?", token); err != nil {
		return "", fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit refresh token: %w", err)
	}
	return userID, nil
}

// RevokeRefreshTokens revokes every refresh token of a user.
func (s *UserRepository) RevokeRefreshTokens(userID string) error {
	if _, err := s.db.Exec("UPDATE refresh_tokens SET revoked = 1 WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}
	return nil
}
