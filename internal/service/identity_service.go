package service

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/ndewijer/Finance-Insights/internal/apperrors"
	"github.com/ndewijer/Finance-Insights/internal/auth"
	"github.com/ndewijer/Finance-Insights/internal/identity"
	"github.com/ndewijer/Finance-Insights/internal/model"
	"github.com/ndewijer/Finance-Insights/internal/repository"
)

// MinPasswordLength is the shortest password the identity provider accepts.
const MinPasswordLength = 6

// DefaultRefreshTTL is how long a refresh token stays usable.
const DefaultRefreshTTL = 30 * 24 * time.Hour

// IdentityService is the development identity provider. It registers users,
// checks passwords and issues access/refresh token pairs in the same shape
// as the hosted provider the front end talks to in production.
type IdentityService struct {
	users      *repository.UserRepository
	issuer     *auth.Issuer
	refreshTTL time.Duration
	bcryptCost int
	now        func() time.Time
	log        zerolog.Logger
}

// NewIdentityService creates a new IdentityService.
func NewIdentityService(users *repository.UserRepository, issuer *auth.Issuer, log zerolog.Logger) *IdentityService {
	return &IdentityService{
		users:      users,
		issuer:     issuer,
		refreshTTL: DefaultRefreshTTL,
		bcryptCost: bcrypt.DefaultCost,
		now:        func() time.Time { return time.Now().UTC() },
		log:        log.With().Str("component", "identity").Logger(),
	}
}

// WithBcryptCost overrides the hashing cost. Tests use bcrypt.MinCost.
func (s *IdentityService) WithBcryptCost(cost int) *IdentityService {
	s.bcryptCost = cost
	return s
}

// SignUp registers email and immediately opens a session for it.
//
// Returns:
//   - apperrors.ErrInvalidEmail if the address is malformed
//   - apperrors.ErrWeakPassword if the password is shorter than MinPasswordLength
//   - apperrors.ErrUserExists if the email is already registered
func (s *IdentityService) SignUp(email, password string) (identity.SessionResponse, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return identity.SessionResponse{}, err
	}
	if len(password) < MinPasswordLength {
		return identity.SessionResponse{}, apperrors.ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return identity.SessionResponse{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user := model.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.now(),
	}
	if err := s.users.InsertUser(user); err != nil {
		return identity.SessionResponse{}, err
	}

	s.log.Info().Str("user_id", user.ID).Msg("user registered")
	return s.openSession(user)
}

// SignIn checks the password and opens a session. Unknown emails and wrong
// passwords both yield apperrors.ErrInvalidCredentials.
func (s *IdentityService) SignIn(email, password string) (identity.SessionResponse, error) {
	user, err := s.users.GetUserByEmail(strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return identity.SessionResponse{}, apperrors.ErrInvalidCredentials
		}
		return identity.SessionResponse{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return identity.SessionResponse{}, apperrors.ErrInvalidCredentials
	}
	return s.openSession(user)
}

// Refresh trades a refresh token for a new session. Refresh tokens are
// single use.
func (s *IdentityService) Refresh(refreshToken string) (identity.SessionResponse, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return identity.SessionResponse{}, apperrors.ErrInvalidToken
	}
	userID, err := s.users.ConsumeRefreshToken(refreshToken, s.now())
	if err != nil {
		return identity.SessionResponse{}, err
	}
	user, err := s.users.GetUserByID(userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return identity.SessionResponse{}, apperrors.ErrInvalidToken
		}
		return identity.SessionResponse{}, err
	}
	return s.openSession(user)
}

// SignOut revokes every refresh token of the user.
func (s *IdentityService) SignOut(userID string) error {
	return s.users.RevokeRefreshTokens(userID)
}

// Recover accepts a password reset request. The development provider sends
// no mail, and unknown addresses are not revealed to the caller.
func (s *IdentityService) Recover(email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	if _, err := s.users.GetUserByEmail(email); err != nil && !errors.Is(err, apperrors.ErrUserNotFound) {
		return err
	}
	s.log.Info().Str("email", email).Msg("password recovery requested")
	return nil
}

// UpdatePassword replaces the password of a signed-in user.
func (s *IdentityService) UpdatePassword(userID, password string) (model.User, error) {
	if len(password) < MinPasswordLength {
		return model.User{}, apperrors.ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.users.UpdatePasswordHash(userID, string(hash)); err != nil {
		return model.User{}, err
	}
	return s.users.GetUserByID(userID)
}

// GetUser returns the account behind a verified access token.
func (s *IdentityService) GetUser(userID string) (model.User, error) {
	return s.users.GetUserByID(userID)
}

func (s *IdentityService) openSession(user model.User) (identity.SessionResponse, error) {
	now := s.now()
	token, expiresAt, err := s.issuer.Issue(user)
	if err != nil {
		return identity.SessionResponse{}, fmt.Errorf("%w: %w", apperrors.ErrFailedToIssueToken, err)
	}

	refresh := uuid.New().String()
	if err := s.users.InsertRefreshToken(refresh, user.ID, now.Add(s.refreshTTL), now); err != nil {
		return identity.SessionResponse{}, err
	}

	return identity.SessionResponse{
		AccessToken:  token,
		TokenType:    "bearer",
		ExpiresIn:    int(expiresAt.Sub(now).Seconds()),
		ExpiresAt:    expiresAt.Unix(),
		RefreshToken: refresh,
		User:         identity.UserResponse{ID: user.ID, Email: user.Email},
	}, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperrors.ErrInvalidEmail
	}
	return email, nil
}
