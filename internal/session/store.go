// Package session holds the caller's identity and bearer credential and
// publishes identity-transition events. It knows nothing about analyses.
package session

import (
	"context"
	"fmt"
	"regexp"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ndewijer/Finance-Insights/internal/apperrors"
	"github.com/ndewijer/Finance-Insights/internal/model"
)

// MinPasswordLength matches the identity provider's default policy.
const MinPasswordLength = 6

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// IdentityProvider is the external service that authenticates users.
// Implementations return *apperrors.Failure of kind auth for rejections.
type IdentityProvider interface {
	SignIn(ctx context.Context, email, password string) (model.Credential, error)
	SignUp(ctx context.Context, email, password string) (model.Credential, error)
	SignOut(ctx context.Context, cred model.Credential) error
	Refresh(ctx context.Context, refreshToken string) (model.Credential, error)
	ResetPasswordForEmail(ctx context.Context, email string) error
	UpdatePassword(ctx context.Context, cred model.Credential, password string) error
}

// Store owns the current credential. It is created once at startup and
// passed to every consumer; it is safe for concurrent use.
type Store struct {
	provider IdentityProvider
	log      zerolog.Logger

	mu   sync.RWMutex
	cred *model.Credential

	bus bus
}

// NewStore creates an anonymous session store backed by provider.
func NewStore(provider IdentityProvider, log zerolog.Logger) *Store {
	return &Store{
		provider: provider,
		log:      log.With().Str("component", "session").Logger(),
	}
}

// Current returns the credential, if signed in. The returned value is a copy;
// callers should read it at call time rather than holding on to it.
func (s *Store) Current() (model.Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cred == nil {
		return model.Credential{}, false
	}
	return *s.cred, true
}

// Authenticated reports whether a credential is held.
func (s *Store) Authenticated() bool {
	_, ok := s.Current()
	return ok
}

// Subscribe registers fn for identity-transition events and returns a
// function that removes it.
func (s *Store) Subscribe(fn func(ctx context.Context, ev Event)) (unsubscribe func()) {
	return s.bus.subscribe(fn)
}

// SignIn authenticates with email and password. On success the credential is
// stored and a signed-in event is published; on failure nothing changes.
func (s *Store) SignIn(ctx context.Context, email, password string) (model.Credential, error) {
	if err := validateCredentials(email, password); err != nil {
		return model.Credential{}, apperrors.Validation("sign in", err)
	}

	cred, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		s.log.Info().Str("email", email).Err(err).Msg("sign in rejected")
		return model.Credential{}, asAuthFailure("sign in", err)
	}

	s.set(&cred)
	s.log.Info().Str("user_id", cred.UserID).Msg("signed in")
	s.bus.publish(ctx, Event{Type: EventSignedIn, Credential: &cred})
	return cred, nil
}

// SignUp registers a new account. When the provider issues a session the
// credential is stored and a signed-up event is published. When the provider
// requires email confirmation first, the returned credential has no access
// token and the store stays anonymous.
func (s *Store) SignUp(ctx context.Context, email, password string) (model.Credential, error) {
	if err := validateCredentials(email, password); err != nil {
		return model.Credential{}, apperrors.Validation("sign up", err)
	}
	if len(password) < MinPasswordLength {
		return model.Credential{}, apperrors.Validation("sign up", apperrors.ErrWeakPassword)
	}

	cred, err := s.provider.SignUp(ctx, email, password)
	if err != nil {
		s.log.Info().Str("email", email).Err(err).Msg("sign up rejected")
		return model.Credential{}, asAuthFailure("sign up", err)
	}
	if !cred.HasSession() {
		s.log.Info().Str("email", email).Msg("sign up pending email confirmation")
		return cred, nil
	}

	s.set(&cred)
	s.log.Info().Str("user_id", cred.UserID).Msg("signed up")
	s.bus.publish(ctx, Event{Type: EventSignedUp, Credential: &cred})
	return cred, nil
}

// SignOut drops the credential and publishes a signed-out event. The local
// session is always cleared, even if the provider call fails; that failure is
// still returned.
func (s *Store) SignOut(ctx context.Context) error {
	cred, ok := s.Current()
	if !ok {
		return nil
	}

	err := s.provider.SignOut(ctx, cred)
	if err != nil {
		s.log.Warn().Err(err).Msg("provider sign out failed; clearing local session anyway")
	}

	s.set(nil)
	s.log.Info().Str("user_id", cred.UserID).Msg("signed out")
	s.bus.publish(ctx, Event{Type: EventSignedOut})

	if err != nil {
		return asAuthFailure("sign out", err)
	}
	return nil
}

// Refresh rotates the credential using its refresh token and publishes a
// token-refreshed event. A rejected refresh leaves the old credential in place.
func (s *Store) Refresh(ctx context.Context) error {
	cred, ok := s.Current()
	if !ok {
		return apperrors.Validation("refresh", apperrors.ErrNotSignedIn)
	}

	next, err := s.provider.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		return asAuthFailure("refresh", err)
	}

	s.set(&next)
	s.log.Debug().Str("user_id", next.UserID).Msg("token refreshed")
	s.bus.publish(ctx, Event{Type: EventTokenRefreshed, Credential: &next})
	return nil
}

// ResetPassword asks the provider to email a password reset link.
func (s *Store) ResetPassword(ctx context.Context, email string) error {
	if email == "" || !emailPattern.MatchString(email) {
		return apperrors.Validation("reset password", apperrors.ErrInvalidEmail)
	}
	if err := s.provider.ResetPasswordForEmail(ctx, email); err != nil {
		return asAuthFailure("reset password", err)
	}
	return nil
}

// UpdatePassword sets a new password for the signed-in user.
func (s *Store) UpdatePassword(ctx context.Context, password, confirm string) error {
	switch {
	case password == "" || confirm == "":
		return apperrors.Validation("update password", fmt.Errorf("please enter and confirm your new password"))
	case len(password) < MinPasswordLength:
		return apperrors.Validation("update password", apperrors.ErrWeakPassword)
	case password != confirm:
		return apperrors.Validation("update password", apperrors.ErrPasswordMismatch)
	}

	cred, ok := s.Current()
	if !ok {
		return apperrors.Validation("update password", apperrors.ErrNotSignedIn)
	}
	if err := s.provider.UpdatePassword(ctx, cred, password); err != nil {
		return asAuthFailure("update password", err)
	}
	return nil
}

func (s *Store) set(cred *model.Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = cred
}

func validateCredentials(email, password string) error {
	if email == "" || password == "" {
		return apperrors.ErrMissingCredentials
	}
	if !emailPattern.MatchString(email) {
		return apperrors.ErrInvalidEmail
	}
	return nil
}

// asAuthFailure keeps provider failures as they are and wraps anything else
// as an auth failure so callers always get a displayable reason.
func asAuthFailure(op string, err error) error {
	if apperrors.KindOf(err) != apperrors.KindUnknown {
		return err
	}
	return apperrors.Auth(op, err.Error(), err)
}
