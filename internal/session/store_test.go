package session

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/Finance-Insights/internal/apperrors"
	"github.com/ndewijer/Finance-Insights/internal/model"
)

type fakeProvider struct {
	signInErr   error
	signUpErr   error
	signOutErr  error
	refreshErr  error
	noSession   bool
	calls       []string
	lastPwd     string
	resetEmails []string
}

func (f *fakeProvider) SignIn(_ context.Context, email, _ string) (model.Credential, error) {
	f.calls = append(f.calls, "sign-in")
	if f.signInErr != nil {
		return model.Credential{}, f.signInErr
	}
	return model.Credential{AccessToken: "at-1", RefreshToken: "rt-1", UserID: "u-1", Email: email}, nil
}

func (f *fakeProvider) SignUp(_ context.Context, email, _ string) (model.Credential, error) {
	f.calls = append(f.calls, "sign-up")
	if f.signUpErr != nil {
		return model.Credential{}, f.signUpErr
	}
	if f.noSession {
		return model.Credential{UserID: "u-2", Email: email}, nil
	}
	return model.Credential{AccessToken: "at-2", RefreshToken: "rt-2", UserID: "u-2", Email: email}, nil
}

func (f *fakeProvider) SignOut(context.Context, model.Credential) error {
	f.calls = append(f.calls, "sign-out")
	return f.signOutErr
}

func (f *fakeProvider) Refresh(_ context.Context, refreshToken string) (model.Credential, error) {
	f.calls = append(f.calls, "refresh:"+refreshToken)
	if f.refreshErr != nil {
		return model.Credential{}, f.refreshErr
	}
	return model.Credential{AccessToken: "at-3", RefreshToken: "rt-3", UserID: "u-1"}, nil
}

func (f *fakeProvider) ResetPasswordForEmail(_ context.Context, email string) error {
	f.resetEmails = append(f.resetEmails, email)
	return nil
}

func (f *fakeProvider) UpdatePassword(_ context.Context, _ model.Credential, password string) error {
	f.lastPwd = password
	return nil
}

func newTestStore(p *fakeProvider) (*Store, *[]Event) {
	s := NewStore(p, zerolog.Nop())
	events := &[]Event{}
	s.Subscribe(func(_ context.Context, ev Event) {
		*events = append(*events, ev)
	})
	return s, events
}

func TestSignIn(t *testing.T) {
	ctx := context.Background()

	t.Run("stores credential and publishes event", func(t *testing.T) {
		s, events := newTestStore(&fakeProvider{})

		cred, err := s.SignIn(ctx, "a@b.co", "secret1")
		require.NoError(t, err)
		assert.Equal(t, "at-1", cred.AccessToken)

		current, ok := s.Current()
		require.True(t, ok)
		assert.Equal(t, "u-1", current.UserID)

		require.Len(t, *events, 1)
		assert.Equal(t, EventSignedIn, (*events)[0].Type)
		assert.Equal(t, "u-1", (*events)[0].Credential.UserID)
	})

	t.Run("rejection leaves store anonymous", func(t *testing.T) {
		rejection := apperrors.Auth("sign in", "Invalid login credentials", apperrors.ErrInvalidCredentials)
		s, events := newTestStore(&fakeProvider{signInErr: rejection})

		_, err := s.SignIn(ctx, "a@b.co", "wrong")
		require.Error(t, err)
		assert.Equal(t, apperrors.KindAuth, apperrors.KindOf(err))
		assert.Equal(t, "Invalid login credentials", apperrors.Message(err))
		assert.False(t, s.Authenticated())
		assert.Empty(t, *events)
	})

	t.Run("empty fields never reach the provider", func(t *testing.T) {
		p := &fakeProvider{}
		s, _ := newTestStore(p)

		_, err := s.SignIn(ctx, "", "")
		require.Error(t, err)
		assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
		assert.ErrorIs(t, err, apperrors.ErrMissingCredentials)
		assert.Empty(t, p.calls)
	})

	t.Run("malformed email", func(t *testing.T) {
		p := &fakeProvider{}
		s, _ := newTestStore(p)

		_, err := s.SignIn(ctx, "not-an-email", "secret1")
		assert.ErrorIs(t, err, apperrors.ErrInvalidEmail)
		assert.Empty(t, p.calls)
	})

	t.Run("plain provider error becomes auth failure", func(t *testing.T) {
		s, _ := newTestStore(&fakeProvider{signInErr: errors.New("Email not confirmed")})

		_, err := s.SignIn(ctx, "a@b.co", "secret1")
		assert.Equal(t, apperrors.KindAuth, apperrors.KindOf(err))
		assert.Equal(t, "Email not confirmed", apperrors.Message(err))
	})
}

func TestSignUp(t *testing.T) {
	ctx := context.Background()

	t.Run("with session publishes signed-up", func(t *testing.T) {
		s, events := newTestStore(&fakeProvider{})

		cred, err := s.SignUp(ctx, "new@b.co", "secret1")
		require.NoError(t, err)
		assert.True(t, cred.HasSession())
		assert.True(t, s.Authenticated())
		require.Len(t, *events, 1)
		assert.Equal(t, EventSignedUp, (*events)[0].Type)
	})

	t.Run("pending confirmation stays anonymous", func(t *testing.T) {
		s, events := newTestStore(&fakeProvider{noSession: true})

		cred, err := s.SignUp(ctx, "new@b.co", "secret1")
		require.NoError(t, err)
		assert.False(t, cred.HasSession())
		assert.False(t, s.Authenticated())
		assert.Empty(t, *events)
	})

	t.Run("short password", func(t *testing.T) {
		p := &fakeProvider{}
		s, _ := newTestStore(p)

		_, err := s.SignUp(ctx, "new@b.co", "12345")
		assert.ErrorIs(t, err, apperrors.ErrWeakPassword)
		assert.Empty(t, p.calls)
	})

	t.Run("provider rejection", func(t *testing.T) {
		s, events := newTestStore(&fakeProvider{
			signUpErr: apperrors.Auth("sign up", "User already registered", apperrors.ErrUserExists),
		})

		_, err := s.SignUp(ctx, "dup@b.co", "secret1")
		assert.Equal(t, "User already registered", apperrors.Message(err))
		assert.Empty(t, *events)
	})
}

func TestSignOut(t *testing.T) {
	ctx := context.Background()

	t.Run("clears credential and publishes event", func(t *testing.T) {
		s, events := newTestStore(&fakeProvider{})
		_, err := s.SignIn(ctx, "a@b.co", "secret1")
		require.NoError(t, err)

		require.NoError(t, s.SignOut(ctx))
		assert.False(t, s.Authenticated())
		require.Len(t, *events, 2)
		assert.Equal(t, EventSignedOut, (*events)[1].Type)
		assert.Nil(t, (*events)[1].Credential)
	})

	t.Run("provider failure still clears local session", func(t *testing.T) {
		s, events := newTestStore(&fakeProvider{signOutErr: errors.New("network down")})
		_, err := s.SignIn(ctx, "a@b.co", "secret1")
		require.NoError(t, err)

		err = s.SignOut(ctx)
		assert.Error(t, err)
		assert.False(t, s.Authenticated())
		assert.Equal(t, EventSignedOut, (*events)[len(*events)-1].Type)
	})

	t.Run("anonymous is a no-op", func(t *testing.T) {
		p := &fakeProvider{}
		s, events := newTestStore(p)

		require.NoError(t, s.SignOut(ctx))
		assert.Empty(t, p.calls)
		assert.Empty(t, *events)
	})
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("rotates tokens", func(t *testing.T) {
		p := &fakeProvider{}
		s, events := newTestStore(p)
		_, err := s.SignIn(ctx, "a@b.co", "secret1")
		require.NoError(t, err)

		require.NoError(t, s.Refresh(ctx))
		cred, _ := s.Current()
		assert.Equal(t, "at-3", cred.AccessToken)
		assert.Contains(t, p.calls, "refresh:rt-1")
		assert.Equal(t, EventTokenRefreshed, (*events)[len(*events)-1].Type)
	})

	t.Run("failure keeps old credential", func(t *testing.T) {
		s, _ := newTestStore(&fakeProvider{refreshErr: errors.New("Invalid Refresh Token")})
		_, err := s.SignIn(ctx, "a@b.co", "secret1")
		require.NoError(t, err)

		assert.Error(t, s.Refresh(ctx))
		cred, ok := s.Current()
		require.True(t, ok)
		assert.Equal(t, "at-1", cred.AccessToken)
	})

	t.Run("anonymous", func(t *testing.T) {
		s, _ := newTestStore(&fakeProvider{})
		assert.ErrorIs(t, s.Refresh(ctx), apperrors.ErrNotSignedIn)
	})
}

func TestPasswordFlows(t *testing.T) {
	ctx := context.Background()

	t.Run("reset validates email", func(t *testing.T) {
		p := &fakeProvider{}
		s, _ := newTestStore(p)

		assert.ErrorIs(t, s.ResetPassword(ctx, "nope"), apperrors.ErrInvalidEmail)
		require.NoError(t, s.ResetPassword(ctx, "a@b.co"))
		assert.Equal(t, []string{"a@b.co"}, p.resetEmails)
	})

	t.Run("update validates before calling provider", func(t *testing.T) {
		p := &fakeProvider{}
		s, _ := newTestStore(p)
		_, err := s.SignIn(ctx, "a@b.co", "secret1")
		require.NoError(t, err)

		assert.ErrorIs(t, s.UpdatePassword(ctx, "abc", "abc"), apperrors.ErrWeakPassword)
		assert.ErrorIs(t, s.UpdatePassword(ctx, "secret2", "secret3"), apperrors.ErrPasswordMismatch)
		assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(s.UpdatePassword(ctx, "", "")))
		assert.Empty(t, p.lastPwd)

		require.NoError(t, s.UpdatePassword(ctx, "secret2", "secret2"))
		assert.Equal(t, "secret2", p.lastPwd)
	})

	t.Run("update requires a session", func(t *testing.T) {
		s, _ := newTestStore(&fakeProvider{})
		assert.ErrorIs(t, s.UpdatePassword(ctx, "secret2", "secret2"), apperrors.ErrNotSignedIn)
	})
}

func TestSubscribe(t *testing.T) {
	ctx := context.Background()
	s := NewStore(&fakeProvider{}, zerolog.Nop())

	var order []string
	s.Subscribe(func(context.Context, Event) { order = append(order, "first") })
	unsubscribe := s.Subscribe(func(context.Context, Event) { order = append(order, "second") })
	s.Subscribe(func(context.Context, Event) {
		// Handlers may read the store; the lock is released before delivery.
		_, ok := s.Current()
		order = append(order, map[bool]string{true: "third:signed-in", false: "third:anon"}[ok])
	})

	_, err := s.SignIn(ctx, "a@b.co", "secret1")
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third:signed-in"}, order)

	unsubscribe()
	unsubscribe()
	order = nil
	require.NoError(t, s.SignOut(ctx))
	assert.Equal(t, []string{"first", "third:anon"}, order)
}

func TestEventCredentialIsACopy(t *testing.T) {
	ctx := context.Background()
	s := NewStore(&fakeProvider{}, zerolog.Nop())
	s.Subscribe(func(_ context.Context, ev Event) {
		ev.Credential.AccessToken = "tampered"
	})

	_, err := s.SignIn(ctx, "a@b.co", "secret1")
	require.NoError(t, err)

	cred, _ := s.Current()
	assert.Equal(t, "at-1", cred.AccessToken)
}
