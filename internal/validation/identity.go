package validation

import (
	"net/mail"
	"strings"

	"github.com/ndewijer/Finance-Insights/internal/api/request"
	"github.com/ndewijer/Finance-Insights/internal/apperrors"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

// ValidateCredentials checks an email/password pair. When newAccount is set
// the password must also meet the minimum length.
func ValidateCredentials(req request.CredentialsRequest, newAccount bool) error {
	e := &Error{}
	email := strings.TrimSpace(req.Email)
	switch {
	case email == "":
		e.add("email", apperrors.ErrMissingCredentials.Error())
	case !validEmail(email):
		e.add("email", apperrors.ErrInvalidEmail.Error())
	}
	switch {
	case req.Password == "":
		e.add("password", apperrors.ErrMissingCredentials.Error())
	case newAccount && len(req.Password) < MinPasswordLength:
		e.add("password", apperrors.ErrWeakPassword.Error())
	}
	return e.orNil()
}

// ValidateRecover checks a password reset request.
func ValidateRecover(req request.RecoverRequest) error {
	e := &Error{}
	if !validEmail(strings.TrimSpace(req.Email)) {
		e.add("email", apperrors.ErrInvalidEmail.Error())
	}
	return e.orNil()
}

// ValidateUpdateUser checks a password change.
func ValidateUpdateUser(req request.UpdateUserRequest) error {
	e := &Error{}
	if len(req.Password) < MinPasswordLength {
		e.add("password", apperrors.ErrWeakPassword.Error())
	}
	return e.orNil()
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && strings.EqualFold(addr.Address, email)
}
