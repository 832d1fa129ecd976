package apperrors

import (
	"errors"
	"strings"
)

// Kind classifies a failure by where it was detected.
type Kind string

const (
	// KindValidation is detected client-side and never reaches the network.
	KindValidation Kind = "validation"
	// KindAuth is a rejection by the identity provider.
	KindAuth Kind = "auth"
	// KindNetwork is a transport failure or a non-2xx response without a structured body.
	KindNetwork Kind = "network"
	// KindServer is a structured error reported by the server.
	KindServer Kind = "server"
	// KindUnknown is any error that is not a *Failure.
	KindUnknown Kind = "unknown"
)

// GenericMessage is shown when a failure has no better description.
const GenericMessage = "Something went wrong. Please try again."

// Failure is the error type surfaced to the user-facing layer. Message is
// always safe to show; Err keeps the underlying cause for logs and errors.Is.
type Failure struct {
	Kind    Kind
	Op      string
	Message string
	Status  int
	Err     error
}

func (f *Failure) Error() string {
	if f.Op == "" {
		return f.Message
	}
	return f.Op + ": " + f.Message
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Validation returns a client-side validation failure wrapping cause.
func Validation(op string, cause error) error {
	return &Failure{Kind: KindValidation, Op: op, Message: capitalize(cause.Error()), Err: cause}
}

// Auth returns an identity failure carrying the provider's reason verbatim.
func Auth(op, reason string, cause error) error {
	if reason == "" {
		reason = "Authentication failed."
	}
	return &Failure{Kind: KindAuth, Op: op, Message: reason, Err: cause}
}

// Network returns a transport-level failure with the generic message.
// status is zero when no response was received.
func Network(op string, status int, cause error) error {
	return &Failure{Kind: KindNetwork, Op: op, Message: GenericMessage, Status: status, Err: cause}
}

// Server returns a failure carrying the server's structured reason.
func Server(op string, status int, reason string) error {
	if reason == "" {
		return Network(op, status, errors.New("empty error body"))
	}
	return &Failure{Kind: KindServer, Op: op, Message: reason, Status: status}
}

// KindOf returns the kind of the first *Failure in err's chain.
func KindOf(err error) Kind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindUnknown
}

// Message returns the user-facing text for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var f *Failure
	if errors.As(err, &f) {
		return f.Message
	}
	return GenericMessage
}

// StatusOf returns the HTTP status recorded on the failure, or zero.
func StatusOf(err error) int {
	var f *Failure
	if errors.As(err, &f) {
		return f.Status
	}
	return 0
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	out := strings.ToUpper(s[:1]) + s[1:]
	if !strings.HasSuffix(out, ".") && !strings.HasSuffix(out, "?") {
		out += "."
	}
	return out
}
