package output

import (
	"errors"
	"fmt"

	"github.com/basecamp/netkit/internal/neterr"
)

// Error is a structured error with code, message, and optional hint.
type Error struct {
	Code       string
	Kind       string
	Message    string
	Hint       string
	HTTPStatus int
	Cause      error
}

func (e *Error) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Hint)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// ExitCode returns the appropriate exit code for this error.
func (e *Error) ExitCode() int {
	return ExitCodeFor(e.Code)
}

func ErrUsage(msg string) *Error {
	return &Error{Code: CodeUsage, Message: msg}
}

func ErrUsageHint(msg, hint string) *Error {
	return &Error{Code: CodeUsage, Message: msg, Hint: hint}
}

func ErrAuth(msg string) *Error {
	return &Error{
		Code:    CodeAuth,
		Message: msg,
		Hint:    "Run: netkit token set <access-token>",
	}
}

func ErrNetwork(cause error) *Error {
	return &Error{
		Code:    CodeNetwork,
		Message: "Network error",
		Hint:    cause.Error(),
		Cause:   cause,
	}
}

// hints are attached to domain errors of the given kind.
var hints = map[neterr.Kind]string{
	neterr.UnAuthorized:       "Run: netkit token refresh, or netkit token set <access-token>",
	neterr.InvalidRequest:     "Check the URL and that a token is stored for --token-key",
	neterr.BadRequest:         "With --transport fixture, check the fixture manifest entry",
	neterr.NoInternet:         "Check your network connection",
	neterr.RequestTimeOut:     "Try again, or raise --request-timeout",
	neterr.ServiceUnavailable: "Try again later; netkit circuit reset clears a tripped circuit",
}

// AsError converts err to an *Error. Domain errors keep their kind and
// status; anything else is reported as an API error.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	var ne *neterr.Error
	if errors.As(err, &ne) {
		return &Error{
			Code:       CodeForKind(ne.Kind),
			Kind:       ne.Kind.String(),
			Message:    ne.Error(),
			Hint:       hints[ne.Kind],
			HTTPStatus: ne.StatusCode,
			Cause:      err,
		}
	}

	return &Error{
		Code:    CodeAPI,
		Message: err.Error(),
		Cause:   err,
	}
}
