// Package neterr defines the closed set of network failure kinds and the
// classifiers that map transport failures and HTTP statuses onto them.
package neterr

import (
	"errors"
	"fmt"
)

// Kind identifies a network failure. The set is closed.
type Kind int

const (
	InvalidRequest Kind = iota + 1
	RequestFailed
	UnAuthorized
	RequestRequiresAccessToken
	InvalidResponse
	ResponseDecodingFailed
	URLCreationFailed
	FileDownloadFailed
	FileSavingFailed
	RequestTimeOut
	NoInternet
	NoDataConnection
	DomainError
	MovedPermanently
	NotModified
	Redirection
	BadRequest
	Forbidden
	NotFound
	ClientError
	ServerInternalError
	ServiceUnavailable
	ServerError
	UnKnownError
)

type kindInfo struct {
	code    string
	message string
}

var kinds = map[Kind]kindInfo{
	InvalidRequest:             {"invalid_request", "Request Sent is invalid."},
	RequestFailed:              {"request_failed", "Request Failed."},
	UnAuthorized:               {"unauthorized", "Your request is unauthorized."},
	RequestRequiresAccessToken: {"access_token_required", "Request require authorization."},
	InvalidResponse:            {"invalid_response", "We received invalid response from service."},
	ResponseDecodingFailed:     {"response_decoding_failed", "We are unable to process response from service."},
	URLCreationFailed:          {"url_creation_failed", "There is a problem with request creation."},
	FileDownloadFailed:         {"file_download_failed", "File downloading failed."},
	FileSavingFailed:           {"file_saving_failed", "Unable to save file in the system."},
	RequestTimeOut:             {"request_timeout", "Request Timed out."},
	NoInternet:                 {"no_internet", "There is no internet connection"},
	NoDataConnection:           {"no_data_connection", "Unable to reach service. Please check your internet setting"},
	DomainError:                {"domain_error", "We are unable to reach service"},
	MovedPermanently:           {"moved_permanently", "There is an unexpected change in service"},
	NotModified:                {"not_modified", "Request is not modified"},
	Redirection:                {"redirection", "Reponse is redirecting"},
	BadRequest:                 {"bad_request", "Service is rejecting the request"},
	Forbidden:                  {"forbidden", "Service is forbidden"},
	NotFound:                   {"not_found", "Unable to locate service"},
	ClientError:                {"client_error", "Some error ocured while requesting the service"},
	ServerInternalError:        {"server_internal_error", "There is a problem with the service."},
	ServiceUnavailable:         {"service_unavailable", "Service not available at the moment."},
	ServerError:                {"server_error", "Our service have unexpected error."},
	UnKnownError:               {"unknown_error", "There is some unexpected error in the service."},
}

// String returns the stable snake_case code for the kind.
func (k Kind) String() string {
	if info, ok := kinds[k]; ok {
		return info.code
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Message returns the fixed human-readable message for the kind.
func (k Kind) Message() string {
	if info, ok := kinds[k]; ok {
		return info.message
	}
	return kinds[UnKnownError].message
}

// Kinds returns every defined kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kinds))
	for k := InvalidRequest; k <= UnKnownError; k++ {
		out = append(out, k)
	}
	return out
}

// Error is a classified network failure.
type Error struct {
	Kind Kind
	// StatusCode is the HTTP status that produced the error, zero when the
	// failure happened before a response was received.
	StatusCode int
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%v)", e.Kind.Message(), e.Cause)
	}
	return e.Kind.Message()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind, so callers can
// write errors.Is(err, neterr.New(neterr.NotFound)).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// New returns an error of the given kind.
func New(kind Kind) *Error {
	return &Error{Kind: kind}
}

// Wrap returns an error of the given kind carrying cause.
func Wrap(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

// FromStatus classifies an HTTP status into an error.
func FromStatus(status int) *Error {
	return &Error{Kind: ClassifyStatus(status), StatusCode: status}
}

// KindOf extracts the kind from err. The second result is false when err
// does not wrap an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// As converts err into an *Error, wrapping unknown errors as fallback.
func As(err error, fallback Kind) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(fallback, err)
}
