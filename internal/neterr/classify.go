package neterr

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"net/url"
	"strings"
	"syscall"
)

// TransportCode is a low-level transport failure code, produced from a Go
// network error by CodeOf.
type TransportCode int

const (
	CodeUnknown TransportCode = iota
	CodeCancelled
	CodeTimedOut
	CodeNotConnected
	CodeDataNotAllowed
	CodeConnectionLost
	CodeBadURL
	CodeUnsupportedURL
	CodeCannotFindHost
	CodeCannotConnectToHost
	CodeSecureConnectionFailed
	CodeCertificateUntrusted
	CodeCertificateBadDate
	CodeCertificateUnknownRoot
	CodeClientCertificateRejected
)

// ClassifyTransport maps a transport failure code to a kind.
// Only the connectivity and timeout codes are distinguished.
func ClassifyTransport(code TransportCode) Kind {
	switch code {
	case CodeNotConnected, CodeDataNotAllowed:
		return NoDataConnection
	case CodeTimedOut:
		return RequestTimeOut
	default:
		return RequestFailed
	}
}

// ClassifyStatus maps an HTTP status to a kind. Exact codes win over the
// range that encloses them.
func ClassifyStatus(status int) Kind {
	switch {
	case status == 301:
		return MovedPermanently
	case status == 304:
		return NotModified
	case status >= 300 && status < 400:
		return Redirection
	case status == 400:
		return BadRequest
	case status == 401:
		return UnAuthorized
	case status == 403:
		return Forbidden
	case status == 404:
		return NotFound
	case status >= 400 && status < 500:
		return ClientError
	case status == 500:
		return ServerInternalError
	case status == 503:
		return ServiceUnavailable
	case status >= 500 && status < 600:
		return ServerError
	default:
		return UnKnownError
	}
}

// ClassifyFailure maps a transport failure, optionally accompanied by the
// HTTP status of a response, to a kind. A nil status means no response was
// received.
func ClassifyFailure(code TransportCode, status *int) Kind {
	switch code {
	case CodeNotConnected, CodeDataNotAllowed:
		return NoInternet
	case CodeTimedOut:
		return RequestTimeOut
	case CodeSecureConnectionFailed,
		CodeCertificateUntrusted,
		CodeCertificateBadDate,
		CodeCertificateUnknownRoot,
		CodeClientCertificateRejected,
		CodeCannotConnectToHost,
		CodeCannotFindHost,
		CodeUnsupportedURL,
		CodeBadURL:
		return DomainError
	}
	if status == nil {
		return InvalidResponse
	}
	return ClassifyStatus(*status)
}

// CodeOf inspects a Go error returned by an http.Client or dialer and
// reports the matching transport failure code.
func CodeOf(err error) TransportCode {
	if err == nil {
		return CodeUnknown
	}

	if errors.Is(err, context.Canceled) {
		return CodeCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CodeTimedOut
	}

	var certInvalid x509.CertificateInvalidError
	if errors.As(err, &certInvalid) {
		if certInvalid.Reason == x509.Expired {
			return CodeCertificateBadDate
		}
		return CodeCertificateUntrusted
	}
	var unknownAuth x509.UnknownAuthorityError
	if errors.As(err, &unknownAuth) {
		return CodeCertificateUnknownRoot
	}
	var hostname x509.HostnameError
	if errors.As(err, &hostname) {
		return CodeCertificateUntrusted
	}
	var verify *tls.CertificateVerificationError
	if errors.As(err, &verify) {
		return CodeCertificateUntrusted
	}
	var header tls.RecordHeaderError
	if errors.As(err, &header) {
		return CodeSecureConnectionFailed
	}
	var alert tls.AlertError
	if errors.As(err, &alert) {
		if alert == 42 || alert == 116 { // bad_certificate, certificate_required
			return CodeClientCertificateRejected
		}
		return CodeSecureConnectionFailed
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return CodeTimedOut
		}
		return CodeCannotFindHost
	}

	switch {
	case errors.Is(err, syscall.ENETUNREACH), errors.Is(err, syscall.ENETDOWN):
		return CodeNotConnected
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.EHOSTUNREACH):
		return CodeCannotConnectToHost
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE):
		return CodeConnectionLost
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CodeTimedOut
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Op == "parse" {
			return CodeBadURL
		}
		msg := urlErr.Err.Error()
		if strings.Contains(msg, "unsupported protocol scheme") {
			return CodeUnsupportedURL
		}
		if strings.Contains(msg, "no Host in request URL") || strings.Contains(msg, "invalid URL") {
			return CodeBadURL
		}
	}

	return CodeUnknown
}

// FromTransport classifies a transport error with ClassifyFailure. An
// error that is already classified is returned unchanged.
func FromTransport(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(ClassifyFailure(CodeOf(err), nil), err)
}
