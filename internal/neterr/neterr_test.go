package neterr

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyStatusExactCodes(t *testing.T) {
	tests := []struct {
		status int
		want   Kind
	}{
		{301, MovedPermanently},
		{304, NotModified},
		{302, Redirection},
		{307, Redirection},
		{400, BadRequest},
		{401, UnAuthorized},
		{403, Forbidden},
		{404, NotFound},
		{500, ServerInternalError},
		{503, ServiceUnavailable},
		{200, UnKnownError},
		{0, UnKnownError},
		{600, UnKnownError},
		{-1, UnKnownError},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyStatus(tt.status))
		})
	}
}

func TestClassifyStatusClientRange(t *testing.T) {
	for status := 400; status < 500; status++ {
		switch status {
		case 400, 401, 403, 404:
			continue
		}
		if got := ClassifyStatus(status); got != ClientError {
			t.Errorf("ClassifyStatus(%d) = %v, want client_error", status, got)
		}
	}
}

func TestClassifyStatusServerRange(t *testing.T) {
	for status := 500; status < 600; status++ {
		if status == 500 || status == 503 {
			continue
		}
		if got := ClassifyStatus(status); got != ServerError {
			t.Errorf("ClassifyStatus(%d) = %v, want server_error", status, got)
		}
	}
}

func TestClassifyTransport(t *testing.T) {
	assert.Equal(t, NoDataConnection, ClassifyTransport(CodeNotConnected))
	assert.Equal(t, NoDataConnection, ClassifyTransport(CodeDataNotAllowed))
	assert.Equal(t, RequestTimeOut, ClassifyTransport(CodeTimedOut))
	assert.Equal(t, RequestFailed, ClassifyTransport(CodeCannotFindHost))
	assert.Equal(t, RequestFailed, ClassifyTransport(CodeUnknown))
}

func TestClassifyFailure(t *testing.T) {
	status404 := 404

	assert.Equal(t, NoInternet, ClassifyFailure(CodeNotConnected, nil))
	assert.Equal(t, RequestTimeOut, ClassifyFailure(CodeTimedOut, &status404))
	assert.Equal(t, InvalidResponse, ClassifyFailure(CodeCancelled, nil))
	assert.Equal(t, NotFound, ClassifyFailure(CodeCancelled, &status404))

	for _, code := range []TransportCode{
		CodeSecureConnectionFailed, CodeCertificateUntrusted, CodeCertificateBadDate,
		CodeCertificateUnknownRoot, CodeClientCertificateRejected, CodeCannotConnectToHost,
		CodeCannotFindHost, CodeUnsupportedURL, CodeBadURL,
	} {
		assert.Equal(t, DomainError, ClassifyFailure(code, &status404), "code %d", code)
	}

	assert.Equal(t, NotFound, ClassifyFailure(CodeUnknown, &status404))
	assert.Equal(t, InvalidResponse, ClassifyFailure(CodeUnknown, nil))
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want TransportCode
	}{
		{"nil", nil, CodeUnknown},
		{"canceled", fmt.Errorf("do: %w", context.Canceled), CodeCancelled},
		{"deadline", context.DeadlineExceeded, CodeTimedOut},
		{"dns", &url.Error{Op: "Get", URL: "https://nope.invalid", Err: &net.DNSError{Err: "no such host", Name: "nope.invalid"}}, CodeCannotFindHost},
		{"dns timeout", &net.DNSError{IsTimeout: true}, CodeTimedOut},
		{"refused", &url.Error{Op: "Get", Err: &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}}, CodeCannotConnectToHost},
		{"unreachable", &net.OpError{Op: "dial", Err: syscall.ENETUNREACH}, CodeNotConnected},
		{"reset", &net.OpError{Op: "read", Err: syscall.ECONNRESET}, CodeConnectionLost},
		{"unknown authority", &url.Error{Op: "Get", Err: x509.UnknownAuthorityError{}}, CodeCertificateUnknownRoot},
		{"expired", x509.CertificateInvalidError{Reason: x509.Expired}, CodeCertificateBadDate},
		{"scheme", &url.Error{Op: "Get", URL: "ftp://x", Err: errors.New(`unsupported protocol scheme "ftp"`)}, CodeUnsupportedURL},
		{"parse", &url.Error{Op: "parse", URL: "::", Err: errors.New("missing protocol scheme")}, CodeBadURL},
		{"other", errors.New("boom"), CodeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}

func TestFromTransportPreservesClassifiedErrors(t *testing.T) {
	original := New(BadRequest)
	got := FromTransport(fmt.Errorf("fixture: %w", original))
	require.NotNil(t, got)
	assert.Equal(t, BadRequest, got.Kind)

	got = FromTransport(context.DeadlineExceeded)
	assert.Equal(t, RequestTimeOut, got.Kind)
	assert.ErrorIs(t, got, context.DeadlineExceeded)

	assert.Nil(t, FromTransport(nil))
}

func TestErrorMatching(t *testing.T) {
	err := fmt.Errorf("call failed: %w", FromStatus(404))

	assert.ErrorIs(t, err, New(NotFound))
	assert.NotErrorIs(t, err, New(Forbidden))

	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, NotFound, kind)

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "Your request is unauthorized.", New(UnAuthorized).Error())
	assert.Equal(t, "Request Timed out.", RequestTimeOut.Message())
	assert.Equal(t, "bad_request", BadRequest.String())

	wrapped := Wrap(RequestFailed, errors.New("connection reset"))
	assert.Equal(t, "Request Failed. (connection reset)", wrapped.Error())

	assert.Len(t, Kinds(), 24)
	for _, k := range Kinds() {
		assert.NotEmpty(t, k.Message())
		assert.NotContains(t, k.String(), "kind(")
	}
}

func TestAs(t *testing.T) {
	assert.Nil(t, As(nil, UnKnownError))

	e := As(errors.New("boom"), InvalidResponse)
	assert.Equal(t, InvalidResponse, e.Kind)

	orig := New(Forbidden)
	assert.Same(t, orig, As(orig, InvalidResponse))
}
