package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/basecamp/netkit/internal/neterr"
	"github.com/basecamp/netkit/internal/version"
)

const (
	// DefaultRequestTimeout bounds connection setup and the wait for
	// response headers.
	DefaultRequestTimeout = 10 * time.Second

	// DefaultResourceTimeout bounds the whole exchange including the body.
	DefaultResourceTimeout = 30 * time.Second
)

// HTTPOptions configures an HTTPTransport. Zero values take defaults.
type HTTPOptions struct {
	RequestTimeout  time.Duration
	ResourceTimeout time.Duration
	UserAgent       string
	// TempDir receives downloads before they are moved into place.
	TempDir string
	Logger  *slog.Logger
	// Base replaces the default round tripper, mainly for tests.
	Base http.RoundTripper
}

// HTTPTransport executes requests over the network.
type HTTPTransport struct {
	client    *http.Client
	userAgent string
	tempDir   string
	logger    *slog.Logger
}

var _ Transport = (*HTTPTransport)(nil)

// NewHTTP creates a live transport.
func NewHTTP(opts HTTPOptions) *HTTPTransport {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.ResourceTimeout <= 0 {
		opts.ResourceTimeout = DefaultResourceTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = version.UserAgent()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	base := opts.Base
	if base == nil {
		dialer := &net.Dialer{
			Timeout:   opts.RequestTimeout,
			KeepAlive: 30 * time.Second,
		}
		base = &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   opts.RequestTimeout,
			ResponseHeaderTimeout: opts.RequestTimeout,
			ExpectContinueTimeout: 1 * time.Second,
		}
	}

	return &HTTPTransport{
		client: &http.Client{
			Timeout:   opts.ResourceTimeout,
			Transport: base,
		},
		userAgent: opts.UserAgent,
		tempDir:   opts.TempDir,
		logger:    opts.Logger,
	}
}

// Perform sends req and reads the full body.
func (t *HTTPTransport) Perform(ctx context.Context, req *http.Request) (*Response, error) {
	req = req.WithContext(ctx)
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", t.userAgent)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	t.logger.Debug("http response", "method", req.Method, "status", resp.StatusCode, "bytes", len(body))

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// Open issues a GET and returns the body unread. Non-2xx statuses fail
// with RequestFailed.
func (t *HTTPTransport) Open(ctx context.Context, uri string) (*Stream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, neterr.Wrap(neterr.URLCreationFailed, err)
	}
	req.Header.Set("User-Agent", t.userAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, neterr.Wrap(neterr.ClassifyTransport(neterr.CodeOf(err)), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, &neterr.Error{Kind: neterr.RequestFailed, StatusCode: resp.StatusCode}
	}
	return &Stream{ReadCloser: resp.Body, Length: resp.ContentLength}, nil
}

// FetchBytes returns the body of a GET for uri.
func (t *HTTPTransport) FetchBytes(ctx context.Context, uri string) ([]byte, error) {
	s, err := t.Open(ctx, uri)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	data, err := io.ReadAll(s)
	if err != nil {
		return nil, neterr.Wrap(neterr.ClassifyTransport(neterr.CodeOf(err)), err)
	}
	return data, nil
}

// Download writes the body of a GET for uri to a temporary file.
func (t *HTTPTransport) Download(ctx context.Context, uri string) (string, error) {
	s, err := t.Open(ctx, uri)
	if err != nil {
		return "", err
	}
	defer s.Close()

	path, err := spool(t.tempDir, s)
	if err != nil {
		return "", neterr.Wrap(neterr.FileDownloadFailed, err)
	}
	return path, nil
}
