// Package transport executes HTTP requests. Two implementations satisfy the
// Transport interface: HTTPTransport talks to the network, FixtureTransport
// serves canned responses from a manifest.
package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
)

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Stream is an open response body with its declared length, -1 if unknown.
type Stream struct {
	io.ReadCloser
	Length int64
}

// Transport executes requests.
//
// Perform returns raw transport errors; the caller classifies them.
// Download, FetchBytes and Open return *neterr.Error values.
type Transport interface {
	Perform(ctx context.Context, req *http.Request) (*Response, error)
	// Download fetches uri into a temporary file and returns its path. The
	// caller owns the file.
	Download(ctx context.Context, uri string) (string, error)
	FetchBytes(ctx context.Context, uri string) ([]byte, error)
	// Open starts a GET for uri and returns the unread body.
	Open(ctx context.Context, uri string) (*Stream, error)
}

// spool copies r into a new temporary file in dir and returns its path.
func spool(dir string, r io.Reader) (string, error) {
	f, err := os.CreateTemp(dir, "netkit-download-*")
	if err != nil {
		return "", err
	}
	path := f.Name()
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}
