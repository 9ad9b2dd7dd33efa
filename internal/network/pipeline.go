package network

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/basecamp/netkit/internal/credentials"
	"github.com/basecamp/netkit/internal/neterr"
	"github.com/basecamp/netkit/internal/request"
	"github.com/basecamp/netkit/internal/transport"
)

// ErrNoToken is the cause reported when a call needs an access token and
// none is stored.
var ErrNoToken = errors.New("no access token stored")

type call struct {
	method   request.Method
	segments []string
	query    url.Values
	body     any
	header   http.Header
}

// CallOption configures a single call.
type CallOption func(*call)

// WithMethod sets the HTTP method. The default is GET.
func WithMethod(m request.Method) CallOption {
	return func(c *call) { c.method = m }
}

// WithPath appends escaped path segments to the descriptor's path.
func WithPath(segments ...string) CallOption {
	return func(c *call) { c.segments = append(c.segments, segments...) }
}

// WithQuery adds query parameters.
func WithQuery(q url.Values) CallOption {
	return func(c *call) {
		for k, vs := range q {
			c.query[k] = append(c.query[k], vs...)
		}
	}
}

// WithBody sets the request body. It is JSON-encoded unless it is a
// []byte, string or io.Reader, and is sent only for POST, PUT and PATCH.
func WithBody(body any) CallOption {
	return func(c *call) { c.body = body }
}

// WithHeaders replaces the default JSON headers.
func WithHeaders(h http.Header) CallOption {
	return func(c *call) { c.header = h.Clone() }
}

// WithHeader sets one header.
func WithHeader(key, value string) CallOption {
	return func(c *call) {
		if c.header == nil {
			c.header = http.Header{}
		}
		c.header.Set(key, value)
	}
}

func newCall(opts []CallOption) *call {
	c := &call{
		method: request.GET,
		query:  url.Values{},
		header: request.JSONHeaders(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.header == nil {
		c.header = http.Header{}
	}
	return c
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	case io.Reader:
		return io.ReadAll(b)
	default:
		return json.Marshal(b)
	}
}

// Request runs an authenticated call for d and decodes the JSON response
// into T.
func Request[T any](ctx context.Context, c *Client, d request.Descriptor, opts ...CallOption) Result[T] {
	resp, err := c.Do(ctx, d, opts...)
	if err != nil {
		return Failure[T](err)
	}
	var v T
	if err := c.decode(resp.Body, &v, true); err != nil {
		return Failure[T](neterr.Wrap(neterr.InvalidResponse, err))
	}
	return Success(v)
}

// Do runs an authenticated call for d and returns the raw 2xx response.
//
// When d requires a token and none is stored the call fails with
// InvalidRequest before anything is sent. An expired token is refreshed
// before the first dispatch. A 401 triggers one refresh and one retry;
// a second 401 is returned as UnAuthorized.
func (c *Client) Do(ctx context.Context, d request.Descriptor, opts ...CallOption) (*transport.Response, error) {
	cl := newCall(opts)

	u, err := d.URL(cl.segments, cl.query)
	if err != nil {
		return nil, neterr.Wrap(neterr.InvalidRequest, err)
	}

	var body []byte
	if cl.method.CarriesBody() {
		body, err = encodeBody(cl.body)
		if err != nil {
			return nil, neterr.Wrap(neterr.InvalidRequest, fmt.Errorf("encode body: %w", err))
		}
	}

	key := d.TokenKey()
	for attempt := 0; ; attempt++ {
		var rdr io.Reader
		if body != nil {
			rdr = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, string(cl.method), u.String(), rdr)
		if err != nil {
			return nil, neterr.Wrap(neterr.InvalidRequest, err)
		}
		req.Header = cl.header.Clone()

		if d.RequiresAccessToken {
			token, ok := c.store.Get(credentials.Access, key)
			if !ok {
				return nil, neterr.Wrap(neterr.InvalidRequest, ErrNoToken)
			}
			if d.TokenIsExpired && attempt == 0 {
				c.refresh(ctx, key, "expired")
				if token, ok = c.store.Get(credentials.Access, key); !ok {
					return nil, neterr.Wrap(neterr.InvalidRequest, ErrNoToken)
				}
			}
			name, value := d.AuthHeader(token)
			req.Header.Set(name, value)
		}

		resp, err := c.dispatch(ctx, req, attempt)
		if err != nil {
			return nil, neterr.FromTransport(err)
		}

		if resp.StatusCode == http.StatusUnauthorized {
			if attempt < maxUnauthorizedRetries && c.refresh(ctx, key, "unauthorized") {
				continue
			}
			return nil, neterr.FromStatus(resp.StatusCode)
		}
		if !resp.OK() {
			return nil, neterr.FromStatus(resp.StatusCode)
		}
		return resp, nil
	}
}

func (c *Client) dispatch(ctx context.Context, req *http.Request, attempt int) (*transport.Response, error) {
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	info := RequestInfo{
		Method:    req.Method,
		URL:       req.URL.String(),
		Attempt:   attempt + 1,
		RequestID: requestID,
	}
	ctx = c.hooks.OnRequestStart(ctx, info)

	start := time.Now()
	resp, err := c.transport.Perform(ctx, req)
	result := RequestResult{Duration: time.Since(start), Err: err}
	if resp != nil {
		result.StatusCode = resp.StatusCode
	}
	c.hooks.OnRequestEnd(ctx, info, result)

	if err != nil {
		c.logger.Debug("request failed", "method", req.Method, "request_id", requestID, "error", err)
	} else {
		c.logger.Debug("request done", "method", req.Method, "request_id", requestID, "status", resp.StatusCode)
	}
	return resp, err
}

// Get fetches uri without authentication and decodes the JSON body into T.
// Non-2xx statuses fail with RequestFailed and undecodable bodies with
// ResponseDecodingFailed.
func Get[T any](ctx context.Context, c *Client, uri string, header http.Header) Result[T] {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return Failure[T](neterr.Wrap(neterr.URLCreationFailed, err))
	}
	if header != nil {
		req.Header = header.Clone()
	}

	resp, err := c.dispatch(ctx, req, 0)
	if err != nil {
		var ne *neterr.Error
		if errors.As(err, &ne) {
			return Failure[T](ne)
		}
		return Failure[T](neterr.Wrap(neterr.ClassifyTransport(neterr.CodeOf(err)), err))
	}
	if !resp.OK() {
		return Failure[T](&neterr.Error{Kind: neterr.RequestFailed, StatusCode: resp.StatusCode})
	}

	var v T
	if err := c.decode(resp.Body, &v, false); err != nil {
		return Failure[T](neterr.Wrap(neterr.ResponseDecodingFailed, err))
	}
	return Success(v)
}
