package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/basecamp/netkit/internal/neterr"
	"github.com/basecamp/netkit/internal/transport"
)

// ErrCircuitOpen is the cause reported for requests refused by an open
// circuit.
var ErrCircuitOpen = errors.New("circuit open")

var _ transport.Transport = (*GuardedTransport)(nil)

// GuardedTransport consults a CircuitBreaker before every dispatch and
// records each outcome. Requests to a host with an open circuit fail with
// ServiceUnavailable without reaching the inner transport.
type GuardedTransport struct {
	inner   transport.Transport
	breaker *CircuitBreaker
	logger  *slog.Logger
}

// Guard wraps inner. A nil logger discards.
func Guard(inner transport.Transport, breaker *CircuitBreaker, logger *slog.Logger) *GuardedTransport {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &GuardedTransport{inner: inner, breaker: breaker, logger: logger}
}

func (g *GuardedTransport) allow(host string) error {
	allowed, _ := g.breaker.Allow(host)
	if allowed {
		return nil
	}
	g.logger.Debug("circuit open", "host", host)
	return neterr.Wrap(neterr.ServiceUnavailable, fmt.Errorf("%w for %s", ErrCircuitOpen, host))
}

func (g *GuardedTransport) record(ctx context.Context, host string, status int, err error) {
	var recErr error
	switch {
	case ctx.Err() != nil:
		// The caller gave up; nothing was learned about the host, but a
		// half-open slot it held must be handed back.
		recErr = g.breaker.Release(host)
	case err != nil && hostFailure(err):
		recErr = g.breaker.RecordFailure(host)
	case status >= http.StatusInternalServerError:
		recErr = g.breaker.RecordFailure(host)
	default:
		recErr = g.breaker.RecordSuccess(host)
	}
	if recErr != nil {
		g.logger.Warn("circuit state not saved", "host", host, "error", recErr)
	}
}

// hostFailure reports whether err says the host is unreachable or failing,
// as opposed to a request it answered or one rejected before dispatch.
func hostFailure(err error) bool {
	e := neterr.FromTransport(err)
	if e.StatusCode > 0 {
		return e.StatusCode >= http.StatusInternalServerError
	}
	switch e.Kind {
	case neterr.NoInternet, neterr.NoDataConnection, neterr.RequestTimeOut,
		neterr.DomainError, neterr.RequestFailed, neterr.InvalidResponse:
		return true
	}
	return false
}

func (g *GuardedTransport) Perform(ctx context.Context, req *http.Request) (*transport.Response, error) {
	host := req.URL.Host
	if err := g.allow(host); err != nil {
		return nil, err
	}
	resp, err := g.inner.Perform(ctx, req)
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	g.record(ctx, host, status, err)
	return resp, err
}

func (g *GuardedTransport) Open(ctx context.Context, uri string) (*transport.Stream, error) {
	host := hostOf(uri)
	if err := g.allow(host); err != nil {
		return nil, err
	}
	s, err := g.inner.Open(ctx, uri)
	g.record(ctx, host, 0, err)
	return s, err
}

func (g *GuardedTransport) FetchBytes(ctx context.Context, uri string) ([]byte, error) {
	host := hostOf(uri)
	if err := g.allow(host); err != nil {
		return nil, err
	}
	data, err := g.inner.FetchBytes(ctx, uri)
	g.record(ctx, host, 0, err)
	return data, err
}

func (g *GuardedTransport) Download(ctx context.Context, uri string) (string, error) {
	host := hostOf(uri)
	if err := g.allow(host); err != nil {
		return "", err
	}
	path, err := g.inner.Download(ctx, uri)
	g.record(ctx, host, 0, err)
	return path, err
}

func hostOf(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	return u.Host
}
