// Package network runs authenticated HTTP calls: it attaches tokens from the
// credential store, refreshes and retries once on 401, decodes JSON bodies
// and reports failures as neterr kinds.
package network

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"

	"github.com/basecamp/netkit/internal/credentials"
	"github.com/basecamp/netkit/internal/download"
	"github.com/basecamp/netkit/internal/transport"
	"github.com/basecamp/netkit/internal/version"
)

// maxUnauthorizedRetries is the number of times a call is repeated after a
// 401 followed by a successful refresh.
const maxUnauthorizedRetries = 1

// Client executes calls against a Transport. It is safe for concurrent use.
type Client struct {
	transport transport.Transport
	store     *credentials.Store
	sink      *download.Sink
	hooks     Hooks
	logger    *slog.Logger
	userAgent string
	validate  *validator.Validate

	refresher atomic.Pointer[RefresherRef]
	coalesce  bool
	refreshes singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithHooks sets the observer for requests and refreshes.
func WithHooks(h Hooks) Option {
	return func(c *Client) {
		if h != nil {
			c.hooks = h
		}
	}
}

// WithLogger sets the client's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithSink sets where downloads are written.
func WithSink(s *download.Sink) Option {
	return func(c *Client) {
		if s != nil {
			c.sink = s
		}
	}
}

// WithRefresher attaches a refresher reference at construction.
func WithRefresher(ref RefresherRef) Option {
	return func(c *Client) {
		c.SetRefresher(ref)
	}
}

// WithoutRefreshCoalescing lets concurrent calls that need a refresh for
// the same token key each invoke the refresher.
func WithoutRefreshCoalescing() Option {
	return func(c *Client) {
		c.coalesce = false
	}
}

// New creates a client. A nil store keeps tokens in memory only.
func New(t transport.Transport, store *credentials.Store, opts ...Option) *Client {
	if store == nil {
		store = credentials.New(nil)
	}
	c := &Client{
		transport: t,
		store:     store,
		hooks:     NoopHooks{},
		logger:    slog.New(slog.DiscardHandler),
		userAgent: version.UserAgent(),
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		coalesce:  true,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.sink == nil {
		c.sink = download.NewSink("")
	}
	return c
}

// Store returns the credential store the client reads tokens from.
func (c *Client) Store() *credentials.Store {
	return c.store
}

// SetRefresher attaches ref, replacing any previous refresher. A nil ref
// detaches.
func (c *Client) SetRefresher(ref RefresherRef) {
	if ref == nil {
		c.refresher.Store(nil)
		return
	}
	c.refresher.Store(&ref)
}

func (c *Client) currentRefresher() Refresher {
	ref := c.refresher.Load()
	if ref == nil {
		return nil
	}
	return (*ref)()
}

// refresh invokes the refresher for key. Concurrent refreshes of the same
// key share one invocation unless coalescing is disabled. A caller whose
// context ends stops waiting without cancelling the shared refresh.
func (c *Client) refresh(ctx context.Context, key, reason string) bool {
	r := c.currentRefresher()
	if r == nil {
		c.logger.Debug("no refresher attached", "key", key, "reason", reason)
		return false
	}

	start := time.Now()
	var ok bool
	if c.coalesce {
		// The shared refresh outlives any one caller; each caller only
		// stops waiting when its own context ends.
		shared := context.WithoutCancel(ctx)
		ch := c.refreshes.DoChan(key, func() (any, error) {
			return r.Refresh(shared), nil
		})
		select {
		case res := <-ch:
			ok, _ = res.Val.(bool)
		case <-ctx.Done():
			ok = false
		}
	} else {
		ok = r.Refresh(ctx)
	}

	info := RefreshInfo{Key: key, Reason: reason, Succeeded: ok, Duration: time.Since(start)}
	c.hooks.OnRefresh(ctx, info)
	c.logger.Debug("token refresh", "key", key, "reason", reason, "ok", ok)
	return ok
}
