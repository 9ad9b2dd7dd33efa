// Package auth refreshes OAuth access tokens held in the credential store.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/basecamp/netkit/internal/credentials"
	"github.com/basecamp/netkit/internal/hostutil"
	"github.com/basecamp/netkit/internal/neterr"
)

// TokenEnv names an access token that is seeded into the store in place of
// any stored one.
const TokenEnv = "NETKIT_TOKEN"

var (
	// ErrNoRefreshToken is returned when no refresh token is stored.
	ErrNoRefreshToken = errors.New("no refresh token available")
	// ErrNoTokenURL is returned when no token endpoint is configured.
	ErrNoTokenURL = errors.New("no token endpoint configured")
)

// Config describes the OAuth client used for refreshes.
type Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	// Key is the credential identifier the tokens are stored under.
	Key string
	// AuthStyle controls how client credentials reach the token endpoint.
	// Zero sends them as HTTP basic auth.
	AuthStyle oauth2.AuthStyle
}

// Manager refreshes tokens for one credential key. It implements
// network.Refresher.
type Manager struct {
	cfg        Config
	store      *credentials.Store
	httpClient *http.Client
	logger     *slog.Logger

	mu          sync.Mutex
	lastRefresh time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithHTTPClient sets the client used to reach the token endpoint.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) {
		if c != nil {
			m.httpClient = c
		}
	}
}

// WithLogger sets the manager's logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager creates a manager. The token URL must use https unless it
// points at localhost.
func NewManager(cfg Config, store *credentials.Store, opts ...Option) (*Manager, error) {
	if err := hostutil.RequireSecureURL(cfg.TokenURL); err != nil {
		return nil, err
	}
	if cfg.Key == "" {
		cfg.Key = credentials.DefaultID
	}
	if cfg.AuthStyle == oauth2.AuthStyleAutoDetect {
		cfg.AuthStyle = oauth2.AuthStyleInHeader
	}
	if store == nil {
		store = credentials.New(nil)
	}
	m := &Manager{
		cfg:        cfg,
		store:      store,
		httpClient: http.DefaultClient,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Key returns the credential identifier the manager refreshes.
func (m *Manager) Key() string {
	return m.cfg.Key
}

// SeedFromEnv copies NETKIT_TOKEN into the store as the access token.
// It reports whether a token was found.
func (m *Manager) SeedFromEnv() (bool, error) {
	token := strings.TrimSpace(os.Getenv(TokenEnv))
	if token == "" {
		return false, nil
	}
	return true, m.store.Set(credentials.Access, m.cfg.Key, token)
}

// IsAuthenticated reports whether an access token is stored.
func (m *Manager) IsAuthenticated() bool {
	token, ok := m.store.Get(credentials.Access, m.cfg.Key)
	return ok && token != ""
}

// LastRefresh returns when the last successful refresh completed.
func (m *Manager) LastRefresh() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRefresh
}

// Refresh exchanges the stored refresh token for new tokens and reports
// whether it succeeded. Failures are logged.
func (m *Manager) Refresh(ctx context.Context) bool {
	if err := m.RefreshToken(ctx); err != nil {
		m.logger.Warn("token refresh failed", "key", m.cfg.Key, "error", err)
		return false
	}
	return true
}

// RefreshToken exchanges the stored refresh token for new tokens and writes
// them back to the store.
func (m *Manager) RefreshToken(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg.TokenURL == "" {
		return neterr.Wrap(neterr.InvalidRequest, ErrNoTokenURL)
	}
	refresh, ok := m.store.Get(credentials.Refresh, m.cfg.Key)
	if !ok || refresh == "" {
		return neterr.Wrap(neterr.UnAuthorized, ErrNoRefreshToken)
	}

	conf := &oauth2.Config{
		ClientID:     m.cfg.ClientID,
		ClientSecret: m.cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  m.cfg.TokenURL,
			AuthStyle: m.cfg.AuthStyle,
		},
		Scopes: m.cfg.Scopes,
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)

	tok, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refresh}).Token()
	if err != nil {
		return classify(err)
	}
	if tok.AccessToken == "" {
		return neterr.Wrap(neterr.InvalidResponse, fmt.Errorf("token endpoint returned no access token"))
	}

	// The grant succeeded even if the store cannot keep the result; the
	// store logs the failure and the token then reads as absent.
	if err := m.store.Set(credentials.Access, m.cfg.Key, tok.AccessToken); err != nil {
		m.logger.Debug("refreshed access token not persisted", "key", m.cfg.Key, "error", err)
	}
	if tok.RefreshToken != "" && tok.RefreshToken != refresh {
		if err := m.store.Set(credentials.Refresh, m.cfg.Key, tok.RefreshToken); err != nil {
			m.logger.Debug("refreshed refresh token not persisted", "key", m.cfg.Key, "error", err)
		}
	}
	m.lastRefresh = time.Now()
	m.logger.Debug("token refreshed", "key", m.cfg.Key, "expiry", tok.Expiry)
	return nil
}

// Logout removes both tokens for the manager's key.
func (m *Manager) Logout() error {
	return m.store.Remove(m.cfg.Key)
}

func classify(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		status := re.Response.StatusCode
		// The token endpoint answers a rejected grant with 400.
		if status == http.StatusBadRequest {
			return &neterr.Error{Kind: neterr.UnAuthorized, StatusCode: status, Cause: err}
		}
		return &neterr.Error{Kind: neterr.ClassifyStatus(status), StatusCode: status, Cause: err}
	}
	return neterr.FromTransport(err)
}
