// Package appctx provides application context helpers.
package appctx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/basecamp/netkit/internal/auth"
	"github.com/basecamp/netkit/internal/config"
	"github.com/basecamp/netkit/internal/credentials"
	"github.com/basecamp/netkit/internal/download"
	"github.com/basecamp/netkit/internal/network"
	"github.com/basecamp/netkit/internal/observability"
	"github.com/basecamp/netkit/internal/output"
	"github.com/basecamp/netkit/internal/resilience"
	"github.com/basecamp/netkit/internal/transport"
)

// contextKey is a private type for context keys.
type contextKey string

const appKey contextKey = "app"

// App holds the shared application context for all commands.
type App struct {
	Config    *config.Config
	Store     *credentials.Store
	Transport transport.Transport
	Client    *network.Client
	Auth      *auth.Manager
	Output    *output.Writer
	Logger    *slog.Logger
	Locale    output.Locale

	// Fixtures is set when the fixture transport is selected.
	Fixtures *transport.FixtureTransport
	// Breaker is set when the circuit breaker is enabled.
	Breaker *resilience.CircuitBreaker

	// Observability
	Collector *observability.SessionCollector
	Hooks     *observability.CLIHooks
	Metrics   *observability.Metrics
	Registry  *prometheus.Registry

	Stdout io.Writer
	Stderr io.Writer

	// Flags holds the global flag values
	Flags GlobalFlags

	logLevel *slog.LevelVar
}

// GlobalFlags holds values for global CLI flags.
type GlobalFlags struct {
	// Output format flags
	JSON  bool
	Quiet bool
	JQ    string

	// Transport flags
	Transport       string
	FixturesDir     string
	DownloadDir     string
	RequestTimeout  time.Duration
	ResourceTimeout time.Duration
	CircuitBreaker  bool

	// Credential flags
	TokenKey string

	// Behavior flags
	Verbose     int // 0=off, 1=refreshes, 2=refreshes+requests (stacks with -v -v or -vv)
	Stats       bool
	MetricsFile string
}

// Option adjusts how NewApp builds its components.
type Option func(*settings)

type settings struct {
	secure     credentials.SecureStore
	httpClient *http.Client
	stdout     io.Writer
	stderr     io.Writer
}

// WithSecureStore replaces the OS keyring as the persistent token tier.
func WithSecureStore(s credentials.SecureStore) Option {
	return func(o *settings) { o.secure = s }
}

// WithHTTPClient sets the client used to reach the token endpoint.
func WithHTTPClient(c *http.Client) Option {
	return func(o *settings) { o.httpClient = c }
}

// WithStdout redirects command output.
func WithStdout(w io.Writer) Option {
	return func(o *settings) { o.stdout = w }
}

// WithStderr redirects traces, logs and statistics.
func WithStderr(w io.Writer) Option {
	return func(o *settings) { o.stderr = w }
}

// NewApp creates a new App with the given configuration and flags.
func NewApp(cfg *config.Config, flags GlobalFlags, opts ...Option) (*App, error) {
	s := settings{stdout: os.Stdout, stderr: os.Stderr}
	for _, opt := range opts {
		opt(&s)
	}
	if s.secure == nil {
		s.secure = credentials.NewKeyringStore(cfg.KeyringService)
	}
	if s.httpClient == nil {
		s.httpClient = &http.Client{Timeout: cfg.ResourceTimeout}
	}

	level := new(slog.LevelVar)
	level.Set(slog.LevelWarn)
	logger := slog.New(slog.NewTextHandler(s.stderr, &slog.HandlerOptions{Level: level}))

	store := credentials.New(s.secure, credentials.WithLogger(logger))

	app := &App{
		Config:   cfg,
		Store:    store,
		Logger:   logger,
		Locale:   output.DetectLocale(),
		Stdout:   s.stdout,
		Stderr:   s.stderr,
		Flags:    flags,
		logLevel: level,
	}

	tr, err := app.buildTransport()
	if err != nil {
		return nil, err
	}
	app.Transport = tr

	mgr, err := auth.NewManager(auth.Config{
		TokenURL:     cfg.TokenURL,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       cfg.Scopes,
		Key:          flags.TokenKey,
	}, store, auth.WithHTTPClient(s.httpClient), auth.WithLogger(logger))
	if err != nil {
		return nil, output.ErrUsageHint(err.Error(), "Set token_url to an https:// endpoint")
	}
	app.Auth = mgr

	// Collector always runs to gather stats; hooks control output verbosity
	app.Collector = observability.NewSessionCollector()
	app.Hooks = observability.NewCLIHooks(0, app.Collector, observability.NewTraceWriterTo(s.stderr))
	app.Registry = prometheus.NewRegistry()
	app.Metrics = observability.NewMetrics(app.Registry)

	clientOpts := []network.Option{
		network.WithHooks(network.ChainHooks(app.Hooks, app.Metrics)),
		network.WithLogger(logger),
		network.WithUserAgent(cfg.UserAgent),
		network.WithSink(download.NewSink(cfg.DownloadDir)),
	}
	if cfg.TokenURL != "" {
		// The App owns the manager; the client only borrows it.
		clientOpts = append(clientOpts, network.WithRefresher(network.Weak(mgr)))
	}
	app.Client = network.New(tr, store, clientOpts...)

	if err := app.ApplyFlags(); err != nil {
		return nil, err
	}
	return app, nil
}

func (a *App) buildTransport() (transport.Transport, error) {
	cfg := a.Config

	var tr transport.Transport
	switch cfg.Transport {
	case config.TransportFixture:
		a.Fixtures = transport.NewFixtureDir(cfg.FixturesDir,
			transport.WithManifestName(cfg.FixturesManifest),
			transport.WithFixtureLogger(a.Logger),
		)
		tr = a.Fixtures
	default:
		tr = transport.NewHTTP(transport.HTTPOptions{
			RequestTimeout:  cfg.RequestTimeout,
			ResourceTimeout: cfg.ResourceTimeout,
			UserAgent:       cfg.UserAgent,
			Logger:          a.Logger,
		})
	}

	if !cfg.CircuitBreaker {
		return tr, nil
	}
	dir := cfg.StateDir
	if dir == "" {
		dir = resilience.DefaultDir()
	}
	if dir == "" {
		return nil, fmt.Errorf("circuit breaker enabled but no state directory is available")
	}
	a.Breaker = resilience.NewCircuitBreaker(resilience.NewStore(dir), a.BreakerConfig())
	return resilience.Guard(tr, a.Breaker, a.Logger), nil
}

// BreakerConfig returns the breaker defaults with any configured tuning
// applied.
func (a *App) BreakerConfig() resilience.CircuitBreakerConfig {
	cfg := a.Config
	bc := resilience.DefaultCircuitBreakerConfig()
	if cfg.CircuitFailureThreshold > 0 {
		bc = bc.WithFailureThreshold(cfg.CircuitFailureThreshold)
	}
	if cfg.CircuitSuccessThreshold > 0 {
		bc = bc.WithSuccessThreshold(cfg.CircuitSuccessThreshold)
	}
	if cfg.CircuitOpenTimeout > 0 {
		bc = bc.WithOpenTimeout(cfg.CircuitOpenTimeout)
	}
	if cfg.CircuitHalfOpenRequests > 0 {
		bc = bc.WithHalfOpenMaxRequests(cfg.CircuitHalfOpenRequests)
	}
	return bc
}

// ApplyFlags applies output and verbosity flags on top of the config.
func (a *App) ApplyFlags() error {
	format, err := output.ParseFormat(a.Config.Format)
	if err != nil {
		return err
	}
	// Order matters: the most specific mode wins
	if a.Flags.Quiet {
		format = output.FormatQuiet
	} else if a.Flags.JSON {
		format = output.FormatJSON
	}

	w, err := output.New(output.Options{
		Format: format,
		Writer: a.Stdout,
		JQ:     a.Flags.JQ,
	})
	if err != nil {
		return err
	}
	a.Output = w

	verboseLevel := a.Config.VerboseLevel()
	if a.Flags.Verbose > verboseLevel {
		verboseLevel = a.Flags.Verbose
	}
	if a.Hooks != nil {
		a.Hooks.SetLevel(verboseLevel)
	}
	if verboseLevel > 0 {
		a.logLevel.Set(slog.LevelDebug)
	}
	return nil
}

// OK outputs a success response, automatically including stats if --stats flag is set.
func (a *App) OK(data any, opts ...output.ResponseOption) error {
	if a.Flags.Stats && a.Collector != nil && !a.isMachineOutput() {
		opts = append(opts, output.WithMeta("stats", a.Collector.Summary()))
	}
	return a.Output.OK(data, opts...)
}

// Err outputs an error response, printing stats to stderr if --stats flag is set.
func (a *App) Err(err error) error {
	if outputErr := a.Output.Err(err); outputErr != nil {
		return outputErr
	}
	if a.Flags.Stats && a.Collector != nil && !a.isMachineOutput() {
		stats := a.Collector.Summary()
		a.printStats(&stats)
	}
	return nil
}

// Finish flushes end-of-run artifacts. It writes the Prometheus text
// exposition to --metrics-file when one is set.
func (a *App) Finish() error {
	if a.Flags.MetricsFile == "" || a.Registry == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(a.Flags.MetricsFile, a.Registry); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}

// isMachineOutput returns true if the output mode is intended for programmatic consumption.
func (a *App) isMachineOutput() bool {
	if a.Flags.Quiet {
		return true
	}
	return a.Config != nil && a.Config.Format == "quiet"
}

// printStats outputs a compact stats line to stderr.
func (a *App) printStats(stats *observability.SessionMetrics) {
	if stats == nil {
		return
	}

	var parts []string

	duration := stats.EndTime.Sub(stats.StartTime)
	if duration < time.Second {
		parts = append(parts, fmt.Sprintf("%dms", duration.Milliseconds()))
	} else {
		parts = append(parts, fmt.Sprintf("%.1fs", duration.Seconds()))
	}

	if stats.TotalRequests > 0 {
		if stats.TotalRequests == 1 {
			parts = append(parts, "1 request")
		} else {
			parts = append(parts, fmt.Sprintf("%d requests", stats.TotalRequests))
		}
	}
	if stats.Retries > 0 {
		if stats.Retries == 1 {
			parts = append(parts, "1 retry")
		} else {
			parts = append(parts, fmt.Sprintf("%d retries", stats.Retries))
		}
	}
	if stats.Refreshes > 0 {
		parts = append(parts, fmt.Sprintf("%d refreshed", stats.Refreshes))
	}
	if stats.FailedRequests > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", stats.FailedRequests))
	}

	fmt.Fprintf(a.Stderr, "\nStats: %s\n", strings.Join(parts, " | "))
}

// WithApp stores the app in the context.
func WithApp(ctx context.Context, app *App) context.Context {
	return context.WithValue(ctx, appKey, app)
}

// FromContext retrieves the app from the context.
func FromContext(ctx context.Context) *App {
	app, _ := ctx.Value(appKey).(*App)
	return app
}
