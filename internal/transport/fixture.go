package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/basecamp/netkit/internal/neterr"
)

// DefaultManifest is the manifest file name looked up in a fixture set.
const DefaultManifest = "responses.yaml"

// Manifest maps a URI to the fixture served for each HTTP method.
//
//	https://api.example.com/v1/ping:
//	  GET: ping_ok
//
// JSON manifests parse too.
type Manifest map[string]map[string]string

// ParseManifest decodes a YAML or JSON manifest. Method names are
// upper-cased.
func ParseManifest(data []byte) (Manifest, error) {
	var raw map[string]map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse fixture manifest: %w", err)
	}
	m := make(Manifest, len(raw))
	for uri, methods := range raw {
		byMethod := make(map[string]string, len(methods))
		for method, name := range methods {
			byMethod[strings.ToUpper(method)] = name
		}
		m[uri] = byMethod
	}
	return m, nil
}

// FixtureTransport serves canned responses. A request whose URI or method
// is missing from the manifest fails with BadRequest.
type FixtureTransport struct {
	mu       sync.RWMutex
	manifest Manifest

	fsys         fs.FS
	manifestName string
	dir          string
	tempDir      string
	logger       *slog.Logger
}

var _ Transport = (*FixtureTransport)(nil)

// FixtureOption configures a FixtureTransport.
type FixtureOption func(*FixtureTransport)

// WithManifestName overrides DefaultManifest.
func WithManifestName(name string) FixtureOption {
	return func(f *FixtureTransport) {
		if name != "" {
			f.manifestName = name
		}
	}
}

// WithFixtureLogger sets the logger for load failures.
func WithFixtureLogger(l *slog.Logger) FixtureOption {
	return func(f *FixtureTransport) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithTempDir sets where Download writes fixture copies.
func WithTempDir(dir string) FixtureOption {
	return func(f *FixtureTransport) {
		f.tempDir = dir
	}
}

// NewFixture loads the manifest from fsys. A manifest that is missing or
// malformed is logged and leaves the transport with an empty mapping.
func NewFixture(fsys fs.FS, opts ...FixtureOption) *FixtureTransport {
	f := &FixtureTransport{
		fsys:         fsys,
		manifestName: DefaultManifest,
		logger:       slog.New(slog.DiscardHandler),
		manifest:     Manifest{},
	}
	for _, opt := range opts {
		opt(f)
	}
	if err := f.Reload(); err != nil {
		f.logger.Warn("fixture manifest not loaded", "manifest", f.manifestName, "error", err)
	}
	return f
}

// NewFixtureDir loads fixtures from a directory. Only directory-backed
// transports can Watch.
func NewFixtureDir(dir string, opts ...FixtureOption) *FixtureTransport {
	f := NewFixture(os.DirFS(dir), opts...)
	f.dir = dir
	return f
}

// Reload re-reads the manifest. On failure the current mapping is replaced
// by an empty one.
func (f *FixtureTransport) Reload() error {
	m, err := f.loadManifest()
	if err != nil {
		m = Manifest{}
	}
	f.mu.Lock()
	f.manifest = m
	f.mu.Unlock()
	return err
}

func (f *FixtureTransport) loadManifest() (Manifest, error) {
	data, err := fs.ReadFile(f.fsys, f.manifestName)
	if err != nil {
		return nil, err
	}
	return ParseManifest(data)
}

// Entries returns the number of URIs in the manifest.
func (f *FixtureTransport) Entries() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.manifest)
}

// Lookup resolves the fixture name for (uri, method). The exact URI is
// tried first, then the URI with its query removed.
func (f *FixtureTransport) Lookup(uri, method string) (string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	methods, ok := f.manifest[uri]
	if !ok {
		if u, err := url.Parse(uri); err == nil && u.RawQuery != "" {
			u.RawQuery = ""
			methods, ok = f.manifest[u.String()]
		}
	}
	if !ok {
		return "", neterr.Wrap(neterr.BadRequest, fmt.Errorf("no fixture for %s", uri))
	}
	name, ok := methods[strings.ToUpper(method)]
	if !ok {
		return "", neterr.Wrap(neterr.BadRequest, fmt.Errorf("no %s fixture for %s", method, uri))
	}
	return name, nil
}

func (f *FixtureTransport) read(name string) ([]byte, error) {
	file := name
	if path.Ext(file) == "" {
		file += ".json"
	}
	data, err := fs.ReadFile(f.fsys, file)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, neterr.Wrap(neterr.BadRequest, fmt.Errorf("fixture file %s missing", file))
	}
	if err != nil {
		return nil, neterr.Wrap(neterr.InvalidResponse, err)
	}
	return data, nil
}

func (f *FixtureTransport) resolve(uri, method string) ([]byte, error) {
	name, err := f.Lookup(uri, method)
	if err != nil {
		return nil, err
	}
	return f.read(name)
}

// Perform answers req from the manifest with a 200 response.
func (f *FixtureTransport) Perform(ctx context.Context, req *http.Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, err := f.resolve(req.URL.String(), req.Method)
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	return &Response{StatusCode: http.StatusOK, Header: header, Body: body}, nil
}

// FetchBytes returns the GET fixture for uri.
func (f *FixtureTransport) FetchBytes(ctx context.Context, uri string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, neterr.Wrap(neterr.RequestFailed, err)
	}
	return f.resolve(uri, http.MethodGet)
}

// Open returns the GET fixture for uri as a stream.
func (f *FixtureTransport) Open(ctx context.Context, uri string) (*Stream, error) {
	data, err := f.FetchBytes(ctx, uri)
	if err != nil {
		return nil, err
	}
	return &Stream{ReadCloser: io.NopCloser(bytes.NewReader(data)), Length: int64(len(data))}, nil
}

// Download copies the GET fixture for uri into a temporary file.
func (f *FixtureTransport) Download(ctx context.Context, uri string) (string, error) {
	data, err := f.FetchBytes(ctx, uri)
	if err != nil {
		return "", err
	}
	p, err := spool(f.tempDir, bytes.NewReader(data))
	if err != nil {
		return "", neterr.Wrap(neterr.FileDownloadFailed, err)
	}
	return p, nil
}
