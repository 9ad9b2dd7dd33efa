package transport

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basecamp/netkit/internal/neterr"
)

const pingManifest = `
https://api.example.com/v1/ping:
  GET: ping_ok
https://api.example.com/v1/files/report:
  get: report.csv
`

func pingFS() fstest.MapFS {
	return fstest.MapFS{
		DefaultManifest:  {Data: []byte(pingManifest)},
		"ping_ok.json":   {Data: []byte(`{"status":"ok"}`)},
		"report.csv":     {Data: []byte("a,b\n1,2\n")},
		"unused_ok.json": {Data: []byte(`{}`)},
	}
}

func requireKind(t *testing.T, err error, want neterr.Kind) {
	t.Helper()
	require.Error(t, err)
	kind, ok := neterr.KindOf(err)
	require.True(t, ok, "expected a classified error, got %v", err)
	assert.Equal(t, want, kind)
}

func TestFixturePerform(t *testing.T) {
	f := NewFixture(pingFS())

	req, err := http.NewRequest(http.MethodGet, "https://api.example.com/v1/ping", nil)
	require.NoError(t, err)

	resp, err := f.Perform(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, resp.OK())
	assert.JSONEq(t, `{"status":"ok"}`, string(resp.Body))
}

func TestFixtureMethodMissIsBadRequest(t *testing.T) {
	f := NewFixture(pingFS())

	req, err := http.NewRequest(http.MethodPost, "https://api.example.com/v1/ping", nil)
	require.NoError(t, err)

	_, err = f.Perform(context.Background(), req)
	requireKind(t, err, neterr.BadRequest)
}

func TestFixtureURIMissIsBadRequest(t *testing.T) {
	f := NewFixture(pingFS())

	_, err := f.Lookup("https://api.example.com/v1/other", "GET")
	requireKind(t, err, neterr.BadRequest)
}

func TestFixtureQueryFallback(t *testing.T) {
	f := NewFixture(pingFS())

	name, err := f.Lookup("https://api.example.com/v1/ping?verbose=1", "get")
	require.NoError(t, err)
	assert.Equal(t, "ping_ok", name)
}

func TestFixtureMissingFile(t *testing.T) {
	fsys := fstest.MapFS{
		DefaultManifest: {Data: []byte(`{"https://x.test/a": {"GET": "gone"}}`)},
	}
	f := NewFixture(fsys)

	_, err := f.FetchBytes(context.Background(), "https://x.test/a")
	requireKind(t, err, neterr.BadRequest)
}

func TestFixtureBadManifestYieldsEmptyMapping(t *testing.T) {
	f := NewFixture(fstest.MapFS{DefaultManifest: {Data: []byte("::: not yaml [")}})
	assert.Equal(t, 0, f.Entries())

	f = NewFixture(fstest.MapFS{})
	assert.Equal(t, 0, f.Entries())

	_, err := f.Lookup("https://api.example.com/v1/ping", "GET")
	requireKind(t, err, neterr.BadRequest)
}

func TestFixtureCustomManifestName(t *testing.T) {
	fsys := fstest.MapFS{
		"MockResponse.json": {Data: []byte(`{"https://x.test/a": {"GET": "a"}}`)},
		"a.json":            {Data: []byte(`[1,2,3]`)},
	}
	f := NewFixture(fsys, WithManifestName("MockResponse.json"))

	data, err := f.FetchBytes(context.Background(), "https://x.test/a")
	require.NoError(t, err)
	assert.Equal(t, "[1,2,3]", string(data))
}

func TestFixtureOpenAndDownload(t *testing.T) {
	f := NewFixture(pingFS(), WithTempDir(t.TempDir()))
	uri := "https://api.example.com/v1/files/report"

	s, err := f.Open(context.Background(), uri)
	require.NoError(t, err)
	assert.Equal(t, int64(8), s.Length)
	data, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(data))

	path, err := f.Download(context.Background(), uri)
	require.NoError(t, err)
	t.Cleanup(func() { os.Remove(path) })
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(got))
}

func TestFixtureCancelled(t *testing.T) {
	f := NewFixture(pingFS())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req, err := http.NewRequest(http.MethodGet, "https://api.example.com/v1/ping", nil)
	require.NoError(t, err)
	_, err = f.Perform(ctx, req)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFixtureWatchReloads(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, DefaultManifest)
	require.NoError(t, os.WriteFile(manifest, []byte(`{}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte(`{"n":1}`), 0o644))

	f := NewFixtureDir(dir)
	assert.Equal(t, 0, f.Entries())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan error, 8)
	done := make(chan error, 1)
	go func() {
		done <- f.Watch(ctx, func(err error) {
			select {
			case reloaded <- err:
			default:
			}
		})
	}()

	// Give the watcher a moment to register the directory.
	require.Eventually(t, func() bool {
		_ = os.WriteFile(manifest, []byte(`{"https://x.test/a": {"GET": "a"}}`), 0o644)
		select {
		case err := <-reloaded:
			return err == nil && f.Entries() == 1
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)

	data, err := f.FetchBytes(context.Background(), "https://x.test/a")
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, string(data))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestFixtureWatchRequiresDirectory(t *testing.T) {
	f := NewFixture(pingFS())
	assert.ErrorIs(t, f.Watch(context.Background(), nil), ErrNotWatchable)
}
