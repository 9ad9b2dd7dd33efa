package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basecamp/netkit/internal/neterr"
)

func TestHTTPPerform(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":7}`)
	}))
	defer srv.Close()

	tr := NewHTTP(HTTPOptions{UserAgent: "netkit-test/1"})
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/items", nil)
	require.NoError(t, err)

	resp, err := tr.Perform(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.JSONEq(t, `{"id":7}`, string(resp.Body))
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "netkit-test/1", gotUA)
}

func TestHTTPPerformReturnsErrorStatusAsResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	tr := NewHTTP(HTTPOptions{})
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := tr.Perform(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.False(t, resp.OK())
}

func TestHTTPFetchBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte{0x01, 0x02, 0x03})
	}))
	defer srv.Close()

	tr := NewHTTP(HTTPOptions{})

	data, err := tr.FetchBytes(context.Background(), srv.URL+"/blob")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, data)

	_, err = tr.FetchBytes(context.Background(), srv.URL+"/missing")
	requireKind(t, err, neterr.RequestFailed)
	var ne *neterr.Error
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, http.StatusNotFound, ne.StatusCode)
}

func TestHTTPDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "file contents")
	}))
	defer srv.Close()

	tr := NewHTTP(HTTPOptions{TempDir: t.TempDir()})
	path, err := tr.Download(context.Background(), srv.URL+"/f.txt")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "file contents", string(data))
}

func TestHTTPRequestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	tr := NewHTTP(HTTPOptions{RequestTimeout: 50 * time.Millisecond})

	_, err := tr.FetchBytes(context.Background(), srv.URL)
	requireKind(t, err, neterr.RequestTimeOut)
}

func TestHTTPConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	tr := NewHTTP(HTTPOptions{})
	_, err := tr.FetchBytes(context.Background(), url)
	requireKind(t, err, neterr.RequestFailed)

	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	_, err = tr.Perform(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, neterr.CodeCannotConnectToHost, neterr.CodeOf(err))
}

func TestHTTPOpenBadURL(t *testing.T) {
	tr := NewHTTP(HTTPOptions{})
	_, err := tr.Open(context.Background(), "http://bad host/")
	requireKind(t, err, neterr.URLCreationFailed)
}

func TestNewHTTPDefaults(t *testing.T) {
	tr := NewHTTP(HTTPOptions{})
	assert.Equal(t, DefaultResourceTimeout, tr.client.Timeout)
	base, ok := tr.client.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, DefaultRequestTimeout, base.ResponseHeaderTimeout)
	assert.Equal(t, DefaultRequestTimeout, base.TLSHandshakeTimeout)
	assert.Contains(t, tr.userAgent, "netkit/")
}
