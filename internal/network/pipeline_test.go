package network

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basecamp/netkit/internal/credentials"
	"github.com/basecamp/netkit/internal/download"
	"github.com/basecamp/netkit/internal/neterr"
	"github.com/basecamp/netkit/internal/request"
	"github.com/basecamp/netkit/internal/transport"
)

type stubTransport struct {
	mu       sync.Mutex
	requests []*http.Request
	bodies   [][]byte
	respond  func(n int, req *http.Request) (*transport.Response, error)
}

func (s *stubTransport) Perform(_ context.Context, req *http.Request) (*transport.Response, error) {
	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
	}
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.bodies = append(s.bodies, body)
	n := len(s.requests)
	s.mu.Unlock()
	return s.respond(n, req)
}

func (s *stubTransport) Download(context.Context, string) (string, error) {
	return "", neterr.New(neterr.FileDownloadFailed)
}

func (s *stubTransport) FetchBytes(context.Context, string) ([]byte, error) {
	return nil, neterr.New(neterr.RequestFailed)
}

func (s *stubTransport) Open(context.Context, string) (*transport.Stream, error) {
	return nil, neterr.New(neterr.RequestFailed)
}

func (s *stubTransport) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *stubTransport) request(i int) *http.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[i]
}

func status(code int, body string) func(int, *http.Request) (*transport.Response, error) {
	return func(int, *http.Request) (*transport.Response, error) {
		return &transport.Response{StatusCode: code, Header: http.Header{}, Body: []byte(body)}, nil
	}
}

type item struct {
	ID   int    `json:"id" validate:"required"`
	Name string `json:"name"`
}

type optional struct {
	Note string `json:"note,omitempty"`
}

var apiDescriptor = request.Descriptor{
	Scheme:              "https",
	Host:                "api.example.com",
	Path:                "/v1/items",
	AccessTokenKey:      "api",
	RequiresAccessToken: true,
}

func newTestClient(t *testing.T, tr transport.Transport, opts ...Option) (*Client, *credentials.Store) {
	t.Helper()
	store := credentials.New(nil)
	return New(tr, store, opts...), store
}

func requireKind(t *testing.T, err error, want neterr.Kind) {
	t.Helper()
	require.Error(t, err)
	kind, ok := neterr.KindOf(err)
	require.True(t, ok, "expected a classified error, got %v", err)
	assert.Equal(t, want, kind, "got %v", err)
}

func TestRequestDecodesSuccess(t *testing.T) {
	tr := &stubTransport{respond: status(200, `{"id":7,"name":"seven"}`)}
	c, store := newTestClient(t, tr)
	require.NoError(t, store.Set(credentials.Access, "api", "tok"))

	res := Request[item](context.Background(), c, apiDescriptor)
	v, err := res.Get()
	require.NoError(t, err)
	assert.Equal(t, item{ID: 7, Name: "seven"}, v)

	req := tr.request(0)
	assert.Equal(t, "Bearer tok", req.Header.Get("Authorization"))
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.NotEmpty(t, req.Header.Get("X-Request-ID"))
	assert.Contains(t, req.Header.Get("User-Agent"), "netkit/")
}

func TestRequestRetryBound(t *testing.T) {
	tr := &stubTransport{respond: status(401, "")}
	var refreshes atomic.Int32
	c, store := newTestClient(t, tr, WithRefresher(Strong(RefresherFunc(func(context.Context) bool {
		refreshes.Add(1)
		return true
	}))))
	require.NoError(t, store.Set(credentials.Access, "api", "tok"))

	res := Request[item](context.Background(), c, apiDescriptor)

	requireKind(t, res.Err(), neterr.UnAuthorized)
	assert.Equal(t, 2, tr.count(), "one retry after refresh, never more")
	assert.Equal(t, int32(1), refreshes.Load())
}

func TestRequestRetriesWithRefreshedToken(t *testing.T) {
	tr := &stubTransport{respond: func(n int, req *http.Request) (*transport.Response, error) {
		if req.Header.Get("Authorization") != "Bearer fresh" {
			return &transport.Response{StatusCode: 401}, nil
		}
		return &transport.Response{StatusCode: 200, Body: []byte(`{"id":1}`)}, nil
	}}
	c, store := newTestClient(t, tr)
	require.NoError(t, store.Set(credentials.Access, "api", "stale"))
	c.SetRefresher(Strong(RefresherFunc(func(context.Context) bool {
		return store.Set(credentials.Access, "api", "fresh") == nil
	})))

	res := Request[item](context.Background(), c, apiDescriptor)
	require.True(t, res.IsSuccess(), "unexpected error: %v", res.Err())
	assert.Equal(t, 1, res.Value().ID)
	assert.Equal(t, 2, tr.count())
	assert.NotEqual(t, tr.request(0).Header.Get("X-Request-ID"), tr.request(1).Header.Get("X-Request-ID"))
}

func TestRequestUnauthorizedWithoutRefresher(t *testing.T) {
	tr := &stubTransport{respond: status(401, "")}
	c, store := newTestClient(t, tr)
	require.NoError(t, store.Set(credentials.Access, "api", "tok"))

	res := Request[item](context.Background(), c, apiDescriptor)
	requireKind(t, res.Err(), neterr.UnAuthorized)
	assert.Equal(t, 1, tr.count())
}

func TestRequestUnauthorizedWhenRefreshFails(t *testing.T) {
	tr := &stubTransport{respond: status(401, "")}
	c, store := newTestClient(t, tr, WithRefresher(Strong(RefresherFunc(func(context.Context) bool { return false }))))
	require.NoError(t, store.Set(credentials.Access, "api", "tok"))

	res := Request[item](context.Background(), c, apiDescriptor)
	requireKind(t, res.Err(), neterr.UnAuthorized)
	assert.Equal(t, 1, tr.count())
}

func TestRequestPreemptiveRefresh(t *testing.T) {
	var order []string
	tr := &stubTransport{respond: func(int, *http.Request) (*transport.Response, error) {
		order = append(order, "dispatch")
		return &transport.Response{StatusCode: 200, Body: []byte(`{"id":3}`)}, nil
	}}
	c, store := newTestClient(t, tr)
	require.NoError(t, store.Set(credentials.Access, "api", "old"))
	c.SetRefresher(Strong(RefresherFunc(func(context.Context) bool {
		order = append(order, "refresh")
		return store.Set(credentials.Access, "api", "new") == nil
	})))

	d := apiDescriptor
	d.TokenIsExpired = true
	res := Request[item](context.Background(), c, d)

	require.True(t, res.IsSuccess(), "unexpected error: %v", res.Err())
	assert.Equal(t, []string{"refresh", "dispatch"}, order)
	assert.Equal(t, "Bearer new", tr.request(0).Header.Get("Authorization"))
}

func TestRequestPreemptiveRefreshFailureStillSendsCurrentToken(t *testing.T) {
	tr := &stubTransport{respond: status(200, `{"id":3}`)}
	c, store := newTestClient(t, tr, WithRefresher(Strong(RefresherFunc(func(context.Context) bool { return false }))))
	require.NoError(t, store.Set(credentials.Access, "api", "old"))

	d := apiDescriptor
	d.TokenIsExpired = true
	res := Request[item](context.Background(), c, d)

	require.True(t, res.IsSuccess())
	assert.Equal(t, "Bearer old", tr.request(0).Header.Get("Authorization"))
}

func TestRequestMissingTokenNeverDispatches(t *testing.T) {
	tr := &stubTransport{respond: status(200, `{"id":1}`)}
	var refreshed bool
	c, _ := newTestClient(t, tr, WithRefresher(Strong(RefresherFunc(func(context.Context) bool {
		refreshed = true
		return true
	}))))

	res := Request[item](context.Background(), c, apiDescriptor)

	requireKind(t, res.Err(), neterr.InvalidRequest)
	assert.ErrorIs(t, res.Err(), ErrNoToken)
	assert.Equal(t, 0, tr.count())
	assert.False(t, refreshed)
}

func TestRequestWithoutTokenRequirement(t *testing.T) {
	tr := &stubTransport{respond: status(200, `{"id":1}`)}
	c, _ := newTestClient(t, tr)

	d := apiDescriptor
	d.RequiresAccessToken = false
	res := Request[item](context.Background(), c, d)

	require.True(t, res.IsSuccess())
	assert.Empty(t, tr.request(0).Header.Get("Authorization"))
}

func TestRequestCustomTokenHeader(t *testing.T) {
	tr := &stubTransport{respond: status(200, `{"id":1}`)}
	c, store := newTestClient(t, tr)
	require.NoError(t, store.Set(credentials.Access, "api", "raw-token"))

	d := apiDescriptor
	d.TokenHeader = "X-Access-Token"
	require.True(t, Request[item](context.Background(), c, d).IsSuccess())

	req := tr.request(0)
	assert.Equal(t, "raw-token", req.Header.Get("X-Access-Token"))
	assert.Empty(t, req.Header.Get("Authorization"))
}

func TestRequestBodyOnlyForWritingMethods(t *testing.T) {
	tr := &stubTransport{respond: status(200, `{"id":1}`)}
	c, store := newTestClient(t, tr)
	require.NoError(t, store.Set(credentials.Access, "api", "tok"))

	payload := map[string]string{"name": "x"}
	for _, m := range []request.Method{request.GET, request.DELETE, request.POST, request.PUT, request.PATCH} {
		res := Request[item](context.Background(), c, apiDescriptor, WithMethod(m), WithBody(payload))
		require.True(t, res.IsSuccess(), "method %s: %v", m, res.Err())
	}

	require.Equal(t, 5, tr.count())
	assert.Empty(t, tr.bodies[0], "GET must not carry a body")
	assert.Empty(t, tr.bodies[1], "DELETE must not carry a body")
	for i := 2; i < 5; i++ {
		assert.JSONEq(t, `{"name":"x"}`, string(tr.bodies[i]), "method %s", tr.request(i).Method)
	}
}

func TestRequestPathAndQuery(t *testing.T) {
	tr := &stubTransport{respond: status(200, `{"id":1}`)}
	c, store := newTestClient(t, tr)
	require.NoError(t, store.Set(credentials.Access, "api", "tok"))

	res := Request[item](context.Background(), c, apiDescriptor,
		WithPath("42", "comments"),
		WithQuery(url.Values{"page": {"2"}}),
		WithHeader("X-Trace", "abc"))
	require.True(t, res.IsSuccess())

	req := tr.request(0)
	assert.Equal(t, "https://api.example.com/v1/items/42/comments?page=2", req.URL.String())
	assert.Equal(t, "abc", req.Header.Get("X-Trace"))
}

func TestRequestUnencodableBody(t *testing.T) {
	tr := &stubTransport{respond: status(200, `{}`)}
	c, store := newTestClient(t, tr)
	require.NoError(t, store.Set(credentials.Access, "api", "tok"))

	res := Request[item](context.Background(), c, apiDescriptor, WithMethod(request.POST), WithBody(make(chan int)))
	requireKind(t, res.Err(), neterr.InvalidRequest)
	assert.Equal(t, 0, tr.count())
}

func TestRequestBadDescriptor(t *testing.T) {
	tr := &stubTransport{respond: status(200, `{}`)}
	c, _ := newTestClient(t, tr)

	res := Request[item](context.Background(), c, request.Descriptor{Path: "/x"})
	requireKind(t, res.Err(), neterr.InvalidRequest)
	assert.Equal(t, 0, tr.count())
}

func TestRequestClassifiesStatus(t *testing.T) {
	tests := []struct {
		code int
		want neterr.Kind
	}{
		{301, neterr.MovedPermanently},
		{403, neterr.Forbidden},
		{404, neterr.NotFound},
		{418, neterr.ClientError},
		{500, neterr.ServerInternalError},
		{503, neterr.ServiceUnavailable},
		{502, neterr.ServerError},
	}

	for _, tt := range tests {
		tr := &stubTransport{respond: status(tt.code, `{"error":"x"}`)}
		c, store := newTestClient(t, tr)
		require.NoError(t, store.Set(credentials.Access, "api", "tok"))

		res := Request[item](context.Background(), c, apiDescriptor)
		requireKind(t, res.Err(), tt.want)
		assert.Equal(t, tt.code, res.Err().StatusCode)
	}
}

func TestRequestClassifiesTransportFailure(t *testing.T) {
	tr := &stubTransport{respond: func(int, *http.Request) (*transport.Response, error) {
		return nil, &url.Error{Op: "Get", URL: "https://api.example.com", Err: context.DeadlineExceeded}
	}}
	c, store := newTestClient(t, tr)
	require.NoError(t, store.Set(credentials.Access, "api", "tok"))

	res := Request[item](context.Background(), c, apiDescriptor)
	requireKind(t, res.Err(), neterr.RequestTimeOut)

	tr.respond = func(int, *http.Request) (*transport.Response, error) {
		return nil, errors.New("mystery")
	}
	res = Request[item](context.Background(), c, apiDescriptor)
	requireKind(t, res.Err(), neterr.InvalidResponse)

	tr.respond = func(int, *http.Request) (*transport.Response, error) {
		return nil, &url.Error{Op: "Get", URL: "https://api.example.com", Err: context.Canceled}
	}
	res = Request[item](context.Background(), c, apiDescriptor)
	requireKind(t, res.Err(), neterr.InvalidResponse)
	assert.ErrorIs(t, res.Err(), context.Canceled)
}

func TestRequestEmptyBodyFallback(t *testing.T) {
	tr := &stubTransport{respond: status(204, "")}
	c, store := newTestClient(t, tr)
	require.NoError(t, store.Set(credentials.Access, "api", "tok"))

	res := Request[optional](context.Background(), c, apiDescriptor)
	require.True(t, res.IsSuccess(), "all-optional types accept an empty body: %v", res.Err())
	assert.Equal(t, optional{}, res.Value())

	raw := Request[json.RawMessage](context.Background(), c, apiDescriptor)
	require.True(t, raw.IsSuccess())
	assert.JSONEq(t, `{}`, string(raw.Value()))

	strict := Request[item](context.Background(), c, apiDescriptor)
	requireKind(t, strict.Err(), neterr.InvalidResponse)
}

func TestRequestMalformedBody(t *testing.T) {
	tr := &stubTransport{respond: status(200, `{"id": "not a number"`)}
	c, store := newTestClient(t, tr)
	require.NoError(t, store.Set(credentials.Access, "api", "tok"))

	res := Request[[]item](context.Background(), c, apiDescriptor)
	requireKind(t, res.Err(), neterr.InvalidResponse)
}

type weakRefresher struct {
	calls atomic.Int32
	_     [64]byte
}

func (w *weakRefresher) Refresh(context.Context) bool {
	w.calls.Add(1)
	return true
}

func TestWeakRefresherTolerated(t *testing.T) {
	tr := &stubTransport{respond: status(401, "")}
	c, store := newTestClient(t, tr)
	require.NoError(t, store.Set(credentials.Access, "api", "tok"))

	alive := &weakRefresher{}
	c.SetRefresher(Weak(alive))
	require.NotNil(t, c.currentRefresher())

	res := Request[item](context.Background(), c, apiDescriptor)
	requireKind(t, res.Err(), neterr.UnAuthorized)
	assert.Equal(t, int32(1), alive.calls.Load())
	runtime.KeepAlive(alive)

	func() {
		c.SetRefresher(Weak(&weakRefresher{}))
	}()
	require.Eventually(t, func() bool {
		runtime.GC()
		return c.currentRefresher() == nil
	}, 2*time.Second, 10*time.Millisecond)

	before := tr.count()
	res = Request[item](context.Background(), c, apiDescriptor)
	requireKind(t, res.Err(), neterr.UnAuthorized)
	assert.Equal(t, before+1, tr.count(), "collected refresher means no retry")
}

func TestSetRefresherNilDetaches(t *testing.T) {
	c, _ := newTestClient(t, &stubTransport{respond: status(200, "{}")})
	c.SetRefresher(Strong(RefresherFunc(func(context.Context) bool { return true })))
	require.NotNil(t, c.currentRefresher())

	c.SetRefresher(nil)
	assert.Nil(t, c.currentRefresher())
}

func TestConcurrentExpiredRefreshesCoalesce(t *testing.T) {
	tr := &stubTransport{respond: status(200, `{"id":1}`)}
	c, store := newTestClient(t, tr)
	require.NoError(t, store.Set(credentials.Access, "api", "tok"))

	var calls atomic.Int32
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	c.SetRefresher(Strong(RefresherFunc(func(context.Context) bool {
		calls.Add(1)
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
		return true
	})))

	d := apiDescriptor
	d.TokenIsExpired = true

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			Request[item](context.Background(), c, d)
		}()
	}

	<-entered
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 5, tr.count())
}

func TestSharedRefreshSurvivesOneCallerCancelling(t *testing.T) {
	tr := &stubTransport{respond: status(200, `{"id":1}`)}
	c, _ := newTestClient(t, tr)

	var calls atomic.Int32
	entered := make(chan struct{})
	release := make(chan struct{})
	c.SetRefresher(Strong(RefresherFunc(func(ctx context.Context) bool {
		if calls.Add(1) == 1 {
			close(entered)
		}
		select {
		case <-release:
			return true
		case <-ctx.Done():
			return false
		}
	})))

	ctxA, cancelA := context.WithCancel(context.Background())
	resultA := make(chan bool, 1)
	go func() { resultA <- c.refresh(ctxA, "api", "expired") }()
	<-entered

	resultB := make(chan bool, 1)
	go func() { resultB <- c.refresh(context.Background(), "api", "expired") }()
	time.Sleep(50 * time.Millisecond)

	cancelA()
	select {
	case ok := <-resultA:
		assert.False(t, ok, "cancelled caller stops waiting")
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled caller still waiting")
	}

	close(release)
	select {
	case ok := <-resultB:
		assert.True(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("refresh never completed")
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestConcurrentRefreshesWithoutCoalescing(t *testing.T) {
	tr := &stubTransport{respond: status(200, `{"id":1}`)}
	c, store := newTestClient(t, tr, WithoutRefreshCoalescing())
	require.NoError(t, store.Set(credentials.Access, "api", "tok"))

	var calls atomic.Int32
	c.SetRefresher(Strong(RefresherFunc(func(context.Context) bool {
		calls.Add(1)
		return true
	})))

	d := apiDescriptor
	d.TokenIsExpired = true

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			Request[item](context.Background(), c, d)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(5), calls.Load())
}

type recordingHooks struct {
	mu       sync.Mutex
	starts   []RequestInfo
	ends     []RequestResult
	refresh  []RefreshInfo
	ctxValue any
}

type ctxKey struct{}

func (h *recordingHooks) OnRequestStart(ctx context.Context, info RequestInfo) context.Context {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.starts = append(h.starts, info)
	return context.WithValue(ctx, ctxKey{}, info.RequestID)
}

func (h *recordingHooks) OnRequestEnd(ctx context.Context, _ RequestInfo, result RequestResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ends = append(h.ends, result)
	h.ctxValue = ctx.Value(ctxKey{})
}

func (h *recordingHooks) OnRefresh(_ context.Context, info RefreshInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.refresh = append(h.refresh, info)
}

func TestHooksObserveRetry(t *testing.T) {
	tr := &stubTransport{respond: func(n int, _ *http.Request) (*transport.Response, error) {
		if n == 1 {
			return &transport.Response{StatusCode: 401}, nil
		}
		return &transport.Response{StatusCode: 200, Body: []byte(`{"id":1}`)}, nil
	}}
	hooks := &recordingHooks{}
	c, store := newTestClient(t, tr,
		WithHooks(ChainHooks(nil, hooks)),
		WithRefresher(Strong(RefresherFunc(func(context.Context) bool { return true }))))
	require.NoError(t, store.Set(credentials.Access, "api", "tok"))

	require.True(t, Request[item](context.Background(), c, apiDescriptor).IsSuccess())

	require.Len(t, hooks.starts, 2)
	assert.Equal(t, 1, hooks.starts[0].Attempt)
	assert.Equal(t, 2, hooks.starts[1].Attempt)
	assert.Equal(t, "GET", hooks.starts[0].Method)
	assert.Equal(t, []int{401, 200}, []int{hooks.ends[0].StatusCode, hooks.ends[1].StatusCode})
	assert.Equal(t, hooks.starts[1].RequestID, hooks.ctxValue, "end hook sees the context returned by start")

	require.Len(t, hooks.refresh, 1)
	assert.Equal(t, "api", hooks.refresh[0].Key)
	assert.Equal(t, "unauthorized", hooks.refresh[0].Reason)
	assert.True(t, hooks.refresh[0].Succeeded)
}

type pingResponse struct {
	Status string `json:"status" validate:"required"`
}

func pingFixtures() *transport.FixtureTransport {
	return transport.NewFixture(fstest.MapFS{
		transport.DefaultManifest: {Data: []byte(`{"https://api.example.com/v1/ping": {"GET": "ping_ok"}}`)},
		"ping_ok.json":            {Data: []byte(`{"status":"ok"}`)},
	})
}

func TestFixturePing(t *testing.T) {
	c, _ := newTestClient(t, pingFixtures())

	res := Get[pingResponse](context.Background(), c, "https://api.example.com/v1/ping", nil)
	v, err := res.Get()
	require.NoError(t, err)
	assert.Equal(t, pingResponse{Status: "ok"}, v)

	d, err := request.Parse("https://api.example.com/v1/ping")
	require.NoError(t, err)

	post := Request[pingResponse](context.Background(), c, d, WithMethod(request.POST))
	requireKind(t, post.Err(), neterr.BadRequest)

	get := Request[pingResponse](context.Background(), c, d)
	require.True(t, get.IsSuccess(), "unexpected error: %v", get.Err())
	assert.Equal(t, "ok", get.Value().Status)
}

func TestGetFailures(t *testing.T) {
	tr := &stubTransport{respond: status(500, "")}
	c, _ := newTestClient(t, tr)

	res := Get[pingResponse](context.Background(), c, "https://api.example.com/x", nil)
	requireKind(t, res.Err(), neterr.RequestFailed)
	assert.Equal(t, 500, res.Err().StatusCode)

	tr.respond = status(200, "not json")
	res = Get[pingResponse](context.Background(), c, "https://api.example.com/x", http.Header{"Accept": {"application/json"}})
	requireKind(t, res.Err(), neterr.ResponseDecodingFailed)

	tr.respond = status(200, "")
	res = Get[pingResponse](context.Background(), c, "https://api.example.com/x", nil)
	requireKind(t, res.Err(), neterr.ResponseDecodingFailed)

	tr.respond = func(int, *http.Request) (*transport.Response, error) {
		return nil, context.DeadlineExceeded
	}
	res = Get[pingResponse](context.Background(), c, "https://api.example.com/x", nil)
	requireKind(t, res.Err(), neterr.RequestTimeOut)

	res = Get[pingResponse](context.Background(), c, "://bad", nil)
	requireKind(t, res.Err(), neterr.URLCreationFailed)
}

func TestFetchBytesAndDownload(t *testing.T) {
	fixtures := transport.NewFixture(fstest.MapFS{
		transport.DefaultManifest: {Data: []byte(`{"https://cdn.example.com/files/logo.png": {"GET": "logo.png"}}`)},
		"logo.png":                {Data: []byte("PNGDATA")},
	}, transport.WithTempDir(t.TempDir()))
	dir := t.TempDir()
	c, _ := newTestClient(t, fixtures, WithSink(download.NewSink(dir)))
	uri := "https://cdn.example.com/files/logo.png"

	data := c.FetchBytes(context.Background(), uri)
	require.True(t, data.IsSuccess())
	assert.Equal(t, []byte("PNGDATA"), data.Value())

	path := c.Download(context.Background(), uri)
	require.True(t, path.IsSuccess(), "unexpected error: %v", path.Err())
	assert.Equal(t, dir+"/logo.png", path.Value())

	var fractions []float64
	path = c.DownloadWithProgress(context.Background(), uri, download.ProgressFunc(func(f float64) {
		fractions = append(fractions, f)
	}))
	require.True(t, path.IsSuccess())
	require.NotEmpty(t, fractions)
	assert.Equal(t, 1.0, fractions[len(fractions)-1])

	missing := c.Download(context.Background(), "https://cdn.example.com/files/none.png")
	requireKind(t, missing.Err(), neterr.BadRequest)
}
