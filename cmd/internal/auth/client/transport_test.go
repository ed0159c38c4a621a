package authclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeAPI accepts exactly one bearer token on /protected.
type fakeAPI struct {
	valid    atomic.Value // string
	hits     atomic.Int32
	rejected atomic.Int32
	bodies   chan string

	onReject func(n int32)
}

func newFakeAPI(t *testing.T, valid string) (*fakeAPI, *httptest.Server) {
	t.Helper()
	f := &fakeAPI{bodies: make(chan string, 64)}
	f.valid.Store(valid)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		if r.Body != nil {
			b, _ := io.ReadAll(r.Body)
			if len(b) > 0 {
				f.bodies <- string(b)
			}
		}
		if r.Header.Get("Authorization") != "Bearer "+f.valid.Load().(string) {
			n := f.rejected.Add(1)
			if f.onReject != nil {
				f.onReject(n)
			}
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":{"code":"unauthorized","message":"authentication required"}}`)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok")
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func newTransportClient(c *Coordinator) *http.Client {
	return &http.Client{Transport: &Transport{Coordinator: c}}
}

func get(t *testing.T, hc *http.Client, ctx context.Context, url string) (int, string) {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := hc.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(b)
}

func TestTransport_ConcurrentUnauthorizedShareOneRotation(t *testing.T) {
	const n = 10
	api, srv := newFakeAPI(t, "S1")

	release := make(chan struct{})
	var once sync.Once
	api.onReject = func(got int32) {
		if got == n {
			once.Do(func() { close(release) })
		}
	}

	var rotations atomic.Int32
	c := NewCoordinator(RefresherFunc(func(context.Context) (string, error) {
		rotations.Add(1)
		<-release
		return "S1", nil
	}))
	c.SetToken("S0")
	hc := newTransportClient(c)

	var wg sync.WaitGroup
	statuses := make([]int, n)
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := hc.Get(srv.URL + "/protected")
			if err != nil {
				errs[i] = err
				return
			}
			_ = resp.Body.Close()
			statuses[i] = resp.StatusCode
		}(i)
	}
	wg.Wait()

	require.EqualValues(t, 1, rotations.Load())
	for i := range n {
		require.NoError(t, errs[i])
		require.Equal(t, http.StatusOK, statuses[i], "request %d", i)
	}
	require.EqualValues(t, 2*n, api.hits.Load())
	require.Equal(t, "S1", c.Token())
}

func TestTransport_RetriesAtMostOnce(t *testing.T) {
	api, srv := newFakeAPI(t, "never-issued")

	var rotations atomic.Int32
	c := NewCoordinator(RefresherFunc(func(context.Context) (string, error) {
		rotations.Add(1)
		return "S-new", nil
	}))
	c.SetToken("S0")

	status, _ := get(t, newTransportClient(c), context.Background(), srv.URL+"/protected")
	require.Equal(t, http.StatusUnauthorized, status)
	require.EqualValues(t, 2, api.hits.Load())
	require.EqualValues(t, 1, rotations.Load())
}

func TestTransport_RotationFailureSurfacesOriginalResponse(t *testing.T) {
	api, srv := newFakeAPI(t, "S1")

	var ended atomic.Bool
	c := NewCoordinator(
		RefresherFunc(func(context.Context) (string, error) { return "", ErrRefreshRejected }),
		WithOnSessionEnded(func(error) { ended.Store(true) }),
	)
	c.SetToken("S0")

	status, body := get(t, newTransportClient(c), context.Background(), srv.URL+"/protected")
	require.Equal(t, http.StatusUnauthorized, status)
	require.Contains(t, body, `"unauthorized"`)
	require.EqualValues(t, 1, api.hits.Load())
	require.True(t, ended.Load())
	require.Empty(t, c.Token())
}

// onceReader hides the concrete reader type so NewRequest cannot set GetBody.
type onceReader struct{ io.Reader }

func TestTransport_ReplaysRequestBody(t *testing.T) {
	api, srv := newFakeAPI(t, "S1")
	c := NewCoordinator(RefresherFunc(func(context.Context) (string, error) { return "S1", nil }))
	c.SetToken("S0")

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/protected", onceReader{strings.NewReader(`{"guest":"ana"}`)})
	require.NoError(t, err)
	require.Nil(t, req.GetBody)

	resp, err := newTransportClient(c).Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, api.bodies, 2)
	require.Equal(t, `{"guest":"ana"}`, <-api.bodies)
	require.Equal(t, `{"guest":"ana"}`, <-api.bodies)
}

func TestTransport_PassesThroughOtherResponses(t *testing.T) {
	var auth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	c := NewCoordinator(RefresherFunc(func(context.Context) (string, error) {
		return "", errors.New("must not rotate")
	}))
	c.SetToken("S0")

	status, _ := get(t, newTransportClient(c), context.Background(), srv.URL)
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "Bearer S0", auth.Load())
	require.Equal(t, "S0", c.Token())
}

func TestTransport_RetriedContextSkipsRefresh(t *testing.T) {
	api, srv := newFakeAPI(t, "S1")
	var rotations atomic.Int32
	c := NewCoordinator(RefresherFunc(func(context.Context) (string, error) {
		rotations.Add(1)
		return "S1", nil
	}))
	c.SetToken("S0")

	status, _ := get(t, newTransportClient(c), WithRetried(context.Background()), srv.URL+"/protected")
	require.Equal(t, http.StatusUnauthorized, status)
	require.Zero(t, rotations.Load())
	require.EqualValues(t, 1, api.hits.Load())
}
