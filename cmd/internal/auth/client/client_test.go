package authclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"rsvp/cmd/identity"
	authapi "rsvp/cmd/internal/auth/api"
	"rsvp/cmd/internal/auth/session"
	"rsvp/cmd/security/password"

	"github.com/stretchr/testify/require"
)

type serverClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *serverClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *serverClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type liveServer struct {
	url       string
	clock     *serverClock
	rotations atomic.Int32
	meHits    atomic.Int32
	// holdRefresh, when set, is awaited by every refresh request.
	holdRefresh atomic.Pointer[chan struct{}]
}

func startServer(t *testing.T) *liveServer {
	t.Helper()
	ls := &liveServer{clock: &serverClock{now: time.Now().UTC().Truncate(time.Second)}}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	users := identity.NewMemoryStore()
	scfg := session.DefaultConfig()
	scfg.AccessSecret = []byte("0123456789abcdef0123456789abcdef")
	svc, err := session.NewService(scfg, session.NewMemoryStore(), authapi.NewDirectory(users), session.WithLogger(log))
	require.NoError(t, err)

	pcfg := password.DefaultConfig()
	pcfg.Params.MemoryKiB = 8 * 1024
	pcfg.Params.Iterations = 1
	pcfg.Params.Parallelism = 1

	acfg := authapi.DefaultConfig()
	acfg.CookieSecure = false
	h, err := authapi.NewHandler(log, acfg, svc, users, identity.NewPasswordsWithConfig(pcfg), authapi.WithClock(ls.clock.Now))
	require.NoError(t, err)

	mux := http.NewServeMux()
	h.Register(mux)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/refresh":
			ls.rotations.Add(1)
			if ch := ls.holdRefresh.Load(); ch != nil {
				<-*ch
			}
		case "/api/auth/me":
			ls.meHits.Add(1)
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	ls.url = srv.URL
	return ls
}

func TestClient_EndToEndRotation(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()

	c, err := New(srv.url)
	require.NoError(t, err)

	u, err := c.Register(ctx, "ana@example.com", "Ana", "correct-horse-battery")
	require.NoError(t, err)
	require.Equal(t, "ana@example.com", u.Email)
	s0 := c.Coordinator().Token()
	l0, ok := c.RefreshCookie()
	require.True(t, ok)

	me, err := c.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, u.ID, me.ID)
	require.Zero(t, srv.rotations.Load())

	srv.clock.Advance(15*time.Minute + time.Second)

	me, err = c.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, u.ID, me.ID)
	require.EqualValues(t, 1, srv.rotations.Load())

	s1 := c.Coordinator().Token()
	l1, ok := c.RefreshCookie()
	require.True(t, ok)
	require.NotEqual(t, s0, s1)
	require.NotEqual(t, l0, l1)

	// Replaying the consumed value from another client fails.
	thief, err := New(srv.url)
	require.NoError(t, err)
	thief.RestoreSession("", l0)
	_, err = thief.Me(ctx)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.Status)

	// The legitimate value still rotates.
	srv.clock.Advance(15*time.Minute + time.Second)
	_, err = c.Me(ctx)
	require.NoError(t, err)
	l2, _ := c.RefreshCookie()
	require.NotEqual(t, l1, l2)
	require.NotEqual(t, l0, l2)
}

func TestClient_ConcurrentExpiredRequestsRotateOnce(t *testing.T) {
	const n = 10
	srv := startServer(t)
	ctx := context.Background()

	c, err := New(srv.url)
	require.NoError(t, err)
	_, err = c.Register(ctx, "ben@example.com", "Ben", "correct-horse-battery")
	require.NoError(t, err)

	srv.clock.Advance(16 * time.Minute)
	hold := make(chan struct{})
	srv.holdRefresh.Store(&hold)
	srv.meHits.Store(0)

	go func() {
		for srv.meHits.Load() < n {
			time.Sleep(time.Millisecond)
		}
		close(hold)
	}()

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Me(ctx)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	require.EqualValues(t, 1, srv.rotations.Load())
	require.EqualValues(t, 2*n, srv.meHits.Load())
}

func TestClient_StolenValueUsedFirstEndsLegitimateSession(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()

	var ended atomic.Int32
	c, err := New(srv.url, WithSessionEnded(func(error) { ended.Add(1) }))
	require.NoError(t, err)
	_, err = c.Register(ctx, "cleo@example.com", "Cleo", "correct-horse-battery")
	require.NoError(t, err)
	stolen, _ := c.RefreshCookie()

	srv.clock.Advance(16 * time.Minute)

	thief, err := New(srv.url)
	require.NoError(t, err)
	thief.RestoreSession("", stolen)
	_, err = thief.Me(ctx)
	require.NoError(t, err)

	_, err = c.Me(ctx)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.Status)
	require.EqualValues(t, 1, ended.Load())
	require.Empty(t, c.Coordinator().Token())
}

func TestClient_LogoutIsFinal(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()

	c, err := New(srv.url)
	require.NoError(t, err)
	_, err = c.Register(ctx, "dan@example.com", "Dan", "correct-horse-battery")
	require.NoError(t, err)
	value, _ := c.RefreshCookie()

	require.NoError(t, c.Logout(ctx))
	_, ok := c.RefreshCookie()
	require.False(t, ok)

	_, err = c.Me(ctx)
	require.Error(t, err)
	require.Zero(t, srv.rotations.Load())

	other, err := New(srv.url)
	require.NoError(t, err)
	other.RestoreSession("", value)
	_, err = other.Me(ctx)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.Status)
}

func TestClient_RestoreSession(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()

	first, err := New(srv.url)
	require.NoError(t, err)
	_, err = first.Register(ctx, "eve@example.com", "Eve", "correct-horse-battery")
	require.NoError(t, err)
	value, _ := first.RefreshCookie()

	second, err := New(srv.url)
	require.NoError(t, err)
	second.RestoreSession(first.Coordinator().Token(), value)

	me, err := second.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, "eve@example.com", me.Email)
	require.Zero(t, srv.rotations.Load())
}

func TestClient_RefreshCookieReadableAfterLogin(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()

	for i, base := range []string{srv.url, srv.url + "/"} {
		c, err := New(base)
		require.NoError(t, err)
		require.Equal(t, "/api/auth/refresh", c.refreshURL().Path)

		email := fmt.Sprintf("cookie%d@example.com", i)
		_, err = c.Register(ctx, email, "Cookie", "correct-horse-battery")
		require.NoError(t, err)

		value, ok := c.RefreshCookie()
		require.True(t, ok, "base %q", base)
		require.NotEmpty(t, value)

		// A restored value is read back unchanged.
		restored, err := New(base)
		require.NoError(t, err)
		restored.RestoreSession("", value)
		got, ok := restored.RefreshCookie()
		require.True(t, ok)
		require.Equal(t, value, got)
	}
}

func TestClient_LoginErrors(t *testing.T) {
	srv := startServer(t)
	c, err := New(srv.url)
	require.NoError(t, err)

	_, err = c.Login(context.Background(), "nobody@example.com", "whatever-password")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusUnauthorized, apiErr.Status)
	require.Equal(t, "invalid_credentials", apiErr.Code)
}

func TestNew_RejectsBadURL(t *testing.T) {
	_, err := New("ftp://example.com")
	require.Error(t, err)
}
