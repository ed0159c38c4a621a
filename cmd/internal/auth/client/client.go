package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

// RefreshCookieName is the cookie the server stores the long-lived value in.
const RefreshCookieName = "refreshToken"

// Client talks to the auth API and transparently refreshes expired access
// tokens for requests sent through Do.
type Client struct {
	base  *url.URL
	jar   *cookiejar.Jar
	plain *http.Client
	authd *http.Client
	coord *Coordinator
}

type options struct {
	transport http.RoundTripper
	timeout   time.Duration
	onEnded   func(error)
	log       *slog.Logger
}

// Option configures a Client.
type Option func(*options)

// WithTransport sets the underlying round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// WithTimeout bounds every HTTP call, including rotations.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithSessionEnded is called when a refresh fails and the user must log in again.
func WithSessionEnded(fn func(error)) Option {
	return func(o *options) { o.onEnded = fn }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("authclient: base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("authclient: unsupported scheme %q", u.Scheme)
	}

	o := options{transport: http.DefaultTransport, timeout: 30 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	c := &Client{base: u, jar: jar}
	c.plain = &http.Client{Transport: o.transport, Jar: jar, Timeout: o.timeout}
	c.coord = NewCoordinator(
		NewHTTPRefresher(u.String(), c.plain),
		WithOnSessionEnded(o.onEnded),
		WithCoordinatorLogger(o.log),
	)
	c.authd = &http.Client{
		Transport: &Transport{Base: o.transport, Coordinator: c.coord},
		Jar:       jar,
		Timeout:   o.timeout,
	}
	return c, nil
}

// Coordinator exposes the session state.
func (c *Client) Coordinator() *Coordinator { return c.coord }

func (c *Client) Register(ctx context.Context, email, name, password string) (User, error) {
	return c.authenticate(ctx, "/api/auth/register", map[string]string{
		"email": email, "name": name, "password": password,
	})
}

func (c *Client) Login(ctx context.Context, email, password string) (User, error) {
	return c.authenticate(ctx, "/api/auth/login", map[string]string{
		"email": email, "password": password,
	})
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (User, error) {
	resp, err := c.send(ctx, c.plain, http.MethodPost, path, body)
	if err != nil {
		return User{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return User{}, decodeAPIError(resp)
	}

	var out TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return User{}, fmt.Errorf("authclient: decode: %w", err)
	}
	if out.AccessToken == "" || out.User == nil {
		return User{}, errors.New("authclient: incomplete token response")
	}
	c.coord.SetToken(out.AccessToken)
	return *out.User, nil
}

// Logout revokes the long-lived credential and forgets local state.
func (c *Client) Logout(ctx context.Context) error {
	resp, err := c.send(ctx, c.plain, http.MethodPost, "/api/auth/logout", nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusNoContent {
		return decodeAPIError(resp)
	}
	c.coord.Clear()
	return nil
}

func (c *Client) Me(ctx context.Context) (User, error) {
	resp, err := c.send(ctx, c.authd, http.MethodGet, "/api/auth/me", nil)
	if err != nil {
		return User{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return User{}, decodeAPIError(resp)
	}
	var out struct {
		User User `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return User{}, fmt.Errorf("authclient: decode: %w", err)
	}
	return out.User, nil
}

// Do sends req with the access token attached and the refresh-and-retry
// behavior of Transport.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.authd.Do(req)
}

// NewRequest builds a request for path relative to the base URL.
func (c *Client) NewRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
}

// RefreshCookie returns the long-lived value held in the jar, for persistence
// between CLI invocations.
func (c *Client) RefreshCookie() (string, bool) {
	for _, ck := range c.jar.Cookies(c.refreshURL()) {
		if ck.Name == RefreshCookieName && ck.Value != "" {
			return ck.Value, true
		}
	}
	return "", false
}

// RestoreSession loads a previously persisted session.
func (c *Client) RestoreSession(accessToken, refreshValue string) {
	if refreshValue != "" {
		c.jar.SetCookies(c.refreshURL(), []*http.Cookie{{
			Name:     RefreshCookieName,
			Value:    refreshValue,
			Path:     "/api/auth",
			HttpOnly: true,
			Secure:   c.base.Scheme == "https",
		}})
	}
	c.coord.SetToken(accessToken)
}

// refreshURL is the absolute rotation endpoint. Its path must start with "/"
// for the cookie jar to match the cookie's Path.
func (c *Client) refreshURL() *url.URL {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + "/api/auth/refresh"
	u.RawPath = ""
	return &u
}

func (c *Client) send(ctx context.Context, hc *http.Client, method, path string, body any) (*http.Response, error) {
	var rdr io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := c.NewRequest(ctx, method, path, rdr)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return hc.Do(req)
}
