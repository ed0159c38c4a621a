package authclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ErrSessionEnded is returned once a rotation has failed (or the session was
// cleared) and the caller has to log in again.
var ErrSessionEnded = errors.New("session ended")

// Refresher performs one rotation against the server and returns the new
// access token.
type Refresher interface {
	Refresh(ctx context.Context) (string, error)
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(ctx context.Context) (string, error)

func (f RefresherFunc) Refresh(ctx context.Context) (string, error) { return f(ctx) }

const rotationKey = "rotate"

// Coordinator owns the access token of one client session.
type Coordinator struct {
	refresher Refresher
	flight    singleflight.Group
	log       *slog.Logger
	onEnded   func(error)

	mu    sync.RWMutex
	token string
	ended bool
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithOnSessionEnded registers fn to run after a failed rotation, before any
// waiter is released. fn may log in again and call Refresh; that starts a new
// rotation rather than joining the failed one.
func WithOnSessionEnded(fn func(error)) CoordinatorOption {
	return func(c *Coordinator) { c.onEnded = fn }
}

func WithCoordinatorLogger(l *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		if l != nil {
			c.log = l
		}
	}
}

func NewCoordinator(r Refresher, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{refresher: r, log: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the current access token, or "" when there is none.
func (c *Coordinator) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken installs a token obtained from login or registration.
func (c *Coordinator) SetToken(tok string) {
	c.mu.Lock()
	c.token = tok
	if tok != "" {
		c.ended = false
	}
	c.mu.Unlock()
}

// Clear forgets the session. Later refreshes fail with ErrSessionEnded until
// SetToken is called again.
func (c *Coordinator) Clear() {
	c.mu.Lock()
	c.token = ""
	c.ended = true
	c.mu.Unlock()
}

// Refresh returns a token newer than stale, rotating at most once across all
// concurrent callers.
//
// If a rotation already replaced stale, its result is returned directly.
// Otherwise the caller joins the in-flight rotation or starts one. The
// rotation runs detached from ctx: cancelling ctx abandons only this caller's
// wait. Every waiter of one rotation observes the same token or the same error.
func (c *Coordinator) Refresh(ctx context.Context, stale string) (string, error) {
	if tok, ended, ok := c.current(stale); ok {
		return tok, nil
	} else if ended {
		return "", ErrSessionEnded
	}

	ch := c.flight.DoChan(rotationKey, func() (any, error) {
		// A rotation may have settled between current() and DoChan.
		if tok, ended, ok := c.current(stale); ok {
			return tok, nil
		} else if ended {
			return "", ErrSessionEnded
		}
		return c.rotate(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *Coordinator) current(stale string) (tok string, ended bool, fresh bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token, c.ended, c.token != "" && c.token != stale
}

// rotate runs inside the single flight. State is updated before the flight
// returns, so no waiter can observe the old token after success.
func (c *Coordinator) rotate(ctx context.Context) (any, error) {
	tok, err := c.refresher.Refresh(ctx)
	if err == nil && tok == "" {
		err = errors.New("empty access token")
	}
	if err != nil {
		c.Clear()
		c.log.Info("authclient.refresh.fail", "err", err)
		c.flight.Forget(rotationKey)
		if c.onEnded != nil {
			c.onEnded(err)
		}
		return "", fmt.Errorf("%w: %w", ErrSessionEnded, err)
	}

	c.mu.Lock()
	c.token = tok
	c.ended = false
	c.mu.Unlock()
	c.log.Debug("authclient.refresh.ok")
	return tok, nil
}
