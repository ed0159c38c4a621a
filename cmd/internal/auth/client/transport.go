package authclient

import (
	"bytes"
	"context"
	"io"
	"net/http"
)

type retriedKey struct{}

// WithRetried marks ctx so a Transport never refreshes on its behalf.
// Transport sets it on the replayed request itself.
func WithRetried(ctx context.Context) context.Context {
	return context.WithValue(ctx, retriedKey{}, true)
}

func retried(ctx context.Context) bool {
	v, _ := ctx.Value(retriedKey{}).(bool)
	return v
}

// Transport attaches the coordinator's access token to outgoing requests and,
// on a 401, waits for the shared rotation and replays the request once.
// If the rotation fails the original 401 response is returned.
type Transport struct {
	Base        http.RoundTripper
	Coordinator *Coordinator
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	first, err := rewindable(req)
	if err != nil {
		return nil, err
	}

	tok := t.Coordinator.Token()
	resp, err := t.base().RoundTrip(authorize(first, tok))
	if err != nil || resp.StatusCode != http.StatusUnauthorized || retried(req.Context()) {
		return resp, err
	}

	fresh, rerr := t.Coordinator.Refresh(req.Context(), tok)
	if rerr != nil {
		return resp, nil
	}

	replay := first.Clone(WithRetried(req.Context()))
	if first.GetBody != nil {
		body, err := first.GetBody()
		if err != nil {
			return resp, nil
		}
		replay.Body = body
	}
	drain(resp)
	return t.base().RoundTrip(authorize(replay, fresh))
}

// rewindable returns a clone of req whose body can be re-read via GetBody.
func rewindable(req *http.Request) (*http.Request, error) {
	out := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return out, nil
	}
	buf, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, err
	}
	out.Body = io.NopCloser(bytes.NewReader(buf))
	out.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(buf)), nil
	}
	out.ContentLength = int64(len(buf))
	return out, nil
}

func authorize(req *http.Request, tok string) *http.Request {
	if tok == "" {
		req.Header.Del("Authorization")
		return req
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	return req
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
