package authclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrRefreshRejected means the server refused the long-lived credential.
var ErrRefreshRejected = errors.New("refresh rejected")

// HTTPRefresher rotates against POST /api/auth/refresh. The long-lived value
// travels only in the cookie held by the client's jar.
type HTTPRefresher struct {
	client *http.Client
	url    string
}

// NewHTTPRefresher uses hc as is; hc must carry the session cookie jar and
// must not route through a Transport bound to the same Coordinator.
func NewHTTPRefresher(baseURL string, hc *http.Client) *HTTPRefresher {
	return &HTTPRefresher{
		client: hc,
		url:    strings.TrimRight(baseURL, "/") + "/api/auth/refresh",
	}
}

func (r *HTTPRefresher) Refresh(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, http.NoBody)
	if err != nil {
		return "", err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("refresh: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return "", ErrRefreshRejected
	default:
		return "", fmt.Errorf("refresh: %w", decodeAPIError(resp))
	}

	var out TokenResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return "", fmt.Errorf("refresh: decode: %w", err)
	}
	return out.AccessToken, nil
}
