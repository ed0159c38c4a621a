package authapi

import (
	"net/http"
	"strings"
	"time"

	"rsvp/cmd/internal/auth/session"
)

// TokenVerifier checks short-lived access tokens; *session.Service satisfies it.
type TokenVerifier interface {
	Verify(token string, now time.Time) (session.Claims, error)
}

// Authenticator guards routes that require a signed access token.
// It keeps no state between requests and never retries.
type Authenticator struct {
	verifier TokenVerifier
	metrics  *session.Metrics
	now      func() time.Time
}

func NewAuthenticator(v TokenVerifier, m *session.Metrics) *Authenticator {
	return &Authenticator{
		verifier: v,
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RequireAuth rejects the request with a generic 401 unless it carries a
// valid bearer token, and otherwise stores the principal in the context.
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, reason := bearerToken(r)
		if reason != "" {
			a.metrics.IncVerifyFailure(reason)
			writeUnauthorized(w)
			return
		}
		// Verify records its own failure reason.
		claims, err := a.verifier.Verify(tok, a.now())
		if err != nil {
			writeUnauthorized(w)
			return
		}
		ctx := session.WithPrincipal(r.Context(), session.Principal{
			SubjectID: claims.SubjectID,
			Email:     claims.Email,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken extracts the token from the Authorization header. A non-empty
// reason ("missing" or "malformed") means no usable token was presented.
func bearerToken(r *http.Request) (string, string) {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return "", "missing"
	}
	scheme, tok, ok := strings.Cut(raw, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", "malformed"
	}
	tok = strings.TrimSpace(tok)
	if tok == "" || strings.ContainsAny(tok, " \t") {
		return "", "malformed"
	}
	return tok, ""
}
