package authapi

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"rsvp/cmd/identity"
	"rsvp/cmd/internal/auth/session"
)

// Handler wires HTTP auth endpoints to identity storage and the session service.
type Handler struct {
	log *slog.Logger
	cfg Config

	sessions  *session.Service
	users     identity.Store
	passwords identity.Passwords
	federated FederatedVerifier
	metrics   *session.Metrics

	auth    *Authenticator
	limiter *ipLimiter
	now     func() time.Time
}

// HandlerOption configures optional auth handler dependencies.
type HandlerOption func(*Handler)

// WithFederatedVerifier enables the federated login callback.
func WithFederatedVerifier(v FederatedVerifier) HandlerOption {
	return func(h *Handler) { h.federated = v }
}

// WithMetrics counts authenticator rejections that never reach the codec.
func WithMetrics(m *session.Metrics) HandlerOption {
	return func(h *Handler) { h.metrics = m }
}

// WithClock overrides the wall clock; used by tests.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, cfg Config, sessions *session.Service, users identity.Store, passwords identity.Passwords, opts ...HandlerOption) (*Handler, error) {
	if sessions == nil {
		return nil, errors.New("authapi: nil session service")
	}
	if users == nil {
		return nil, errors.New("authapi: nil identity store")
	}
	if log == nil {
		log = slog.Default()
	}

	h := &Handler{
		log:       log,
		cfg:       cfg.normalized(),
		sessions:  sessions,
		users:     users,
		passwords: passwords,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}

	h.auth = NewAuthenticator(sessions, h.metrics)
	h.auth.now = h.now
	h.limiter = newIPLimiter(h.cfg.AuthRateMax, h.cfg.AuthRateWindow)
	return h, nil
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/api/auth/register", h.handleRegister)
	mux.HandleFunc("/api/auth/login", h.handleLogin)
	mux.HandleFunc("/api/auth/refresh", h.handleRefresh)
	mux.HandleFunc("/api/auth/logout", h.handleLogout)
	mux.Handle("/api/auth/me", h.RequireAuth(http.HandlerFunc(h.handleMe)))
	mux.HandleFunc("/api/auth/federated/callback", h.handleFederatedCallback)
}

// RequireAuth exposes the access-token guard for other route groups.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return h.auth.RequireAuth(next)
}

// ---- handlers ----

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !h.allowAuthAttempt(w, r) {
		return
	}

	var req registerRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if !identity.ValidEmail(req.Email) {
		writeError(w, http.StatusBadRequest, "invalid_request", "a valid email is required")
		return
	}
	if _, ok := identity.CleanName(req.Name); !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "name must be 1-100 characters")
		return
	}

	hash, err := h.passwords.Hash(req.Password)
	if err != nil {
		if identity.IsInvalidInput(err) {
			writeError(w, http.StatusBadRequest, "invalid_password", "password does not meet policy")
			return
		}
		h.log.Error("auth.register.hash.fail", "err", err)
		writeInternal(w)
		return
	}

	u, err := h.users.CreateUser(r.Context(), identity.CreateUserInput{
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hash,
		Now:          h.now(),
	})
	if err != nil {
		switch {
		case identity.IsConflict(err):
			writeError(w, http.StatusConflict, "email_taken", "an account with this email already exists")
		case identity.IsInvalidInput(err):
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid registration")
		default:
			h.log.Error("auth.register.create.fail", "err", err)
			writeInternal(w)
		}
		return
	}

	pair, ok := h.issue(w, r, u, "auth.register.issue.fail")
	if !ok {
		return
	}
	h.auditRegistered(r, u.ID)
	writeJSON(w, http.StatusCreated, toTokenResponse(pair, &u))
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !h.allowAuthAttempt(w, r) {
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	email := identity.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	ua, err := h.users.GetUserAuthByEmail(r.Context(), email)
	if err != nil {
		if !identity.IsNotFound(err) {
			h.log.Error("auth.login.lookup.fail", "err", err)
			writeInternal(w)
			return
		}
		// Pay the hashing cost anyway so response time does not reveal accounts.
		h.passwords.CheckMissing(req.Password)
		h.auditLoginFailed(r, email, "not_found")
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
		return
	}
	if !h.passwords.Check(ua, req.Password) {
		h.auditLoginFailed(r, email, "bad_password")
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
		return
	}

	pair, ok := h.issue(w, r, ua.User, "auth.login.issue.fail")
	if !ok {
		return
	}
	h.auditLoginSuccess(r, ua.User.ID)
	writeJSON(w, http.StatusOK, toTokenResponse(pair, &ua.User))
}

// handleRefresh reads the long-lived value from the cookie only.
func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	now := h.now()
	pair, err := h.sessions.Rotate(r.Context(), now, h.refreshValueFromCookie(r))
	if err != nil {
		switch {
		case errors.Is(err, session.ErrUnauthorized):
			h.auditRefreshRejected(r)
			h.expireRefreshCookie(w)
			writeUnauthorized(w)
		case errors.Is(err, session.ErrStoreUnavailable):
			h.log.Warn("auth.refresh.unavailable", "err", err)
			writeUnavailable(w)
		default:
			h.log.Error("auth.refresh.fail", "err", err)
			writeInternal(w)
		}
		return
	}

	h.setRefreshCookie(w, pair.RefreshToken, pair.RefreshExpiresAt, now)
	writeJSON(w, http.StatusOK, toTokenResponse(pair, nil))
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if err := h.sessions.Revoke(r.Context(), h.refreshValueFromCookie(r)); err != nil {
		h.log.Warn("auth.logout.unavailable", "err", err)
		writeUnavailable(w)
		return
	}

	h.auditLogout(r)
	h.expireRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	p, ok := session.PrincipalFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	u, err := h.users.GetUserByID(r.Context(), p.SubjectID)
	if err != nil {
		if identity.IsNotFound(err) {
			writeUnauthorized(w)
			return
		}
		h.log.Error("auth.me.fail", "err", err)
		writeInternal(w)
		return
	}

	writeJSON(w, http.StatusOK, meResponse{User: toUserResponse(u)})
}

func (h *Handler) handleFederatedCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h.federated == nil {
		writeError(w, http.StatusNotImplemented, "not_configured", "federated login is not configured")
		return
	}

	ctx := r.Context()
	assertion := strings.TrimSpace(r.URL.Query().Get("assertion"))
	if assertion == "" {
		h.redirectLoginFailure(w, r)
		return
	}
	fid, err := h.federated.VerifyAssertion(ctx, assertion)
	if err != nil {
		h.log.Info("auth.federated.verify.fail", "err", err)
		h.redirectLoginFailure(w, r)
		return
	}

	u, err := h.users.UpsertFederatedUser(ctx, identity.FederatedInput{
		Issuer:  fid.Issuer,
		Subject: fid.Subject,
		Email:   fid.Email,
		Name:    fid.Name,
		Now:     h.now(),
	})
	if err != nil {
		if identity.IsInvalidInput(err) || identity.IsConflict(err) {
			h.log.Info("auth.federated.upsert.rejected", "err", err)
			h.redirectLoginFailure(w, r)
			return
		}
		h.log.Error("auth.federated.upsert.fail", "err", err)
		writeInternal(w)
		return
	}

	pair, ok := h.issue(w, r, u, "auth.federated.issue.fail")
	if !ok {
		return
	}
	h.auditFederated(r, u.ID, fid.Issuer)
	http.Redirect(w, r, h.cfg.ClientURL+"/oauth-callback?token="+url.QueryEscape(pair.AccessToken), http.StatusFound)
}

// ---- helpers ----

// issue mints a pair for u and sets the refresh cookie. On failure the
// response has already been written.
func (h *Handler) issue(w http.ResponseWriter, r *http.Request, u identity.User, event string) (session.Pair, bool) {
	now := h.now()
	pair, err := h.sessions.Issue(r.Context(), now, session.Identity{SubjectID: u.ID, Email: u.Email})
	if err != nil {
		if errors.Is(err, session.ErrStoreUnavailable) {
			h.log.Warn(event, "err", err, "user_id", u.ID)
			writeUnavailable(w)
			return session.Pair{}, false
		}
		h.log.Error(event, "err", err, "user_id", u.ID)
		writeInternal(w)
		return session.Pair{}, false
	}
	h.setRefreshCookie(w, pair.RefreshToken, pair.RefreshExpiresAt, now)
	return pair, true
}

func (h *Handler) allowAuthAttempt(w http.ResponseWriter, r *http.Request) bool {
	ok, retryAfter := h.limiter.allow(clientIP(r, h.cfg.TrustProxy), h.now())
	if !ok {
		h.auditRateLimited(r, retryAfter)
		writeRateLimited(w, retryAfter)
	}
	return ok
}

func (h *Handler) redirectLoginFailure(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.cfg.ClientURL+"/login?error=federated", http.StatusFound)
}

func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

func parseForwardedIP(raw string) net.IP {
	if raw == "" {
		return nil
	}
	for p := range strings.SplitSeq(raw, ",") {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			return ip
		}
	}
	return nil
}
