package authapi

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Audit events go to the structured log under the auth.audit.* namespace.

func (h *Handler) auditLoginFailed(r *http.Request, email, reason string) {
	h.audit(r, "auth.audit.login_failed", slog.String("email", email), slog.String("reason", reason))
}

func (h *Handler) auditLoginSuccess(r *http.Request, userID string) {
	h.audit(r, "auth.audit.login_success", slog.String("user_id", userID))
}

func (h *Handler) auditRegistered(r *http.Request, userID string) {
	h.audit(r, "auth.audit.registered", slog.String("user_id", userID))
}

func (h *Handler) auditFederated(r *http.Request, userID, issuer string) {
	h.audit(r, "auth.audit.federated_login", slog.String("user_id", userID), slog.String("issuer", issuer))
}

func (h *Handler) auditRefreshRejected(r *http.Request) {
	h.audit(r, "auth.audit.refresh_rejected")
}

func (h *Handler) auditLogout(r *http.Request) {
	h.audit(r, "auth.audit.logout")
}

func (h *Handler) auditRateLimited(r *http.Request, retryAfter time.Duration) {
	h.audit(r, "auth.audit.rate_limited",
		slog.String("path", r.URL.Path),
		slog.Int64("retry_after_s", int64(retryAfter.Seconds())),
	)
}

func (h *Handler) audit(r *http.Request, action string, attrs ...slog.Attr) {
	ip := clientIP(r, h.cfg.TrustProxy)
	base := []slog.Attr{slog.String("user_agent", strings.TrimSpace(r.UserAgent()))}
	if ip != nil {
		base = append(base, slog.String("ip", ip.String()))
	}
	h.log.LogAttrs(r.Context(), slog.LevelInfo, action, append(base, attrs...)...)
}
