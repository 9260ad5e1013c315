package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/devilmonastery/passage/internal/auth"
	"github.com/devilmonastery/passage/internal/domain/services"
	"github.com/devilmonastery/passage/internal/pkg/metrics"
	"github.com/devilmonastery/passage/internal/pkg/urlutil"
	"github.com/devilmonastery/passage/web/internal/session"
)

// expiredKey marks a request whose session token was dropped for expiry
type expiredKey struct{}

// AuthMiddleware turns the session cookie into a materialized session
type AuthMiddleware struct {
	credentials *session.Credentials
	hooks       services.SessionHooks
	log         *slog.Logger
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(credentials *session.Credentials, hooks services.SessionHooks, logger *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		credentials: credentials,
		hooks:       hooks,
		log:         logger.With(slog.String("component", "auth_middleware")),
	}
}

// Materialize decodes the session token and, when it verifies, stores the
// materialized session in the request context. A token that fails to verify
// is treated as no session and its cookie is cleared.
func (m *AuthMiddleware) Materialize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		provider, err := m.credentials.Load(r)
		if err != nil {
			if !errors.Is(err, session.ErrNoToken) {
				reason := "invalid"
				if errors.Is(err, auth.ErrExpiredToken) {
					reason = "expired"
				}
				metrics.TokenDecodeFailures.WithLabelValues(reason).Inc()
				m.log.Debug("dropping session token",
					slog.String("reason", reason),
					slog.String("error", err.Error()))

				if err := m.credentials.Clear(r, w); err != nil {
					m.log.Warn("failed to clear session cookie", slog.String("error", err.Error()))
				}
				if reason == "expired" {
					r = r.WithContext(context.WithValue(r.Context(), expiredKey{}, true))
				}
			}
			next.ServeHTTP(w, r)
			return
		}

		materialized := m.hooks.OnSessionMaterialize(r.Context(), provider)
		next.ServeHTTP(w, r.WithContext(session.WithSession(r.Context(), materialized)))
	})
}

// RequireAuth is middleware that ensures the request carries a session.
// It must run after Materialize. A session dropped for expiry is sent to
// the login page with reason=expired.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := session.FromContext(r.Context()); !ok {
			reason := "required"
			if expired, _ := r.Context().Value(expiredKey{}).(bool); expired {
				reason = "expired"
			}
			m.log.Debug("no session, redirecting to login",
				slog.String("path", r.URL.Path),
				slog.String("reason", reason))
			http.Redirect(w, r, urlutil.LoginURL(reason), http.StatusSeeOther)
			return
		}

		next.ServeHTTP(w, r)
	})
}
