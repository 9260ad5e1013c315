package handlers

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/devilmonastery/passage/internal/domain/entities"
	"github.com/devilmonastery/passage/internal/pkg/logger"
	"github.com/devilmonastery/passage/internal/pkg/urlutil"
	"github.com/devilmonastery/passage/web/internal/session"
)

// loginMessages maps a /login?reason= value to the message shown to the user
var loginMessages = map[string]string{
	"expired":  "Your session has expired. Please sign in again to continue.",
	"required": "Authentication required to access this page.",
	"denied":   "Sign-in was not allowed for this account.",
	"error":    "Sign-in failed. Please try again.",
}

// Login starts the authorization code flow, or lists the providers when
// none was chosen and more than one is configured
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	provider := r.URL.Query().Get("provider")
	available := h.providers.List()

	if provider == "" {
		// Single provider - go straight to it
		if len(available) == 1 && r.URL.Query().Get("reason") == "" {
			provider = available[0]
		} else {
			h.writeJSON(w, http.StatusOK, map[string]any{
				"providers": available,
				"message":   loginMessages[r.URL.Query().Get("reason")],
			})
			return
		}
	}

	p, err := h.providers.Get(provider)
	if err != nil {
		http.Error(w, "Unknown OAuth provider", http.StatusBadRequest)
		return
	}

	// Store state and code verifier in the cookie for the callback
	state := newLoginState(provider, urlutil.SafeRedirectPath(r.URL.Query().Get("next")))
	if err := h.sessions.SaveLoginState(r, w, state); err != nil {
		h.log.Error("failed to save session",
			slog.String("error", err.Error()))
		http.Error(w, "Failed to start login", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, p.AuthCodeURL(state.State, state.Verifier), http.StatusFound)
}

// newLoginState creates a fresh state and PKCE verifier for a login attempt
func newLoginState(provider, next string) session.LoginState {
	return session.LoginState{
		State:    generateState(),
		Verifier: oauth2.GenerateVerifier(),
		Provider: provider,
		Next:     next,
	}
}

// AuthCallback handles the OAuth callback
func (h *Handler) AuthCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if errorParam := query.Get("error"); errorParam != "" {
		h.log.Warn("OAuth error received",
			slog.String("error", errorParam),
			slog.String("error_description", query.Get("error_description")))
		http.Redirect(w, r, urlutil.LoginURL("error"), http.StatusSeeOther)
		return
	}

	code := query.Get("code")
	if code == "" {
		http.Error(w, "Missing authorization code", http.StatusBadRequest)
		return
	}

	// Verify state for CSRF protection
	saved, err := h.sessions.TakeLoginState(r, w)
	if err != nil || saved.State != query.Get("state") {
		h.log.Warn("invalid state parameter - possible CSRF attempt")
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	provider, err := h.providers.Get(saved.Provider)
	if err != nil {
		http.Error(w, "Unknown OAuth provider", http.StatusBadRequest)
		return
	}
	log := logger.WithProvider(h.log, provider.Name())

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	identity, err := provider.Exchange(ctx, code, saved.Verifier)
	if err != nil {
		log.Error("failed to exchange authorization code",
			slog.String("error", err.Error()))
		http.Redirect(w, r, urlutil.LoginURL("error"), http.StatusSeeOther)
		return
	}

	if !h.hooks.OnSignIn(ctx, *identity) {
		log.Info("sign-in denied", slog.String("subject", identity.Subject))
		http.Redirect(w, r, urlutil.LoginURL("denied"), http.StatusSeeOther)
		return
	}

	if err := h.credentials.Issue(r, w, entities.NewProviderSession(*identity)); err != nil {
		log.Error("failed to save session",
			slog.String("error", err.Error()))
		http.Error(w, "Failed to save session", http.StatusInternalServerError)
		return
	}

	log.Info("signed in", slog.String("subject", identity.Subject))
	http.Redirect(w, r, urlutil.SafeRedirectPath(saved.Next), http.StatusSeeOther)
}

// Logout handles user logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	// Clear the session cookie
	if err := h.credentials.Clear(r, w); err != nil {
		h.log.Warn("failed to clear session", slog.String("error", err.Error()))
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func generateState() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
