package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/devilmonastery/passage/internal/auth/oidc"
	"github.com/devilmonastery/passage/internal/domain/repositories"
	"github.com/devilmonastery/passage/internal/domain/services"
	"github.com/devilmonastery/passage/web/internal/session"
)

// Handler holds dependencies for all web handlers
type Handler struct {
	providers   *oidc.Registry
	hooks       services.SessionHooks
	sessions    *session.Manager
	credentials *session.Credentials
	health      repositories.HealthChecker
	log         *slog.Logger
}

// New creates a new handler with dependencies
func New(
	providers *oidc.Registry,
	hooks services.SessionHooks,
	sessions *session.Manager,
	credentials *session.Credentials,
	health repositories.HealthChecker,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		providers:   providers,
		hooks:       hooks,
		sessions:    sessions,
		credentials: credentials,
		health:      health,
		log:         logger.With(slog.String("component", "web_handler")),
	}
}

// writeJSON writes v as a JSON response body
func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("failed to encode response", slog.String("error", err.Error()))
	}
}
