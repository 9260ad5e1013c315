package handlers

import (
	"log/slog"
	"net/http"

	"github.com/devilmonastery/passage/web/internal/session"
)

// SessionInfo returns the materialized session, or {} when signed out
func (h *Handler) SessionInfo(w http.ResponseWriter, r *http.Request) {
	s, ok := session.FromContext(r.Context())
	if !ok {
		h.writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	h.writeJSON(w, http.StatusOK, s)
}

// Health reports whether the user store is reachable
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health.HealthCheck(r.Context()); err != nil {
			h.log.Warn("health check failed", slog.String("error", err.Error()))
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("unavailable"))
			return
		}
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
