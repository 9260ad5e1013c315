package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/devilmonastery/passage/web/internal/middleware"
)

// NewRouter sets up the HTTP router with all routes and middleware
func NewRouter(h *Handler, authMw *middleware.AuthMiddleware, log *slog.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(authMw.Materialize, middleware.LogRequest(log))

	// Health check endpoint (no auth required)
	router.HandleFunc("/health", h.Health).Methods("GET")

	// Public routes (no auth required)
	router.HandleFunc("/login", h.Login).Methods("GET")
	router.HandleFunc("/auth/callback", h.AuthCallback).Methods("GET")
	router.HandleFunc("/logout", h.Logout).Methods("GET", "POST")
	router.HandleFunc("/api/auth/session", h.SessionInfo).Methods("GET")

	// Auth required
	router.Handle("/", authMw.RequireAuth(http.HandlerFunc(h.SessionInfo))).Methods("GET")

	return router
}
