package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/devilmonastery/passage/internal/pkg/logger"
	"github.com/devilmonastery/passage/internal/pkg/metrics"
	"github.com/devilmonastery/passage/web/internal/session"
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// LogRequest logs one structured line per HTTP request and records request metrics.
// Health checks and metric scrapes are skipped. Install it after Materialize
// so the log line carries the signed-in user.
func LogRequest(log *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			metrics.HTTPActiveRequests.Inc()
			defer metrics.HTTPActiveRequests.Dec()

			// Wrap response writer to capture status code
			wrapped := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK, // default if WriteHeader not called
			}

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)
			path := routeTemplate(r)
			metrics.RecordHTTPRequest(r.Method, path, wrapped.statusCode, duration)

			// Get real IP (consider X-Forwarded-For if behind proxy)
			clientIP := r.RemoteAddr
			if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
				clientIP = forwarded
			} else if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
				clientIP = realIP
			}

			attrs := []any{
				slog.Int("status", wrapped.statusCode),
				slog.Int64("bytes", wrapped.written),
				slog.String("client_ip", clientIP),
				slog.String("user_agent", r.UserAgent()),
			}
			if s, ok := session.FromContext(r.Context()); ok {
				attrs = append(attrs, slog.String("user_email", s.Email()))
			}

			reqLog := logger.WithDuration(logger.WithHTTPRequest(log, r.Method, r.URL.Path), duration)
			if wrapped.statusCode >= 500 {
				reqLog.Error("request", attrs...)
			} else {
				reqLog.Info("request", attrs...)
			}
		})
	}
}

// routeTemplate returns the matched route's path template, keeping metric
// label cardinality bounded
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}
