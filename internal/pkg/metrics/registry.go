package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Database/Repository Metrics
var (
	// DBOperations tracks total database operations
	DBOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "passage_db_operations_total",
			Help: "Total database operations by repository, operation, and status",
		},
		[]string{"repo", "operation", "status"},
	)

	// DBDuration tracks database operation latency
	DBDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "passage_db_operation_duration_ms",
			Help:                            "Database operation duration in milliseconds",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"repo", "operation"},
	)

	// DBRowsAffected tracks rows affected or returned by an operation
	DBRowsAffected = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "passage_db_rows_affected",
			Help:                            "Number of rows affected or returned by database operations",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"repo", "operation"},
	)

	// DBErrors tracks database errors by type
	DBErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "passage_db_errors_total",
			Help: "Total database errors by repository, operation, and error type",
		},
		[]string{"repo", "operation", "error_type"},
	)
)

// Session Metrics
var (
	// SignInDecisions tracks admit/deny outcomes of the sign-in gate
	SignInDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "passage_signin_decisions_total",
			Help: "Sign-in decisions by outcome and reason",
		},
		[]string{"outcome", "reason"},
	)

	// SessionMaterializations tracks how each session materialization resolved
	SessionMaterializations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "passage_session_materializations_total",
			Help: "Session materializations by result (merged, provider_only, skipped)",
		},
		[]string{"result", "reason"},
	)

	// TokenDecodeFailures tracks session tokens rejected at decode time
	TokenDecodeFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "passage_token_decode_failures_total",
			Help: "Session tokens rejected at decode time by reason",
		},
		[]string{"reason"},
	)
)

// HTTP/Web Handler Metrics
var (
	// HTTPRequests tracks HTTP requests
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "passage_http_requests_total",
			Help: "Total HTTP requests by method, path, and status",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPDuration tracks HTTP request duration
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "passage_http_request_duration_ms",
			Help:                            "HTTP request duration in milliseconds",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"method", "path"},
	)

	// HTTPActiveRequests tracks active HTTP requests
	HTTPActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "passage_http_active_requests",
			Help: "Number of active HTTP requests",
		},
	)
)
