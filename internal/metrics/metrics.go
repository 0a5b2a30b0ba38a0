// Package metrics provides Prometheus instrumentation for the pool engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// PoolsCreated counts pools created.
	PoolsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atmx_pools_created_total",
		Help: "Total number of pools created",
	})

	// TicketsTotal counts accepted tickets, partitioned by outcome.
	TicketsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atmx_pool_tickets_total",
		Help: "Total number of tickets accepted",
	}, []string{"outcome"})

	// SettlementsTotal counts pool settlements, partitioned by winning outcome.
	SettlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atmx_pool_settlements_total",
		Help: "Total number of pools settled",
	}, []string{"outcome"})

	// ClaimsTotal counts successful claims.
	ClaimsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atmx_pool_claims_total",
		Help: "Total number of successful claims",
	})

	// RejectionsTotal counts rejected write operations by operation.
	RejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atmx_pool_rejections_total",
		Help: "Write operations rejected by validation or state checks",
	}, []string{"op"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "atmx_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atmx_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "atmx_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
