// Package metrics provides Prometheus instrumentation for the simulator.
package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// OperationsTotal counts executed exchange operations by type.
	OperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ddpsim_operations_total",
		Help: "Total number of exchange operations executed",
	}, []string{"type"})

	// OperationErrors counts rejected operations by type and error kind.
	OperationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ddpsim_operation_errors_total",
		Help: "Exchange operations rejected by validation",
	}, []string{"type", "kind"})

	// OperationLatency tracks read-quote-apply-save latency.
	OperationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ddpsim_operation_latency_seconds",
		Help:    "Operation execution latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})

	// ActiveSessions tracks the number of stored sessions.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ddpsim_active_sessions",
		Help: "Number of simulation sessions currently stored",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ddpsim_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ddpsim_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ddpsim_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})

	// PriceImpactRejections counts swaps refused by the price-impact cap.
	PriceImpactRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ddpsim_price_impact_rejections_total",
		Help: "Swaps rejected by the maximum price-impact limit",
	})

	// HighImpactSwaps counts executed swaps above the warning threshold.
	HighImpactSwaps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ddpsim_high_impact_swaps_total",
		Help: "Executed swaps flagged above the price-impact warning threshold",
	})

	// SwapVolume tracks cumulative swap input volume per input token.
	SwapVolume = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ddpsim_swap_volume_total",
		Help: "Cumulative swap input volume in token units",
	}, []string{"token"})
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
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
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

// Hijack lets WebSocket upgrades pass through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("metrics: response writer does not support hijacking")
	}
	return h.Hijack()
}
