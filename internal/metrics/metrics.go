// Package metrics provides Prometheus instrumentation for the P&L engine.
package metrics

import (
	"bufio"
	"errors"
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
	// UploadsTotal counts upload attempts, partitioned by outcome.
	UploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "optpnl_uploads_total",
		Help: "Total number of trade file uploads",
	}, []string{"outcome"})

	// ExecutionsTotal counts normalized executions by disposition.
	ExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "optpnl_executions_total",
		Help: "Executions accepted into or rejected from the log",
	}, []string{"disposition"})

	// ReportBuildLatency tracks full recomputation time.
	ReportBuildLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "optpnl_report_build_seconds",
		Help:    "Time to rebuild the report from the full execution log",
		Buckets: prometheus.DefBuckets,
	})

	// LogSize tracks the number of executions in the log at the last rebuild.
	LogSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "optpnl_execution_log_size",
		Help: "Executions in the log at the last report rebuild",
	})

	// Contracts tracks legs by lifetime status.
	Contracts = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "optpnl_contracts",
		Help: "Number of option legs by status",
	}, []string{"status"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "optpnl_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "optpnl_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "optpnl_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
	}, []string{"method", "path"})
)

// ObserveReport records the shape of a freshly built report.
func ObserveReport(start time.Time, logSize, open, closed int) {
	ReportBuildLatency.Observe(time.Since(start).Seconds())
	LogSize.Set(float64(logSize))
	Contracts.WithLabelValues("open").Set(float64(open))
	Contracts.WithLabelValues("closed").Set(float64(closed))
}

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

		// Route pattern keeps the label set small; fall back to the raw path.
		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			path = rc.RoutePattern()
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

// Hijack lets websocket upgrades pass through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
