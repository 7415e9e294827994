// Package metrics provides Prometheus metrics for the editor backend and
// web host.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confedit_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "confedit_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// File metrics
	fileReadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confedit_file_reads_total",
			Help: "Total configuration file reads",
		},
		[]string{"status"},
	)

	fileSavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confedit_file_saves_total",
			Help: "Total configuration file saves",
		},
		[]string{"status"},
	)

	fileBytesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "confedit_file_bytes_written_total",
			Help: "Total bytes written to configuration files",
		},
	)

	backupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confedit_backups_total",
			Help: "Total backup copies made before a save",
		},
		[]string{"status"},
	)

	fileTreeSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "confedit_file_tree_size",
			Help: "Number of files and directories in the last listing",
		},
	)

	// Upstream metrics
	entityFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confedit_entity_fetches_total",
			Help: "Total entity list fetches from the supervisor",
		},
		[]string{"status"},
	)

	entitiesLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "confedit_entities_loaded",
			Help: "Number of entities in the last successful fetch",
		},
	)

	// Web host metrics
	webSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "confedit_web_sessions_active",
			Help: "Number of open editor WebSocket sessions",
		},
	)

	rpcCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confedit_rpc_calls_total",
			Help: "Total WebSocket RPC calls",
		},
		[]string{"method", "status"},
	)
)

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordFileRead records a file read.
func RecordFileRead(err error) {
	fileReadsTotal.WithLabelValues(result(err)).Inc()
}

// RecordFileSave records a file save and the bytes written.
func RecordFileSave(bytes int, err error) {
	fileSavesTotal.WithLabelValues(result(err)).Inc()
	if err == nil {
		fileBytesWritten.Add(float64(bytes))
	}
}

// RecordBackup records a backup attempt.
func RecordBackup(err error) {
	backupsTotal.WithLabelValues(result(err)).Inc()
}

// SetFileTreeSize sets the file tree size gauge.
func SetFileTreeSize(n int) {
	fileTreeSize.Set(float64(n))
}

// RecordEntityFetch records an upstream entity fetch.
func RecordEntityFetch(count int, err error) {
	entityFetchesTotal.WithLabelValues(result(err)).Inc()
	if err == nil {
		entitiesLoaded.Set(float64(count))
	}
}

// WebSessionOpened increments the active session gauge.
func WebSessionOpened() {
	webSessionsActive.Inc()
}

// WebSessionClosed decrements the active session gauge.
func WebSessionClosed() {
	webSessionsActive.Dec()
}

// RecordRPC records one RPC call.
func RecordRPC(method string, err error) {
	rpcCallsTotal.WithLabelValues(method, result(err)).Inc()
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware returns HTTP middleware that records request metrics. The
// path label is the matched route pattern so raw file paths never become
// label values.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		RecordHTTPRequest(r.Method, path, rw.statusCode, time.Since(start))
	})
}
