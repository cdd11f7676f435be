package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Traced I/O metrics
	IOOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fstrace_io_operations_total",
		Help: "Traced I/O operations by operation and outcome",
	}, []string{"operation", "status"})

	IOLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fstrace_io_operation_duration_seconds",
		Help:    "Traced I/O operation latency",
		Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05, .1, .5, 1},
	}, []string{"operation"})

	IOBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fstrace_io_bytes_total",
		Help: "Bytes covered by traced length-bearing operations",
	}, []string{"operation"})

	IOErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fstrace_io_errors_total",
		Help: "Traced I/O operations that returned an error",
	}, []string{"operation"})

	// Trace pipeline metrics
	TraceRecordsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fstrace_trace_records_emitted_total",
		Help: "Trace records delivered by emitter",
	}, []string{"emitter"})

	TraceRecordsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fstrace_trace_records_dropped_total",
		Help: "Trace records dropped by sampling, a full buffer or a failed flush",
	})

	TraceFlushDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fstrace_trace_flush_duration_seconds",
		Help:    "Time spent emitting one batch of trace records",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
	})

	// Backend metrics
	BackendRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fstrace_backend_request_duration_seconds",
		Help:    "Backend request duration",
		Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10, 30},
	}, []string{"backend", "operation"})

	BackendErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fstrace_backend_errors_total",
		Help: "Backend errors by operation",
	}, []string{"backend", "operation"})

	BackendBytesRead = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fstrace_backend_bytes_read_total",
		Help: "Total bytes read from backends",
	}, []string{"backend"})

	BackendBytesWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fstrace_backend_bytes_written_total",
		Help: "Total bytes uploaded to backends",
	}, []string{"backend"})
)

func init() {
	// Pre-initialize Vec metrics so they appear in /metrics output before first use.
	IOOperations.WithLabelValues("read", "ok")
	IOLatency.WithLabelValues("read")
	IOBytes.WithLabelValues("read")
	IOErrors.WithLabelValues("read")
	TraceRecordsEmitted.WithLabelValues("")
	BackendRequestDuration.WithLabelValues("", "read")
	BackendErrors.WithLabelValues("", "read")
	BackendBytesRead.WithLabelValues("")
	BackendBytesWritten.WithLabelValues("")
}

// HealthCheck holds a single health check function.
type HealthCheck struct {
	Name  string
	Check func() error
}

// HealthStatus represents the health response.
type HealthStatus struct {
	Status string            `json:"status"` // "ok" or "degraded"
	Checks map[string]string `json:"checks"`
}

// healthChecker holds registered health checks.
type healthChecker struct {
	mu     sync.RWMutex
	checks []HealthCheck
}

var defaultHealthChecker = &healthChecker{}

// RegisterHealthCheck adds a health check.
func RegisterHealthCheck(name string, check func() error) {
	defaultHealthChecker.mu.Lock()
	defer defaultHealthChecker.mu.Unlock()
	defaultHealthChecker.checks = append(defaultHealthChecker.checks, HealthCheck{
		Name:  name,
		Check: check,
	})
}

// runChecks runs all registered health checks.
func runChecks() HealthStatus {
	defaultHealthChecker.mu.RLock()
	checks := make([]HealthCheck, len(defaultHealthChecker.checks))
	copy(checks, defaultHealthChecker.checks)
	defaultHealthChecker.mu.RUnlock()

	status := HealthStatus{
		Status: "ok",
		Checks: make(map[string]string),
	}

	for _, hc := range checks {
		if err := hc.Check(); err != nil {
			status.Status = "degraded"
			status.Checks[hc.Name] = err.Error()
		} else {
			status.Checks[hc.Name] = "ok"
		}
	}
	return status
}

// HealthzHandler handles GET /healthz requests.
func HealthzHandler(w http.ResponseWriter, r *http.Request) {
	status := runChecks()
	w.Header().Set("Content-Type", "application/json")
	if status.Status != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(status)
}

// PathHealthCheck returns a check function that fails when path is missing.
func PathHealthCheck(path string) func() error {
	return func() error {
		_, err := os.Stat(path)
		return err
	}
}

// MetricsServer starts an HTTP server for /metrics and /healthz on the given addr.
// It blocks until the provided stop channel is closed, then shuts down gracefully.
func MetricsServer(addr string, stop <-chan struct{}) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", HealthzHandler)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-stop:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	case err := <-errCh:
		return err
	}
}
