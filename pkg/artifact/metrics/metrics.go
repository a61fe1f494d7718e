// Package metrics collects the Lifecycle Controller's Prometheus series:
// per-operation counts and durations, and a handful of gauges the
// controller updates as a side effect of create/delete/commit.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
)

// Recorder owns a registry and the series registered against it. A
// single production Recorder is built at startup with
// NewRecorder(); tests build their own with a private registry so
// assertions never collide with other suites' registrations.
type Recorder struct {
	registry *prometheus.Registry

	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	artifactsTotal    *prometheus.GaugeVec
	fileBytesTotal    *prometheus.CounterVec
	vectorOpsTotal    *prometheus.CounterVec
}

// NewRecorder builds a Recorder with its own registry and registers
// every series against it.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "artifactd_operations_total",
				Help: "Total number of lifecycle operations by name and outcome",
			},
			[]string{"operation", "outcome"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "artifactd_operation_duration_seconds",
				Help:    "Lifecycle operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		artifactsTotal: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "artifactd_artifacts_total",
				Help: "Current number of artifacts by type",
			},
			[]string{"type"},
		),
		fileBytesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "artifactd_file_bytes_total",
				Help: "Total bytes transferred through put_file/get_file by direction",
			},
			[]string{"direction"},
		),
		vectorOpsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "artifactd_vector_operations_total",
				Help: "Total number of vector-database operations by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
	}
	r.registry.MustRegister(
		r.operationsTotal,
		r.operationDuration,
		r.artifactsTotal,
		r.fileBytesTotal,
		r.vectorOpsTotal,
	)
	return r
}

// Handler exposes the Recorder's registry on the standard exposition
// format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry, for wiring into a process
// that multiplexes several collectors behind one /metrics endpoint.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Timer times a single operation and records both its outcome count
// and duration when Observe is called.
type Timer struct {
	recorder  *Recorder
	operation string
	start     time.Time
}

// Start begins timing operation.
func (r *Recorder) Start(operation string) *Timer {
	return &Timer{recorder: r, operation: operation, start: time.Now()}
}

// Observe records the elapsed duration and the operation's outcome,
// "ok" or "error" depending on whether err is nil.
func (t *Timer) Observe(err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	t.recorder.operationsTotal.WithLabelValues(t.operation, outcome).Inc()
	t.recorder.operationDuration.WithLabelValues(t.operation).Observe(time.Since(t.start).Seconds())
}

// SetArtifactCount sets the current gauge value for artifactType.
func (r *Recorder) SetArtifactCount(artifactType string, count float64) {
	r.artifactsTotal.WithLabelValues(artifactType).Set(count)
}

// AddFileBytes records transferred bytes for a put (direction "in")
// or a get (direction "out").
func (r *Recorder) AddFileBytes(direction string, n float64) {
	r.fileBytesTotal.WithLabelValues(direction).Add(n)
}

// RecordVectorOp records the outcome of a vector-database operation.
func (r *Recorder) RecordVectorOp(kind string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.vectorOpsTotal.WithLabelValues(kind, outcome).Inc()
}
