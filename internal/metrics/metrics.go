// Package metrics records preparation pipeline timings and counts in a
// private Prometheus registry. All Recorder methods are safe on a nil
// receiver so callers never need to check whether metrics are enabled.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder holds the pipeline metrics.
type Recorder struct {
	namespace string
	buckets   []float64
	registry  *prometheus.Registry

	stageDuration *prometheus.HistogramVec
	rows          *prometheus.GaugeVec
	partitions    prometheus.Counter
	evaluations   *prometheus.CounterVec
	runs          *prometheus.CounterVec
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithNamespace sets the metric namespace (default "athmon").
func WithNamespace(ns string) Option {
	return func(r *Recorder) {
		if ns != "" {
			r.namespace = ns
		}
	}
}

// WithBuckets sets the stage duration histogram buckets in seconds.
func WithBuckets(b []float64) Option {
	return func(r *Recorder) {
		if len(b) > 0 {
			r.buckets = b
		}
	}
}

// New builds a Recorder on a fresh registry.
func New(opts ...Option) *Recorder {
	r := &Recorder{
		namespace: "athmon",
		buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10, 30},
		registry:  prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.stageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: r.namespace,
		Subsystem: "prepare",
		Name:      "stage_duration_seconds",
		Help:      "Duration of each preparation stage.",
		Buckets:   r.buckets,
	}, []string{"stage"})
	r.rows = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: r.namespace,
		Subsystem: "prepare",
		Name:      "rows",
		Help:      "Row counts observed at each stage of the last run.",
	}, []string{"stage"})
	r.partitions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: "rolling",
		Name:      "partitions_total",
		Help:      "Partitions processed by the rolling engine.",
	})
	r.evaluations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: "estimator",
		Name:      "evaluations_total",
		Help:      "Estimator calls by stage.",
	}, []string{"stage"})
	r.runs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: "prepare",
		Name:      "runs_total",
		Help:      "Preparation runs by outcome.",
	}, []string{"outcome"})

	r.registry.MustRegister(r.stageDuration, r.rows, r.partitions, r.evaluations, r.runs)
	return r
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Stage returns a func that records the elapsed time of stage when called.
func (r *Recorder) Stage(stage string) func() {
	if r == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		r.stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}

// Rows records the row count seen at stage.
func (r *Recorder) Rows(stage string, n int) {
	if r == nil {
		return
	}
	r.rows.WithLabelValues(stage).Set(float64(n))
}

// Partitions adds n processed partitions.
func (r *Recorder) Partitions(n int) {
	if r == nil {
		return
	}
	r.partitions.Add(float64(n))
}

// Evaluations adds n estimator calls for stage.
func (r *Recorder) Evaluations(stage string, n int64) {
	if r == nil {
		return
	}
	r.evaluations.WithLabelValues(stage).Add(float64(n))
}

// Run counts a finished preparation run.
func (r *Recorder) Run(err error) {
	if r == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.runs.WithLabelValues(outcome).Inc()
}

// WriteTextfile writes the registry in the Prometheus text format to path,
// suitable for the node_exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
