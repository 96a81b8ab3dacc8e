// Package metrics holds the prometheus collectors for pipeline runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/timmy/transitdw/internal/domain"
)

const namespace = "transitdw"

// Collectors groups the pipeline metrics on a private registry.
type Collectors struct {
	registry *prometheus.Registry

	runs          *prometheus.CounterVec
	records       *prometheus.CounterVec
	rejects       *prometheus.CounterVec
	batchDuration *prometheus.HistogramVec
	runDuration   prometheus.Histogram
	lastRun       *prometheus.GaugeVec
}

// New creates and registers the collectors, plus the Go runtime and process
// collectors.
func New() *Collectors {
	c := &Collectors{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by source and final status.",
		}, []string{"source", "status"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Fact records by table and outcome (inserted, skipped, failed).",
		}, []string{"table", "outcome"}),
		rejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejects_total",
			Help:      "Rejected records by reason.",
		}, []string{"reason"}),
		batchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Time to load one batch.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"table"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a pipeline run.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		lastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished, by status.",
		}, []string{"status"}),
	}
	c.registry.MustRegister(
		c.runs, c.records, c.rejects, c.batchDuration, c.runDuration, c.lastRun,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry exposes the registry for tests and custom handlers.
func (c *Collectors) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the prometheus text format.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveBatch records the load outcome of one batch.
func (c *Collectors) ObserveBatch(table string, inserted, skipped, failed int64, took time.Duration) {
	if c == nil {
		return
	}
	c.records.WithLabelValues(table, "inserted").Add(float64(inserted))
	c.records.WithLabelValues(table, "skipped").Add(float64(skipped))
	c.records.WithLabelValues(table, "failed").Add(float64(failed))
	c.batchDuration.WithLabelValues(table).Observe(took.Seconds())
}

// ObserveRun records a finished run.
func (c *Collectors) ObserveRun(res *domain.JobResult) {
	if c == nil {
		return
	}
	status := string(res.Status)
	c.runs.WithLabelValues(string(res.Source), status).Inc()
	for reason, n := range res.Rejects {
		c.rejects.WithLabelValues(reason).Add(float64(n))
	}
	if !res.EndTime.IsZero() {
		c.runDuration.Observe(res.EndTime.Sub(res.StartTime).Seconds())
		c.lastRun.WithLabelValues(status).Set(float64(res.EndTime.Unix()))
	}
}

// ObserveRejected counts records that failed validation before loading.
func (c *Collectors) ObserveRejected(table string, n int64) {
	if c == nil || n == 0 {
		return
	}
	c.records.WithLabelValues(table, "failed").Add(float64(n))
}
