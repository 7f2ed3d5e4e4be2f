package observability

import (
	"context"
	"net/http"
	"time"

	pkgerrors "districtgraph/pkg/errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the Prometheus metrics for the engine. Each collector owns
// its registry so tests can build as many as they like.
type Collector struct {
	registry *prometheus.Registry

	Operations       *prometheus.CounterVec
	OperationLatency *prometheus.HistogramVec
	NeighborUpdates  *prometheus.CounterVec
	Propagations     prometheus.Counter
	HTTPRequests     *prometheus.CounterVec
}

var _ Recorder = (*Collector)(nil)

// NewCollector creates a collector with the given namespace
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "engine_operations_total",
				Help:      "Engine operations by name and outcome",
			},
			[]string{"operation", "status"},
		),
		OperationLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "engine_operation_duration_seconds",
				Help:      "Engine operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		NeighborUpdates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "neighbor_updates_total",
				Help:      "Neighbour steps by phase and outcome",
			},
			[]string{"phase", "status"},
		),
		Propagations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "demographic_propagations_total",
				Help:      "Group totals overwritten from a unit snapshot",
			},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "status"},
		),
	}

	registry.MustRegister(
		c.Operations,
		c.OperationLatency,
		c.NeighborUpdates,
		c.Propagations,
		c.HTTPRequests,
	)

	return c
}

// Registry exposes the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the metrics in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordOperation implements Recorder
func (c *Collector) RecordOperation(_ context.Context, operation string, duration time.Duration, err error) {
	c.Operations.WithLabelValues(operation, statusOf(err)).Inc()
	c.OperationLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordNeighborOutcome implements Recorder
func (c *Collector) RecordNeighborOutcome(_ context.Context, phase, status string) {
	c.NeighborUpdates.WithLabelValues(phase, status).Inc()
}

// RecordPropagation implements Recorder
func (c *Collector) RecordPropagation(context.Context, string) {
	c.Propagations.Inc()
}

// statusOf classifies err into a bounded label value
func statusOf(err error) string {
	if err == nil {
		return "success"
	}
	if appErr := pkgerrors.GetAppError(err); appErr != nil {
		return string(appErr.Type)
	}
	return "error"
}
