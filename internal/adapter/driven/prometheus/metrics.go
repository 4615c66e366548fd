// Package prometheus implements the AlertMetrics port with Prometheus collectors.
package prometheus

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ericfisherdev/leakwatch/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.AlertMetrics = (*Metrics)(nil)

// Metrics tracks watchlist evaluations and webhook deliveries.
type Metrics struct {
	registry *prometheus.Registry

	Evaluations        prometheus.Counter
	MatchedWatchlists  prometheus.Counter
	EvaluationDuration prometheus.Histogram
	Deliveries         *prometheus.CounterVec
	DeliveryAttempts   *prometheus.HistogramVec
	DeliveryDuration   *prometheus.HistogramVec
	Inflight           prometheus.Gauge
}

// New creates a Metrics instance registered on its own registry, together with
// the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Evaluations: factory.NewCounter(prometheus.CounterOpts{
			Name: "leakwatch_evaluations_total",
			Help: "Total number of device ingest evaluations",
		}),
		MatchedWatchlists: factory.NewCounter(prometheus.CounterOpts{
			Name: "leakwatch_matched_watchlists_total",
			Help: "Total number of watchlists that matched an ingested device",
		}),
		EvaluationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "leakwatch_evaluation_duration_seconds",
			Help:    "Duration of the synchronous part of an evaluation (load, match, fan-out)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		Deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "leakwatch_webhook_deliveries_total",
			Help: "Webhook deliveries by terminal status",
		}, []string{"status"}),
		DeliveryAttempts: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "leakwatch_webhook_delivery_attempts",
			Help:    "HTTP attempts made per webhook delivery",
			Buckets: []float64{1, 2, 3, 4, 5},
		}, []string{"status"}),
		DeliveryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "leakwatch_webhook_delivery_duration_seconds",
			Help:    "Wall time of a webhook delivery including retries",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"status"}),
		Inflight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "leakwatch_webhook_deliveries_inflight",
			Help: "Webhook deliveries currently running",
		}),
	}
}

// ObserveEvaluation records one evaluation and how many watchlists it matched.
func (m *Metrics) ObserveEvaluation(matchedWatchlists int, duration time.Duration) {
	m.Evaluations.Inc()
	m.MatchedWatchlists.Add(float64(matchedWatchlists))
	m.EvaluationDuration.Observe(duration.Seconds())
}

// ObserveDelivery records a finished delivery.
func (m *Metrics) ObserveDelivery(status string, attempts int, duration time.Duration) {
	m.Deliveries.WithLabelValues(status).Inc()
	m.DeliveryAttempts.WithLabelValues(status).Observe(float64(attempts))
	m.DeliveryDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// IncInflight marks a delivery as started.
func (m *Metrics) IncInflight() {
	m.Inflight.Inc()
}

// DecInflight marks a delivery as finished.
func (m *Metrics) DecInflight() {
	m.Inflight.Dec()
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
