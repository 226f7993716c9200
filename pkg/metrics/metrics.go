// Package metrics holds the Prometheus instruments of the batch pipeline
// and the read path. Batch runs push them to a gateway on exit.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "locgeo"

// Metrics holds the Prometheus counters, histograms, and gauges.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	ResolveTotal       *prometheus.CounterVec // labels: tier={native,crosswalk,fallback,not_found}
	GeocodeTotal       *prometheus.CounterVec // labels: pass={pip,nearest,water,ungeocodable}
	CountriesProcessed *prometheus.CounterVec // labels: outcome={ok,failed}
	ParentsBuilt       *prometheus.CounterVec // labels: outcome={dissolved,repaired,invalid,skipped}
	Simplified         *prometheus.CounterVec // labels: outcome={simplified,kept,skipped}
	AggregationSkew    prometheus.Counter
	StageDuration      *prometheus.HistogramVec // labels: stage
	LastSuccess        prometheus.Gauge
}

// NewMetrics creates all metrics on a fresh registry. A fresh registry per
// instance keeps tests free of "already registered" panics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		ResolveTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolve_total",
			Help:      "Geometry resolutions by answering tier.",
		}, []string{"tier"}),
		GeocodeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_total",
			Help:      "Geocoded points by the pass that assigned them.",
		}, []string{"pass"}),
		CountriesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "countries_processed_total",
			Help:      "Per-country pipeline passes by outcome.",
		}, []string{"outcome"}),
		ParentsBuilt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parents_built_total",
			Help:      "Parent records produced by dissolve, by outcome.",
		}, []string{"outcome"}),
		Simplified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "simplify_total",
			Help:      "Simplification decisions per record.",
		}, []string{"outcome"}),
		AggregationSkew: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregation_skew_total",
			Help:      "Metric columns excluded from rollup for lack of a rule.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of a pipeline stage for one scope.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"stage"}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last completed pipeline run.",
		}),
	}

	reg.MustRegister(
		m.ResolveTotal,
		m.GeocodeTotal,
		m.CountriesProcessed,
		m.ParentsBuilt,
		m.Simplified,
		m.AggregationSkew,
		m.StageDuration,
		m.LastSuccess,
	)
	return m
}

func (m *Metrics) Resolve(tier string) {
	if m != nil {
		m.ResolveTotal.WithLabelValues(tier).Inc()
	}
}

func (m *Metrics) Geocode(pass string) {
	if m != nil {
		m.GeocodeTotal.WithLabelValues(pass).Inc()
	}
}

func (m *Metrics) Country(outcome string) {
	if m != nil {
		m.CountriesProcessed.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) Parent(outcome string) {
	if m != nil {
		m.ParentsBuilt.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) Simplify(outcome string) {
	if m != nil {
		m.Simplified.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) Skew() {
	if m != nil {
		m.AggregationSkew.Inc()
	}
}

// ObserveStage records the time since start for a stage.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m != nil {
		m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
	}
}

// MarkSuccess sets the last-success gauge.
func (m *Metrics) MarkSuccess(t time.Time) {
	if m != nil {
		m.LastSuccess.Set(float64(t.Unix()))
	}
}

// Push sends all metrics to a Prometheus pushgateway. Batch jobs end before
// a scrape could reach them.
func (m *Metrics) Push(url, job, runID string) error {
	if m == nil || url == "" {
		return nil
	}
	p := push.New(url, job).Gatherer(m.Registry)
	if runID != "" {
		p = p.Grouping("run_id", runID)
	}
	if err := p.Push(); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
