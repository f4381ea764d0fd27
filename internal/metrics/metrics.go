// Package metrics holds the prometheus collectors of the rate pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"ratefeed/internal/rate"
)

// RateMetrics groups the pipeline collectors. A nil *RateMetrics records nothing.
type RateMetrics struct {
	SourceFetchTotal    *prometheus.CounterVec
	SourceFetchDuration *prometheus.HistogramVec
	ResolutionsTotal    *prometheus.CounterVec
	CurrentRate         *prometheus.GaugeVec
	RateObservedAt      *prometheus.GaugeVec
	SubscriberErrors    prometheus.Counter
	Subscribers         prometheus.Gauge
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewRateMetrics registers the collectors on reg. Pass prometheus.DefaultRegisterer
// to expose them on /metrics.
func NewRateMetrics(reg prometheus.Registerer) *RateMetrics {
	f := promauto.With(reg)
	return &RateMetrics{
		SourceFetchTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ratefeed_source_fetch_total",
				Help: "Source adapter fetches by outcome",
			},
			[]string{"source", "outcome"},
		),

		SourceFetchDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ratefeed_source_fetch_duration_seconds",
				Help:    "Time spent in one source adapter fetch, fallbacks included",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms .. ~25s
			},
			[]string{"source"},
		),

		ResolutionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ratefeed_resolutions_total",
				Help: "Resolution cycles by winning source label",
			},
			[]string{"source"},
		),

		CurrentRate: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ratefeed_current_rate",
				Help: "Current base units per target unit",
			},
			[]string{"base", "target"},
		),

		RateObservedAt: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ratefeed_current_rate_observed_timestamp_seconds",
				Help: "Unix time at which the current rate was observed",
			},
			[]string{"base", "target"},
		),

		SubscriberErrors: f.NewCounter(
			prometheus.CounterOpts{
				Name: "ratefeed_subscriber_errors_total",
				Help: "Subscriber callbacks that returned an error or panicked",
			},
		),

		Subscribers: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "ratefeed_subscribers",
				Help: "Registered rate subscribers",
			},
		),

		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ratefeed_http_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}
}

// RecordFetch counts one adapter call.
func (m *RateMetrics) RecordFetch(source string, err error, took time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.SourceFetchTotal.WithLabelValues(source, outcome).Inc()
	m.SourceFetchDuration.WithLabelValues(source).Observe(took.Seconds())
}

// RecordResolution publishes the rate chosen by a cycle.
func (m *RateMetrics) RecordResolution(r rate.ConversionRate) {
	if m == nil {
		return
	}
	m.ResolutionsTotal.WithLabelValues(r.Source).Inc()
	m.CurrentRate.WithLabelValues(r.From, r.To).Set(r.Rate)
	m.RateObservedAt.WithLabelValues(r.From, r.To).Set(float64(r.ObservedAt.UnixNano()) / 1e9)
}

// RecordSubscriberError counts a failed subscriber callback.
func (m *RateMetrics) RecordSubscriberError() {
	if m == nil {
		return
	}
	m.SubscriberErrors.Inc()
}

// SetSubscribers reports the registry size.
func (m *RateMetrics) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.Subscribers.Set(float64(n))
}
