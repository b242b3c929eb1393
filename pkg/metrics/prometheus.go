package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	candlesStored    *prometheus.CounterVec
	alertsEmitted    *prometheus.CounterVec
	alertsSuppressed *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec
	lastClose        *prometheus.GaugeVec
	latency          *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		candlesStored: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptowatcher_candles_stored_total",
				Help: "Total number of candles sent to a backend",
			},
			[]string{"backend", "symbol"},
		),
		alertsEmitted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptowatcher_alerts_emitted_total",
				Help: "Total number of alerts that fired",
			},
			[]string{"symbol", "direction"},
		),
		alertsSuppressed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptowatcher_alerts_suppressed_total",
				Help: "Total number of alerts held back by the cooldown window",
			},
			[]string{"symbol", "direction"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptowatcher_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastClose: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cryptowatcher_last_close",
				Help: "Last observed close price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cryptowatcher_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordCandle records a candle written to a backend.
func (r *Recorder) RecordCandle(backend, symbol string) {
	r.candlesStored.WithLabelValues(backend, symbol).Inc()
}

// RecordAlert records an alert that fired.
func (r *Recorder) RecordAlert(symbol, direction string) {
	r.alertsEmitted.WithLabelValues(symbol, direction).Inc()
}

// RecordSuppressed records an alert held back by cooldown.
func (r *Recorder) RecordSuppressed(symbol, direction string) {
	r.alertsSuppressed.WithLabelValues(symbol, direction).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastClose records the last close price for a symbol.
func (r *Recorder) RecordLastClose(symbol string, price float64) {
	r.lastClose.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
