package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	forecastsTotal *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	indexFallbacks *prometheus.CounterVec
	sampleSize     prometheus.Histogram
	latency        *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		forecastsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventcast_forecasts_total",
				Help: "Total number of forecasts produced, by path and horizon",
			},
			[]string{"source", "horizon"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventcast_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		indexFallbacks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventcast_index_fallbacks_total",
				Help: "Vector index degradations to the fallback backend",
			},
			[]string{"from", "to"},
		),
		sampleSize: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "eventcast_forecast_sample_size",
				Help:    "Matched-neighbor sample sizes per forecast",
				Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64, 128, 200},
			},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "eventcast_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordForecast records a produced forecast.
func (r *Recorder) RecordForecast(source, horizon string) {
	r.forecastsTotal.WithLabelValues(source, horizon).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordIndexFallback records a degradation to the fallback index.
func (r *Recorder) RecordIndexFallback(from, to string) {
	r.indexFallbacks.WithLabelValues(from, to).Inc()
}

// RecordSampleSize records a forecast's matched-neighbor count.
func (r *Recorder) RecordSampleSize(n int) {
	r.sampleSize.Observe(float64(n))
}

// RecordLatency records an operation duration.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
