package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"FinScore/internal/domain/repository"
)

var _ repository.Metrics = (*Recorder)(nil)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	cacheLookups   *prometheus.CounterVec
	cacheEvictions prometheus.Counter
	scanSymbols    *prometheus.CounterVec
	retries        *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	latency        *prometheus.HistogramVec
}

// New creates a recorder whose collectors are registered on reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		cacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finscore_cache_lookups_total",
				Help: "Result cache lookups by layer and outcome",
			},
			[]string{"layer", "result"},
		),
		cacheEvictions: f.NewCounter(
			prometheus.CounterOpts{
				Name: "finscore_cache_evictions_total",
				Help: "Entries evicted from the in-process result cache",
			},
		),
		scanSymbols: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finscore_scan_symbols_total",
				Help: "Scanned symbols by status and failure reason",
			},
			[]string{"status", "reason"},
		),
		retries: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finscore_provider_retries_total",
				Help: "Provider calls retried by reason",
			},
			[]string{"reason"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finscore_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finscore_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordCacheLookup(layer, result string) {
	r.cacheLookups.WithLabelValues(layer, result).Inc()
}

func (r *Recorder) RecordCacheEviction(n int) {
	r.cacheEvictions.Add(float64(n))
}

// RecordScanSymbol counts one finished scan unit. reason is empty for ok.
func (r *Recorder) RecordScanSymbol(status, reason string) {
	r.scanSymbols.WithLabelValues(status, reason).Inc()
}

func (r *Recorder) RecordProviderRetry(reason string) {
	r.retries.WithLabelValues(reason).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
