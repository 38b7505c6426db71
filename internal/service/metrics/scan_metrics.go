package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"FinScore/internal/domain/models"
)

// ScanMetrics tracks scan jobs and the last observed market breadth.
type ScanMetrics struct {
	active    prometheus.Gauge
	duration  *prometheus.HistogramVec
	symbols   prometheus.Histogram
	sentiment prometheus.Gauge
	upRatio   prometheus.Gauge
}

func NewScanMetrics(reg prometheus.Registerer) *ScanMetrics {
	f := promauto.With(reg)
	return &ScanMetrics{
		active: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "finscore",
			Subsystem: "scanner",
			Name:      "active_scans",
			Help:      "Scans currently running",
		}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "finscore",
			Subsystem: "scanner",
			Name:      "scan_duration_seconds",
			Help:      "Wall time of finished scans",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"outcome"}),
		symbols: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "finscore",
			Subsystem: "scanner",
			Name:      "scan_symbols",
			Help:      "Symbols requested per scan",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 7),
		}),
		sentiment: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "finscore",
			Subsystem: "market",
			Name:      "sentiment_index",
			Help:      "Breadth sentiment index of the last finished scan",
		}),
		upRatio: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "finscore",
			Subsystem: "market",
			Name:      "up_ratio",
			Help:      "Share of advancing symbols in the last finished scan",
		}),
	}
}

func (m *ScanMetrics) ScanStarted(symbols int) {
	m.active.Inc()
	m.symbols.Observe(float64(symbols))
}

func (m *ScanMetrics) ScanFinished(res *models.ScanResult) {
	m.active.Dec()
	outcome := "completed"
	if res.Cancelled {
		outcome = "cancelled"
	}
	m.duration.WithLabelValues(outcome).Observe(res.FinishedAt.Sub(res.StartedAt).Seconds())
	if res.Breadth != nil && res.Breadth.Total > 0 {
		m.sentiment.Set(res.Breadth.SentimentIndex)
		m.upRatio.Set(res.Breadth.UpRatio)
	}
}
