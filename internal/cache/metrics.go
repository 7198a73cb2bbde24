package cache

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks cache effectiveness. All methods are safe on a nil receiver.
type Metrics struct {
	Lookups       *prometheus.CounterVec
	RefreshErrors prometheus.Counter
	Evictions     *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	return NewMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func NewMetricsWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Lookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldcomply_cache_lookups_total",
			Help: "Cache lookups by result (hit, stale, miss)",
		}, []string{"result"}),
		RefreshErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "fieldcomply_cache_refresh_errors_total",
			Help: "Background refreshes that failed and kept the stale entry",
		}),
		Evictions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldcomply_cache_evictions_total",
			Help: "Entries evicted, by reason (expired, invalidated)",
		}, []string{"reason"}),
		FetchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fieldcomply_cache_fetch_duration_seconds",
			Help:    "Duration of cache fetch functions by mode (sync, background)",
			Buckets: prometheus.DefBuckets,
		}, []string{"mode"}),
	}
}

func (m *Metrics) lookup(result string) {
	if m != nil {
		m.Lookups.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) refreshError() {
	if m != nil {
		m.RefreshErrors.Inc()
	}
}

func (m *Metrics) evicted(reason string, n int) {
	if m != nil && n > 0 {
		m.Evictions.WithLabelValues(reason).Add(float64(n))
	}
}

func (m *Metrics) fetched(mode string, start time.Time) {
	if m != nil {
		m.FetchDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	}
}
