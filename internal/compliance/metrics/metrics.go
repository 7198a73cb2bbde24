package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for compliance recomputation, the recompute
// queue and alert derivation. All methods are safe on a nil receiver.
type Metrics struct {
	// Recompute outcomes by entity kind ("technician", "company") and outcome
	RecomputeTotal *prometheus.CounterVec

	// Recompute latency including requirement resolution and the durable write
	RecomputeDuration *prometheus.HistogramVec

	// Pending credential rows inserted when requirement sets grow
	PendingInserted prometheus.Counter

	// Queue job lifecycle by event ("enqueued", "succeeded", "retried", "dropped")
	Jobs *prometheus.CounterVec

	// Alerts produced per derivation by severity
	Alerts *prometheus.CounterVec
}

// New registers compliance metrics with the default registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers compliance metrics with reg, letting tests use an
// isolated registry.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RecomputeTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldcomply_recompute_total",
			Help: "Total compliance recomputations by entity kind and outcome",
		}, []string{"entity", "outcome"}),
		RecomputeDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fieldcomply_recompute_duration_seconds",
			Help:    "Duration of compliance recomputation including persistence",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"entity"}),
		PendingInserted: f.NewCounter(prometheus.CounterOpts{
			Name: "fieldcomply_pending_credentials_inserted_total",
			Help: "Pending credential placeholders inserted for newly required documents",
		}),
		Jobs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldcomply_recompute_jobs_total",
			Help: "Recompute queue job events",
		}, []string{"event"}),
		Alerts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldcomply_alerts_derived_total",
			Help: "Alerts produced by derivation, by severity",
		}, []string{"severity"}),
	}
}

// ObserveRecompute records one recomputation.
func (m *Metrics) ObserveRecompute(entity string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.RecomputeTotal.WithLabelValues(entity, outcome).Inc()
	m.RecomputeDuration.WithLabelValues(entity).Observe(time.Since(start).Seconds())
}

// AddPendingInserted counts inserted placeholder credentials.
func (m *Metrics) AddPendingInserted(n int) {
	if m != nil {
		m.PendingInserted.Add(float64(n))
	}
}

// IncJob records a queue job event.
func (m *Metrics) IncJob(event string) {
	if m != nil {
		m.Jobs.WithLabelValues(event).Inc()
	}
}

// IncAlert records a derived alert.
func (m *Metrics) IncAlert(severity string) {
	if m != nil {
		m.Alerts.WithLabelValues(severity).Inc()
	}
}
