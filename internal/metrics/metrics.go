// Package metrics exposes Prometheus instrumentation for admissions and dispatch.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors. All methods are safe on a nil receiver.
type Metrics struct {
	Submissions        *prometheus.CounterVec
	DuplicatesRejected prometheus.Counter
	Transitions        *prometheus.CounterVec
	DispatchOutcome    *prometheus.CounterVec
	DispatchDuration   *prometheus.HistogramVec
	ScribeFallbacks    *prometheus.CounterVec
	WaitlistSize       prometheus.Gauge
}

// New registers all collectors with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Submissions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chancery_submissions_total",
			Help: "Accepted applications by pathway",
		}, []string{"program"}),

		DuplicatesRejected: f.NewCounter(prometheus.CounterOpts{
			Name: "chancery_duplicates_rejected_total",
			Help: "Submissions rejected by the duplicate guard",
		}),

		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chancery_status_transitions_total",
			Help: "Committed status changes by source and target status",
		}, []string{"from", "to"}),

		DispatchOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chancery_dispatch_total",
			Help: "Dispatch runs by variant and outcome",
		}, []string{"variant", "outcome"}), // outcome: "completed", "failed", "busy"

		DispatchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chancery_dispatch_duration_seconds",
			Help:    "Wall time of dispatch runs",
			Buckets: []float64{0.1, 0.5, 1, 2, 3, 5, 10, 30},
		}, []string{"variant"}),

		ScribeFallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chancery_scribe_fallbacks_total",
			Help: "Generated texts replaced by the fixed fallback",
		}, []string{"kind"}),

		WaitlistSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "chancery_waitlist_size",
			Help: "Current number of waitlist entries",
		}),
	}
}

// IncSubmission records an accepted application.
func (m *Metrics) IncSubmission(program string) {
	if m != nil {
		m.Submissions.WithLabelValues(program).Inc()
	}
}

// IncDuplicate records a rejected duplicate submission.
func (m *Metrics) IncDuplicate() {
	if m != nil {
		m.DuplicatesRejected.Inc()
	}
}

// IncTransition records a committed status change.
func (m *Metrics) IncTransition(from, to string) {
	if m != nil {
		m.Transitions.WithLabelValues(from, to).Inc()
	}
}

// ObserveDispatch records one dispatch run.
func (m *Metrics) ObserveDispatch(variant, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.DispatchOutcome.WithLabelValues(variant, outcome).Inc()
	if d > 0 {
		m.DispatchDuration.WithLabelValues(variant).Observe(d.Seconds())
	}
}

// IncScribeFallback records a fallback text substitution.
func (m *Metrics) IncScribeFallback(kind string) {
	if m != nil {
		m.ScribeFallbacks.WithLabelValues(kind).Inc()
	}
}

// SetWaitlistSize updates the waitlist gauge.
func (m *Metrics) SetWaitlistSize(n int) {
	if m != nil {
		m.WaitlistSize.Set(float64(n))
	}
}
