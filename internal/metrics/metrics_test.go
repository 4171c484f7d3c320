package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncSubmission("Nexus")
	m.IncSubmission("Nexus")
	m.IncDuplicate()
	m.IncTransition("New", "Approved")
	m.ObserveDispatch("single", "completed", 2*time.Second)
	m.ObserveDispatch("bulk", "failed", 0)
	m.IncScribeFallback("summons")
	m.SetWaitlistSize(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Submissions.WithLabelValues("Nexus")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DuplicatesRejected))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transitions.WithLabelValues("New", "Approved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DispatchOutcome.WithLabelValues("single", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DispatchOutcome.WithLabelValues("bulk", "failed")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.DispatchDuration))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScribeFallbacks.WithLabelValues("summons")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.WaitlistSize))
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncSubmission("Nexus")
		m.IncDuplicate()
		m.IncTransition("New", "Reviewed")
		m.ObserveDispatch("single", "completed", time.Second)
		m.IncScribeFallback("decision")
		m.SetWaitlistSize(1)
	})
}
