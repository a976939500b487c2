package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	assert.NoError(t, m.Track("orders:new_confirmed").End(nil))
	boom := errors.New("boom")
	assert.ErrorIs(t, m.Track("orders:new_confirmed").End(boom), boom)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("orders:new_confirmed", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("orders:new_confirmed", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("orders:new_confirmed")))
}

func TestCounters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.AddPublished("order.confirmed")
	m.AddPurged(3)
	m.AddPurged(0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.published.WithLabelValues("order.confirmed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.purged))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.AddPublished("x")
	m.AddPurged(1)
	assert.NoError(t, m.Track("x").End(nil))
}
