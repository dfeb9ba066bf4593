package statusnotifier

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounterIncrement(t *testing.T) {
	counter := NewCounterWithRegistry(
		prometheus.NewRegistry(),
		"tray_events_total",
		"Events handled by the tray controller.",
		"event",
	)

	counter.Increment("session_start")
	counter.Increment("session_start")
	counter.Increment("session_end")

	assert.Equal(t, float64(2), testutil.ToFloat64(counter.vec.WithLabelValues("session_start")))
	assert.Equal(t, float64(1), testutil.ToFloat64(counter.vec.WithLabelValues("session_end")))
}

func TestNopCounterDiscards(t *testing.T) {
	assert.NotPanics(t, func() {
		NopCounter().Increment("anything")
	})
}
