package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Reservation("reserve", "ok")
		m.Contribution("ok")
		m.Event("amqp", errors.New("down"))
		m.SubscriberDelta(1)
		m.Dropped()
		m.CacheResult(true)
	})
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.Reservation("reserve", "already_reserved")
	m.Reservation("reserve", "already_reserved")
	m.Event("amqp", errors.New("down"))
	m.Event("local", nil)
	m.SubscriberDelta(2)
	m.SubscriberDelta(-1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.reservations.WithLabelValues("reserve", "already_reserved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues("amqp", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues("local", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.subscribers))
}
