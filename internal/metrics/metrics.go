// Package metrics holds the Prometheus collectors of the wishlist service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the service counters.  A nil *Metrics is valid and
// records nothing, which keeps tests free of registry plumbing.
type Metrics struct {
	reservations  *prometheus.CounterVec
	contributions *prometheus.CounterVec
	events        *prometheus.CounterVec
	subscribers   prometheus.Gauge
	dropped       prometheus.Counter
	cache         *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wishly",
			Name:      "reservation_attempts_total",
			Help:      "Reserve and unreserve attempts by outcome.",
		}, []string{"op", "result"}),
		contributions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wishly",
			Name:      "contribution_attempts_total",
			Help:      "Contribution attempts by outcome.",
		}, []string{"result"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wishly",
			Name:      "events_published_total",
			Help:      "Wishlist events handed to a transport.",
		}, []string{"transport", "result"}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wishly",
			Name:      "realtime_subscribers",
			Help:      "Open websocket subscriptions on this instance.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wishly",
			Name:      "realtime_dropped_events_total",
			Help:      "Events dropped because a subscriber queue was full.",
		}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wishly",
			Name:      "snapshot_cache_requests_total",
			Help:      "Snapshot cache lookups by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.reservations, m.contributions, m.events, m.subscribers, m.dropped, m.cache)
	return m
}

func (m *Metrics) Reservation(op, result string) {
	if m != nil {
		m.reservations.WithLabelValues(op, result).Inc()
	}
}

func (m *Metrics) Contribution(result string) {
	if m != nil {
		m.contributions.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) Event(transport string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.events.WithLabelValues(transport, result).Inc()
}

func (m *Metrics) SubscriberDelta(d int) {
	if m != nil {
		m.subscribers.Add(float64(d))
	}
}

func (m *Metrics) Dropped() {
	if m != nil {
		m.dropped.Inc()
	}
}

func (m *Metrics) CacheResult(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cache.WithLabelValues("hit").Inc()
		return
	}
	m.cache.WithLabelValues("miss").Inc()
}
