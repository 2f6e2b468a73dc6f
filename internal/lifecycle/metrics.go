package lifecycle

import "github.com/prometheus/client_golang/prometheus"

// metrics exposes the awake/sleeping set sizes and eviction activity,
// grounded on the prometheus client_golang dependency carried by the
// pack's flemzord/sclaw and cuemby/warren services.
type metrics struct {
	awakeGauge     prometheus.Gauge
	sleepingGauge  prometheus.Gauge
	evictionsTotal prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		awakeGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "convos_core",
			Subsystem: "lifecycle",
			Name:      "awake_inboxes",
			Help:      "Number of inboxes currently in the awake set.",
		}),
		sleepingGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "convos_core",
			Subsystem: "lifecycle",
			Name:      "sleeping_inboxes",
			Help:      "Number of inboxes currently in the sleeping set.",
		}),
		evictionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "convos_core",
			Subsystem: "lifecycle",
			Name:      "evictions_total",
			Help:      "Number of inboxes evicted by LRU admission pressure.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.awakeGauge, m.sleepingGauge, m.evictionsTotal)
	}
	return m
}

func (m *metrics) refresh(awake, sleeping int) {
	m.awakeGauge.Set(float64(awake))
	m.sleepingGauge.Set(float64(sleeping))
}

func (m *metrics) recordEviction() {
	m.evictionsTotal.Inc()
}
