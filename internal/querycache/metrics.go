package querycache

import "github.com/prometheus/client_golang/prometheus"

// Metrics — счётчики кэша запросов.
type Metrics struct {
	lookups     *prometheus.CounterVec
	loads       *prometheus.CounterVec
	invalidated prometheus.Counter
	evicted     prometheus.Counter
	discarded   prometheus.Counter
}

// NewMetrics создаёт и регистрирует счётчики в reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "studio",
			Subsystem: "querycache",
			Name:      "lookups_total",
			Help:      "Cache lookups by kind and result (hit, stale, miss).",
		}, []string{"kind", "result"}),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "studio",
			Subsystem: "querycache",
			Name:      "loads_total",
			Help:      "Store loads started by the cache, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		invalidated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "studio",
			Subsystem: "querycache",
			Name:      "invalidated_total",
			Help:      "Entries marked stale by invalidation.",
		}),
		evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "studio",
			Subsystem: "querycache",
			Name:      "evicted_total",
			Help:      "Entries removed by the GC sweep.",
		}),
		discarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "studio",
			Subsystem: "querycache",
			Name:      "discarded_responses_total",
			Help:      "Responses dropped by observers because a newer request superseded them.",
		}),
	}

	reg.MustRegister(m.lookups, m.loads, m.invalidated, m.evicted, m.discarded)

	return m
}

func (m *Metrics) lookup(kind, result string) {
	if m != nil {
		m.lookups.WithLabelValues(kind, result).Inc()
	}
}

func (m *Metrics) load(kind string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.loads.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) invalidate(n int) {
	if m != nil && n > 0 {
		m.invalidated.Add(float64(n))
	}
}

func (m *Metrics) evict(n int) {
	if m != nil && n > 0 {
		m.evicted.Add(float64(n))
	}
}

func (m *Metrics) discard() {
	if m != nil {
		m.discarded.Inc()
	}
}
