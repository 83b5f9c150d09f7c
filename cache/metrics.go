package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records coordinator activity. A nil *Metrics is valid and records nothing.
type Metrics struct {
	lookups *prometheus.CounterVec
	writes  *prometheus.CounterVec
	fetches *prometheus.CounterVec
	state   prometheus.Gauge
}

// NewMetrics registers the coordinator collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		lookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trackcache_cache_lookups_total",
				Help: "Cache lookups by outcome (hit, miss, bypass, unavailable, format_error)",
			},
			[]string{"outcome"},
		),
		writes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trackcache_cache_writes_total",
				Help: "Cache writes by result (stored, dropped, bypass)",
			},
			[]string{"result"},
		),
		fetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trackcache_source_fetches_total",
				Help: "Source of truth fetches performed on cache miss by result (ok, error)",
			},
			[]string{"result"},
		),
		state: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "trackcache_cache_state",
				Help: "Coordinator state (0 uninitialized, 1 connecting, 2 connected, 3 degraded, 4 closed)",
			},
		),
	}
}

func (m *Metrics) observeLookup(o Outcome) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(o.String()).Inc()
}

func (m *Metrics) observeWrite(result string) {
	if m == nil {
		return
	}
	m.writes.WithLabelValues(result).Inc()
}

func (m *Metrics) observeFetch(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.fetches.WithLabelValues(result).Inc()
}

func (m *Metrics) observeState(s State) {
	if m == nil {
		return
	}
	m.state.Set(float64(s))
}
