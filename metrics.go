package nbadet

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "nbadet"

	OutcomeLabel = "outcome"
	Regular      = "regular"
	EmptySink    = "empty"
	AcceptSink   = "accepting_sink"
)

// Metrics counts the work done by engines and successor caches sharing it. A nil
// *Metrics records nothing.
type Metrics struct {
	steps       *prometheus.CounterVec
	lookups     prometheus.Counter
	memoHits    prometheus.Counter
	redirects   prometheus.Counter
	constructed prometheus.Counter
	components  prometheus.Counter
}

// NewMetrics creates the counters and registers them on reg, if reg is not nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		steps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "steps_total",
				Help:      "Number of macro-state successor computations",
			},
			[]string{OutcomeLabel},
		),
		lookups: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "cache_lookups_total",
				Help:      "Number of successor requests seen by the smart successor cache",
			},
		),
		memoHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "cache_memo_hits_total",
				Help:      "Number of successor requests answered from the memo table",
			},
		),
		redirects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "cache_redirects_total",
				Help:      "Number of successors redirected to an already known macro-state",
			},
		),
		constructed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "cache_constructed_states_total",
				Help:      "Number of new macro-states inserted into the smart successor cache",
			},
		),
		components: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "topology_components_total",
				Help:      "Number of powerset components determinized separately",
			},
		),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.steps, m.lookups, m.memoHits, m.redirects, m.constructed, m.components} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeStep(outcome string) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeLookup(hit bool) {
	if m == nil {
		return
	}
	m.lookups.Inc()
	if hit {
		m.memoHits.Inc()
	}
}

func (m *Metrics) observeResolved(redirected bool) {
	if m == nil {
		return
	}
	if redirected {
		m.redirects.Inc()
	} else {
		m.constructed.Inc()
	}
}

func (m *Metrics) observeComponent() {
	if m == nil {
		return
	}
	m.components.Inc()
}
