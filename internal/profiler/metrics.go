package profiler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/coral-mesh/stackprof/internal/stacks"
)

// Metrics are the sampler's Prometheus instruments. Per-state counters are
// resolved up front so a tick never looks up a label set.
type Metrics struct {
	ticks    prometheus.Counter
	races    prometheus.Counter
	failures prometheus.Counter
	tickTime prometheus.Histogram
	samples  []prometheus.Counter
}

// NewMetrics registers the sampler metrics with reg. A nil registerer
// leaves the metrics unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{
		ticks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "stackprof",
			Subsystem: "sampler",
			Name:      "ticks_total",
			Help:      "Number of sampling ticks taken.",
		}),
		races: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "stackprof",
			Subsystem: "sampler",
			Name:      "thread_races_total",
			Help:      "Threads that exited between enumeration and inspection.",
		}),
		failures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "stackprof",
			Subsystem: "sampler",
			Name:      "failures_total",
			Help:      "Sampling cycles aborted by an unexpected error.",
		}),
		tickTime: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "stackprof",
			Subsystem: "sampler",
			Name:      "tick_duration_seconds",
			Help:      "Time spent enumerating and recording threads per tick.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 8),
		}),
	}

	samples := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stackprof",
		Subsystem: "sampler",
		Name:      "samples_total",
		Help:      "Samples recorded, by thread state.",
	}, []string{"state"})
	m.samples = make([]prometheus.Counter, len(stacks.AllStates))
	for _, s := range stacks.AllStates {
		m.samples[s] = samples.WithLabelValues(s.String())
	}
	return m
}

func (m *Metrics) observeSample(state stacks.ThreadState) {
	if m == nil || !state.Valid() {
		return
	}
	m.samples[state].Inc()
}

func (m *Metrics) observeTick(seconds float64) {
	if m == nil {
		return
	}
	m.ticks.Inc()
	m.tickTime.Observe(seconds)
}

func (m *Metrics) observeRace() {
	if m == nil {
		return
	}
	m.races.Inc()
}

func (m *Metrics) observeFailure() {
	if m == nil {
		return
	}
	m.failures.Inc()
}
