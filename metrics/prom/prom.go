package prom

import (
	"math"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/IvanBrykalov/arcmrc/arc"
	"github.com/IvanBrykalov/arcmrc/config"
	"github.com/IvanBrykalov/arcmrc/mrc"
)

// Adapter implements arc.Metrics and mrc.Metrics and exports Prometheus
// counters/gauges. Safe for concurrent use; all Prometheus metric types are
// goroutine-safe.
type Adapter struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	evicts    *prometheus.CounterVec
	ghostHits *prometheus.CounterVec
	target    prometheus.Gauge

	simulations *prometheus.CounterVec
	refinements prometheus.Counter
	exhausted   prometheus.Counter
	unrefined   prometheus.Gauge
	missRate    prometheus.Histogram
}

// New constructs a Prometheus metrics adapter.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: name, Help: help, ConstLabels: constLabels,
		})
	}
	counterVec := func(name, help, label string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: name, Help: help, ConstLabels: constLabels,
		}, []string{label})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub, Name: name, Help: help, ConstLabels: constLabels,
		})
	}

	a := &Adapter{
		hits:      counter("hits_total", "Simulated cache hits"),
		misses:    counter("misses_total", "Simulated cache misses"),
		evicts:    counterVec("evictions_total", "Resident evictions by source list", "tier"),
		ghostHits: counterVec("ghost_hits_total", "Misses that found the key in a ghost list", "tier"),
		target:    gauge("target_ratio", "Adaptive T1 target as a fraction of capacity (last update)"),

		simulations: counterVec("simulations_total", "Engines replayed per sampling method", "method"),
		refinements: counter("refinements_total", "Slope bisection steps"),
		exhausted:   counter("budget_exhausted_total", "Slope refinements stopped by the iteration budget"),
		unrefined:   gauge("unrefined_intervals", "Intervals above threshold when the budget last ran out"),
		missRate: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "miss_rate",
			Help:        "Distribution of sampled miss rates",
			Buckets:     prometheus.LinearBuckets(0.1, 0.1, 10),
			ConstLabels: constLabels,
		}),
	}
	reg.MustRegister(a.hits, a.misses, a.evicts, a.ghostHits, a.target,
		a.simulations, a.refinements, a.exhausted, a.unrefined, a.missRate)
	return a
}

// NewFromConfig registers the adapter under cfg.Namespace.
func NewFromConfig(reg prometheus.Registerer, cfg *config.MetricsCfg) *Adapter {
	ns := "arcmrc"
	if cfg != nil && cfg.Namespace != "" {
		ns = cfg.Namespace
	}
	return New(reg, ns, "", nil)
}

// Hit increments the hit counter.
func (a *Adapter) Hit() { a.hits.Inc() }

// Miss increments the miss counter.
func (a *Adapter) Miss() { a.misses.Inc() }

// Evict increments the eviction counter with the source list label.
func (a *Adapter) Evict(from arc.Tier) { a.evicts.WithLabelValues(from.String()).Inc() }

// GhostHit increments the ghost-hit counter with the ghost list label.
func (a *Adapter) GhostHit(in arc.Tier) { a.ghostHits.WithLabelValues(in.String()).Inc() }

// Adapt records p/C.
func (a *Adapter) Adapt(target, capacity int) {
	if capacity > 0 {
		a.target.Set(float64(target) / float64(capacity))
	}
}

// Sample counts one simulation and observes its miss rate. Undefined rates
// (no accesses) are counted but not observed.
func (a *Adapter) Sample(method config.Method, _ int, missRate float64) {
	a.simulations.WithLabelValues(string(method)).Inc()
	if !math.IsNaN(missRate) {
		a.missRate.Observe(missRate)
	}
}

// Refine counts one bisection step.
func (a *Adapter) Refine() { a.refinements.Inc() }

// BudgetExhausted counts an early stop and records how much was left.
func (a *Adapter) BudgetExhausted(unrefined int) {
	a.exhausted.Inc()
	a.unrefined.Set(float64(unrefined))
}

// Compile-time checks.
var (
	_ arc.Metrics = (*Adapter)(nil)
	_ mrc.Metrics = (*Adapter)(nil)
)
