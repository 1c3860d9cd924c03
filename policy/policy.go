// Package policy defines the contracts between a replacement-policy engine
// and the simulation drivers that replay workloads through it.
package policy

// Engine is a single-capacity replacement-policy simulator.
// It owns all of its state; callers must not share an Engine between
// goroutines without external serialization.
//
// Semantics:
//   - Access records exactly one hit or one miss and never reports the
//     policy decision back to the caller.
//   - Statistic readers are pure and may be called between Access calls.
//   - ResetStats zeroes counters only; learned policy state is kept.
type Engine interface {
	Access(key uint64)
	Capacity() int

	Hits() uint64
	Misses() uint64
	Evictions() uint64
	HitRate() float64
	MissRate() float64

	ResetStats()
}

// Policy is a factory that builds a fresh, independently initialized
// Engine for a given capacity. Drivers call it once per sampled capacity.
type Policy interface {
	New(capacity int) (Engine, error)
}

// Func adapts an ordinary function to the Policy interface.
type Func func(capacity int) (Engine, error)

// New implements Policy.
func (f Func) New(capacity int) (Engine, error) { return f(capacity) }
