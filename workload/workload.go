// Package workload provides the key streams replayed against each simulated
// cache capacity.
package workload

import (
	"iter"
	"math/rand"

	"github.com/IvanBrykalov/arcmrc/trace"
)

// Generator yields the access stream for one engine of the given capacity.
type Generator interface {
	Keys(capacity int) iter.Seq[uint64]
}

// Warmer is implemented by generators with a warm-up phase. The driver
// replays Warmup, resets the engine counters and then replays Keys.
type Warmer interface {
	Warmup(capacity int) iter.Seq[uint64]
}

const (
	// RandomLength is the stream length as a multiple of capacity.
	RandomLength = 4
	// RandomUniverse is the key universe as a multiple of capacity.
	RandomUniverse = 8

	// SequentialPasses is the number of scans over the key range.
	SequentialPasses = 4
)

// Random draws RandomLength·C keys uniformly from [0, RandomUniverse·C).
// The source is shared across capacities, so the sequence of capacities
// requested determines every key; use one Random per curve.
type Random struct {
	rng *rand.Rand
}

// NewRandom returns a Random seeded with seed.
func NewRandom(seed int64) *Random {
	return &Random{rng: rand.New(rand.NewSource(seed))}
}

func (r *Random) Keys(capacity int) iter.Seq[uint64] {
	n := RandomLength * capacity
	universe := int64(RandomUniverse * capacity)
	return func(yield func(uint64) bool) {
		for range n {
			if !yield(uint64(r.rng.Int63n(universe))) {
				return
			}
		}
	}
}

// Sequential scans [0, MaxSize/2) SequentialPasses times, regardless of
// capacity. Capacities at or above MaxSize/2 hit on every pass after the first.
type Sequential struct {
	MaxSize int
}

func (s Sequential) Keys(int) iter.Seq[uint64] {
	n := uint64(s.MaxSize / 2)
	return func(yield func(uint64) bool) {
		for range SequentialPasses {
			for k := range n {
				if !yield(k) {
					return
				}
			}
		}
	}
}

// Trace replays block ids from a trace layout.
type Trace struct {
	Layout *trace.Layout

	// Limit truncates the measured stream; 0 means no limit.
	Limit int

	// WarmAll enables the warm-up phase over every file extent.
	WarmAll bool
}

func (t Trace) Keys(int) iter.Seq[uint64] {
	blocks := t.Layout.Blocks()
	if t.Limit <= 0 {
		return blocks
	}
	return func(yield func(uint64) bool) {
		i := 0
		for b := range blocks {
			if i == t.Limit || !yield(b) {
				return
			}
			i++
		}
	}
}

// Warmup returns nil when warm-up is disabled.
func (t Trace) Warmup(int) iter.Seq[uint64] {
	if !t.WarmAll {
		return nil
	}
	return t.Layout.Warmup()
}

var (
	_ Generator = (*Random)(nil)
	_ Generator = Sequential{}
	_ Generator = Trace{}
	_ Warmer    = Trace{}
)
