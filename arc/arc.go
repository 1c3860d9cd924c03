package arc

import (
	"math"

	"github.com/IvanBrykalov/arcmrc/policy"
)

// Engine simulates ARC for one fixed capacity.
// It is not safe for concurrent use (see package docs).
type Engine[K comparable] struct {
	capacity int
	p        int // target size of T1

	t1, t2 list[K] // resident
	b1, b2 list[K] // ghosts

	// index holds every node currently in one of the four lists.
	index map[K]*node[K]
	// ghost is true exactly for keys in B1 ∪ B2. Entries are never deleted.
	ghost map[K]bool

	hits      uint64
	misses    uint64
	evictions uint64

	metrics Metrics
}

// New constructs an Engine. It returns ErrInvalidCapacity if
// opt.Capacity < MinimumCapacity.
func New[K comparable](opt Options) (*Engine[K], error) {
	if opt.Capacity < MinimumCapacity {
		return nil, minCapacityError(opt.Capacity)
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	return &Engine[K]{
		capacity: opt.Capacity,
		index:    make(map[K]*node[K], 2*opt.Capacity),
		ghost:    make(map[K]bool),
		metrics:  opt.Metrics,
	}, nil
}

// Policy returns a policy.Policy that builds a fresh uint64-keyed Engine
// per capacity. opt.Capacity is ignored.
func Policy(opt Options) policy.Policy {
	return policy.Func(func(capacity int) (policy.Engine, error) {
		o := opt
		o.Capacity = capacity
		e, err := New[uint64](o)
		if err != nil {
			return nil, err
		}
		return e, nil
	})
}

// Access touches key and updates hit/miss counters.
func (e *Engine[K]) Access(key K) {
	n := e.index[key]

	// case 1: resident hit, promote to T2
	if n != nil && n.tier.Resident() {
		e.hits++
		e.metrics.Hit()
		e.listOf(n.tier).remove(n)
		e.push(&e.t2, n, T2)
		return
	}

	e.misses++
	e.metrics.Miss()

	if e.isGhost(key) {
		if n == nil || n.tier.Resident() {
			panic("arc: ghost index out of sync with ghost lists")
		}
		if n.tier == B1 {
			// case 2: recency is paying off, grow T1's target.
			e.p = min(e.p+max(1, e.b2.len/e.b1.len), e.capacity)
			e.metrics.GhostHit(B1)
			e.metrics.Adapt(e.p, e.capacity)
			e.replace(false)
			e.b1.remove(n)
		} else {
			// case 3: frequency is paying off, shrink T1's target.
			e.p = max(e.p-max(1, e.b1.len/e.b2.len), 0)
			e.metrics.GhostHit(B2)
			e.metrics.Adapt(e.p, e.capacity)
			e.replace(true)
			e.b2.remove(n)
		}
		e.ghost[key] = false
		e.push(&e.t2, n, T2)
		return
	}

	// case 4: cold miss, admit into T1.
	if e.t1.len+e.b1.len == e.capacity {
		if e.t1.len < e.capacity {
			e.dropGhost(&e.b1)
			e.replace(false)
		} else {
			e.dropResident(&e.t1, T1)
		}
	} else if total := e.total(); total >= e.capacity {
		if total == 2*e.capacity {
			e.dropGhost(&e.b2)
		}
		e.replace(false)
	}

	n = &node[K]{key: key}
	e.index[key] = n
	e.push(&e.t1, n, T1)
}

// replace frees one resident slot by demoting the LRU of T1 into B1 or the
// LRU of T2 into B2. biasT2 breaks the |T1| == p tie toward evicting T1.
func (e *Engine[K]) replace(biasT2 bool) {
	if e.t1.len > 0 && (e.t1.len > e.p || (biasT2 && e.t1.len == e.p)) {
		e.demote(&e.t1, &e.b1, T1, B1)
		return
	}
	// T2 is never empty here while the invariants hold.
	if e.t2.len == 0 {
		e.demote(&e.t1, &e.b1, T1, B1)
		return
	}
	e.demote(&e.t2, &e.b2, T2, B2)
}

// demote moves the LRU of a resident list to the head of its ghost list.
func (e *Engine[K]) demote(from, to *list[K], fromTier, toTier Tier) {
	n := from.back()
	if n == nil {
		return
	}
	from.remove(n)
	e.push(to, n, toTier)
	e.ghost[n.key] = true
	e.evictions++
	e.metrics.Evict(fromTier)
}

// dropGhost forgets the LRU of a ghost list.
func (e *Engine[K]) dropGhost(l *list[K]) {
	n := l.back()
	if n == nil {
		return
	}
	l.remove(n)
	delete(e.index, n.key)
	e.ghost[n.key] = false
}

// dropResident evicts the LRU of a resident list without ghost admission.
func (e *Engine[K]) dropResident(l *list[K], tier Tier) {
	n := l.back()
	if n == nil {
		return
	}
	l.remove(n)
	delete(e.index, n.key)
	e.evictions++
	e.metrics.Evict(tier)
}

func (e *Engine[K]) push(l *list[K], n *node[K], tier Tier) {
	n.tier = tier
	l.pushFront(n)
}

func (e *Engine[K]) listOf(t Tier) *list[K] {
	switch t {
	case T1:
		return &e.t1
	case T2:
		return &e.t2
	case B1:
		return &e.b1
	case B2:
		return &e.b2
	default:
		return nil
	}
}

// isGhost is a get-or-default lookup: unknown keys are not ghosts.
func (e *Engine[K]) isGhost(key K) bool {
	g, ok := e.ghost[key]
	if !ok {
		return false
	}
	return g
}

func (e *Engine[K]) total() int { return e.t1.len + e.t2.len + e.b1.len + e.b2.len }

// -------------------- statistics --------------------

// Capacity returns the fixed number of resident slots.
func (e *Engine[K]) Capacity() int { return e.capacity }

// Target returns p, the adaptive target size of T1.
func (e *Engine[K]) Target() int { return e.p }

func (e *Engine[K]) Hits() uint64      { return e.hits }
func (e *Engine[K]) Misses() uint64    { return e.misses }
func (e *Engine[K]) Evictions() uint64 { return e.evictions }

// HitRate returns hits/(hits+misses), or NaN before the first access.
func (e *Engine[K]) HitRate() float64 {
	total := e.hits + e.misses
	if total == 0 {
		return math.NaN()
	}
	return float64(e.hits) / float64(total)
}

// MissRate returns misses/(hits+misses), or NaN before the first access.
func (e *Engine[K]) MissRate() float64 {
	total := e.hits + e.misses
	if total == 0 {
		return math.NaN()
	}
	return float64(e.misses) / float64(total)
}

// ResetStats zeroes hit, miss and eviction counters. Lists and p are kept,
// so a warm-up phase can be excluded from the measurement.
func (e *Engine[K]) ResetStats() {
	e.hits, e.misses, e.evictions = 0, 0, 0
}

// -------------------- introspection --------------------

// Len returns the number of keys in the given list.
func (e *Engine[K]) Len(t Tier) int {
	if l := e.listOf(t); l != nil {
		return l.len
	}
	return 0
}

// Tier reports which list holds key, or None.
func (e *Engine[K]) Tier(key K) Tier {
	if n := e.index[key]; n != nil {
		return n.tier
	}
	return None
}

// Resident reports whether key is cached (in T1 or T2).
func (e *Engine[K]) Resident(key K) bool { return e.Tier(key).Resident() }

// Ghost reports the ghost-index value for key (false for unknown keys).
func (e *Engine[K]) Ghost(key K) bool { return e.isGhost(key) }

// Keys returns the contents of a list from MRU to LRU.
func (e *Engine[K]) Keys(t Tier) []K {
	if l := e.listOf(t); l != nil {
		return l.keys()
	}
	return nil
}

var _ policy.Engine = (*Engine[uint64])(nil)
