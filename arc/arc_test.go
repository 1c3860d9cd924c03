package arc

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// recMetrics records engine signals for assertions.
type recMetrics struct {
	hits, misses int
	evicts       map[Tier]int
	ghostHits    map[Tier]int
	targets      []int
}

func newRecMetrics() *recMetrics {
	return &recMetrics{evicts: map[Tier]int{}, ghostHits: map[Tier]int{}}
}

func (m *recMetrics) Hit()             { m.hits++ }
func (m *recMetrics) Miss()            { m.misses++ }
func (m *recMetrics) Evict(from Tier)  { m.evicts[from]++ }
func (m *recMetrics) GhostHit(in Tier) { m.ghostHits[in]++ }
func (m *recMetrics) Adapt(p, _ int)   { m.targets = append(m.targets, p) }

func newEngine(t testing.TB, capacity int, m Metrics) *Engine[uint64] {
	t.Helper()
	e, err := New[uint64](Options{Capacity: capacity, Metrics: m})
	require.NoError(t, err)
	return e
}

func accessAll(e *Engine[uint64], keys ...uint64) {
	for _, k := range keys {
		e.Access(k)
	}
}

// checkInvariants walks all four lists and verifies sizes, links,
// disjointness and ghost-index consistency.
func checkInvariants(t testing.TB, e *Engine[uint64]) {
	t.Helper()
	c := e.capacity

	require.LessOrEqual(t, e.t1.len+e.t2.len, c, "resident budget")
	require.LessOrEqual(t, e.t1.len+e.b1.len, c, "|T1|+|B1| <= C")
	require.LessOrEqual(t, e.total(), 2*c, "directory budget")
	require.GreaterOrEqual(t, e.p, 0)
	require.LessOrEqual(t, e.p, c)

	seen := make(map[uint64]Tier)
	for _, tier := range []Tier{T1, T2, B1, B2} {
		l := e.listOf(tier)
		var prev *node[uint64]
		count := 0
		for n := l.head; n != nil; n = n.next {
			require.True(t, n.prev == prev, "broken back link in %s", tier)
			require.Equal(t, tier, n.tier)
			_, dup := seen[n.key]
			require.False(t, dup, "key %d in more than one list", n.key)
			seen[n.key] = tier
			require.True(t, e.index[n.key] == n, "index does not point at node %d", n.key)
			prev = n
			count++
		}
		require.True(t, l.tail == prev, "tail mismatch in %s", tier)
		require.Equal(t, count, l.len, "len mismatch in %s", tier)
	}
	require.Len(t, e.index, len(seen))

	for k, g := range e.ghost {
		tier := seen[k]
		require.Equal(t, tier == B1 || tier == B2, g, "ghost flag for %d (tier %s)", k, tier)
	}
	for k, tier := range seen {
		require.Equal(t, tier == B1 || tier == B2, e.Ghost(k), "ghost lookup for %d", k)
	}
}

func TestNew_InvalidCapacity(t *testing.T) {
	t.Parallel()

	for _, c := range []int{0, -1, -100} {
		e, err := New[uint64](Options{Capacity: c})
		require.ErrorIs(t, err, ErrInvalidCapacity)
		require.Nil(t, e)
	}
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	e := newEngine(t, 3, nil)
	require.Equal(t, 3, e.Capacity())
	require.Equal(t, 0, e.Target())
	require.True(t, math.IsNaN(e.HitRate()), "hit rate must be NaN before any access")
	require.True(t, math.IsNaN(e.MissRate()), "miss rate must be NaN before any access")
	require.False(t, e.Ghost(42), "unknown keys are not ghosts")
	require.Equal(t, None, e.Tier(42))
}

// C=2, [1,1,1]: cold miss into T1, then hits that move and keep the key in T2.
func TestAccess_RepeatedKeyPromotesToT2(t *testing.T) {
	t.Parallel()

	e := newEngine(t, 2, nil)

	e.Access(1)
	require.Equal(t, T1, e.Tier(1))
	require.Equal(t, uint64(1), e.Misses())

	e.Access(1)
	require.Equal(t, T2, e.Tier(1))
	require.Zero(t, e.Len(T1), "key must leave T1 on the second access")

	e.Access(1)
	require.Equal(t, []uint64{1}, e.Keys(T2))
	require.Equal(t, uint64(2), e.Hits())
	require.Equal(t, uint64(1), e.Misses())
	require.InDelta(t, 2.0/3.0, e.HitRate(), 1e-12)
	require.InDelta(t, 1.0/3.0, e.MissRate(), 1e-12)
	checkInvariants(t, e)
}

// C=4, [1,2,3,4,5,1,2,3,4,5]. The 5th key takes the directory-full branch
// with |T1| == C, so the T1 LRU is dropped without ghost admission and the
// second pass sees only cold misses.
func TestAccess_ScanPastCapacity(t *testing.T) {
	t.Parallel()

	m := newRecMetrics()
	e := newEngine(t, 4, m)

	accessAll(e, 1, 2, 3, 4)
	require.Equal(t, []uint64{4, 3, 2, 1}, e.Keys(T1))
	require.Zero(t, e.Evictions())

	e.Access(5)
	require.Equal(t, uint64(1), e.Evictions(), "exactly one eviction before 5 is admitted")
	require.Equal(t, 1, m.evicts[T1])
	require.Equal(t, []uint64{5, 4, 3, 2}, e.Keys(T1))
	require.Zero(t, e.Len(B1), "direct T1 drop must not admit a ghost")
	require.False(t, e.Ghost(1))

	accessAll(e, 1, 2, 3, 4, 5)
	require.Equal(t, uint64(0), e.Hits())
	require.Equal(t, uint64(10), e.Misses())
	require.Equal(t, uint64(6), e.Evictions())
	require.Empty(t, m.ghostHits)
	require.Equal(t, []uint64{5, 4, 3, 2}, e.Keys(T1))
	checkInvariants(t, e)
}

// A key evicted from T1 while T2 is populated lands in B1 and is then
// served as a ghost hit that grows p and promotes the key into T2.
func TestAccess_GhostHitInB1(t *testing.T) {
	t.Parallel()

	m := newRecMetrics()
	e := newEngine(t, 4, m)

	accessAll(e, 1, 1, 2, 3, 4)
	require.Equal(t, []uint64{4, 3, 2}, e.Keys(T1))
	require.Equal(t, []uint64{1}, e.Keys(T2))

	e.Access(5) // directory not full, total == C: replace(false) demotes 2
	require.Equal(t, []uint64{2}, e.Keys(B1))
	require.True(t, e.Ghost(2))

	e.Access(2)
	require.Equal(t, 1, m.ghostHits[B1])
	require.Equal(t, 1, e.Target(), "p grows by max(1, |B2|/|B1|)")
	require.Equal(t, []uint64{2, 1}, e.Keys(T2), "ghost hit resolves to the front of T2")
	require.Equal(t, []uint64{5, 4}, e.Keys(T1))
	require.Equal(t, []uint64{3}, e.Keys(B1))
	require.False(t, e.Ghost(2))
	require.True(t, e.Ghost(3))

	require.Equal(t, uint64(1), e.Hits())
	require.Equal(t, uint64(6), e.Misses())
	require.Equal(t, uint64(2), e.Evictions())
	checkInvariants(t, e)
}

// A key evicted from T2 lands in B2; its ghost hit shrinks p (clamped at 0)
// and frees a slot by demoting T1's LRU into B1.
func TestAccess_GhostHitInB2(t *testing.T) {
	t.Parallel()

	m := newRecMetrics()
	e := newEngine(t, 2, m)

	accessAll(e, 1, 1, 2, 2)
	require.Equal(t, []uint64{2, 1}, e.Keys(T2))

	e.Access(3) // T1 empty: replace(false) demotes T2's LRU
	require.Equal(t, []uint64{1}, e.Keys(B2))
	require.Equal(t, []uint64{3}, e.Keys(T1))

	e.Access(1)
	require.Equal(t, 1, m.ghostHits[B2])
	require.Equal(t, 0, e.Target())
	require.Equal(t, []uint64{1, 2}, e.Keys(T2))
	require.Equal(t, []uint64{3}, e.Keys(B1))
	require.Empty(t, e.Keys(B2))
	require.Empty(t, e.Keys(T1))

	require.Equal(t, uint64(2), e.Hits())
	require.Equal(t, uint64(4), e.Misses())
	require.Equal(t, uint64(2), e.Evictions())
	checkInvariants(t, e)
}

// Any key found resident or in a ghost list ends up at the front of T2
// and nowhere else.
func TestAccess_PromotionLaw(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewSource(7))
	for _, c := range []int{1, 2, 3, 8, 32} {
		e := newEngine(t, c, nil)
		for i := 0; i < 5_000; i++ {
			k := uint64(r.Intn(3 * c))
			before := e.Tier(k)
			e.Access(k)
			if before != None {
				require.Equal(t, T2, e.Tier(k))
				require.Equal(t, k, e.Keys(T2)[0])
				require.False(t, e.Ghost(k))
			} else {
				require.Equal(t, T1, e.Tier(k))
				require.Equal(t, k, e.Keys(T1)[0])
			}
		}
	}
}

// Random access patterns over small key spaces must preserve every
// structural invariant after each call.
func TestAccess_InvariantsRandomized(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		capacity int
		universe int
		seed     int64
	}{
		{"c1", 1, 4, 1},
		{"c2", 2, 6, 2},
		{"c4_tight", 4, 5, 3},
		{"c8", 8, 16, 4},
		{"c16_wide", 16, 128, 5},
		{"c64", 64, 200, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := newRecMetrics()
			e := newEngine(t, tt.capacity, m)
			r := rand.New(rand.NewSource(tt.seed))
			for i := 0; i < 4_000; i++ {
				e.Access(uint64(r.Intn(tt.universe)))
				checkInvariants(t, e)
			}
			require.Equal(t, uint64(4_000), e.Hits()+e.Misses())
			require.Equal(t, m.hits, int(e.Hits()))
			require.Equal(t, m.misses, int(e.Misses()))
		})
	}
}

// p must stay inside [0, C] under patterns that keep hitting one ghost list.
func TestAccess_AdaptationBounds(t *testing.T) {
	t.Parallel()

	const c = 8

	t.Run("recency_heavy", func(t *testing.T) {
		// A small hot set keeps T2 populated while a wide cold stream
		// churns T1, so re-referenced cold keys come back from B1.
		m := newRecMetrics()
		e := newEngine(t, c, m)
		r := rand.New(rand.NewSource(11))
		for i := 0; i < 20_000; i++ {
			if i%4 == 0 {
				e.Access(uint64(r.Intn(2)))
			} else {
				e.Access(100 + uint64(r.Intn(2*c)))
			}
			checkInvariants(t, e)
		}
		require.Positive(t, m.ghostHits[B1]+m.ghostHits[B2])
		for _, p := range m.targets {
			require.GreaterOrEqual(t, p, 0)
			require.LessOrEqual(t, p, c)
		}
	})

	t.Run("frequency_heavy", func(t *testing.T) {
		// Keys are touched twice before moving on, so everything lands in
		// T2 and evictions feed B2.
		m := newRecMetrics()
		e := newEngine(t, c, m)
		r := rand.New(rand.NewSource(12))
		for i := 0; i < 10_000; i++ {
			k := uint64(r.Intn(3 * c))
			e.Access(k)
			e.Access(k)
			checkInvariants(t, e)
		}
		for _, p := range m.targets {
			require.GreaterOrEqual(t, p, 0)
			require.LessOrEqual(t, p, c)
		}
	})
}

// ResetStats zeroes counters only; subsequent counts equal the deltas a
// non-reset twin engine accumulates over the same accesses.
func TestResetStats_KeepsLearnedState(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewSource(3))
	warm := make([]uint64, 2_000)
	for i := range warm {
		warm[i] = uint64(r.Intn(48))
	}
	tail := make([]uint64, 1_000)
	for i := range tail {
		tail[i] = uint64(r.Intn(48))
	}

	reset := newEngine(t, 16, nil)
	twin := newEngine(t, 16, nil)
	accessAll(reset, warm...)
	accessAll(twin, warm...)

	p, t1, t2 := reset.Target(), reset.Keys(T1), reset.Keys(T2)
	reset.ResetStats()
	require.Zero(t, reset.Hits())
	require.Zero(t, reset.Misses())
	require.Zero(t, reset.Evictions())
	require.Equal(t, p, reset.Target(), "ResetStats must not touch p")
	require.Equal(t, t1, reset.Keys(T1))
	require.Equal(t, t2, reset.Keys(T2))

	h0, m0, e0 := twin.Hits(), twin.Misses(), twin.Evictions()
	accessAll(reset, tail...)
	accessAll(twin, tail...)

	require.Equal(t, twin.Hits()-h0, reset.Hits())
	require.Equal(t, twin.Misses()-m0, reset.Misses())
	require.Equal(t, twin.Evictions()-e0, reset.Evictions())
	require.Equal(t, twin.Keys(B1), reset.Keys(B1))
	require.Equal(t, twin.Keys(B2), reset.Keys(B2))
}

func TestTier_String(t *testing.T) {
	t.Parallel()

	require.Equal(t, "t1", T1.String())
	require.Equal(t, "t2", T2.String())
	require.Equal(t, "b1", B1.String())
	require.Equal(t, "b2", B2.String())
	require.Equal(t, "none", None.String())
	require.True(t, T1.Resident())
	require.False(t, B2.Resident())
}

func TestPolicy_BuildsIndependentEngines(t *testing.T) {
	t.Parallel()

	p := Policy(Options{Capacity: 999})

	a, err := p.New(4)
	require.NoError(t, err)
	b, err := p.New(8)
	require.NoError(t, err)
	require.Equal(t, 4, a.Capacity())
	require.Equal(t, 8, b.Capacity())

	a.Access(1)
	require.Equal(t, uint64(1), a.Misses())
	require.Zero(t, b.Misses())

	_, err = p.New(0)
	require.ErrorIs(t, err, ErrInvalidCapacity)
}
