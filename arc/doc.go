// Package arc implements a simulation engine for the Adaptive Replacement
// Cache (ARC) policy.
//
// An Engine tracks keys only (no values): it exists to count hits, misses
// and evictions for a fixed capacity so that drivers can estimate how the
// miss rate of a workload varies with cache size.
//
// Design
//
//   - Lists: four intrusive MRU→LRU lists. T1 holds resident keys touched
//     once since admission, T2 resident keys touched at least twice (or
//     re-admitted from a ghost list). B1 and B2 are the ghost histories of
//     keys evicted from T1 and T2 respectively.
//
//   - Adaptation: p is the learned target size of T1. A ghost hit in B1
//     grows p (recency is paying off), a ghost hit in B2 shrinks it. The
//     step is max(1, |other ghost| / |this ghost|), clamped to [0, C].
//
//   - Lookup: a key→node map gives O(1) membership and unlinking. Ordering
//     and case selection are identical to a linear scan of the lists.
//
//   - Ghost index: a separate key→bool map answers "is this key a ghost?"
//     with get-or-default false. Entries flip to false when a key leaves
//     B1 or B2 but are never deleted, so the index grows with the number
//     of distinct keys ever evicted while the ghost lists stay bounded.
//
// Invariants (hold between Access calls):
//
//	|T1|+|T2| <= C
//	|T1|+|B1| <= C
//	|T1|+|T2|+|B1|+|B2| <= 2C
//	0 <= p <= C
//	a key is in at most one list; Ghost(k) == (k in B1 ∪ B2)
//
// Basic usage
//
//	e, err := arc.New[uint64](arc.Options{Capacity: 1024})
//	if err != nil {
//	    return err
//	}
//	for _, k := range keys {
//	    e.Access(k)
//	}
//	fmt.Println(e.MissRate())
//
// Thread-safety
//
// An Engine is not safe for concurrent use. Use one Engine per goroutine,
// or serialize Access calls externally; statistic readers may be called
// between Access calls.
package arc
