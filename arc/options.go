package arc

// Tier identifies one of the engine's four lists.
type Tier uint8

const (
	// None is reported for keys the engine does not track.
	None Tier = iota
	// T1 holds resident keys touched once since admission.
	T1
	// T2 holds resident keys touched at least twice.
	T2
	// B1 is the ghost history of keys evicted from T1.
	B1
	// B2 is the ghost history of keys evicted from T2.
	B2
)

// String returns a stable label for the tier (used as a metric label).
func (t Tier) String() string {
	switch t {
	case T1:
		return "t1"
	case T2:
		return "t2"
	case B1:
		return "b1"
	case B2:
		return "b2"
	default:
		return "none"
	}
}

// Resident reports whether keys in this tier are cached (as opposed to ghosts).
func (t Tier) Resident() bool { return t == T1 || t == T2 }

// Metrics exposes engine-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	Hit()
	Miss()
	// Evict is called when a resident key leaves the cache; from is T1 or T2.
	Evict(from Tier)
	// GhostHit is called when a miss is served from the B1 or B2 history.
	GhostHit(in Tier)
	// Adapt reports the new T1 target after a ghost hit.
	Adapt(target, capacity int)
}

// NoopMetrics is a drop-in Metrics implementation that does nothing.
type NoopMetrics struct{}

func (NoopMetrics) Hit()           {}
func (NoopMetrics) Miss()          {}
func (NoopMetrics) Evict(Tier)     {}
func (NoopMetrics) GhostHit(Tier)  {}
func (NoopMetrics) Adapt(int, int) {}

var _ Metrics = NoopMetrics{}

// Options configures an Engine. Zero values other than Capacity are safe:
//   - nil Metrics => NoopMetrics
type Options struct {
	// Capacity is the number of resident keys; must be >= 1.
	Capacity int

	// Metrics receives Hit/Miss/Evict/GhostHit/Adapt signals.
	Metrics Metrics
}
