// Package mrc builds miss-ratio curves by replaying a workload against
// fresh cache engines of many capacities.
//
// Two sampling strategies are provided:
//
//   - baseline: a fixed-step linear sweep over [MinSize, MaxSize];
//   - slope:    capacities doubling from MinSize, then repeated bisection of
//     the steepest interval until every interval is flat enough or the
//     iteration budget is spent.
//
// A Driver is not safe for concurrent use. Each Construct call starts from
// an empty curve; parsed traces are cached across calls.
package mrc

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/IvanBrykalov/arcmrc/arc"
	"github.com/IvanBrykalov/arcmrc/config"
	"github.com/IvanBrykalov/arcmrc/policy"
	"github.com/IvanBrykalov/arcmrc/workload"
)

// ErrUnknownMethod is returned for a method outside the supported set.
var ErrUnknownMethod = errors.New("mrc: unknown method")

// Options configures a Driver. Zero values are safe:
//   - nil Logger  => zerolog.Nop()
//   - nil Metrics => NoopMetrics
//   - nil Policy  => ARC
type Options struct {
	Logger  *zerolog.Logger
	Metrics Metrics
	Policy  policy.Policy
}

// Driver constructs curves. Results of the last Construct are kept until
// the next one.
type Driver struct {
	log     zerolog.Logger
	metrics Metrics
	policy  policy.Policy

	samples Samples
	traces  traceCache

	// simulations counts engine replays in the current Construct.
	simulations int
}

// NewDriver returns a Driver with defaults applied.
func NewDriver(opt Options) *Driver {
	d := &Driver{
		log:     zerolog.Nop(),
		metrics: opt.Metrics,
		policy:  opt.Policy,
	}
	if opt.Logger != nil {
		d.log = *opt.Logger
	}
	if d.metrics == nil {
		d.metrics = NoopMetrics{}
	}
	if d.policy == nil {
		d.policy = arc.Policy(arc.Options{})
	}
	d.traces.items = make(map[traceKey]cachedTrace)
	return d
}

// Construct validates cfg, discards the previous curve and builds a new one
// with cfg.Method. The returned Samples stays owned by the Driver and is
// reset by the next Construct.
//
// Method "shards" logs at fatal level, which terminates the process.
func (d *Driver) Construct(cfg config.MRC) (*Samples, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d.samples.Reset()
	d.simulations = 0

	gen, err := d.generator(cfg)
	if err != nil {
		return nil, err
	}

	log := d.log.With().
		Str("method", string(cfg.Method)).
		Str("workload", string(cfg.Workload)).
		Logger()
	log.Info().Int("min_size", cfg.MinSize).Int("max_size", cfg.MaxSize).Msg("constructing miss-ratio curve")

	switch cfg.Method {
	case config.MethodBaseline:
		err = d.baseline(cfg, gen)
	case config.MethodSlope:
		err = d.slope(cfg, gen, log)
	case config.MethodShards:
		log.Fatal().Msg("shards sampling is not implemented")
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownMethod, cfg.Method)
	}
	if err != nil {
		return nil, err
	}

	log.Info().
		Int("samples", d.samples.Len()).
		Int("simulations", d.simulations).
		Msg("curve constructed")
	return &d.samples, nil
}

// Samples returns the curve of the last Construct.
func (d *Driver) Samples() *Samples { return &d.samples }

// generator builds the key stream source for one Construct. The random
// source is seeded here so repeated runs see identical streams.
func (d *Driver) generator(cfg config.MRC) (workload.Generator, error) {
	switch cfg.Workload {
	case config.WorkloadRandom:
		return workload.NewRandom(cfg.Seed), nil
	case config.WorkloadSequential:
		return workload.Sequential{MaxSize: cfg.MaxSize}, nil
	case config.WorkloadTrace:
		return d.traceWorkload(*cfg.Trace)
	default:
		return nil, fmt.Errorf("%w: unknown workload %q", config.ErrInvalidConfig, cfg.Workload)
	}
}

// simulate replays the workload against a fresh engine of the given
// capacity and records its miss rate.
func (d *Driver) simulate(method config.Method, capacity int, gen workload.Generator) (float64, error) {
	e, err := d.policy.New(capacity)
	if err != nil {
		return 0, fmt.Errorf("mrc: capacity %d: %w", capacity, err)
	}

	if w, ok := gen.(workload.Warmer); ok {
		if keys := w.Warmup(capacity); keys != nil {
			for k := range keys {
				e.Access(k)
			}
			e.ResetStats()
		}
	}
	for k := range gen.Keys(capacity) {
		e.Access(k)
	}

	m := e.MissRate()
	d.samples.Set(capacity, m)
	d.simulations++
	d.metrics.Sample(method, capacity, m)
	d.log.Debug().
		Int("capacity", capacity).
		Float64("miss_rate", m).
		Uint64("accesses", e.Hits()+e.Misses()).
		Msg("simulated")
	return m, nil
}

// baseline sweeps [MinSize, MaxSize] with a fixed step.
func (d *Driver) baseline(cfg config.MRC, gen workload.Generator) error {
	step := cfg.MinSize
	if cfg.Samples > 0 {
		step = max(1, (cfg.MaxSize-cfg.MinSize)/cfg.Samples)
	}
	for c := cfg.MinSize; c <= cfg.MaxSize; c += step {
		if _, err := d.simulate(cfg.Method, c, gen); err != nil {
			return err
		}
	}
	return nil
}

// seeds returns MinSize, 2·MinSize, 4·MinSize, … up to MaxSize, plus
// MaxSize when doubling does not land on it.
func seeds(minSize, maxSize int) []int {
	var out []int
	c := minSize
	for ; c <= maxSize; c *= 2 {
		out = append(out, c)
		if c > maxSize/2 {
			break
		}
	}
	if out[len(out)-1] != maxSize {
		out = append(out, maxSize)
	}
	return out
}

// criterion scores the interval between two adjacent points.
func criterion(lo, hi Point, weighted bool) float64 {
	width := float64(hi.Capacity - lo.Capacity)
	slope := math.Abs(hi.MissRate-lo.MissRate) / width
	if weighted {
		return slope * width
	}
	return slope
}

// steepest returns the index of the left point of the bisectable interval
// with the largest criterion above threshold, preferring the smallest
// capacity on ties, and the number of such intervals.
func steepest(points []Point, threshold float64, weighted bool) (best, candidates int) {
	best = -1
	var bestScore float64
	for i := 0; i+1 < len(points); i++ {
		lo, hi := points[i], points[i+1]
		if hi.Capacity-lo.Capacity < 2 {
			continue
		}
		score := criterion(lo, hi, weighted)
		if !(score > threshold) {
			continue
		}
		candidates++
		if best < 0 || score > bestScore {
			best, bestScore = i, score
		}
	}
	return best, candidates
}

// slope seeds doubling capacities and bisects the steepest interval until
// none exceeds the threshold or the iteration budget is spent.
func (d *Driver) slope(cfg config.MRC, gen workload.Generator, log zerolog.Logger) error {
	for _, c := range seeds(cfg.MinSize, cfg.MaxSize) {
		if _, err := d.simulate(cfg.Method, c, gen); err != nil {
			return err
		}
	}

	threshold, weighted := cfg.Slope.Threshold, cfg.Slope.Weighted
	for round := 0; ; round++ {
		i, candidates := steepest(d.samples.points, threshold, weighted)
		if i < 0 {
			log.Debug().Int("iterations", round).Msg("slope refinement converged")
			return nil
		}
		if round == cfg.Slope.MaxIterations {
			log.Warn().
				Int("max_iterations", cfg.Slope.MaxIterations).
				Int("unrefined_intervals", candidates).
				Msg("slope refinement budget exhausted")
			d.metrics.BudgetExhausted(candidates)
			return nil
		}

		lo, hi := d.samples.points[i].Capacity, d.samples.points[i+1].Capacity
		mid := lo + (hi-lo)/2
		d.metrics.Refine()
		if _, err := d.simulate(cfg.Method, mid, gen); err != nil {
			return err
		}
	}
}
