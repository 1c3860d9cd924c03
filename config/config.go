package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned (wrapped) by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Method selects the sampling strategy used to build the curve.
type Method string

const (
	// MethodBaseline sweeps capacities linearly with a fixed step.
	MethodBaseline Method = "baseline"

	// MethodSlope seeds doubling capacities and bisects steep intervals.
	MethodSlope Method = "slope"

	// MethodShards is reserved and terminates the process when run.
	MethodShards Method = "shards"
)

// Workload selects the key stream replayed at each capacity.
type Workload string

const (
	// WorkloadRandom draws 4·C keys uniformly from [0, 8·C).
	WorkloadRandom Workload = "random"

	// WorkloadSequential scans [0, MaxSize/2) four times.
	WorkloadSequential Workload = "sequential"

	// WorkloadTrace replays block ids derived from a CSV access trace.
	WorkloadTrace Workload = "trace"
)

// Defaults applied by AdjustConfig to zero-valued fields.
const (
	DefaultThreshold     = 0.001
	DefaultMaxIterations = 1000
	DefaultBlockSize     = 4096
	DefaultLogLevel      = "info"
)

// MRC is the configuration of one curve construction. It is treated as an
// immutable value: the driver receives a copy per run.
type MRC struct {
	// Method defines the sampling strategy.
	// Supported values:
	//   - "baseline": fixed-step linear sweep
	//   - "slope":    doubling seeds plus slope-driven bisection
	//   - "shards":   reserved, aborts the process
	Method Method `yaml:"method"`

	// Workload defines the replayed key stream: "random", "sequential" or "trace".
	Workload Workload `yaml:"workload"`

	// MinSize and MaxSize bound the sampled capacities (inclusive), in entries.
	MinSize int `yaml:"min_size"`
	MaxSize int `yaml:"max_size"`

	// Samples is the target sample count of the baseline sweep.
	// Zero means the step equals MinSize.
	Samples int `yaml:"samples"`

	// Seed feeds the random workload; equal seeds give equal curves.
	Seed int64 `yaml:"seed"`

	Slope SlopeCfg `yaml:"slope"`

	// Trace is required when Workload is "trace".
	Trace *TraceCfg `yaml:"trace"`

	// Output is the CSV destination; empty means stdout.
	Output string `yaml:"output"`

	Log LogCfg `yaml:"log"`

	// Metrics enables the Prometheus endpoint. If nil, metrics are not served.
	Metrics *MetricsCfg `yaml:"metrics"`
}

// SlopeCfg tunes slope-adaptive refinement.
type SlopeCfg struct {
	// Threshold is the criterion value above which an interval is bisected.
	// Example: 0.001 (slope) or 0.01 (weighted).
	Threshold float64 `yaml:"threshold"`

	// MaxIterations bounds the number of refinement simulations.
	// When exhausted, refinement stops early and the driver logs a warning.
	MaxIterations int `yaml:"max_iterations"`

	// Weighted switches the criterion from slope to slope × interval width,
	// i.e. the absolute miss-rate change across the interval.
	Weighted bool `yaml:"weighted"`
}

// TraceCfg configures the trace workload.
type TraceCfg struct {
	// Path is the CSV trace file.
	Path string `yaml:"path"`

	// Application keeps only rows whose application column matches.
	// Empty accepts every row.
	Application string `yaml:"application"`

	// BlockSize converts byte offsets into block ids. Default 4096.
	BlockSize uint64 `yaml:"block_size"`

	// MaxFileSize is the per-file address-space bound in bytes used to keep
	// files in disjoint block regions. Zero derives it from the trace.
	MaxFileSize uint64 `yaml:"max_file_size"`

	// Limit truncates the replayed block stream. Zero replays everything.
	Limit int `yaml:"limit"`

	// Warmup touches every block of every file extent and resets the
	// counters before the measured replay.
	Warmup bool `yaml:"warmup"`
}

func (cfg *TraceCfg) Enabled() bool {
	return cfg != nil
}

// LogCfg configures zerolog output.
type LogCfg struct {
	// Level is a zerolog level name: trace, debug, info, warn, error.
	Level string `yaml:"level"`

	// Pretty switches from JSON lines to a human-readable console writer.
	Pretty bool `yaml:"pretty"`
}

// MetricsCfg configures the Prometheus endpoint.
type MetricsCfg struct {
	// Addr is the listen address, e.g. ":9090".
	Addr string `yaml:"addr"`

	// Namespace prefixes every exported metric. Default "arcmrc".
	Namespace string `yaml:"namespace"`

	// Serve keeps the process alive after the curve is written so the
	// endpoint can be scraped.
	Serve bool `yaml:"serve"`
}

func (cfg *MetricsCfg) Enabled() bool {
	return cfg != nil && cfg.Addr != ""
}

// AdjustConfig fills zero-valued fields with defaults.
func (cfg *MRC) AdjustConfig() {
	if cfg.Method == "" {
		cfg.Method = MethodBaseline
	}
	if cfg.Workload == "" {
		cfg.Workload = WorkloadRandom
	}
	if cfg.Slope.Threshold == 0 {
		cfg.Slope.Threshold = DefaultThreshold
	}
	if cfg.Slope.MaxIterations == 0 {
		cfg.Slope.MaxIterations = DefaultMaxIterations
	}
	if cfg.Trace.Enabled() && cfg.Trace.BlockSize == 0 {
		cfg.Trace.BlockSize = DefaultBlockSize
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Metrics != nil && cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "arcmrc"
	}
}

// Validate reports the first invalid field, wrapped in ErrInvalidConfig.
func (cfg *MRC) Validate() error {
	switch cfg.Method {
	case MethodBaseline, MethodSlope, MethodShards:
	default:
		return fmt.Errorf("%w: unknown method %q", ErrInvalidConfig, cfg.Method)
	}
	switch cfg.Workload {
	case WorkloadRandom, WorkloadSequential:
	case WorkloadTrace:
		if !cfg.Trace.Enabled() || cfg.Trace.Path == "" {
			return fmt.Errorf("%w: trace workload requires trace.path", ErrInvalidConfig)
		}
		if cfg.Trace.BlockSize == 0 {
			return fmt.Errorf("%w: trace.block_size must be > 0", ErrInvalidConfig)
		}
		if cfg.Trace.Limit < 0 {
			return fmt.Errorf("%w: trace.limit must be >= 0", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown workload %q", ErrInvalidConfig, cfg.Workload)
	}
	if cfg.MinSize < 1 {
		return fmt.Errorf("%w: min_size must be >= 1, got %d", ErrInvalidConfig, cfg.MinSize)
	}
	if cfg.MaxSize < cfg.MinSize {
		return fmt.Errorf("%w: max_size %d is below min_size %d", ErrInvalidConfig, cfg.MaxSize, cfg.MinSize)
	}
	if cfg.Samples < 0 {
		return fmt.Errorf("%w: samples must be >= 0", ErrInvalidConfig)
	}
	if cfg.Slope.Threshold <= 0 {
		return fmt.Errorf("%w: slope.threshold must be > 0", ErrInvalidConfig)
	}
	if cfg.Slope.MaxIterations < 0 {
		return fmt.Errorf("%w: slope.max_iterations must be >= 0", ErrInvalidConfig)
	}
	return nil
}

// LoadConfig reads a YAML file, applies defaults and validates the result.
func LoadConfig(path string) (*MRC, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat config path: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config yaml file %s: %w", path, err)
	}

	var cfg *MRC
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml from %s: %w", path, err)
	}
	if cfg == nil {
		cfg = &MRC{}
	}
	cfg.AdjustConfig()
	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}
