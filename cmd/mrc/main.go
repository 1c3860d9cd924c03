// Command mrc builds an ARC miss-ratio curve and writes it as CSV, with
// optional pprof/Prometheus endpoints.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/IvanBrykalov/arcmrc/arc"
	"github.com/IvanBrykalov/arcmrc/config"
	"github.com/IvanBrykalov/arcmrc/internal/logger"
	pmet "github.com/IvanBrykalov/arcmrc/metrics/prom"
	"github.com/IvanBrykalov/arcmrc/mrc"
)

type flags struct {
	configPath string

	method, workload string
	minSize, maxSize int
	samples          int
	seed             int64

	threshold float64
	iters     int
	weighted  bool

	tracePath, app string
	blockSize      uint64
	maxFileSize    uint64
	limit          int
	warmup         bool

	out      string
	logLevel string
	pretty   bool

	metricsAddr string
	serve       bool
	pprofAddr   string
}

func parseFlags(fs *flag.FlagSet, args []string) (*flags, map[string]bool, error) {
	f := &flags{}
	fs.StringVar(&f.configPath, "config", "", "YAML config file; flags override its values")

	fs.StringVar(&f.method, "method", "baseline", "sampling method: baseline | slope | shards")
	fs.StringVar(&f.workload, "workload", "random", "workload: random | sequential | trace")
	fs.IntVar(&f.minSize, "min", 32, "smallest simulated capacity (entries)")
	fs.IntVar(&f.maxSize, "max", 4096, "largest simulated capacity (entries)")
	fs.IntVar(&f.samples, "samples", 0, "baseline sample count (0 = step of min)")
	fs.Int64Var(&f.seed, "seed", 1, "random workload seed")

	fs.Float64Var(&f.threshold, "threshold", config.DefaultThreshold, "slope refinement threshold")
	fs.IntVar(&f.iters, "iters", config.DefaultMaxIterations, "slope refinement iteration budget")
	fs.BoolVar(&f.weighted, "weighted", false, "weight slope by interval width")

	fs.StringVar(&f.tracePath, "trace", "", "CSV trace file (workload=trace)")
	fs.StringVar(&f.app, "app", "", "keep only this application's requests (empty = all)")
	fs.Uint64Var(&f.blockSize, "block", config.DefaultBlockSize, "trace block size (bytes)")
	fs.Uint64Var(&f.maxFileSize, "max-file", 0, "per-file address-space bound in bytes (0 = derived)")
	fs.IntVar(&f.limit, "limit", 0, "truncate the trace block stream (0 = all)")
	fs.BoolVar(&f.warmup, "warmup", false, "touch every traced block before measuring")

	fs.StringVar(&f.out, "out", "", "CSV output path (empty = stdout)")
	fs.StringVar(&f.logLevel, "log-level", config.DefaultLogLevel, "log level: trace | debug | info | warn | error")
	fs.BoolVar(&f.pretty, "pretty", false, "human-readable logs")

	fs.StringVar(&f.metricsAddr, "http", "", "serve Prometheus metrics at addr (e.g. :8080); empty = disabled")
	fs.BoolVar(&f.serve, "serve", false, "keep serving metrics after the curve is written")
	fs.StringVar(&f.pprofAddr, "pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	set := make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	return f, set, nil
}

// buildConfig starts from the config file (if any) and applies every flag
// given explicitly on the command line.
func buildConfig(f *flags, set map[string]bool) (config.MRC, error) {
	var cfg config.MRC
	if f.configPath != "" {
		loaded, err := config.LoadConfig(f.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = *loaded
	} else {
		// No file: every flag default applies.
		for _, name := range []string{"method", "workload", "min", "max", "seed", "threshold", "iters", "log-level"} {
			set[name] = true
		}
	}

	if set["method"] {
		cfg.Method = config.Method(f.method)
	}
	if set["workload"] {
		cfg.Workload = config.Workload(f.workload)
	}
	if set["min"] {
		cfg.MinSize = f.minSize
	}
	if set["max"] {
		cfg.MaxSize = f.maxSize
	}
	if set["samples"] {
		cfg.Samples = f.samples
	}
	if set["seed"] {
		cfg.Seed = f.seed
	}
	if set["threshold"] {
		cfg.Slope.Threshold = f.threshold
	}
	if set["iters"] {
		cfg.Slope.MaxIterations = f.iters
	}
	if set["weighted"] {
		cfg.Slope.Weighted = f.weighted
	}

	if set["trace"] || set["app"] || set["block"] || set["max-file"] || set["limit"] || set["warmup"] {
		if cfg.Trace == nil {
			cfg.Trace = &config.TraceCfg{}
		}
		if set["trace"] {
			cfg.Trace.Path = f.tracePath
		}
		if set["app"] {
			cfg.Trace.Application = f.app
		}
		if set["block"] {
			cfg.Trace.BlockSize = f.blockSize
		}
		if set["max-file"] {
			cfg.Trace.MaxFileSize = f.maxFileSize
		}
		if set["limit"] {
			cfg.Trace.Limit = f.limit
		}
		if set["warmup"] {
			cfg.Trace.Warmup = f.warmup
		}
	}

	if set["out"] {
		cfg.Output = f.out
	}
	if set["log-level"] {
		cfg.Log.Level = f.logLevel
	}
	if set["pretty"] {
		cfg.Log.Pretty = f.pretty
	}
	if set["http"] || set["serve"] {
		if cfg.Metrics == nil {
			cfg.Metrics = &config.MetricsCfg{}
		}
		if set["http"] {
			cfg.Metrics.Addr = f.metricsAddr
		}
		if set["serve"] {
			cfg.Metrics.Serve = f.serve
		}
	}

	cfg.AdjustConfig()
	return cfg, cfg.Validate()
}

func main() {
	f, set, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	cfg, err := buildConfig(f, set)
	if err != nil {
		fmt.Fprintln(os.Stderr, "mrc:", err)
		os.Exit(2)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "mrc:", err)
		os.Exit(2)
	}

	if err = run(cfg, f.pprofAddr, log); err != nil {
		log.Error().Err(err).Msg("mrc failed")
		os.Exit(1)
	}
}

func run(cfg config.MRC, pprofAddr string, log zerolog.Logger) error {
	// ---- pprof server (on DefaultServeMux) ----
	if pprofAddr != "" {
		go func() {
			log.Info().Str("addr", pprofAddr).Msg("pprof: serving")
			log.Error().Err(http.ListenAndServe(pprofAddr, nil)).Msg("pprof server stopped")
		}()
	}

	// ---- Prometheus metrics ----
	opt := mrc.Options{Logger: &log}
	var srv *http.Server
	if cfg.Metrics.Enabled() {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics := pmet.NewFromConfig(reg, cfg.Metrics)
		opt.Metrics = metrics
		opt.Policy = arc.Policy(arc.Options{Metrics: metrics})

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			log.Info().Str("addr", cfg.Metrics.Addr).Msg("metrics: serving")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	// ---- Build the curve ----
	start := time.Now()
	samples, err := mrc.NewDriver(opt).Construct(cfg)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	// ---- Report ----
	if cfg.Output == "" {
		if err = samples.WriteCSV(os.Stdout); err != nil {
			return err
		}
	} else if err = samples.Save(cfg.Output); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "method=%s workload=%s range=[%d,%d] samples=%d dur=%v\n",
		cfg.Method, cfg.Workload, cfg.MinSize, cfg.MaxSize, samples.Len(), elapsed.Round(time.Millisecond))

	if srv == nil {
		return nil
	}
	if cfg.Metrics.Serve {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		log.Info().Msg("curve written; serving metrics until interrupted")
		<-ctx.Done()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
