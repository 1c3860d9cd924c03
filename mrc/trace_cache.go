package mrc

import (
	"bytes"
	"fmt"
	"os"

	"github.com/zeebo/xxh3"

	"github.com/IvanBrykalov/arcmrc/config"
	"github.com/IvanBrykalov/arcmrc/trace"
	"github.com/IvanBrykalov/arcmrc/workload"
)

type traceKey struct {
	path        string
	application string
}

type cachedTrace struct {
	fingerprint uint64
	trace       *trace.Trace
}

// traceCache keeps parsed traces across Construct calls. An entry is
// reused only while the file content hashes to the same fingerprint.
type traceCache struct {
	items  map[traceKey]cachedTrace
	parses int
}

// loadTrace returns the parsed trace for cfg, parsing only when the file is new
// or its content changed.
func (d *Driver) loadTrace(cfg config.TraceCfg) (*trace.Trace, error) {
	data, err := os.ReadFile(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("mrc: read trace: %w", err)
	}
	key := traceKey{path: cfg.Path, application: cfg.Application}
	sum := xxh3.Hash(data)

	if c, ok := d.traces.items[key]; ok && c.fingerprint == sum {
		d.log.Debug().Str("path", cfg.Path).Msg("reusing parsed trace")
		return c.trace, nil
	}

	t, err := trace.Parse(bytes.NewReader(data), cfg.Application)
	if err != nil {
		d.log.Error().Err(err).Str("path", cfg.Path).Msg("trace parse failed")
		return nil, err
	}
	d.traces.parses++
	d.traces.items[key] = cachedTrace{fingerprint: sum, trace: t}

	for _, name := range t.Files() {
		ext, _ := t.Extent(name)
		d.log.Debug().
			Str("file", name).
			Uint64("min_offset", ext.MinOffset).
			Uint64("max_end", ext.MaxEnd).
			Msg("trace file extent")
	}
	d.log.Info().
		Str("path", cfg.Path).
		Str("application", cfg.Application).
		Int("files", len(t.Files())).
		Int("requests", t.Len()).
		Msg("trace parsed")
	return t, nil
}

func (d *Driver) traceWorkload(cfg config.TraceCfg) (workload.Generator, error) {
	t, err := d.loadTrace(cfg)
	if err != nil {
		return nil, err
	}
	l, err := t.Layout(cfg.BlockSize, cfg.MaxFileSize)
	if err != nil {
		return nil, err
	}
	return workload.Trace{Layout: l, Limit: cfg.Limit, WarmAll: cfg.Warmup}, nil
}
