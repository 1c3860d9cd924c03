// Package logger builds the zerolog logger shared by the CLI and examples.
package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"

	"github.com/IvanBrykalov/arcmrc/config"
)

// New returns a logger writing to stderr.
func New(cfg config.LogCfg) (zerolog.Logger, error) {
	return NewWriter(os.Stderr, cfg)
}

// NewWriter returns a logger writing JSON lines to w, or human-readable
// console output when cfg.Pretty is set.
func NewWriter(w io.Writer, cfg config.LogCfg) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		l, err := zerolog.ParseLevel(cfg.Level)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("%w: log.level: %w", config.ErrInvalidConfig, err)
		}
		level = l
	}
	if cfg.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly, NoColor: !isTerminal(w)}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
