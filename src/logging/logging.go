// Package logging builds the zerolog logger handed to every component.
//
// Levels follow the command-line switches: warn by default, info with
// --verbose, debug with --debug. Output goes to stderr so list/describe
// output on stdout stays machine readable.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Config holds logging configuration.
type Config struct {
	// Verbose lowers the level to info.
	Verbose bool
	// Debug lowers the level to debug and wins over Verbose.
	Debug bool
	// Format is console or json. Default: console.
	Format string
	// Output defaults to os.Stderr.
	Output io.Writer
}

// Level returns the minimum level implied by the config.
func (c Config) Level() zerolog.Level {
	switch {
	case c.Debug:
		return zerolog.DebugLevel
	case c.Verbose:
		return zerolog.InfoLevel
	default:
		return zerolog.WarnLevel
	}
}

// New returns a logger tagged with a fresh run_id, so every line of one
// invocation can be correlated.
func New(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	var w io.Writer = out
	if strings.ToLower(cfg.Format) != "json" {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05", NoColor: !isTerminal(out)}
	}
	return zerolog.New(w).
		Level(cfg.Level()).
		With().
		Timestamp().
		Str("run_id", uuid.NewString()).
		Logger()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}
