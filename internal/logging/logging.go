// Package logging holds the debug logger shared by the memory resources.
//
// Output is discarded unless RMMKIT_LOG_ALLOC is set in the environment, in
// which case debug-level text records go to stderr. Resources that accept a
// *slog.Logger option fall back to L when none is given.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// EnvVar enables allocator debug logging when set to a non-empty value.
const EnvVar = "RMMKIT_LOG_ALLOC"

// L is the package-wide logger. It discards all output unless EnvVar is set.
var L = newFromEnv()

// Options configures the logger initialization.
type Options struct {
	Enabled bool       // If false, all logging is discarded
	Output  io.Writer  // Destination. Default: os.Stderr
	Level   slog.Level // Minimum level. Default: LevelDebug when enabled
	JSON    bool       // Emit JSON records instead of text
}

// Init replaces L. Call before constructing any resource that should log.
func Init(opts Options) {
	if !opts.Enabled {
		L = slog.New(slog.NewTextHandler(io.Discard, nil))
		return
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	hopts := &slog.HandlerOptions{Level: opts.Level}
	if opts.JSON {
		L = slog.New(slog.NewJSONHandler(out, hopts))
		return
	}
	L = slog.New(slog.NewTextHandler(out, hopts))
}

// Or returns l when non-nil and L otherwise.
func Or(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return L
}

func newFromEnv() *slog.Logger {
	if os.Getenv(EnvVar) == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
