package build

import (
	"io"

	"github.com/btcsuite/btclog/v2"
)

// NewDefaultLogHandler returns the root log handler used by the binary. Lines
// go to the console writer, to the rotating log file, or to both, depending on
// which of the loggers is enabled in cfg. The console options win when both
// are on since a single handler formats every line.
func NewDefaultLogHandler(cfg *LogConfig, console io.Writer,
	rotator *RotatingLogWriter) btclog.Handler {

	var (
		w    io.Writer
		opts []btclog.HandlerOption
	)
	switch {
	case cfg.Console.Disable && cfg.File.Disable:
		w = io.Discard

	case cfg.Console.Disable:
		w = rotator
		opts = cfg.File.HandlerOptions()

	case cfg.File.Disable:
		w = console
		opts = cfg.Console.HandlerOptions()

	default:
		w = io.MultiWriter(console, rotator)
		opts = cfg.Console.HandlerOptions()
	}

	return btclog.NewDefaultHandler(w, opts...)
}
