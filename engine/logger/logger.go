// Package logger provides the leveled logger shared by the renderer, shader library and engine loop.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// Logger is the logging surface used throughout the engine.
// Implementations must be safe for concurrent use since shader preloading logs from worker goroutines.
type Logger interface {
	// Debugf logs a formatted message at debug level.
	Debugf(format string, args ...any)

	// Infof logs a formatted message at info level.
	Infof(format string, args ...any)

	// Warnf logs a formatted message at warn level.
	Warnf(format string, args ...any)

	// Errorf logs a formatted message at error level.
	Errorf(format string, args ...any)

	// With returns a child Logger that attaches the given key/value pairs to every message.
	//
	// Parameters:
	//   - keyvals: alternating keys and values
	//
	// Returns:
	//   - Logger: the derived logger
	With(keyvals ...any) Logger
}

// charmLogger adapts a charmbracelet logger to the Logger interface.
type charmLogger struct {
	l *log.Logger
}

var _ Logger = &charmLogger{}

// Options configures a Logger created by New.
type Options struct {
	// Prefix is printed before every message.
	Prefix string

	// Level is the minimum level name ("debug", "info", "warn", "error"). Defaults to info.
	Level string

	// Output is the destination writer. Defaults to os.Stderr.
	Output io.Writer

	// ReportCaller includes the calling file and line in each message.
	ReportCaller bool
}

// New creates a Logger backed by charmbracelet/log.
//
// Parameters:
//   - opts: the logger options
//
// Returns:
//   - Logger: the configured logger
func New(opts Options) Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	l := log.NewWithOptions(out, log.Options{
		ReportCaller:    opts.ReportCaller,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          opts.Prefix,
	})
	level := log.InfoLevel
	if opts.Level != "" {
		if parsed, err := log.ParseLevel(opts.Level); err == nil {
			level = parsed
		}
	}
	l.SetLevel(level)
	return &charmLogger{l: l}
}

func (c *charmLogger) Debugf(format string, args ...any) {
	c.l.Debugf(format, args...)
}

func (c *charmLogger) Infof(format string, args ...any) {
	c.l.Infof(format, args...)
}

func (c *charmLogger) Warnf(format string, args ...any) {
	c.l.Warnf(format, args...)
}

func (c *charmLogger) Errorf(format string, args ...any) {
	c.l.Errorf(format, args...)
}

func (c *charmLogger) With(keyvals ...any) Logger {
	return &charmLogger{l: c.l.With(keyvals...)}
}

type nopLogger struct{}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return nopLogger{}
}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}
func (n nopLogger) With(...any) Logger  { return n }
