// Package obslog wraps zerolog with the context-builder conventions used
// throughout the engine, grounded on the teacher's pkg/telemetry/logger.go
// (WithRunID/WithResourceID/WithProvider chaining and the context-key
// pattern for carrying a logger through a call chain).
package obslog

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type ctxKey struct{}

// Logger is the engine-wide structured logger.
type Logger struct {
	zl zerolog.Logger
}

// Config controls sink, format and verbosity.
type Config struct {
	Level  string // trace, debug, info, warn, error
	Pretty bool
	Output io.Writer
}

// New builds a Logger from Config: JSON lines, written to stderr when
// Output is nil, and console-formatted when Pretty is set.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zl := zerolog.New(out).Level(level).With().Timestamp().Logger()
	return &Logger{zl: zl}
}

// WithContext returns a context carrying this logger.
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext extracts the carried logger, falling back to a disabled
// logger if none was attached.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return l
	}
	return &Logger{zl: zerolog.Nop()}
}

func (l *Logger) with(key, val string) *Logger {
	return &Logger{zl: l.zl.With().Str(key, val).Logger()}
}

func (l *Logger) WithPass(n int) *Logger {
	return &Logger{zl: l.zl.With().Int("pass", n).Logger()}
}

func (l *Logger) WithBundle(name string) *Logger    { return l.with("bundle", name) }
func (l *Logger) WithSubtype(name string) *Logger   { return l.with("subtype", name) }
func (l *Logger) WithPromiser(name string) *Logger  { return l.with("promiser", name) }
func (l *Logger) WithFingerprint(fp string) *Logger { return l.with("fingerprint", fp) }
func (l *Logger) WithOutcome(o string) *Logger      { return l.with("outcome", o) }

func (l *Logger) Debug() *zerolog.Event { return l.zl.Debug() }
func (l *Logger) Info() *zerolog.Event  { return l.zl.Info() }
func (l *Logger) Warn() *zerolog.Event  { return l.zl.Warn() }
func (l *Logger) Error() *zerolog.Event { return l.zl.Error() }
