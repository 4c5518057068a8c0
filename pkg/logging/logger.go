package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Logger is the structured logger used across the module
type Logger interface {
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Info(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
	Error(ctx context.Context, msg string, fields map[string]interface{})

	// With returns a child logger that always carries the given fields
	With(fields map[string]interface{}) Logger
}

// ZeroLogger implements Logger on top of zerolog
type ZeroLogger struct {
	logger zerolog.Logger
}

type options struct {
	level  zerolog.Level
	output io.Writer
	format string
}

// Option represents an option for configuring the logger
type Option func(*options)

// WithLevel sets the minimum level ("debug", "info", "warn", "error")
func WithLevel(level string) Option {
	return func(o *options) {
		o.level = ParseLevel(level)
	}
}

// WithOutput sets the destination writer
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		o.output = w
	}
}

// WithFormat selects "json" or "console" output
func WithFormat(format string) Option {
	return func(o *options) {
		o.format = strings.ToLower(format)
	}
}

// New creates a new zerolog backed logger
func New(opts ...Option) *ZeroLogger {
	o := &options{
		level:  zerolog.InfoLevel,
		output: os.Stderr,
		format: "json",
	}
	for _, opt := range opts {
		opt(o)
	}

	out := o.output
	if o.format == "console" {
		out = zerolog.ConsoleWriter{Out: o.output, TimeFormat: time.RFC3339, NoColor: !isTerminal(o.output)}
	}

	return &ZeroLogger{
		logger: zerolog.New(out).Level(o.level).With().Timestamp().Logger(),
	}
}

// isTerminal reports whether w is a terminal. Files and pipes get plain console output.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// NewNoOpLogger returns a logger that discards everything
func NewNoOpLogger() *ZeroLogger {
	return &ZeroLogger{logger: zerolog.Nop()}
}

// ParseLevel converts a level name, falling back to info
func ParseLevel(level string) zerolog.Level {
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return parsed
}

func (l *ZeroLogger) Debug(ctx context.Context, msg string, fields map[string]interface{}) {
	l.write(ctx, l.logger.Debug(), msg, fields)
}

func (l *ZeroLogger) Info(ctx context.Context, msg string, fields map[string]interface{}) {
	l.write(ctx, l.logger.Info(), msg, fields)
}

func (l *ZeroLogger) Warn(ctx context.Context, msg string, fields map[string]interface{}) {
	l.write(ctx, l.logger.Warn(), msg, fields)
}

func (l *ZeroLogger) Error(ctx context.Context, msg string, fields map[string]interface{}) {
	l.write(ctx, l.logger.Error(), msg, fields)
}

// With returns a child logger that always carries the given fields
func (l *ZeroLogger) With(fields map[string]interface{}) Logger {
	return &ZeroLogger{logger: l.logger.With().Fields(fields).Logger()}
}

func (l *ZeroLogger) write(ctx context.Context, event *zerolog.Event, msg string, fields map[string]interface{}) {
	if event == nil {
		return
	}
	if ctx != nil {
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			event = event.Str("trace_id", sc.TraceID().String()).Str("span_id", sc.SpanID().String())
		}
	}
	if len(fields) > 0 {
		event = event.Fields(fields)
	}
	event.Msg(msg)
}
