package logging

import (
	"io"
	"os"
	"strings"

	"github.com/pterm/pterm"
)

// Logger is a component-scoped structured logger on top of pterm's logger.
type Logger struct {
	base   *pterm.Logger
	fields []any
}

// New builds a logger writing to w (os.Stderr when nil).
// Format is "json" or "text"; level is one of trace, debug, info, warn, error, disabled.
func New(level string, format string, w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}

	base := pterm.DefaultLogger.WithWriter(w).WithLevel(ParseLevel(level))
	switch strings.ToLower(format) {
	case "json":
		base = base.WithFormatter(pterm.LogFormatterJSON)
	default:
		base = base.WithFormatter(pterm.LogFormatterColorful)
	}

	return &Logger{base: base}
}

// Nop returns a logger that drops everything.
func Nop() *Logger {
	return &Logger{base: pterm.DefaultLogger.WithLevel(pterm.LogLevelDisabled)}
}

// ParseLevel maps a config string to a pterm level, defaulting to info.
func ParseLevel(level string) pterm.LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return pterm.LogLevelTrace
	case "debug":
		return pterm.LogLevelDebug
	case "warn", "warning":
		return pterm.LogLevelWarn
	case "error":
		return pterm.LogLevelError
	case "disabled", "off", "none":
		return pterm.LogLevelDisabled
	default:
		return pterm.LogLevelInfo
	}
}

// Component returns a child logger tagged with a "component" field.
func (l *Logger) Component(name string) *Logger {
	return l.With("component", name)
}

// With returns a child logger that always carries the given key/value pairs.
func (l *Logger) With(kv ...any) *Logger {
	if l == nil {
		return Nop().With(kv...)
	}
	fields := make([]any, 0, len(l.fields)+len(kv))
	fields = append(fields, l.fields...)
	fields = append(fields, kv...)
	return &Logger{base: l.base, fields: fields}
}

func (l *Logger) Trace(msg string, kv ...any) { l.log(pterm.LogLevelTrace, msg, kv) }
func (l *Logger) Debug(msg string, kv ...any) { l.log(pterm.LogLevelDebug, msg, kv) }
func (l *Logger) Info(msg string, kv ...any)  { l.log(pterm.LogLevelInfo, msg, kv) }
func (l *Logger) Warn(msg string, kv ...any)  { l.log(pterm.LogLevelWarn, msg, kv) }
func (l *Logger) Error(msg string, kv ...any) { l.log(pterm.LogLevelError, msg, kv) }

func (l *Logger) log(level pterm.LogLevel, msg string, kv []any) {
	if l == nil || l.base == nil {
		return
	}
	all := make([]any, 0, len(l.fields)+len(kv))
	all = append(all, l.fields...)
	all = append(all, kv...)
	args := l.base.Args(all...)

	switch level {
	case pterm.LogLevelTrace:
		l.base.Trace(msg, args)
	case pterm.LogLevelDebug:
		l.base.Debug(msg, args)
	case pterm.LogLevelWarn:
		l.base.Warn(msg, args)
	case pterm.LogLevelError:
		l.base.Error(msg, args)
	default:
		l.base.Info(msg, args)
	}
}
