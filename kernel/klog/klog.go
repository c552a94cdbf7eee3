// Package klog is the kernel log. Lines go to a single Sink, one call per
// line, serialised by a spin mutex so interrupt and task context never
// interleave partial output.
package klog

import (
	"errors"
	"fmt"
	"strings"

	"hearth/kernel"
	"hearth/kernel/spin"
)

// Sink writes newline-delimited log lines.
type Sink interface {
	WriteLineString(s string)
	WriteLineBytes(b []byte)
}

type Level uint8

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	levelOff
)

func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "OFF"
	}
}

// ParseLevel accepts the lower- or upper-case level names.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "off", "none":
		return levelOff, nil
	}
	return LevelInfo, fmt.Errorf("klog: unknown level %q: %w", s, kernel.ErrInvalidArgument)
}

func (l Level) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(l.String())), nil
}

func (l *Level) UnmarshalText(b []byte) error {
	v, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

type logger struct {
	sink  Sink
	level Level
	buf   []byte
}

var global = spin.New(logger{level: LevelInfo})

// SetSink installs the output. A nil sink discards everything.
func SetSink(s Sink) {
	g := global.SpinLock()
	g.Get().sink = s
	g.Unlock()
}

func SetLevel(l Level) {
	g := global.SpinLock()
	g.Get().level = l
	g.Unlock()
}

func CurrentLevel() Level {
	g := global.SpinLock()
	defer g.Unlock()
	return g.Get().level
}

// Enabled reports whether a line at level l would be written.
func Enabled(l Level) bool {
	return l >= CurrentLevel()
}

func logf(l Level, format string, args ...any) {
	g, err := global.TryLock()
	if err != nil {
		// The holder was interrupted mid-line. Drop the line unless the
		// kernel is going down, in which case the holder never resumes.
		if !kernel.InPanicMode() {
			return
		}
		write(global.ForceMut(), l, format, args)
		return
	}
	defer g.Unlock()
	write(g.Get(), l, format, args)
}

func write(lg *logger, l Level, format string, args []any) {
	if lg.sink == nil || l < lg.level {
		return
	}
	lg.buf = append(lg.buf[:0], '[')
	lg.buf = append(lg.buf, l.String()...)
	lg.buf = append(lg.buf, "] "...)
	lg.buf = fmt.Appendf(lg.buf, format, args...)
	lg.sink.WriteLineBytes(lg.buf)
}

func Tracef(format string, args ...any) { logf(LevelTrace, format, args...) }
func Debugf(format string, args ...any) { logf(LevelDebug, format, args...) }
func Infof(format string, args ...any)  { logf(LevelInfo, format, args...) }
func Warnf(format string, args ...any)  { logf(LevelWarn, format, args...) }
func Errorf(format string, args ...any) { logf(LevelError, format, args...) }

// Failure logs err at error level unless it is a retry signal, which is
// never worth a warning. It returns err unchanged.
func Failure(what string, err error) error {
	if err == nil {
		return nil
	}
	if kernel.IsRetry(err) || errors.Is(err, kernel.ErrNotReady) {
		Tracef("%s: %v", what, err)
		return err
	}
	Errorf("%s: %v", what, err)
	return err
}
