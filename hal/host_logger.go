//go:build !tinygo

package hal

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

var levelColors = map[string]string{
	"[TRACE]": "\x1b[90m",
	"[DEBUG]": "\x1b[36m",
	"[INFO]":  "\x1b[32m",
	"[WARN]":  "\x1b[33m",
	"[ERROR]": "\x1b[31;1m",
}

// hostLogger writes kernel log lines to stderr, colouring the level tag
// when stderr is a terminal.
type hostLogger struct {
	mu    sync.Mutex
	w     io.Writer
	color bool
}

func newHostLogger(f *os.File) *hostLogger {
	if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
		return &hostLogger{w: colorable.NewColorable(f), color: true}
	}
	return &hostLogger{w: colorable.NewNonColorable(f)}
}

func (l *hostLogger) WriteLineString(s string) {
	if l.color {
		s = colorize(s)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, s)
}

func (l *hostLogger) WriteLineBytes(b []byte) {
	l.WriteLineString(string(b))
}

func colorize(s string) string {
	end := strings.IndexByte(s, ']')
	if !strings.HasPrefix(s, "[") || end < 0 {
		return s
	}
	c, ok := levelColors[s[:end+1]]
	if !ok {
		return s
	}
	return c + s[:end+1] + "\x1b[0m" + s[end+1:]
}
