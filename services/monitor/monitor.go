// Package monitor is the kernel's command line. It runs as one task,
// reading lines from the console and the serial port and answering on the
// port the line came from.
package monitor

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/google/shlex"

	"hearth/kernel"
	"hearth/kernel/klog"
	"hearth/kernel/task"
	"hearth/kernel/vfs"
)

// MaxLine bounds an input line; further characters are ignored.
const MaxLine = 256

// DefaultPorts are the /dev files the monitor talks on when they exist.
var DefaultPorts = []string{"tty0", "uart"}

type Config struct {
	FS       *vfs.DevFS
	Executor *task.Executor
	Prompt   string
	// SerialEcho echoes input on ports other than the console.
	SerialEcho bool
	// Boot commands run once, before the first prompt.
	Boot []string
	// Ports overrides DefaultPorts.
	Ports []string
}

type Monitor struct {
	cfg   Config
	reg   *registry
	ports []*port

	opened bool
	booted bool
}

// port is one open line: its input state and the output not yet accepted
// by the driver.
type port struct {
	name string
	f    *vfs.File
	echo bool
	// backspace is what erases one cell on this port.
	backspace string

	line     []byte
	esc      int
	skipLF   bool
	out      []byte
	prompted bool
}

func New(cfg Config) *Monitor {
	if cfg.FS == nil {
		cfg.FS = vfs.Default
	}
	if cfg.Executor == nil {
		cfg.Executor = task.Default
	}
	if cfg.Ports == nil {
		cfg.Ports = DefaultPorts
	}
	m := &Monitor{cfg: cfg, reg: newRegistry()}
	if err := registerCommands(m.reg); err != nil {
		panic(err)
	}
	return m
}

// Future is the monitor task.
func (m *Monitor) Future() task.Future {
	return task.Named("monitor", task.Forever(m.step))
}

func (m *Monitor) step(*task.Context) {
	if !m.opened {
		m.opened = true
		m.open()
	}
	if !m.booted {
		m.booted = true
		m.runBoot()
	}
	for _, p := range m.ports {
		m.service(p)
	}
}

func (m *Monitor) open() {
	for _, name := range m.cfg.Ports {
		f, err := m.cfg.FS.Open(name)
		if err != nil {
			klog.Debugf("monitor: %s: %v", name, err)
			continue
		}
		p := &port{name: name, f: f, echo: true, backspace: "\b \b"}
		if strings.HasPrefix(name, "tty") {
			// The console erases on its own.
			p.backspace = "\b"
		} else {
			p.echo = m.cfg.SerialEcho
		}
		m.ports = append(m.ports, p)
		klog.Infof("monitor: listening on %s", f.Name())
	}
}

// runBoot runs the configured commands, showing each one and its output on
// every port, or in the log when there is none.
func (m *Monitor) runBoot() {
	for _, line := range m.cfg.Boot {
		out := m.Exec(line)
		if len(m.ports) == 0 {
			for _, l := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
				klog.Infof("monitor: %s: %s", line, l)
			}
			continue
		}
		for _, p := range m.ports {
			p.queue(m.cfg.Prompt + line + "\n" + out)
		}
	}
}

func (m *Monitor) service(p *port) {
	if !p.flush() {
		return
	}
	if !p.prompted {
		p.prompted = true
		p.queue(m.cfg.Prompt)
	}

	in, err := p.f.Read()
	if err != nil {
		klog.Failure("monitor: "+p.name, err)
		return
	}
	for _, b := range in {
		m.input(p, b)
	}
	p.flush()
}

func (m *Monitor) input(p *port, b byte) {
	// Swallow escape sequences such as cursor keys.
	switch p.esc {
	case 1:
		p.esc = 0
		if b == '[' {
			p.esc = 2
		}
		return
	case 2:
		if b >= 0x40 && b <= 0x7E {
			p.esc = 0
		}
		return
	}

	lf := p.skipLF
	p.skipLF = false
	switch b {
	case '\n':
		if lf {
			return
		}
		fallthrough
	case '\r':
		p.skipLF = b == '\r'
		if p.echo {
			p.queue("\n")
		}
		line := string(p.line)
		p.line = p.line[:0]
		p.queue(m.Exec(line))
		p.queue(m.cfg.Prompt)
	case 0x08, 0x7F:
		if len(p.line) == 0 {
			return
		}
		p.line = p.line[:len(p.line)-1]
		if p.echo {
			p.queue(p.backspace)
		}
	case 0x1B:
		p.esc = 1
	case '\t':
		m.complete(p)
	default:
		if b < 0x20 || len(p.line) >= MaxLine {
			return
		}
		p.line = append(p.line, b)
		if p.echo {
			p.out = append(p.out, b)
		}
	}
}

// complete finishes the command name being typed when only one fits.
func (m *Monitor) complete(p *port) {
	if len(p.line) == 0 || bytes.IndexByte(p.line, ' ') >= 0 {
		return
	}
	name, ok := m.reg.complete(string(p.line))
	if !ok {
		return
	}
	rest := name[len(p.line):] + " "
	p.line = append(p.line, rest...)
	if p.echo {
		p.queue(rest)
	}
}

// Exec runs one command line and returns what it printed.
func (m *Monitor) Exec(line string) string {
	args, err := shlex.Split(line)
	if err != nil {
		return fmt.Sprintf("parse error: %v\n", err)
	}
	if len(args) == 0 {
		return ""
	}
	klog.Debugf("monitor: %q", line)

	cmd, ok := m.reg.resolve(args[0])
	if !ok {
		return fmt.Sprintf("unknown command: %s (try help)\n", args[0])
	}
	var buf bytes.Buffer
	if err := cmd.Run(m, &buf, args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(&buf, "usage: %s\n", cmd.Usage)
		} else {
			fmt.Fprintf(&buf, "%s: %v\n", cmd.Name, err)
		}
	}
	return buf.String()
}

func (p *port) queue(s string) { p.out = append(p.out, s...) }

// flush hands pending output to the driver and reports whether all of it
// was taken. A busy driver keeps it for the next poll.
func (p *port) flush() bool {
	if len(p.out) == 0 {
		return true
	}
	err := p.f.Write(p.out)
	if kernel.IsRetry(err) {
		return false
	}
	if err != nil {
		klog.Failure("monitor: "+p.name, err)
	}
	p.out = p.out[:0]
	return true
}
