package monitor

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/inhies/go-bytesize"

	"hearth/drivers/lapic"
	"hearth/drivers/speaker"
	"hearth/kernel/arch"
	"hearth/kernel/mmio"
	"hearth/kernel/uptime"
	"hearth/kernel/vfs"
)

var errUsage = errors.New("usage")

// Port of the isa-debug-exit device.
const portDebugExit = 0xF4

// Longest beep the monitor accepts.
const maxBeep = 10 * time.Second

func registerCommands(r *registry) error {
	for _, cmd := range []command{
		{Name: "help", Aliases: []string{"?"}, Usage: "help [command]", Desc: "Show available commands.", Run: cmdHelp},
		{Name: "echo", Usage: "echo [args...]", Desc: "Print arguments.", Run: cmdEcho},
		{Name: "ls", Usage: "ls", Desc: "List /dev.", Run: cmdLs},
		{Name: "info", Usage: "info <dev>", Desc: "Show a device's state.", Run: cmdInfo},
		{Name: "cat", Usage: "cat <dev>", Desc: "Read a device once; binary data is hex dumped.", Run: cmdCat},
		{Name: "write", Usage: "write <dev> <text...>", Desc: "Write text to a device.", Run: cmdWrite},
		{Name: "beep", Usage: "beep <hz> <ms>", Desc: "Play a tone on the speaker.", Run: cmdBeep},
		{Name: "uptime", Usage: "uptime", Desc: "Show time since boot.", Run: cmdUptime},
		{Name: "tasks", Aliases: []string{"ps"}, Usage: "tasks", Desc: "List running tasks.", Run: cmdTasks},
		{Name: "mmio", Usage: "mmio", Desc: "List mapped device memory.", Run: cmdMMIO},
		{Name: "poweroff", Aliases: []string{"exit"}, Usage: "poweroff [code]", Desc: "Power the machine off.", Run: cmdPowerOff},
		{Name: "panic", Usage: "panic", Desc: "Panic the kernel (test).", Run: cmdPanic},
	} {
		if err := r.register(cmd); err != nil {
			return err
		}
	}
	return nil
}

func cmdHelp(m *Monitor, w io.Writer, args []string) error {
	switch len(args) {
	case 0:
		for _, name := range m.reg.names() {
			cmd, _ := m.reg.resolve(name)
			fmt.Fprintf(w, "%-10s %s\n", cmd.Name, cmd.Desc)
		}
		return nil
	case 1:
	default:
		return errUsage
	}
	cmd, ok := m.reg.resolve(args[0])
	if !ok {
		return fmt.Errorf("unknown command: %s", args[0])
	}
	fmt.Fprintf(w, "usage: %s\n%s\n", cmd.Usage, cmd.Desc)
	if len(cmd.Aliases) > 0 {
		fmt.Fprintf(w, "aliases: %s\n", strings.Join(cmd.Aliases, ", "))
	}
	return nil
}

func cmdEcho(_ *Monitor, w io.Writer, args []string) error {
	fmt.Fprintln(w, strings.Join(args, " "))
	return nil
}

func cmdLs(m *Monitor, w io.Writer, _ []string) error {
	for _, name := range m.cfg.FS.List() {
		desc, err := m.cfg.FS.Lookup(name)
		if err != nil {
			continue
		}
		state := "detached"
		if desc.Info().Attached {
			state = "attached"
		}
		fmt.Fprintf(w, "%s%-10s %s\n", vfs.DevDir, name, state)
	}
	return nil
}

func cmdInfo(m *Monitor, w io.Writer, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	desc, err := m.cfg.FS.Lookup(args[0])
	if err != nil {
		return err
	}
	info := desc.Info()
	fmt.Fprintf(w, "name: %s\nattached: %v\n", info.Name, info.Attached)
	return nil
}

func cmdCat(m *Monitor, w io.Writer, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	f, err := m.cfg.FS.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	b, err := f.Read()
	if err != nil {
		return err
	}
	if printable(b) {
		w.Write(b)
		if len(b) > 0 && b[len(b)-1] != '\n' {
			io.WriteString(w, "\n")
		}
		return nil
	}
	io.WriteString(w, hex.Dump(b))
	return nil
}

func printable(b []byte) bool {
	if !utf8.Valid(b) {
		return false
	}
	for _, r := range string(b) {
		if r != '\n' && r != '\t' && !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

func cmdWrite(m *Monitor, _ io.Writer, args []string) error {
	if len(args) < 2 {
		return errUsage
	}
	f, err := m.cfg.FS.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write([]byte(strings.Join(args[1:], " ")))
}

func cmdBeep(m *Monitor, w io.Writer, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	hz, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil || hz < speaker.MinFreq || hz > speaker.MaxFreq {
		return fmt.Errorf("frequency %q: want %d to %d", args[0], speaker.MinFreq, speaker.MaxFreq)
	}
	ms, err := strconv.ParseUint(args[1], 10, 32)
	d := time.Duration(ms) * time.Millisecond
	if err != nil || d <= 0 || d > maxBeep {
		return fmt.Errorf("duration %q: want 1 to %d ms", args[1], maxBeep.Milliseconds())
	}
	id, err := m.cfg.Executor.Spawn(speaker.Beep(uint32(hz), d), 0)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "beep: task %d\n", id)
	return nil
}

func cmdUptime(_ *Monitor, w io.Writer, _ []string) error {
	fmt.Fprintf(w, "up %v\n%s\n", uptime.Now(), lapic.Status())
	return nil
}

func cmdTasks(m *Monitor, w io.Writer, _ []string) error {
	fmt.Fprintf(w, "%4s %-10s %8s %8s\n", "ID", "NAME", "EVERY", "POLLS")
	for _, t := range m.cfg.Executor.Tasks() {
		name := t.Name
		if name == "" {
			name = "-"
		}
		if t.Running {
			name += "*"
		}
		fmt.Fprintf(w, "%4d %-10s %8v %8d\n", t.ID, name, t.Interval, t.Polls)
	}
	fmt.Fprintf(w, "%d done\n", m.cfg.Executor.Completed())
	return nil
}

func cmdMMIO(_ *Monitor, w io.Writer, _ []string) error {
	var total uintptr
	for _, r := range mmio.Regions() {
		fmt.Fprintln(w, r)
		total += r.Size
	}
	fmt.Fprintf(w, "total %s\n", bytesize.New(float64(total)))
	return nil
}

func cmdPowerOff(_ *Monitor, w io.Writer, args []string) error {
	var code uint64
	switch len(args) {
	case 0:
	case 1:
		var err error
		if code, err = strconv.ParseUint(args[0], 0, 7); err != nil {
			return fmt.Errorf("exit code %q: %w", args[0], err)
		}
	default:
		return errUsage
	}
	fmt.Fprintln(w, "powering off")
	arch.Out8(portDebugExit, uint8(code))
	return nil
}

func cmdPanic(*Monitor, io.Writer, []string) error {
	panic("monitor: panic requested")
}
