// Package app boots the kernel on a hal machine: drivers first, then the
// polling tasks, then the idle loop.
package app

import (
	"errors"
	"fmt"
	"time"

	"hearth/drivers/lapic"
	"hearth/drivers/ps2kbd"
	"hearth/drivers/speaker"
	"hearth/drivers/tty"
	"hearth/drivers/uart"
	"hearth/drivers/urandom"
	"hearth/hal"
	"hearth/internal/buildinfo"
	"hearth/kernel"
	"hearth/kernel/arch"
	"hearth/kernel/klog"
	"hearth/kernel/task"
	"hearth/kernel/uptime"
	"hearth/kernel/vfs"
	"hearth/services/monitor"
)

// System is one boot of the kernel.
type System struct {
	h   hal.HAL
	cfg Config
	fs  *vfs.DevFS
	ex  *task.Executor

	// attached optional drivers, by config name
	up map[string]bool
}

// Kernel returns the entry point hal.Run boots.
func Kernel(cfg Config) hal.Kernel {
	return func(h hal.HAL) error {
		return New(h, cfg, vfs.Default, task.Default).Run()
	}
}

// New prepares a boot on h with its own /dev and executor.
func New(h hal.HAL, cfg Config, fs *vfs.DevFS, ex *task.Executor) *System {
	return &System{h: h, cfg: cfg, fs: fs, ex: ex, up: map[string]bool{}}
}

// Run boots the kernel and runs the idle loop until the machine powers
// off. It returns kernel.ErrFatal after a panic.
func (s *System) Run() error {
	if err := s.Boot(); err != nil {
		return err
	}
	return s.idle()
}

// Boot brings up drivers and tasks and marks the executor ready.
func (s *System) Boot() error {
	arch.SetPlatform(s.h.Platform())
	installPanicHandler(s.h)

	klog.SetSink(s.h.Logger())
	klog.SetLevel(s.cfg.LogLevel)
	klog.Infof("hearth %s", buildinfo.String())
	bootScreen(s.h, "starting timer")

	lapic.Init(lapic.Config{
		Mapper: s.h.Mapper(),
		Period: s.cfg.Timer.Period,
		BusHz:  s.cfg.Timer.BusHz,
	})
	if err := lapic.ProbeAndAttach(); err != nil {
		return fmt.Errorf("boot: %s: %w", lapic.Name, err)
	}
	klog.Infof("%s", lapic.Status())

	for _, name := range allDrivers {
		if !s.cfg.Enabled(name) {
			klog.Debugf("boot: %s disabled", name)
			continue
		}
		if err := s.attach(name); err != nil {
			klog.Errorf("boot: %s: %v", name, err)
			continue
		}
		s.up[name] = true
	}
	if s.up[DriverTTY] {
		klog.SetSink(teeSink{s.h.Logger(), tty.Sink{}})
	}

	if err := s.spawnTasks(); err != nil {
		return fmt.Errorf("boot: %w", err)
	}
	if err := s.ex.Ready(); err != nil {
		return fmt.Errorf("boot: %w", err)
	}
	klog.Infof("boot: %d devices, %d tasks", len(s.fs.List()), s.ex.Len())
	return nil
}

func (s *System) attach(name string) error {
	switch name {
	case DriverURandom:
		urandom.Init(uptime.System)
		return urandom.ProbeAndAttach(s.fs)
	case DriverTTY:
		fb := framebuffer(s.h)
		if fb == nil {
			return fmt.Errorf("no framebuffer: %w", kernel.ErrNotFound)
		}
		tty.Init(fb)
		return tty.ProbeAndAttach(s.fs)
	case DriverPS2:
		ps2kbd.Init()
		return ps2kbd.ProbeAndAttach(s.fs)
	case DriverUART:
		uart.Init(uart.COM1)
		return uart.ProbeAndAttach(s.fs)
	case DriverSpeaker:
		speaker.Init()
		return speaker.ProbeAndAttach(s.fs)
	}
	return fmt.Errorf("unknown driver %q: %w", name, kernel.ErrInvalidArgument)
}

func (s *System) spawnTasks() error {
	type spawn struct {
		on       bool
		f        task.Future
		interval time.Duration
	}
	mon := monitor.New(monitor.Config{
		FS:         s.fs,
		Executor:   s.ex,
		Prompt:     s.cfg.Monitor.Prompt,
		SerialEcho: s.cfg.Monitor.SerialEcho,
		Boot:       s.cfg.Monitor.Boot,
	})
	iv := s.cfg.Intervals
	for _, sp := range []spawn{
		{s.up[DriverPS2] && s.up[DriverTTY], keyboardTask(), iv.Keyboard},
		{s.up[DriverUART], serialTask(), iv.Serial},
		{s.up[DriverTTY], consoleTask(), iv.Console},
		{iv.Heartbeat > 0, heartbeatTask(s.ex), iv.Heartbeat},
		{true, mon.Future(), iv.Monitor},
	} {
		if !sp.on {
			continue
		}
		if _, err := s.ex.Spawn(sp.f, sp.interval); err != nil {
			return err
		}
	}
	return nil
}

// idle is the CPU's loop: enable interrupts, halt until one arrives, then
// give every queued task one poll.
func (s *System) idle() error {
	for {
		arch.EnableInt()
		if !arch.Halt() {
			if kernel.InPanicMode() {
				return kernel.ErrFatal
			}
			klog.Infof("idle: machine off at %v", uptime.Now())
			return nil
		}
		for n := s.ex.Len(); n > 0; n-- {
			err := s.ex.PollOnce()
			switch {
			case err == nil, kernel.IsRetry(err):
			case errors.Is(err, kernel.ErrFatal):
				return err
			default:
				klog.Failure("idle", err)
			}
		}
	}
}

// Attached reports whether an optional driver came up.
func (s *System) Attached(name string) bool { return s.up[name] }

func framebuffer(h hal.HAL) hal.Framebuffer {
	if h == nil {
		return nil
	}
	d := h.Display()
	if d == nil {
		return nil
	}
	return d.Framebuffer()
}

// teeSink sends kernel log lines to the host log and the console.
type teeSink []klog.Sink

func (t teeSink) WriteLineString(s string) {
	for _, sk := range t {
		sk.WriteLineString(s)
	}
}

func (t teeSink) WriteLineBytes(b []byte) {
	for _, sk := range t {
		sk.WriteLineBytes(b)
	}
}
