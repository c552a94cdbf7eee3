// Package hal is the machine the kernel boots on. On the host it is a
// simulated single-CPU PC: a local APIC timer, an 8042 keyboard
// controller, a 16550 UART and the PC speaker, all driven from the CPU's
// halt loop.
package hal

import (
	"errors"
	"time"

	"hearth/internal/scancode"
	"hearth/kernel/arch"
	"hearth/kernel/mmio"
)

// Logger writes newline-delimited log lines.
type Logger interface {
	WriteLineString(s string)
	WriteLineBytes(b []byte)
}

var ErrNotImplemented = errors.New("not implemented")

// PixelFormat defines the framebuffer pixel encoding.
type PixelFormat uint8

const (
	// PixelFormatRGB565 is 16bpp: rrrrrggggggbbbbb.
	PixelFormatRGB565 PixelFormat = iota + 1
)

// Framebuffer is a simple pixel buffer plus a "present" hook.
type Framebuffer interface {
	Width() int
	Height() int
	Format() PixelFormat
	StrideBytes() int
	Buffer() []byte
	ClearRGB(r, g, b uint8)
	Present() error
}

// Display provides access to the framebuffer (if available).
type Display interface {
	Framebuffer() Framebuffer
}

// Tone plays a square wave. Zero is silence.
type Tone interface {
	SetTone(hz uint32)
}

// HAL provides the only contact point between the kernel and the outside
// world.
type HAL interface {
	Logger() Logger
	Platform() arch.Platform
	Mapper() mmio.Mapper
	Display() Display
	Input() Input
	// PowerOff stops the machine. The next Halt returns false.
	PowerOff()
}

// Config describes the simulated machine.
type Config struct {
	// BusHz is the local APIC timer input clock.
	BusHz uint64
	// FastForward runs on virtual time: an idle CPU jumps straight to the
	// next timer deadline.
	FastForward bool
	// MaxTicks powers the machine off after that many timer interrupts.
	// Zero runs until powered off.
	MaxTicks uint64
	// NoAPIC leaves the local APIC out of the memory map.
	NoAPIC bool

	Width  int
	Height int
}

const (
	DefaultBusHz  = 100_000_000
	DefaultWidth  = 480
	DefaultHeight = 320
)

func (c *Config) defaults() {
	if c.BusHz == 0 {
		c.BusHz = DefaultBusHz
	}
	if c.Width <= 0 || c.Height <= 0 {
		c.Width, c.Height = DefaultWidth, DefaultHeight
	}
}

// Input is what the host feeds into the machine's devices.
type Input interface {
	// Key queues a key transition for the keyboard controller.
	Key(ev scancode.Event)
	// Serial queues bytes for the UART receiver.
	Serial(p []byte)
}

// Kernel runs on a machine until it halts for good.
type Kernel func(h HAL) error

// pollSlice bounds how long Wait sleeps in real-time mode before looking at
// host input again.
const pollSlice = 5 * time.Millisecond
