// Package arch is the CPU interface the kernel is written against: the
// interrupt flag, hlt, interrupt vectors and port I/O.
//
// The actual machine is a Platform installed at boot. On the host it is a
// simulated PC; see package hal.
package arch

import (
	"sync/atomic"

	"hearth/kernel"
)

// Vector is an interrupt vector number.
type Vector uint8

// Handler runs in interrupt context. It must be bounded, must not allocate
// and may only TryLock shared state.
type Handler func(v Vector)

// Platform is the machine under the kernel.
type Platform interface {
	// Wait blocks until at least one interrupt line is pending, running
	// device models in the meantime. It returns false once the machine has
	// been powered off.
	Wait() bool
	// Take returns and clears the pending vectors in arrival order.
	Take() []Vector
	In8(port uint16) uint8
	Out8(port uint16, v uint8)
}

var (
	platform    atomic.Pointer[Platform]
	intEnabled  atomic.Bool
	inInterrupt atomic.Bool
	handlers    [256]atomic.Pointer[Handler]
	spurious    atomic.Uint64
)

// SetPlatform installs p. It is called once from boot, before any other
// function in this package.
func SetPlatform(p Platform) {
	platform.Store(&p)
}

func current() Platform {
	p := platform.Load()
	if p == nil {
		panic("arch: no platform installed")
	}
	return *p
}

// EnableInt sets the interrupt flag (sti).
func EnableInt() { intEnabled.Store(true) }

// DisableInt clears the interrupt flag (cli).
func DisableInt() { intEnabled.Store(false) }

func IntEnabled() bool { return intEnabled.Load() }

// InInterrupt reports whether the caller is running inside an interrupt
// handler.
func InInterrupt() bool { return inInterrupt.Load() }

// DisabledInt runs fn with interrupts disabled and restores the previous
// interrupt flag afterwards, even if fn panics.
func DisabledInt(fn func()) {
	was := intEnabled.Swap(false)
	defer func() {
		if was {
			intEnabled.Store(true)
		}
	}()
	maskInt(fn)
}

// Register installs h for vector v, replacing any previous handler. A nil
// h removes it.
func Register(v Vector, h Handler) {
	if h == nil {
		handlers[v].Store(nil)
		return
	}
	handlers[v].Store(&h)
}

// Halt stops the CPU until the next interrupt (hlt). Pending interrupts are
// delivered before it returns if the interrupt flag is set; otherwise they
// stay latched. It returns false once the machine is powered off.
func Halt() bool {
	p := current()
	if !p.Wait() {
		return false
	}
	if !intEnabled.Load() {
		return true
	}
	for _, v := range p.Take() {
		if !dispatch(v) {
			return false
		}
	}
	return true
}

// Spurious counts vectors that arrived with no handler registered.
func Spurious() uint64 { return spurious.Load() }

func dispatch(v Vector) (ok bool) {
	hp := handlers[v].Load()
	if hp == nil {
		spurious.Add(1)
		return true
	}

	// The CPU clears IF on entry through an interrupt gate and iret
	// restores it.
	intEnabled.Store(false)
	inInterrupt.Store(true)
	defer func() {
		inInterrupt.Store(false)
		if r := recover(); r != nil {
			kernel.TriggerPanic(kernel.PanicInfo{Vector: int(v), Value: r})
			ok = false
			return
		}
		intEnabled.Store(true)
	}()
	(*hp)(v)
	return true
}

func In8(port uint16) uint8 { return current().In8(port) }

func Out8(port uint16, v uint8) { current().Out8(port, v) }
