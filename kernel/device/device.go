// Package device is the contract every driver implements and the glue that
// turns a mutex-wrapped driver singleton into a /dev file.
package device

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"hearth/kernel"
	"hearth/kernel/spin"
)

// MaxNameLen bounds driver names.
const MaxNameLen = 32

// Info is a driver's identity. Attached only ever goes false -> true.
type Info struct {
	Name     string
	Attached bool
}

// Driver is the lifecycle every device implements. A is the attach
// argument, N and I are what the normal and interrupt polls report.
//
// PollInt runs in interrupt context and must be bounded and non-allocating.
// PollNormal runs from a task and may do long MMIO sequences.
type Driver[A, N, I any] interface {
	Info() Info
	Probe() error
	Attach(arg A) error
	Open() error
	Close() error
	Read() ([]byte, error)
	Write(p []byte) error
	PollNormal() (N, error)
	PollInt() (I, error)
}

// Base supplies the defaults for drivers that do not implement every verb:
// Open and Close are stateless, the rest report ErrUnimplemented.
type Base[N, I any] struct{}

func (Base[N, I]) Open() error           { return nil }
func (Base[N, I]) Close() error          { return nil }
func (Base[N, I]) Read() ([]byte, error) { return nil, kernel.ErrUnimplemented }
func (Base[N, I]) Write([]byte) error    { return kernel.ErrUnimplemented }

func (Base[N, I]) PollNormal() (N, error) {
	var zero N
	return zero, kernel.ErrUnimplemented
}

func (Base[N, I]) PollInt() (I, error) {
	var zero I
	return zero, kernel.ErrUnimplemented
}

// Lifecycle tracks probe and attach for a driver. Drivers embed it.
type Lifecycle struct {
	name     string
	probed   bool
	attached bool
}

func NewLifecycle(name string) Lifecycle {
	return Lifecycle{name: name}
}

func (l *Lifecycle) Info() Info {
	return Info{Name: l.name, Attached: l.attached}
}

func (l *Lifecycle) Name() string   { return l.name }
func (l *Lifecycle) Probed() bool   { return l.probed }
func (l *Lifecycle) Attached() bool { return l.attached }

func (l *Lifecycle) SetProbed() { l.probed = true }

func (l *Lifecycle) SetAttached() {
	if !l.probed {
		panic("device: " + l.name + " attached before probe")
	}
	l.attached = true
}

// CheckAttach returns done=true when the driver is already attached, which
// makes a second Attach a successful no-op, and an error when the driver
// was never probed.
func (l *Lifecycle) CheckAttach() (done bool, err error) {
	if l.attached {
		return true, nil
	}
	if !l.probed {
		return false, &Error{Device: l.name, Op: "attach", Err: kernel.ErrNotReady}
	}
	return false, nil
}

// CheckProbed is the guard for verbs that need hardware state.
func (l *Lifecycle) CheckProbed(op string) error {
	if !l.probed {
		return &Error{Device: l.name, Op: op, Err: kernel.ErrNotReady}
	}
	return nil
}

// Error is a driver failure. It wraps one of the kernel sentinels or a
// device-specific cause.
type Error struct {
	Device string
	Op     string
	Err    error
}

func (e *Error) Error() string {
	return e.Device + ": " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds an Error whose cause is formatted like fmt.Errorf.
func Errorf(dev, op, format string, args ...any) error {
	return &Error{Device: dev, Op: op, Err: fmt.Errorf(format, args...)}
}

// ValidName reports whether name can be used as a driver and /dev name.
func ValidName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("device: empty name: %w", kernel.ErrInvalidArgument)
	case len(name) > MaxNameLen:
		return fmt.Errorf("device: name %q longer than %d bytes: %w", name, MaxNameLen, kernel.ErrInvalidArgument)
	case strings.ContainsAny(name, "/\x00 "):
		return fmt.Errorf("device: bad character in name %q: %w", name, kernel.ErrInvalidArgument)
	}
	return nil
}

// FileOps is the part of a driver reachable through /dev.
type FileOps interface {
	Info() Info
	Open() error
	Close() error
	Read() ([]byte, error)
	Write(p []byte) error
}

// FileDescriptor is the record of capabilities /dev keeps per driver.
type FileDescriptor struct {
	Info  func() Info
	Open  func() error
	Close func() error
	Read  func() ([]byte, error)
	Write func(p []byte) error
}

// Valid reports whether every capability is present.
func (d FileDescriptor) Valid() bool {
	return d.Info != nil && d.Open != nil && d.Close != nil && d.Read != nil && d.Write != nil
}

// Descriptor builds the /dev record for the driver singleton guarded by m.
// Each call takes m with TryLock, so a /dev user contending with a poll
// sees ErrBusy and retries. Info never fails; under contention it reports
// the last value it saw.
func Descriptor[D any, P interface {
	*D
	FileOps
}](m *spin.Mutex[D]) FileDescriptor {
	var last atomic.Pointer[Info]
	info := P(m.ForceMut()).Info()
	last.Store(&info)

	with := func(fn func(P) error) error {
		g, err := m.TryLock()
		if err != nil {
			return err
		}
		defer g.Unlock()
		return fn(P(g.Get()))
	}

	return FileDescriptor{
		Info: func() Info {
			g, err := m.TryLock()
			if err != nil {
				return *last.Load()
			}
			i := P(g.Get()).Info()
			g.Unlock()
			last.Store(&i)
			return i
		},
		Open:  func() error { return with(func(d P) error { return d.Open() }) },
		Close: func() error { return with(func(d P) error { return d.Close() }) },
		Read: func() ([]byte, error) {
			var out []byte
			err := with(func(d P) error {
				var err error
				out, err = d.Read()
				return err
			})
			return out, err
		},
		Write: func(p []byte) error {
			return with(func(d P) error { return d.Write(p) })
		},
	}
}

// IsUnimplemented reports whether err says the verb is not supported.
func IsUnimplemented(err error) bool {
	return errors.Is(err, kernel.ErrUnimplemented)
}
