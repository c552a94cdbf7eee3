// Package kernel holds the error taxonomy and the fatal path shared by every
// part of the kernel execution substrate.
package kernel

import "errors"

var (
	// ErrNotReady is returned when a subsystem is used before its init entry
	// point ran, e.g. the executor polled before Ready.
	ErrNotReady = errors.New("not ready")

	// ErrBusy reports a contended spin mutex. It is a retry signal, not a fault.
	ErrBusy = errors.New("busy")

	// ErrUnimplemented is returned by drivers for verbs they do not support.
	ErrUnimplemented = errors.New("unimplemented")

	// ErrInvalidArgument reports a rejected argument: a null MMIO pointer, a
	// duplicate /dev name, a malformed driver name.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound reports a missing /dev entry.
	ErrNotFound = errors.New("no such device")

	// ErrFatal is returned once a panic has been handed to the panic handler.
	ErrFatal = errors.New("kernel panic")
)

// IsRetry reports whether err only asks the caller to try again on the next tick.
func IsRetry(err error) bool {
	return errors.Is(err, ErrBusy)
}
