// Package spin implements the kernel's only mutual-exclusion primitive: a
// spinning mutex that owns the value it guards.
//
// There is no poisoning. A guard must not be held across a task suspension:
// take the data out, unlock, then return Pending.
package spin

import (
	"runtime"
	"sync/atomic"

	"hearth/kernel"
)

// Mutex owns a T and hands out at most one Guard at a time.
type Mutex[T any] struct {
	_      [0]func() // not comparable
	locked atomic.Bool
	value  T
}

// New returns a mutex guarding value.
func New[T any](value T) *Mutex[T] {
	m := &Mutex[T]{}
	m.value = value
	return m
}

// Guard is the scoped capability to the guarded value. Unlock releases it.
type Guard[T any] struct {
	m *Mutex[T]
}

// TryLock makes a single acquire attempt and never spins.
func (m *Mutex[T]) TryLock() (*Guard[T], error) {
	if !m.locked.CompareAndSwap(false, true) {
		return nil, kernel.ErrBusy
	}
	return &Guard[T]{m: m}, nil
}

// SpinLock loops until the mutex is acquired. It has no timeout and never
// yields to the executor, so critical sections must stay short.
func (m *Mutex[T]) SpinLock() *Guard[T] {
	for {
		if m.locked.CompareAndSwap(false, true) {
			return &Guard[T]{m: m}
		}
		for m.locked.Load() {
			runtime.Gosched()
		}
	}
}

// ForceMut bypasses the lock. Only initialisation and panic paths that
// statically own the mutex may call it.
func (m *Mutex[T]) ForceMut() *T {
	return &m.value
}

// Locked reports whether a guard is currently live.
func (m *Mutex[T]) Locked() bool {
	return m.locked.Load()
}

// With runs fn under TryLock and releases the guard before returning.
func (m *Mutex[T]) With(fn func(v *T) error) error {
	g, err := m.TryLock()
	if err != nil {
		return err
	}
	defer g.Unlock()
	return fn(g.Get())
}

// Get returns the guarded value. The pointer must not outlive the guard.
func (g *Guard[T]) Get() *T {
	if g.m == nil {
		panic("spin: use of released guard")
	}
	return &g.m.value
}

// Unlock releases the mutex, publishing every write made through the guard
// to the next acquirer.
func (g *Guard[T]) Unlock() {
	m := g.m
	if m == nil {
		panic("spin: unlock of released guard")
	}
	g.m = nil
	m.locked.Store(false)
}
