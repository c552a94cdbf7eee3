// Package fifo is a bounded ring used to hand bytes and events from
// interrupt context to tasks.
package fifo

import (
	"runtime"
	"sync/atomic"
)

// Fifo is a fixed-size queue with one producer and one consumer. It never
// allocates after New and never blocks in TryPush/TryPop, so an interrupt
// handler may push while a task pops.
type Fifo[T any] struct {
	_     [0]func() // not comparable
	head  atomic.Uint32
	tail  atomic.Uint32
	slots []T
}

// New returns a Fifo holding up to size elements. Size must be a power of
// two so slot indexes stay continuous when the counters wrap.
func New[T any](size int) *Fifo[T] {
	if size <= 0 || size&(size-1) != 0 || size > 1<<31 {
		panic("fifo: size must be a power of two")
	}
	return &Fifo[T]{slots: make([]T, size)}
}

func (f *Fifo[T]) Cap() int { return len(f.slots) }

func (f *Fifo[T]) Len() int {
	return int(f.head.Load() - f.tail.Load())
}

// TryPush appends v, returning false if the queue is full.
func (f *Fifo[T]) TryPush(v T) bool {
	head := f.head.Load()
	tail := f.tail.Load()
	if head-tail >= uint32(len(f.slots)) {
		return false
	}
	f.slots[head&uint32(len(f.slots)-1)] = v
	f.head.Store(head + 1)
	return true
}

// Push appends v, yielding the CPU until there is room.
func (f *Fifo[T]) Push(v T) {
	for !f.TryPush(v) {
		runtime.Gosched()
	}
}

// TryPop removes the oldest element, returning false if empty.
func (f *Fifo[T]) TryPop() (T, bool) {
	var zero T
	tail := f.tail.Load()
	head := f.head.Load()
	if tail == head {
		return zero, false
	}
	i := tail & uint32(len(f.slots)-1)
	v := f.slots[i]
	f.slots[i] = zero
	f.tail.Store(tail + 1)
	return v, true
}

// Drain pops up to len(dst) elements into dst and returns how many it wrote.
func (f *Fifo[T]) Drain(dst []T) int {
	n := 0
	for n < len(dst) {
		v, ok := f.TryPop()
		if !ok {
			break
		}
		dst[n] = v
		n++
	}
	return n
}

// Reset discards everything queued. Only the consumer may call it.
func (f *Fifo[T]) Reset() {
	f.tail.Store(f.head.Load())
}
