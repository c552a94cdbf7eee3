package kernel

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// PanicInfo describes a panic caught in a polled future or an interrupt
// handler. Vector is -1 for a future; TaskID is 0 for a handler.
type PanicInfo struct {
	TaskID uint64
	Vector int
	Value  any
	Stack  []byte
}

// Where names the context that panicked.
func (p PanicInfo) Where() string {
	switch {
	case p.Vector >= 0:
		return fmt.Sprintf("vector: %#x", p.Vector)
	case p.TaskID != 0:
		return fmt.Sprintf("task: %d", p.TaskID)
	}
	return "boot"
}

var (
	panicking atomic.Bool
	fatalOnce sync.Once
	handler   atomic.Pointer[func(PanicInfo)]
)

// InPanicMode reports whether a panic has been handed to the handler. It
// never goes back to false.
func InPanicMode() bool {
	return panicking.Load()
}

// SetPanicHandler installs the handler run on the first panic. It must not
// panic; it logs, disables interrupts and stops the machine.
func SetPanicHandler(fn func(PanicInfo)) {
	if fn == nil {
		handler.Store(nil)
		return
	}
	handler.Store(&fn)
}

// TriggerPanic enters panic mode and runs the handler. Only the first call
// does anything.
func TriggerPanic(info PanicInfo) {
	fatalOnce.Do(func() {
		panicking.Store(true)
		if info.Stack == nil {
			info.Stack = captureStack()
		}
		if fn := handler.Load(); fn != nil {
			(*fn)(info)
		}
	})
}
