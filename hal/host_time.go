package hal

import (
	"sync/atomic"
	"time"
)

// clock is machine time. It follows the wall clock, or in virtual mode
// only moves when the idle CPU skips ahead to a timer deadline.
type clock struct {
	virtual bool
	start   time.Time
	v       atomic.Int64
}

func newClock(virtual bool) *clock {
	return &clock{virtual: virtual, start: time.Now()}
}

func (c *clock) now() time.Duration {
	if c.virtual {
		return time.Duration(c.v.Load())
	}
	return time.Since(c.start)
}

func (c *clock) advanceTo(d time.Duration) {
	if int64(d) > c.v.Load() {
		c.v.Store(int64(d))
	}
}
