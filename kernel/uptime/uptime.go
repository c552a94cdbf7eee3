// Package uptime holds the monotonic time since boot. The timer interrupt
// publishes it; everything else only reads.
package uptime

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

var now atomic.Int64

// Now returns the last published uptime.
func Now() time.Duration {
	return time.Duration(now.Load())
}

// Publish advances uptime to d. Values older than the current uptime are
// ignored, so readers never see time go backwards.
func Publish(d time.Duration) {
	for {
		cur := now.Load()
		if int64(d) <= cur {
			return
		}
		if now.CompareAndSwap(cur, int64(d)) {
			return
		}
	}
}

// Sub returns a-b, or zero when b is later than a.
func Sub(a, b time.Duration) time.Duration {
	if b >= a {
		return 0
	}
	return a - b
}

// Add returns a+d, clamped to the range of time.Duration.
func Add(a, d time.Duration) time.Duration {
	switch {
	case d > 0 && a > math.MaxInt64-d:
		return math.MaxInt64
	case d < 0 && a < math.MinInt64-d:
		return math.MinInt64
	}
	return a + d
}

// Clock is the read side of an uptime source.
type Clock interface {
	Now() time.Duration
}

type system struct{}

func (system) Now() time.Duration { return Now() }

// System reads the process-wide uptime published by the timer driver.
var System Clock = system{}

// Manual is a Clock that only moves when told to. The zero value reads 0.
type Manual struct {
	mu  sync.Mutex
	now time.Duration
}

func NewManual(start time.Duration) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set moves the clock to d. Earlier values are ignored.
func (m *Manual) Set(d time.Duration) {
	m.mu.Lock()
	if d > m.now {
		m.now = d
	}
	m.mu.Unlock()
}

func (m *Manual) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	m.mu.Lock()
	m.now += d
	m.mu.Unlock()
}
