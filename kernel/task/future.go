// Package task is the cooperative executor. Tasks are explicit state
// machines polled from the idle loop; there is no waker. A task that is not
// done returns Pending and is visited again on the next sweep of the queue.
package task

import (
	"sync/atomic"
	"time"

	"hearth/kernel/uptime"
)

// Poll is the result of polling a Future.
type Poll uint8

const (
	Pending Poll = iota
	Ready
)

func (p Poll) String() string {
	if p == Ready {
		return "ready"
	}
	return "pending"
}

// Context is handed to every poll.
type Context struct {
	id  ID
	now time.Duration
	ex  *Executor
}

// TaskID returns the id of the task being polled, or 0 outside an executor.
func (c *Context) TaskID() ID { return c.id }

// Now is the uptime sampled just before the poll.
func (c *Context) Now() time.Duration { return c.now }

// Spawn starts a sibling task on the executor running this one.
func (c *Context) Spawn(f Future, interval time.Duration) (ID, error) {
	if c.ex == nil {
		return Default.Spawn(f, interval)
	}
	return c.ex.Spawn(f, interval)
}

// Future is a pollable state machine. Poll must return promptly; a Future
// that needs to wait returns Pending and re-checks on the next poll.
type Future interface {
	Poll(cx *Context) Poll
}

// FutureFunc adapts a function to Future.
type FutureFunc func(cx *Context) Poll

func (f FutureFunc) Poll(cx *Context) Poll { return f(cx) }

// Forever runs step on every poll and never completes. It suits driver
// pollers spawned with an interval.
func Forever(step func(cx *Context)) Future {
	return FutureFunc(func(cx *Context) Poll {
		step(cx)
		return Pending
	})
}

// YieldOnce is Pending on its first poll and Ready on every poll after.
type YieldOnce struct {
	polled atomic.Bool
}

func Yield() *YieldOnce { return &YieldOnce{} }

func (y *YieldOnce) Poll(*Context) Poll {
	if !y.polled.Swap(true) {
		return Pending
	}
	return Ready
}

// Timeout becomes Ready once the clock reaches its deadline.
type Timeout struct {
	clock    uptime.Clock
	deadline time.Duration
}

// NewTimeout fixes the deadline at uptime.Now()+d, saturating.
func NewTimeout(d time.Duration) *Timeout {
	return NewTimeoutClock(uptime.System, d)
}

func NewTimeoutClock(c uptime.Clock, d time.Duration) *Timeout {
	return &Timeout{clock: c, deadline: uptime.Add(c.Now(), d)}
}

func (t *Timeout) Deadline() time.Duration { return t.deadline }

func (t *Timeout) Poll(*Context) Poll {
	if t.clock.Now() >= t.deadline {
		return Ready
	}
	return Pending
}

// Lazy builds the inner future on first poll.
func Lazy(build func() Future) Future {
	var f Future
	return FutureFunc(func(cx *Context) Poll {
		if f == nil {
			f = build()
		}
		return f.Poll(cx)
	})
}

// Sleep is a Timeout whose deadline is taken at first poll rather than at
// construction.
func Sleep(d time.Duration) Future {
	return Lazy(func() Future { return NewTimeout(d) })
}

// Seq polls fs one after another and is Ready after the last one is.
// A future that turns Ready lets the next one run in the same poll.
func Seq(fs ...Future) Future {
	i := 0
	return FutureFunc(func(cx *Context) Poll {
		for i < len(fs) {
			if fs[i].Poll(cx) == Pending {
				return Pending
			}
			i++
		}
		return Ready
	})
}

// Do wraps fn as a future that runs once and is immediately Ready.
func Do(fn func()) Future {
	return FutureFunc(func(*Context) Poll {
		fn()
		return Ready
	})
}

type named struct {
	Future
	name string
}

// Named attaches a name shown by task listings.
func Named(name string, f Future) Future {
	return named{Future: f, name: name}
}
