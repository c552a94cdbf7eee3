package task

import (
	"sync/atomic"
	"time"

	"hearth/kernel"
	"hearth/kernel/klog"
	"hearth/kernel/spin"
	"hearth/kernel/uptime"
)

// ID identifies a task. Ids start at 1 and are never reused.
type ID uint64

var lastID atomic.Uint64

func nextID() ID { return ID(lastID.Add(1)) }

type asyncTask struct {
	id       ID
	name     string
	f        Future
	interval time.Duration

	polledAt time.Duration
	polled   bool
	polls    uint64
}

// poll gates the inner future on the task's interval.
func (t *asyncTask) poll(cx *Context) Poll {
	if t.interval > 0 && t.polled && cx.now < uptime.Add(t.polledAt, t.interval) {
		return Pending
	}
	if !t.polled || cx.now > t.polledAt {
		t.polledAt = cx.now
	}
	t.polled = true
	t.polls++
	return t.f.Poll(cx)
}

type queue struct {
	ready   bool
	warned  bool
	running *asyncTask
	tasks   []*asyncTask
	done    uint64
}

func (q *queue) push(t *asyncTask) { q.tasks = append(q.tasks, t) }

func (q *queue) pop() *asyncTask {
	t := q.tasks[0]
	q.tasks[0] = nil
	q.tasks = q.tasks[1:]
	if len(q.tasks) == 0 {
		q.tasks = q.tasks[:0:0]
	}
	return t
}

// Executor is a FIFO round-robin of tasks. Every verb takes the executor's
// mutex with TryLock and reports ErrBusy on contention; the caller retries
// on its next tick.
type Executor struct {
	clock uptime.Clock
	state *spin.Mutex[queue]
}

// New returns an executor reading time from clock. It polls nothing until
// Ready is called.
func New(clock uptime.Clock) *Executor {
	if clock == nil {
		clock = uptime.System
	}
	return &Executor{clock: clock, state: spin.New(queue{})}
}

// Spawn appends f to the back of the queue. With interval > 0 the task's
// future is advanced at most once per interval of uptime.
func (e *Executor) Spawn(f Future, interval time.Duration) (ID, error) {
	if f == nil {
		return 0, kernel.ErrInvalidArgument
	}
	if interval < 0 {
		interval = 0
	}
	t := &asyncTask{f: f, interval: interval}
	if n, ok := f.(named); ok {
		t.name = n.name
	}

	g, err := e.state.TryLock()
	if err != nil {
		return 0, err
	}
	t.id = nextID()
	g.Get().push(t)
	g.Unlock()
	return t.id, nil
}

// Ready lets PollOnce run tasks. Boot calls it once timers and interrupts
// are live.
func (e *Executor) Ready() error {
	g, err := e.state.TryLock()
	if err != nil {
		return err
	}
	g.Get().ready = true
	g.Unlock()
	return nil
}

// PollOnce polls the task at the front of the queue once. A task that
// returns Pending goes to the back; a task that returns Ready is dropped.
//
// It returns ErrNotReady before Ready, ErrBusy when re-entered from inside
// a polled future, and ErrFatal after a future panicked and the panic was
// handed to the kernel panic handler.
func (e *Executor) PollOnce() error {
	g, err := e.state.TryLock()
	if err != nil {
		return err
	}
	q := g.Get()
	switch {
	case !q.ready:
		if !q.warned {
			q.warned = true
			klog.Debugf("task: poll before ready")
		}
		g.Unlock()
		return kernel.ErrNotReady
	case q.running != nil:
		g.Unlock()
		return kernel.ErrBusy
	case len(q.tasks) == 0:
		g.Unlock()
		return nil
	}
	t := q.pop()
	q.running = t
	g.Unlock()

	res, err := e.run(t)
	if err != nil {
		return err
	}

	g = e.state.SpinLock()
	q = g.Get()
	q.running = nil
	if res == Ready {
		q.done++
		g.Unlock()
		klog.Debugf("task: done (id: %d)", t.id)
		return nil
	}
	q.push(t)
	g.Unlock()
	return nil
}

func (e *Executor) run(t *asyncTask) (res Poll, err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		g := e.state.SpinLock()
		g.Get().running = nil
		g.Unlock()
		kernel.TriggerPanic(kernel.PanicInfo{TaskID: uint64(t.id), Vector: -1, Value: r})
		err = kernel.ErrFatal
	}()
	cx := &Context{id: t.id, now: e.clock.Now(), ex: e}
	return t.poll(cx), nil
}

// Len returns the number of queued tasks, counting one being polled.
func (e *Executor) Len() int {
	g := e.state.SpinLock()
	defer g.Unlock()
	q := g.Get()
	n := len(q.tasks)
	if q.running != nil {
		n++
	}
	return n
}

// Info describes one live task.
type Info struct {
	ID       ID
	Name     string
	Interval time.Duration
	Polls    uint64
	PolledAt time.Duration
	Running  bool
}

// Tasks lists live tasks, the running one first, then in queue order.
func (e *Executor) Tasks() []Info {
	g := e.state.SpinLock()
	defer g.Unlock()
	q := g.Get()

	out := make([]Info, 0, len(q.tasks)+1)
	if t := q.running; t != nil {
		out = append(out, t.info(true))
	}
	for _, t := range q.tasks {
		out = append(out, t.info(false))
	}
	return out
}

// Completed counts tasks that returned Ready.
func (e *Executor) Completed() uint64 {
	g := e.state.SpinLock()
	defer g.Unlock()
	return g.Get().done
}

func (t *asyncTask) info(running bool) Info {
	return Info{
		ID:       t.id,
		Name:     t.name,
		Interval: t.interval,
		Polls:    t.polls,
		PolledAt: t.polledAt,
		Running:  running,
	}
}

// Default is the kernel's executor.
var Default = New(uptime.System)

func Spawn(f Future, interval time.Duration) (ID, error) { return Default.Spawn(f, interval) }
func MarkReady() error                                   { return Default.Ready() }
func PollOnce() error                                    { return Default.PollOnce() }
