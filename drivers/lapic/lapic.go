// Package lapic drives the local APIC timer, the kernel's only time source.
// Every tick advances the published uptime by one timer period.
package lapic

import (
	"fmt"
	"math/bits"
	"sync/atomic"
	"time"

	"hearth/kernel"
	"hearth/kernel/arch"
	"hearth/kernel/device"
	"hearth/kernel/klog"
	"hearth/kernel/mmio"
	"hearth/kernel/spin"
	"hearth/kernel/uptime"
	"hearth/kernel/volatile"
)

const (
	Name = "local-apic-timer"

	// Vector is the interrupt vector the timer is programmed to raise.
	Vector arch.Vector = 0x40

	DefaultPeriod = 10 * time.Millisecond
	DefaultBusHz  = 100_000_000
)

// Config describes the timer to program.
type Config struct {
	Mapper mmio.Mapper
	// Period between timer interrupts.
	Period time.Duration
	// BusHz is the APIC timer input clock.
	BusHz uint64
}

// Driver is the local APIC timer. Its attach argument is unused; the timer
// has no /dev entry.
type Driver struct {
	device.Lifecycle
	device.Base[struct{}, uint64]

	cfg  Config
	regs *mmio.Handle[Regs]
	tick uint64
}

var _ device.Driver[struct{}, struct{}, uint64] = (*Driver)(nil)

var (
	dev device.Singleton[Driver]

	// Ticks the interrupt handler could not account for because a task held
	// the driver. The next successful PollInt adds them back.
	missed atomic.Uint64
	eoi    atomic.Pointer[volatile.Cell[uint32]]
)

// New returns an unprobed driver instance.
func New(cfg Config) *spin.Mutex[Driver] {
	if cfg.Period <= 0 {
		cfg.Period = DefaultPeriod
	}
	if cfg.BusHz == 0 {
		cfg.BusHz = DefaultBusHz
	}
	return spin.New(Driver{Lifecycle: device.NewLifecycle(Name), cfg: cfg})
}

// Init installs the driver singleton.
func Init(cfg Config) {
	dev.Set(New(cfg))
}

func (d *Driver) Probe() error {
	if d.Probed() {
		return nil
	}
	if d.cfg.Mapper == nil {
		return &device.Error{Device: Name, Op: "probe", Err: kernel.ErrInvalidArgument}
	}
	h, err := mmio.Map[Regs](d.cfg.Mapper, BaseAddr)
	if err != nil {
		return &device.Error{Device: Name, Op: "probe", Err: err}
	}
	v := h.AsRef().Version.Read()
	if ver := v & 0xFF; ver < 0x10 || ver > 0x15 {
		h.Release()
		return device.Errorf(Name, "probe", "no integrated local APIC (version %#x)", v)
	}
	klog.Debugf("%s: id %d version %#x max lvt %d", Name, h.AsRef().ID.Read()>>24, v&0xFF, (v>>16)&0xFF+1)
	d.regs = h
	d.SetProbed()
	return nil
}

// Attach programs the timer as periodic at the configured period and
// installs the interrupt handler.
func (d *Driver) Attach(struct{}) error {
	if done, err := d.CheckAttach(); done || err != nil {
		return err
	}

	count, div, divCode, ok := initialCount(d.cfg.Period, d.cfg.BusHz)
	if !ok {
		return device.Errorf(Name, "attach", "period %v out of range for %d Hz bus", d.cfg.Period, d.cfg.BusHz)
	}

	r := d.regs.UncheckedMut()
	eoi.Store(&r.EOI.Cell)
	arch.Register(Vector, handleInterrupt)

	r.InitCount.Write(0)
	r.DivideConf.Write(divCode)
	r.LVTTimer.Write(lvtPeriodic | uint32(Vector))
	r.InitCount.Write(uint32(count))

	klog.Debugf("%s: vector %#x every %v (count %d, divide %d)", Name, Vector, d.cfg.Period, count, div)
	d.SetAttached()
	return nil
}

// initialCount converts period into an initial count and divider for a
// busHz timer clock. ok is false when the period cannot be programmed.
func initialCount(period time.Duration, busHz uint64) (count, div uint64, divCode uint32, ok bool) {
	if period <= 0 || busHz == 0 {
		return 0, 0, 0, false
	}
	hi, lo := bits.Mul64(busHz, uint64(period))
	if hi >= uint64(time.Second) {
		return 0, 0, 0, false
	}
	count, _ = bits.Div64(hi, lo, uint64(time.Second))
	div, divCode = 1, divideBy1
	if count > 0xFFFFFFFF {
		div, divCode = 16, divideBy16
		count /= div
	}
	if count == 0 || count > 0xFFFFFFFF {
		return 0, 0, 0, false
	}
	return count, div, divCode, true
}

// CheckPeriod reports whether the timer can fire every period on a busHz
// clock.
func CheckPeriod(period time.Duration, busHz uint64) error {
	if _, _, _, ok := initialCount(period, busHz); !ok {
		return fmt.Errorf("timer period %v out of range for %d Hz bus: %w", period, busHz, kernel.ErrInvalidArgument)
	}
	return nil
}

func (d *Driver) Open() error  { return kernel.ErrUnimplemented }
func (d *Driver) Close() error { return kernel.ErrUnimplemented }

// PollInt accounts one timer interrupt and publishes the new uptime.
func (d *Driver) PollInt() (uint64, error) {
	if !d.Attached() {
		return 0, &device.Error{Device: Name, Op: "poll", Err: kernel.ErrNotReady}
	}
	d.tick += 1 + missed.Swap(0)
	uptime.Publish(d.Uptime())
	return d.tick, nil
}

// Stop masks the timer.
func (d *Driver) Stop() {
	if d.regs == nil {
		return
	}
	r := d.regs.UncheckedMut()
	r.InitCount.Write(0)
	r.LVTTimer.SetBits(lvtMasked)
}

func (d *Driver) Tick() uint64 { return d.tick }

func (d *Driver) Uptime() time.Duration {
	return time.Duration(d.tick) * d.cfg.Period
}

func (d *Driver) Period() time.Duration { return d.cfg.Period }

func handleInterrupt(arch.Vector) {
	if m, err := dev.Get(); err == nil {
		if g, err := m.TryLock(); err == nil {
			g.Get().PollInt()
			g.Unlock()
		} else {
			missed.Add(1)
		}
	}
	if r := eoi.Load(); r != nil {
		r.Write(0)
	}
}

// ProbeAndAttach brings up the singleton.
func ProbeAndAttach() error {
	m, err := dev.Get()
	if err != nil {
		return err
	}
	return device.ProbeAndAttach[Driver](m, struct{}{})
}

func Info() (device.Info, error) {
	var info device.Info
	err := dev.With(func(d *Driver) error {
		info = d.Info()
		return nil
	})
	return info, err
}

// Uptime is the time since the timer was attached.
func Uptime() time.Duration {
	return uptime.Now()
}

// Status is a one-line summary for the monitor.
func Status() string {
	m, err := dev.Get()
	if err != nil {
		return Name + ": not initialised"
	}
	g := m.SpinLock()
	defer g.Unlock()
	d := g.Get()
	return fmt.Sprintf("%s: tick %d period %v attached %v", Name, d.tick, d.cfg.Period, d.Attached())
}
