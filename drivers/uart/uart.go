// Package uart drives the COM1 16550 UART.
package uart

import (
	"hearth/kernel"
	"hearth/kernel/arch"
	"hearth/kernel/device"
	"hearth/kernel/fifo"
	"hearth/kernel/klog"
	"hearth/kernel/spin"
	"hearth/kernel/vfs"
)

const (
	Name = "uart"

	// COM1 is the base I/O port.
	COM1 = 0x3F8

	// Vector is IRQ4 as remapped past the exception vectors.
	Vector arch.Vector = 0x24

	RxQueueSize = 512

	// BaseBaud is the 16550 input clock divided by 16.
	BaseBaud = 115200
	Baud     = 38400
)

// Register offsets from the base port.
const (
	regData = 0 // RBR / THR, DLL with DLAB
	regIER  = 1 // DLM with DLAB
	regFCR  = 2
	regLCR  = 3
	regMCR  = 4
	regLSR  = 5
)

const (
	lcrDLAB = 0x80
	lcr8N1  = 0x03

	fcrEnable14 = 0xC7

	mcrDTR      = 0x01
	mcrRTS      = 0x02
	mcrOut1     = 0x04
	mcrOut2     = 0x08
	mcrLoopback = 0x10

	ierRxAvail = 0x01

	lsrDataReady = 0x01
	lsrTHRE      = 0x20

	loopbackProbe = 0xAE
)

const txSpins = 1 << 12

type Driver struct {
	device.Lifecycle
	device.Base[int, int]

	self    *spin.Mutex[Driver]
	base    uint16
	rx      *fifo.Fifo[uint8]
	dropped uint64
}

var _ device.Driver[*vfs.DevFS, int, int] = (*Driver)(nil)

var dev device.Singleton[Driver]

func New(base uint16) *spin.Mutex[Driver] {
	if base == 0 {
		base = COM1
	}
	m := spin.New(Driver{
		Lifecycle: device.NewLifecycle(Name),
		base:      base,
		rx:        fifo.New[uint8](RxQueueSize),
	})
	m.ForceMut().self = m
	return m
}

func Init(base uint16) { dev.Set(New(base)) }

func (d *Driver) in(reg uint16) uint8     { return arch.In8(d.base + reg) }
func (d *Driver) out(reg uint16, v uint8) { arch.Out8(d.base+reg, v) }

// Probe programs the line and verifies the chip by sending a byte through
// the internal loopback.
func (d *Driver) Probe() error {
	if d.Probed() {
		return nil
	}
	div := uint16(BaseBaud / Baud)

	d.out(regIER, 0)
	d.out(regLCR, lcrDLAB)
	d.out(regData, uint8(div))
	d.out(regIER, uint8(div>>8))
	d.out(regLCR, lcr8N1)
	d.out(regFCR, fcrEnable14)
	d.out(regMCR, mcrDTR|mcrRTS|mcrOut2)

	d.out(regMCR, mcrRTS|mcrOut1|mcrOut2|mcrLoopback)
	d.out(regData, loopbackProbe)
	if got := d.in(regData); got != loopbackProbe {
		return device.Errorf(Name, "probe", "loopback returned %#x", got)
	}
	d.out(regMCR, mcrDTR|mcrRTS|mcrOut1|mcrOut2)
	d.SetProbed()
	return nil
}

// Attach enables the receive interrupt and installs /dev/uart.
func (d *Driver) Attach(fs *vfs.DevFS) error {
	if done, err := d.CheckAttach(); done || err != nil {
		return err
	}
	if err := fs.AddDevFile(device.Descriptor(d.self), Name); err != nil {
		return err
	}
	arch.Register(Vector, handleInterrupt)
	d.out(regIER, ierRxAvail)
	d.SetAttached()
	return nil
}

func (d *Driver) drain() int {
	n := 0
	for n < RxQueueSize && d.in(regLSR)&lsrDataReady != 0 {
		if !d.rx.TryPush(d.in(regData)) {
			d.dropped++
		}
		n++
	}
	return n
}

// PollInt moves received bytes into the queue. Bytes that do not fit are
// dropped and counted.
func (d *Driver) PollInt() (int, error) {
	if !d.Attached() {
		return 0, &device.Error{Device: Name, Op: "poll", Err: kernel.ErrNotReady}
	}
	return d.drain(), nil
}

// PollNormal is PollInt for callers running with interrupts masked or
// without the RX interrupt.
func (d *Driver) PollNormal() (int, error) { return d.PollInt() }

// Read returns everything received so far.
func (d *Driver) Read() ([]byte, error) {
	if err := d.CheckProbed("read"); err != nil {
		return nil, err
	}
	n := d.rx.Len()
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	return buf[:d.rx.Drain(buf)], nil
}

// Write transmits p. It returns ErrBusy if the transmitter stays full;
// bytes before the stall have been sent.
func (d *Driver) Write(p []byte) error {
	if err := d.CheckProbed("write"); err != nil {
		return err
	}
	for _, b := range p {
		if !d.waitTHRE() {
			return &device.Error{Device: Name, Op: "write", Err: kernel.ErrBusy}
		}
		d.out(regData, b)
	}
	return nil
}

func (d *Driver) waitTHRE() bool {
	for i := 0; i < txSpins; i++ {
		if d.in(regLSR)&lsrTHRE != 0 {
			return true
		}
	}
	return false
}

// Dropped counts received bytes lost to a full queue.
func (d *Driver) Dropped() uint64 { return d.dropped }

func handleInterrupt(arch.Vector) {
	m, err := dev.Get()
	if err != nil {
		return
	}
	g, err := m.TryLock()
	if err != nil {
		return
	}
	if _, err := g.Get().PollInt(); err != nil {
		klog.Tracef("%s: %v", Name, err)
	}
	g.Unlock()
}

func ProbeAndAttach(fs *vfs.DevFS) error {
	m, err := dev.Get()
	if err != nil {
		return err
	}
	return device.ProbeAndAttach[Driver](m, fs)
}

func Write(p []byte) error {
	return dev.With(func(d *Driver) error { return d.Write(p) })
}

func Read() ([]byte, error) {
	var out []byte
	err := dev.With(func(d *Driver) error {
		var err error
		out, err = d.Read()
		return err
	})
	return out, err
}

// Poll drains the receiver from a task.
func Poll() (int, error) {
	var n int
	err := dev.With(func(d *Driver) error {
		var err error
		n, err = d.PollNormal()
		return err
	})
	return n, err
}
