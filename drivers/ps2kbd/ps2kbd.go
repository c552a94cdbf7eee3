// Package ps2kbd drives a keyboard on the first port of an 8042 PS/2
// controller. The interrupt side only queues raw scan codes; decoding
// happens in PollNormal.
package ps2kbd

import (
	"hearth/internal/scancode"
	"hearth/kernel"
	"hearth/kernel/arch"
	"hearth/kernel/device"
	"hearth/kernel/fifo"
	"hearth/kernel/klog"
	"hearth/kernel/spin"
	"hearth/kernel/vfs"
)

const (
	Name = "ps2-kbd"

	// Vector is IRQ1 as remapped past the exception vectors.
	Vector arch.Vector = 0x21

	// QueueSize bounds the scan codes held between polls.
	QueueSize = 128

	PortData   = 0x60
	PortStatus = 0x64
	PortCmd    = 0x64

	StatusOutFull = 1 << 0
	StatusInFull  = 1 << 1

	CmdReadConfig  = 0x20
	CmdWriteConfig = 0x60
	CmdSelfTest    = 0xAA
	CmdEnablePort1 = 0xAE

	SelfTestOK = 0x55

	// port 1 interrupt, system flag, translation to set 1
	Config = 0x47
)

// spin budget for one controller handshake
const waitSpins = 1 << 12

type Driver struct {
	device.Lifecycle
	device.Base[*scancode.Event, int]

	self    *spin.Mutex[Driver]
	codes   *fifo.Fifo[uint8]
	dec     scancode.Decoder
	dropped uint64
}

var _ device.Driver[*vfs.DevFS, *scancode.Event, int] = (*Driver)(nil)

var dev device.Singleton[Driver]

func New() *spin.Mutex[Driver] {
	m := spin.New(Driver{
		Lifecycle: device.NewLifecycle(Name),
		codes:     fifo.New[uint8](QueueSize),
	})
	m.ForceMut().self = m
	return m
}

func Init() { dev.Set(New()) }

func waitStatus(mask, want uint8) bool {
	for i := 0; i < waitSpins; i++ {
		if arch.In8(PortStatus)&mask == want {
			return true
		}
	}
	return false
}

func command(cmd uint8) error {
	if !waitStatus(StatusInFull, 0) {
		return device.Errorf(Name, "command", "controller busy before %#x", cmd)
	}
	arch.Out8(PortCmd, cmd)
	return nil
}

func writeData(v uint8) error {
	if !waitStatus(StatusInFull, 0) {
		return device.Errorf(Name, "write", "controller busy before data %#x", v)
	}
	arch.Out8(PortData, v)
	return nil
}

func readData() (uint8, error) {
	if !waitStatus(StatusOutFull, StatusOutFull) {
		return 0, &device.Error{Device: Name, Op: "read", Err: kernel.ErrBusy}
	}
	return arch.In8(PortData), nil
}

// Probe runs the controller self-test.
func (d *Driver) Probe() error {
	if d.Probed() {
		return nil
	}
	if arch.In8(PortStatus) == 0xFF {
		return device.Errorf(Name, "probe", "no controller at %#x", PortStatus)
	}
	for i := 0; i < QueueSize && arch.In8(PortStatus)&StatusOutFull != 0; i++ {
		arch.In8(PortData)
	}
	if err := command(CmdSelfTest); err != nil {
		return err
	}
	r, err := readData()
	if err != nil {
		return err
	}
	if r != SelfTestOK {
		return device.Errorf(Name, "probe", "self-test returned %#x", r)
	}
	d.SetProbed()
	return nil
}

// Attach installs the /dev entry and the interrupt handler, then writes the
// controller configuration and enables port 1.
func (d *Driver) Attach(fs *vfs.DevFS) error {
	if done, err := d.CheckAttach(); done || err != nil {
		return err
	}
	if err := fs.AddDevFile(device.Descriptor(d.self), Name); err != nil {
		return err
	}
	arch.Register(Vector, handleInterrupt)
	if err := command(CmdWriteConfig); err != nil {
		return err
	}
	if err := writeData(Config); err != nil {
		return err
	}
	if err := command(CmdEnablePort1); err != nil {
		return err
	}
	d.SetAttached()
	return nil
}

// PollInt moves every byte the controller holds into the queue and
// returns how many it moved. A full queue is discarded, since a partial
// scan code sequence cannot be decoded anyway.
func (d *Driver) PollInt() (int, error) {
	if !d.Attached() {
		return 0, &device.Error{Device: Name, Op: "poll", Err: kernel.ErrNotReady}
	}
	n := 0
	for i := 0; i < QueueSize && arch.In8(PortStatus)&StatusOutFull != 0; i++ {
		c := arch.In8(PortData)
		if !d.codes.TryPush(c) {
			d.dropped += uint64(d.codes.Len())
			d.codes.Reset()
			d.dec = scancode.Decoder{}
			d.codes.TryPush(c)
		}
		n++
	}
	return n, nil
}

// PollNormal decodes queued scan codes and returns the next key event, or
// nil when none is complete.
func (d *Driver) PollNormal() (*scancode.Event, error) {
	if !d.Attached() {
		return nil, &device.Error{Device: Name, Op: "poll", Err: kernel.ErrNotReady}
	}
	for {
		c, ok := d.codes.TryPop()
		if !ok {
			return nil, nil
		}
		if ev, ok := d.dec.Feed(c); ok {
			return &ev, nil
		}
	}
}

// Dropped counts scan codes lost to queue overflow.
func (d *Driver) Dropped() uint64 { return d.dropped }

func handleInterrupt(arch.Vector) {
	m, err := dev.Get()
	if err != nil {
		return
	}
	g, err := m.TryLock()
	if err != nil {
		// The controller keeps the byte and raises the line again.
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

// Poll returns the next key event, nil when there is none.
func Poll() (*scancode.Event, error) {
	var ev *scancode.Event
	err := dev.With(func(d *Driver) error {
		var err error
		ev, err = d.PollNormal()
		return err
	})
	return ev, err
}

func Info() (device.Info, error) {
	var info device.Info
	err := dev.With(func(d *Driver) error {
		info = d.Info()
		return nil
	})
	return info, err
}
