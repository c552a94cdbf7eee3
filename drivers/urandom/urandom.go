// Package urandom is /dev/urandom: every read returns a fresh block of
// pseudo-random bytes seeded from uptime.
package urandom

import (
	"encoding/binary"
	"math/rand/v2"

	"hearth/kernel/device"
	"hearth/kernel/spin"
	"hearth/kernel/uptime"
	"hearth/kernel/vfs"
)

const (
	Name = "urandom"

	// ReadSize is the number of bytes one read returns.
	ReadSize = 256
)

type Driver struct {
	device.Lifecycle
	device.Base[struct{}, struct{}]

	self  *spin.Mutex[Driver]
	clock uptime.Clock
	reads uint64
}

var _ device.Driver[*vfs.DevFS, struct{}, struct{}] = (*Driver)(nil)

var dev device.Singleton[Driver]

func New(clock uptime.Clock) *spin.Mutex[Driver] {
	if clock == nil {
		clock = uptime.System
	}
	m := spin.New(Driver{Lifecycle: device.NewLifecycle(Name), clock: clock})
	m.ForceMut().self = m
	return m
}

func Init(clock uptime.Clock) {
	dev.Set(New(clock))
}

func (d *Driver) Probe() error {
	d.SetProbed()
	return nil
}

func (d *Driver) Attach(fs *vfs.DevFS) error {
	if done, err := d.CheckAttach(); done || err != nil {
		return err
	}
	if err := fs.AddDevFile(device.Descriptor(d.self), Name); err != nil {
		return err
	}
	d.SetAttached()
	return nil
}

// Read returns ReadSize bytes from a PCG stream seeded with the current
// uptime in nanoseconds.
func (d *Driver) Read() ([]byte, error) {
	if err := d.CheckProbed("read"); err != nil {
		return nil, err
	}
	d.reads++
	seed := uint64(d.clock.Now().Nanoseconds())
	rng := rand.New(rand.NewPCG(seed, d.reads))

	buf := make([]byte, ReadSize)
	for i := 0; i < len(buf); i += 8 {
		binary.LittleEndian.PutUint64(buf[i:], rng.Uint64())
	}
	return buf, nil
}

// Write accepts and discards everything.
func (d *Driver) Write([]byte) error { return nil }

func ProbeAndAttach(fs *vfs.DevFS) error {
	m, err := dev.Get()
	if err != nil {
		return err
	}
	return device.ProbeAndAttach[Driver](m, fs)
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
