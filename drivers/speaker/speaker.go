// Package speaker drives the PC speaker through PIT channel 2.
//
// Writing a decimal frequency in Hz to /dev/speaker starts a tone, writing
// 0 stops it. Reading returns the frequency currently playing.
package speaker

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"hearth/kernel"
	"hearth/kernel/arch"
	"hearth/kernel/device"
	"hearth/kernel/klog"
	"hearth/kernel/spin"
	"hearth/kernel/task"
	"hearth/kernel/vfs"
)

const (
	Name = "speaker"

	// PITHz is the PIT input clock.
	PITHz = 1193182

	portChannel2 = 0x42
	portCommand  = 0x43
	portControl  = 0x61

	// channel 2, lobyte/hibyte, mode 3 (square wave)
	cmdSquareWave = 0x80 | 0x30 | 0x06

	gateAndData = 0b11

	MinFreq = 20
	MaxFreq = 20000
)

type Driver struct {
	device.Lifecycle
	device.Base[struct{}, struct{}]

	self *spin.Mutex[Driver]
	freq uint32
}

var _ device.Driver[*vfs.DevFS, struct{}, struct{}] = (*Driver)(nil)

var dev device.Singleton[Driver]

func New() *spin.Mutex[Driver] {
	m := spin.New(Driver{Lifecycle: device.NewLifecycle(Name)})
	m.ForceMut().self = m
	return m
}

func Init() { dev.Set(New()) }

// Probe checks that port 0x61 is decoded. An absent controller floats the
// bus and reads all ones.
func (d *Driver) Probe() error {
	if d.Probed() {
		return nil
	}
	if arch.In8(portControl) == 0xFF {
		return device.Errorf(Name, "probe", "port %#x not decoded", portControl)
	}
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

// Play starts a square wave at freq Hz. Zero stops the speaker.
func (d *Driver) Play(freq uint32) error {
	if err := d.CheckProbed("play"); err != nil {
		return err
	}
	if freq == 0 {
		d.Stop()
		return nil
	}
	if freq < MinFreq || freq > MaxFreq {
		return &device.Error{Device: Name, Op: "play", Err: kernel.ErrInvalidArgument}
	}

	div := PITHz / freq
	arch.Out8(portCommand, cmdSquareWave)
	arch.Out8(portChannel2, uint8(div))
	arch.Out8(portChannel2, uint8(div>>8))

	if c := arch.In8(portControl); c&gateAndData != gateAndData {
		arch.Out8(portControl, c|gateAndData)
	}
	d.freq = freq
	klog.Tracef("%s: %d Hz (divisor %d)", Name, freq, div)
	return nil
}

func (d *Driver) Stop() {
	arch.Out8(portControl, arch.In8(portControl)&^gateAndData)
	d.freq = 0
}

// Freq is the tone currently playing, 0 when silent.
func (d *Driver) Freq() uint32 { return d.freq }

func (d *Driver) Read() ([]byte, error) {
	if err := d.CheckProbed("read"); err != nil {
		return nil, err
	}
	return []byte(strconv.FormatUint(uint64(d.freq), 10) + "\n"), nil
}

func (d *Driver) Write(p []byte) error {
	s := strings.TrimSpace(string(p))
	f, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return &device.Error{Device: Name, Op: "write", Err: kernel.ErrInvalidArgument}
	}
	return d.Play(uint32(f))
}

func ProbeAndAttach(fs *vfs.DevFS) error {
	m, err := dev.Get()
	if err != nil {
		return err
	}
	return device.ProbeAndAttach[Driver](m, fs)
}

func Play(freq uint32) error {
	return dev.With(func(d *Driver) error { return d.Play(freq) })
}

func Stop() error {
	return dev.With(func(d *Driver) error {
		d.Stop()
		return nil
	})
}

// Beep plays freq for d and then stops. The returned future retries while
// the driver is busy and gives up on any other error.
func Beep(freq uint32, d time.Duration) task.Future {
	return task.Named("beep", task.Seq(
		retry(func() error { return Play(freq) }),
		task.Sleep(d),
		retry(Stop),
	))
}

func retry(fn func() error) task.Future {
	return task.FutureFunc(func(*task.Context) task.Poll {
		err := fn()
		if errors.Is(err, kernel.ErrBusy) {
			return task.Pending
		}
		if err != nil {
			klog.Warnf("%s: %v", Name, err)
		}
		return task.Ready
	})
}
