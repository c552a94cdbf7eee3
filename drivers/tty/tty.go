// Package tty is the framebuffer console, /dev/tty0. Writes are rendered
// with a VT100 subset; reads return queued keyboard input.
package tty

import (
	"bytes"
	"image/color"

	"hearth/internal/fbdisplay"
	"hearth/internal/scancode"
	"hearth/kernel"
	"hearth/kernel/device"
	"hearth/kernel/fifo"
	"hearth/kernel/spin"
	"hearth/kernel/vfs"

	"tinygo.org/x/tinyfont/proggy"
	"tinygo.org/x/tinyterm"
)

const (
	Name = "tty0"

	InputQueueSize = 256

	fontHeight = 10
	fontOffset = 6
)

var (
	black = color.RGBA{A: 0xFF}

	// Backspace moves left, blanks the cell and moves left again.
	erase = []byte("\x1b[D \x1b[D")
)

type Driver struct {
	device.Lifecycle
	device.Base[bool, struct{}]

	self  *spin.Mutex[Driver]
	fb    fbdisplay.Framebuffer
	disp  *fbdisplay.Display
	term  *tinyterm.Terminal
	input *fifo.Fifo[byte]
	lost  uint64
}

var _ device.Driver[*vfs.DevFS, bool, struct{}] = (*Driver)(nil)

var dev device.Singleton[Driver]

func New(fb fbdisplay.Framebuffer) *spin.Mutex[Driver] {
	m := spin.New(Driver{
		Lifecycle: device.NewLifecycle(Name),
		fb:        fb,
		input:     fifo.New[byte](InputQueueSize),
	})
	m.ForceMut().self = m
	return m
}

func Init(fb fbdisplay.Framebuffer) { dev.Set(New(fb)) }

func (d *Driver) Probe() error {
	if d.Probed() {
		return nil
	}
	if d.fb == nil || d.fb.Width() < 8 || d.fb.Height() < fontHeight {
		return &device.Error{Device: Name, Op: "probe", Err: kernel.ErrNotFound}
	}
	d.SetProbed()
	return nil
}

func (d *Driver) Attach(fs *vfs.DevFS) error {
	if done, err := d.CheckAttach(); done || err != nil {
		return err
	}
	d.disp = fbdisplay.New(d.fb)
	d.disp.Clear(black)
	d.term = tinyterm.NewTerminal(d.disp)
	d.term.Configure(&tinyterm.Config{
		Font:              &proggy.TinySZ8pt7b,
		FontHeight:        fontHeight,
		FontOffset:        fontOffset,
		UseSoftwareScroll: true,
	})
	if err := fs.AddDevFile(device.Descriptor(d.self), Name); err != nil {
		return err
	}
	d.SetAttached()
	return nil
}

// Key queues the terminal bytes for a key press for readers of /dev/tty0.
func (d *Driver) Key(ev scancode.Event) {
	d.queue(scancode.VT100(ev))
}

func (d *Driver) queue(p []byte) {
	for _, c := range p {
		if !d.input.TryPush(c) {
			d.lost++
		}
	}
}

// Read returns queued input.
func (d *Driver) Read() ([]byte, error) {
	if err := d.CheckProbed("read"); err != nil {
		return nil, err
	}
	n := d.input.Len()
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	return buf[:d.input.Drain(buf)], nil
}

// Write renders p. It is drawn into the framebuffer at once but shown only
// at the next PollNormal.
func (d *Driver) Write(p []byte) error {
	if !d.Attached() {
		return &device.Error{Device: Name, Op: "write", Err: kernel.ErrNotReady}
	}
	for len(p) > 0 {
		i := bytes.IndexAny(p, "\b\x7f")
		if i < 0 {
			d.term.Write(p)
			break
		}
		d.term.Write(p[:i])
		d.term.Write(erase)
		p = p[i+1:]
	}
	return nil
}

// PollNormal presents the framebuffer if anything was drawn since the last
// call and reports whether it did.
func (d *Driver) PollNormal() (bool, error) {
	if !d.Attached() {
		return false, &device.Error{Device: Name, Op: "poll", Err: kernel.ErrNotReady}
	}
	if !d.disp.Dirty() {
		return false, nil
	}
	return true, d.disp.Display()
}

// Lost counts input bytes dropped because nobody was reading.
func (d *Driver) Lost() uint64 { return d.lost }

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

func Key(ev scancode.Event) error {
	return dev.With(func(d *Driver) error {
		d.Key(ev)
		return nil
	})
}

// Flush presents pending drawing.
func Flush() (bool, error) {
	var shown bool
	err := dev.With(func(d *Driver) error {
		var err error
		shown, err = d.PollNormal()
		return err
	})
	return shown, err
}

// Sink writes log lines to the console. Lines are dropped while the
// console is busy.
type Sink struct{}

func (Sink) WriteLineString(s string) {
	Write([]byte(s + "\n"))
}

func (Sink) WriteLineBytes(b []byte) {
	Write(append(b[:len(b):len(b)], '\n'))
}
