package tty

import (
	"bytes"
	"errors"
	"testing"

	"hearth/internal/scancode"
	"hearth/kernel"
	"hearth/kernel/vfs"
)

type memFB struct {
	w, h     int
	buf      []byte
	presents int
}

func newMemFB(w, h int) *memFB {
	return &memFB{w: w, h: h, buf: make([]byte, w*h*2)}
}

func (f *memFB) Width() int       { return f.w }
func (f *memFB) Height() int      { return f.h }
func (f *memFB) StrideBytes() int { return f.w * 2 }
func (f *memFB) Buffer() []byte   { return f.buf }

func (f *memFB) Present() error {
	f.presents++
	return nil
}

func TestProbeWithoutFramebuffer(t *testing.T) {
	m := New(nil)
	if err := m.ForceMut().Probe(); !errors.Is(err, kernel.ErrNotFound) {
		t.Fatalf("Probe() err = %v, want ErrNotFound", err)
	}
}

func TestConsole(t *testing.T) {
	fb := newMemFB(160, 64)
	Init(fb)
	fs := vfs.New()

	if err := Write([]byte("early")); !errors.Is(err, kernel.ErrNotReady) {
		t.Fatalf("Write() before attach err = %v, want ErrNotReady", err)
	}
	if err := ProbeAndAttach(fs); err != nil {
		t.Fatalf("ProbeAndAttach() err = %v", err)
	}
	f, err := fs.Open("/dev/tty0")
	if err != nil {
		t.Fatalf("Open() err = %v", err)
	}

	shown, err := Flush()
	if err != nil || !shown {
		t.Fatalf("Flush() after attach = %v, %v, want clear screen shown", shown, err)
	}
	if shown, _ := Flush(); shown {
		t.Fatalf("Flush() with nothing drawn = true")
	}

	if err := f.Write([]byte("hearth> ")); err != nil {
		t.Fatalf("Write() err = %v", err)
	}
	if bytes.Count(fb.buf, []byte{0}) == len(fb.buf) {
		t.Fatalf("nothing drawn")
	}
	if shown, _ := Flush(); !shown || fb.presents != 2 {
		t.Fatalf("Flush() after write = %v, presents = %d", shown, fb.presents)
	}
	if err := f.Write([]byte("x\b")); err != nil {
		t.Fatalf("Write() with backspace err = %v", err)
	}

	Key(scancode.Event{Press: true, Rune: 'l'})
	Key(scancode.Event{Press: true, Rune: 's'})
	Key(scancode.Event{Key: scancode.KeyUp, Press: true})
	Key(scancode.Event{Key: scancode.KeyUp})
	Key(scancode.Event{Key: scancode.KeyEnter, Press: true})
	b, err := f.Read()
	if err != nil || string(b) != "ls\x1b[A\n" {
		t.Fatalf("Read() = %q, %v", b, err)
	}
}

func TestInputOverflow(t *testing.T) {
	m := New(newMemFB(64, 32))
	d := m.ForceMut()
	d.SetProbed()
	for i := 0; i < InputQueueSize+3; i++ {
		d.Key(scancode.Event{Press: true, Rune: 'é'})
	}
	if d.Lost() == 0 {
		t.Fatalf("Lost() = 0 after overfilling input")
	}
	b, _ := d.Read()
	if len(b) != InputQueueSize {
		t.Fatalf("len(Read()) = %d, want %d", len(b), InputQueueSize)
	}
}
