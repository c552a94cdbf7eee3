// Package fbdisplay adapts an RGB565 framebuffer to the TinyGo display
// driver interface, so tinyterm and tinyfont can draw into it.
package fbdisplay

import (
	"image/color"

	"tinygo.org/x/drivers"
)

// Framebuffer is linear RGB565 memory with a present hook.
type Framebuffer interface {
	Width() int
	Height() int
	StrideBytes() int
	Buffer() []byte
	Present() error
}

// Display draws into a Framebuffer and remembers whether anything changed
// since the last Display call.
type Display struct {
	fb    Framebuffer
	dirty bool
}

var _ drivers.Displayer = (*Display)(nil)

func New(fb Framebuffer) *Display {
	return &Display{fb: fb}
}

func (d *Display) Size() (x, y int16) {
	if d.fb == nil {
		return 0, 0
	}
	return int16(d.fb.Width()), int16(d.fb.Height())
}

// Dirty reports whether pixels changed since the last Display.
func (d *Display) Dirty() bool { return d.dirty }

func (d *Display) SetPixel(x, y int16, c color.RGBA) {
	if d.fb == nil {
		return
	}
	ix, iy := int(x), int(y)
	if ix < 0 || ix >= d.fb.Width() || iy < 0 || iy >= d.fb.Height() {
		return
	}
	buf := d.fb.Buffer()
	off := iy*d.fb.StrideBytes() + ix*2
	if off+1 >= len(buf) {
		return
	}
	put565(buf[off:], RGB565(c))
	d.dirty = true
}

// Display presents the framebuffer and clears the dirty flag.
func (d *Display) Display() error {
	if d.fb == nil {
		return nil
	}
	d.dirty = false
	return d.fb.Present()
}

// ScrollUp moves the picture up by lines pixels and fills the exposed rows
// with bg.
func (d *Display) ScrollUp(lines int16, bg color.RGBA) error {
	if d.fb == nil || lines <= 0 {
		return nil
	}
	w, h := d.fb.Width(), d.fb.Height()
	n := int(lines)
	if n >= h {
		return d.FillRectangle(0, 0, int16(w), int16(h), bg)
	}

	buf := d.fb.Buffer()
	stride := d.fb.StrideBytes()
	src := n * stride
	end := h * stride
	if end > len(buf) {
		end = len(buf)
	}
	if src < end {
		copy(buf, buf[src:end])
	}
	d.dirty = true
	return d.FillRectangle(0, int16(h-n), int16(w), int16(n), bg)
}

func (d *Display) FillRectangle(x, y, width, height int16, c color.RGBA) error {
	if d.fb == nil {
		return nil
	}
	w, h := d.fb.Width(), d.fb.Height()
	x0 := clamp(int(x), 0, w)
	y0 := clamp(int(y), 0, h)
	x1 := clamp(int(x)+int(width), 0, w)
	y1 := clamp(int(y)+int(height), 0, h)
	if x0 >= x1 || y0 >= y1 {
		return nil
	}

	buf := d.fb.Buffer()
	stride := d.fb.StrideBytes()
	pixel := RGB565(c)
	for py := y0; py < y1; py++ {
		row := py * stride
		for px := x0; px < x1; px++ {
			off := row + px*2
			if off+1 >= len(buf) {
				break
			}
			put565(buf[off:], pixel)
		}
	}
	d.dirty = true
	return nil
}

// Clear fills the whole display with c.
func (d *Display) Clear(c color.RGBA) {
	w, h := d.Size()
	d.FillRectangle(0, 0, w, h, c)
}

// SetScroll is a no-op; scrolling is done in software.
func (d *Display) SetScroll(int16) {}

func (d *Display) SetRotation(drivers.Rotation) error { return nil }

// RGB565 packs c as rrrrrggggggbbbbb.
func RGB565(c color.RGBA) uint16 {
	return uint16(c.R>>3)<<11 | uint16(c.G>>2)<<5 | uint16(c.B>>3)
}

func put565(b []byte, p uint16) {
	b[0] = byte(p)
	b[1] = byte(p >> 8)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
