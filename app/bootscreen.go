//go:build !tinygo

package app

import (
	"encoding/binary"
	"image"

	"github.com/fogleman/gg"

	"hearth/hal"
	"hearth/internal/buildinfo"
	"hearth/internal/fbdisplay"
)

// bootScreen draws the splash shown until the console takes over the
// framebuffer.
func bootScreen(h hal.HAL, msg string) {
	fb := framebuffer(h)
	if fb == nil {
		return
	}
	w, ht := fb.Width(), fb.Height()
	cx, cy := float64(w)/2, float64(ht)/2

	dc := gg.NewContext(w, ht)
	dc.SetRGB255(0x10, 0x0C, 0x0A)
	dc.Clear()

	// Embers.
	dc.SetRGB255(0xE0, 0x50, 0x10)
	dc.DrawEllipse(cx, cy-18, 22, 30)
	dc.Fill()
	dc.SetRGB255(0xFF, 0xB0, 0x30)
	dc.DrawEllipse(cx, cy-10, 12, 18)
	dc.Fill()
	dc.SetRGB255(0x50, 0x30, 0x20)
	dc.DrawRoundedRectangle(cx-40, cy+12, 80, 8, 3)
	dc.Fill()

	dc.SetRGB255(0xF0, 0xE8, 0xDC)
	dc.DrawStringAnchored("hearth "+buildinfo.Short(), cx, cy+36, 0.5, 0.5)
	dc.SetRGB255(0x90, 0x88, 0x80)
	dc.DrawStringAnchored(msg, cx, cy+54, 0.5, 0.5)

	img, ok := dc.Image().(*image.RGBA)
	if !ok {
		return
	}
	blit(fb, img)
	_ = fb.Present()
}

func blit(fb hal.Framebuffer, img *image.RGBA) {
	buf, stride := fb.Buffer(), fb.StrideBytes()
	b := img.Bounds()
	for y := 0; y < b.Dy() && y < fb.Height(); y++ {
		row := buf[y*stride:]
		for x := 0; x < b.Dx() && x < fb.Width(); x++ {
			binary.LittleEndian.PutUint16(row[x*2:], fbdisplay.RGB565(img.RGBAAt(x, y)))
		}
	}
}
