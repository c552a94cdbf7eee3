//go:build tinygo

package app

import (
	"image/color"

	"hearth/hal"
	"hearth/internal/buildinfo"
	"hearth/internal/fbdisplay"

	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
)

func bootScreen(h hal.HAL, msg string) {
	fb := framebuffer(h)
	if fb == nil {
		return
	}
	fb.ClearRGB(0, 0, 0)

	d := fbdisplay.New(fb)
	font := &proggy.TinySZ8pt7b
	fg := color.RGBA{R: 0xFF, G: 0xB0, B: 0x30, A: 0xFF}
	tinyfont.WriteLine(d, font, 0, 12, "hearth "+buildinfo.Short(), fg)
	tinyfont.WriteLine(d, font, 0, 28, msg, fg)
	_ = d.Display()
}
