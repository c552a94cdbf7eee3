package app

import (
	"fmt"
	"image/color"
	"strings"

	"hearth/hal"
	"hearth/internal/fbdisplay"
	"hearth/kernel"
	"hearth/kernel/arch"

	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
)

// Writing here powers the machine off with a non-zero exit status.
const (
	portDebugExit = 0xF4
	exitPanic     = 0x01
)

// installPanicHandler must run after the platform is installed.
func installPanicHandler(h hal.HAL) {
	kernel.SetPanicHandler(func(info kernel.PanicInfo) {
		arch.DisableInt()
		lines := panicLines(info)
		if l := h.Logger(); l != nil {
			for _, line := range lines {
				l.WriteLineString(line)
			}
		}
		drawPanic(h, lines)

		arch.Out8(portDebugExit, exitPanic)
		h.PowerOff()
	})
}

func panicLines(info kernel.PanicInfo) []string {
	lines := []string{
		"Kernel panic:",
		info.Where(),
		fmt.Sprintf("panic: %v", info.Value),
	}
	if len(info.Stack) == 0 {
		return append(lines, "stack: unavailable")
	}
	lines = append(lines, "stack:")
	for _, line := range strings.Split(string(info.Stack), "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func drawPanic(h hal.HAL, lines []string) {
	disp := h.Display()
	if disp == nil {
		return
	}
	fb := disp.Framebuffer()
	if fb == nil || fb.Format() != hal.PixelFormatRGB565 {
		return
	}
	fb.ClearRGB(0x80, 0, 0)

	font := &proggy.TinySZ8pt7b
	fontHeight, fontOffset := int16(10), int16(6)
	_, outbox := tinyfont.LineWidth(font, "0")
	fontWidth := int16(outbox)
	if fontWidth <= 0 {
		_ = fb.Present()
		return
	}

	d := fbdisplay.New(fb)
	fg := color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
	cols := max(int(int16(fb.Width())/fontWidth), 1)
	maxH := int16(fb.Height())

	var y int16
	for _, line := range lines {
		for len(line) > 0 {
			if y+fontHeight > maxH {
				_ = d.Display()
				return
			}
			chunk, rest := splitCols(line, cols)
			drawTextLine(d, font, fontWidth, fontOffset, 0, y, chunk, fg)
			y += fontHeight
			line = strings.TrimLeft(rest, " \t")
		}
	}
	_ = d.Display()
}

func drawTextLine(
	d *fbdisplay.Display,
	font tinyfont.Fonter,
	fontWidth, fontOffset int16,
	x0, y0 int16,
	s string,
	fg color.RGBA,
) {
	x := x0
	for _, r := range s {
		if r == '\t' {
			r = ' '
		}
		tinyfont.DrawChar(d, font, x, y0+fontOffset, r, fg)
		x += fontWidth
	}
}

// splitCols cuts s after n runes.
func splitCols(s string, n int) (head, tail string) {
	if n <= 0 {
		return "", s
	}
	col := 0
	for i := range s {
		if col == n {
			return s[:i], s[i:]
		}
		col++
	}
	return s, ""
}
