//go:build !tinygo && cgo

package hal

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"hearth/internal/scancode"
)

var windowKeys = []struct {
	ebiten ebiten.Key
	key    scancode.Key
}{
	{ebiten.KeyArrowUp, scancode.KeyUp},
	{ebiten.KeyArrowDown, scancode.KeyDown},
	{ebiten.KeyArrowLeft, scancode.KeyLeft},
	{ebiten.KeyArrowRight, scancode.KeyRight},
	{ebiten.KeyEnter, scancode.KeyEnter},
	{ebiten.KeyEscape, scancode.KeyEscape},
	{ebiten.KeyBackspace, scancode.KeyBackspace},
	{ebiten.KeyTab, scancode.KeyTab},
	{ebiten.KeyDelete, scancode.KeyDelete},
	{ebiten.KeyHome, scancode.KeyHome},
	{ebiten.KeyEnd, scancode.KeyEnd},
	{ebiten.KeyF1, scancode.KeyF1},
	{ebiten.KeyF2, scancode.KeyF2},
	{ebiten.KeyF3, scancode.KeyF3},
}

var ctrlKeys = []struct {
	ebiten ebiten.Key
	r      rune
}{
	{ebiten.KeyA, 0x01},
	{ebiten.KeyC, 0x03},
	{ebiten.KeyD, 0x04},
	{ebiten.KeyE, 0x05},
	{ebiten.KeyL, 0x0C},
	{ebiten.KeyU, 0x15},
	{ebiten.KeyW, 0x17},
}

// pollKeyboard forwards this frame's window keyboard input to in. Text
// arrives as runes; named keys as press and release transitions.
func pollKeyboard(in Input) {
	ctrl := ebiten.IsKeyPressed(ebiten.KeyControlLeft) || ebiten.IsKeyPressed(ebiten.KeyControlRight)
	if ctrl {
		for _, k := range ctrlKeys {
			if inpututil.IsKeyJustPressed(k.ebiten) {
				in.Key(scancode.Event{Press: true, Rune: k.r})
			}
		}
	}

	for _, r := range ebiten.AppendInputChars(nil) {
		in.Key(scancode.Event{Press: true, Rune: r})
	}

	for _, k := range windowKeys {
		if inpututil.IsKeyJustPressed(k.ebiten) {
			in.Key(scancode.Event{Key: k.key, Press: true})
		}
		if inpututil.IsKeyJustReleased(k.ebiten) {
			in.Key(scancode.Event{Key: k.key})
		}
	}
}
