//go:build !tinygo

package hal

import (
	"github.com/mattn/go-tty"

	"hearth/internal/scancode"
)

// ttyKeyboard types the controlling terminal's keys into the PS/2
// keyboard. The terminal is in raw mode until Close.
type ttyKeyboard struct {
	t *tty.TTY
}

func openTTYKeyboard() (*ttyKeyboard, error) {
	t, err := tty.Open()
	if err != nil {
		return nil, err
	}
	return &ttyKeyboard{t: t}, nil
}

func (k *ttyKeyboard) Close() error { return k.t.Close() }

// run forwards keys until the terminal fails. Ctrl-C powers the machine
// off, since raw mode swallows the signal.
func (k *ttyKeyboard) run(m *Machine) error {
	var esc []rune
	for {
		r, err := k.t.ReadRune()
		if err != nil {
			return err
		}

		if len(esc) > 0 || r == 0x1b {
			esc = append(esc, r)
			key, done := escapeKey(esc)
			if !done {
				continue
			}
			esc = esc[:0]
			if key != scancode.KeyUnknown {
				tapKey(m, key)
			}
			continue
		}

		switch r {
		case 0x03:
			m.PowerOff()
			return nil
		case '\r', '\n':
			tapKey(m, scancode.KeyEnter)
		case 0x7f, '\b':
			tapKey(m, scancode.KeyBackspace)
		case '\t':
			tapKey(m, scancode.KeyTab)
		default:
			m.Key(scancode.Event{Press: true, Rune: r})
		}
	}
}

func tapKey(m *Machine, k scancode.Key) {
	m.Key(scancode.Event{Key: k, Press: true})
	m.Key(scancode.Event{Key: k})
}

// escapeKey recognises the CSI sequences terminals send for cursor keys.
func escapeKey(seq []rune) (scancode.Key, bool) {
	if len(seq) < 2 {
		return 0, false
	}
	if seq[1] != '[' && seq[1] != 'O' {
		return scancode.KeyEscape, true
	}
	if len(seq) < 3 {
		return 0, false
	}
	switch seq[2] {
	case 'A':
		return scancode.KeyUp, true
	case 'B':
		return scancode.KeyDown, true
	case 'C':
		return scancode.KeyRight, true
	case 'D':
		return scancode.KeyLeft, true
	case 'H':
		return scancode.KeyHome, true
	case 'F':
		return scancode.KeyEnd, true
	case '3':
		if len(seq) < 4 {
			return 0, false
		}
		return scancode.KeyDelete, true
	}
	return scancode.KeyUnknown, true
}
