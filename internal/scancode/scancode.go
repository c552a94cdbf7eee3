// Package scancode translates between key events and PS/2 scan code set 1.
package scancode

// Key identifies a non-character key. Printable keys carry a rune instead.
type Key uint16

const (
	KeyUnknown Key = iota
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyEnter
	KeyEscape
	KeyBackspace
	KeyTab
	KeyDelete
	KeyHome
	KeyEnd
	KeyF1
	KeyF2
	KeyF3
)

// Event is one key transition.
type Event struct {
	Key   Key
	Press bool
	Rune  rune
}

const (
	extended = 0xE0
	release  = 0x80

	codeLCtrl  = 0x1D
	codeLShift = 0x2A
	codeRShift = 0x36
	codeLAlt   = 0x38
	codeCaps   = 0x3A
)

// Set 1 make codes 0x00..0x39. Zero marks keys that are not characters.
const (
	plain   = "\x00\x001234567890-=\x00\x00qwertyuiop[]\x00\x00asdfghjkl;'`\x00\\zxcvbnm,./\x00*\x00 "
	shifted = "\x00\x00!@#$%^&*()_+\x00\x00QWERTYUIOP{}\x00\x00ASDFGHJKL:\"~\x00|ZXCVBNM<>?\x00*\x00 "
)

var keys = map[uint8]Key{
	0x01: KeyEscape,
	0x0E: KeyBackspace,
	0x0F: KeyTab,
	0x1C: KeyEnter,
	0x3B: KeyF1,
	0x3C: KeyF2,
	0x3D: KeyF3,
}

var extendedKeys = map[uint8]Key{
	0x1C: KeyEnter,
	0x47: KeyHome,
	0x48: KeyUp,
	0x4B: KeyLeft,
	0x4D: KeyRight,
	0x4F: KeyEnd,
	0x50: KeyDown,
	0x53: KeyDelete,
}

// Decoder turns a set 1 byte stream into events. It tracks the modifier
// state; modifier keys themselves produce no events.
type Decoder struct {
	ext   bool
	shift int
	ctrl  bool
	caps  bool
}

// Feed consumes one byte and reports an event when b completes one.
func (d *Decoder) Feed(b uint8) (Event, bool) {
	if b == extended {
		d.ext = true
		return Event{}, false
	}
	ext := d.ext
	d.ext = false

	press := b&release == 0
	code := b &^ release

	if ext {
		if code == codeLCtrl {
			d.ctrl = press
			return Event{}, false
		}
		if k, ok := extendedKeys[code]; ok {
			return Event{Key: k, Press: press}, true
		}
		return Event{}, false
	}

	switch code {
	case codeLShift, codeRShift:
		if press {
			d.shift++
		} else if d.shift > 0 {
			d.shift--
		}
		return Event{}, false
	case codeLCtrl:
		d.ctrl = press
		return Event{}, false
	case codeLAlt:
		return Event{}, false
	case codeCaps:
		if press {
			d.caps = !d.caps
		}
		return Event{}, false
	}

	if k, ok := keys[code]; ok {
		return Event{Key: k, Press: press}, true
	}
	if int(code) >= len(plain) || plain[code] == 0 {
		return Event{}, false
	}

	r := rune(plain[code])
	if d.shift > 0 {
		r = rune(shifted[code])
	}
	if d.caps && isLetter(r) {
		r ^= 0x20
	}
	if d.ctrl && isLetter(r) {
		r &= 0x1F
	}
	return Event{Press: press, Rune: r}, true
}

func isLetter(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z'
}

// Encode returns the set 1 bytes a keyboard sends for ev. A rune event is
// sent as a full press and release, wrapped in shift or ctrl as needed.
func Encode(ev Event) []byte {
	if ev.Rune != 0 {
		return encodeRune(ev.Rune)
	}
	for code, k := range keys {
		if k == ev.Key {
			return []byte{transition(code, ev.Press)}
		}
	}
	for code, k := range extendedKeys {
		if k == ev.Key && code != 0x1C {
			return []byte{extended, transition(code, ev.Press)}
		}
	}
	return nil
}

func transition(code uint8, press bool) uint8 {
	if press {
		return code
	}
	return code | release
}

func encodeRune(r rune) []byte {
	switch r {
	case '\n', '\r':
		return []byte{0x1C, 0x1C | release}
	case '\t':
		return []byte{0x0F, 0x0F | release}
	case '\b', 0x7F:
		return []byte{0x0E, 0x0E | release}
	case 0x1B:
		return []byte{0x01, 0x01 | release}
	}
	if r > 0 && r < 0x20 {
		code := indexByte(plain, byte(r|0x60))
		if code < 0 {
			return nil
		}
		return []byte{codeLCtrl, uint8(code), uint8(code) | release, codeLCtrl | release}
	}
	if r >= 0x80 {
		return nil
	}
	if code := indexByte(plain, byte(r)); code > 0 {
		return []byte{uint8(code), uint8(code) | release}
	}
	if code := indexByte(shifted, byte(r)); code > 0 {
		return []byte{codeLShift, uint8(code), uint8(code) | release, codeLShift | release}
	}
	return nil
}

func indexByte(s string, b byte) int {
	for i := 1; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

// VT100 returns the terminal input bytes for a key press.
func VT100(ev Event) []byte {
	if !ev.Press {
		return nil
	}
	if ev.Rune != 0 {
		return []byte(string(ev.Rune))
	}

	switch ev.Key {
	case KeyEnter:
		return []byte{'\n'}
	case KeyEscape:
		return []byte{0x1b}
	case KeyBackspace:
		return []byte{0x7f}
	case KeyTab:
		return []byte{'\t'}
	case KeyUp:
		return []byte("\x1b[A")
	case KeyDown:
		return []byte("\x1b[B")
	case KeyRight:
		return []byte("\x1b[C")
	case KeyLeft:
		return []byte("\x1b[D")
	case KeyDelete:
		return []byte("\x1b[3~")
	case KeyHome:
		return []byte("\x1b[H")
	case KeyEnd:
		return []byte("\x1b[F")
	case KeyF1:
		return []byte("\x1b[11~")
	case KeyF2:
		return []byte("\x1b[12~")
	case KeyF3:
		return []byte("\x1b[13~")
	default:
		return nil
	}
}
