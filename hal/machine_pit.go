package hal

const (
	pitHz = 1193182

	pitChannel2 = 0x42
	pitCommand  = 0x43
	portSpeaker = 0x61

	speakerGate = 0b01
	speakerData = 0b10
)

// pitModel is PIT channel 2 and the speaker gate in port 0x61. The square
// wave it would produce goes to the host's tone output.
type pitModel struct {
	tone Tone

	access  uint8
	hiNext  bool
	lo      uint8
	reload  uint16
	control uint8
	playing uint32
}

func newPIT(tone Tone) *pitModel {
	return &pitModel{tone: tone}
}

func (p *pitModel) in(port uint16) uint8 {
	if port == portSpeaker {
		return p.control
	}
	return 0
}

func (p *pitModel) out(port uint16, v uint8) {
	switch port {
	case pitCommand:
		if v>>6 != 2 {
			return
		}
		p.access = (v >> 4) & 0b11
		p.hiNext = false
	case pitChannel2:
		switch p.access {
		case 1:
			p.reload = uint16(v)
		case 2:
			p.reload = uint16(v) << 8
		default:
			if !p.hiNext {
				p.lo = v
				p.hiNext = true
				return
			}
			p.reload = uint16(p.lo) | uint16(v)<<8
			p.hiNext = false
		}
	case portSpeaker:
		p.control = v
	}
	p.update()
}

func (p *pitModel) update() {
	var hz uint32
	if p.control&(speakerGate|speakerData) == speakerGate|speakerData && p.reload != 0 {
		hz = pitHz / uint32(p.reload)
	}
	if hz == p.playing {
		return
	}
	p.playing = hz
	if p.tone != nil {
		p.tone.SetTone(hz)
	}
}
