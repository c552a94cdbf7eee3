package hal

import (
	"hearth/internal/scancode"
	"hearth/kernel/arch"
)

const (
	ps2Data   = 0x60
	ps2Status = 0x64

	ps2Vector = picBase + 1

	ps2StatusOutFull = 1 << 0
	ps2StatusSystem  = 1 << 2

	ps2ConfigIRQ1 = 1 << 0

	// scan codes the keyboard holds before it starts dropping keys
	ps2KeyBuffer = 64
)

// ps2Model is an 8042 controller with a keyboard on port 1 that speaks
// scan code set 1.
type ps2Model struct {
	raise func(arch.Vector)

	config  uint8
	enabled bool
	// controller command waiting for its data byte
	cmd uint8

	resp []byte
	keys []byte

	dropped uint64
}

func newPS2(raise func(arch.Vector)) *ps2Model {
	return &ps2Model{raise: raise}
}

func (p *ps2Model) key(ev scancode.Event) {
	b := scancode.Encode(ev)
	if len(p.keys)+len(b) > ps2KeyBuffer {
		p.dropped++
		return
	}
	p.keys = append(p.keys, b...)
}

// step raises IRQ1 while scan codes are waiting, so one the kernel could
// not take is offered again.
func (p *ps2Model) step() {
	if p.enabled && p.config&ps2ConfigIRQ1 != 0 && len(p.resp) == 0 && len(p.keys) > 0 {
		p.raise(ps2Vector)
	}
}

func (p *ps2Model) in(port uint16) uint8 {
	if port == ps2Status {
		s := uint8(ps2StatusSystem)
		if len(p.resp) > 0 || len(p.keys) > 0 {
			s |= ps2StatusOutFull
		}
		return s
	}

	switch {
	case len(p.resp) > 0:
		v := p.resp[0]
		p.resp = p.resp[1:]
		return v
	case len(p.keys) > 0:
		v := p.keys[0]
		p.keys = p.keys[1:]
		return v
	}
	return 0
}

func (p *ps2Model) out(port uint16, v uint8) {
	if port == ps2Status {
		p.command(v)
		return
	}
	if p.cmd == 0x60 {
		p.config = v
		p.cmd = 0
		return
	}
	// Bytes for the keyboard itself: acknowledge, and pass the self-test
	// after a reset.
	p.resp = append(p.resp, 0xFA)
	if v == 0xFF {
		p.resp = append(p.resp, 0xAA)
	}
}

func (p *ps2Model) command(v uint8) {
	switch v {
	case 0x20:
		p.resp = append(p.resp, p.config)
	case 0x60:
		p.cmd = v
	case 0xAA:
		p.resp = append(p.resp[:0], 0x55)
	case 0xAB:
		p.resp = append(p.resp, 0x00)
	case 0xAD:
		p.enabled = false
	case 0xAE:
		p.enabled = true
	}
}
