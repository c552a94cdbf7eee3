package hal

import (
	"io"

	"hearth/kernel/arch"
)

const (
	com1       = 0x3F8
	uartVector = picBase + 4

	uartIERRx     = 0x01
	uartLCRDLAB   = 0x80
	uartFCRClear  = 0x02
	uartMCROut2   = 0x08
	uartMCRLoop   = 0x10
	uartLSRReady  = 0x01
	uartLSRTxIdle = 0x60

	// bytes the host side holds for the receiver; more are dropped
	uartRxBuffer = 4096
)

// uartModel is a 16550 with an infinitely fast transmitter.
type uartModel struct {
	base  uint16
	tx    io.Writer
	raise func(arch.Vector)

	ier, lcr, mcr, fcr, scr uint8
	dll, dlm                uint8

	rx      []byte
	txbuf   []byte
	dropped uint64
}

func newUART(base uint16, tx io.Writer, raise func(arch.Vector)) *uartModel {
	return &uartModel{base: base, tx: tx, raise: raise}
}

func (u *uartModel) dlab() bool { return u.lcr&uartLCRDLAB != 0 }

func (u *uartModel) receive(p []byte) {
	if n := uartRxBuffer - len(u.rx); len(p) > n {
		u.dropped += uint64(len(p) - n)
		p = p[:n]
	}
	u.rx = append(u.rx, p...)
}

func (u *uartModel) step() {
	u.flush()
	if u.ier&uartIERRx != 0 && u.mcr&uartMCROut2 != 0 && u.mcr&uartMCRLoop == 0 && len(u.rx) > 0 {
		u.raise(uartVector)
	}
}

func (u *uartModel) flush() {
	if len(u.txbuf) == 0 {
		return
	}
	if u.tx != nil {
		u.tx.Write(u.txbuf)
	}
	u.txbuf = u.txbuf[:0]
}

func (u *uartModel) in(port uint16) uint8 {
	switch port - u.base {
	case 0:
		if u.dlab() {
			return u.dll
		}
		if len(u.rx) == 0 {
			return 0
		}
		v := u.rx[0]
		u.rx = u.rx[1:]
		return v
	case 1:
		if u.dlab() {
			return u.dlm
		}
		return u.ier
	case 2:
		iir := uint8(0x01)
		if u.ier&uartIERRx != 0 && len(u.rx) > 0 {
			iir = 0x04
		}
		if u.fcr&0x01 != 0 {
			iir |= 0xC0
		}
		return iir
	case 3:
		return u.lcr
	case 4:
		return u.mcr
	case 5:
		lsr := uint8(uartLSRTxIdle)
		if len(u.rx) > 0 {
			lsr |= uartLSRReady
		}
		return lsr
	case 7:
		return u.scr
	}
	return 0
}

func (u *uartModel) out(port uint16, v uint8) {
	switch port - u.base {
	case 0:
		switch {
		case u.dlab():
			u.dll = v
		case u.mcr&uartMCRLoop != 0:
			u.rx = append(u.rx, v)
		default:
			u.txbuf = append(u.txbuf, v)
			if v == '\n' {
				u.flush()
			}
		}
	case 1:
		if u.dlab() {
			u.dlm = v
		} else {
			u.ier = v & 0x0F
		}
	case 2:
		u.fcr = v
		if v&uartFCRClear != 0 {
			u.rx = u.rx[:0]
		}
	case 3:
		u.lcr = v
	case 4:
		u.mcr = v
	case 7:
		u.scr = v
	}
}
