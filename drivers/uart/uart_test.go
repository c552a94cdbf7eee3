package uart

import (
	"errors"
	"testing"

	"hearth/kernel"
	"hearth/kernel/arch"
	"hearth/kernel/arch/archtest"
	"hearth/kernel/vfs"
)

// ns16550 models just enough of the chip for the driver.
type ns16550 struct {
	regs     [8]uint8
	dll, dlm uint8
	rx       []uint8
	tx       []uint8
	stuck    bool
	noLoop   bool
}

func (u *ns16550) dlab() bool { return u.regs[regLCR]&lcrDLAB != 0 }

func install(u *ns16550) *archtest.Platform {
	p := archtest.Install(archtest.New())
	for r := uint16(0); r < 8; r++ {
		reg := r
		p.Handle(COM1+reg, archtest.Port{
			In:  func() uint8 { return u.read(reg) },
			Out: func(v uint8) { u.write(reg, v) },
		})
	}
	return p
}

func (u *ns16550) read(reg uint16) uint8 {
	switch reg {
	case regData:
		if len(u.rx) == 0 {
			return 0
		}
		v := u.rx[0]
		u.rx = u.rx[1:]
		return v
	case regLSR:
		var lsr uint8
		if len(u.rx) > 0 {
			lsr |= lsrDataReady
		}
		if !u.stuck {
			lsr |= lsrTHRE
		}
		return lsr
	}
	return u.regs[reg]
}

func (u *ns16550) write(reg uint16, v uint8) {
	switch {
	case reg == regData && u.dlab():
		u.dll = v
	case reg == regIER && u.dlab():
		u.dlm = v
	case reg == regData && u.regs[regMCR]&mcrLoopback != 0:
		if !u.noLoop {
			u.rx = append(u.rx, v)
		}
	case reg == regData:
		u.tx = append(u.tx, v)
	default:
		u.regs[reg] = v
	}
}

func TestProbeLoopbackFailure(t *testing.T) {
	install(&ns16550{noLoop: true})
	m := New(COM1)
	if err := m.ForceMut().Probe(); err == nil {
		t.Fatalf("Probe() with dead loopback err = nil")
	}
}

func TestUART(t *testing.T) {
	u := &ns16550{}
	p := install(u)
	Init(0)
	fs := vfs.New()

	if err := ProbeAndAttach(fs); err != nil {
		t.Fatalf("ProbeAndAttach() err = %v", err)
	}
	if u.dll != 3 || u.dlm != 0 {
		t.Fatalf("divisor = %d:%d, want 0:3", u.dlm, u.dll)
	}
	if u.regs[regLCR] != lcr8N1 {
		t.Fatalf("LCR = %#x, want %#x", u.regs[regLCR], lcr8N1)
	}
	if u.regs[regMCR]&mcrLoopback != 0 {
		t.Fatalf("MCR = %#x, loopback left on", u.regs[regMCR])
	}
	if u.regs[regIER] != ierRxAvail {
		t.Fatalf("IER = %#x, want %#x", u.regs[regIER], ierRxAvail)
	}

	f, err := fs.Open("/dev/uart")
	if err != nil {
		t.Fatalf("Open() err = %v", err)
	}
	if err := f.Write([]byte("ok\n")); err != nil {
		t.Fatalf("Write() err = %v", err)
	}
	if string(u.tx) != "ok\n" {
		t.Fatalf("transmitted %q, want %q", u.tx, "ok\n")
	}

	u.rx = append(u.rx, "help\n"...)
	p.Raise(Vector)
	if !arch.Halt() {
		t.Fatalf("Halt() = false")
	}
	b, err := f.Read()
	if err != nil || string(b) != "help\n" {
		t.Fatalf("Read() = %q, %v", b, err)
	}
	if b, _ := f.Read(); len(b) != 0 {
		t.Fatalf("second Read() = %q, want empty", b)
	}

	u.stuck = true
	if err := Write([]byte("x")); !errors.Is(err, kernel.ErrBusy) {
		t.Fatalf("Write() with full THR err = %v, want ErrBusy", err)
	}
}

func TestOverrunCounted(t *testing.T) {
	u := &ns16550{}
	install(u)
	Init(0)
	if err := ProbeAndAttach(vfs.New()); err != nil {
		t.Fatalf("ProbeAndAttach() err = %v", err)
	}
	u.rx = make([]uint8, RxQueueSize+10)
	for {
		n, err := Poll()
		if err != nil {
			t.Fatalf("Poll() err = %v", err)
		}
		if n == 0 {
			break
		}
	}
	m, _ := dev.Get()
	if got := m.ForceMut().Dropped(); got != 10 {
		t.Fatalf("Dropped() = %d, want 10", got)
	}
}
