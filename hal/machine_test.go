package hal

import (
	"bytes"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"hearth/drivers/lapic"
	"hearth/internal/scancode"
	"hearth/kernel"
	"hearth/kernel/arch"
	"hearth/kernel/uptime"
)

func newTestMachine(t *testing.T, cfg Config, tx *bytes.Buffer, tone Tone) *Machine {
	t.Helper()
	cfg.FastForward = true
	var w io.Writer
	if tx != nil {
		w = tx
	}
	m, err := NewMachine(cfg, w, tone)
	if err != nil {
		t.Fatalf("NewMachine() err = %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func apicReg(t *testing.T, m *Machine, off uintptr) *uint32 {
	t.Helper()
	p, err := m.MapDevice(apicBase+off, 4)
	if err != nil {
		t.Fatalf("MapDevice() err = %v", err)
	}
	return (*uint32)(p)
}

func TestAPICTimer(t *testing.T) {
	m := newTestMachine(t, Config{BusHz: 100_000_000}, nil, nil)

	if v := atomic.LoadUint32(apicReg(t, m, apicRegVersion)); v&0xFF != 0x14 {
		t.Fatalf("version = %#x", v)
	}
	atomic.StoreUint32(apicReg(t, m, apicRegDivideConf), 0b1011)
	atomic.StoreUint32(apicReg(t, m, apicRegLVTTimer), apicLVTPeriodic|0x40)
	atomic.StoreUint32(apicReg(t, m, apicRegInitCount), 1_000_000)

	if !m.Wait() {
		t.Fatalf("Wait() = false")
	}
	if got := m.Take(); len(got) != 1 || got[0] != 0x40 {
		t.Fatalf("Take() = %v, want [0x40]", got)
	}
	if m.Now() != 10*time.Millisecond {
		t.Fatalf("Now() = %v, want 10ms", m.Now())
	}
	eoi := apicReg(t, m, apicRegEOI)
	if atomic.LoadUint32(eoi) != apicInService {
		t.Fatalf("EOI register not marked in service")
	}

	atomic.StoreUint32(eoi, 0)
	m.Wait()
	m.Take()
	if m.Now() != 20*time.Millisecond || m.Ticks() != 2 {
		t.Fatalf("second tick at %v (ticks %d), want 20ms", m.Now(), m.Ticks())
	}
}

func TestMaxTicksPowersOff(t *testing.T) {
	m := newTestMachine(t, Config{MaxTicks: 3}, nil, nil)
	atomic.StoreUint32(apicReg(t, m, apicRegLVTTimer), apicLVTPeriodic|0x40)
	atomic.StoreUint32(apicReg(t, m, apicRegDivideConf), 0b1011)
	atomic.StoreUint32(apicReg(t, m, apicRegInitCount), 1000)

	n := 0
	for m.Wait() {
		m.Take()
		atomic.StoreUint32(apicReg(t, m, apicRegEOI), 0)
		n++
		if n > 10 {
			t.Fatalf("machine did not power off")
		}
	}
	if n != 3 {
		t.Fatalf("delivered %d ticks, want 3", n)
	}
}

func TestLAPICDriverOnMachine(t *testing.T) {
	m := newTestMachine(t, Config{MaxTicks: 5}, nil, nil)
	arch.SetPlatform(m)
	lapic.Init(lapic.Config{Mapper: m, Period: time.Millisecond})
	if err := lapic.ProbeAndAttach(); err != nil {
		t.Fatalf("ProbeAndAttach() err = %v", err)
	}
	arch.EnableInt()
	for arch.Halt() {
	}
	if got := uptime.Now(); got < 5*time.Millisecond {
		t.Fatalf("uptime.Now() = %v, want >= 5ms", got)
	}
}

func TestMapUnknownDevice(t *testing.T) {
	m := newTestMachine(t, Config{NoAPIC: true}, nil, nil)
	if _, err := m.MapDevice(apicBase, 0x400); !errors.Is(err, kernel.ErrNotFound) {
		t.Fatalf("MapDevice() without APIC err = %v, want ErrNotFound", err)
	}
	if p, err := newTestMachine(t, Config{}, nil, nil).MapDevice(apicBase, 0x400); err != nil || uintptr(p)%4096 != 0 {
		t.Fatalf("MapDevice() = %p, %v, want page aligned", p, err)
	}
}

func TestPS2Controller(t *testing.T) {
	m := newTestMachine(t, Config{NoAPIC: true}, nil, nil)

	m.Out8(ps2Status, 0xAA)
	if m.In8(ps2Status)&ps2StatusOutFull == 0 || m.In8(ps2Data) != 0x55 {
		t.Fatalf("self-test did not answer 0x55")
	}
	m.Out8(ps2Status, 0x60)
	m.Out8(ps2Data, 0x47)
	m.Out8(ps2Status, 0x20)
	if got := m.In8(ps2Data); got != 0x47 {
		t.Fatalf("config = %#x, want 0x47", got)
	}

	m.Key(scancode.Event{Press: true, Rune: 'a'})
	m.step()
	if got := m.Take(); len(got) != 0 {
		t.Fatalf("IRQ raised before port enabled: %v", got)
	}
	m.Out8(ps2Status, 0xAE)
	if !m.Wait() {
		t.Fatalf("Wait() = false")
	}
	if got := m.Take(); len(got) != 1 || got[0] != ps2Vector {
		t.Fatalf("Take() = %v, want [%#x]", got, ps2Vector)
	}
	if a, b := m.In8(ps2Data), m.In8(ps2Data); a != 0x1E || b != 0x9E {
		t.Fatalf("scan codes = %#x %#x, want 0x1e 0x9e", a, b)
	}
}

func TestUART(t *testing.T) {
	var tx bytes.Buffer
	m := newTestMachine(t, Config{NoAPIC: true}, &tx, nil)

	m.Out8(com1+4, uartMCRLoop)
	m.Out8(com1, 0xAE)
	if m.In8(com1+5)&uartLSRReady == 0 || m.In8(com1) != 0xAE {
		t.Fatalf("loopback byte not received")
	}
	m.Out8(com1+4, 0x0F)
	m.Out8(com1+1, uartIERRx)

	for _, c := range []byte("hi\n") {
		m.Out8(com1, c)
	}
	if tx.String() != "hi\n" {
		t.Fatalf("transmitted %q, want %q", tx.String(), "hi\n")
	}

	m.Serial([]byte("ls"))
	if !m.Wait() {
		t.Fatalf("Wait() = false")
	}
	if got := m.Take(); len(got) != 1 || got[0] != uartVector {
		t.Fatalf("Take() = %v, want [%#x]", got, uartVector)
	}
	if a, b := m.In8(com1), m.In8(com1); a != 'l' || b != 's' {
		t.Fatalf("received %q%q", a, b)
	}
}

type toneLog []uint32

func (l *toneLog) SetTone(hz uint32) { *l = append(*l, hz) }

func TestSpeaker(t *testing.T) {
	var tones toneLog
	m := newTestMachine(t, Config{NoAPIC: true}, nil, &tones)

	div := uint16(pitHz / 440)
	m.Out8(pitCommand, 0xB6)
	m.Out8(pitChannel2, uint8(div))
	m.Out8(pitChannel2, uint8(div>>8))
	m.Out8(portSpeaker, m.In8(portSpeaker)|3)
	m.Out8(portSpeaker, m.In8(portSpeaker)&^3)

	if len(tones) != 2 || tones[0] != pitHz/uint32(div) || tones[1] != 0 {
		t.Fatalf("tones = %v", tones)
	}
}

func TestDebugExit(t *testing.T) {
	m := newTestMachine(t, Config{NoAPIC: true}, nil, nil)
	m.Out8(portDebugExit, 0x10)
	if m.Wait() {
		t.Fatalf("Wait() = true after debug exit")
	}
	if got := m.ExitCode(); got != 0x21 {
		t.Fatalf("ExitCode() = %#x, want 0x21", got)
	}
}

func TestColorize(t *testing.T) {
	got := colorize("[ERROR] boom")
	if got != "\x1b[31;1m[ERROR]\x1b[0m boom" {
		t.Fatalf("colorize() = %q", got)
	}
	if got := colorize("plain"); got != "plain" {
		t.Fatalf("colorize(plain) = %q", got)
	}
}
