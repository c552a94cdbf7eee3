package hal

import (
	"io"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"hearth/internal/scancode"
	"hearth/kernel/arch"
)

// The legacy PIC is remapped so IRQ n arrives on vector picBase+n.
const picBase = 0x20

// Port of the isa-debug-exit device. Writing v powers the machine off with
// exit code v<<1 | 1.
const portDebugExit = 0xF4

type ioDevice interface {
	in(port uint16) uint8
	out(port uint16, v uint8)
}

// Machine is a simulated PC. It implements arch.Platform and mmio.Mapper.
//
// Device models run on the CPU's goroutine: inside Wait, and synchronously
// on port access. Host input arrives through Key and Serial from any
// goroutine and is picked up at the next Wait.
type Machine struct {
	cfg   Config
	clock *clock
	mem   *memory
	ports map[uint16]ioDevice

	apic *apicModel
	kbd  *ps2Model
	uart *uartModel
	pit  *pitModel

	mu      sync.Mutex
	pending []arch.Vector
	keys    []scancode.Event
	rx      []byte

	wake chan struct{}
	off  atomic.Bool
	exit atomic.Int32
}

var (
	_ arch.Platform = (*Machine)(nil)
	_ Input         = (*Machine)(nil)
)

// NewMachine builds a machine whose UART transmits to tx and whose speaker
// plays through tone. Either may be nil.
func NewMachine(cfg Config, tx io.Writer, tone Tone) (*Machine, error) {
	cfg.defaults()
	m := &Machine{
		cfg:   cfg,
		clock: newClock(cfg.FastForward),
		mem:   &memory{},
		ports: map[uint16]ioDevice{},
		wake:  make(chan struct{}, 1),
	}

	if !cfg.NoAPIC {
		page, err := m.mem.add(apicBase, apicSize)
		if err != nil {
			return nil, err
		}
		m.apic = newAPIC(page, cfg.BusHz, m.raise)
	}

	m.kbd = newPS2(m.raise)
	m.attach(m.kbd, ps2Data, ps2Status)

	m.uart = newUART(com1, tx, m.raise)
	for p := uint16(0); p < 8; p++ {
		m.attach(m.uart, com1+p)
	}

	m.pit = newPIT(tone)
	m.attach(m.pit, pitChannel2, pitCommand, portSpeaker)

	m.attach(debugExit{m}, portDebugExit)
	return m, nil
}

func (m *Machine) attach(d ioDevice, ports ...uint16) {
	for _, p := range ports {
		m.ports[p] = d
	}
}

// MapDevice implements mmio.Mapper over the machine's device memory.
func (m *Machine) MapDevice(phys, size uintptr) (unsafe.Pointer, error) {
	return m.mem.MapDevice(phys, size)
}

// Close releases the machine's device memory.
func (m *Machine) Close() error {
	return m.mem.free()
}

func (m *Machine) raise(v arch.Vector) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.pending {
		if p == v {
			return
		}
	}
	m.pending = append(m.pending, v)
}

func (m *Machine) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Key implements Input.
func (m *Machine) Key(ev scancode.Event) {
	m.mu.Lock()
	m.keys = append(m.keys, ev)
	m.mu.Unlock()
	m.signal()
}

// Serial implements Input.
func (m *Machine) Serial(p []byte) {
	m.mu.Lock()
	m.rx = append(m.rx, p...)
	m.mu.Unlock()
	m.signal()
}

// PowerOff stops the machine; Wait returns false from now on.
func (m *Machine) PowerOff() {
	m.off.Store(true)
	m.signal()
}

func (m *Machine) Off() bool { return m.off.Load() }

// ExitCode is the value last written to the debug exit port, encoded as
// QEMU does, or 0 when the machine was stopped some other way.
func (m *Machine) ExitCode() int { return int(m.exit.Load()) }

// Now is machine time since power on.
func (m *Machine) Now() time.Duration { return m.clock.now() }

// Ticks counts timer interrupts the APIC has fired.
func (m *Machine) Ticks() uint64 {
	if m.apic == nil {
		return 0
	}
	return m.apic.fired
}

// Wait runs the device models until an interrupt line is pending. An idle
// machine sleeps until the next timer deadline or host input; in
// fast-forward mode it jumps to the deadline instead.
func (m *Machine) Wait() bool {
	for {
		if m.cfg.MaxTicks > 0 && m.Ticks() >= m.cfg.MaxTicks {
			m.PowerOff()
		}
		if m.off.Load() {
			m.uart.flush()
			return false
		}
		m.step()
		if m.hasPending() {
			return true
		}
		m.idle()
	}
}

func (m *Machine) hasPending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending) > 0
}

func (m *Machine) step() {
	m.mu.Lock()
	keys, rx := m.keys, m.rx
	m.keys, m.rx = nil, nil
	m.mu.Unlock()

	for _, ev := range keys {
		m.kbd.key(ev)
	}
	m.uart.receive(rx)

	if m.apic != nil {
		m.apic.step(m.clock.now())
	}
	m.kbd.step()
	m.uart.step()
}

func (m *Machine) idle() {
	var deadline time.Duration
	armed := m.apic != nil && m.apic.armed
	if armed {
		deadline = m.apic.next
	}

	if m.cfg.FastForward {
		select {
		case <-m.wake:
			return
		default:
		}
		if armed {
			m.clock.advanceTo(deadline)
			return
		}
		<-m.wake
		return
	}

	wait := pollSlice
	if armed {
		wait = deadline - m.clock.now()
	}
	if wait <= 0 {
		return
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-m.wake:
	case <-t.C:
	}
}

// Take implements arch.Platform.
func (m *Machine) Take() []arch.Vector {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.pending
	m.pending = nil
	return v
}

func (m *Machine) In8(port uint16) uint8 {
	if d, ok := m.ports[port]; ok {
		return d.in(port)
	}
	return 0xFF
}

func (m *Machine) Out8(port uint16, v uint8) {
	if d, ok := m.ports[port]; ok {
		d.out(port, v)
	}
}

type debugExit struct{ m *Machine }

func (debugExit) in(uint16) uint8 { return 0xFF }

func (d debugExit) out(_ uint16, v uint8) {
	d.m.exit.Store(int32(v)<<1 | 1)
	d.m.PowerOff()
}
