package lapic

import (
	"hearth/kernel/mmio"
	"hearth/kernel/volatile"
)

// BaseAddr is the architectural physical address of the local APIC.
const BaseAddr uintptr = 0xFEE00000

// Every APIC register is 32 bits wide on a 16-byte stride.
type reg struct {
	volatile.Cell[uint32]
	_ [12]byte
}

// Regs is the local APIC register page up to the divide configuration
// register. It is pinned: the APIC only decodes accesses at BaseAddr.
type Regs struct {
	mmio.Pinned

	_          [2]reg  // 0x000
	ID         reg     // 0x020
	Version    reg     // 0x030
	_          [7]reg  // 0x040
	EOI        reg     // 0x0B0
	_          [38]reg // 0x0C0
	LVTTimer   reg     // 0x320
	_          [5]reg  // 0x330
	InitCount  reg     // 0x380
	CurrCount  reg     // 0x390
	_          [4]reg  // 0x3A0
	DivideConf reg     // 0x3E0
	_          reg     // 0x3F0
}

const (
	lvtMasked   = 1 << 16
	lvtPeriodic = 1 << 17

	// Divide configuration encodings. The timer counts bus clocks divided
	// by the selected value.
	divideBy1  = 0b1011
	divideBy16 = 0b0011
)
