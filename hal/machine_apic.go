package hal

import (
	"math"
	"math/bits"
	"sync/atomic"
	"time"
	"unsafe"

	"hearth/kernel/arch"
)

const (
	apicBase = 0xFEE00000
	apicSize = 0x1000

	apicRegID         = 0x020
	apicRegVersion    = 0x030
	apicRegEOI        = 0x0B0
	apicRegLVTTimer   = 0x320
	apicRegInitCount  = 0x380
	apicRegCurrCount  = 0x390
	apicRegDivideConf = 0x3E0

	// integrated APIC, six LVT entries
	apicVersion = 0x00050014

	apicLVTMasked   = 1 << 16
	apicLVTPeriodic = 1 << 17

	// Written to EOI while an interrupt is in service. Any write by the
	// kernel clears it.
	apicInService = 0xFFFFFFFF
)

type apicTimer struct {
	init, lvt, div uint32
}

// apicModel is the local APIC timer. It shares its register page with the
// driver and only ever reads and writes it with atomics.
type apicModel struct {
	page  []byte
	busHz uint64
	raise func(arch.Vector)

	cfg    apicTimer
	armed  bool
	period time.Duration
	next   time.Duration

	inService bool
	irr       bool
	fired     uint64
}

func newAPIC(page []byte, busHz uint64, raise func(arch.Vector)) *apicModel {
	a := &apicModel{page: page, busHz: busHz, raise: raise}
	a.store(apicRegID, 0)
	a.store(apicRegVersion, apicVersion)
	a.store(apicRegLVTTimer, apicLVTMasked)
	a.store(apicRegDivideConf, 0)
	return a
}

func (a *apicModel) reg(off uintptr) *uint32 {
	return (*uint32)(unsafe.Pointer(&a.page[off]))
}

func (a *apicModel) load(off uintptr) uint32     { return atomic.LoadUint32(a.reg(off)) }
func (a *apicModel) store(off uintptr, v uint32) { atomic.StoreUint32(a.reg(off), v) }

// divisor decodes the divide configuration register: bits 0, 1 and 3 give
// a power of two, with 0b111 meaning divide by 1.
func divisor(conf uint32) uint64 {
	v := conf&0b11 | (conf>>1)&0b100
	if v == 0b111 {
		return 1
	}
	return 2 << v
}

func (a *apicModel) step(now time.Duration) {
	cur := apicTimer{
		init: a.load(apicRegInitCount),
		lvt:  a.load(apicRegLVTTimer),
		div:  a.load(apicRegDivideConf),
	}
	if cur != a.cfg {
		a.cfg = cur
		a.rearm(now)
	}

	if a.inService && a.load(apicRegEOI) != apicInService {
		a.inService = false
		if a.irr {
			a.irr = false
			a.deliver()
		}
	}

	for a.armed && now >= a.next {
		a.fire()
		if a.cfg.lvt&apicLVTPeriodic != 0 {
			a.next += a.period
		} else {
			a.armed = false
		}
	}

	var count uint32
	if a.armed {
		left := uint64(a.next - now)
		count = uint32(mulDiv(left, a.busHz, divisor(a.cfg.div)*uint64(time.Second)))
	}
	a.store(apicRegCurrCount, count)
}

func (a *apicModel) rearm(now time.Duration) {
	a.armed = a.cfg.init != 0 && a.cfg.lvt&apicLVTMasked == 0
	if !a.armed {
		return
	}
	ticks := uint64(a.cfg.init) * divisor(a.cfg.div)
	a.period = time.Duration(mulDiv(ticks, uint64(time.Second), a.busHz))
	if a.period <= 0 {
		a.period = 1
	}
	a.next = now + a.period
}

// fire latches the timer interrupt. One more can be requested while one is
// in service; anything beyond that is lost, as on hardware.
func (a *apicModel) fire() {
	a.fired++
	if a.inService {
		a.irr = true
		return
	}
	a.deliver()
}

func (a *apicModel) deliver() {
	a.inService = true
	a.store(apicRegEOI, apicInService)
	a.raise(arch.Vector(a.cfg.lvt & 0xFF))
}

// mulDiv returns x*y/d without overflowing the product, saturating when the
// quotient does not fit.
func mulDiv(x, y, d uint64) uint64 {
	hi, lo := bits.Mul64(x, y)
	if hi >= d {
		return math.MaxUint64
	}
	q, _ := bits.Div64(hi, lo, d)
	return q
}
