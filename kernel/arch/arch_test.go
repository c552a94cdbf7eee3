package arch_test

import (
	"testing"

	"hearth/kernel"
	"hearth/kernel/arch"
	"hearth/kernel/arch/archtest"
)

func TestHaltDispatches(t *testing.T) {
	p := archtest.Install(archtest.New())

	var got []arch.Vector
	var sawIF, sawInInt bool
	arch.Register(0x40, func(v arch.Vector) {
		got = append(got, v)
		sawIF = arch.IntEnabled()
		sawInInt = arch.InInterrupt()
	})
	defer arch.Register(0x40, nil)

	p.Raise(0x40)
	p.Raise(0x40)
	if !arch.Halt() {
		t.Fatalf("Halt() = false, want true")
	}
	if len(got) != 2 {
		t.Fatalf("handler ran %d times, want 2", len(got))
	}
	if sawIF {
		t.Fatalf("interrupts enabled inside handler")
	}
	if !sawInInt {
		t.Fatalf("InInterrupt() = false inside handler")
	}
	if !arch.IntEnabled() || arch.InInterrupt() {
		t.Fatalf("flags not restored after handler")
	}
}

func TestHaltLatchesWhileDisabled(t *testing.T) {
	p := archtest.Install(archtest.New())

	n := 0
	arch.Register(0x21, func(arch.Vector) { n++ })
	defer arch.Register(0x21, nil)

	arch.DisableInt()
	p.Raise(0x21)
	arch.Halt()
	if n != 0 {
		t.Fatalf("handler ran with interrupts disabled")
	}

	arch.EnableInt()
	arch.Halt()
	if n != 1 {
		t.Fatalf("handler ran %d times after sti, want 1", n)
	}
}

func TestDisabledIntRestores(t *testing.T) {
	archtest.Install(archtest.New())

	arch.DisabledInt(func() {
		if arch.IntEnabled() {
			t.Fatalf("IntEnabled() = true inside DisabledInt")
		}
	})
	if !arch.IntEnabled() {
		t.Fatalf("IntEnabled() = false after DisabledInt, want restored true")
	}

	arch.DisableInt()
	arch.DisabledInt(func() {})
	if arch.IntEnabled() {
		t.Fatalf("DisabledInt enabled interrupts that were off")
	}
}

func TestSpuriousAndPowerOff(t *testing.T) {
	p := archtest.Install(archtest.New())

	before := arch.Spurious()
	p.Raise(0x99)
	arch.Halt()
	if arch.Spurious() != before+1 {
		t.Fatalf("Spurious() = %d, want %d", arch.Spurious(), before+1)
	}

	p.PowerOff()
	if arch.Halt() {
		t.Fatalf("Halt() = true after power off")
	}
}

func TestPortIO(t *testing.T) {
	p := archtest.Install(archtest.New())

	var last uint8
	p.Handle(0x80, archtest.Port{In: func() uint8 { return 0x42 }, Out: func(v uint8) { last = v }})
	arch.Out8(0x80, 7)
	if last != 7 {
		t.Fatalf("Out8 wrote %d, want 7", last)
	}
	if got := arch.In8(0x80); got != 0x42 {
		t.Fatalf("In8() = %#x, want 0x42", got)
	}
	if got := arch.In8(0x81); got != 0xFF {
		t.Fatalf("In8(unmapped) = %#x, want 0xff", got)
	}
}

func TestHandlerPanic(t *testing.T) {
	p := archtest.Install(archtest.New())

	var info kernel.PanicInfo
	kernel.SetPanicHandler(func(pi kernel.PanicInfo) { info = pi })
	arch.Register(0x24, func(arch.Vector) { panic("bad uart") })
	defer arch.Register(0x24, nil)

	p.Raise(0x24)
	if arch.Halt() {
		t.Fatalf("Halt() = true after a handler panicked")
	}
	if !kernel.InPanicMode() {
		t.Fatalf("InPanicMode() = false")
	}
	if info.Vector != 0x24 || info.Value != "bad uart" {
		t.Fatalf("PanicInfo = {Vector: %#x, Value: %v}, want {0x24, bad uart}", info.Vector, info.Value)
	}
	if arch.InInterrupt() {
		t.Fatalf("InInterrupt() still set after panic")
	}
}
