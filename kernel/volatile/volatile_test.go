package volatile

import (
	"testing"
	"unsafe"
)

func TestReadAfterWrite(t *testing.T) {
	var r8 Register8
	var r16 Register16
	var r32 Register32
	var r64 Register64

	r8.Write(0xAB)
	r16.Write(0xBEEF)
	r32.Write(0xDEADBEEF)
	r64.Write(0x0123456789ABCDEF)

	if got := r8.Read(); got != 0xAB {
		t.Fatalf("Register8.Read() = %#x, want %#x", got, 0xAB)
	}
	if got := r16.Read(); got != 0xBEEF {
		t.Fatalf("Register16.Read() = %#x, want %#x", got, 0xBEEF)
	}
	if got := r32.Read(); got != 0xDEADBEEF {
		t.Fatalf("Register32.Read() = %#x, want %#x", got, uint32(0xDEADBEEF))
	}
	if got := r64.Read(); got != 0x0123456789ABCDEF {
		t.Fatalf("Register64.Read() = %#x, want %#x", got, uint64(0x0123456789ABCDEF))
	}
}

// Both stores must land: the observer sees the first value through a
// separate alias before the second store happens.
func TestWritesNotElided(t *testing.T) {
	var c Register32
	alias := (*uint32)(unsafe.Pointer(&c))

	var seen []uint32
	write := func(v uint32) {
		c.Write(v)
		seen = append(seen, *alias)
	}
	write(1)
	write(2)

	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Fatalf("observed stores = %v, want [1 2]", seen)
	}
}

func TestExternalWriteVisible(t *testing.T) {
	var c Register16
	alias := (*uint16)(unsafe.Pointer(&c))

	c.Write(7)
	*alias = 9
	if got := c.Read(); got != 9 {
		t.Fatalf("Read() = %d, want 9", got)
	}
}

func TestBits(t *testing.T) {
	var c Register32

	c.SetBits(1 << 16)
	c.SetBits(0x3)
	if !c.HasBits(1<<16 | 0x1) {
		t.Fatalf("HasBits() = false, value %#x", c.Read())
	}
	c.ClearBits(1 << 16)
	if got := c.Read(); got != 0x3 {
		t.Fatalf("Read() = %#x, want 0x3", got)
	}
	c.ReplaceBits(0x40, 0xFF)
	if got := c.Read(); got != 0x40 {
		t.Fatalf("Read() after ReplaceBits = %#x, want 0x40", got)
	}
}

type named uint8

func TestNamedWord(t *testing.T) {
	var c Cell[named]
	c.Write(named(5))
	if got := c.Read(); got != 5 {
		t.Fatalf("Read() = %d, want 5", got)
	}
	if unsafe.Sizeof(c) != 1 {
		t.Fatalf("Sizeof(Cell[named]) = %d, want 1", unsafe.Sizeof(c))
	}
}
