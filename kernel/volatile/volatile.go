// Package volatile provides single-word memory cells whose loads and stores
// the compiler may not elide, fuse or reorder. Device register blocks are
// built from these cells.
package volatile

import "unsafe"

// Word is the set of register widths a Cell can hold.
type Word interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Cell is one volatile memory location of type T. The zero value is ready to
// use; cells are normally reached through an MMIO view rather than declared.
type Cell[T Word] struct {
	v T
}

type (
	Register8  = Cell[uint8]
	Register16 = Cell[uint16]
	Register32 = Cell[uint32]
	Register64 = Cell[uint64]
)

// Read performs exactly one load of the cell.
func (c *Cell[T]) Read() T {
	p := unsafe.Pointer(&c.v)
	switch unsafe.Sizeof(c.v) {
	case 1:
		return T(load8(p))
	case 2:
		return T(load16(p))
	case 4:
		return T(load32(p))
	default:
		return T(load64(p))
	}
}

// Write performs exactly one store to the cell.
func (c *Cell[T]) Write(v T) {
	p := unsafe.Pointer(&c.v)
	switch unsafe.Sizeof(c.v) {
	case 1:
		store8(p, uint8(v))
	case 2:
		store16(p, uint16(v))
	case 4:
		store32(p, uint32(v))
	default:
		store64(p, uint64(v))
	}
}

// SetBits is a read-modify-write that ors mask into the cell.
func (c *Cell[T]) SetBits(mask T) {
	c.Write(c.Read() | mask)
}

// ClearBits is a read-modify-write that clears mask in the cell.
func (c *Cell[T]) ClearBits(mask T) {
	c.Write(c.Read() &^ mask)
}

// HasBits reports whether every bit of mask is set.
func (c *Cell[T]) HasBits(mask T) bool {
	return c.Read()&mask == mask
}

// ReplaceBits writes value into the bits selected by mask, leaving the rest
// untouched.
func (c *Cell[T]) ReplaceBits(value, mask T) {
	c.Write(c.Read()&^mask | value&mask)
}
