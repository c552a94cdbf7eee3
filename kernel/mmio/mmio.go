// Package mmio gives typed, pinned views of device register blocks.
//
// A Handle never owns the memory behind it. The device (or the machine
// model standing in for it) does, and the mapping outlives every handle.
package mmio

import (
	"fmt"
	"sort"
	"unsafe"

	"github.com/inhies/go-bytesize"

	"hearth/kernel"
	"hearth/kernel/klog"
	"hearth/kernel/spin"
)

// Pinned marks a register block whose address matters to the device, for
// example one holding DMA pointers into itself. Embed it to forbid AsMut.
type Pinned struct{}

func (Pinned) pinned() {}

type pinner interface{ pinned() }

// Mapper maps a physical device region uncached and write-through and
// returns its virtual address.
type Mapper interface {
	MapDevice(phys, size uintptr) (unsafe.Pointer, error)
}

// Region describes one live handle.
type Region struct {
	Phys uintptr
	Virt uintptr
	Size uintptr
	Type string
}

func (r Region) String() string {
	return fmt.Sprintf("%#010x -> %#x %8s %s", r.Phys, r.Virt, bytesize.New(float64(r.Size)), r.Type)
}

var live = spin.New(map[uintptr]Region{})

// Handle is a typed view of a register block of type T.
type Handle[T any] struct {
	ptr *T
}

// FromRaw wraps a pointer to a mapped device region. The caller asserts
// that p came from a Mapper and that no other code writes through p. A
// pointer may back at most one live handle.
func FromRaw[T any](p unsafe.Pointer) (*Handle[T], error) {
	return claim[T](p, 0)
}

// Map maps the block at phys through m and wraps it.
func Map[T any](m Mapper, phys uintptr) (*Handle[T], error) {
	var zero T
	p, err := m.MapDevice(phys, unsafe.Sizeof(zero))
	if err != nil {
		return nil, fmt.Errorf("mmio: map %#x: %w", phys, err)
	}
	return claim[T](p, phys)
}

func claim[T any](p unsafe.Pointer, phys uintptr) (*Handle[T], error) {
	var zero T
	addr := uintptr(p)
	switch {
	case p == nil:
		klog.Errorf("mmio: null pointer for %T", zero)
		return nil, fmt.Errorf("mmio: null pointer: %w", kernel.ErrInvalidArgument)
	case addr%unsafe.Alignof(zero) != 0:
		klog.Errorf("mmio: %#x misaligned for %T", addr, zero)
		return nil, fmt.Errorf("mmio: misaligned pointer %#x: %w", addr, kernel.ErrInvalidArgument)
	}

	g := live.SpinLock()
	defer g.Unlock()
	regions := *g.Get()
	if _, dup := regions[addr]; dup {
		klog.Errorf("mmio: %#x already has a handle", addr)
		return nil, fmt.Errorf("mmio: pointer %#x already claimed: %w", addr, kernel.ErrInvalidArgument)
	}
	r := Region{Phys: phys, Virt: addr, Size: unsafe.Sizeof(zero), Type: fmt.Sprintf("%T", zero)}
	regions[addr] = r
	klog.Debugf("mmio: %s", r)
	return &Handle[T]{ptr: (*T)(p)}, nil
}

// AsRef returns the shared view. Fields are read through their volatile
// cells.
func (h *Handle[T]) AsRef() *T {
	return h.ptr
}

// AsMut returns the exclusive view. It panics if T is Pinned.
func (h *Handle[T]) AsMut() *T {
	if _, ok := any(h.ptr).(pinner); ok {
		panic(fmt.Sprintf("mmio: AsMut on pinned %T; use UncheckedMut", h.ptr))
	}
	return h.ptr
}

// UncheckedMut returns the exclusive view for any T. The caller must not
// copy the value out and back, which would move it.
func (h *Handle[T]) UncheckedMut() *T {
	return h.ptr
}

func (h *Handle[T]) Addr() uintptr {
	return uintptr(unsafe.Pointer(h.ptr))
}

// Release drops the handle's claim on its address. The memory stays mapped.
func (h *Handle[T]) Release() {
	if h.ptr == nil {
		panic("mmio: release of released handle")
	}
	g := live.SpinLock()
	delete(*g.Get(), h.Addr())
	g.Unlock()
	h.ptr = nil
}

// Regions lists the live handles ordered by virtual address.
func Regions() []Region {
	g := live.SpinLock()
	out := make([]Region, 0, len(*g.Get()))
	for _, r := range *g.Get() {
		out = append(out, r)
	}
	g.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Virt < out[j].Virt })
	return out
}
