package hal

import (
	"fmt"
	"sync"
	"unsafe"

	"hearth/kernel"
)

type region struct {
	phys uintptr
	mem  []byte
}

// memory is the machine's device memory: physical ranges backed by host
// pages that both a driver and a device model can touch.
type memory struct {
	mu      sync.Mutex
	regions []region
}

func (m *memory) add(phys, size uintptr) ([]byte, error) {
	mem, err := allocPages(size)
	if err != nil {
		return nil, fmt.Errorf("hal: back %#x+%#x: %w", phys, size, err)
	}
	m.mu.Lock()
	m.regions = append(m.regions, region{phys: phys, mem: mem})
	m.mu.Unlock()
	return mem, nil
}

// MapDevice returns the host address of [phys, phys+size). The range must
// lie inside one device's region.
func (m *memory) MapDevice(phys, size uintptr) (unsafe.Pointer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.regions {
		if phys >= r.phys && phys+size <= r.phys+uintptr(len(r.mem)) {
			return unsafe.Pointer(&r.mem[phys-r.phys]), nil
		}
	}
	return nil, fmt.Errorf("hal: no device at %#x+%#x: %w", phys, size, kernel.ErrNotFound)
}

func (m *memory) free() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var first error
	for _, r := range m.regions {
		if err := freePages(r.mem); err != nil && first == nil {
			first = err
		}
	}
	m.regions = nil
	return first
}
