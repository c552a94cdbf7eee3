//go:build tinygo

package hal

import "unsafe"

const pageSize = 4096

// TinyGo's collector does not move objects, so heap memory stays put.
// Over-allocate to align the start to a page.
func allocPages(size uintptr) ([]byte, error) {
	n := (size + pageSize - 1) &^ (pageSize - 1)
	raw := make([]byte, n+pageSize)
	off := pageSize - uintptr(unsafe.Pointer(&raw[0]))%pageSize
	if off == pageSize {
		off = 0
	}
	return raw[off : off+n : off+n], nil
}

func freePages([]byte) error { return nil }
