//go:build !tinygo

package hal

import (
	"os"

	"golang.org/x/sys/unix"
)

// allocPages maps anonymous memory outside the Go heap, rounded up to whole
// pages, so register blocks never move and start page aligned.
func allocPages(size uintptr) ([]byte, error) {
	page := uintptr(os.Getpagesize())
	n := (size + page - 1) &^ (page - 1)
	return unix.Mmap(-1, 0, int(n), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
}

func freePages(b []byte) error {
	return unix.Munmap(b)
}
