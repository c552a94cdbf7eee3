//go:build tinygo

package volatile

import (
	"runtime/volatile"
	"unsafe"
)

func load8(p unsafe.Pointer) uint8       { return volatile.LoadUint8((*uint8)(p)) }
func store8(p unsafe.Pointer, v uint8)   { volatile.StoreUint8((*uint8)(p), v) }
func load16(p unsafe.Pointer) uint16     { return volatile.LoadUint16((*uint16)(p)) }
func store16(p unsafe.Pointer, v uint16) { volatile.StoreUint16((*uint16)(p), v) }
func load32(p unsafe.Pointer) uint32     { return volatile.LoadUint32((*uint32)(p)) }
func store32(p unsafe.Pointer, v uint32) { volatile.StoreUint32((*uint32)(p), v) }
func load64(p unsafe.Pointer) uint64     { return volatile.LoadUint64((*uint64)(p)) }
func store64(p unsafe.Pointer, v uint64) { volatile.StoreUint64((*uint64)(p), v) }
