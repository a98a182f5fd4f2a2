//go:build unix

package sysmem

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// ZeroedAlloc maps size bytes of anonymous, zeroed memory. mmap always
// returns page-aligned regions, which trivially satisfies every align this
// package is ever asked for (BLOCK_ALIGN=16).
func (a *Allocator) ZeroedAlloc(size, align uintptr) (unsafe.Pointer, bool) {
	data, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, false
	}

	ptr := unsafe.Pointer(&data[0])
	a.track(ptr, data)

	return ptr, true
}

// Free unmaps a region previously returned by ZeroedAlloc.
func (a *Allocator) Free(ptr unsafe.Pointer, size, align uintptr) {
	data, ok := a.untrack(ptr)
	if !ok {
		return
	}

	_ = unix.Munmap(data)
}
