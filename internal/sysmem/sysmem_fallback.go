//go:build !unix && !windows

package sysmem

import "unsafe"

// ZeroedAlloc is a portability shim for platforms this module doesn't
// special-case: it over-allocates a Go slice and hands back an aligned
// pointer into it. This is the one place in the module that is not
// syscall-backed; it exists only so the package has a build target
// everywhere, not as a recommended deployment path (mmap/VirtualAlloc give
// real guarantees this does not: the Go runtime is still free to scan this
// memory as ordinary heap, and it is not actually page-backed).
func (a *Allocator) ZeroedAlloc(size, align uintptr) (unsafe.Pointer, bool) {
	buf := make([]byte, size+align)

	base := uintptr(unsafe.Pointer(&buf[0]))
	aligned := (base + align - 1) &^ (align - 1)

	ptr := unsafe.Pointer(aligned)
	a.track(ptr, buf)

	return ptr, true
}

// Free drops this package's reference to the backing slice. The memory is
// reclaimed by the Go garbage collector once nothing else refers to it.
func (a *Allocator) Free(ptr unsafe.Pointer, size, align uintptr) {
	a.untrack(ptr)
}
