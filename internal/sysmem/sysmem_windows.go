//go:build windows

package sysmem

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// ZeroedAlloc reserves and commits size bytes via VirtualAlloc.
// VirtualAlloc-returned regions are always allocation-granularity aligned
// (64 KiB), which satisfies every align this package is ever asked for
// (BLOCK_ALIGN=16).
func (a *Allocator) ZeroedAlloc(size, align uintptr) (unsafe.Pointer, bool) {
	addr, err := windows.VirtualAlloc(0, size, windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, false
	}

	ptr := unsafe.Pointer(addr)
	a.track(ptr, nil)

	return ptr, true
}

// Free releases a region previously returned by ZeroedAlloc.
func (a *Allocator) Free(ptr unsafe.Pointer, size, align uintptr) {
	if _, ok := a.untrack(ptr); !ok {
		return
	}

	_ = windows.VirtualFree(uintptr(ptr), 0, windows.MEM_RELEASE)
}
