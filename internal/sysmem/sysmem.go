// Package sysmem is the downward OS primitive a TLSF heap draws raw chunks
// from: on unix and windows it never takes chunk memory from the Go
// runtime's own heap (the fallback for other platforms does, see
// sysmem_fallback.go), and it never calls back into the allocator above it. That one-way relationship keeps
// internal/tlsfheap free to run in bounded time without worrying about
// reentering the memory manager it is built on top of.
package sysmem

import (
	"sync"
	"unsafe"
)

// Allocator obtains zeroed, page-backed memory directly from the host OS.
// It implements the tlsfheap.OSAllocator interface structurally: callers
// depend on that interface, not on this concrete type, so a test can swap
// in a Go-slice-backed fake without ever importing this package.
type Allocator struct {
	mu   sync.Mutex
	live map[unsafe.Pointer][]byte
}

// New returns a ready-to-use Allocator.
func New() *Allocator {
	return &Allocator{live: make(map[unsafe.Pointer][]byte)}
}

func (a *Allocator) track(ptr unsafe.Pointer, backing []byte) {
	a.mu.Lock()
	a.live[ptr] = backing
	a.mu.Unlock()
}

func (a *Allocator) untrack(ptr unsafe.Pointer) ([]byte, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	backing, ok := a.live[ptr]
	delete(a.live, ptr)

	return backing, ok
}
