// Package allocator exposes the process-wide TLSF heap as a single global
// facade: a mutex-guarded, lazily initialized Pool behind Alloc/Free. It
// carries no algorithmic content of its own — every bookkeeping decision
// lives in internal/tlsfheap; this package only owns the lock and the
// lazy-init dance.
package allocator

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/orizon-lang/tlsf/internal/sizeclass"
	"github.com/orizon-lang/tlsf/internal/sysmem"
	"github.com/orizon-lang/tlsf/internal/tlsfheap"
)

// Config configures the global heap's initial chunk size and growth
// budget. The zero value is never used directly; Initialize always starts
// from defaultConfig and applies Option values on top of it.
type Config struct {
	InitialChunkBytes  uintptr
	MaxAuxiliaryChunks int
	DebugChecks        bool
}

// Option mutates a Config during Initialize.
type Option func(*Config)

func defaultConfig() *Config {
	return &Config{
		InitialChunkBytes:  2 * 1024 * 1024,
		MaxAuxiliaryChunks: 32,
		DebugChecks:        true,
	}
}

// WithInitialChunkBytes overrides the root chunk's requested size.
func WithInitialChunkBytes(size uintptr) Option {
	return func(c *Config) { c.InitialChunkBytes = size }
}

// WithMaxAuxiliaryChunks bounds how many chunks Grow may add on top of the
// root chunk before allocation failures become permanent.
func WithMaxAuxiliaryChunks(n int) Option {
	return func(c *Config) { c.MaxAuxiliaryChunks = n }
}

// WithDebugChecks toggles internal invariant assertions. Disabling them
// trades safety for a few bounded-time operations off the hot path;
// leave enabled unless the workload has already been validated.
func WithDebugChecks(enabled bool) Option {
	return func(c *Config) { c.DebugChecks = enabled }
}

var (
	globalMu   sync.Mutex
	globalPool *tlsfheap.Pool
)

// Initialize (re)creates the global heap with the given options, discarding
// any heap created by a previous call. Calling it is optional: Alloc
// lazily initializes with default options on first use.
func Initialize(options ...Option) error {
	config := defaultConfig()
	for _, opt := range options {
		opt(config)
	}

	tlsfheap.DebugChecks = config.DebugChecks

	pool, err := tlsfheap.NewPool(sysmem.New(), config.InitialChunkBytes, config.MaxAuxiliaryChunks)
	if err != nil {
		return fmt.Errorf("allocator: failed to initialize global heap: %w", err)
	}

	globalMu.Lock()
	globalPool = pool
	globalMu.Unlock()

	return nil
}

// ensureInitialized lazily applies default configuration if nothing has
// called Initialize yet. Must be called with globalMu held.
func ensureInitialized() error {
	if globalPool != nil {
		return nil
	}

	config := defaultConfig()
	tlsfheap.DebugChecks = config.DebugChecks

	pool, err := tlsfheap.NewPool(sysmem.New(), config.InitialChunkBytes, config.MaxAuxiliaryChunks)
	if err != nil {
		return fmt.Errorf("allocator: failed to initialize global heap: %w", err)
	}

	globalPool = pool

	return nil
}

// checkAlignment panics with a KindUnsupportedRequest HeapError if align
// exceeds BlockAlign. Every buffer this heap ever hands out is already
// BlockAlign-aligned, but it cannot honor a caller asking for more than
// that, so the request is rejected rather than silently under-aligned.
func checkAlignment(size, align uintptr) {
	if align > sizeclass.BlockAlign {
		panic(&tlsfheap.HeapError{
			Kind:      tlsfheap.KindUnsupportedRequest,
			Message:   "requested alignment exceeds BlockAlign",
			Size:      size,
			Alignment: align,
		})
	}
}

// Alloc returns a pointer to a buffer of at least size bytes aligned to
// align, growing the heap as needed, or nil if the heap is exhausted and
// cannot grow further. It panics if align exceeds BlockAlign.
func Alloc(size, align uintptr) unsafe.Pointer {
	checkAlignment(size, align)

	globalMu.Lock()
	defer globalMu.Unlock()

	if err := ensureInitialized(); err != nil {
		panic(err)
	}

	if ptr := globalPool.Allocate(size); ptr != nil {
		return ptr
	}

	if err := globalPool.Grow(size); err != nil {
		return nil
	}

	return globalPool.Allocate(size)
}

// Free releases a buffer previously returned by Alloc. size and align must
// match the values originally passed to Alloc.
func Free(ptr unsafe.Pointer, size, align uintptr) {
	if ptr == nil {
		return
	}

	checkAlignment(size, align)

	globalMu.Lock()
	defer globalMu.Unlock()

	if err := ensureInitialized(); err != nil {
		panic(err)
	}

	globalPool.Free(ptr)
}

// Stats reports the global heap's byte counters: MaxBytes is every byte
// ever accounted across every chunk, UsedBytes is what is currently
// allocated.
type Stats struct {
	MaxBytes  uintptr
	UsedBytes uintptr
}

// GetStats returns the current global heap counters.
func GetStats() Stats {
	globalMu.Lock()
	defer globalMu.Unlock()

	if err := ensureInitialized(); err != nil {
		return Stats{}
	}

	return Stats{MaxBytes: globalPool.MaxBytes(), UsedBytes: globalPool.UsedBytes()}
}
