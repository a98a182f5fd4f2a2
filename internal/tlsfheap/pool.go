package tlsfheap

import (
	"unsafe"

	"github.com/orizon-lang/tlsf/internal/sizeclass"
)

// OSAllocator is the downward interface to the host operating system: the
// only source of raw memory this package ever touches. It must never
// itself call back into this package — see sysmem for the concrete
// mmap/VirtualAlloc-backed implementation.
type OSAllocator interface {
	// ZeroedAlloc returns a zeroed region of at least size bytes aligned to
	// align, or ok=false on failure.
	ZeroedAlloc(size, align uintptr) (ptr unsafe.Pointer, ok bool)

	// Free releases a region previously returned by ZeroedAlloc.
	Free(ptr unsafe.Pointer, size, align uintptr)
}

// globalHeaderSize is the block-aligned size of GlobalHeader, i.e. how much
// space the root chunk reserves ahead of its start sentinel.
var globalHeaderSize = sizeclass.RoundUp(unsafe.Sizeof(GlobalHeader{}))

// minRootPoolSize is the smallest chunk size from which a root pool can be
// carved: a global header, three block headers (start sentinel, first
// block, end sentinel), the area header the start sentinel carries, and a
// first-block buffer large enough to hold its FreeLink.
var minRootPoolSize = globalHeaderSize + 3*HeaderSize + AreaHeaderSize + FreeLinkSize

type chunkRecord struct {
	ptr  unsafe.Pointer
	size uintptr
}

// Pool is one TLSF heap instance: a root chunk plus zero or more
// auxiliary chunks, all indexed by a single GlobalHeader.
type Pool struct {
	os     OSAllocator
	header *GlobalHeader
	chunks []chunkRecord

	maxAuxChunks int
}

// NewPool allocates a root chunk of at least requestedSize bytes from os
// and initializes it as an empty TLSF pool.
func NewPool(os OSAllocator, requestedSize uintptr, maxAuxChunks int) (*Pool, error) {
	if requestedSize < minRootPoolSize {
		return nil, errPoolTooSmall(requestedSize, minRootPoolSize)
	}

	ptr, ok := os.ZeroedAlloc(requestedSize, sizeclass.BlockAlign)
	if !ok {
		return nil, errOutOfMemory(requestedSize)
	}

	header := (*GlobalHeader)(ptr)
	usable := sizeclass.RoundDown(requestedSize) - globalHeaderSize
	regionPtr := unsafe.Add(ptr, globalHeaderSize)

	p := &Pool{os: os, header: header, maxAuxChunks: maxAuxChunks}
	p.chunks = append(p.chunks, chunkRecord{ptr: ptr, size: requestedSize})

	first := p.installArea(regionPtr, usable)
	p.free(first.BufferPointer())

	return p, nil
}

// installArea lays out a start sentinel, first free block, and end
// sentinel over usableSize bytes at regionPtr, pushes the resulting area
// onto the global area list, and accounts the first block in MaxBytes. It
// does not yet mark the first block free: callers finish construction by
// routing its buffer through Free, exactly like the root pool does.
func (p *Pool) installArea(regionPtr unsafe.Pointer, usableSize uintptr) *BlockHeader {
	assertInvariant(sizeclass.IsAligned(usableSize), "installArea: usable size is not block-aligned")

	start, first, _ := initializeArea(regionPtr, usableSize)

	area := start.AsAreaHeader()
	area.nextArea = p.header.areaList
	p.header.areaList = area

	size := first.BufferSizeWithHeader()
	p.header.maxBytes += size
	p.header.usedBytes += size

	return first
}

// initializeArea writes a start sentinel (carrying a fresh AreaHeader), a
// first free block spanning the remainder, and a zero-sized end sentinel,
// laid out contiguously starting at regionPtr. The first block is left
// non-free; the caller is responsible for routing it through Free (or,
// during chunk-growth merging, absorbing it into an adjacent area) so that
// construction and steady-state operation share one code path.
func initializeArea(regionPtr unsafe.Pointer, usableSize uintptr) (start, first, end *BlockHeader) {
	start = newBlockHeader(regionPtr, AreaHeaderSize, false, false, nil)

	area := start.AsAreaHeader()
	area.endBlock = nil
	area.nextArea = nil

	firstSize := usableSize - start.BufferSizeWithHeader() - 2*HeaderSize
	first = newBlockHeader(unsafe.Pointer(start.NextPhysical()), firstSize, false, false, nil)

	end = newBlockHeader(unsafe.Pointer(first.NextPhysical()), 0, false, true, first)

	area.endBlock = end

	return start, first, end
}

// Allocate returns a pointer to a buffer of at least req bytes, or nil if
// no free block is large enough. Growing the pool on a failed search is
// the caller's responsibility (see Grow in chunk.go).
func (p *Pool) Allocate(req uintptr) unsafe.Pointer {
	s := sizeclass.SearchSize(req)

	fl, sl, ok := p.header.findSuitable(req)
	if !ok {
		return nil
	}

	b := p.header.extractHead(fl, sl)
	assertInvariant(b.BufferSize() >= s, "Allocate: extracted block smaller than requested class")

	rem := b.BufferSize() - s
	if rem < HeaderSize+FreeLinkSize {
		b.NextPhysical().SetPrevFree(false)
	} else {
		newSize := rem - HeaderSize
		n := newBlockHeader(unsafe.Add(b.BufferPointer(), s), newSize, true, false, b)

		o := n.NextPhysical()
		o.SetPrevPhysical(n)

		b.SetBufferSize(s)

		nfl, nsl := sizeclass.MapIndices(n.BufferSize())
		p.header.insert(n, nfl, nsl)
	}

	b.SetFree(false)
	p.header.usedBytes += b.BufferSizeWithHeader()

	return b.BufferPointer()
}

// free is the internal entry point shared by the public Free and by pool
// construction / chunk growth's synthetic "free the block I just built".
func (p *Pool) free(ptr unsafe.Pointer) {
	b := headerFromBuffer(ptr)
	assertInvariant(!b.Free(), "Free: double free detected")

	b.SetFree(true)
	p.header.usedBytes -= b.BufferSizeWithHeader()

	link := b.AsFreeLink()
	link.prev = nil
	link.next = nil

	if f := b.NextPhysical(); f.Free() {
		ffl, fsl := sizeclass.MapIndices(f.BufferSize())
		p.header.extract(f, ffl, fsl)
		b.SetBufferSize(b.BufferSize() + HeaderSize + f.BufferSize())
	}

	if b.PrevFree() {
		pr := b.PrevPhysical()
		pfl, psl := sizeclass.MapIndices(pr.BufferSize())
		p.header.extract(pr, pfl, psl)
		pr.SetBufferSize(pr.BufferSize() + HeaderSize + b.BufferSize())
		b = pr
	}

	bfl, bsl := sizeclass.MapIndices(b.BufferSize())
	p.header.insert(b, bfl, bsl)

	x := b.NextPhysical()
	x.SetPrevFree(true)
	x.SetPrevPhysical(b)
}

// Free releases a buffer previously returned by Allocate.
func (p *Pool) Free(ptr unsafe.Pointer) {
	p.free(ptr)
}

// MaxBytes returns the pool-wide maximum byte counter.
func (p *Pool) MaxBytes() uintptr { return p.header.MaxBytes() }

// UsedBytes returns the pool-wide used byte counter.
func (p *Pool) UsedBytes() uintptr { return p.header.UsedBytes() }

// Close releases every chunk this pool ever obtained back to the OS
// primitive. It must only be called at process teardown: nothing in this
// package supports using a Pool afterwards.
func (p *Pool) Close() {
	for _, c := range p.chunks {
		p.os.Free(c.ptr, c.size, sizeclass.BlockAlign)
	}

	p.chunks = nil
}
