// Package tlsfheap implements the Two-Level Segregated Fit bookkeeping
// engine: block and area headers, the segregated free-list index, root
// pool initialization, allocate/free with split and coalesce, and the
// multi-chunk growth protocol.
//
// Every block header lives in-band, immediately preceding the buffer it
// describes, inside memory obtained from the sysmem OS primitive — never
// from the Go runtime's own allocator, so this package must not trigger an
// allocation on its hot path. Block and free-list linkage is expressed with
// native Go pointers into that external memory: the memory is never moved
// or reclaimed by the Go garbage collector, so holding typed pointers into
// it is safe as long as nothing outlives the chunk that backs it.
package tlsfheap

import (
	"unsafe"

	"github.com/orizon-lang/tlsf/internal/sizeclass"
)

const (
	flagFree     = uintptr(1) << 0
	flagPrevFree = uintptr(1) << 1
	flagMask     = flagFree | flagPrevFree
)

// BlockHeader precedes every user buffer, whether free or allocated.
type BlockHeader struct {
	prevPhysical *BlockHeader
	sizeAndFlags uintptr
}

// FreeLink overlays the leading bytes of a free block's buffer, linking it
// into its size-class's doubly linked list.
type FreeLink struct {
	prev *BlockHeader
	next *BlockHeader
}

// AreaHeader overlays the buffer of a chunk's start sentinel block.
type AreaHeader struct {
	endBlock *BlockHeader
	nextArea *AreaHeader
}

var (
	// HeaderSize is the block-aligned size of a BlockHeader.
	HeaderSize = sizeclass.RoundUp(unsafe.Sizeof(BlockHeader{}))

	// FreeLinkSize is the block-aligned size of a FreeLink.
	FreeLinkSize = sizeclass.RoundUp(unsafe.Sizeof(FreeLink{}))

	// AreaHeaderSize is the block-aligned size of an AreaHeader.
	AreaHeaderSize = sizeclass.RoundUp(unsafe.Sizeof(AreaHeader{}))
)

func calculateSizeAndFlags(bufferSize uintptr, free, prevFree bool) uintptr {
	size := sizeclass.RoundUp(bufferSize)

	var flags uintptr
	if free {
		flags |= flagFree
	}

	if prevFree {
		flags |= flagPrevFree
	}

	return size | flags
}

// newBlockHeader writes a fresh header at ptr and returns it.
func newBlockHeader(ptr unsafe.Pointer, bufferSize uintptr, free, prevFree bool, prevPhysical *BlockHeader) *BlockHeader {
	b := (*BlockHeader)(ptr)
	b.prevPhysical = prevPhysical
	b.sizeAndFlags = calculateSizeAndFlags(bufferSize, free, prevFree)

	return b
}

// BufferSize returns the aligned buffer size, with flag bits masked off.
func (b *BlockHeader) BufferSize() uintptr {
	return b.sizeAndFlags &^ flagMask
}

// BufferSizeWithHeader returns the total bytes this block occupies,
// including its own header.
func (b *BlockHeader) BufferSizeWithHeader() uintptr {
	return HeaderSize + b.BufferSize()
}

// SetBufferSize rewrites the buffer size, preserving FREE and PREV_FREE.
func (b *BlockHeader) SetBufferSize(size uintptr) {
	assertInvariant(sizeclass.IsAligned(size), "SetBufferSize: size is not block-aligned")
	b.sizeAndFlags = calculateSizeAndFlags(size, b.Free(), b.PrevFree())
}

// Free reports whether this block is on a free-list.
func (b *BlockHeader) Free() bool {
	return b.sizeAndFlags&flagFree != 0
}

// SetFree sets or clears the FREE flag.
func (b *BlockHeader) SetFree(free bool) {
	b.sizeAndFlags = calculateSizeAndFlags(b.BufferSize(), free, b.PrevFree())
}

// PrevFree reports whether the physically preceding block is free.
func (b *BlockHeader) PrevFree() bool {
	return b.sizeAndFlags&flagPrevFree != 0
}

// SetPrevFree sets or clears the PREV_FREE flag.
func (b *BlockHeader) SetPrevFree(prevFree bool) {
	b.sizeAndFlags = calculateSizeAndFlags(b.BufferSize(), b.Free(), prevFree)
}

// PrevPhysical returns the header of the physically preceding block in the
// same chunk, or nil at a chunk's start sentinel.
func (b *BlockHeader) PrevPhysical() *BlockHeader {
	return b.prevPhysical
}

// SetPrevPhysical rewrites the back-pointer used by backward coalesce and
// by chunk-growth area merging.
func (b *BlockHeader) SetPrevPhysical(prev *BlockHeader) {
	b.prevPhysical = prev
}

// BufferPointer returns the address of the first byte of this block's
// buffer, immediately following the header.
func (b *BlockHeader) BufferPointer() unsafe.Pointer {
	return unsafe.Add(unsafe.Pointer(b), HeaderSize)
}

// NextPhysical returns the header of the block that immediately follows
// this one in memory. The caller must know that header has already been
// initialized (it always has, except past the end sentinel, which must
// never be dereferenced through this method).
func (b *BlockHeader) NextPhysical() *BlockHeader {
	return (*BlockHeader)(unsafe.Add(unsafe.Pointer(b), HeaderSize+b.BufferSize()))
}

// AsFreeLink overlays this block's buffer as a FreeLink. The block must be
// FREE.
func (b *BlockHeader) AsFreeLink() *FreeLink {
	assertInvariant(b.Free(), "AsFreeLink: block is not free")

	return (*FreeLink)(b.BufferPointer())
}

// AsAreaHeader overlays this block's buffer as an AreaHeader. The block
// must be a non-free start sentinel.
func (b *BlockHeader) AsAreaHeader() *AreaHeader {
	assertInvariant(!b.Free(), "AsAreaHeader: block is free")

	return (*AreaHeader)(b.BufferPointer())
}

// headerFromBuffer recovers the header that precedes a buffer pointer
// previously handed out by Allocate.
func headerFromBuffer(ptr unsafe.Pointer) *BlockHeader {
	return (*BlockHeader)(unsafe.Add(ptr, -int(HeaderSize)))
}
