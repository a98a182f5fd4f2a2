package tlsfheap

import (
	"unsafe"

	"github.com/orizon-lang/tlsf/internal/sizeclass"
)

const (
	initChunkBytes     = 2 * 1024 * 1024 // 2 MiB
	expandedAlignBytes = 8 * 1024 * 1024 // 8 MiB
)

// NextChunkSize picks the size of the next chunk to request from the OS
// primitive: total is the pool-wide MaxBytes counter before growth, last is
// the raw size of the most recently obtained chunk (or, for the very first
// growth past the root, the root's accounted MaxBytes), and size is the
// allocation-class size of the request that triggered growth. Let a be
// 1<<(msb(size)+1), or 1024 when size is 0. With total == 0 the result is
// 2 MiB when 4a fits in it, else 4a rounded up to an 8 MiB multiple.
// Otherwise it is last doubled when 4a fits in that, else 4a rounded up
// with last-1 as a bit mask, which gives a multiple of last only when last
// is a power of two.
func NextChunkSize(total, last, size uintptr) uintptr {
	var aligned uintptr
	if size > 0 {
		msb, _ := sizeclass.MSB(size)
		aligned = uintptr(1) << uint(msb+1)
	} else {
		aligned = 1024
	}

	if total == 0 {
		if aligned <= initChunkBytes>>2 {
			return initChunkBytes
		}

		mask := uintptr(expandedAlignBytes - 1)

		return (aligned*4 + mask) &^ mask
	}

	expected := last << 1
	if aligned*4 <= expected {
		return expected
	}

	mask := last - 1

	return (aligned*4 + mask) &^ mask
}

// Grow requests one more chunk from the OS primitive, sized to satisfy a
// request of reqSize bytes, merges it into the pool's free-list index, and
// returns an error if the OS primitive refuses or the auxiliary chunk
// budget (maxAuxChunks) is already spent. It never itself retries
// Allocate; callers call Allocate again after a successful Grow.
func (p *Pool) Grow(reqSize uintptr) error {
	auxCount := len(p.chunks) - 1
	if auxCount >= p.maxAuxChunks {
		return errOutOfMemory(reqSize)
	}

	last := p.header.MaxBytes()
	if auxCount > 0 {
		last = p.chunks[len(p.chunks)-1].size
	}

	newSize := NextChunkSize(p.header.MaxBytes(), last, sizeclass.AllocSize(reqSize))

	ptr, ok := p.os.ZeroedAlloc(newSize, sizeclass.BlockAlign)
	if !ok {
		return errOutOfMemory(reqSize)
	}

	p.chunks = append(p.chunks, chunkRecord{ptr: ptr, size: newSize})

	first := p.addNewChunk(ptr, newSize)
	p.free(first.BufferPointer())

	return nil
}

// addNewChunk lays out a fresh area over the chunk at ptr/size and merges
// it with any existing area that is physically adjacent to it, in either
// direction, folding the sentinel blocks at the shared boundary into a
// single free block rather than leaving a zero-size gap between areas.
// Returns the resulting first free block, not yet marked free.
func (p *Pool) addNewChunk(ptr unsafe.Pointer, size uintptr) *BlockHeader {
	usable := sizeclass.RoundDown(size)
	start, first, end := initializeArea(ptr, usable)

	var prevArea *AreaHeader
	cursor := p.header.areaList

	for cursor != nil {
		oldStart := headerFromBuffer(unsafe.Pointer(cursor))
		oldEnd := cursor.endBlock

		oldBufferEndAddr := uintptr(oldEnd.BufferPointer())
		oldBufferStartAddr := uintptr(unsafe.Pointer(oldStart))
		newBufferStartAddr := uintptr(unsafe.Pointer(start))
		newBufferEndAddr := uintptr(end.BufferPointer())

		forward := oldBufferEndAddr == newBufferStartAddr
		reverse := oldBufferStartAddr == newBufferEndAddr

		next := cursor.nextArea

		if !forward && !reverse {
			prevArea = cursor
			cursor = next

			continue
		}

		if prevArea == nil {
			p.header.areaList = next
		} else {
			prevArea.nextArea = next
		}

		cursor = next

		if forward {
			mergedSize := first.BufferSizeWithHeader() + start.BufferSizeWithHeader()
			oldEnd.SetBufferSize(mergedSize)

			after := oldEnd.NextPhysical()
			after.SetPrevPhysical(oldEnd)

			first = oldEnd
			start = oldStart
		} else {
			oldFirst := oldStart.NextPhysical()
			oldFirst.SetPrevPhysical(first)
			first.SetBufferSize(first.BufferSizeWithHeader() + oldStart.BufferSizeWithHeader())

			end = oldEnd
		}
	}

	area := start.AsAreaHeader()
	area.nextArea = p.header.areaList
	area.endBlock = end
	p.header.areaList = area

	total := first.BufferSizeWithHeader()
	p.header.maxBytes += total
	p.header.usedBytes += total

	return first
}
