package tlsfheap

import "github.com/orizon-lang/tlsf/internal/sizeclass"

// GlobalHeader is the single piece of process-wide state for a pool: the
// two-level bitmap, the per-class free-list heads, the area list, and the
// maximum/used byte counters. Exactly one instance lives at offset 0 of the
// root chunk.
type GlobalHeader struct {
	flBitmap  uint32
	slBitmap  [sizeclass.FLReal]uint32
	freeHeads [sizeclass.TotalCount]*BlockHeader
	areaList  *AreaHeader
	maxBytes  uintptr
	usedBytes uintptr
}

// MaxBytes returns the total bytes ever accounted across every non-sentinel
// block in every chunk.
func (g *GlobalHeader) MaxBytes() uintptr { return g.maxBytes }

// UsedBytes returns the bytes currently held by allocated (non-free,
// non-sentinel) blocks, including their headers.
func (g *GlobalHeader) UsedBytes() uintptr { return g.usedBytes }

// insert links block at the head of class (fl, sl). block must already be
// flagged FREE.
func (g *GlobalHeader) insert(block *BlockHeader, fl, sl int) {
	assertInvariant(block.Free(), "insert: block is not free")

	idx := sizeclass.FlatIndex(fl, sl)
	link := block.AsFreeLink()
	link.prev = nil
	link.next = g.freeHeads[idx]

	if link.next != nil {
		link.next.AsFreeLink().prev = block
	}

	g.freeHeads[idx] = block

	g.flBitmap |= uint32(1) << uint(fl&0x1F)
	g.slBitmap[fl] |= uint32(1) << uint(sl&0x1F)
}

// extractHead pops and returns the head of class (fl, sl), or nil if that
// class is empty. Clears the class's bitmap bits if it becomes empty.
func (g *GlobalHeader) extractHead(fl, sl int) *BlockHeader {
	idx := sizeclass.FlatIndex(fl, sl)

	block := g.freeHeads[idx]
	if block == nil {
		return nil
	}

	link := block.AsFreeLink()
	next := link.next
	link.prev = nil
	link.next = nil

	if next == nil {
		g.freeHeads[idx] = nil
		g.slBitmap[fl] &^= uint32(1) << uint(sl&0x1F)

		if g.slBitmap[fl] == 0 {
			g.flBitmap &^= uint32(1) << uint(fl&0x1F)
		}
	} else {
		g.freeHeads[idx] = next
		next.AsFreeLink().prev = nil
	}

	return block
}

// extract removes block from the middle or tail of its size class's list.
// The caller must already know block's class (typically derived from its
// current buffer size via sizeclass.MapIndices).
func (g *GlobalHeader) extract(block *BlockHeader, fl, sl int) {
	assertInvariant(block.Free(), "extract: block is not free")

	link := block.AsFreeLink()
	prev, next := link.prev, link.next

	if next != nil {
		next.AsFreeLink().prev = prev
	}

	if prev != nil {
		prev.AsFreeLink().next = next
	}

	idx := sizeclass.FlatIndex(fl, sl)
	if g.freeHeads[idx] == block {
		if next != nil {
			g.freeHeads[idx] = next
		} else {
			g.freeHeads[idx] = nil
			g.slBitmap[fl] &^= uint32(1) << uint(sl&0x1F)

			if g.slBitmap[fl] == 0 {
				g.flBitmap &^= uint32(1) << uint(fl&0x1F)
			}
		}
	}

	link.prev = nil
	link.next = nil
}

// shiftMaskFrom32 returns ^uint32(0) << n, and 0 for n >= 32. Go already
// defines a uint32 shift by 32 or more as 0; the explicit guard keeps the
// fl+1 == 32 hazard visible at the call site rather than buried in shift
// semantics.
func shiftMaskFrom32(n int) uint32 {
	if n >= 32 {
		return 0
	}

	return ^uint32(0) << uint(n)
}

// findSuitable locates the best-fit class for a request of req bytes: the
// first non-empty class at or above the one search_size(req) maps to. It
// returns ok=false if no class in the index can satisfy the request.
func (g *GlobalHeader) findSuitable(req uintptr) (fl, sl int, ok bool) {
	s := sizeclass.SearchSize(req)
	fl, sl = sizeclass.MapIndices(s)

	masked := g.slBitmap[fl] & shiftMaskFrom32(sl)
	if masked != 0 {
		lsb, _ := sizeclass.LSB(uintptr(masked))

		return fl, lsb, true
	}

	flMasked := g.flBitmap & shiftMaskFrom32(fl+1)
	if flMasked == 0 {
		return 0, 0, false
	}

	fl2, _ := sizeclass.LSB(uintptr(flMasked))
	sl2, _ := sizeclass.LSB(uintptr(g.slBitmap[fl2]))

	return fl2, sl2, true
}
