// Package sizeclass provides the bit-level size-class arithmetic shared by
// the TLSF heap: most/least significant bit lookup, block-alignment
// rounding, and the two-level (fl, sl) class mapping used to index the
// free-list matrix.
//
// The lookup table and folding scheme favor a shared byte-wise table over
// a naive bits.Len call, so that the same table can be reused by both msb
// and lsb.
package sizeclass

const (
	// WordSize is the machine word size this package is tuned for.
	WordSize = 8

	// BlockAlign is the mandatory alignment of every header and buffer
	// size in the heap: two machine words.
	BlockAlign = 2 * WordSize

	// MinBlockSize is the smallest user buffer a block may ever hold.
	MinBlockSize = 16

	// Small is the cutoff below which blocks are mapped linearly into
	// outer row 0 instead of through the msb/sl computation.
	Small = 128

	// FLMax, FLOffset, SLLog2 parameterize the two-level index.
	FLMax    = 36
	FLOffset = 6
	SLLog2   = 5

	// FLReal is the number of usable outer rows.
	FLReal = FLMax - FLOffset

	// SL is the number of inner classes per outer row.
	SL = 1 << SLLog2

	// TotalCount is the total number of (fl, sl) size classes.
	TotalCount = FLReal * SL

	// smallFragment is the granularity of outer row 0's linear mapping.
	smallFragment = Small / SL
)

// msbTable maps a byte value (1..255) to the index of its highest set bit.
// Index 0 is unused (msb of 0 is undefined) and kept as 0 for safety.
var msbTable = [256]uint8{
	0,
	0,
	1, 1,
	2, 2, 2, 2,
	3, 3, 3, 3, 3, 3, 3, 3,
	4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4,
	5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5,
	6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6,
	6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6,
	7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7,
	7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7,
	7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7,
	7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7,
}

// MSB returns the index of the highest set bit of x. ok is false for x == 0,
// in which case the returned index is meaningless.
func MSB(x uintptr) (idx int, ok bool) {
	if x == 0 {
		return 0, false
	}

	offset := 0
	for x > 0xFF {
		offset += 8
		x >>= 8
	}

	return int(msbTable[x]) + offset, true
}

// LSB returns the index of the lowest set bit of x. ok is false for x == 0.
func LSB(x uintptr) (idx int, ok bool) {
	if x == 0 {
		return 0, false
	}

	return MSB(x & (-x))
}

// RoundUp aligns v up to the next multiple of BlockAlign.
func RoundUp(v uintptr) uintptr {
	const mask = uintptr(BlockAlign - 1)

	return (v + mask) &^ mask
}

// RoundDown aligns v down to the previous multiple of BlockAlign.
func RoundDown(v uintptr) uintptr {
	const mask = uintptr(BlockAlign - 1)

	return v &^ mask
}

// IsAligned reports whether v is already a multiple of BlockAlign.
func IsAligned(v uintptr) bool {
	return v&(BlockAlign-1) == 0
}

// AllocSize computes the block-aligned buffer size that will actually be
// reserved for a request of req bytes.
func AllocSize(req uintptr) uintptr {
	if req < MinBlockSize {
		req = MinBlockSize
	}

	return RoundUp(req)
}

// SearchSize computes the size to use when searching the free-list index
// for req bytes: alloc_size rounded up to the next class boundary so that
// the head of the class FindSuitable returns is always big enough, with no
// further per-block fitness check required.
func SearchSize(req uintptr) uintptr {
	s := AllocSize(req)
	if s < Small {
		return s
	}

	fl, _ := MSB(s)
	t := uintptr(1)<<uint(fl-SLLog2) - 1
	s = (s + t) &^ t

	return s
}

// MapIndices computes the (fl, sl) two-level class for a block of the given
// size. Callers pass already block-aligned sizes (e.g. the result of
// SearchSize or a free block's buffer size).
func MapIndices(size uintptr) (fl, sl int) {
	if size < Small {
		return 0, int(size / smallFragment)
	}

	msb, _ := MSB(size)
	sl = int(size>>uint(msb-SLLog2)) - SL
	fl = msb - FLOffset

	return fl, sl
}

// FlatIndex collapses a two-level (fl, sl) pair into the single index used
// to address FreeHeads.
func FlatIndex(fl, sl int) int {
	return fl*SL + sl
}
