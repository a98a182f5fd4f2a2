package sizeclass

import "testing"

func TestMSBLSB(t *testing.T) {
	t.Run("ZeroIsUndefined", func(t *testing.T) {
		if _, ok := MSB(0); ok {
			t.Fatal("MSB(0) should report ok=false")
		}

		if _, ok := LSB(0); ok {
			t.Fatal("LSB(0) should report ok=false")
		}
	})

	cases := []struct {
		value  uintptr
		msb    int
		lsb    int
	}{
		{1, 0, 0},
		{2, 1, 1},
		{3, 1, 0},
		{4, 2, 2},
		{128, 7, 7},
		{129, 7, 0},
		{1 << 20, 20, 20},
		{0xFFFF, 15, 0},
	}

	for _, c := range cases {
		if got, ok := MSB(c.value); !ok || got != c.msb {
			t.Errorf("MSB(%d) = %d, %v; want %d", c.value, got, ok, c.msb)
		}

		if got, ok := LSB(c.value); !ok || got != c.lsb {
			t.Errorf("LSB(%d) = %d, %v; want %d", c.value, got, ok, c.lsb)
		}
	}
}

func TestRounding(t *testing.T) {
	if RoundUp(1) != BlockAlign {
		t.Errorf("RoundUp(1) = %d, want %d", RoundUp(1), BlockAlign)
	}

	if RoundUp(BlockAlign) != BlockAlign {
		t.Errorf("RoundUp(BlockAlign) should be a no-op")
	}

	if RoundDown(BlockAlign+1) != BlockAlign {
		t.Errorf("RoundDown(BlockAlign+1) = %d, want %d", RoundDown(BlockAlign+1), BlockAlign)
	}

	if !IsAligned(0) || !IsAligned(BlockAlign) || IsAligned(1) {
		t.Error("IsAligned disagrees with BlockAlign boundaries")
	}
}

func TestAllocSize(t *testing.T) {
	if AllocSize(1) != MinBlockSize {
		t.Errorf("AllocSize(1) = %d, want %d", AllocSize(1), MinBlockSize)
	}

	if AllocSize(24) != 32 {
		t.Errorf("AllocSize(24) = %d, want 32", AllocSize(24))
	}
}

func TestMapIndicesSmall(t *testing.T) {
	for size := uintptr(0); size < Small; size += BlockAlign {
		fl, sl := MapIndices(size)
		if fl != 0 {
			t.Fatalf("size %d: fl = %d, want 0", size, fl)
		}

		if sl != int(size/smallFragment) {
			t.Fatalf("size %d: sl = %d, want %d", size, sl, size/smallFragment)
		}
	}
}

func TestMapIndicesLarge(t *testing.T) {
	// 192 = 0b11000000 -> msb=7, (192 >> (7-5)) - 32 = (192>>2)-32 = 48-32=16
	fl, sl := MapIndices(192)
	if fl != 1 || sl != 16 {
		t.Errorf("MapIndices(192) = (%d, %d), want (1, 16)", fl, sl)
	}

	// 128 -> msb=7, (128>>2)-32 = 32-32=0 -> fl=1, sl=0
	fl, sl = MapIndices(128)
	if fl != 1 || sl != 0 {
		t.Errorf("MapIndices(128) = (%d, %d), want (1, 0)", fl, sl)
	}
}

func TestSearchSizeMonotone(t *testing.T) {
	for req := uintptr(16); req < 1<<20; req += 17 {
		s := SearchSize(req)
		if s < AllocSize(req) {
			t.Fatalf("SearchSize(%d) = %d is smaller than AllocSize = %d", req, s, AllocSize(req))
		}

		fl, sl := MapIndices(s)
		// Every size mapping to the same class as s must be >= req's
		// allocation size, which is exactly the guarantee SearchSize
		// is meant to provide for the first block pulled off that
		// class's list.
		lo := classLowerBound(fl, sl)
		if lo < AllocSize(req) {
			t.Fatalf("class (%d,%d) lower bound %d < alloc size %d for req %d", fl, sl, lo, AllocSize(req), req)
		}
	}
}

// classLowerBound returns the smallest buffer size that maps to (fl, sl),
// used only by the test above to check SearchSize's guarantee.
func classLowerBound(fl, sl int) uintptr {
	if fl == 0 {
		return uintptr(sl) * smallFragment
	}

	shift := uint(fl + FLOffset - SLLog2)

	return (uintptr(sl) + SL) << shift
}

func TestFlatIndexRange(t *testing.T) {
	if FlatIndex(0, 0) != 0 {
		t.Errorf("FlatIndex(0,0) = %d, want 0", FlatIndex(0, 0))
	}

	max := FlatIndex(FLReal-1, SL-1)
	if max != TotalCount-1 {
		t.Errorf("FlatIndex(FLReal-1, SL-1) = %d, want %d", max, TotalCount-1)
	}
}
