package allocator

import (
	"testing"
	"unsafe"

	"github.com/orizon-lang/tlsf/internal/sizeclass"
)

// TestGlobalHeap exercises the facade end to end against a freshly
// (re)initialized global heap.
func TestGlobalHeap(t *testing.T) {
	if err := Initialize(WithInitialChunkBytes(1 << 16)); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	t.Run("BasicAllocation", func(t *testing.T) {
		ptr := Alloc(1024, sizeclass.BlockAlign)
		if ptr == nil {
			t.Fatal("Allocation failed")
		}

		data := (*[1024]byte)(ptr)
		for i := 0; i < 1024; i++ {
			data[i] = byte(i % 256)
		}

		for i := 0; i < 1024; i++ {
			if data[i] != byte(i%256) {
				t.Errorf("data corruption at index %d", i)
			}
		}

		Free(ptr, 1024, sizeclass.BlockAlign)
	})

	t.Run("FreeNilIsANoOp", func(t *testing.T) {
		Free(nil, 0, 0)
	})

	t.Run("Statistics", func(t *testing.T) {
		before := GetStats()

		ptrs := make([]unsafe.Pointer, 10)
		for i := range ptrs {
			ptrs[i] = Alloc(128, 0)
			if ptrs[i] == nil {
				t.Fatalf("allocation %d failed", i)
			}
		}

		mid := GetStats()
		if mid.UsedBytes <= before.UsedBytes {
			t.Errorf("used bytes did not grow: before=%d mid=%d", before.UsedBytes, mid.UsedBytes)
		}

		for _, ptr := range ptrs {
			Free(ptr, 128, 0)
		}

		after := GetStats()
		if after.UsedBytes != before.UsedBytes {
			t.Errorf("used bytes after freeing everything = %d, want %d", after.UsedBytes, before.UsedBytes)
		}
	})
}

func TestAllocZeroStillReturnsAUsableBlock(t *testing.T) {
	if err := Initialize(WithInitialChunkBytes(1 << 16)); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	// Unlike a general-purpose malloc, this heap's minimum block size
	// means a zero-byte request still gets a valid, freeable buffer
	// rather than a sentinel nil.
	ptr := Alloc(0, 0)
	if ptr == nil {
		t.Fatal("Alloc(0, 0) returned nil")
	}

	Free(ptr, 0, 0)
}

func TestAllocRejectsAlignmentBeyondBlockAlign(t *testing.T) {
	if err := Initialize(WithInitialChunkBytes(1 << 16)); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected Alloc to panic for align > BlockAlign")
		}
	}()

	Alloc(64, sizeclass.BlockAlign*2)
}

func TestFreeRejectsAlignmentBeyondBlockAlign(t *testing.T) {
	if err := Initialize(WithInitialChunkBytes(1 << 16)); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	ptr := Alloc(64, sizeclass.BlockAlign)
	if ptr == nil {
		t.Fatal("Alloc failed")
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected Free to panic for align > BlockAlign")
		}
	}()

	Free(ptr, 64, sizeclass.BlockAlign*2)
}

func TestAllocGrowsPastRootPool(t *testing.T) {
	if err := Initialize(WithInitialChunkBytes(1<<13), WithMaxAuxiliaryChunks(4)); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	var ptrs []unsafe.Pointer
	for i := 0; i < 256; i++ {
		ptr := Alloc(256, 0)
		if ptr == nil {
			t.Fatalf("allocation %d failed even though growth should have kept up", i)
		}

		ptrs = append(ptrs, ptr)
	}

	stats := GetStats()
	if stats.MaxBytes <= 1<<13 {
		t.Errorf("MaxBytes = %d, expected growth past the 8 KiB root pool", stats.MaxBytes)
	}

	for _, ptr := range ptrs {
		Free(ptr, 256, 0)
	}
}

func TestAllocUnderLockedAuxiliaryBudgetEventuallyReturnsNil(t *testing.T) {
	if err := Initialize(WithInitialChunkBytes(1<<13), WithMaxAuxiliaryChunks(1)); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	var ptrs []unsafe.Pointer
	var sawNil bool

	for i := 0; i < 4096; i++ {
		ptr := Alloc(256, 0)
		if ptr == nil {
			sawNil = true

			break
		}

		ptrs = append(ptrs, ptr)
	}

	if !sawNil {
		t.Fatal("expected allocation to eventually fail with a one-chunk growth budget")
	}

	for _, ptr := range ptrs {
		Free(ptr, 256, 0)
	}
}
