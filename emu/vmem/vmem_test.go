package vmem

import "testing"

func TestTranslateIsMemoized(t *testing.T) {
	fl := NewFreeList(1024, 1)
	vm := NewVirtualMemory(fl)

	r1 := vm.Translate(0x1234)
	r2 := vm.Translate(0x1234)
	if r1.DataPFN != r2.DataPFN {
		t.Fatalf("expected the same VPN to resolve to the same PFN, got %d and %d", r1.DataPFN, r2.DataPFN)
	}
}

func TestTranslateDistinctVPNsGetDistinctFrames(t *testing.T) {
	fl := NewFreeList(1024, 1)
	vm := NewVirtualMemory(fl)

	r1 := vm.Translate(0x1)
	r2 := vm.Translate(0x2)
	if r1.DataPFN == r2.DataPFN {
		t.Fatalf("expected distinct VPNs to get distinct data frames")
	}
}

func TestFreeListAllocatesEachFrameOnceUntilExhausted(t *testing.T) {
	fl := NewFreeList(4, 1)
	seen := map[int]bool{}
	for i := 0; i < 4; i++ {
		f := fl.Alloc()
		if seen[f] {
			t.Fatalf("allocator returned the same frame twice: %d", f)
		}
		seen[f] = true
	}
	if fl.FreeFrames() != 0 {
		t.Fatalf("expected free list to be exhausted, got %d free", fl.FreeFrames())
	}
}
