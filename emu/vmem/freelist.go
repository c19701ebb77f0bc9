package vmem

import (
	"fmt"
	"math/rand"
	"os"
)

// maxProbe bounds the randomized search for a free frame before giving up
// and doing a linear scan; keeps allocation O(1) in the common case of a
// mostly-empty address space.
const maxProbe = 2048

// FreeList is a bitmap-backed randomized page-frame allocator: Alloc picks
// a uniformly random candidate frame and retries on collision, falling
// back to a full scan only when the bitmap is nearly saturated.
type FreeList struct {
	bits   []uint64
	frames int
	used   int
	rng    *rand.Rand
}

// NewFreeList builds an allocator over the given number of physical page
// frames.
func NewFreeList(frames int, seed int64) *FreeList {
	words := (frames + 63) / 64
	return &FreeList{bits: make([]uint64, words), frames: frames, rng: rand.New(rand.NewSource(seed))}
}

func (f *FreeList) test(i int) bool  { return f.bits[i/64]&(1<<uint(i%64)) != 0 }
func (f *FreeList) set(i int)        { f.bits[i/64] |= 1 << uint(i%64) }
func (f *FreeList) clear(i int)      { f.bits[i/64] &^= 1 << uint(i%64) }

// Alloc returns an unused frame number, marking it used. It exits the
// process with a diagnostic if the free list is exhausted, matching the
// allocator's fail-fast behavior under physical memory pressure.
func (f *FreeList) Alloc() int {
	for try := 0; try < maxProbe; try++ {
		i := f.rng.Intn(f.frames)
		if !f.test(i) {
			f.set(i)
			f.used++
			return i
		}
	}
	for i := 0; i < f.frames; i++ {
		if !f.test(i) {
			f.set(i)
			f.used++
			return i
		}
	}
	fmt.Fprintf(os.Stderr, "freelist: out of physical frames (%d/%d in use)\n", f.used, f.frames)
	os.Exit(1)
	return -1
}

// Free releases a previously allocated frame.
func (f *FreeList) Free(frame int) {
	if f.test(frame) {
		f.clear(frame)
		f.used--
	}
}

// FreeFrames reports how many frames remain unallocated, used in the
// exhaustion diagnostic and in stats.
func (f *FreeList) FreeFrames() int { return f.frames - f.used }
