// Package os (the memory-management OS, not the Go standard library)
// owns each core's address translation state: its instruction and data
// TLBs, its own L2TLB, the virtual memory address space, and the
// hardware page table walker that services L2TLB misses.
package os

import (
	"github.com/suhaskvittal/frost/emu/cache"
	"github.com/suhaskvittal/frost/emu/cachecontrol"
	"github.com/suhaskvittal/frost/emu/ptw"
	"github.com/suhaskvittal/frost/emu/transaction"
	"github.com/suhaskvittal/frost/emu/vmem"
)

// PageShift and LineShift describe the geometry used to translate
// page-table-entry addresses into line addresses for the page table
// walker's memory accesses (4KB pages, 64B lines).
const (
	PageShift = 12
	LineShift = 6
)

type pendingTranslation struct {
	waiters []transaction.Transaction
}

// Core bundles one core's translation hardware.
type Core struct {
	ITLB, DTLB *cache.Array
	L2TLB      *cache.Array
	VM         *vmem.VirtualMemory
	Walker     *ptw.Walker

	pending map[uint64]*pendingTranslation

	ITLBAccesses, ITLBMisses uint64
	DTLBAccesses, DTLBMisses uint64
	L2TLBAccesses, L2TLBMisses uint64
}

// OS owns one Core per simulated hardware core.
type OS struct {
	Cores []*Core
}

// NewOS builds translation hardware for numCores cores, each with its own
// free list (so physical frames are not shared across address spaces,
// matching independent per-process address spaces).
func NewOS(numCores int, framesPerCore int, l1dFor func(core int) *cachecontrol.Controller, seed int64) *OS {
	o := &OS{}
	for i := 0; i < numCores; i++ {
		frames := vmem.NewFreeList(framesPerCore, seed+int64(i))
		vm := vmem.NewVirtualMemory(frames)
		levelCaches := make([]*ptw.LevelCache, vmem.PTLevels-1)
		for l := range levelCaches {
			levelCaches[l] = ptw.NewLevelCache(16, 4, seed+int64(i*7+l))
		}
		walker := ptw.NewWalker(uint8(i), vm, l1dFor(i), levelCaches, PageShift, LineShift)
		c := &Core{
			ITLB:    cache.NewArray(16, 4, cache.LRU, seed+int64(i)),
			DTLB:    cache.NewArray(16, 4, cache.LRU, seed+int64(i)+1),
			L2TLB:   cache.NewArray(64, 8, cache.LRU, seed+int64(i)+2),
			VM:      vm,
			Walker:  walker,
			pending: make(map[uint64]*pendingTranslation),
		}
		o.Cores = append(o.Cores, c)
	}
	return o
}

// TranslateResult reports a translation's outcome to the front end.
type TranslateResult struct {
	Trans transaction.Transaction
	Ready bool
}

// Translate attempts to resolve t.Address (a VPN) for core coreid,
// consulting ITLB or DTLB per isFetch, then the core's L2TLB, and
// finally queuing a page table walk on a full miss. It returns true only
// when the translation completed synchronously (an L1/L2 TLB hit); walk
// completions are delivered later via Tick.
func (o *OS) Translate(coreid int, t transaction.Transaction, isFetch bool) bool {
	c := o.Cores[coreid]
	l1 := c.DTLB
	if isFetch {
		l1 = c.ITLB
		c.ITLBAccesses++
	} else {
		c.DTLBAccesses++
	}

	if l1.Probe(t.Address) {
		return true
	}
	if isFetch {
		c.ITLBMisses++
	} else {
		c.DTLBMisses++
	}

	c.L2TLBAccesses++
	if c.L2TLB.Probe(t.Address) {
		l1.Fill(t.Address, false, 1)
		return true
	}
	c.L2TLBMisses++

	if p, ok := c.pending[t.Address]; ok {
		p.waiters = append(p.waiters, t)
		return false
	}
	c.pending[t.Address] = &pendingTranslation{waiters: []transaction.Transaction{t}}
	c.Walker.HandleTLBMiss(t)
	return false
}

// Tick advances every core's page table walker and reports any
// translations that completed this cycle, filling the L2TLB (and, on
// the next access, the L1 TLB) for each.
func (o *OS) Tick(now uint64) []TranslateResult {
	var results []TranslateResult
	for _, c := range o.Cores {
		for _, done := range c.Walker.Tick(now) {
			c.L2TLB.Fill(done.Address, false, 1)
			if p, ok := c.pending[done.Address]; ok {
				for _, w := range p.waiters {
					results = append(results, TranslateResult{Trans: w, Ready: true})
				}
				delete(c.pending, done.Address)
			}
		}
	}
	return results
}

// HandleL1DOutgoing routes a completion draining from a core's L1D to
// that core's walker, advancing any walk waiting on it.
func (o *OS) HandleL1DOutgoing(coreid int, t transaction.Transaction) {
	if t.Type != transaction.Translation {
		return
	}
	o.Cores[coreid].Walker.HandleL1DOutgoing(t)
}

// WarmupTranslate resolves a VPN immediately, used while populating the
// hierarchy before measured simulation begins.
func (o *OS) WarmupTranslate(coreid int, vpn uint64) int {
	c := o.Cores[coreid]
	pfn := c.Walker.WarmupAccess(vpn)
	c.L2TLB.Fill(vpn, false, 1)
	c.DTLB.Fill(vpn, false, 1)
	c.ITLB.Fill(vpn, false, 1)
	return pfn
}
