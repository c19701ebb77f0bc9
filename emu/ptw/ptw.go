// Package ptw implements the hardware page table walker that services
// L2TLB misses: it walks a VirtualMemory's table tree one level at a
// time, issuing a memory access through L1D for each non-cached level,
// and reports the resolved physical frame back to the L2TLB.
package ptw

import (
	"sort"

	"github.com/suhaskvittal/frost/emu/cachecontrol"
	"github.com/suhaskvittal/frost/emu/transaction"
	"github.com/suhaskvittal/frost/emu/vmem"
)

// State is where a single in-flight walk sits relative to its next
// required memory access.
type State int

const (
	NeedAccess State = iota
	WaitingOnAccess
)

// Entry tracks one outstanding walk. CurrWalkDataIdx starts at 1 because
// index 0 of WalkData always holds the resolved data PFN; the table/offset
// pairs for each level begin at index 1.
type Entry struct {
	CurrLevel        int
	State            State
	WalkData         vmem.WalkResult
	CurrWalkDataIdx  int
	Orig             transaction.Transaction
}

// CurrTableLineAddr computes the line address of the page table entry the
// walk is currently waiting to read.
func (e *Entry) CurrTableLineAddr(pageShift, lineShift uint) uint64 {
	i := (e.CurrWalkDataIdx - 1) / 2
	pfn := uint64(e.WalkData.TablePFNs[i])
	off := uint64(e.WalkData.Offsets[i])
	paddr := (pfn << pageShift) | off
	return paddr >> lineShift
}

// Next advances the walk to the next (lower) level, resetting its state
// to NeedAccess so the walker issues a fresh access for it.
func (e *Entry) Next() {
	e.CurrLevel--
	e.CurrWalkDataIdx += 2
	e.State = NeedAccess
}

// Done reports whether every page table level has been walked.
func (e *Entry) Done() bool { return e.CurrLevel < 0 }

// Walker is the per-core page table walker.
type Walker struct {
	coreID uint8
	vm     *vmem.VirtualMemory
	l1d    *cachecontrol.Controller
	levelCaches []*LevelCache

	ongoing map[uint64]*Entry

	pageShift uint
	lineShift uint

	Walks, CacheHits uint64
}

// NewWalker builds a walker for one core, with one LevelCache per
// non-leaf page table level.
func NewWalker(coreID uint8, vm *vmem.VirtualMemory, l1d *cachecontrol.Controller, levelCaches []*LevelCache, pageShift, lineShift uint) *Walker {
	return &Walker{
		coreID:      coreID,
		vm:          vm,
		l1d:         l1d,
		levelCaches: levelCaches,
		ongoing:     make(map[uint64]*Entry),
		pageShift:   pageShift,
		lineShift:   lineShift,
	}
}

// HandleTLBMiss starts a new walk for the VPN carried by t (an L2TLB
// miss), resolving the full tree eagerly via VirtualMemory but still
// replaying the walk one level at a time for timing purposes.
func (w *Walker) HandleTLBMiss(t transaction.Transaction) {
	vpn := t.Address
	if _, exists := w.ongoing[vpn]; exists {
		return
	}
	wd := w.vm.Translate(vpn)
	w.ongoing[vpn] = &Entry{
		CurrLevel:       vmem.PTLevels - 1,
		State:           NeedAccess,
		WalkData:        wd,
		CurrWalkDataIdx: 1,
		Orig:            t,
	}
	w.Walks++
}

// Tick drives every ongoing walk forward by one step: issuing the next
// level's memory access if needed, or checking whether a pending access
// has completed. Walks are visited in ascending VPN order.
func (w *Walker) Tick(now uint64) []transaction.Transaction {
	var completed []transaction.Transaction
	vpns := make([]uint64, 0, len(w.ongoing))
	for vpn := range w.ongoing {
		vpns = append(vpns, vpn)
	}
	sort.Slice(vpns, func(i, j int) bool { return vpns[i] < vpns[j] })
	for _, vpn := range vpns {
		e := w.ongoing[vpn]
		if e.Done() {
			completed = append(completed, e.Orig)
			delete(w.ongoing, vpn)
			continue
		}
		if e.State == NeedAccess {
			w.issueAccess(e, now)
		}
	}
	return completed
}

func (w *Walker) issueAccess(e *Entry, now uint64) {
	i := (e.CurrWalkDataIdx - 1) / 2
	if i < len(w.levelCaches) && w.levelCaches[i].Probe(e.CurrTableLineAddr(w.pageShift, w.lineShift)) {
		w.CacheHits++
		e.Next()
		return
	}
	access := transaction.Transaction{
		CoreID:  w.coreID,
		Type:    transaction.Translation,
		Address: e.CurrTableLineAddr(w.pageShift, w.lineShift),
	}
	if w.l1d.Submit(access) {
		e.State = WaitingOnAccess
		if i < len(w.levelCaches) {
			w.levelCaches[i].Fill(e.CurrTableLineAddr(w.pageShift, w.lineShift))
		}
	}
}

// HandleL1DOutgoing inspects completions draining from L1D's outgoing
// queue; any whose address matches a WaitingOnAccess walk advances it.
func (w *Walker) HandleL1DOutgoing(t transaction.Transaction) {
	for _, e := range w.ongoing {
		if e.State != WaitingOnAccess {
			continue
		}
		if e.CurrTableLineAddr(w.pageShift, w.lineShift) == t.Address {
			e.Next()
		}
	}
}

// WarmupAccess resolves vpn immediately without modeling walk timing,
// used while populating the hierarchy before measured simulation.
func (w *Walker) WarmupAccess(vpn uint64) int {
	return w.vm.Translate(vpn).DataPFN
}
