package cachecontrol

import (
	"testing"

	"github.com/suhaskvittal/frost/emu/cache"
	"github.com/suhaskvittal/frost/emu/transaction"
)

func testConfig(name string) Config {
	return Config{
		Name: name, Sets: 4, Ways: 2, Policy: cache.LRU,
		MSHRSize: 4, HitLatency: 2, MissLatency: 5, WriteAlloc: true,
		NumRWPorts: 2,
	}
}

func TestMSHRCoalescesSameLineMisses(t *testing.T) {
	l2 := NewController(testConfig("L2"), 8, 8, 8)
	l1 := NewController(testConfig("L1D"), 8, 8, 8)
	l1.SetNext(l2)

	ref1 := transaction.InstRef{Index: 1}
	ref2 := transaction.InstRef{Index: 2}

	l1.Submit(transaction.Transaction{Type: transaction.Read, Address: 0x40, InstRefs: []transaction.InstRef{ref1}})
	l1.Tick(0)
	l1.Submit(transaction.Transaction{Type: transaction.Read, Address: 0x40, InstRefs: []transaction.InstRef{ref2}})
	l1.Tick(1)

	if len(l1.mshr) != 1 {
		t.Fatalf("expected both misses to coalesce into a single MSHR entry, got %d", len(l1.mshr))
	}
	if len(l1.mshr[0].trans.InstRefs) != 2 {
		t.Fatalf("expected coalesced entry to carry both instruction refs, got %d", len(l1.mshr[0].trans.InstRefs))
	}
}

func TestWriteAllocateMissCompletesWithNoNextLevel(t *testing.T) {
	// A write leaves the bus only while the bus drains writes; a write
	// queue of capacity 1 is full after one write, which starts the drain.
	l1 := NewController(testConfig("L1D"), 8, 1, 8)
	l1.Submit(transaction.Transaction{Type: transaction.Write, Address: 0x80})
	l1.Tick(0)

	// With no next level and no DRAM backend wired, a miss resolves
	// synchronously against MissLatency and is not left outstanding.
	if len(l1.mshr) != 0 {
		t.Fatalf("expected the miss to resolve with no next level, got %d outstanding", len(l1.mshr))
	}
	if l1.WriteAllocs != 1 {
		t.Fatalf("expected the write to be counted as a write-allocate")
	}
	// Ready at 0+MissLatency+HitLatency = 7.
	out := l1.bus.DrainOutgoing(7)
	if len(out) != 1 {
		t.Fatalf("expected the completed write-allocate to be outgoing by cycle 7, got %d", len(out))
	}
}

func TestDirtyEvictionEnqueuesWriteback(t *testing.T) {
	l2 := NewController(testConfig("L2"), 8, 8, 8)
	// Write queue of capacity 1: the lone write fills it, which starts
	// the bus's write drain so the write is serviced on the first Tick.
	l1 := NewController(testConfig("L1D"), 8, 1, 8)
	l1.SetNext(l2)

	// testConfig uses 4 sets / 2 ways. Warm both ways of set 0 dirty
	// directly (bypassing the MSHR, the way warmup-phase accesses do),
	// then drive a real miss to the same set through Submit/Tick so the
	// resulting eviction goes through the timing-accurate fill path.
	l1.WarmupAccess(0x00, true)
	l1.WarmupAccess(0x04, true)
	if l1.Writebacks != 0 {
		t.Fatalf("expected no writebacks from warmup fills, got %d", l1.Writebacks)
	}

	l1.Submit(transaction.Transaction{Type: transaction.Write, Address: 0x08})
	l1.Tick(0)
	l2.Tick(1) // l2 resolves its own miss synchronously (no next level) and
	// schedules its reply for cycle 1+MissLatency+HitLatency = 8.
	l1.Tick(8)

	if l1.Writebacks != 1 {
		t.Fatalf("expected the dirty eviction to be counted as a writeback, got %d", l1.Writebacks)
	}
	if len(l2.bus.WriteQueue) != 1 {
		t.Fatalf("expected one writeback queued for the next level, got %d", len(l2.bus.WriteQueue))
	}
}
