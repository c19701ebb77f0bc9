// Package iobus implements the bounded request queues and outgoing
// ready-cycle priority queue that sit between every pair of adjacent
// levels in the memory hierarchy.
package iobus

import (
	"container/heap"

	"github.com/suhaskvittal/frost/emu/transaction"
)

// writeDrainThreshold is the pending-write count above which the bus
// starts preferring write-queue drains over new reads, provided the read
// and prefetch queues are both empty (or the write queue itself is full).
const writeDrainThreshold = 8

type outgoingItem struct {
	trans      transaction.Transaction
	readyCycle uint64
	seq        uint64
}

type outgoingHeap []outgoingItem

func (h outgoingHeap) Len() int { return len(h) }
func (h outgoingHeap) Less(i, j int) bool {
	if h[i].readyCycle != h[j].readyCycle {
		return h[i].readyCycle < h[j].readyCycle
	}
	return h[i].seq < h[j].seq
}
func (h outgoingHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *outgoingHeap) Push(x any)        { *h = append(*h, x.(outgoingItem)) }
func (h *outgoingHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Bus is the queue set owned by one cache/DRAM controller's input side.
type Bus struct {
	ReadQueue     []transaction.Transaction
	WriteQueue    []transaction.Transaction
	PrefetchQueue []transaction.Transaction

	readCap     int
	writeCap    int
	prefetchCap int

	outgoing  outgoingHeap
	outSeq    uint64
	draining  bool

	pendingReads  map[uint64]int
	pendingWrites map[uint64]int
}

// NewBus constructs a Bus with the given queue capacities.
func NewBus(readCap, writeCap, prefetchCap int) *Bus {
	b := &Bus{
		readCap:       readCap,
		writeCap:      writeCap,
		prefetchCap:   prefetchCap,
		pendingReads:  make(map[uint64]int),
		pendingWrites: make(map[uint64]int),
	}
	heap.Init(&b.outgoing)
	return b
}

// AddIncoming enqueues t on the appropriate input FIFO, applying
// write-to-read forwarding: a read for an address with an outstanding
// write is not queued but answered by forwarding, placed straight on the
// outgoing queue and visible at the consumer's next DrainOutgoing. It
// reports whether the transaction was accepted (false means the relevant
// queue was full and the caller must retry later).
func (b *Bus) AddIncoming(t transaction.Transaction) bool {
	switch t.Type {
	case transaction.Write:
		if b.pendingWrites[t.Address] > 0 {
			// Write coalescing: an outstanding write to this address
			// already covers it, so this one merges in instead of
			// occupying another write-queue slot.
			return true
		}
		if len(b.WriteQueue) >= b.writeCap {
			return false
		}
		b.WriteQueue = append(b.WriteQueue, t)
		b.pendingWrites[t.Address]++
		return true
	case transaction.Prefetch:
		if len(b.PrefetchQueue) >= b.prefetchCap {
			return false
		}
		b.PrefetchQueue = append(b.PrefetchQueue, t)
		return true
	default: // Read, Translation
		if b.pendingWrites[t.Address] > 0 {
			// Forwarded: answered from the outgoing queue without
			// consuming read queue capacity, mirroring a store-to-load hit.
			b.AddOutgoing(t, 0)
			return true
		}
		if len(b.ReadQueue) >= b.readCap {
			return false
		}
		b.ReadQueue = append(b.ReadQueue, t)
		b.pendingReads[t.Address]++
		return true
	}
}

// ShouldDrainWrites reports whether the bus should prefer servicing the
// write queue this cycle over reads/prefetches.
func (b *Bus) ShouldDrainWrites() bool {
	if b.draining {
		return len(b.WriteQueue) > 0
	}
	full := len(b.WriteQueue) >= b.writeCap
	idle := len(b.ReadQueue) == 0 && len(b.PrefetchQueue) == 0
	if full || (idle && len(b.WriteQueue) > writeDrainThreshold) {
		b.draining = len(b.WriteQueue) > 0
		return b.draining
	}
	return false
}

// PopWrite removes and returns the oldest write whose address has no
// outstanding read, avoiding a write-after-read hazard (a write must never
// retire ahead of an earlier read still in flight to the same address). It
// reports false if the queue is empty or every queued write is currently
// hazarded.
func (b *Bus) PopWrite() (transaction.Transaction, bool) {
	if len(b.WriteQueue) == 0 {
		b.draining = false
		return transaction.Transaction{}, false
	}
	idx := -1
	for i, w := range b.WriteQueue {
		if b.pendingReads[w.Address] == 0 {
			idx = i
			break
		}
	}
	if idx < 0 {
		return transaction.Transaction{}, false
	}
	t := b.WriteQueue[idx]
	b.WriteQueue = append(b.WriteQueue[:idx], b.WriteQueue[idx+1:]...)
	b.pendingWrites[t.Address]--
	if b.pendingWrites[t.Address] <= 0 {
		delete(b.pendingWrites, t.Address)
	}
	if len(b.WriteQueue) == 0 {
		b.draining = false
	}
	return t, true
}

// PopRead removes and returns the oldest read, preferring it over
// prefetch; returns false if both are empty.
func (b *Bus) PopRead() (transaction.Transaction, bool) {
	if len(b.ReadQueue) > 0 {
		t := b.ReadQueue[0]
		b.ReadQueue = b.ReadQueue[1:]
		b.pendingReads[t.Address]--
		if b.pendingReads[t.Address] <= 0 {
			delete(b.pendingReads, t.Address)
		}
		return t, true
	}
	if len(b.PrefetchQueue) > 0 {
		t := b.PrefetchQueue[0]
		b.PrefetchQueue = b.PrefetchQueue[1:]
		return t, true
	}
	return transaction.Transaction{}, false
}

// PendingReads reports how many outstanding reads target addr.
func (b *Bus) PendingReads(addr uint64) int { return b.pendingReads[addr] }

// AddOutgoing schedules t to become visible to the consumer at readyCycle.
func (b *Bus) AddOutgoing(t transaction.Transaction, readyCycle uint64) {
	heap.Push(&b.outgoing, outgoingItem{trans: t, readyCycle: readyCycle, seq: b.outSeq})
	b.outSeq++
}

// DrainOutgoing pops every outgoing transaction whose readyCycle has
// arrived (<= now), in ready-cycle then FIFO order.
func (b *Bus) DrainOutgoing(now uint64) []transaction.Transaction {
	var out []transaction.Transaction
	for b.outgoing.Len() > 0 && b.outgoing[0].readyCycle <= now {
		item := heap.Pop(&b.outgoing).(outgoingItem)
		out = append(out, item.trans)
	}
	return out
}

// OutgoingLen reports how many transactions are still in flight.
func (b *Bus) OutgoingLen() int { return b.outgoing.Len() }

// Empty reports whether every queue (incoming and outgoing) is empty.
func (b *Bus) Empty() bool {
	return len(b.ReadQueue) == 0 && len(b.WriteQueue) == 0 && len(b.PrefetchQueue) == 0 && b.outgoing.Len() == 0
}
