package iobus

import (
	"testing"

	"github.com/suhaskvittal/frost/emu/transaction"
)

func TestWriteToReadForwarding(t *testing.T) {
	b := NewBus(4, 4, 4)

	if !b.AddIncoming(transaction.Transaction{Type: transaction.Write, Address: 0x100}) {
		t.Fatalf("write should be accepted")
	}
	if len(b.ReadQueue) != 0 {
		t.Fatalf("sanity: read queue should start empty")
	}

	// A read to the same address as a pending write is forwarded
	// immediately rather than occupying read-queue capacity.
	if !b.AddIncoming(transaction.Transaction{Type: transaction.Read, Address: 0x100}) {
		t.Fatalf("forwarded read should be accepted")
	}
	if len(b.ReadQueue) != 0 {
		t.Fatalf("forwarded read must not consume read-queue capacity, got %d entries", len(b.ReadQueue))
	}
}

func TestWriteDrainThreshold(t *testing.T) {
	b := NewBus(32, 32, 32)
	for i := 0; i < writeDrainThreshold; i++ {
		b.AddIncoming(transaction.Transaction{Type: transaction.Write, Address: uint64(i)})
	}
	if b.ShouldDrainWrites() {
		t.Fatalf("should not drain at exactly the threshold with reads/prefetch idle and queue not full")
	}

	b.AddIncoming(transaction.Transaction{Type: transaction.Write, Address: 0xff})
	if !b.ShouldDrainWrites() {
		t.Fatalf("should begin draining once pending writes exceed the threshold")
	}
}

func TestWriteCoalescing(t *testing.T) {
	b := NewBus(4, 4, 4)
	if !b.AddIncoming(transaction.Transaction{Type: transaction.Write, Address: 0x40}) {
		t.Fatalf("first write should be accepted")
	}
	if !b.AddIncoming(transaction.Transaction{Type: transaction.Write, Address: 0x40}) {
		t.Fatalf("coalesced write should be accepted")
	}
	if len(b.WriteQueue) != 1 {
		t.Fatalf("expected the second write to coalesce into the first, got %d queued", len(b.WriteQueue))
	}

	if _, ok := b.PopWrite(); !ok {
		t.Fatalf("expected a write to pop")
	}
	if _, ok := b.PopWrite(); ok {
		t.Fatalf("expected only one write to have been queued after coalescing")
	}
}

func TestPopWriteAvoidsWriteAfterReadHazard(t *testing.T) {
	b := NewBus(4, 4, 4)
	b.AddIncoming(transaction.Transaction{Type: transaction.Read, Address: 0x100})
	b.AddIncoming(transaction.Transaction{Type: transaction.Write, Address: 0x100})
	b.AddIncoming(transaction.Transaction{Type: transaction.Write, Address: 0x200})

	t2, ok := b.PopWrite()
	if !ok {
		t.Fatalf("expected a hazard-free write to be available")
	}
	if t2.Address != 0x200 {
		t.Fatalf("expected the write to 0x200 selected ahead of the hazarded write to 0x100, got %#x", t2.Address)
	}

	if _, ok := b.PopWrite(); ok {
		t.Fatalf("expected the remaining write to 0x100 to stay blocked while its read is outstanding")
	}

	b.PopRead()
	if _, ok := b.PopWrite(); !ok {
		t.Fatalf("expected the write to 0x100 to become selectable once its read retires")
	}
}

func TestOutgoingReadyCycleOrder(t *testing.T) {
	b := NewBus(4, 4, 4)
	b.AddOutgoing(transaction.Transaction{Address: 1}, 10)
	b.AddOutgoing(transaction.Transaction{Address: 2}, 5)

	if out := b.DrainOutgoing(4); len(out) != 0 {
		t.Fatalf("nothing should be ready before cycle 5")
	}
	out := b.DrainOutgoing(10)
	if len(out) != 2 {
		t.Fatalf("both entries should be ready by cycle 10, got %d", len(out))
	}
	if out[0].Address != 2 {
		t.Fatalf("expected the earlier-ready entry (addr 2) first, got %#x", out[0].Address)
	}
}
