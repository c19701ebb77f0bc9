package dram

import "testing"

func TestFAWLimitsActivatesInWindow(t *testing.T) {
	ch := NewChannel(16, FCFS, MapSkylake)
	ch.Timing.TFAW = 100

	// Enqueue five accesses that each land on a different bank so every
	// one of them needs its own Activate; the fifth Activate must be
	// blocked until the first ages out of the FAW window.
	for i := 0; i < 5; i++ {
		addr := uint64(i) << 8 // Skylake: bank group at bits 8-9, bank at bits 10-11
		ch.Enqueue(addr, false)
	}

	activates := 0
	for cycle := uint64(1); cycle <= 20; cycle++ {
		before := countActivates(ch)
		ch.Tick(cycle)
		after := countActivates(ch)
		if after > before {
			activates++
		}
	}
	if activates > 4 {
		t.Fatalf("FAW should allow at most 4 activates within the window, observed %d", activates)
	}
}

func countActivates(ch *Channel) uint64 {
	var n uint64
	for _, b := range ch.Banks {
		n += b.Activates
	}
	return n
}

func TestRowBufferHitTracked(t *testing.T) {
	b := NewBank(FRFCFS)
	b.Enqueue(Request{Addr: Address{Row: 3}})
	b.Enqueue(Request{Addr: Address{Row: 3}})

	idx, ok := b.SelectNext(0)
	if !ok {
		t.Fatalf("expected a candidate on a fresh bank")
	}
	if cmd := b.candidateCmd(PageOpen, idx); cmd != CmdActivate {
		t.Fatalf("expected a cold bank to need an Activate first, got %v", cmd)
	}
	b.Issue(idx, CmdActivate, 0)

	idx, _ = b.SelectNext(0)
	if cmd := b.candidateCmd(PageOpen, idx); cmd != CmdRead {
		t.Fatalf("expected a plain Read once the row is open, got %v", cmd)
	}
	hit := b.Issue(idx, CmdRead, 1)
	if !hit {
		t.Fatalf("expected the Read following its own Activate to the same row to be a row-buffer hit")
	}
	if b.RowBufferHits != 1 {
		t.Fatalf("expected one recorded row-buffer hit, got %d", b.RowBufferHits)
	}
}

// TestRowSwitchIssuesPrecharge drives a channel through exactly the
// scenario in which two accesses hit an already-open row and a third
// needs a different row on the same bank: the implementation must issue
// a real Precharge before the row switch, and only the first two
// accesses should count as row-buffer hits.
func TestRowSwitchIssuesPrecharge(t *testing.T) {
	ch := NewChannel(1, FCFS, MapSkylake)

	rowShift := layouts[MapSkylake].row.shift
	colBits := layouts[MapSkylake].col.bits
	addrA := uint64(5) << rowShift
	addrB := addrA | (uint64(1) << colBits)
	addrC := uint64(6) << rowShift

	ch.Enqueue(addrA, false)
	ch.Enqueue(addrB, false)
	ch.Enqueue(addrC, false)

	b := ch.Banks[0]
	for cycle := uint64(1); cycle <= 300 && len(b.Queue) > 0; cycle++ {
		ch.Tick(cycle)
	}

	if b.Precharges == 0 {
		t.Fatalf("expected a row switch from row 5 to row 6 to issue a Precharge")
	}
	if b.RowBufferHits != 2 {
		t.Fatalf("expected exactly 2 row-buffer hits (A and B), got %d", b.RowBufferHits)
	}
	if b.RowBufferMisses != 1 {
		t.Fatalf("expected exactly 1 row-buffer miss (C, after the row switch), got %d", b.RowBufferMisses)
	}
}
