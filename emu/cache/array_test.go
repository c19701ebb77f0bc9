package cache

import "testing"

func TestLRUEviction(t *testing.T) {
	a := NewArray(1, 2, LRU, 1)

	if _, evicted := a.Fill(0x10, false, 1); evicted {
		t.Fatalf("unexpected eviction filling an empty set")
	}
	if _, evicted := a.Fill(0x20, false, 1); evicted {
		t.Fatalf("unexpected eviction filling second way")
	}
	if !a.Probe(0x10) {
		t.Fatalf("expected 0x10 resident")
	}

	// 0x10 was just re-probed (now more recent), so 0x20 is the LRU
	// victim on the next fill.
	old, evicted := a.Fill(0x30, false, 1)
	if !evicted {
		t.Fatalf("expected an eviction once the set is full")
	}
	if old.Address != 0x20 {
		t.Fatalf("expected 0x20 evicted, got %#x", old.Address)
	}
	if !a.Probe(0x10) || !a.Probe(0x30) {
		t.Fatalf("expected 0x10 and 0x30 resident after eviction")
	}
	if a.Probe(0x20) {
		t.Fatalf("0x20 should have been evicted")
	}
}

func TestPerfectNeverEvicts(t *testing.T) {
	a := NewArray(1, 1, PERFECT, 1)
	if !a.Probe(0x42) {
		t.Fatalf("PERFECT policy should always hit")
	}
	if _, evicted := a.Fill(0x99, false, 1); evicted {
		t.Fatalf("PERFECT policy should never evict")
	}
}

func TestSRRIPInsertionPriority(t *testing.T) {
	a := NewArray(1, 2, SRRIP, 1)
	a.Fill(0x1, false, 1) // single coalesced waiter: RRPV = 1
	a.Fill(0x2, false, 4) // multiple coalesced waiters: RRPV = SRRIPMax

	set := a.data[0]
	if set[0].RRPV != 1 {
		t.Fatalf("expected a single-ref fill to install at RRPV 1, got %d", set[0].RRPV)
	}
	if set[1].RRPV != SRRIPMax {
		t.Fatalf("expected a multi-ref fill to install at RRPV SRRIPMax, got %d", set[1].RRPV)
	}
}

func TestSRRIPVictimIsSmallestRRPVAfterAging(t *testing.T) {
	a := NewArray(1, 2, SRRIP, 1)
	a.Fill(0x1, false, 1)
	a.Fill(0x2, false, 1)

	// Both entries install at RRPV 1; the next fill must age the whole
	// set down to 0 (decrementing by the current minimum) before picking
	// the victim at that new minimum.
	old, evicted := a.Fill(0x3, false, 1)
	if !evicted {
		t.Fatalf("expected SRRIP to choose a victim once the set is full")
	}
	if old.Address != 0x1 {
		t.Fatalf("expected 0x1 (first entry at the aged minimum) evicted, got %#x", old.Address)
	}
}

func TestSRRIPHitProtectsFromEviction(t *testing.T) {
	a := NewArray(1, 2, SRRIP, 1)
	a.Fill(0x1, false, 1)
	a.Fill(0x2, false, 1)
	a.Probe(0x1) // promotes 0x1's RRPV to SRRIPMax, protecting it

	old, evicted := a.Fill(0x3, false, 1)
	if !evicted {
		t.Fatalf("expected an eviction once the set is full")
	}
	if old.Address != 0x2 {
		t.Fatalf("expected the un-promoted entry 0x2 evicted, got %#x", old.Address)
	}
}

func TestInvalidate(t *testing.T) {
	a := NewArray(1, 2, LRU, 1)
	a.Fill(0x10, true, 1)
	old, ok := a.Invalidate(0x10)
	if !ok || !old.Dirty {
		t.Fatalf("expected to invalidate a dirty resident entry")
	}
	if a.Probe(0x10) {
		t.Fatalf("0x10 should no longer be resident")
	}
}
