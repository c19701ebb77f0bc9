package dram

// CmdType enumerates the low-level DRAM commands a bank can be issued.
// Only CmdRead/CmdWrite/CmdReadPrecharge/CmdWritePrecharge ever retire a
// queued Request; CmdActivate and CmdPrecharge just move the bank's row
// state and leave the request in place for whatever it still needs.
type CmdType int

const (
	CmdActivate CmdType = iota
	CmdPrecharge
	CmdRead
	CmdWrite
	CmdReadPrecharge
	CmdWritePrecharge
	CmdRefresh
)

// Policy selects how a bank picks among its queued requests.
type Policy int

const (
	FCFS Policy = iota
	FRFCFS
	FRRFCFS
	ARRFCFS
)

// PagePolicy selects whether a bank leaves a row open after a CAS (OPEN,
// favoring row-buffer locality on a follow-up access to the same row) or
// self-closes it immediately (CLOSED, via the *Precharge command
// variants, trading locality for a row that is never left dangling
// open).
type PagePolicy int

const (
	PageOpen PagePolicy = iota
	PageClosed
)

// maxCASToOpenRowBeforePrecharge caps how long a row-buffer hit elsewhere
// in the queue may keep preempting the head request's own row before the
// head is forced through regardless; it is the starvation cap in the
// FRFCFS/FRRFCFS eligibility rule below.
const maxCASToOpenRowBeforePrecharge = 4

// Request is one queued access against a bank. What low-level command it
// needs next is decided at issue time from the bank's current row state,
// not fixed when the request is enqueued: a request queued while its
// target row happened to be open may still need a Precharge+Activate by
// the time the bank actually gets to it, if an intervening access to a
// different row was serviced first.
type Request struct {
	Addr     Address
	LineAddr uint64
	IsWrite  bool

	// neededPrecharge is set the first time this request's own handling
	// issues a Precharge (i.e. it found a different row open and had to
	// close it). A request that only ever needed an Activate (the bank
	// was already closed, not holding the wrong row) still counts as a
	// row-buffer hit when it finally retires.
	neededPrecharge bool
}

// Bank is one DRAM bank's request queue and open-row state.
type Bank struct {
	Policy Policy

	openRow         int
	rowOpen         bool
	numCASToOpenRow int

	Queue []*Request

	numWritesInQueue int
	writeDraining    bool

	ActOKCycle, PreOKCycle, CasOKCycle uint64

	Activates, Precharges, RowBufferHits, RowBufferMisses uint64
}

// NewBank builds an idle bank under the given arbitration policy.
func NewBank(p Policy) *Bank {
	return &Bank{Policy: p}
}

// Enqueue appends a new request to the bank's queue.
func (b *Bank) Enqueue(r Request) {
	b.Queue = append(b.Queue, &r)
	if r.IsWrite {
		b.numWritesInQueue++
	}
}

// Empty reports whether the bank has no queued work.
func (b *Bank) Empty() bool { return len(b.Queue) == 0 }

// candidateCmd reports the command the request at idx needs right now,
// given the bank's current row state and page policy.
func (b *Bank) candidateCmd(pp PagePolicy, idx int) CmdType {
	r := b.Queue[idx]
	if !b.rowOpen {
		return CmdActivate
	}
	if b.openRow != r.Addr.Row {
		return CmdPrecharge
	}
	if pp == PageClosed {
		if r.IsWrite {
			return CmdWritePrecharge
		}
		return CmdReadPrecharge
	}
	if r.IsWrite {
		return CmdWrite
	}
	return CmdRead
}

// selectFRFCFS picks the best candidate among the given absolute Queue
// indices (in FIFO order): the head if it is itself a row-buffer hit,
// otherwise a later hit is promoted ahead of it only when the head has
// no other entry still waiting on its own target row and the starvation
// cap has not been reached yet.
func (b *Bank) selectFRFCFS(indices []int) int {
	head := indices[0]
	if b.rowOpen && b.Queue[head].Addr.Row == b.openRow {
		return head
	}

	hit := -1
	for _, i := range indices[1:] {
		if b.rowOpen && b.Queue[i].Addr.Row == b.openRow {
			hit = i
			break
		}
	}
	if hit < 0 {
		return head
	}

	headHasPeer := false
	for _, i := range indices[1:] {
		if b.Queue[i].Addr.Row == b.Queue[head].Addr.Row {
			headHasPeer = true
			break
		}
	}
	if !headHasPeer && b.numCASToOpenRow < maxCASToOpenRowBeforePrecharge {
		return hit
	}
	return head
}

// SelectNext picks the index of the queued request the bank wants to act
// on this cycle, under its configured arbitration policy. Readiness
// against ActOKCycle/PreOKCycle/CasOKCycle and the channel-wide FAW cap
// is checked by the caller, which knows the current cycle.
func (b *Bank) SelectNext(now uint64) (int, bool) {
	if len(b.Queue) == 0 {
		return -1, false
	}

	switch b.Policy {
	case FCFS:
		return 0, true
	case FRFCFS:
		return b.selectFRFCFS(b.allIndices()), true
	case FRRFCFS:
		idx := b.selectFRFCFS(b.allIndices())
		if b.Queue[idx].IsWrite && b.rowOpen {
			for i := idx + 1; i < len(b.Queue); i++ {
				if !b.Queue[i].IsWrite && b.Queue[i].Addr.Row == b.openRow {
					return i, true
				}
			}
		}
		return idx, true
	case ARRFCFS:
		// Read/write phase separation: writes are issuable only while
		// write_draining is active, which the bank enters once every
		// queued request is a write and leaves as soon as a read is
		// enqueued.
		b.writeDraining = b.numWritesInQueue == len(b.Queue)
		var phase []int
		for i, r := range b.Queue {
			if r.IsWrite == b.writeDraining {
				phase = append(phase, i)
			}
		}
		if len(phase) == 0 {
			return -1, false
		}
		return b.selectFRFCFS(phase), true
	default:
		return 0, true
	}
}

func (b *Bank) allIndices() []int {
	idx := make([]int, len(b.Queue))
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// Issue applies cmdType against the request at idx. Activate and
// Precharge only move row state and leave the request queued; the CAS
// variants retire it and report whether it was a row-buffer hit (any
// request that never needed a Precharge of its own).
func (b *Bank) Issue(idx int, cmdType CmdType, now uint64) bool {
	r := b.Queue[idx]
	switch cmdType {
	case CmdActivate:
		b.openRow = r.Addr.Row
		b.rowOpen = true
		b.numCASToOpenRow = 0
		b.Activates++
		return false
	case CmdPrecharge:
		r.neededPrecharge = true
		b.rowOpen = false
		b.numCASToOpenRow = 0
		b.Precharges++
		return false
	case CmdRead, CmdWrite:
		hit := !r.neededPrecharge
		b.recordHit(hit)
		b.numCASToOpenRow++
		b.pop(idx)
		return hit
	case CmdReadPrecharge, CmdWritePrecharge:
		hit := !r.neededPrecharge
		b.recordHit(hit)
		b.rowOpen = false
		b.numCASToOpenRow = 0
		b.Precharges++
		b.pop(idx)
		return hit
	}
	return false
}

func (b *Bank) recordHit(hit bool) {
	if hit {
		b.RowBufferHits++
	} else {
		b.RowBufferMisses++
	}
}

func (b *Bank) pop(idx int) {
	r := b.Queue[idx]
	b.Queue = append(b.Queue[:idx], b.Queue[idx+1:]...)
	if r.IsWrite {
		b.numWritesInQueue--
	}
}
