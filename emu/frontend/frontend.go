// Package frontend implements the simplified in-order fetch/retire window
// that drives the memory hierarchy from a decoded trace: it is
// deliberately not a real out-of-order pipeline (no branch prediction, no
// functional execution), just enough machinery to issue the right
// Transactions in the right order and compute IPC.
package frontend

import (
	"fmt"
	"os"

	"github.com/suhaskvittal/frost/emu/cachecontrol"
	"github.com/suhaskvittal/frost/emu/trace"
	"github.com/suhaskvittal/frost/emu/transaction"
)

// DeadlockCycles bounds how long the oldest unretired instruction may
// sit without progress before the front end treats the run as stuck.
const DeadlockCycles = 500_000

// RobSize is the size of the in-flight instruction window; dispatch
// stalls once it fills.
const RobSize = 256

type stage int

const (
	stageFetch stage = iota
	stageITranslate
	stageIFetch
	stageDAccess
	stageRetire
)

// inst is one in-flight instruction. It is always referenced through a
// pointer so that pending-completion maps keyed by address can point at
// it directly without invalidation when the window slice is compacted.
type inst struct {
	rec   trace.Record
	stage stage

	iFetchDone    bool
	loadsPending  int
	storesPending int

	lastAdvance uint64
}

// Core is one front end's fetch/retire window plus its private L1I/L1D
// and the translation callback used for ITLB/DTLB lookups.
type Core struct {
	ID uint8

	reader *trace.Reader

	L1I, L1D *cachecontrol.Controller

	Translate func(t transaction.Transaction, isFetch bool) bool

	window []*inst
	eof    bool

	pendingIFetch map[uint64][]*inst
	pendingDAccess map[uint64][]*inst

	Retired uint64
	Cycles  uint64
	Stalls  uint64
}

// NewCore builds a front end bound to an already-open trace reader and
// this core's L1I/L1D controllers.
func NewCore(id uint8, reader *trace.Reader, l1i, l1d *cachecontrol.Controller) *Core {
	return &Core{
		ID:             id,
		reader:         reader,
		L1I:            l1i,
		L1D:            l1d,
		pendingIFetch:  make(map[uint64][]*inst),
		pendingDAccess: make(map[uint64][]*inst),
	}
}

// Done reports whether the trace is exhausted and every instruction has
// retired.
func (c *Core) Done() bool { return c.eof && len(c.window) == 0 }

// Tick attempts every pipeline stage once, in order, mirroring the
// original front end's choice to always attempt every stage rather than
// special-casing known-busy downstream state. The driver is responsible
// for calling NotifyIFetch/NotifyDAccess with whatever drained from this
// core's L1I/L1D outgoing queues before calling Tick.
func (c *Core) Tick(now uint64) {
	c.Cycles++
	c.fetch(now)
	for _, in := range c.window {
		c.translateIP(in, now)
	}
	for _, in := range c.window {
		c.iFetchAndAccess(in, now)
	}
	c.retire(now)
	c.checkDeadlock(now)
}

// NotifyIFetch is called by the driver for every transaction drained from
// this core's L1I outgoing queue, marking any instruction waiting on that
// line as fetched.
func (c *Core) NotifyIFetch(t transaction.Transaction, now uint64) {
	for _, in := range c.pendingIFetch[t.Address] {
		in.iFetchDone = true
		in.lastAdvance = now
	}
	delete(c.pendingIFetch, t.Address)
}

// NotifyDAccess is called by the driver for every data (non-translation)
// transaction drained from this core's L1D outgoing queue.
func (c *Core) NotifyDAccess(t transaction.Transaction, now uint64) {
	for _, in := range c.pendingDAccess[t.Address] {
		if t.Type == transaction.Write {
			in.storesPending--
		} else {
			in.loadsPending--
		}
		in.lastAdvance = now
	}
	delete(c.pendingDAccess, t.Address)
}

func (c *Core) fetch(now uint64) {
	if c.eof || len(c.window) >= RobSize {
		if len(c.window) >= RobSize {
			c.Stalls++
		}
		return
	}
	rec, err := c.reader.Next()
	if err != nil {
		c.eof = true
		return
	}
	in := &inst{
		rec:           rec,
		stage:         stageFetch,
		loadsPending:  len(rec.LoadAddrs),
		storesPending: len(rec.StoreAddrs),
		lastAdvance:   now,
	}
	if rec.HasInstNum {
		// Memsim traces carry no IP: skip straight to the memory-access
		// stage, there being nothing to fetch or translate as code.
		in.stage = stageDAccess
		in.iFetchDone = true
	}
	c.window = append(c.window, in)
}

func (c *Core) translateIP(in *inst, now uint64) {
	if in.stage != stageFetch {
		return
	}
	ref := transaction.Transaction{CoreID: c.ID, Type: transaction.Translation, Address: in.rec.IP >> 12}
	if c.Translate(ref, true) {
		in.stage = stageITranslate
		in.lastAdvance = now
	}
}

func (c *Core) iFetchAndAccess(in *inst, now uint64) {
	switch in.stage {
	case stageITranslate:
		line := in.rec.IP >> 6
		t := transaction.Transaction{CoreID: c.ID, Type: transaction.Read, Address: line, AddrIsIP: true}
		if c.L1I.Submit(t) {
			c.pendingIFetch[line] = append(c.pendingIFetch[line], in)
			in.stage = stageIFetch
			in.lastAdvance = now
		}
	case stageIFetch:
		if in.iFetchDone {
			in.stage = stageDAccess
			in.lastAdvance = now
		}
	case stageDAccess:
		c.issueAccesses(in, now)
	}
}

// issueAccesses submits the instruction's data accesses to L1D. Trace
// records already carry line addresses, so they are used as is.
func (c *Core) issueAccesses(in *inst, now uint64) {
	remaining := in.rec.LoadAddrs[:0]
	for _, addr := range in.rec.LoadAddrs {
		line := addr
		t := transaction.Transaction{CoreID: c.ID, Type: transaction.Read, Address: line}
		if c.L1D.Submit(t) {
			c.pendingDAccess[line] = append(c.pendingDAccess[line], in)
		} else {
			remaining = append(remaining, addr)
		}
	}
	in.rec.LoadAddrs = remaining

	remainingW := in.rec.StoreAddrs[:0]
	for _, addr := range in.rec.StoreAddrs {
		line := addr
		t := transaction.Transaction{CoreID: c.ID, Type: transaction.Write, Address: line}
		if c.L1D.Submit(t) {
			c.pendingDAccess[line] = append(c.pendingDAccess[line], in)
		} else {
			remainingW = append(remainingW, addr)
		}
	}
	in.rec.StoreAddrs = remainingW
}

// retire retires completed instructions from the head of the window in
// program order, stopping at the first one that is not yet complete.
func (c *Core) retire(now uint64) {
	n := 0
	for _, in := range c.window {
		if !(in.stage == stageDAccess && in.iFetchDone &&
			len(in.rec.LoadAddrs) == 0 && len(in.rec.StoreAddrs) == 0 &&
			in.loadsPending <= 0 && in.storesPending <= 0) {
			break
		}
		c.Retired++
		n++
	}
	c.window = c.window[n:]
}

func (c *Core) checkDeadlock(now uint64) {
	if len(c.window) == 0 {
		return
	}
	oldest := c.window[0]
	if now-oldest.lastAdvance > DeadlockCycles {
		fmt.Fprintf(os.Stderr, "deadlock: core %d stuck on instruction ip=%#x since cycle %d (now %d)\n",
			c.ID, oldest.rec.IP, oldest.lastAdvance, now)
		os.Exit(1)
	}
}

// IPC computes instructions retired per elapsed cycle.
func (c *Core) IPC() float64 {
	if c.Cycles == 0 {
		return 0
	}
	return float64(c.Retired) / float64(c.Cycles)
}
