// Package cachecontrol wires a cache.Array and an iobus.Bus together into a
// full cache level: MSHR-based miss handling, a writeback queue, write
// allocation, invalidate-on-hit, and a warmup fast path used while
// populating the hierarchy before measured simulation begins.
package cachecontrol

import (
	"fmt"
	"os"

	"github.com/suhaskvittal/frost/emu/cache"
	"github.com/suhaskvittal/frost/emu/iobus"
	"github.com/suhaskvittal/frost/emu/transaction"
)

// DRAMBackend is the minimal surface a Controller needs from the DRAM
// model when it sits directly above it (i.e. it is the LLC): enqueue a
// miss and later learn, via the driver draining DRAM's outgoing replies,
// that an address has completed.
type DRAMBackend interface {
	Enqueue(addr uint64, isWrite bool)
}

// DeadlockCycles is the number of ticks an MSHR entry may stay
// outstanding (counted from its creation, or from its forward to the next
// level) before the controller treats the simulation as deadlocked.
const DeadlockCycles = 500_000

// mshrState tracks an in-flight miss's lifecycle: NEW, FIRED, COMPLETED.
type mshrState int

const (
	mshrNew mshrState = iota
	mshrFired
	mshrCompleted
)

// mshrEntry is one outstanding miss, possibly shared by several coalesced
// transactions for the same line.
type mshrEntry struct {
	trans            transaction.Transaction
	isForWriteAlloc  bool
	state            mshrState
	cycleFired       uint64
}

// Config bundles the compile-time-equivalent parameters of one cache
// level, passed explicitly to NewController rather than baked in via
// per-level types.
type Config struct {
	Name        string
	Sets        int
	Ways        int
	Policy      cache.Policy
	MSHRSize    int
	HitLatency  uint64
	MissLatency uint64
	WriteAlloc  bool
	Seed        int64

	// InvalidateOnHit makes this level discard a line immediately after
	// serving it (on a probe hit or a completed fill) rather than
	// retaining residency; used for pass-through/coalescing levels that
	// never hold data of their own.
	InvalidateOnHit bool
	// NextIsInvalidateOnHit tells this level that its next level behaves
	// that way, so an evicted line must be handed to next via demand_fill
	// (propagating the dirty bit) instead of a normal writeback.
	NextIsInvalidateOnHit bool
	// NumRWPorts bounds how many port accesses this level services per
	// Tick.
	NumRWPorts int
}

// Controller is one level of the cache hierarchy.
type Controller struct {
	cfg   Config
	array *cache.Array
	bus   *iobus.Bus
	next  *Controller
	dram  DRAMBackend

	mshr []mshrEntry

	writebackQueue []transaction.Transaction

	cycle uint64

	Accesses, Misses, Invalidates, WriteAllocs, Writebacks, WriteBlocked uint64
}

// NewController builds a controller with its own tag array and bus.
func NewController(cfg Config, readCap, writeCap, prefetchCap int) *Controller {
	return &Controller{
		cfg:   cfg,
		array: cache.NewArray(cfg.Sets, cfg.Ways, cfg.Policy, cfg.Seed),
		bus:   iobus.NewBus(readCap, writeCap, prefetchCap),
	}
}

// SetNext wires the non-owning pointer to the next level down, built
// bottom-up by the caller so that lifetimes nest inside the owning Sim.
func (c *Controller) SetNext(next *Controller) { c.next = next }

// SetDRAM wires this controller (normally the LLC) directly to the DRAM
// model instead of another Controller.
func (c *Controller) SetDRAM(d DRAMBackend) { c.dram = d }

// Bus exposes the controller's input/output queues to its clients (a
// higher-level controller, or the front end for L1s).
func (c *Controller) Bus() *iobus.Bus { return c.bus }

// Submit is how an upstream client (front end or a higher-level cache)
// hands a transaction to this controller.
func (c *Controller) Submit(t transaction.Transaction) bool {
	return c.bus.AddIncoming(t)
}

// Tick runs this controller's per-cycle phases in order: completions
// (replies from the next level retire their MSHR entries), MSHR forward
// (retry one entry whose forward the next level refused), writeback
// drain, new port accesses, then the deadlock check. Mirrors the
// ordered-substep tick used throughout the driver loop.
func (c *Controller) Tick(now uint64) {
	c.cycle = now
	c.forwardCompletions(now)
	c.forwardMSHR(now)
	c.drainWriteback(now)
	c.servicePorts(now)
	c.checkDeadlock(now)
}

func (c *Controller) forwardCompletions(now uint64) {
	if c.next == nil {
		return
	}
	for _, t := range c.next.bus.DrainOutgoing(now) {
		c.markLoadAsDone(t, now)
	}
}

// forwardMSHR retries the forward of one MSHR entry whose earlier
// attempt was refused by a full next-level bus.
func (c *Controller) forwardMSHR(now uint64) {
	if c.next == nil {
		return
	}
	for i := range c.mshr {
		if c.mshr[i].state == mshrNew {
			fwd := c.mshr[i].trans.Clone()
			fwd.Type = transaction.Read
			if c.next.Submit(fwd) {
				c.markFired(fwd.Address, now)
			}
			return
		}
	}
}

func (c *Controller) drainWriteback(now uint64) {
	if c.next == nil || len(c.writebackQueue) == 0 {
		return
	}
	wb := c.writebackQueue[0]
	if c.next.Submit(wb) {
		c.writebackQueue = c.writebackQueue[1:]
	}
}

// servicePorts runs up to NumRWPorts port accesses this cycle, stopping
// early once total MSHR occupancy (in-flight misses plus queued
// writebacks) reaches NUM_MSHR: no new miss can be started without a
// free slot, so there is no point pulling another transaction off the
// bus only to have nowhere to put it.
func (c *Controller) servicePorts(now uint64) {
	for i := 0; i < c.cfg.NumRWPorts; i++ {
		if len(c.mshr)+len(c.writebackQueue) >= c.cfg.MSHRSize {
			return
		}
		if c.bus.ShouldDrainWrites() {
			if t, ok := c.bus.PopWrite(); ok {
				c.handleWrite(t, now)
				continue
			}
		}
		if t, ok := c.bus.PopRead(); ok {
			c.handleRead(t, now)
		}
	}
}

func (c *Controller) handleRead(t transaction.Transaction, now uint64) {
	c.Accesses++
	if c.array.Probe(t.Address) {
		c.bus.AddOutgoing(t, now+c.cfg.HitLatency)
		if c.cfg.InvalidateOnHit {
			c.Invalidate(t.Address)
		}
		return
	}
	c.handleMiss(t, now, false)
}

func (c *Controller) handleWrite(t transaction.Transaction, now uint64) {
	c.Accesses++
	if c.array.Probe(t.Address) {
		c.array.MarkDirty(t.Address)
		c.bus.AddOutgoing(t, now+c.cfg.HitLatency)
		return
	}
	if !c.cfg.WriteAlloc {
		c.bus.AddOutgoing(t, now+c.cfg.HitLatency)
		return
	}
	c.WriteAllocs++
	alloc := t
	alloc.Type = transaction.Read
	c.handleMiss(alloc, now, true)
}

// handleMiss either coalesces t into an existing MSHR entry for the same
// line, or allocates a new one and forwards a Read to the next level.
func (c *Controller) handleMiss(t transaction.Transaction, now uint64, writeAlloc bool) {
	c.Misses++
	for i := range c.mshr {
		if c.mshr[i].trans.Address == t.Address {
			c.mshr[i].trans.Merge(t)
			return
		}
	}
	entry := mshrEntry{trans: t, isForWriteAlloc: writeAlloc, state: mshrNew, cycleFired: now}
	c.mshr = append(c.mshr, entry)

	if c.dram != nil {
		c.dram.Enqueue(t.Address, writeAlloc)
		c.markFired(t.Address, now)
		return
	}
	if c.next == nil {
		c.markLoadAsDone(t, now+c.cfg.MissLatency)
		return
	}
	fwd := t.Clone()
	fwd.Type = transaction.Read
	if c.next.Submit(fwd) {
		c.markFired(t.Address, now)
	}
}

func (c *Controller) markFired(addr uint64, now uint64) {
	for i := range c.mshr {
		if c.mshr[i].trans.Address == addr && c.mshr[i].state == mshrNew {
			c.mshr[i].state = mshrFired
			c.mshr[i].cycleFired = now
		}
	}
}

// CompleteFromDRAM is invoked by the driver for every DRAM reply ready
// this cycle, retiring the matching MSHR entr(y/ies) the same way a
// normal next-level completion would.
func (c *Controller) CompleteFromDRAM(addr uint64, now uint64) {
	c.markLoadAsDone(transaction.Transaction{Type: transaction.Read, Address: addr}, now)
}

// markLoadAsDone retires the MSHR entry on address (handleMiss's own
// coalescing guarantees at most one), fills the array unless this level
// is INVALIDATE_ON_HIT, and forwards the transaction onward.
func (c *Controller) markLoadAsDone(t transaction.Transaction, now uint64) {
	kept := c.mshr[:0]
	var matched *mshrEntry
	for i := range c.mshr {
		if c.mshr[i].trans.Address == t.Address {
			e := c.mshr[i]
			matched = &e
			continue
		}
		kept = append(kept, c.mshr[i])
	}
	c.mshr = kept

	if matched == nil {
		// Unsolicited reply (e.g. a previously-serviced prefetch); still
		// worth installing.
		matched = &mshrEntry{trans: t}
	}

	if !c.cfg.InvalidateOnHit {
		refcnt := len(matched.trans.InstRefs)
		if refcnt == 0 {
			refcnt = 1
		}
		c.demandFill(t.Address, refcnt, matched.isForWriteAlloc, now)
	}

	if matched.isForWriteAlloc {
		c.array.MarkDirty(t.Address)
	}
	out := matched.trans
	out.IssueCycle = now
	c.bus.AddOutgoing(out, now+c.cfg.HitLatency)
}

// demandFill installs addr (seeding SRRIP insertion priority with
// numRefs, the summed coalesced-waiter refcount) and, if a victim was
// evicted, hands it to next: via a recursive demand_fill (propagating
// the dirty bit) when next is itself INVALIDATE_ON_HIT and so never
// accepts a plain writeback, or via a normal writeback transaction
// otherwise, queued locally if next's bus is momentarily full.
func (c *Controller) demandFill(addr uint64, numRefs int, dirty bool, now uint64) {
	evicted, didEvict := c.array.Fill(addr, dirty, numRefs)
	if !didEvict || c.next == nil {
		return
	}
	if c.cfg.NextIsInvalidateOnHit {
		c.next.demandFill(evicted.Address, 1, evicted.Dirty, now)
		return
	}
	if !evicted.Dirty {
		return
	}
	c.Writebacks++
	wb := transaction.Transaction{Type: transaction.Write, Address: evicted.Address, IssueCycle: now}
	if !c.next.Submit(wb) {
		c.writebackQueue = append(c.writebackQueue, wb)
	}
}

// WarmupAccess performs a fast-path install used while populating the
// hierarchy before measured simulation: on miss it installs the line
// immediately rather than going through the MSHR/next-level path.
func (c *Controller) WarmupAccess(addr uint64, write bool) {
	if c.array.Probe(addr) {
		if write {
			c.array.MarkDirty(addr)
		}
		return
	}
	if c.next != nil {
		c.next.WarmupAccess(addr, write)
	}
	evicted, didEvict := c.array.Fill(addr, write, 1)
	if didEvict && evicted.Dirty && c.next != nil && !c.cfg.NextIsInvalidateOnHit {
		c.next.WarmupAccess(evicted.Address, true)
	}
}

// checkDeadlock aborts the process if any MSHR entry has been outstanding
// for longer than DeadlockCycles since it was created or forwarded, printing a diagnostic the way the debug
// tracer would.
func (c *Controller) checkDeadlock(now uint64) {
	for _, e := range c.mshr {
		if now-e.cycleFired > DeadlockCycles {
			fmt.Fprintf(os.Stderr, "deadlock: %s stuck on address %#x since cycle %d (now %d)\n",
				c.cfg.Name, e.trans.Address, e.cycleFired, now)
			os.Exit(1)
		}
	}
}

// Invalidate removes addr if present, used by the invalidate-on-hit path
// of handleRead; counted separately from evictions.
func (c *Controller) Invalidate(addr uint64) {
	if _, ok := c.array.Invalidate(addr); ok {
		c.Invalidates++
	}
}

// MissRate is a convenience accessor for the stats renderer.
func (c *Controller) MissRate() float64 {
	if c.Accesses == 0 {
		return 0
	}
	return float64(c.Misses) / float64(c.Accesses)
}

// Name exposes the configured level name for stats/log prefixes.
func (c *Controller) Name() string { return c.cfg.Name }
