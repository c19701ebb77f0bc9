// Package core assembles every other package into the runnable
// simulator: it owns the DRAM, the shared LLC, the per-core L1I/L2/L1D
// controllers, the OS (translation hardware) and the front ends, and
// drives them all through the per-cycle tick loop.
package core

import (
	"github.com/suhaskvittal/frost/emu/cachecontrol"
	"github.com/suhaskvittal/frost/emu/dram"
	"github.com/suhaskvittal/frost/emu/frontend"
	"github.com/suhaskvittal/frost/emu/os"
	"github.com/suhaskvittal/frost/emu/stats"
	"github.com/suhaskvittal/frost/emu/trace"
	"github.com/suhaskvittal/frost/emu/transaction"
)

// CacheGeometry configures one cache level's array/queue sizing, shared
// across L1I, L1D, L2 and the LLC via Config below.
type CacheGeometry struct {
	Sets, Ways                     int
	MSHRSize                       int
	HitLatency, MissLatency        uint64
	ReadCap, WriteCap, PrefetchCap int
	NumRWPorts                     int
}

// Config bundles every compile-time-equivalent simulator parameter,
// threaded explicitly through NewSim rather than read from globals.
type Config struct {
	NumCores int

	L1I, L1D, L2, LLC CacheGeometry

	DRAMChannels, DRAMBanksPerChannel int
	DRAMPolicy                       dram.Policy
	DRAMPagePolicy                   dram.PagePolicy
	DRAMAddrMap                      dram.AddrMap
	DRAMClockRatio                   float64

	FramesPerCore int
	Seed          int64
}

// Sim is the fully wired simulator: every component named in the system
// overview lives here, owned bottom-up (DRAM first, then LLC, then
// per-core levels, then the front ends) so that nothing outlives what it
// depends on.
type Sim struct {
	cfg Config

	DRAM *dram.DRAM
	LLC  *cachecontrol.Controller
	OS   *os.OS

	l2s  []*cachecontrol.Controller
	l1is []*cachecontrol.Controller
	l1ds []*cachecontrol.Controller

	Cores []*frontend.Core

	GLCycle uint64

	priority int
}

func geomCfg(name string, g CacheGeometry, policySeed int64) cachecontrol.Config {
	return cachecontrol.Config{
		Name:        name,
		Sets:        g.Sets,
		Ways:        g.Ways,
		Policy:      0, // LRU; callers needing SRRIP/RAND build their own geometry variant
		MSHRSize:    g.MSHRSize,
		HitLatency:  g.HitLatency,
		MissLatency: g.MissLatency,
		WriteAlloc:  true,
		NumRWPorts:  g.NumRWPorts,
		Seed:        policySeed,
	}
}

// NewSim builds the full hierarchy for cfg.NumCores cores reading from
// the given per-core trace readers, wiring DRAM -> LLC -> per-core L2 ->
// per-core L1I/L1D -> front end, and OS translation hardware alongside.
func NewSim(cfg Config, readers []*trace.Reader) *Sim {
	s := &Sim{cfg: cfg}

	s.DRAM = dram.NewDRAM(cfg.DRAMChannels, cfg.DRAMBanksPerChannel, cfg.DRAMPolicy, cfg.DRAMPagePolicy, cfg.DRAMAddrMap, cfg.DRAMClockRatio)

	s.LLC = cachecontrol.NewController(geomCfg("LLC", cfg.LLC, cfg.Seed), cfg.LLC.ReadCap, cfg.LLC.WriteCap, cfg.LLC.PrefetchCap)
	s.LLC.SetDRAM(dramAdapter{s.DRAM, cfg.DRAMAddrMap})

	for i := 0; i < cfg.NumCores; i++ {
		l2 := cachecontrol.NewController(geomCfg("L2", cfg.L2, cfg.Seed+int64(i)), cfg.L2.ReadCap, cfg.L2.WriteCap, cfg.L2.PrefetchCap)
		l2.SetNext(s.LLC)

		l1i := cachecontrol.NewController(geomCfg("L1I", cfg.L1I, cfg.Seed+int64(i)+100), cfg.L1I.ReadCap, cfg.L1I.WriteCap, cfg.L1I.PrefetchCap)
		l1i.SetNext(l2)
		l1d := cachecontrol.NewController(geomCfg("L1D", cfg.L1D, cfg.Seed+int64(i)+200), cfg.L1D.ReadCap, cfg.L1D.WriteCap, cfg.L1D.PrefetchCap)
		l1d.SetNext(l2)

		s.l2s = append(s.l2s, l2)
		s.l1is = append(s.l1is, l1i)
		s.l1ds = append(s.l1ds, l1d)
	}

	l1dFor := func(i int) *cachecontrol.Controller { return s.l1ds[i] }
	s.OS = os.NewOS(cfg.NumCores, cfg.FramesPerCore, l1dFor, cfg.Seed+900)

	for i := 0; i < cfg.NumCores; i++ {
		fc := frontend.NewCore(uint8(i), readers[i], s.l1is[i], s.l1ds[i])
		idx := i
		fc.Translate = func(t transaction.Transaction, isFetch bool) bool {
			return s.OS.Translate(idx, t, isFetch)
		}
		s.Cores = append(s.Cores, fc)
	}

	return s
}

type dramAdapter struct {
	d *dram.DRAM
	m dram.AddrMap
}

func (a dramAdapter) Enqueue(addr uint64, isWrite bool) { a.d.Enqueue(addr, isWrite, a.m) }

// Tick advances the whole simulator by one cycle in the fixed order:
// DRAM, then LLC, then OS (translation hardware), then DRAM's outgoing
// replies are drained and handed to the LLC as completions, then each
// core in a rotating priority order, finally the global cycle counter.
func (s *Sim) Tick() {
	s.DRAM.Tick()
	s.LLC.Tick(s.GLCycle)
	s.OS.Tick(s.GLCycle)

	for _, reply := range s.DRAM.DrainOutgoing() {
		s.LLC.CompleteFromDRAM(reply.LineAddr, s.GLCycle)
	}

	n := len(s.Cores)
	for i := 0; i < n; i++ {
		idx := (s.priority + i) % n
		s.l2s[idx].Tick(s.GLCycle)
		s.l1is[idx].Tick(s.GLCycle)
		s.l1ds[idx].Tick(s.GLCycle)

		for _, t := range s.l1is[idx].Bus().DrainOutgoing(s.GLCycle) {
			s.Cores[idx].NotifyIFetch(t, s.GLCycle)
		}
		for _, t := range s.l1ds[idx].Bus().DrainOutgoing(s.GLCycle) {
			if t.Type == transaction.Translation {
				s.OS.HandleL1DOutgoing(idx, t)
			} else {
				s.Cores[idx].NotifyDAccess(t, s.GLCycle)
			}
		}

		s.Cores[idx].Tick(s.GLCycle)
	}
	s.priority = (s.priority + 1) % n

	s.GLCycle++
}

// AllDone reports whether every core has exhausted its trace and
// retired every in-flight instruction.
func (s *Sim) AllDone() bool {
	for _, c := range s.Cores {
		if !c.Done() {
			return false
		}
	}
	return true
}

// Report snapshots every counter the stats package knows how to render.
func (s *Sim) Report() stats.Report {
	r := stats.Report{TotalCycles: s.GLCycle}
	for i, c := range s.Cores {
		r.Cores = append(r.Cores, stats.CoreStats{CoreID: i, Inst: c.Retired, Cycles: c.Cycles, Stalls: c.Stalls})
	}
	for i, c := range s.Cores {
		for _, ctrl := range []*cachecontrol.Controller{s.l1is[i], s.l1ds[i], s.l2s[i]} {
			r.Caches = append(r.Caches, stats.CacheStats{
				Name:         ctrl.Name(),
				Accesses:     ctrl.Accesses,
				Misses:       ctrl.Misses,
				Invalidates:  ctrl.Invalidates,
				WriteAllocs:  ctrl.WriteAllocs,
				Writebacks:   ctrl.Writebacks,
				WriteBlocked: ctrl.WriteBlocked,
				Instructions: c.Retired,
			})
		}
	}
	r.Caches = append(r.Caches, stats.CacheStats{
		Name:         s.LLC.Name(),
		Accesses:     s.LLC.Accesses,
		Misses:       s.LLC.Misses,
		Invalidates:  s.LLC.Invalidates,
		WriteAllocs:  s.LLC.WriteAllocs,
		Writebacks:   s.LLC.Writebacks,
		WriteBlocked: s.LLC.WriteBlocked,
	})
	for i, ch := range s.DRAM.Channels {
		r.Channels = append(r.Channels, stats.ChannelStats{
			ChannelID:        i,
			Reads:            ch.Reads,
			Writes:           ch.Writes,
			Activates:        ch.Activates,
			Precharges:       ch.Precharges,
			Refreshes:        ch.Refreshes,
			DemandPrecharges: ch.DemandPrecharges,
			RowBufferHitRate: ch.RowBufferHitRate(),
		})
	}
	return r
}
