// Package stats renders the simulator's final banner-delimited text
// report from a snapshot of counters gathered after a run completes. It
// has no access to live simulator state, which keeps it trivially
// testable as a pure function.
package stats

import (
	"fmt"
	"io"
)

// CoreStats is one core's retirement summary.
type CoreStats struct {
	CoreID  int
	Inst    uint64
	Cycles  uint64
	Stalls  uint64
}

func (c CoreStats) IPC() float64 {
	if c.Cycles == 0 {
		return 0
	}
	return float64(c.Inst) / float64(c.Cycles)
}

// CacheStats is one cache level's access summary.
type CacheStats struct {
	Name         string
	Accesses     uint64
	Misses       uint64
	Invalidates  uint64
	WriteAllocs  uint64
	Writebacks   uint64
	WriteBlocked uint64
	Instructions uint64 // denominator for APKI/MPKI, usually the core's retired count
}

func (c CacheStats) MissRate() float64 {
	if c.Accesses == 0 {
		return 0
	}
	return float64(c.Misses) / float64(c.Accesses)
}

func (c CacheStats) APKI() float64 {
	if c.Instructions == 0 {
		return 0
	}
	return 1000 * float64(c.Accesses) / float64(c.Instructions)
}

func (c CacheStats) MPKI() float64 {
	if c.Instructions == 0 {
		return 0
	}
	return 1000 * float64(c.Misses) / float64(c.Instructions)
}

// ChannelStats is one DRAM channel's scheduling summary.
type ChannelStats struct {
	ChannelID          int
	Reads, Writes      uint64
	Activates          uint64
	Precharges         uint64
	Refreshes          uint64
	DemandPrecharges   uint64
	RowBufferHitRate   float64
	WriteBlockedCycles uint64
}

// Report is the full snapshot handed to Write.
type Report struct {
	TotalCycles uint64
	Cores       []CoreStats
	Caches      []CacheStats
	Channels    []ChannelStats
}

// Write renders r in the fixed banner format: a section per component
// class, delimited by "====" lines, one row per instance.
func Write(w io.Writer, r Report) {
	fmt.Fprintf(w, "==== SIMULATION SUMMARY ====\n")
	fmt.Fprintf(w, "total cycles: %d\n\n", r.TotalCycles)

	fmt.Fprintf(w, "==== CORES ====\n")
	for _, c := range r.Cores {
		fmt.Fprintf(w, "core %-3d inst=%-10d cycles=%-10d ipc=%-8.4f stalls=%d\n",
			c.CoreID, c.Inst, c.Cycles, c.IPC(), c.Stalls)
	}

	fmt.Fprintf(w, "\n==== CACHES ====\n")
	for _, c := range r.Caches {
		fmt.Fprintf(w, "%-6s accesses=%-10d misses=%-10d miss_rate=%-7.4f apki=%-8.3f mpki=%-8.3f "+
			"invalidates=%-8d write_alloc=%-8d writebacks=%-8d write_blocked=%d\n",
			c.Name, c.Accesses, c.Misses, c.MissRate(), c.APKI(), c.MPKI(),
			c.Invalidates, c.WriteAllocs, c.Writebacks, c.WriteBlocked)
	}

	fmt.Fprintf(w, "\n==== DRAM ====\n")
	for _, ch := range r.Channels {
		fmt.Fprintf(w, "channel %-3d reads=%-10d writes=%-10d activates=%-10d precharges=%-10d "+
			"refreshes=%-6d demand_pre=%-8d row_hit_rate=%-7.4f write_blocked_cycles=%d\n",
			ch.ChannelID, ch.Reads, ch.Writes, ch.Activates, ch.Precharges,
			ch.Refreshes, ch.DemandPrecharges, ch.RowBufferHitRate, ch.WriteBlockedCycles)
	}
}
