package dram

// DRAM is the top-level multi-channel memory: it owns one or more
// Channels and converts CPU-clock ticks into DRAM-clock ticks via a
// fractional "leap" accumulator, since DRAM typically runs at a
// different frequency than the core.
type DRAM struct {
	Channels []*Channel

	cpuCycle  uint64
	dramCycle uint64
	leap      float64
	ratio     float64 // DRAM cycles per CPU cycle
}

// NewDRAM builds a DRAM with numChannels channels, each with numBanks
// banks under policy, pagePolicy and addrMap. ratio is
// DRAM-cycles-per-CPU-cycle (e.g. 0.5 for a DRAM clocked at half the
// core frequency expressed in the core's tick units).
func NewDRAM(numChannels, numBanks int, policy Policy, pagePolicy PagePolicy, addrMap AddrMap, ratio float64) *DRAM {
	d := &DRAM{ratio: ratio}
	for i := 0; i < numChannels; i++ {
		d.Channels = append(d.Channels, NewChannelWithPagePolicy(numBanks, policy, addrMap, pagePolicy))
	}
	return d
}

// Tick advances the CPU-clock tick count by one and runs however many
// whole DRAM-clock ticks have accumulated since the last call.
func (d *DRAM) Tick() {
	d.cpuCycle++
	d.leap += d.ratio
	for d.leap >= 1.0 {
		d.leap -= 1.0
		d.dramCycle++
		for _, ch := range d.Channels {
			ch.Tick(d.dramCycle)
		}
	}
}

// Enqueue routes addr to its channel (selected by the address map) and
// queues the access.
func (d *DRAM) Enqueue(addr uint64, isWrite bool, addrMap AddrMap) {
	a := Decode(addrMap, addr)
	d.Channels[a.Channel%len(d.Channels)].Enqueue(addr, isWrite)
}

// DrainOutgoing pops every completed access across all channels whose
// DRAM-cycle ready time has been reached by the current DRAM cycle.
func (d *DRAM) DrainOutgoing() []OutgoingReply {
	var out []OutgoingReply
	for _, ch := range d.Channels {
		out = append(out, ch.DrainOutgoing(d.dramCycle)...)
	}
	return out
}

// DRAMCycle reports the current DRAM-clock cycle count.
func (d *DRAM) DRAMCycle() uint64 { return d.dramCycle }
