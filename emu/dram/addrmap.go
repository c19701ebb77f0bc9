// Package dram implements a bank/channel-level DDR-style DRAM model:
// per-bank command queues, FCFS/FRFCFS/FRRFCFS/ARRFCFS arbitration, FAW
// and refresh enforcement, and a handful of JEDEC-inspired address maps.
package dram

// AddrMap assigns channel/bank-group/bank/rank/row/column fields from a
// physical line address. The bit layouts below are simplified restatements
// of common commercial mappings (MOP, a Coffee-Lake-like map, and a
// Skylake-like map), expressed as (shift, bits) pairs rather than literal
// hardware bit indices.
type AddrMap int

const (
	MapMOP AddrMap = iota
	MapCoffeeLake
	MapSkylake
)

type field struct {
	shift uint
	bits  uint
}

type layout struct {
	channel, bankGroup, bank, rank, row, col field
}

var layouts = map[AddrMap]layout{
	MapMOP: {
		channel:   field{6, 1},
		bankGroup: field{7, 2},
		bank:      field{9, 2},
		rank:      field{11, 1},
		row:       field{12, 16},
		col:       field{28, 10},
	},
	MapCoffeeLake: {
		channel:   field{6, 1},
		bankGroup: field{13, 2},
		bank:      field{15, 2},
		rank:      field{17, 1},
		row:       field{18, 17},
		col:       field{7, 6},
	},
	MapSkylake: {
		channel:   field{7, 1},
		bankGroup: field{8, 2},
		bank:      field{10, 2},
		rank:      field{12, 1},
		row:       field{13, 17},
		col:       field{6, 1},
	},
}

// Address is the decoded location of one line in the DRAM array.
type Address struct {
	Channel, BankGroup, Bank, Rank, Row, Col int
}

func extract(addr uint64, f field) int {
	mask := uint64(1)<<f.bits - 1
	return int((addr >> f.shift) & mask)
}

// Decode maps a physical line address to its DRAM coordinates under m.
func Decode(m AddrMap, addr uint64) Address {
	l := layouts[m]
	return Address{
		Channel:   extract(addr, l.channel),
		BankGroup: extract(addr, l.bankGroup),
		Bank:      extract(addr, l.bank),
		Rank:      extract(addr, l.rank),
		Row:       extract(addr, l.row),
		Col:       extract(addr, l.col),
	}
}
