// Package trace decodes Champsim and Memsim binary instruction traces,
// transparently handling .xz and .gz compressed files.
package trace

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ulikunitz/xz"
)

// Register numbers used by the Champsim format's branch classification.
const (
	RSP = 6
	RCC = 25
	RIP = 26
)

// BranchType classifies a Champsim instruction's control-flow behavior
// from its register read/write footprint, following the original
// trace-derived heuristic: IP writes combined with SP/CC/other reads
// distinguish calls, returns, conditional and indirect branches.
type BranchType int

const (
	NotBranch BranchType = iota
	BranchDirectJump
	BranchIndirect
	BranchConditional
	BranchDirectCall
	BranchIndirectCall
	BranchReturn
)

// Record is one decoded instruction, format-agnostic. LoadAddrs and
// StoreAddrs are virtual line addresses (Memsim traces carry a single
// line per record, Champsim traces up to NUM_SRC/NUM_DST addresses).
type Record struct {
	InstNum     uint64
	HasInstNum  bool
	IP          uint64
	IsBranch    bool
	BranchTaken bool
	Branch      BranchType
	LoadAddrs   []uint64
	StoreAddrs  []uint64
}

// Format identifies which binary layout a trace file uses.
type Format int

const (
	Champsim Format = iota
	Memsim
)

const (
	champsimRecordSize = 8 + 1 + 1 + 2 + 4 + 8*2 + 8*4
	memsimRecordSize   = 5 + 1 + 4
)

// Reader decodes one trace file record at a time.
type Reader struct {
	r      io.Reader
	closer io.Closer
	format Format
	buf    []byte
}

// Open infers compression from the file extension (.xz, .gz, otherwise
// raw) and takes the record format from the format argument (Memsim, or
// Champsim for any other value).
func Open(path string, format Format) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("trace: open %s: %w", path, err)
	}

	var r io.Reader = bufio.NewReader(f)
	var closer io.Closer = f

	switch {
	case strings.HasSuffix(path, ".xz"):
		xr, err := xz.NewReader(r)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("trace: xz header %s: %w", path, err)
		}
		r = xr
	case strings.HasSuffix(path, ".gz"):
		gr, err := gzip.NewReader(r)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("trace: gzip header %s: %w", path, err)
		}
		r = gr
	}

	size := champsimRecordSize
	if format == Memsim {
		size = memsimRecordSize
	}
	return &Reader{r: r, closer: closer, format: format, buf: make([]byte, size)}, nil
}

// Close releases the underlying file.
func (r *Reader) Close() error { return r.closer.Close() }

// Next decodes the following record, returning io.EOF once the stream is
// exhausted.
func (r *Reader) Next() (Record, error) {
	if r.format == Memsim {
		return r.nextMemsim()
	}
	return r.nextChampsim()
}

func (r *Reader) nextChampsim() (Record, error) {
	if _, err := io.ReadFull(r.r, r.buf); err != nil {
		return Record{}, err
	}
	b := r.buf
	rec := Record{}
	rec.IP = binary.LittleEndian.Uint64(b[0:8])
	rec.IsBranch = b[8] != 0
	rec.BranchTaken = b[9] != 0

	dstRegs := b[10:12]
	srcRegs := b[12:16]
	off := 16
	dstMem := make([]uint64, 2)
	for i := 0; i < 2; i++ {
		dstMem[i] = binary.LittleEndian.Uint64(b[off : off+8])
		off += 8
	}
	srcMem := make([]uint64, 4)
	for i := 0; i < 4; i++ {
		srcMem[i] = binary.LittleEndian.Uint64(b[off : off+8])
		off += 8
	}

	for _, a := range srcMem {
		if a != 0 {
			rec.LoadAddrs = append(rec.LoadAddrs, a>>6)
		}
	}
	for _, a := range dstMem {
		if a != 0 {
			rec.StoreAddrs = append(rec.StoreAddrs, a>>6)
		}
	}

	if rec.IsBranch {
		var err error
		rec.Branch, err = classifyBranch(dstRegs, srcRegs)
		if err != nil {
			return Record{}, err
		}
	}
	return rec, nil
}

// classifyBranch follows the register read/write footprint heuristic. A
// branch that does not write IP is treated as conditional. Of those that
// write IP: writing and reading SP is a return; writing SP without reading
// it is a call (indirect if it also reads another register, direct
// otherwise); reading another register is an indirect jump; reading IP or
// the flags register is conditional; anything else is a direct jump. The
// returned error is always nil.
func classifyBranch(dstRegs, srcRegs []byte) (BranchType, error) {
	writesIP, writesSP := false, false
	for _, r := range dstRegs {
		switch r {
		case RIP:
			writesIP = true
		case RSP:
			writesSP = true
		}
	}
	if !writesIP {
		return BranchConditional, nil
	}

	readsSP, readsIP, readsCC, readsOther := false, false, false, false
	for _, r := range srcRegs {
		switch r {
		case RSP:
			readsSP = true
		case RIP:
			readsIP = true
		case RCC:
			readsCC = true
		case 0:
			// unused source slot
		default:
			readsOther = true
		}
	}

	switch {
	case writesSP && readsSP:
		return BranchReturn, nil
	case writesSP:
		if readsOther {
			return BranchIndirectCall, nil
		}
		return BranchDirectCall, nil
	case readsOther:
		return BranchIndirect, nil
	case readsIP || readsCC:
		return BranchConditional, nil
	default:
		return BranchDirectJump, nil
	}
}

func (r *Reader) nextMemsim() (Record, error) {
	if _, err := io.ReadFull(r.r, r.buf); err != nil {
		return Record{}, err
	}
	b := r.buf
	var instNum uint64
	for i := 0; i < 5; i++ {
		instNum |= uint64(b[i]) << (8 * i)
	}
	isWrite := b[5] != 0
	addr := binary.LittleEndian.Uint32(b[6:10])

	rec := Record{InstNum: instNum, HasInstNum: true}
	if isWrite {
		rec.StoreAddrs = []uint64{uint64(addr)}
	} else {
		rec.LoadAddrs = []uint64{uint64(addr)}
	}
	return rec, nil
}
