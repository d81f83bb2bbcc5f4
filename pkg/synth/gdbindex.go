package synth

import (
	"sort"
	"unicode"

	"github.com/synthlink/sve/pkg/obj"
)

const (
	gdbCuEntrySize      = 16
	gdbAddressEntrySize = 20
	gdbSymTabEntrySize  = 8
)

// gdbHash is the .gdb_index string hash for versions 5-7 (case-folding
// DJB-style), per the format's own specification and the teacher
// corpus's GdbIndexSection::hash.
func gdbHash(s string) uint32 {
	var r uint32
	for _, c := range []byte(s) {
		r = r*67 + uint32(unicode.ToLower(rune(c))) - 113
	}
	return r
}

type gdbCuEntry struct {
	offset uint64
	length uint64
}

type gdbAddrEntry struct {
	sec     obj.Addressable
	low     uint64
	high    uint64
	cuIndex uint32
}

type gdbSymbol struct {
	name          string
	hash          uint32
	nameOffset    uint32
	cuVectorIndex int
}

// GdbIndexSection is .gdb_index (spec.md §4.13), version 7. Compile-unit
// list, address-area entries and pubnames/pubtypes pairs are handed in
// by the (out-of-scope) input-file facade's DWARF reader — parsing raw
// .debug_info/.debug_gnu_pubnames bytes is not this engine's job, only
// assembling the already-decoded pieces into the on-disk index is.
type GdbIndexSection struct {
	Base

	cus       []gdbCuEntry
	addrs     []gdbAddrEntry
	bySymbol  map[string]*gdbSymbol
	symOrder  []*gdbSymbol
	cuVectors [][]uint32

	stringPool *StrtabSection

	cuListOffset       uint64
	cuTypesOffset      uint64
	symTabOffset       uint64
	constantPoolOffset uint64
	stringPoolOffset   uint64

	capacity        int
	slots           []*gdbSymbol
	cuVectorOffsets []uint64
	cuVectorsSize   uint64
}

func NewGdbIndexSection() *GdbIndexSection {
	return &GdbIndexSection{
		Base:       NewBase(".gdb_index", 1 /* SHT_PROGBITS */, 0, 1, 0),
		bySymbol:   map[string]*gdbSymbol{},
		stringPool: NewStrtabSection(".gdb_index.strings", true),
	}
}

// AddCompileUnit records one CU's (offset, length) pair, offset relative
// to the .debug_info input section's place in the output, and returns
// the CU index later address-area entries should reference.
func (g *GdbIndexSection) AddCompileUnit(offset, length uint64) int {
	g.cus = append(g.cus, gdbCuEntry{offset: offset, length: length})
	return len(g.cus) - 1
}

func (g *GdbIndexSection) AddAddressArea(sec obj.Addressable, low, high uint64, cuIndex int) {
	g.addrs = append(g.addrs, gdbAddrEntry{sec: sec, low: low, high: high, cuIndex: uint32(cuIndex)})
}

// AddPubEntry registers one .debug_gnu_pubnames/pubtypes entry, per
// spec.md §4.13: names are deduplicated by a hash table, and each name
// accumulates a set of (descriptor<<24)|cu_index values.
func (g *GdbIndexSection) AddPubEntry(name string, descriptor uint8, cuIndex int) {
	sym, ok := g.bySymbol[name]
	if !ok {
		sym = &gdbSymbol{name: name, hash: gdbHash(name), cuVectorIndex: len(g.cuVectors)}
		g.bySymbol[name] = sym
		g.symOrder = append(g.symOrder, sym)
		g.cuVectors = append(g.cuVectors, nil)
	}
	val := uint32(descriptor)<<24 | uint32(cuIndex)
	vec := g.cuVectors[sym.cuVectorIndex]
	for _, v := range vec {
		if v == val {
			return
		}
	}
	vec = append(vec, val)
	sort.Slice(vec, func(i, j int) bool { return vec[i] < vec[j] })
	g.cuVectors[sym.cuVectorIndex] = vec
}

func (g *GdbIndexSection) Empty() bool { return !g.hasContent() }

func (g *GdbIndexSection) hasContent() bool {
	return len(g.cus) > 0 || len(g.addrs) > 0 || len(g.symOrder) > 0
}

func (g *GdbIndexSection) Size() uint64 {
	if g.Empty() {
		return 0
	}
	return g.stringPoolOffset + g.stringPool.Size()
}

// Finalize computes the fixed-capacity open-addressed symbol hash table
// (load factor kept at or below 3/4, linear probing on collision, matching the
// GDB on-disk hash table contract) and every sub-table's byte offset.
func (g *GdbIndexSection) Finalize(ctx *Context) {
	if g.Finalized() {
		return
	}
	defer g.MarkFinalized()
	if g.Empty() {
		return
	}

	for _, sym := range g.symOrder {
		sym.nameOffset = g.stringPool.Add(sym.name)
	}

	g.capacity = 4
	for float64(len(g.symOrder)) > float64(g.capacity)*0.75 {
		g.capacity *= 2
	}
	g.slots = make([]*gdbSymbol, g.capacity)
	for _, sym := range g.symOrder {
		slot := int(sym.hash) % g.capacity
		for g.slots[slot] != nil {
			slot = (slot + 1) % g.capacity
		}
		g.slots[slot] = sym
	}

	g.cuListOffset = 24
	g.cuTypesOffset = g.cuListOffset + uint64(len(g.cus))*gdbCuEntrySize
	g.symTabOffset = g.cuTypesOffset + uint64(len(g.addrs))*gdbAddressEntrySize
	g.constantPoolOffset = g.symTabOffset + uint64(g.capacity)*gdbSymTabEntrySize

	for _, vec := range g.cuVectors {
		g.cuVectorOffsets = append(g.cuVectorOffsets, g.cuVectorsSize)
		g.cuVectorsSize += uint64(4 * (len(vec) + 1))
	}
	g.stringPoolOffset = g.constantPoolOffset + g.cuVectorsSize
}

func (g *GdbIndexSection) Write(ctx *Context, buf []byte) {
	if g.Empty() {
		return
	}
	writeU32(buf, 7)
	writeU32(buf[4:], uint32(g.cuListOffset))
	writeU32(buf[8:], uint32(g.cuTypesOffset))
	writeU32(buf[12:], uint32(g.cuTypesOffset))
	writeU32(buf[16:], uint32(g.symTabOffset))
	writeU32(buf[20:], uint32(g.constantPoolOffset))

	off := int(g.cuListOffset)
	for _, cu := range g.cus {
		writeU64(buf[off:], cu.offset)
		writeU64(buf[off+8:], cu.length)
		off += gdbCuEntrySize
	}

	off = int(g.cuTypesOffset)
	for _, a := range g.addrs {
		base := a.sec.VA(0)
		writeU64(buf[off:], base+a.low)
		writeU64(buf[off+8:], base+a.high)
		writeU32(buf[off+16:], a.cuIndex)
		off += gdbAddressEntrySize
	}

	off = int(g.symTabOffset)
	for _, sym := range g.slots {
		if sym != nil {
			nameOff := uint64(sym.nameOffset) + g.stringPoolOffset - g.constantPoolOffset
			cuVecOff := g.cuVectorOffsets[sym.cuVectorIndex]
			writeU32(buf[off:], uint32(nameOff))
			writeU32(buf[off+4:], uint32(cuVecOff))
		}
		off += gdbSymTabEntrySize
	}

	off = int(g.constantPoolOffset)
	for _, vec := range g.cuVectors {
		writeU32(buf[off:], uint32(len(vec)))
		off += 4
		for _, v := range vec {
			writeU32(buf[off:], v)
			off += 4
		}
	}

	copy(buf[g.stringPoolOffset:], g.stringPool.bytes)
}
