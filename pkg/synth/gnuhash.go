package synth

import (
	"debug/elf"
	"sort"

	"github.com/synthlink/sve/pkg/obj"
)

// bucketSizes is the fixed descending prime list spec.md §4.8 requires:
// nbuckets is the largest prime in this list that is <= the hashed-symbol
// count.
var bucketSizes = []uint32{131071, 65521, 32749, 16381, 8191, 4093, 2039, 1021, 509, 251, 127, 61, 31, 13, 7, 3, 1}

func gnuBucketSize(numHashed int) uint32 {
	for _, p := range bucketSizes {
		if uint32(numHashed) >= p {
			return p
		}
	}
	return 1
}

func hashGnu(name string) uint32 {
	h := uint32(5381)
	for _, c := range []byte(name) {
		h = h*33 + uint32(c)
	}
	return h
}

func nextPow2(v uint32) uint32 {
	if v < 1 {
		v = 1
	}
	p := uint32(1)
	for p < v {
		p <<= 1
	}
	return p
}

// GnuHashSection is .gnu.hash (spec.md §4.8). It both computes its own
// table contents and, through ReorderSymbols, dictates the final dynsym
// ordering — the one genuinely cyclic dependency in this package (dynsym
// asks the hash table how to sort itself; the hash table reads dynsym's
// raw entries to decide).
type GnuHashSection struct {
	Base

	dynsym *SymtabSection

	nbuckets  uint32
	maskWords uint32
	shift2    uint32
	symOffset uint32

	order       []*obj.Symbol // the reordered dynsym vector (undefined..., hashed...)
	hashedHash  []uint32      // hashGnu(name) for order[symOffset:], aligned
	hasSymbols  bool
}

func NewGnuHashSection(dynsym *SymtabSection) *GnuHashSection {
	return &GnuHashSection{
		Base:   NewBase(".gnu.hash", uint32(elf.SHT_GNU_HASH), uint64(elf.SHF_ALLOC), 8, 0),
		dynsym: dynsym,
	}
}

func (g *GnuHashSection) HasSymbols() bool { return g.hasSymbols }

// ReorderSymbols returns the order this table requires; called by
// SymtabSection.finalizeDynsym once this section has itself finalized.
func (g *GnuHashSection) ReorderSymbols(syms []*obj.Symbol) []*obj.Symbol {
	if !g.hasSymbols {
		return syms
	}
	return g.order
}

func (g *GnuHashSection) Size() uint64 {
	if !g.hasSymbols {
		return 0
	}
	n := uint64(len(g.hashedHash))
	return 16 + 8*uint64(g.maskWords) + uint64(g.nbuckets)*4 + n*4
}

func (g *GnuHashSection) Empty() bool { return !g.hasSymbols }

func (g *GnuHashSection) Finalize(ctx *Context) {
	if g.Finalized() {
		return
	}
	defer g.MarkFinalized()

	all := g.dynsym.entries
	var undefined, hashed []*obj.Symbol
	for _, s := range all {
		if s.IsUndefined() {
			undefined = append(undefined, s)
		} else {
			hashed = append(hashed, s)
		}
	}
	if len(hashed) == 0 {
		g.hasSymbols = false
		return
	}
	g.hasSymbols = true
	g.nbuckets = gnuBucketSize(len(hashed))
	g.maskWords = nextPow2(uint32(max(1, (len(hashed)-1)/8)))
	g.shift2 = 6
	g.symOffset = uint32(len(undefined))

	hashes := make([]uint32, len(hashed))
	for i, s := range hashed {
		hashes[i] = hashGnu(s.Name)
	}
	idx := make([]int, len(hashed))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return hashes[idx[a]]%g.nbuckets < hashes[idx[b]]%g.nbuckets
	})

	sorted := make([]*obj.Symbol, len(hashed))
	sortedHash := make([]uint32, len(hashed))
	for newPos, oldPos := range idx {
		sorted[newPos] = hashed[oldPos]
		sortedHash[newPos] = hashes[oldPos]
	}

	g.order = append(append([]*obj.Symbol{}, undefined...), sorted...)
	g.hashedHash = sortedHash
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (g *GnuHashSection) Write(ctx *Context, buf []byte) {
	if !g.hasSymbols {
		return
	}
	n := uint32(len(g.hashedHash))
	writeU32(buf, g.nbuckets)
	writeU32(buf[4:], g.symOffset)
	writeU32(buf[8:], g.maskWords)
	writeU32(buf[12:], g.shift2)

	bloom := buf[16:][:g.maskWords*8]
	for _, h := range g.hashedHash {
		c := uint32(64)
		word := (h / c) % g.maskWords
		bit1 := h % c
		bit2 := (h >> g.shift2) % c
		lo := readU32(bloom[word*8:])
		hi := readU32(bloom[word*8+4:])
		setBit := func(bit uint32) {
			if bit < 32 {
				lo |= 1 << bit
			} else {
				hi |= 1 << (bit - 32)
			}
		}
		setBit(bit1)
		setBit(bit2)
		writeU32(bloom[word*8:], lo)
		writeU32(bloom[word*8+4:], hi)
	}

	buckets := buf[16+g.maskWords*8:][: g.nbuckets*4]
	chain := buf[16+g.maskWords*8+g.nbuckets*4:][: n*4]

	for i, h := range g.hashedHash {
		b := h % g.nbuckets
		dynsymIdx := uint32(g.order[int(g.symOffset)+i].DynsymIndex)
		if readU32(buckets[b*4:]) == 0 {
			writeU32(buckets[b*4:], dynsymIdx)
		}
		v := h &^ 1
		if i == len(g.hashedHash)-1 || g.hashedHash[i+1]%g.nbuckets != b {
			v |= 1
		}
		writeU32(chain[i*4:], v)
	}
}
