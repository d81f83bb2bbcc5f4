package synth

import "debug/elf"

// HashSection is the System V .hash table (spec.md §4.8): nbucket,
// nchain, buckets[nbucket], chains[nchain], all 32-bit, with
// nbucket == nchain == num_dynsym.
type HashSection struct {
	Base

	dynsym *SymtabSection
}

func NewHashSection(dynsym *SymtabSection) *HashSection {
	return &HashSection{
		Base:   NewBase(".hash", uint32(elf.SHT_HASH), uint64(elf.SHF_ALLOC), 8, 4),
		dynsym: dynsym,
	}
}

func hashSysV(name string) uint32 {
	var h uint32
	for _, c := range []byte(name) {
		h = (h << 4) + uint32(c)
		if g := h & 0xf0000000; g != 0 {
			h ^= g >> 24
			h &^= g
		}
	}
	return h
}

// numSymbols is nbucket == nchain == num_dynsym, which counts the reserved
// index-0 null symbol alongside every real entry (getNumSymbols() in the
// teacher's grounding source).
func (h *HashSection) numSymbols() int { return len(h.dynsym.entries) + 1 }

func (h *HashSection) Size() uint64 {
	n := uint64(h.numSymbols())
	return (2 + n + n) * 4
}

func (h *HashSection) Empty() bool { return len(h.dynsym.entries) == 0 }

func (h *HashSection) Finalize(ctx *Context) {
	if h.Finalized() {
		return
	}
	h.MarkFinalized()
}

func (h *HashSection) Write(ctx *Context, buf []byte) {
	n := uint32(h.numSymbols())
	writeU32(buf, n)
	writeU32(buf[4:], n)
	buckets := buf[8:][: n*4]
	chains := buf[8+n*4:][: n*4]

	for _, sym := range h.dynsym.entries {
		idx := uint32(sym.DynsymIndex)
		b := hashSysV(sym.Name) % n
		writeU32(chains[idx*4:], readU32(buckets[b*4:]))
		writeU32(buckets[b*4:], idx)
	}
}
