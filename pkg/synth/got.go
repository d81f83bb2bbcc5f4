package synth

import (
	"debug/elf"

	"github.com/synthlink/sve/pkg/obj"
)

// GotSection is the non-MIPS Global Offset Table (spec.md §4.1): a flat
// sequence of slots indexed by Symbol.GotIndex, plus TLS global-dynamic
// and module-index pairs.
type GotSection struct {
	Base

	entries      []*obj.Symbol // index by GotIndex; nil entries are TLS-pair placeholders
	tlsIndexUsed bool
	tlsIndexSlot int

	// relOutstanding tracks whether any GOT-relative reference has been
	// registered even when it never grows entries (spec.md §4.1's Empty
	// rule: "true iff no entries and no GOT-relative reference
	// outstanding flag is set").
	relOutstanding bool
}

func NewGotSection() *GotSection {
	return &GotSection{Base: NewBase(".got", uint32(elf.SHT_PROGBITS), uint64(elf.SHF_ALLOC|elf.SHF_WRITE), 8, 8)}
}

// AddEntry assigns sym.GotIndex and grows the GOT by one slot. Returns the
// assigned index; idempotent in the sense that a symbol that already has
// a GOT slot keeps it (no-op re-add).
func (g *GotSection) AddEntry(ctx *Context, sym *obj.Symbol) int {
	g.guardMutable(ctx.Sink, g.NameVal)
	if sym.GotIndex != obj.NoIndex {
		return sym.GotIndex
	}
	sym.GotIndex = len(g.entries)
	g.entries = append(g.entries, sym)
	return sym.GotIndex
}

// AddDynTlsEntry reserves the two-slot TLS global-dynamic (module,offset)
// pair for sym, idempotent per spec.md §4.1: returns false if sym already
// has a pair.
func (g *GotSection) AddDynTlsEntry(ctx *Context, sym *obj.Symbol) bool {
	g.guardMutable(ctx.Sink, g.NameVal)
	if sym.GlobalDynIndex != obj.NoIndex {
		return false
	}
	sym.GlobalDynIndex = len(g.entries)
	g.entries = append(g.entries, sym, nil)
	return true
}

// AddTlsIndex reserves the two-slot TLS module-index pair once per image.
func (g *GotSection) AddTlsIndex(ctx *Context) int {
	g.guardMutable(ctx.Sink, g.NameVal)
	if g.tlsIndexUsed {
		return g.tlsIndexSlot
	}
	g.tlsIndexUsed = true
	g.tlsIndexSlot = len(g.entries)
	g.entries = append(g.entries, nil, nil)
	return g.tlsIndexSlot
}

// MarkGotRelativeReference flags that some relocation refers to the GOT's
// own address even though it added no slot (e.g. a GOTPC-relative
// reference against an already-resolved local), keeping the section
// non-empty per spec.md §4.1.
func (g *GotSection) MarkGotRelativeReference() { g.relOutstanding = true }

func (g *GotSection) Size() uint64 { return uint64(len(g.entries)) * 8 }

func (g *GotSection) Empty() bool { return len(g.entries) == 0 && !g.relOutstanding }

func (g *GotSection) Finalize(ctx *Context) {
	if g.Finalized() {
		return
	}
	g.MarkFinalized()
}

// Write fills every slot with the defining symbol's virtual address,
// leaving TLS-pair placeholders (nil entries) zero for the dynamic loader
// to fill via the accumulated TLS relocations.
func (g *GotSection) Write(ctx *Context, buf []byte) {
	for i, sym := range g.entries {
		if sym == nil {
			continue
		}
		writeU64(buf[i*8:], sym.VA(0))
	}
}

func writeU64(buf []byte, v uint64) {
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * i))
	}
}

func writeU32(buf []byte, v uint32) {
	for i := 0; i < 4; i++ {
		buf[i] = byte(v >> (8 * i))
	}
}

func writeU16(buf []byte, v uint16) {
	buf[0] = byte(v)
	buf[1] = byte(v >> 8)
}

func readU16(buf []byte) uint16 {
	return uint16(buf[0]) | uint16(buf[1])<<8
}

func readU32(buf []byte) uint32 {
	return uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
}

func readU64(buf []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(buf[i]) << (8 * i)
	}
	return v
}
