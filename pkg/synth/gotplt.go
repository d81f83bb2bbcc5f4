package synth

import (
	"debug/elf"

	"github.com/synthlink/sve/pkg/obj"
)

// GotPltSection is .got.plt or .igot.plt (spec.md §4.4): a small data
// region the PLT references. The target backend owns the header slots'
// contents; each entry's initial value is the target-provided bootstrap
// value (the address of the PLT stub's second instruction, so the first
// call traps into the dynamic linker's lazy resolver).
type GotPltSection struct {
	Base

	entries []*obj.Symbol
	sizeVal uint64
}

func NewGotPltSection(name string) *GotPltSection {
	return &GotPltSection{Base: NewBase(name, uint32(elf.SHT_PROGBITS), uint64(elf.SHF_ALLOC|elf.SHF_WRITE), 8, 8)}
}

func (g *GotPltSection) AddEntry(sym *obj.Symbol) {
	if sym.GotPltIndex != obj.NoIndex {
		return
	}
	sym.GotPltIndex = len(g.entries)
	g.entries = append(g.entries, sym)
}

func (g *GotPltSection) Size() uint64 {
	return g.sizeVal
}

func (g *GotPltSection) Empty() bool { return len(g.entries) == 0 }

func (g *GotPltSection) Finalize(ctx *Context) {
	if g.Finalized() {
		return
	}
	g.sizeVal = uint64(ctx.Target.GotPltHeaderSlots()+len(g.entries)) * uint64(ctx.Target.GotPltEntrySize())
	g.MarkFinalized()
}

func (g *GotPltSection) Write(ctx *Context, buf []byte) {
	headerSlots := ctx.Target.GotPltHeaderSlots()
	entrySize := ctx.Target.GotPltEntrySize()
	ctx.Target.WriteGotPltHeader(buf[:headerSlots*entrySize], ctx.Dynamic.VA(0), ctx.Plt.VA(0))

	for i, sym := range g.entries {
		off := (headerSlots + i) * entrySize
		var pltVA uint64
		if sym.IsInIplt {
			pltVA = ctx.Iplt.VA(uint64(sym.PltIndex) * 16)
		} else {
			pltVA = ctx.Plt.VA(ctx.Plt.headerSizeVal + uint64(sym.PltIndex)*16)
		}
		writeU64(buf[off:], ctx.Target.GotPltBootstrapValue(pltVA))
	}
}
