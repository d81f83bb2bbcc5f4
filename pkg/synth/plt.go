package synth

import (
	"debug/elf"

	"github.com/synthlink/sve/pkg/obj"
)

// pltEntry is one (symbol, relocation-offset) pair, per spec.md §3's PLT
// data model.
type pltEntry struct {
	sym       *obj.Symbol
	relocOff  uint64
}

// PltSection is .plt or .iplt (spec.md §4.3). The IRELATIVE-PLT variant
// (iplt=true) has no header and reports its relocations through an
// IRELATIVE relocation section instead of the regular PLT one.
type PltSection struct {
	Base

	relocSection  *RelocSection
	isIplt        bool
	entries       []pltEntry
	headerSizeVal uint64
}

func NewPltSection(name string, relocs *RelocSection, isIplt bool) *PltSection {
	return &PltSection{
		Base:         NewBase(name, uint32(elf.SHT_PROGBITS), uint64(elf.SHF_ALLOC|elf.SHF_EXECINSTR), 16, 0),
		relocSection: relocs,
		isIplt:       isIplt,
	}
}

// AddEntry assigns sym.PltIndex, pairs it with the relocation section's
// current end offset (entry count times the 24-byte Rela size, i.e. its
// future relocation offset), and registers sym
// for both PLT and GOT.PLT/IGOT.PLT emission.
func (p *PltSection) AddEntry(ctx *Context, sym *obj.Symbol) {
	p.guardMutable(ctx.Sink, p.NameVal)
	if sym.PltIndex != obj.NoIndex {
		return
	}
	sym.PltIndex = len(p.entries)
	sym.IsInIplt = p.isIplt
	p.entries = append(p.entries, pltEntry{sym: sym, relocOff: uint64(len(p.relocSection.entries)) * 24})

	gotPlt := ctx.GotPlt
	if p.isIplt {
		gotPlt = ctx.IgotPlt
	}
	gotPlt.AddEntry(sym)

	relType := ctx.Target.JumpSlotRel()
	if p.isIplt {
		relType = ctx.Target.IRelativeRel()
	}
	p.relocSection.AddReloc(DynamicReloc{
		Type:   relType,
		Target: gotPlt,
		Offset: uint64(sym.GotPltIndex) * uint64(ctx.Target.GotPltEntrySize()),
		Symbol: sym,
	})
}

func (p *PltSection) Size() uint64 {
	return p.headerSizeVal + uint64(len(p.entries))*16
}

func (p *PltSection) Empty() bool { return len(p.entries) == 0 }

func (p *PltSection) Finalize(ctx *Context) {
	if p.Finalized() {
		return
	}
	if !p.isIplt {
		p.headerSizeVal = uint64(ctx.Target.PltHeaderSize())
	}
	p.MarkFinalized()
}

func (p *PltSection) Write(ctx *Context, buf []byte) {
	headerSize := int(p.headerSizeVal)
	if !p.isIplt {
		ctx.Target.WritePltHeader(buf[:headerSize], ctx.GotPlt.VA(0), p.VA(0))
	}
	for i, e := range p.entries {
		off := headerSize + i*16
		gotPlt := ctx.GotPlt
		if p.isIplt {
			gotPlt = ctx.IgotPlt
		}
		gotSlotVA := gotPlt.VA(uint64(e.sym.GotPltIndex) * uint64(ctx.Target.GotPltEntrySize()))
		ctx.Target.WritePltEntry(buf[off:off+16], gotSlotVA, p.VA(uint64(off)), uint32(i))
	}
}
