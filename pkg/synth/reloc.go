package synth

import (
	"debug/elf"
	"sort"

	"github.com/synthlink/sve/pkg/elfabi"
	"github.com/synthlink/sve/pkg/obj"
	"github.com/synthlink/sve/pkg/utils"
)

// DynamicReloc is one accumulated dynamic relocation, per spec.md §3: it
// carries either an addend or a symbol index, never both once
// materialized, and RELATIVE relocations never carry a symbol.
type DynamicReloc struct {
	Type              uint32
	Target            Addressable // section the offset is relative to
	Offset            uint64      // offset within Target's own content
	Symbol            *obj.Symbol // for RELATIVE: nil, or only the UseSymVA addend source
	Addend            int64
	UseSymVA          bool // addend becomes Symbol.VA(Addend) instead of a literal addend
	PageOutputSection *obj.OutputSection
}

// RelocSection is .rel(a).dyn, .rel(a).plt, or .rel(a).iplt (spec.md §4.6).
type RelocSection struct {
	Base

	sort          bool
	entries       []DynamicReloc
	relativeCount int
}

func NewRelocSection(name string, sortRelative bool) *RelocSection {
	return &RelocSection{
		Base: NewBase(name, uint32(elf.SHT_RELA), uint64(elf.SHF_ALLOC), 8, 24),
		sort: sortRelative,
	}
}

// AddReloc appends a relocation. Entries are accumulated in insertion
// order; Finalize may reorder them per the sort flag, stably.
func (r *RelocSection) AddReloc(rel DynamicReloc) {
	r.entries = append(r.entries, rel)
}

func (r *RelocSection) Size() uint64 { return uint64(len(r.entries)) * 24 }
func (r *RelocSection) Empty() bool  { return len(r.entries) == 0 }

// RelativeCount is consumed by DynamicSection for DT_RELACOUNT.
func (r *RelocSection) RelativeCount() int { return r.relativeCount }

func (r *RelocSection) Finalize(ctx *Context) {
	if r.Finalized() {
		return
	}
	relType := ctx.Target.RelativeRel()
	r.relativeCount = 0
	for _, e := range r.entries {
		if e.Type == relType {
			r.relativeCount++
		}
	}
	if r.sort {
		sort.SliceStable(r.entries, func(i, j int) bool {
			iRel := r.entries[i].Type == relType
			jRel := r.entries[j].Type == relType
			return iRel && !jRel
		})
	} else {
		sort.SliceStable(r.entries, func(i, j int) bool {
			return symIndex(r.entries[i].Symbol) < symIndex(r.entries[j].Symbol)
		})
	}
	r.MarkFinalized()
}

func symIndex(s *obj.Symbol) int {
	if s == nil {
		return 0
	}
	return s.DynsymIndex
}

func (r *RelocSection) Write(ctx *Context, buf []byte) {
	for i, e := range r.entries {
		off := e.Target.VA(e.Offset)

		var symIdx uint32
		var addend int64
		if e.UseSymVA {
			addend = int64(e.Symbol.VA(uint64(e.Addend)))
		} else {
			addend = e.Addend
			if e.PageOutputSection != nil {
				addend += int64(mipsPageAddr(e.PageOutputSection.Addr))
			}
		}
		if e.Symbol != nil && !e.UseSymVA {
			symIdx = uint32(e.Symbol.DynsymIndex)
		}

		utils.Write(buf[i*24:], elfabi.Rela{
			Offset: off,
			Info:   elfabi.RelaInfo(symIdx, e.Type),
			Addend: addend,
		})
	}
}
