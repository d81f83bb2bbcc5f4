package synth

import (
	"debug/elf"

	"github.com/synthlink/sve/pkg/obj"
)

// mipsGotEntry is a (symbol, addend) key used by the Local16 group; every
// other group keys purely by symbol (addend 0), matching spec.md §4.2's
// "local16 entries keyed by (symbol, addend)".
type mipsGotEntry struct {
	sym    *obj.Symbol
	addend uint64
	index  int
}

// FileGot is one input object's partition of the MIPS GOT, per spec.md
// §3's description of the MIPS GOT data model.
type FileGot struct {
	File *obj.File

	pageOrder []*obj.OutputSection
	pageIndex map[*obj.OutputSection]int // assigned start index per output section

	local16     []*mipsGotEntry
	local16Seen map[mipsGotEntry]int // index into local16, keyed by (sym,addend)

	local32     []*mipsGotEntry
	local32Seen map[mipsGotEntry]int

	global     []*mipsGotEntry
	globalSeen map[*obj.Symbol]int

	relocs     []*mipsGotEntry
	relocsSeen map[*obj.Symbol]int

	tls     []*mipsGotEntry
	tlsSeen map[*obj.Symbol]int

	// dynTls holds TLS module-index pairs; a nil sym means the module's
	// own TLS_DTPMOD entry (no specific symbol).
	dynTls     []*mipsGotEntry
	dynTlsSeen map[*obj.Symbol]int
	dynTlsNil  bool

	StartIndex int
}

func newFileGot(f *obj.File) *FileGot {
	return &FileGot{
		File:        f,
		pageIndex:   map[*obj.OutputSection]int{},
		local16Seen: map[mipsGotEntry]int{},
		local32Seen: map[mipsGotEntry]int{},
		globalSeen:  map[*obj.Symbol]int{},
		relocsSeen:  map[*obj.Symbol]int{},
		tlsSeen:     map[*obj.Symbol]int{},
		dynTlsSeen:  map[*obj.Symbol]int{},
	}
}

func (g *FileGot) addLocal16(sym *obj.Symbol, addend uint64) {
	key := mipsGotEntry{sym, addend, 0}
	if _, ok := g.local16Seen[key]; ok {
		return
	}
	e := &mipsGotEntry{sym, addend, 0}
	g.local16Seen[key] = len(g.local16)
	g.local16 = append(g.local16, e)
}

func (g *FileGot) addGlobal(sym *obj.Symbol) {
	if _, ok := g.globalSeen[sym]; ok {
		return
	}
	g.globalSeen[sym] = len(g.global)
	g.global = append(g.global, &mipsGotEntry{sym: sym})
}

func (g *FileGot) addReloc(sym *obj.Symbol) {
	if _, ok := g.relocsSeen[sym]; ok {
		return
	}
	g.relocsSeen[sym] = len(g.relocs)
	g.relocs = append(g.relocs, &mipsGotEntry{sym: sym})
}

func (g *FileGot) addTls(sym *obj.Symbol) {
	if _, ok := g.tlsSeen[sym]; ok {
		return
	}
	g.tlsSeen[sym] = len(g.tls)
	g.tls = append(g.tls, &mipsGotEntry{sym: sym})
}

func (g *FileGot) addDynTls(sym *obj.Symbol) {
	if sym == nil {
		if g.dynTlsNil {
			return
		}
		g.dynTlsNil = true
		g.dynTls = append(g.dynTls, &mipsGotEntry{})
		return
	}
	if _, ok := g.dynTlsSeen[sym]; ok {
		return
	}
	g.dynTlsSeen[sym] = len(g.dynTls)
	g.dynTls = append(g.dynTls, &mipsGotEntry{sym: sym})
}

func (g *FileGot) addPage(outSec *obj.OutputSection) {
	if _, ok := g.pageIndex[outSec]; ok {
		return
	}
	g.pageIndex[outSec] = -1
	g.pageOrder = append(g.pageOrder, outSec)
}

func (g *FileGot) removeGlobalIf(keep func(*obj.Symbol) bool) {
	out := g.global[:0]
	seen := map[*obj.Symbol]int{}
	for _, e := range g.global {
		if keep(e.sym) {
			seen[e.sym] = len(out)
			out = append(out, e)
		}
	}
	g.global = out
	g.globalSeen = seen
}

func (g *FileGot) removeRelocsIf(drop func(*obj.Symbol) bool) {
	out := g.relocs[:0]
	seen := map[*obj.Symbol]int{}
	for _, e := range g.relocs {
		if !drop(e.sym) {
			seen[e.sym] = len(out)
			out = append(out, e)
		}
	}
	g.relocs = out
	g.relocsSeen = seen
}

func (g *FileGot) entryCount() int {
	n := 0
	for _, sec := range g.pageOrder {
		n += mipsPageCount(sec.Size)
	}
	n += len(g.local16) + len(g.global) + len(g.relocs) + len(g.tls)
	n += 2 * len(g.dynTls)
	return n
}

func mipsPageCount(secSize uint64) int {
	return int(secSize/0x10000) + 1
}

func mipsPageAddr(addr uint64) uint64 { return addr &^ 0xffff }

// MipsGotSection implements spec.md §4.2.
type MipsGotSection struct {
	Base

	HeaderEntries int
	Gots          []*FileGot
	built         bool

	// relocatable caches ctx.Config.Relocatable, set by Finalize, so Empty
	// can be read before or after finalization.
	relocatable bool
}

func NewMipsGotSection() *MipsGotSection {
	return &MipsGotSection{
		Base:          NewBase(".got", uint32(elf.SHT_PROGBITS), uint64(elf.SHF_ALLOC|elf.SHF_WRITE), 8, 8),
		HeaderEntries: 2,
	}
}

// GotFor returns (creating if necessary) the FileGot partition for f,
// before Build() has merged partitions together.
func (m *MipsGotSection) GotFor(f *obj.File) *FileGot {
	for _, g := range m.Gots {
		if g.File == f {
			return g
		}
	}
	g := newFileGot(f)
	m.Gots = append(m.Gots, g)
	return g
}

// Empty reports true for relocatable (-r) output: we still add .got for
// dynamic MIPS targets because its address is mentioned in .dynamic, but
// a relocatable object never links dynamically.
func (m *MipsGotSection) Empty() bool {
	return m.relocatable
}

func (m *MipsGotSection) Size() uint64 {
	total := m.HeaderEntries
	for _, g := range m.Gots {
		total += g.entryCount()
	}
	return uint64(total) * 8
}

// tryMergeGot attempts to fold src into dst without the combined entry
// count exceeding MipsGotSize/wordsize (the 16-bit addressable window).
// On success it unions every group into dst (first occurrence across
// files wins the slot) and returns true; on failure dst is left
// untouched. This generalizes the upstream merge to plain Go maps/slices
// rather than the C++ set_union-on-sorted-ranges the original code uses.
func tryMergeGot(dst, src *FileGot, maxEntries int) bool {
	if dst.entryCount()+src.entryCount() > maxEntries {
		return false
	}
	for _, sec := range src.pageOrder {
		dst.addPage(sec)
	}
	for _, e := range src.local16 {
		dst.addLocal16(e.sym, e.addend)
	}
	for _, e := range src.global {
		dst.addGlobal(e.sym)
	}
	for _, e := range src.relocs {
		dst.addReloc(e.sym)
	}
	for _, e := range src.tls {
		dst.addTls(e.sym)
	}
	for _, e := range src.dynTls {
		dst.addDynTls(e.sym)
	}
	return true
}

// Build runs the MIPS GOT merge algorithm described in spec.md §4.2,
// steps 1-7.
func (m *MipsGotSection) Build(ctx *Context) {
	if m.built || len(m.Gots) == 0 {
		return
	}
	m.built = true

	maxEntries := int(ctx.Config.MipsGotSize / 8)

	// 1. migrate non-preemptible globals into local16; drop them from global.
	for _, got := range m.Gots {
		for _, e := range got.global {
			if !e.sym.IsPreemptible() {
				got.addLocal16(e.sym, 0)
			}
		}
		got.removeGlobalIf(func(s *obj.Symbol) bool { return s.IsPreemptible() })
	}

	// 2. drop reloc-only entries duplicated by a global; merge local32 into local16.
	for _, got := range m.Gots {
		got.removeRelocsIf(func(s *obj.Symbol) bool { _, ok := got.globalSeen[s]; return ok })
		for _, e := range got.local32 {
			got.addLocal16(e.sym, e.addend)
		}
		got.local32 = nil
		got.local32Seen = map[mipsGotEntry]int{}
	}

	// 3. union every partition's global+reloc-only entries into what will
	// become the primary partition's reloc-only set.
	merged := []*FileGot{newFileGot(nil)}
	prim := merged[0]
	for _, got := range m.Gots {
		for _, e := range got.global {
			prim.addReloc(e.sym)
		}
		for _, e := range got.relocs {
			prim.addReloc(e.sym)
		}
		got.relocs = nil
		got.relocsSeen = map[*obj.Symbol]int{}
	}

	// 4. greedily merge partitions, starting a new one on overflow.
	for _, src := range m.Gots {
		dst := merged[len(merged)-1]
		isPrimaryDst := dst == prim
		if !tryMergeGot(dst, src, maxEntries) {
			merged = append(merged, src)
		} else if !isPrimaryDst {
			// merged fully into dst already.
		}
		src.File.MipsGotIndex = len(merged) - 1
	}
	m.Gots = merged
	prim = merged[0]

	// 5. reduce the primary's reloc-only set by its own globals.
	prim.removeRelocsIf(func(s *obj.Symbol) bool { _, ok := prim.globalSeen[s]; return ok })

	// 6. assign indices.
	index := m.HeaderEntries
	for _, got := range m.Gots {
		if got == prim {
			got.StartIndex = 0
		} else {
			got.StartIndex = index
		}
		for _, sec := range got.pageOrder {
			got.pageIndex[sec] = index
			index += mipsPageCount(sec.Size)
		}
		for _, e := range got.local16 {
			e.index = index
			index++
		}
		for _, e := range got.global {
			e.index = index
			index++
		}
		for _, e := range got.relocs {
			e.index = index
			index++
		}
		for _, e := range got.tls {
			e.index = index
			index++
		}
		for _, e := range got.dynTls {
			e.index = index
			index += 2
		}
	}

	for _, e := range prim.global {
		e.sym.GotIndex = e.index
	}
	for _, e := range prim.relocs {
		e.sym.GotIndex = e.index
	}

	m.emitDynamicRelocs(ctx, prim)
}

func (m *MipsGotSection) emitDynamicRelocs(ctx *Context, prim *FileGot) {
	relative := ctx.Target.RelativeRel()
	dtpmod := ctx.Target.TlsDtpModRel()
	dtpoff := ctx.Target.TlsDtpOffRel()

	for _, got := range m.Gots {
		for _, e := range got.tls {
			if e.sym.IsPreemptible() {
				ctx.RelaDyn.AddReloc(DynamicReloc{Type: dtpoff, Target: m, Offset: uint64(e.index) * 8, Symbol: e.sym})
			}
		}
		for _, e := range got.dynTls {
			off := uint64(e.index) * 8
			if e.sym == nil {
				if ctx.Config.Pic {
					ctx.RelaDyn.AddReloc(DynamicReloc{Type: dtpmod, Target: m, Offset: off})
				}
				continue
			}
			if !e.sym.IsPreemptible() {
				continue
			}
			ctx.RelaDyn.AddReloc(DynamicReloc{Type: dtpmod, Target: m, Offset: off, Symbol: e.sym})
			ctx.RelaDyn.AddReloc(DynamicReloc{Type: dtpoff, Target: m, Offset: off + 8, Symbol: e.sym})
		}

		if got == prim {
			continue
		}
		for _, e := range got.global {
			ctx.RelaDyn.AddReloc(DynamicReloc{Type: relative, Target: m, Offset: uint64(e.index) * 8, Symbol: e.sym, UseSymVA: true})
		}
		if !ctx.Config.Pic {
			continue
		}
		for _, sec := range got.pageOrder {
			start := got.pageIndex[sec]
			for pi := 0; pi < mipsPageCount(sec.Size); pi++ {
				ctx.RelaDyn.AddReloc(DynamicReloc{
					Type: relative, Target: m, Offset: uint64(start+pi) * 8,
					PageOutputSection: sec, Addend: int64(pi) * 0x10000,
				})
			}
		}
		for _, e := range got.local16 {
			ctx.RelaDyn.AddReloc(DynamicReloc{
				Type: relative, Target: m, Offset: uint64(e.index) * 8,
				Symbol: e.sym, Addend: int64(e.addend), UseSymVA: true,
			})
		}
	}
}

func (m *MipsGotSection) Finalize(ctx *Context) {
	if m.Finalized() {
		return
	}
	m.relocatable = ctx.Config.Relocatable
	m.Build(ctx)
	m.MarkFinalized()
}

// Write implements spec.md §4.2's writer, including the historical GOT[1]
// MSB convention (Open Question in spec.md §9, resolved as "preserve
// upstream behaviour, do not innovate").
func (m *MipsGotSection) Write(ctx *Context, buf []byte) {
	writeU64(buf[8:], uint64(1)<<63)

	for _, got := range m.Gots {
		for _, sec := range got.pageOrder {
			start := got.pageIndex[sec]
			base := mipsPageAddr(sec.Addr)
			for pi := 0; pi < mipsPageCount(sec.Size); pi++ {
				writeU64(buf[(start+pi)*8:], base+uint64(pi)*0x10000)
			}
		}
		for _, e := range got.local16 {
			writeU64(buf[e.index*8:], e.sym.VA(e.addend))
		}
		if got == m.Gots[0] {
			for _, e := range got.global {
				writeU64(buf[e.index*8:], e.sym.VA(0))
			}
		}
		for _, e := range got.relocs {
			writeU64(buf[e.index*8:], e.sym.VA(0))
		}
		for _, e := range got.tls {
			va := e.sym.VA(0)
			if e.sym.IsPreemptible() {
				writeU64(buf[e.index*8:], va)
			} else {
				writeU64(buf[e.index*8:], va-0x7000)
			}
		}
		for _, e := range got.dynTls {
			off := e.index * 8
			if e.sym == nil {
				if !ctx.Config.Pic {
					writeU64(buf[off:], 1)
				}
				continue
			}
			if !e.sym.IsPreemptible() {
				writeU64(buf[off:], 1)
				writeU64(buf[off+8:], e.sym.VA(0)-0x8000)
			}
		}
	}
}

// GetGp mirrors MipsGotSection::getGp: the $gp value for file f, relative
// to the start of its own partition, offset by the ABI's 0x7ff0 bias.
func (m *MipsGotSection) GetGp(ctx *Context, f *obj.File, vaddr uint64) uint64 {
	if f == nil || f.MipsGotIndex < 0 {
		return vaddr
	}
	return vaddr + uint64(m.Gots[f.MipsGotIndex].StartIndex)*8 + 0x7ff0
}
