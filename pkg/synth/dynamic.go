package synth

import (
	"debug/elf"

	"github.com/synthlink/sve/pkg/elfabi"
	"github.com/synthlink/sve/pkg/utils"
)

// dynEntry is one accumulated tag/value pair, kept in the order it was
// added; Finalize appends the entries whose value depends on other
// sections having finalized first, then terminates with DT_NULL.
type dynEntry struct {
	tag int64
	val uint64
}

// DynamicSection is .dynamic (spec.md §4.9): the table every dynamic
// loader reads first. Components that need entries independent of other
// sections (DT_NEEDED, DT_SONAME, DT_RPATH/RUNPATH, DT_FLAGS...) call
// AddNeeded/AddFlag etc. before Finalize; everything that must reference
// another well-known section's final size or address is computed inside
// Finalize itself, resolving the classic dynamic <-> relocations <->
// strtab <-> dynsym reference cycle by reading Context fields rather than
// holding pointers to those sections directly.
type DynamicSection struct {
	Base

	pre  []dynEntry
	post []dynEntry
}

func NewDynamicSection() *DynamicSection {
	return &DynamicSection{Base: NewBase(".dynamic", uint32(elf.SHT_DYNAMIC), uint64(elf.SHF_ALLOC|elf.SHF_WRITE), 8, uint64(elfabi.DynSize))}
}

func (d *DynamicSection) add(tag int64, val uint64) {
	d.pre = append(d.pre, dynEntry{tag, val})
}

func (d *DynamicSection) AddNeeded(strtabOffset uint32) { d.add(int64(elf.DT_NEEDED), uint64(strtabOffset)) }
func (d *DynamicSection) AddSoName(strtabOffset uint32) { d.add(int64(elf.DT_SONAME), uint64(strtabOffset)) }
func (d *DynamicSection) AddRPath(strtabOffset uint32)  { d.add(int64(elf.DT_RPATH), uint64(strtabOffset)) }
func (d *DynamicSection) AddRunPath(strtabOffset uint32) {
	d.add(int64(elf.DT_RUNPATH), uint64(strtabOffset))
}
func (d *DynamicSection) AddAuxiliary(strtabOffset uint32) {
	d.add(int64(elf.DT_AUXILIARY), uint64(strtabOffset))
}
func (d *DynamicSection) AddFlags(v uint64)  { d.add(int64(elf.DT_FLAGS), v) }
func (d *DynamicSection) AddFlags1(v uint64) { d.add(int64(elf.DT_FLAGS_1), v) }
func (d *DynamicSection) AddDebug()          { d.add(int64(elf.DT_DEBUG), 0) }
func (d *DynamicSection) AddInit(va uint64)  { d.add(int64(elf.DT_INIT), va) }
func (d *DynamicSection) AddFini(va uint64)  { d.add(int64(elf.DT_FINI), va) }
func (d *DynamicSection) AddBindNow()        { d.add(int64(elf.DT_BIND_NOW), 0) }

func (d *DynamicSection) Size() uint64 {
	return uint64(len(d.pre)+len(d.post)) * uint64(elfabi.DynSize)
}

func (d *DynamicSection) Empty() bool { return false }

// Finalize assembles the z-flag-derived and section-derived entries per
// spec.md §4.9, in roughly the order a real dynamic loader expects to be
// able to stop scanning early (hash/string/symbol tables first).
func (d *DynamicSection) Finalize(ctx *Context) {
	if d.Finalized() {
		return
	}
	defer d.MarkFinalized()

	cfg := ctx.Config

	var flags, flags1 uint64
	if cfg.Symbolic {
		flags |= uint64(elf.DF_SYMBOLIC)
	}
	if cfg.ZOrigin {
		flags |= uint64(elf.DF_ORIGIN)
		flags1 |= uint64(elf.DF_1_ORIGIN)
	}
	if cfg.BindNow {
		flags |= uint64(elf.DF_BIND_NOW)
		flags1 |= uint64(elf.DF_1_NOW)
	}
	if cfg.ZNodelete {
		flags1 |= uint64(elf.DF_1_NODELETE)
	}
	if cfg.ZNoopen {
		flags1 |= uint64(elf.DF_1_NOOPEN)
	}
	if flags != 0 {
		d.AddFlags(flags)
	}
	if flags1 != 0 {
		d.AddFlags1(flags1)
	}
	if !cfg.Shared {
		d.AddDebug()
	}

	if sym := ctx.Symbols.FindInCurrentDSO(cfg.InitSymbol); sym != nil {
		d.AddInit(sym.VA(0))
	}
	if sym := ctx.Symbols.FindInCurrentDSO(cfg.FiniSymbol); sym != nil {
		d.AddFini(sym.VA(0))
	}

	if !ctx.HashTab.Empty() {
		d.post = append(d.post, dynEntry{int64(elf.DT_HASH), ctx.HashTab.VA(0)})
	}
	if !ctx.GnuHashTab.Empty() {
		d.post = append(d.post, dynEntry{elfabi.DT_GNU_HASH, ctx.GnuHashTab.VA(0)})
	}

	d.post = append(d.post,
		dynEntry{int64(elf.DT_STRTAB), ctx.Dynstr.VA(0)},
		dynEntry{int64(elf.DT_STRSZ), ctx.Dynstr.Size()},
		dynEntry{int64(elf.DT_SYMTAB), ctx.Dynsym.VA(0)},
		dynEntry{int64(elf.DT_SYMENT), uint64(elfabi.SymSize)},
	)

	if !ctx.RelaDyn.Empty() {
		d.post = append(d.post,
			dynEntry{int64(elf.DT_RELA), ctx.RelaDyn.VA(0)},
			dynEntry{int64(elf.DT_RELASZ), ctx.RelaDyn.Size()},
			dynEntry{int64(elf.DT_RELAENT), 24},
		)
		if cfg.CombReloc {
			d.post = append(d.post, dynEntry{elfabi.DT_RELACOUNT, uint64(ctx.RelaDyn.RelativeCount())})
		}
	}

	relaPltNonempty := !ctx.RelaPlt.Empty()
	relaIpltNonempty := !ctx.RelaIplt.Empty()
	if relaPltNonempty || relaIpltNonempty {
		jmprelVA := uint64(0)
		jmprelSz := uint64(0)
		switch {
		case relaPltNonempty && relaIpltNonempty:
			jmprelVA = ctx.RelaPlt.VA(0)
			jmprelSz = ctx.RelaPlt.Size() + ctx.RelaIplt.Size()
		case relaPltNonempty:
			jmprelVA = ctx.RelaPlt.VA(0)
			jmprelSz = ctx.RelaPlt.Size()
		default:
			jmprelVA = ctx.RelaIplt.VA(0)
			jmprelSz = ctx.RelaIplt.Size()
		}
		d.post = append(d.post,
			dynEntry{int64(elf.DT_PLTRELSZ), jmprelSz},
			dynEntry{int64(elf.DT_PLTGOT), ctx.GotPlt.VA(0)},
			dynEntry{int64(elf.DT_PLTREL), uint64(elf.DT_RELA)},
			dynEntry{int64(elf.DT_JMPREL), jmprelVA},
		)
	}

	if !ctx.VerSym.Empty() {
		d.post = append(d.post, dynEntry{elfabi.DT_VERSYM, ctx.VerSym.VA(0)})
	}
	if !ctx.VerDef.Empty() {
		d.post = append(d.post,
			dynEntry{elfabi.DT_VERDEF, ctx.VerDef.VA(0)},
			dynEntry{elfabi.DT_VERDEFNUM, uint64(ctx.VerDef.NumDefs())},
		)
	}
	if !ctx.VerNeed.Empty() {
		d.post = append(d.post,
			dynEntry{elfabi.DT_VERNEED, ctx.VerNeed.VA(0)},
			dynEntry{elfabi.DT_VERNEEDNUM, uint64(ctx.VerNeed.NumFiles())},
		)
	}

	if cfg.Machine == elf.EM_MIPS {
		d.post = append(d.post, dynEntry{elfabi.DT_MIPS_RLD_VERSION, 1})
		mipsFlags := uint64(0)
		if cfg.Pic {
			mipsFlags |= elfabi.RHF_NOTPOT
		}
		d.post = append(d.post,
			dynEntry{elfabi.DT_MIPS_FLAGS, mipsFlags},
			dynEntry{elfabi.DT_MIPS_BASE_ADDRESS, 0},
		)
		if !ctx.MipsGot.Empty() {
			prim := ctx.MipsGot.Gots[0]
			d.post = append(d.post,
				dynEntry{elfabi.DT_MIPS_LOCAL_GOTNO, uint64(ctx.MipsGot.HeaderEntries + len(prim.local16))},
				dynEntry{elfabi.DT_MIPS_GOTSYM, uint64(firstMipsGotDynsym(prim))},
				dynEntry{int64(elf.DT_PLTGOT), ctx.MipsGot.VA(0)},
			)
		}
		d.post = append(d.post, dynEntry{elfabi.DT_MIPS_SYMTABNO, uint64(len(ctx.Dynsym.entries))})
		if ctx.MipsRldMap != nil && !ctx.MipsRldMap.Empty() {
			d.post = append(d.post, dynEntry{elfabi.DT_MIPS_RLD_MAP, ctx.MipsRldMap.VA(0)})
		}
	}

	d.post = append(d.post, dynEntry{int64(elf.DT_NULL), 0})
}

// firstMipsGotDynsym is DT_MIPS_GOTSYM: the dynsym index of the first
// global GOT entry in the primary partition, per spec.md §4.2/§4.9. All
// global entries share contiguous GOT and dynsym index ranges once
// SymtabSection.finalizeDynsym has run its MIPS-specific dynsym sort.
func firstMipsGotDynsym(prim *FileGot) int {
	min := -1
	for _, e := range prim.global {
		if e.sym.DynsymIndex >= 0 && (min == -1 || e.sym.DynsymIndex < min) {
			min = e.sym.DynsymIndex
		}
	}
	if min == -1 {
		return 0
	}
	return min
}

func (d *DynamicSection) Write(ctx *Context, buf []byte) {
	off := 0
	put := func(tag int64, val uint64) {
		utils.Write(buf[off:], elfabi.Dyn{Tag: tag, Val: val})
		off += int(elfabi.DynSize)
	}
	for _, e := range d.pre {
		put(e.tag, e.val)
	}
	for _, e := range d.post {
		put(e.tag, e.val)
	}
}
