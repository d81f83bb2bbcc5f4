package synth

import (
	"github.com/synthlink/sve/pkg/config"
	"github.com/synthlink/sve/pkg/diag"
	"github.com/synthlink/sve/pkg/obj"
	"github.com/synthlink/sve/pkg/target"
)

// Context is the link-scoped, well-known-sections registry named in
// spec.md §2/§9: it is filled once during setup and then passed to every
// component, which looks up its collaborators by field rather than by an
// ownership link (resolving the cyclic dynamic <-> relocations <-> strtab
// <-> dynsym references the design notes call out). It plays the same
// role the teacher's *linker.Context plays for rvld's pipeline, widened to
// cover every synthetic section this engine knows about.
type Context struct {
	Config  *config.Config
	Target  target.Backend
	Sink    *diag.Sink
	Symbols *obj.SymbolSet

	Objs           []*obj.File
	OutputSections []*obj.OutputSection

	// Well-known synthetic sections, discovered by field the way the spec
	// describes ("the dynamic section looks up the GOT" etc).
	Got          *GotSection
	MipsGot      *MipsGotSection
	Plt          *PltSection
	Iplt         *PltSection
	GotPlt       *GotPltSection
	IgotPlt      *GotPltSection
	Dynamic      *DynamicSection
	RelaDyn      *RelocSection
	RelaPlt      *RelocSection
	RelaIplt     *RelocSection
	Dynsym       *SymtabSection
	Dynstr       *StrtabSection
	Symtab       *SymtabSection
	Strtab       *StrtabSection
	HashTab      *HashSection
	GnuHashTab   *GnuHashSection
	EhFrame      *EhFrameSection
	EhFrameHdr   *EhFrameHeaderSection
	BuildID      *BuildIDSection
	VerDef       *VersionDefSection
	VerSym       *VersionSymSection
	VerNeed      *VersionNeedSection
	GdbIndex     *GdbIndexSection
	MipsAbiflags *MipsAbiflagsSection
	MipsOptions  *MipsOptionsSection
	Reginfo      *ReginfoSection
	MipsRldMap   *MipsRldMapSection
	ArmExidx     *ArmExidxSentinel
	CapRelocs    *CapRelocsSection
	Comment      *CommentSection
	Interp       *InterpSection
	Bss          *BssSection
	Tbss         *BssSection

	// DebugInfoPresent is true when the output carries a .debug_info
	// section. GdbIndexSection.Empty does not read it (Empty takes no
	// Context); it reports empty until index content has been added.
	DebugInfoPresent bool
}

// NewContext wires up every well-known synthetic section against the
// given configuration and target backend, the way rvld.go's main wires
// linker.NewContext() before running the pipeline.
func NewContext(cfg *config.Config, backend target.Backend) *Context {
	ctx := &Context{
		Config:  cfg,
		Target:  backend,
		Sink:    diag.NewSink(),
		Symbols: obj.NewSymbolSet(),
	}

	ctx.Dynstr = NewStrtabSection(".dynstr", true)
	ctx.Strtab = NewStrtabSection(".strtab", false)

	ctx.Got = NewGotSection()
	ctx.MipsGot = NewMipsGotSection()
	ctx.GotPlt = NewGotPltSection(".got.plt")
	ctx.IgotPlt = NewGotPltSection(".igot.plt")

	ctx.RelaDyn = NewRelocSection(".rela.dyn", true)
	ctx.RelaPlt = NewRelocSection(".rela.plt", false)
	ctx.RelaIplt = NewRelocSection(".rela.iplt", false)

	ctx.Plt = NewPltSection(".plt", ctx.RelaPlt, false)
	ctx.Iplt = NewPltSection(".iplt", ctx.RelaIplt, true)

	ctx.Dynsym = NewSymtabSection(".dynsym", true, ctx.Dynstr)
	ctx.Symtab = NewSymtabSection(".symtab", false, ctx.Strtab)

	ctx.HashTab = NewHashSection(ctx.Dynsym)
	ctx.GnuHashTab = NewGnuHashSection(ctx.Dynsym)

	ctx.Dynamic = NewDynamicSection()

	ctx.EhFrame = NewEhFrameSection()
	ctx.EhFrameHdr = NewEhFrameHeaderSection(ctx.EhFrame)

	ctx.BuildID = NewBuildIDSection(cfg.BuildID, cfg.BuildIDHex)

	ctx.VerDef = NewVersionDefSection()
	ctx.VerSym = NewVersionSymSection(ctx.Dynsym)
	ctx.VerNeed = NewVersionNeedSection()

	ctx.GdbIndex = NewGdbIndexSection()

	ctx.MipsAbiflags = NewMipsAbiflagsSection()
	ctx.MipsOptions = NewMipsOptionsSection()
	ctx.Reginfo = NewReginfoSection()
	ctx.MipsRldMap = NewMipsRldMapSection()
	ctx.ArmExidx = NewArmExidxSentinel()

	ctx.CapRelocs = NewCapRelocsSection()

	ctx.Comment = NewCommentSection()
	ctx.Interp = NewInterpSection(cfg.DynamicLinker)
	ctx.Bss = NewBssSection(".bss")
	ctx.Tbss = NewBssSection(".tbss")

	return ctx
}

// AllSections returns every well-known section in finalize order: string
// tables, GOT/PLT/bss, .eh_frame, then hash and symbol tables, version
// tables, relocation tables, and after them the header and auxiliary
// sections (__cap_relocs, build-id, .eh_frame_hdr, .gdb_index, the
// MIPS/ARM sections, .comment, .interp), with .dynamic last since its
// entries read the others' sizes. Callers run Finalize over this slice in order.
func (ctx *Context) AllSections() []Section {
	return []Section{
		ctx.Dynstr, ctx.Strtab,
		ctx.Got, ctx.MipsGot, ctx.GotPlt, ctx.IgotPlt,
		ctx.Plt, ctx.Iplt,
		ctx.Bss, ctx.Tbss,
		ctx.EhFrame,
		ctx.GnuHashTab, ctx.HashTab,
		ctx.Dynsym, ctx.Symtab,
		ctx.VerDef, ctx.VerSym, ctx.VerNeed,
		ctx.RelaDyn, ctx.RelaPlt, ctx.RelaIplt,
		ctx.CapRelocs,
		ctx.BuildID,
		ctx.EhFrameHdr,
		ctx.GdbIndex,
		ctx.MipsAbiflags, ctx.MipsOptions, ctx.Reginfo, ctx.MipsRldMap, ctx.ArmExidx,
		ctx.Comment, ctx.Interp,
		ctx.Dynamic,
	}
}

// FinalizeAll runs Finalize over every well-known section in the
// dependency order from spec.md §2. It always calls Finalize, even on a
// section that turns out Empty, because later sections (e.g. Dynsym,
// which asks GnuHashTab whether it has any hashed symbols) rely on that
// state having already been computed. Safe to call more than once
// (Finalize itself is idempotent).
func (ctx *Context) FinalizeAll() {
	for _, s := range ctx.AllSections() {
		if s == nil {
			continue
		}
		s.Finalize(ctx)
	}
}
