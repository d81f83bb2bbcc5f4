package synth

import (
	"debug/elf"
	"sort"

	"github.com/synthlink/sve/pkg/elfabi"
	"github.com/synthlink/sve/pkg/obj"
	"github.com/synthlink/sve/pkg/utils"
)

// stlGNUIFunc is STT_GNU_IFUNC, a GNU extension not defined by debug/elf.
const stlGNUIFunc = 10

// SymtabSection implements both .dynsym and .symtab (spec.md §4.7): a
// common base of (symbol, string-table-offset) entries plus the linked
// string table, differing only in ordering and partitioning rules.
type SymtabSection struct {
	Base

	isDynamic   bool
	strtab      *StrtabSection
	entries     []*obj.Symbol
	nameOffsets []uint32

	InfoVal uint32
}

func NewSymtabSection(name string, isDynamic bool, strtab *StrtabSection) *SymtabSection {
	typ := uint32(elf.SHT_SYMTAB)
	flags := uint64(0)
	if isDynamic {
		typ = uint32(elf.SHT_DYNSYM)
		flags = uint64(elf.SHF_ALLOC)
	}
	return &SymtabSection{
		Base:      NewBase(name, typ, flags, 8, uint64(elfabi.SymSize)),
		isDynamic: isDynamic,
		strtab:    strtab,
	}
}

// AddSymbol registers sym for inclusion. The dynamic symbol table only
// ever receives non-local (global/weak) symbols; the regular symbol
// table receives everything the writer decides to keep.
func (t *SymtabSection) AddSymbol(sym *obj.Symbol) {
	t.entries = append(t.entries, sym)
}

func (t *SymtabSection) Size() uint64 { return uint64(len(t.entries)+1) * uint64(elfabi.SymSize) }
func (t *SymtabSection) Empty() bool  { return len(t.entries) == 0 }

func (t *SymtabSection) Finalize(ctx *Context) {
	if t.Finalized() {
		return
	}

	if t.isDynamic {
		t.finalizeDynsym(ctx)
	} else {
		t.finalizeSymtab(ctx)
	}

	t.nameOffsets = make([]uint32, len(t.entries))
	for i, sym := range t.entries {
		t.nameOffsets[i] = t.strtab.Add(sym.Name)
	}

	t.MarkFinalized()
}

// finalizeDynsym orders entries per spec.md §4.7: delegate to the GNU
// hash table's ordering requirement when one exists; else on MIPS order
// by GOT membership; else preserve insertion order.
func (t *SymtabSection) finalizeDynsym(ctx *Context) {
	switch {
	case ctx.GnuHashTab != nil && ctx.GnuHashTab.HasSymbols():
		t.entries = ctx.GnuHashTab.ReorderSymbols(t.entries)
	case ctx.Config.Machine == elf.EM_MIPS:
		sort.SliceStable(t.entries, func(i, j int) bool {
			iIn := t.entries[i].GotIndex != obj.NoIndex
			jIn := t.entries[j].GotIndex != obj.NoIndex
			if iIn != jIn {
				return !iIn // not-in-GOT entries come first
			}
			if iIn && jIn {
				return t.entries[i].GotIndex < t.entries[j].GotIndex
			}
			return false
		})
	}

	for i, sym := range t.entries {
		sym.DynsymIndex = i + 1
	}
	// dynsym has no locals: info is the index of the first non-local,
	// which is always 1.
	t.InfoVal = 1
}

// finalizeSymtab stable-partitions locals first, per spec.md §4.7, and
// applies the MIPS STO_MIPS_PLT / STO_MIPS_PIC post-pass.
func (t *SymtabSection) finalizeSymtab(ctx *Context) {
	sort.SliceStable(t.entries, func(i, j int) bool {
		iLocal := t.entries[i].Binding == obj.Local
		jLocal := t.entries[j].Binding == obj.Local
		return iLocal && !jLocal
	})

	numLocal := 0
	for _, sym := range t.entries {
		if sym.Binding == obj.Local {
			numLocal++
		}
	}

	for i, sym := range t.entries {
		sym.DynsymIndex = i + 1 // reused as the .symtab index too; distinct table, same cache slot is fine since a symbol is never in both roles at once in this engine
	}
	t.InfoVal = uint32(numLocal) + 1
}

func (t *SymtabSection) symOther(ctx *Context, sym *obj.Symbol) uint8 {
	var other uint8
	if uint8(sym.Visibility) != 0 {
		other = uint8(sym.Visibility)
	}
	if ctx.Config.Machine == elf.EM_MIPS {
		if sym.NeedsPltPointerEquality {
			other |= elfabi.STO_MIPS_PLT
		}
		if ctx.Config.Pic && sym.DefKind == obj.Regular && ctx.Config.Relocatable {
			other |= elfabi.STO_MIPS_PIC
		}
	}
	return other
}

func (t *SymtabSection) Write(ctx *Context, buf []byte) {
	// index 0 is the reserved all-zero symbol table entry.
	for i, sym := range t.entries {
		off := (i + 1) * elfabi.SymSize
		rec := elfabi.Sym{
			Name:  t.nameOffsets[i],
			Info:  elfabi.SetSymInfo(bindingCode(sym.Binding), symTypeCode(sym.Type)),
			Other: t.symOther(ctx, sym),
			Shndx: symShndx(sym),
			Val:   symStValue(ctx, sym),
			Size:  sym.Size,
		}
		writeSym(buf[off:], rec)
	}
}

func bindingCode(b obj.Binding) uint8 {
	switch b {
	case obj.Local:
		return uint8(elf.STB_LOCAL)
	case obj.Weak:
		return uint8(elf.STB_WEAK)
	default:
		return uint8(elf.STB_GLOBAL)
	}
}

func symTypeCode(t obj.SymType) uint8 {
	switch t {
	case obj.Object:
		return uint8(elf.STT_OBJECT)
	case obj.Func:
		return uint8(elf.STT_FUNC)
	case obj.Section:
		return uint8(elf.STT_SECTION)
	case obj.TLSObject:
		return uint8(elf.STT_TLS)
	case obj.IFunc:
		return uint8(stlGNUIFunc)
	default:
		return uint8(elf.STT_NOTYPE)
	}
}

func symShndx(sym *obj.Symbol) uint16 {
	switch sym.DefKind {
	case obj.Absolute:
		return uint16(elf.SHN_ABS)
	case obj.Common:
		return uint16(elf.SHN_COMMON)
	case obj.Undefined, obj.Shared:
		return uint16(elf.SHN_UNDEF)
	default:
		if isec, ok := sym.Def.(*obj.InputSection); ok && isec.OutSec != nil {
			return uint16(isec.OutSec.Index)
		}
		return uint16(elf.SHN_UNDEF)
	}
}

// symStValue implements spec.md §4.7's note that uninstantiated commons
// under -r emit their alignment in st_value rather than a VA.
func symStValue(ctx *Context, sym *obj.Symbol) uint64 {
	if sym.DefKind == obj.Common && ctx.Config.Relocatable {
		return sym.Value // alignment, stashed in Value for this case
	}
	return sym.VA(0)
}

func writeSym(buf []byte, s elfabi.Sym) {
	utils.Write(buf, s)
}
