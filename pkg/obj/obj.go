// Package obj is the input-side facade the synthetic-section engine reads
// from: symbols, input sections and output sections. Parsing object files
// and archives into these types is the object-file reader's job and is out
// of scope here (spec.md §1); this package only defines the shapes, in the
// same spirit as the teacher's linker.Symbol / linker.InputSection /
// linker.OutputSection, generalized so a caller (engine or test) can build
// them directly without going through a real .o reader.
package obj

// NoIndex is the sentinel stored in every per-symbol index cache before a
// synthetic section assigns it a real slot.
const NoIndex = -1

type Binding uint8

const (
	Local Binding = iota
	Global
	Weak
)

type Visibility uint8

const (
	Default Visibility = iota
	Internal
	Hidden
	Protected
)

type SymType uint8

const (
	NoType SymType = iota
	Object
	Func
	Section
	TLSObject
	IFunc
)

type DefKind uint8

const (
	Undefined DefKind = iota
	Regular            // defined in one of this link's input sections
	Absolute
	Common
	Shared // defined in a DSO this link depends on
)

// Addressable is implemented by anything a Symbol can be defined relative
// to: an InputSection, or (from pkg/synth) a mergeable-string SectionFragment.
type Addressable interface {
	VA(offset uint64) uint64
}

// OutputSection is the external output-section abstraction from spec.md
// §3: the writer owns and mutates it; the engine only reads it once the
// layout pass has run.
type OutputSection struct {
	Name      string
	Type      uint32
	Flags     uint64
	Addr      uint64
	Offset    uint64
	Size      uint64
	Link      uint32
	Info      uint32
	Index     uint32
	AddrAlign uint64
}

func (o *OutputSection) VA(offset uint64) uint64 { return o.Addr + offset }

// InputSection is one input object's contribution to an OutputSection.
type InputSection struct {
	File   *File
	Name   string
	OutSec *OutputSection
	Offset uint64 // offset of this piece within OutSec
	Size   uint64
}

func (s *InputSection) VA(offset uint64) uint64 {
	return s.OutSec.VA(s.Offset + offset)
}

// File is one input object or shared-object dependency.
type File struct {
	Name   string
	IsDSO  bool
	SoName string

	Symbols  []*Symbol
	Sections []*InputSection

	// MipsGotIndex is the index, in the linker's merged MIPS GOT list, of
	// the FileGot partition this file ended up in after MipsGotSection's
	// build() merge pass. -1 until assigned.
	MipsGotIndex int
}

func NewFile(name string) *File {
	return &File{Name: name, MipsGotIndex: -1}
}

// Symbol is the per-symbol record the engine reads and caches indices
// into, mirroring spec.md §3's Symbol abstraction.
type Symbol struct {
	Name       string
	Binding    Binding
	Visibility Visibility
	Type       SymType
	DefKind    DefKind

	File  *File       // defining file; nil when Undefined
	Def   Addressable // set for Regular/fragment-backed symbols
	Value uint64      // offset within Def, absolute value, or common alignment
	Size  uint64

	// Index caches, written exactly once by the synthetic section that
	// owns them (spec.md §5).
	GotIndex       int
	GotPltIndex    int
	PltIndex       int
	DynsymIndex    int
	GlobalDynIndex int
	GotTpIndex     int

	IsInIplt       bool
	NeedsCopyReloc bool
	VersionIdx     uint16

	// NeedsPltPointerEquality is set by relocation scanning when a
	// function's address is taken as a value rather than only called;
	// the symbol table write pass ORs STO_MIPS_PLT for it on MIPS.
	NeedsPltPointerEquality bool
}

func NewSymbol(name string) *Symbol {
	return &Symbol{
		Name:           name,
		GotIndex:       NoIndex,
		GotPltIndex:    NoIndex,
		PltIndex:       NoIndex,
		DynsymIndex:    NoIndex,
		GlobalDynIndex: NoIndex,
		GotTpIndex:     NoIndex,
	}
}

func (s *Symbol) IsDefined() bool   { return s.DefKind != Undefined }
func (s *Symbol) IsUndefined() bool { return s.DefKind == Undefined }
func (s *Symbol) IsAbsolute() bool  { return s.DefKind == Absolute }
func (s *Symbol) IsCommon() bool    { return s.DefKind == Common }
func (s *Symbol) IsInDSO() bool     { return s.DefKind == Shared }

// IsPreemptible mirrors LLD's notion: a non-local symbol that is either
// unresolved within this link or defined in a shared dependency may be
// overridden at load time by another shared object.
func (s *Symbol) IsPreemptible() bool {
	if s.Binding == Local {
		return false
	}
	if s.Visibility != Default {
		return false
	}
	return s.DefKind == Undefined || s.DefKind == Shared
}

// VA returns this symbol's virtual address plus addend, per spec.md §3
// ("virtual address computed from its defining section plus offset").
func (s *Symbol) VA(addend uint64) uint64 {
	switch s.DefKind {
	case Absolute, Common:
		return s.Value + addend
	case Regular:
		if s.Def != nil {
			return s.Def.VA(s.Value + addend)
		}
		return s.Value + addend
	default:
		return 0
	}
}

// SymbolSet is the minimal "well-known symbol lookup" the dynamic section
// needs for DT_INIT/DT_FINI resolution (spec.md §6's findInCurrentDSO).
type SymbolSet struct {
	byName map[string]*Symbol
}

func NewSymbolSet() *SymbolSet { return &SymbolSet{byName: map[string]*Symbol{}} }

func (s *SymbolSet) Add(sym *Symbol) { s.byName[sym.Name] = sym }

// FindInCurrentDSO returns the symbol named name only if it is defined by
// one of this link's own input files (DefKind == Regular), never a symbol
// that resolves into an external DSO.
func (s *SymbolSet) FindInCurrentDSO(name string) *Symbol {
	sym, ok := s.byName[name]
	if !ok || sym.DefKind != Regular {
		return nil
	}
	return sym
}
