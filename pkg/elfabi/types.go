// Package elfabi defines the raw, fixed-layout ELF64 wire structures this
// module reads and writes, plus the handful of GNU/MIPS/CHERI constants
// that debug/elf does not carry. Symbolic constants that debug/elf already
// exports (SHT_*, STT_*, STB_*, DT_* base set, R_*) are used directly from
// that package rather than redefined here.
package elfabi

import "unsafe"

const (
	EhdrSize = int(unsafe.Sizeof(Ehdr{}))
	ShdrSize = int(unsafe.Sizeof(Shdr{}))
	PhdrSize = int(unsafe.Sizeof(Phdr{}))
	SymSize  = int(unsafe.Sizeof(Sym{}))
	RelaSize = int(unsafe.Sizeof(Rela{}))
	DynSize  = int(unsafe.Sizeof(Dyn{}))
	NhdrSize = int(unsafe.Sizeof(Nhdr{}))

	VerdefSize  = int(unsafe.Sizeof(Verdef{}))
	VerdauxSize = int(unsafe.Sizeof(Verdaux{}))
	VerneedSize = int(unsafe.Sizeof(Verneed{}))
	VernauxSize = int(unsafe.Sizeof(Vernaux{}))

	CapRelocSize = 40
)

type Ehdr struct {
	Ident     [16]uint8
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint64
	PhOff     uint64
	ShOff     uint64
	Flags     uint32
	EhSize    uint16
	PhEntSize uint16
	PhNum     uint16
	ShEntSize uint16
	ShNum     uint16
	ShStrndx  uint16
}

type Shdr struct {
	Name      uint32
	Type      uint32
	Flags     uint64
	Addr      uint64
	Offset    uint64
	Size      uint64
	Link      uint32
	Info      uint32
	AddrAlign uint64
	EntSize   uint64
}

type Phdr struct {
	Type     uint32
	Flags    uint32
	Offset   uint64
	VAddr    uint64
	PAddr    uint64
	FileSize uint64
	MemSize  uint64
	Align    uint64
}

type Sym struct {
	Name  uint32
	Info  uint8
	Other uint8
	Shndx uint16
	Val   uint64
	Size  uint64
}

func (s *Sym) Bind() uint8 { return s.Info >> 4 }
func (s *Sym) Type() uint8 { return s.Info & 0xf }

func SetSymInfo(bind, typ uint8) uint8 {
	return bind<<4 | typ&0xf
}

// Rela is an Elf64_Rela.
type Rela struct {
	Offset uint64
	Info   uint64 // (sym << 32) | type
	Addend int64
}

func RelaInfo(sym uint32, typ uint32) uint64 {
	return uint64(sym)<<32 | uint64(typ)
}

// Dyn is an Elf64_Dyn.
type Dyn struct {
	Tag int64
	Val uint64
}

// Nhdr is an Elf64/32 common note header (Elf_Nhdr); namesz/descsz/type are
// 32-bit regardless of ELF class.
type Nhdr struct {
	NameSz uint32
	DescSz uint32
	Type   uint32
}

// Verdef / Verdaux describe .gnu.version_d entries (Elf64_Verdef/Verdaux).
type Verdef struct {
	Version uint16
	Flags   uint16
	Ndx     uint16
	Cnt     uint16
	Hash    uint32
	Aux     uint32
	Next    uint32
}

type Verdaux struct {
	Name uint32
	Next uint32
}

// Verneed / Vernaux describe .gnu.version_r entries (Elf64_Verneed/Vernaux).
type Verneed struct {
	Version uint16
	Cnt     uint16
	File    uint32
	Aux     uint32
	Next    uint32
}

type Vernaux struct {
	Hash  uint32
	Flags uint16
	Other uint16
	Name  uint32
	Next  uint32
}

// Extra dynamic tags and flags not present in debug/elf.
const (
	DT_GNU_HASH        int64 = 0x6ffffef5
	DT_RELACOUNT       int64 = 0x6ffffff9
	DT_RELCOUNT        int64 = 0x6ffffffa
	DT_VERSYM          int64 = 0x6ffffff0
	DT_VERDEF          int64 = 0x6ffffffc
	DT_VERDEFNUM       int64 = 0x6ffffffd
	DT_VERNEED         int64 = 0x6ffffffe
	DT_VERNEEDNUM      int64 = 0x6fffffff
	DT_MIPS_RLD_VERSION int64 = 0x70000001
	DT_MIPS_FLAGS       int64 = 0x70000005
	DT_MIPS_BASE_ADDRESS int64 = 0x70000006
	DT_MIPS_LOCAL_GOTNO  int64 = 0x7000000a
	DT_MIPS_SYMTABNO     int64 = 0x70000011
	DT_MIPS_GOTSYM       int64 = 0x70000013
	DT_MIPS_RLD_MAP      int64 = 0x70000016

	RHF_NOTPOT uint64 = 0x1

	VER_FLG_BASE uint16 = 0x1
	VER_FLG_WEAK uint16 = 0x2

	VER_NDX_LOCAL  uint16 = 0
	VER_NDX_GLOBAL uint16 = 1

	STO_MIPS_PLT uint8 = 0x8
	STO_MIPS_PIC uint8 = 0x20

	NT_GNU_BUILD_ID uint32 = 3

	EXIDX_CANTUNWIND uint32 = 0x1

	// DWARF pointer-encoding bits used by .eh_frame / .eh_frame_hdr.
	DW_EH_PE_absptr  uint8 = 0x00
	DW_EH_PE_udata2  uint8 = 0x02
	DW_EH_PE_udata4  uint8 = 0x03
	DW_EH_PE_udata8  uint8 = 0x04
	DW_EH_PE_sdata4  uint8 = 0x0b
	DW_EH_PE_pcrel   uint8 = 0x10
	DW_EH_PE_datarel uint8 = 0x30
)
