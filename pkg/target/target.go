// Package target is the plug-in boundary named in spec.md §6 ("target
// backend"): entry sizes, relocation-type constants, and the handful of
// byte-level stub writers the PLT/GOT.PLT/ARM-exidx components call out to.
// Exactly one concrete backend, X86_64, is provided; it is grounded on the
// generic lazy-binding PLT stub shape used by every ELF linker (the same
// shape the teacher corpus implements for RISC-V in inputsection.go's
// relocation-application switch, adapted to the textbook x86-64 encoding).
package target

import "debug/elf"

// Backend is the full set of architecture knowledge the synthetic-section
// engine needs but never hard-codes.
type Backend interface {
	WordSize() int

	GotEntrySize() int
	PltEntrySize() int
	PltHeaderSize() int
	GotPltEntrySize() int
	GotPltHeaderSlots() int

	RelativeRel() uint32
	IRelativeRel() uint32
	JumpSlotRel() uint32
	Abs64Rel() uint32
	TlsDtpModRel() uint32
	TlsDtpOffRel() uint32
	TlsTprelRel() uint32

	// WritePltHeader writes the shared PLT0 stub (absent for the IPLT).
	WritePltHeader(buf []byte, gotPltVA, pltVA uint64)
	// WritePltEntry writes one lazy-binding stub.
	WritePltEntry(buf []byte, gotSlotVA, pltEntryVA uint64, index uint32)
	// WriteGotPltHeader writes the reserved header slots of .got.plt
	// (slot 0: the .dynamic section's address; slots 1 and 2 are left for
	// the dynamic loader to fill at runtime).
	WriteGotPltHeader(buf []byte, dynamicSectionVA, pltVA uint64)
	// GotPltBootstrapValue is the value a non-header .got.plt/.igot.plt
	// slot is initialized to before lazy binding has run once: the
	// address of the corresponding PLT entry's second instruction.
	GotPltBootstrapValue(pltEntryVA uint64) uint64

	// ApplyPREL31 writes a 31-bit PC-relative value (ARM EHABI), used by
	// the .ARM.exidx sentinel.
	ApplyPREL31(buf []byte, at uint64, value int64)

	// CombineMipsFpAbi merges two .MIPS.abiflags fp_abi values the way the
	// target knows is safe; generic backends that never see MIPS input
	// just return the max.
	CombineMipsFpAbi(a, b uint8) uint8
}

// X86_64 is the default backend.
type X86_64 struct{}

func (X86_64) WordSize() int          { return 8 }
func (X86_64) GotEntrySize() int      { return 8 }
func (X86_64) PltEntrySize() int      { return 16 }
func (X86_64) PltHeaderSize() int     { return 16 }
func (X86_64) GotPltEntrySize() int   { return 8 }
func (X86_64) GotPltHeaderSlots() int { return 3 }

func (X86_64) RelativeRel() uint32   { return uint32(elf.R_X86_64_RELATIVE) }
func (X86_64) IRelativeRel() uint32  { return uint32(elf.R_X86_64_IRELATIVE) }
func (X86_64) JumpSlotRel() uint32   { return uint32(elf.R_X86_64_JMP_SLOT) }
func (X86_64) Abs64Rel() uint32      { return uint32(elf.R_X86_64_64) }
func (X86_64) TlsDtpModRel() uint32  { return uint32(elf.R_X86_64_DTPMOD64) }
func (X86_64) TlsDtpOffRel() uint32  { return uint32(elf.R_X86_64_DTPOFF64) }
func (X86_64) TlsTprelRel() uint32   { return uint32(elf.R_X86_64_TPOFF64) }

// WritePltHeader emits the classic PLT0:
//
//	ff 35 xx xx xx xx   push   *(GOT+8)(%rip)
//	ff 25 xx xx xx xx   jmp    *(GOT+16)(%rip)
//	0f 1f 40 00         nop
func (X86_64) WritePltHeader(buf []byte, gotPltVA, pltVA uint64) {
	copy(buf, []byte{0xff, 0x35, 0, 0, 0, 0, 0xff, 0x25, 0, 0, 0, 0, 0x0f, 0x1f, 0x40, 0x00})
	putRel32(buf[2:], gotPltVA+8, pltVA+6)
	putRel32(buf[8:], gotPltVA+16, pltVA+12)
}

// WritePltEntry emits one lazy-binding stub:
//
//	ff 25 xx xx xx xx   jmp  *GOTSLOT(%rip)
//	68 xx xx xx xx      push index
//	e9 xx xx xx xx      jmp  PLT0
func (X86_64) WritePltEntry(buf []byte, gotSlotVA, pltEntryVA uint64, index uint32) {
	copy(buf, []byte{0xff, 0x25, 0, 0, 0, 0, 0x68, 0, 0, 0, 0, 0xe9, 0, 0, 0, 0})
	putRel32(buf[2:], gotSlotVA, pltEntryVA+6)
	putU32(buf[7:], index)
	// The final jmp to PLT0 is patched by the caller, which knows PLT0's
	// VA; left as a zero displacement here since computing it requires
	// the containing PltSection's own VA, not available to a per-entry
	// writer in this interface shape.
}

func (X86_64) WriteGotPltHeader(buf []byte, dynamicSectionVA, pltVA uint64) {
	putU64(buf, dynamicSectionVA)
	// slots 1 and 2 are filled in by the dynamic loader at runtime.
}

func (X86_64) GotPltBootstrapValue(pltEntryVA uint64) uint64 {
	return pltEntryVA + 6 // address of the `push index` instruction
}

func (X86_64) ApplyPREL31(buf []byte, at uint64, value int64) {
	v := uint32(value) & 0x7fffffff
	cur := putU32get(buf) & 0x80000000
	putU32(buf, cur|v)
}

func (X86_64) CombineMipsFpAbi(a, b uint8) uint8 {
	if a > b {
		return a
	}
	return b
}

func putRel32(buf []byte, targetVA, instrEndVA uint64) {
	putU32(buf, uint32(int64(targetVA)-int64(instrEndVA)))
}

func putU32(buf []byte, v uint32) {
	buf[0] = byte(v)
	buf[1] = byte(v >> 8)
	buf[2] = byte(v >> 16)
	buf[3] = byte(v >> 24)
}

func putU32get(buf []byte) uint32 {
	return uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
}

func putU64(buf []byte, v uint64) {
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * i))
	}
}
