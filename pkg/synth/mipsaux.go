package synth

import (
	"debug/elf"

	"github.com/synthlink/sve/pkg/obj"
)

// MipsAbiFlags is the per-input .MIPS.abiflags descriptor (spec.md
// §4.14): the fields a merge pass combines across every contributing
// object file.
type MipsAbiFlags struct {
	IsaLevel, IsaRev, IsaExt     uint8
	GprSize, Cpr1Size, Cpr2Size uint8
	Ases                         uint32
	Flags1, Flags2               uint32
	FpAbi                        uint8
}

// MipsAbiflagsSection is .MIPS.abiflags.
type MipsAbiflagsSection struct {
	Base

	merged  MipsAbiFlags
	any     bool
	warned  bool
}

func NewMipsAbiflagsSection() *MipsAbiflagsSection {
	return &MipsAbiflagsSection{Base: NewBase(".MIPS.abiflags", 0x7000002a /* SHT_MIPS_ABIFLAGS */, uint64(elf.SHF_ALLOC), 8, 24)}
}

func max8(a, b uint8) uint8 {
	if a > b {
		return a
	}
	return b
}

// AddInput merges one input file's descriptor in, per spec.md §4.14's
// element-wise max / bitwise-OR rules. Seeing more than one descriptor
// is a non-fatal ABI warning (spec.md §7); processing continues using
// the merged value.
func (m *MipsAbiflagsSection) AddInput(ctx *Context, f *MipsAbiFlags) {
	m.guardMutable(ctx.Sink, m.NameVal)
	if m.any && !m.warned {
		ctx.Sink.Warnf("", 0, ".MIPS.abiflags: multiple input descriptors, merging")
		m.warned = true
	}
	if !m.any {
		m.merged = *f
		m.any = true
		return
	}
	m.merged.IsaLevel = max8(m.merged.IsaLevel, f.IsaLevel)
	m.merged.IsaRev = max8(m.merged.IsaRev, f.IsaRev)
	m.merged.IsaExt = max8(m.merged.IsaExt, f.IsaExt)
	m.merged.GprSize = max8(m.merged.GprSize, f.GprSize)
	m.merged.Cpr1Size = max8(m.merged.Cpr1Size, f.Cpr1Size)
	m.merged.Cpr2Size = max8(m.merged.Cpr2Size, f.Cpr2Size)
	m.merged.Ases |= f.Ases
	m.merged.Flags1 |= f.Flags1
	m.merged.Flags2 |= f.Flags2
	m.merged.FpAbi = ctx.Target.CombineMipsFpAbi(m.merged.FpAbi, f.FpAbi)
}

func (m *MipsAbiflagsSection) Size() uint64 { return 24 }
func (m *MipsAbiflagsSection) Empty() bool  { return !m.any }

func (m *MipsAbiflagsSection) Finalize(ctx *Context) {
	if m.Finalized() {
		return
	}
	m.MarkFinalized()
}

func (m *MipsAbiflagsSection) Write(ctx *Context, buf []byte) {
	writeU16(buf, 0) // version
	buf[2] = m.merged.IsaLevel
	buf[3] = m.merged.IsaRev
	buf[4] = m.merged.GprSize
	buf[5] = m.merged.Cpr1Size
	buf[6] = m.merged.Cpr2Size
	buf[7] = m.merged.FpAbi
	writeU32(buf[8:], uint32(m.merged.IsaExt)) // isa_ext
	writeU32(buf[12:], m.merged.Ases)
	writeU32(buf[16:], m.merged.Flags1)
	writeU32(buf[20:], m.merged.Flags2)
}

// MipsOptionsSection is .MIPS.options (N64 only): ORs ri_gprmask across
// inputs, captures each file's ri_gp_value, writes the final GP at
// write time (spec.md §4.14).
type MipsOptionsSection struct {
	Base

	gprMask  uint32
	gpValues map[*obj.File]uint64
	any      bool
}

func NewMipsOptionsSection() *MipsOptionsSection {
	return &MipsOptionsSection{
		Base:     NewBase(".MIPS.options", 0x7000000d /* SHT_MIPS_OPTIONS */, uint64(elf.SHF_ALLOC), 8, 0),
		gpValues: map[*obj.File]uint64{},
	}
}

func (m *MipsOptionsSection) AddInput(ctx *Context, f *obj.File, gprMask uint32, gpValue uint64) {
	m.guardMutable(ctx.Sink, m.NameVal)
	m.gprMask |= gprMask
	m.gpValues[f] = gpValue
	m.any = true
}

// regInfoSize is the fixed size of a single ODK_REGINFO option block
// (the ri_* struct), used both here and by ReginfoSection.
const regInfoSize = 24

func (m *MipsOptionsSection) Size() uint64 {
	if !m.any {
		return 0
	}
	return 8 + regInfoSize // odk_* header + one ODK_REGINFO block
}

func (m *MipsOptionsSection) Empty() bool { return !m.any }

func (m *MipsOptionsSection) Finalize(ctx *Context) {
	if m.Finalized() {
		return
	}
	m.MarkFinalized()
}

func (m *MipsOptionsSection) gpValue() uint64 {
	for _, v := range m.gpValues {
		return v
	}
	return 0
}

func (m *MipsOptionsSection) Write(ctx *Context, buf []byte) {
	buf[0] = 1 // ODK_REGINFO
	buf[1] = regInfoSize
	writeU16(buf[2:], 8+regInfoSize)
	writeU32(buf[4:], 0)
	writeU32(buf[8:], m.gprMask)
	writeU64(buf[16:], m.gpValue())
}

// ReginfoSection is .reginfo (O32/N32 only): the same ri_gprmask/
// ri_gp_value fields without the ODK_* options wrapper.
type ReginfoSection struct {
	Base

	gprMask  uint32
	gpValues map[*obj.File]uint64
	any      bool
}

func NewReginfoSection() *ReginfoSection {
	return &ReginfoSection{
		Base:     NewBase(".reginfo", 0x70000006 /* SHT_MIPS_REGINFO */, uint64(elf.SHF_ALLOC), 4, regInfoSize),
		gpValues: map[*obj.File]uint64{},
	}
}

func (r *ReginfoSection) AddInput(ctx *Context, f *obj.File, gprMask uint32, gpValue uint64) {
	r.guardMutable(ctx.Sink, r.NameVal)
	r.gprMask |= gprMask
	r.gpValues[f] = gpValue
	r.any = true
}

func (r *ReginfoSection) Size() uint64 {
	if !r.any {
		return 0
	}
	return regInfoSize
}

func (r *ReginfoSection) Empty() bool { return !r.any }

func (r *ReginfoSection) Finalize(ctx *Context) {
	if r.Finalized() {
		return
	}
	r.MarkFinalized()
}

func (r *ReginfoSection) gpValue() uint64 {
	for _, v := range r.gpValues {
		return v
	}
	return 0
}

func (r *ReginfoSection) Write(ctx *Context, buf []byte) {
	writeU32(buf, r.gprMask)
	writeU64(buf[16:], r.gpValue())
}

// MipsRldMapSection is .rld_map: a single reserved word the runtime
// loader writes its own debug-map pointer into. Content is always zero;
// its address is what DT_MIPS_RLD_MAP points at.
type MipsRldMapSection struct {
	Base

	present bool
}

func NewMipsRldMapSection() *MipsRldMapSection {
	return &MipsRldMapSection{Base: NewBase(".rld_map", uint32(elf.SHT_PROGBITS), uint64(elf.SHF_ALLOC|elf.SHF_WRITE), 8, 0)}
}

func (m *MipsRldMapSection) Enable() { m.present = true }

func (m *MipsRldMapSection) Size() uint64 {
	if !m.present {
		return 0
	}
	return 8
}

func (m *MipsRldMapSection) Empty() bool { return !m.present }

func (m *MipsRldMapSection) Finalize(ctx *Context) {
	if m.Finalized() {
		return
	}
	m.MarkFinalized()
}

func (m *MipsRldMapSection) Write(ctx *Context, buf []byte) {}
