package synth

import (
	"debug/elf"

	"github.com/synthlink/sve/pkg/obj"
)

// CapRelocRecord is one already-validated CHERI __cap_relocs entry
// (spec.md §4.15): a 40-byte (location, object, offset, size,
// permissions) record backed by two absolute relocations at +0 and +8.
// Validating record size/relocation-count/relocation-type and that the
// location symbol lives in the same file is the relocation scanner's
// job (out of scope here); this section only assembles and writes
// already-validated records.
type CapRelocRecord struct {
	Location *obj.Symbol
	Target   *obj.Symbol
	Offset   uint64
	// Size is the target's size, used only when SizeKnown is true;
	// SizeKnown false triggers the enclosing-output-section-size fallback
	// (with a warning) per spec.md §4.15.
	Size       uint64
	SizeKnown  bool
	IsFunction bool
}

// CapRelocsSection is __cap_relocs.
type CapRelocsSection struct {
	Base

	records []CapRelocRecord
}

func NewCapRelocsSection() *CapRelocsSection {
	return &CapRelocsSection{Base: NewBase("__cap_relocs", uint32(elf.SHT_PROGBITS), uint64(elf.SHF_ALLOC|elf.SHF_WRITE), 8, 40)}
}

func (c *CapRelocsSection) AddRecord(ctx *Context, r CapRelocRecord) {
	c.guardMutable(ctx.Sink, c.NameVal)
	c.records = append(c.records, r)
}

func (c *CapRelocsSection) Size() uint64 { return uint64(len(c.records)) * 40 }
func (c *CapRelocsSection) Empty() bool  { return len(c.records) == 0 }

// Finalize emits the dynamic RELATIVE relocations spec.md §4.15
// requires: for the location slot whenever the output is
// position-independent, and for the target slot when the target symbol
// is itself preemptible or the output is position-independent.
func (c *CapRelocsSection) Finalize(ctx *Context) {
	if c.Finalized() {
		return
	}
	defer c.MarkFinalized()

	pic := ctx.Config.Pic || ctx.Config.Pie
	relative := ctx.Target.RelativeRel()
	for i, r := range c.records {
		base := uint64(i) * 40
		if pic {
			ctx.RelaDyn.AddReloc(DynamicReloc{Type: relative, Target: c, Offset: base, Symbol: r.Location, UseSymVA: true})
		}
		if r.Target != nil && (pic || r.Target.IsPreemptible()) {
			ctx.RelaDyn.AddReloc(DynamicReloc{Type: relative, Target: c, Offset: base + 8, Symbol: r.Target, Addend: int64(r.Offset), UseSymVA: true})
		}
	}
}

func (c *CapRelocsSection) Write(ctx *Context, buf []byte) {
	pic := ctx.Config.Pic || ctx.Config.Pie
	for i, r := range c.records {
		off := i * 40

		if !pic {
			writeU64(buf[off:], r.Location.VA(0))
		}

		if r.Target != nil {
			if !pic && !r.Target.IsPreemptible() {
				writeU64(buf[off+8:], r.Target.VA(0))
			}
		}

		writeU64(buf[off+16:], r.Offset)

		size := r.Size
		if !r.SizeKnown {
			if r.Target != nil && r.Target.File != nil {
				ctx.Sink.Warnf("", 0, "__cap_relocs: unknown target size, falling back to enclosing output section size")
			}
			if os, ok := r.Target.Def.(*obj.InputSection); ok && os.OutSec != nil {
				size = os.OutSec.Size
			}
		}
		writeU64(buf[off+24:], size)

		perm := uint64(0)
		if r.IsFunction {
			perm = uint64(1) << 63
		}
		writeU64(buf[off+32:], perm)
	}
}
