package synth

import "debug/elf"

// BssSection is .bss or .tbss: a NOBITS reservation with no file content.
// ReserveSpace is called once per common/zero-initialized symbol that
// lands here; it returns the offset (respecting the requested alignment)
// the symbol should be defined at.
type BssSection struct {
	Base

	size uint64
}

func NewBssSection(name string) *BssSection {
	flags := uint64(elf.SHF_ALLOC | elf.SHF_WRITE)
	if name == ".tbss" {
		flags |= uint64(elf.SHF_TLS)
	}
	return &BssSection{Base: NewBase(name, uint32(elf.SHT_NOBITS), flags, 1, 0)}
}

// ReserveSpace grows the section by size bytes, aligned to align, and
// returns the offset the reservation starts at.
func (b *BssSection) ReserveSpace(ctx *Context, size, align uint64) uint64 {
	b.guardMutable(ctx.Sink, b.NameVal)
	if align == 0 {
		align = 1
	}
	off := alignUp(b.size, align)
	b.size = off + size
	if align > b.AlignVal {
		b.AlignVal = align
	}
	return off
}

func (b *BssSection) Size() uint64 { return b.size }
func (b *BssSection) Empty() bool  { return b.size == 0 }

func (b *BssSection) Finalize(ctx *Context) {
	if b.Finalized() {
		return
	}
	b.MarkFinalized()
}

// Write is a no-op: NOBITS sections contribute no file content.
func (b *BssSection) Write(ctx *Context, buf []byte) {}
