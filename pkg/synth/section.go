// Package synth implements the synthetic-section engine: the linker
// components that build, finalize and serialise the GOT, PLT, dynamic
// section, relocation tables, symbol/string tables, hash tables,
// .eh_frame(+hdr), build-id, mergeable strings, version sections,
// .gdb_index, the MIPS/ARM auxiliary sections and the CHERI
// __cap_relocs table.
//
// Every concrete section follows the same lifecycle:
//
//	CREATED -> (AddSection*/AddEntry*) -> FINALIZED -> WRITTEN
//
// Transitions are one-way; Finalize is idempotent (a second call is a
// no-op), and mutating a section after it has been finalized is a
// contract violation reported through the Context's diagnostics sink.
package synth

import (
	"github.com/synthlink/sve/pkg/diag"
	"github.com/synthlink/sve/pkg/obj"
)

// Addressable is implemented by every concrete section through the Base
// it embeds: it lets relocation tables and other cross-referencing
// components compute a target's VA without needing to know its concrete
// type (spec.md §3: "a back-reference to the containing output section
// supplying final virtual address").
type Addressable interface {
	VA(offset uint64) uint64
}

// Section is the trait every synthetic section implements (spec.md §3's
// SyntheticSection, §9's "tagged variants with a shared trait" design
// note — no inheritance hierarchy, just this interface).
type Section interface {
	Name() string
	Type() uint32
	Flags() uint64
	Align() uint64
	EntSize() uint64
	Size() uint64
	Empty() bool
	Finalize(ctx *Context)
	Write(ctx *Context, buf []byte)
}

// Base implements the bookkeeping every concrete section shares: its
// identity, its finalized flag, and the panic-as-fatal guard against
// registering entries after Finalize. Concrete sections embed Base and
// override Size/Empty/Finalize/Write.
type Base struct {
	NameVal    string
	TypeVal    uint32
	FlagsVal   uint64
	AlignVal   uint64
	EntSizeVal uint64

	// OutSec is filled in by the writer once output layout has run; every
	// Write/VA call in this package happens after that point.
	OutSec *obj.OutputSection

	finalized bool
}

// VA returns the virtual address of offset bytes into this section's own
// content, per the OutputSection back-reference described in spec.md §3.
func (b *Base) VA(offset uint64) uint64 {
	return b.OutSec.VA(offset)
}

func NewBase(name string, typ uint32, flags, align, entSize uint64) Base {
	if align == 0 {
		align = 1
	}
	return Base{NameVal: name, TypeVal: typ, FlagsVal: flags, AlignVal: align, EntSizeVal: entSize}
}

func (b *Base) Name() string    { return b.NameVal }
func (b *Base) Type() uint32    { return b.TypeVal }
func (b *Base) Flags() uint64   { return b.FlagsVal }
func (b *Base) Align() uint64   { return b.AlignVal }
func (b *Base) EntSize() uint64 { return b.EntSizeVal }

// Finalized reports whether Finalize has already run once.
func (b *Base) Finalized() bool { return b.finalized }

// MarkFinalized is called by each concrete Finalize after doing its
// one-time work; subsequent Finalize calls check Finalized() first and
// return early, giving every section the idempotence invariant for free.
func (b *Base) MarkFinalized() { b.finalized = true }

// guardMutable panics via the sink when a caller tries to register a new
// entry on a section that has already been finalized.
func (b *Base) guardMutable(sink *diag.Sink, section string) {
	if b.finalized {
		sink.Fatalf("", 0, "%s: AddEntry/AddSection after Finalize", section)
	}
}
