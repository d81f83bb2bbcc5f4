package synth

import (
	"debug/elf"
	"sort"

	"github.com/synthlink/sve/pkg/elfabi"
	"github.com/synthlink/sve/pkg/obj"
)

// EhFramePiece is one already-split (spec.md §4.9's input-splitting is the
// object-file reader's job, out of scope here) CIE or FDE record handed to
// this section by the relocation scanner. An FDE piece is attached to the
// nearest CIE piece added before it; a CIE piece is deduplicated by its
// content/personality pair and leaves Target nil.
type EhFramePiece struct {
	Bytes       []byte // full record including its 4-byte length field
	IsCie       bool
	Personality *obj.Symbol // CIE pieces only; part of the dedup key
	FdeEncoding uint8       // CIE pieces only: DW_EH_PE_* for this CIE's FDEs' pc_begin
	Target      *obj.Symbol // FDE pieces only: live defined-regular target, or nil if dead
}

type cieSlot struct {
	bytes       []byte
	personality *obj.Symbol
	fdeEncoding uint8
	outOffset   uint64
	alignedSize uint64
}

type fdeSlot struct {
	bytes       []byte
	cie         *cieSlot
	outOffset   uint64
	alignedSize uint64
}

// EhFrameSection is .eh_frame (spec.md §4.9).
type EhFrameSection struct {
	Base

	pieces []EhFramePiece

	cieOrder []*cieSlot
	cieKeys  map[string]*cieSlot // key = string(bytes)+personality identity
	fdes     []*fdeSlot          // in final (cie-grouped) write order

	totalSize uint64
}

func NewEhFrameSection() *EhFrameSection {
	return &EhFrameSection{
		Base:    NewBase(".eh_frame", uint32(elf.SHT_PROGBITS), uint64(elf.SHF_ALLOC), 8, 0),
		cieKeys: map[string]*cieSlot{},
	}
}

func (e *EhFrameSection) AddPiece(p EhFramePiece) { e.pieces = append(e.pieces, p) }

func (e *EhFrameSection) Size() uint64 { return e.totalSize }

// Empty per spec.md §4.9 is never literally true: an output with no live
// pieces still needs the 4-byte zero terminator, so it always reserves
// that much space. Treat "logically empty" as zero pieces for purposes of
// whether eh_frame_hdr itself should exist; EhFrameHeaderSection checks
// that separately via HasFdes.
func (e *EhFrameSection) Empty() bool { return false }

func (e *EhFrameSection) HasFdes() bool { return len(e.fdes) > 0 }

func alignUp(v, align uint64) uint64 {
	return (v + align - 1) &^ (align - 1)
}

// Finalize implements the CIE dedup + FDE liveness + layout pass from
// spec.md §4.9: CIEs keep first-occurrence order, each CIE's live FDEs
// are written immediately after it, and every record is padded to word
// size with its length field rewritten to aligned_size-4.
func (e *EhFrameSection) Finalize(ctx *Context) {
	if e.Finalized() {
		return
	}
	defer e.MarkFinalized()

	wordSize := uint64(ctx.Target.WordSize())

	cieOf := map[int]*cieSlot{} // index into e.pieces (CIE pieces) -> slot
	for i, p := range e.pieces {
		if !p.IsCie {
			continue
		}
		key := string(p.Bytes) + personalityKey(p.Personality)
		slot, ok := e.cieKeys[key]
		if !ok {
			slot = &cieSlot{bytes: p.Bytes, personality: p.Personality, fdeEncoding: p.FdeEncoding}
			e.cieKeys[key] = slot
			e.cieOrder = append(e.cieOrder, slot)
		}
		cieOf[i] = slot
	}

	// Attach each live FDE to the canonical slot of the nearest preceding
	// CIE piece in insertion order (the piece stream alternates a CIE
	// followed by the FDEs that reference it).
	var lastCie *cieSlot
	for i, p := range e.pieces {
		if p.IsCie {
			lastCie = cieOf[i]
			continue
		}
		if p.Target == nil || lastCie == nil {
			continue
		}
		e.fdes = append(e.fdes, &fdeSlot{bytes: p.Bytes, cie: lastCie})
	}

	fdesByCie := map[*cieSlot][]*fdeSlot{}
	for _, f := range e.fdes {
		fdesByCie[f.cie] = append(fdesByCie[f.cie], f)
	}

	var off uint64
	for _, c := range e.cieOrder {
		sz := alignUp(uint64(len(c.bytes)), wordSize)
		c.alignedSize = sz
		c.outOffset = off
		off += sz
		for _, f := range fdesByCie[c] {
			fsz := alignUp(uint64(len(f.bytes)), wordSize)
			f.alignedSize = fsz
			f.outOffset = off
			off += fsz
		}
	}
	off += 4 // trailing zero-length terminator record
	e.totalSize = off
}

func personalityKey(s *obj.Symbol) string {
	if s == nil {
		return ""
	}
	return "\x00" + s.Name
}

func (e *EhFrameSection) Write(ctx *Context, buf []byte) {
	fdesByCie := map[*cieSlot][]*fdeSlot{}
	for _, f := range e.fdes {
		fdesByCie[f.cie] = append(fdesByCie[f.cie], f)
	}

	writeRecord := func(dst []byte, src []byte, alignedSize uint64) {
		copy(dst, src)
		for i := len(src); uint64(i) < alignedSize; i++ {
			dst[i] = 0
		}
		writeU32(dst, uint32(alignedSize-4))
	}

	for _, c := range e.cieOrder {
		writeRecord(buf[c.outOffset:c.outOffset+c.alignedSize], c.bytes, c.alignedSize)
		for _, f := range fdesByCie[c] {
			dst := buf[f.outOffset : f.outOffset+f.alignedSize]
			writeRecord(dst, f.bytes, f.alignedSize)
			cieRef := f.outOffset + 4 - c.outOffset
			writeU32(dst[4:], uint32(cieRef))
		}
	}
	writeU32(buf[e.totalSize-4:], 0)
}

// decodeFdePcRelative reads a live FDE's pc_begin field (at byte offset
// 8) per the CIE's FdeEncoding, per spec.md §4.9: "decoded from FDE+8
// using the CIE's FDE encoding (handling DW_EH_PE_udata2/4/8, absptr,
// pcrel)". It returns the value relative to .eh_frame's own base (VA 0)
// rather than the true runtime address, since section sizes — and thus
// this section's own VA — are not yet assigned at the point the sorted,
// deduplicated table needs to be built. Adding the same bias (the real
// .eh_frame VA) to every entry before comparing for order or equality
// never changes either result, so the relative table computed here is
// byte-identical in shape to one built from true addresses.
func (e *EhFrameSection) decodeFdePcRelative(f *fdeSlot) uint64 {
	enc := f.cie.fdeEncoding
	fieldOff := f.outOffset + 8
	raw := f.bytes[8:]

	var v uint64
	switch enc &^ elfabi.DW_EH_PE_pcrel &^ elfabi.DW_EH_PE_datarel {
	case elfabi.DW_EH_PE_udata2:
		v = uint64(raw[0]) | uint64(raw[1])<<8
	case elfabi.DW_EH_PE_udata4:
		v = uint64(readU32(raw))
	case elfabi.DW_EH_PE_udata8, elfabi.DW_EH_PE_absptr:
		v = readU64(raw)
	case elfabi.DW_EH_PE_sdata4:
		v = uint64(int64(int32(readU32(raw))))
	default:
		v = readU64(raw)
	}
	if enc&elfabi.DW_EH_PE_pcrel != 0 {
		v += fieldOff
	}
	return v
}

// EhFrameHeaderSection is .eh_frame_hdr (spec.md §4.9): a fixed 4-byte
// header plus a sorted-by-Pc, deduplicated table of (pc, fde) pairs, both
// stored relative to this section's own VA.
type EhFrameHeaderSection struct {
	Base

	ehFrame *EhFrameSection

	// table holds offsets relative to .eh_frame's own base; Write adds the
	// real VAs once they're assigned. See decodeFdePcRelative.
	table []ehFrameHdrEntry
}

type ehFrameHdrEntry struct {
	relPc  uint64
	relFde uint64
}

func NewEhFrameHeaderSection(ehFrame *EhFrameSection) *EhFrameHeaderSection {
	return &EhFrameHeaderSection{
		Base:    NewBase(".eh_frame_hdr", uint32(elf.SHT_PROGBITS), uint64(elf.SHF_ALLOC), 4, 0),
		ehFrame: ehFrame,
	}
}

func (h *EhFrameHeaderSection) Size() uint64 { return 12 + uint64(len(h.table))*8 }

func (h *EhFrameHeaderSection) Empty() bool { return !h.ehFrame.HasFdes() }

// Finalize builds the sorted, deduplicated (Pc, FDE) table per spec.md
// §4.9, working entirely in offsets relative to .eh_frame's base since
// true VAs are not yet assigned.
func (h *EhFrameHeaderSection) Finalize(ctx *Context) {
	if h.Finalized() {
		return
	}
	defer h.MarkFinalized()
	if h.Empty() {
		return
	}

	var entries []ehFrameHdrEntry
	for _, f := range h.ehFrame.fdes {
		entries = append(entries, ehFrameHdrEntry{
			relPc:  h.ehFrame.decodeFdePcRelative(f),
			relFde: f.outOffset,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].relPc < entries[j].relPc })
	var uniq []ehFrameHdrEntry
	for i, e := range entries {
		if i > 0 && e.relPc == uniq[len(uniq)-1].relPc {
			continue
		}
		uniq = append(uniq, e)
	}
	h.table = uniq
}

func (h *EhFrameHeaderSection) Write(ctx *Context, buf []byte) {
	if h.Empty() {
		return
	}
	buf[0] = 1 // version
	buf[1] = elfabi.DW_EH_PE_pcrel | elfabi.DW_EH_PE_sdata4
	buf[2] = elfabi.DW_EH_PE_udata4
	buf[3] = elfabi.DW_EH_PE_datarel | elfabi.DW_EH_PE_sdata4

	hdrVA := h.VA(0)
	ehFrameVA := h.ehFrame.VA(0)
	writeU32(buf[4:], uint32(int64(ehFrameVA)-int64(hdrVA+4)))
	writeU32(buf[8:], uint32(len(h.ehFrame.fdes)))

	off := 12
	for _, e := range h.table {
		writeU32(buf[off:], uint32(int64(ehFrameVA+e.relPc)-int64(hdrVA)))
		writeU32(buf[off+4:], uint32(int64(ehFrameVA+e.relFde)-int64(hdrVA)))
		off += 8
	}
}
