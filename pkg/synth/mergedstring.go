package synth

import "sort"

// SectionFragment is one piece of a mergeable string/constant section
// after splitting (spec.md §4.11); it satisfies obj.Addressable so a
// Symbol can be defined relative to it exactly like an InputSection.
type SectionFragment struct {
	Owner   *MergedStringSection
	Offset  uint64
	Align   uint32
	Live    bool
}

func (f *SectionFragment) VA(offset uint64) uint64 { return f.Owner.VA(f.Offset + offset) }

type mergedPiece struct {
	bytes []byte
	align uint32
	frag  *SectionFragment
}

// MergedStringSection accepts split input pieces and lays them out per
// spec.md §4.11's two modes: tail merge (dedup by suffix, STRINGS flag +
// optimize>=2) or insertion-order preservation. Grounded on the
// teacher's MergedSection/SectionFragment (dedup-by-content map, offsets
// assigned in a second pass, alignment tracked per fragment), generalized
// here to also fold suffixes rather than only exact duplicates.
type MergedStringSection struct {
	Base

	tailMerge bool
	pieces    []*mergedPiece
	dedup     map[string]*SectionFragment // tail-merge mode only: exact-content reuse before layout

	data      []byte
	finalSize uint64
}

func NewMergedStringSection(name string, typ uint32, flags uint64, align uint64, tailMerge bool) *MergedStringSection {
	return &MergedStringSection{
		Base:      NewBase(name, typ, flags, align, 0),
		tailMerge: tailMerge,
		dedup:     map[string]*SectionFragment{},
	}
}

// AddPiece registers one input piece (offset + bytes + live flag from
// spec.md §4.11's data model) and returns the fragment a Symbol can be
// defined against. In tail-merge mode, a piece with byte-identical
// content to one already added returns the existing fragment instead of
// growing the section.
func (m *MergedStringSection) AddPiece(bytes []byte, align uint32, live bool) *SectionFragment {
	if m.tailMerge {
		key := string(bytes)
		if frag, ok := m.dedup[key]; ok {
			if align > frag.Align {
				frag.Align = align
			}
			frag.Live = frag.Live || live
			return frag
		}
		frag := &SectionFragment{Owner: m, Align: align, Live: live}
		m.dedup[key] = frag
		m.pieces = append(m.pieces, &mergedPiece{bytes: bytes, align: align, frag: frag})
		return frag
	}

	frag := &SectionFragment{Owner: m, Align: align, Live: live}
	m.pieces = append(m.pieces, &mergedPiece{bytes: bytes, align: align, frag: frag})
	return frag
}

func (m *MergedStringSection) Size() uint64 { return m.finalSize }
func (m *MergedStringSection) Empty() bool  { return len(m.pieces) == 0 }

func (m *MergedStringSection) Finalize(ctx *Context) {
	if m.Finalized() {
		return
	}
	defer m.MarkFinalized()

	if m.tailMerge {
		m.layoutTailMerge()
	} else {
		m.layoutInsertionOrder()
	}
	m.finalSize = uint64(len(m.data))
}

// layoutInsertionOrder assigns each fragment an offset in the order it
// was added, per spec.md §4.11's non-tail-merge mode.
func (m *MergedStringSection) layoutInsertionOrder() {
	for _, p := range m.pieces {
		a := uint64(1)
		if p.align > 1 {
			a = uint64(p.align)
		}
		off := alignUp(uint64(len(m.data)), a)
		for uint64(len(m.data)) < off {
			m.data = append(m.data, 0)
		}
		p.frag.Offset = off
		m.data = append(m.data, p.bytes...)
	}
}

// layoutTailMerge places the longest pieces first and, before placing
// each subsequent piece, checks whether its content already occurs as a
// suffix of something already laid out (every suffix of a placed piece
// is registered as it's placed). This folds shared string tails the way
// a string-table builder does, on top of the exact-content dedup
// AddPiece already performs.
func (m *MergedStringSection) layoutTailMerge() {
	ordered := append([]*mergedPiece(nil), m.pieces...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return len(ordered[i].bytes) > len(ordered[j].bytes)
	})

	suffixOffsets := map[string]uint64{}
	for _, p := range ordered {
		key := string(p.bytes)
		if off, ok := suffixOffsets[key]; ok {
			p.frag.Offset = off
			continue
		}

		a := uint64(1)
		if p.align > 1 {
			a = uint64(p.align)
		}
		off := alignUp(uint64(len(m.data)), a)
		for uint64(len(m.data)) < off {
			m.data = append(m.data, 0)
		}
		m.data = append(m.data, p.bytes...)
		p.frag.Offset = off

		for s := 0; s <= len(p.bytes); s++ {
			suf := key[s:]
			if _, ok := suffixOffsets[suf]; !ok {
				suffixOffsets[suf] = off + uint64(s)
			}
		}
	}
}

func (m *MergedStringSection) Write(ctx *Context, buf []byte) {
	copy(buf, m.data)
}
