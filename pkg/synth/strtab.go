package synth

import "debug/elf"

// StrtabSection is an append-only string table with an implicit leading
// NUL and optional hash-consed insertion (spec.md §3/§4.7's "String
// table").
type StrtabSection struct {
	Base

	hashCons bool
	bytes    []byte
	offsets  map[string]uint32
}

func NewStrtabSection(name string, hashCons bool) *StrtabSection {
	s := &StrtabSection{
		Base:     NewBase(name, uint32(elf.SHT_STRTAB), uint64(elf.SHF_ALLOC), 1, 0),
		hashCons: hashCons,
		bytes:    []byte{0},
	}
	if hashCons {
		s.offsets = map[string]uint32{"": 0}
	}
	return s
}

// Add appends s (if not already present, when hash-consing) and returns
// its byte offset.
func (s *StrtabSection) Add(str string) uint32 {
	if s.hashCons {
		if off, ok := s.offsets[str]; ok {
			return off
		}
	}
	off := uint32(len(s.bytes))
	s.bytes = append(s.bytes, []byte(str)...)
	s.bytes = append(s.bytes, 0)
	if s.hashCons {
		s.offsets[str] = off
	}
	return off
}

func (s *StrtabSection) Size() uint64 { return uint64(len(s.bytes)) }
func (s *StrtabSection) Empty() bool  { return len(s.bytes) <= 1 }

func (s *StrtabSection) Finalize(ctx *Context) {
	if s.Finalized() {
		return
	}
	s.MarkFinalized()
}

func (s *StrtabSection) Write(ctx *Context, buf []byte) {
	copy(buf, s.bytes)
}
