package synth

import "debug/elf"

// InterpSection is .interp: the NUL-terminated path of the dynamic linker
// that should load this image, present whenever that path is non-empty;
// the section does not check the kind of output being linked.
type InterpSection struct {
	Base

	path string
}

func NewInterpSection(path string) *InterpSection {
	return &InterpSection{
		Base: NewBase(".interp", uint32(elf.SHT_PROGBITS), uint64(elf.SHF_ALLOC), 1, 0),
		path: path,
	}
}

func (i *InterpSection) Size() uint64 {
	if i.Empty() {
		return 0
	}
	return uint64(len(i.path)) + 1
}

func (i *InterpSection) Empty() bool { return i.path == "" }

func (i *InterpSection) Finalize(ctx *Context) {
	if i.Finalized() {
		return
	}
	i.MarkFinalized()
}

func (i *InterpSection) Write(ctx *Context, buf []byte) {
	if i.Empty() {
		return
	}
	copy(buf, i.path)
}
