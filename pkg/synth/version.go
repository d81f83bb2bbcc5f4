package synth

import (
	"debug/elf"

	"github.com/synthlink/sve/pkg/elfabi"
	"github.com/synthlink/sve/pkg/obj"
)

// VersionDefSection is .gnu.version_d (spec.md §4.12): one file-level base
// definition (VER_FLG_BASE, ndx=1) plus one Verdef+Verdaux pair per
// configured version. Empty when no versions are configured — a link
// with no configured VersionDefs carries no version information at all.
type VersionDefSection struct {
	Base

	soNameOff uint32
	defNames  []uint32 // dynstr offsets, one per configured version, in order
	numDefs   int       // 0, or len(defNames)+1 once finalized
}

func NewVersionDefSection() *VersionDefSection {
	return &VersionDefSection{Base: NewBase(".gnu.version_d", uint32(elf.SHT_GNU_VERDEF), uint64(elf.SHF_ALLOC), 8, 0)}
}

func (v *VersionDefSection) NumDefs() int { return v.numDefs }

func (v *VersionDefSection) Size() uint64 {
	return uint64(v.numDefs) * uint64(elfabi.VerdefSize+elfabi.VerdauxSize)
}

func (v *VersionDefSection) Empty() bool { return v.numDefs == 0 }

func (v *VersionDefSection) Finalize(ctx *Context) {
	if v.Finalized() {
		return
	}
	defer v.MarkFinalized()

	if len(ctx.Config.VersionDefs) == 0 {
		return
	}
	v.soNameOff = ctx.Dynstr.Add(ctx.Config.SoName)
	for _, d := range ctx.Config.VersionDefs {
		v.defNames = append(v.defNames, ctx.Dynstr.Add(d.Name))
	}
	v.numDefs = len(v.defNames) + 1
}

func (v *VersionDefSection) Write(ctx *Context, buf []byte) {
	if v.Empty() {
		return
	}
	entrySize := elfabi.VerdefSize + elfabi.VerdauxSize
	writeVerdef := func(off int, ndx uint16, flags uint16, nameOff uint32, hash uint32, isLast bool) {
		writeU16(buf[off:], 1) // vd_version
		writeU16(buf[off+2:], flags)
		writeU16(buf[off+4:], ndx)
		writeU16(buf[off+6:], 1) // vd_cnt
		writeU32(buf[off+8:], hash)
		writeU32(buf[off+12:], uint32(elfabi.VerdefSize)) // vd_aux
		if isLast {
			writeU32(buf[off+16:], 0)
		} else {
			writeU32(buf[off+16:], uint32(entrySize)) // vd_next
		}
		auxOff := off + elfabi.VerdefSize
		writeU32(buf[auxOff:], nameOff)
		writeU32(buf[auxOff+4:], 0)
	}

	writeVerdef(0, 1, elfabi.VER_FLG_BASE, v.soNameOff, hashSysV(ctx.Config.SoName), len(v.defNames) == 0)

	for i, nameOff := range v.defNames {
		off := (i + 1) * entrySize
		name := ctx.Config.VersionDefs[i].Name
		writeVerdef(off, uint16(i+2), 0, nameOff, hashSysV(name), i == len(v.defNames)-1)
	}
}

// VersionSymSection is .gnu.version: a uint16 index parallel to .dynsym.
type VersionSymSection struct {
	Base

	dynsym *SymtabSection
}

func NewVersionSymSection(dynsym *SymtabSection) *VersionSymSection {
	return &VersionSymSection{
		Base:   NewBase(".gnu.version", uint32(elf.SHT_GNU_VERSYM), uint64(elf.SHF_ALLOC), 2, 2),
		dynsym: dynsym,
	}
}

func (v *VersionSymSection) Size() uint64 { return uint64(len(v.dynsym.entries)) * 2 }

// Empty reports true only when .dynsym has no entries; it does not consult
// version definitions or needed-version records, so a non-empty .dynsym
// always gets a .gnu.version.
func (v *VersionSymSection) Empty() bool { return v.dynsym == nil || len(v.dynsym.entries) == 0 }

func (v *VersionSymSection) Finalize(ctx *Context) {
	if v.Finalized() {
		return
	}
	v.MarkFinalized()
}

func (v *VersionSymSection) Write(ctx *Context, buf []byte) {
	for i, sym := range v.dynsym.entries {
		idx := elfabi.VER_NDX_GLOBAL
		if sym.Binding == obj.Local {
			idx = elfabi.VER_NDX_LOCAL
		}
		if sym.VersionIdx != 0 {
			idx = sym.VersionIdx
		}
		writeU16(buf[i*2:], idx)
	}
}

type vernauxEntry struct {
	name  string
	hash  uint32
	verID uint16
}

type verneedEntry struct {
	file  *obj.File
	auxes []*vernauxEntry
}

// VersionNeedSection is .gnu.version_r (spec.md §4.12): one Verneed per
// needed DSO with versioned imports, one Vernaux per distinct version
// consumed from that DSO. Version ids start at NumDefs()+2 (0 and 1 are
// reserved for VER_NDX_LOCAL/GLOBAL).
type VersionNeedSection struct {
	Base

	files   []*verneedEntry
	byFile  map[*obj.File]*verneedEntry
	nextID  uint16
	started bool
}

func NewVersionNeedSection() *VersionNeedSection {
	return &VersionNeedSection{
		Base:   NewBase(".gnu.version_r", uint32(elf.SHT_GNU_VERNEED), uint64(elf.SHF_ALLOC), 8, 0),
		byFile: map[*obj.File]*verneedEntry{},
	}
}

// AddNeed registers that file's DSO export a version named name is
// consumed by this link, allocating a fresh version id the first time
// this (file, name) pair is seen. Returns the assigned id, to be stored
// on the referencing Symbol's VersionIdx by the (out-of-scope) symbol
// resolver.
func (v *VersionNeedSection) AddNeed(ctx *Context, file *obj.File, name string) uint16 {
	if !v.started {
		v.nextID = uint16(ctx.VerDef.NumDefs()) + 2
		if v.nextID < 2 {
			v.nextID = 2
		}
		v.started = true
	}
	e, ok := v.byFile[file]
	if !ok {
		e = &verneedEntry{file: file}
		v.byFile[file] = e
		v.files = append(v.files, e)
	}
	for _, a := range e.auxes {
		if a.name == name {
			return a.verID
		}
	}
	a := &vernauxEntry{name: name, hash: hashSysV(name), verID: v.nextID}
	v.nextID++
	e.auxes = append(e.auxes, a)
	ctx.Dynstr.Add(name)
	ctx.Dynstr.Add(file.SoName)
	return a.verID
}

func (v *VersionNeedSection) NumFiles() int { return len(v.files) }

func (v *VersionNeedSection) Size() uint64 {
	total := 0
	for _, f := range v.files {
		total += elfabi.VerneedSize + len(f.auxes)*elfabi.VernauxSize
	}
	return uint64(total)
}

func (v *VersionNeedSection) Empty() bool { return len(v.files) == 0 }

func (v *VersionNeedSection) Finalize(ctx *Context) {
	if v.Finalized() {
		return
	}
	v.MarkFinalized()
}

func (v *VersionNeedSection) Write(ctx *Context, buf []byte) {
	off := 0
	for fi, f := range v.files {
		fileOff := off
		writeU16(buf[fileOff:], 1) // vn_version
		writeU16(buf[fileOff+2:], uint16(len(f.auxes)))
		writeU32(buf[fileOff+4:], ctx.Dynstr.Add(f.file.SoName))
		writeU32(buf[fileOff+8:], uint32(elfabi.VerneedSize))
		isLastFile := fi == len(v.files)-1
		if isLastFile {
			writeU32(buf[fileOff+12:], 0)
		} else {
			writeU32(buf[fileOff+12:], uint32(elfabi.VerneedSize+len(f.auxes)*elfabi.VernauxSize))
		}

		auxBase := fileOff + elfabi.VerneedSize
		for ai, a := range f.auxes {
			ao := auxBase + ai*elfabi.VernauxSize
			writeU32(buf[ao:], a.hash)
			writeU16(buf[ao+4:], 0)
			writeU16(buf[ao+6:], a.verID)
			writeU32(buf[ao+8:], ctx.Dynstr.Add(a.name))
			if ai == len(f.auxes)-1 {
				writeU32(buf[ao+12:], 0)
			} else {
				writeU32(buf[ao+12:], uint32(elfabi.VernauxSize))
			}
		}
		off = auxBase + len(f.auxes)*elfabi.VernauxSize
	}
}
