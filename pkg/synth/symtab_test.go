package synth

import (
	"debug/elf"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synthlink/sve/pkg/config"
	"github.com/synthlink/sve/pkg/obj"
	"github.com/synthlink/sve/pkg/target"
)

func TestSymtabSectionSizeReservesIndexZero(t *testing.T) {
	ctx := NewContext(config.Default(), target.X86_64{})
	s := NewSymtabSection(".symtab", false, ctx.Strtab)
	assert.True(t, s.Empty())

	s.AddSymbol(obj.NewSymbol("foo"))
	assert.False(t, s.Empty())
	assert.Equal(t, uint64(2*24), s.Size())
}

func TestSymtabSectionFinalizeDynsymAssignsSequentialIndices(t *testing.T) {
	ctx := NewContext(config.Default(), target.X86_64{})
	a := obj.NewSymbol("a")
	b := obj.NewSymbol("b")
	ctx.Dynsym.AddSymbol(a)
	ctx.Dynsym.AddSymbol(b)

	ctx.Dynsym.Finalize(ctx)

	assert.Equal(t, 1, a.DynsymIndex)
	assert.Equal(t, 2, b.DynsymIndex)
	assert.Equal(t, uint32(1), ctx.Dynsym.InfoVal)
}

func TestSymtabSectionFinalizeSymtabPartitionsLocalsFirst(t *testing.T) {
	ctx := NewContext(config.Default(), target.X86_64{})
	g := obj.NewSymbol("global")
	g.Binding = obj.Global
	l := obj.NewSymbol("local")
	l.Binding = obj.Local

	ctx.Symtab.AddSymbol(g)
	ctx.Symtab.AddSymbol(l)
	ctx.Symtab.Finalize(ctx)

	require.Equal(t, l, ctx.Symtab.entries[0])
	require.Equal(t, g, ctx.Symtab.entries[1])
	assert.Equal(t, uint32(2), ctx.Symtab.InfoVal) // one local + reserved index 0
}

func TestSymtabSectionWriteEncodesBindingAndShndx(t *testing.T) {
	ctx := NewContext(config.Default(), target.X86_64{})

	file := obj.NewFile("a.o")
	sec := &obj.InputSection{OutSec: &obj.OutputSection{Addr: 0x1000, Index: 4}, Size: 8}
	sym := obj.NewSymbol("foo")
	sym.Binding = obj.Global
	sym.Type = obj.Func
	sym.DefKind = obj.Regular
	sym.Def = sec
	sym.File = file
	sym.Size = 16

	ctx.Symtab.AddSymbol(sym)
	ctx.Symtab.Finalize(ctx)

	buf := make([]byte, ctx.Symtab.Size())
	ctx.Symtab.Write(ctx, buf)

	off := 24
	assert.Equal(t, uint8(elf.STB_GLOBAL)<<4|uint8(elf.STT_FUNC), buf[off+4])
	assert.Equal(t, uint16(4), readU16(buf[off+6:]))
	assert.Equal(t, uint64(0x1000), readU64(buf[off+8:]))
	assert.Equal(t, uint64(16), readU64(buf[off+16:]))
}
