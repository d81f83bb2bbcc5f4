package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synthlink/sve/pkg/config"
	"github.com/synthlink/sve/pkg/obj"
	"github.com/synthlink/sve/pkg/target"
)

func TestGotSectionAddEntryIsIdempotent(t *testing.T) {
	ctx := NewContext(config.Default(), target.X86_64{})
	g := NewGotSection()
	sym := obj.NewSymbol("foo")

	i1 := g.AddEntry(ctx, sym)
	i2 := g.AddEntry(ctx, sym)

	assert.Equal(t, i1, i2)
	assert.Equal(t, 0, i1)
	assert.Equal(t, uint64(8), g.Size())
}

func TestGotSectionAddDynTlsEntryReservesTwoSlots(t *testing.T) {
	ctx := NewContext(config.Default(), target.X86_64{})
	g := NewGotSection()
	sym := obj.NewSymbol("tlsvar")

	ok := g.AddDynTlsEntry(ctx, sym)
	require.True(t, ok)
	assert.Equal(t, 0, sym.GlobalDynIndex)
	assert.Equal(t, uint64(16), g.Size())

	ok2 := g.AddDynTlsEntry(ctx, sym)
	assert.False(t, ok2, "a second reservation for the same symbol is a no-op")
	assert.Equal(t, uint64(16), g.Size())
}

func TestGotSectionAddTlsIndexIsOncePerImage(t *testing.T) {
	ctx := NewContext(config.Default(), target.X86_64{})
	g := NewGotSection()

	slot1 := g.AddTlsIndex(ctx)
	slot2 := g.AddTlsIndex(ctx)

	assert.Equal(t, slot1, slot2)
	assert.Equal(t, uint64(16), g.Size())
}

func TestGotSectionEmptyRequiresNoEntriesAndNoOutstandingReference(t *testing.T) {
	g := NewGotSection()
	assert.True(t, g.Empty())

	g.MarkGotRelativeReference()
	assert.False(t, g.Empty())
	assert.Equal(t, uint64(0), g.Size())
}

func TestGotSectionWriteFillsSymbolVAsAndSkipsPlaceholders(t *testing.T) {
	ctx := NewContext(config.Default(), target.X86_64{})
	g := NewGotSection()

	file := obj.NewFile("a.o")
	sec := &obj.InputSection{OutSec: &obj.OutputSection{Addr: 0x4000}, Size: 8}
	sym := obj.NewSymbol("foo")
	sym.DefKind = obj.Regular
	sym.Def = sec
	sym.File = file

	g.AddEntry(ctx, sym)
	g.AddTlsIndex(ctx) // two nil placeholder slots

	buf := make([]byte, g.Size())
	g.Write(ctx, buf)

	assert.Equal(t, uint64(0x4000), readU64(buf[0:]))
	assert.Equal(t, uint64(0), readU64(buf[8:]))
	assert.Equal(t, uint64(0), readU64(buf[16:]))
}
