package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synthlink/sve/pkg/config"
	"github.com/synthlink/sve/pkg/obj"
	"github.com/synthlink/sve/pkg/target"
)

func TestPltSectionAddEntryRegistersGotPltAndReloc(t *testing.T) {
	ctx := NewContext(config.Default(), target.X86_64{})
	sym := obj.NewSymbol("foo")
	sym.Binding = obj.Global
	sym.DefKind = obj.Undefined

	ctx.Plt.AddEntry(ctx, sym)

	assert.Equal(t, 0, sym.PltIndex)
	assert.False(t, sym.IsInIplt)
	require.Len(t, ctx.RelaPlt.entries, 1)
	assert.Equal(t, ctx.Target.JumpSlotRel(), ctx.RelaPlt.entries[0].Type)
	assert.Equal(t, 0, sym.GotPltIndex)
}

func TestPltSectionIpltUsesIRelativeAndIgotPlt(t *testing.T) {
	ctx := NewContext(config.Default(), target.X86_64{})
	sym := obj.NewSymbol("ifunc")
	sym.Type = obj.IFunc

	ctx.Iplt.AddEntry(ctx, sym)

	assert.True(t, sym.IsInIplt)
	require.Len(t, ctx.RelaIplt.entries, 1)
	assert.Equal(t, ctx.Target.IRelativeRel(), ctx.RelaIplt.entries[0].Type)
}

func TestPltSectionAddEntryIsIdempotent(t *testing.T) {
	ctx := NewContext(config.Default(), target.X86_64{})
	sym := obj.NewSymbol("foo")

	ctx.Plt.AddEntry(ctx, sym)
	ctx.Plt.AddEntry(ctx, sym)

	assert.Len(t, ctx.RelaPlt.entries, 1)
}

func TestPltSectionSizeIncludesHeaderOnlyForRegularPlt(t *testing.T) {
	ctx := NewContext(config.Default(), target.X86_64{})
	sym := obj.NewSymbol("foo")
	ctx.Plt.AddEntry(ctx, sym)
	ctx.Plt.Finalize(ctx)
	assert.Equal(t, uint64(16+16), ctx.Plt.Size())

	sym2 := obj.NewSymbol("ifunc")
	ctx.Iplt.AddEntry(ctx, sym2)
	ctx.Iplt.Finalize(ctx)
	assert.Equal(t, uint64(16), ctx.Iplt.Size())
}

func TestPltSectionWriteDoesNotPanicForRegularPlt(t *testing.T) {
	ctx := NewContext(config.Default(), target.X86_64{})
	ctx.Plt.OutSec = &obj.OutputSection{Addr: 0x5000}
	ctx.GotPlt.OutSec = &obj.OutputSection{Addr: 0x6000}

	sym := obj.NewSymbol("foo")
	ctx.Plt.AddEntry(ctx, sym)
	ctx.Plt.Finalize(ctx)

	buf := make([]byte, ctx.Plt.Size())
	ctx.Plt.Write(ctx, buf)
}
