package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synthlink/sve/pkg/config"
	"github.com/synthlink/sve/pkg/obj"
	"github.com/synthlink/sve/pkg/target"
)

func TestGotPltSectionAddEntryIsIdempotent(t *testing.T) {
	g := NewGotPltSection(".got.plt")
	sym := obj.NewSymbol("foo")

	g.AddEntry(sym)
	g.AddEntry(sym)

	assert.Equal(t, 0, sym.GotPltIndex)
	require.Len(t, g.entries, 1)
}

func TestGotPltSectionSizeIncludesHeaderSlots(t *testing.T) {
	ctx := NewContext(config.Default(), target.X86_64{})
	sym := obj.NewSymbol("foo")
	ctx.GotPlt.AddEntry(sym)
	ctx.GotPlt.Finalize(ctx)

	assert.Equal(t, uint64((3+1)*8), ctx.GotPlt.Size())
}

func TestGotPltSectionWriteFillsHeaderAndBootstrapValues(t *testing.T) {
	ctx := NewContext(config.Default(), target.X86_64{})
	ctx.Dynamic.OutSec = &obj.OutputSection{Addr: 0x1000}
	ctx.Plt.OutSec = &obj.OutputSection{Addr: 0x2000}
	ctx.GotPlt.OutSec = &obj.OutputSection{Addr: 0x3000}

	sym := obj.NewSymbol("foo")
	ctx.Plt.AddEntry(ctx, sym)
	ctx.Plt.Finalize(ctx)
	ctx.GotPlt.Finalize(ctx)

	buf := make([]byte, ctx.GotPlt.Size())
	ctx.GotPlt.Write(ctx, buf)

	assert.Equal(t, uint64(0x1000), readU64(buf[0:])) // header slot 0: .dynamic VA
	entryOff := 3 * 8
	gotEntryVA := readU64(buf[entryOff:])
	assert.NotZero(t, gotEntryVA, "bootstrap value points into the PLT stub")
}
