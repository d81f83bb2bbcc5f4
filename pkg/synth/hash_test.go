package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/synthlink/sve/pkg/config"
	"github.com/synthlink/sve/pkg/obj"
	"github.com/synthlink/sve/pkg/target"
)

func TestHashSectionEmptyWithNoDynsymEntries(t *testing.T) {
	ctx := NewContext(config.Default(), target.X86_64{})
	assert.True(t, ctx.HashTab.Empty())
	// nbucket + nchain headers, plus one bucket/chain slot each for the
	// reserved null symbol.
	assert.Equal(t, uint64((2+1+1)*4), ctx.HashTab.Size())
}

func TestHashSectionSizeGrowsWithDynsymCount(t *testing.T) {
	ctx := NewContext(config.Default(), target.X86_64{})
	ctx.Dynsym.AddSymbol(obj.NewSymbol("a"))
	ctx.Dynsym.AddSymbol(obj.NewSymbol("b"))

	assert.False(t, ctx.HashTab.Empty())
	// num_dynsym counts the 2 real symbols plus the reserved null entry.
	assert.Equal(t, uint64((2+3+3)*4), ctx.HashTab.Size())
}

func TestHashSectionWriteChainsBySysVHash(t *testing.T) {
	ctx := NewContext(config.Default(), target.X86_64{})
	a := obj.NewSymbol("a")
	b := obj.NewSymbol("b")
	ctx.Dynsym.AddSymbol(a)
	ctx.Dynsym.AddSymbol(b)
	ctx.Dynsym.Finalize(ctx)

	buf := make([]byte, ctx.HashTab.Size())
	ctx.HashTab.Write(ctx, buf)

	n := readU32(buf[0:])
	assert.Equal(t, uint32(3), n) // 2 symbols + the reserved null entry
	assert.Equal(t, n, readU32(buf[4:]))

	// every bucket head must be either the sentinel 0 absent-match or a
	// valid dynsym index (1 or 2) that the chain can be followed from.
	buckets := buf[8 : 8+n*4]
	for i := uint32(0); i < n; i++ {
		head := readU32(buckets[i*4:])
		assert.True(t, head == 0 || head == 1 || head == 2)
	}

	// the chain slot for the highest dynsym index (2) must be addressable
	// without overrunning the chains region — this is exactly the slot the
	// undercounted numSymbols used to miss.
	chains := buf[8+n*4:]
	assert.NotPanics(t, func() { _ = readU32(chains[2*4:]) })
}
