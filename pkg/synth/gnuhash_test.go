package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synthlink/sve/pkg/config"
	"github.com/synthlink/sve/pkg/obj"
	"github.com/synthlink/sve/pkg/target"
)

func TestGnuBucketSizePicksLargestPrimeAtOrBelowCount(t *testing.T) {
	assert.Equal(t, uint32(1), gnuBucketSize(0))
	assert.Equal(t, uint32(3), gnuBucketSize(3))
	assert.Equal(t, uint32(7), gnuBucketSize(10))
	assert.Equal(t, uint32(127), gnuBucketSize(200))
}

func TestHashGnuDjb33(t *testing.T) {
	h := uint32(5381)
	for _, c := range []byte("printf") {
		h = h*33 + uint32(c)
	}
	assert.Equal(t, h, hashGnu("printf"))
}

func TestNextPow2(t *testing.T) {
	assert.Equal(t, uint32(1), nextPow2(0))
	assert.Equal(t, uint32(1), nextPow2(1))
	assert.Equal(t, uint32(4), nextPow2(3))
	assert.Equal(t, uint32(8), nextPow2(8))
}

func TestGnuHashSectionEmptyWithNoDefinedSymbols(t *testing.T) {
	ctx := NewContext(config.Default(), target.X86_64{})
	dynstr := NewStrtabSection(".dynstr", true)
	dynsym := NewSymtabSection(".dynsym", true, dynstr)

	undef := obj.NewSymbol("undef_only")
	undef.Binding = obj.Global
	dynsym.AddSymbol(undef)

	g := NewGnuHashSection(dynsym)
	g.Finalize(ctx)

	assert.False(t, g.HasSymbols())
	assert.True(t, g.Empty())
	assert.Equal(t, uint64(0), g.Size())
}

func TestGnuHashSectionOrdersUndefinedFirst(t *testing.T) {
	ctx := NewContext(config.Default(), target.X86_64{})
	dynstr := NewStrtabSection(".dynstr", true)
	dynsym := NewSymtabSection(".dynsym", true, dynstr)

	file := obj.NewFile("a.o")
	defined1 := obj.NewSymbol("alpha")
	defined1.Binding = obj.Global
	defined1.DefKind = obj.Absolute
	defined1.File = file

	defined2 := obj.NewSymbol("beta")
	defined2.Binding = obj.Global
	defined2.DefKind = obj.Absolute
	defined2.File = file

	undefined := obj.NewSymbol("gamma")
	undefined.Binding = obj.Global

	dynsym.AddSymbol(defined1)
	dynsym.AddSymbol(undefined)
	dynsym.AddSymbol(defined2)

	g := NewGnuHashSection(dynsym)
	g.Finalize(ctx)

	require.True(t, g.HasSymbols())
	assert.Equal(t, uint32(1), g.symOffset)
	reordered := g.ReorderSymbols(dynsym.entries)
	require.Len(t, reordered, 3)
	assert.Equal(t, "gamma", reordered[0].Name)

	// SymtabSection.finalizeDynsym stamps DynsymIndex = i+1 over this same
	// reordered slice once the real pipeline runs; simulate that here so
	// Write resolves each bucket slot to the real dynsym index rather than
	// its zero-based position within the hashed group.
	for i, sym := range reordered {
		sym.DynsymIndex = i + 1
	}

	buf := make([]byte, g.Size())
	g.Write(ctx, buf) // must not panic on a realistic table
}

func TestGnuHashSectionWriteBucketHoldsDynsymIndexNotHashedPosition(t *testing.T) {
	ctx := NewContext(config.Default(), target.X86_64{})
	dynstr := NewStrtabSection(".dynstr", true)
	dynsym := NewSymtabSection(".dynsym", true, dynstr)

	file := obj.NewFile("a.o")
	undefined := obj.NewSymbol("undef")
	undefined.Binding = obj.Global

	defined := obj.NewSymbol("defined")
	defined.Binding = obj.Global
	defined.DefKind = obj.Absolute
	defined.File = file

	dynsym.AddSymbol(undefined)
	dynsym.AddSymbol(defined)

	g := NewGnuHashSection(dynsym)
	g.Finalize(ctx)
	require.True(t, g.HasSymbols())
	require.Equal(t, uint32(1), g.symOffset) // one undefined symbol precedes the hashed group

	// dynsym index 0 is the reserved null entry, so the one undefined
	// symbol is index 1 and the one hashed (defined) symbol is index 2.
	for i, sym := range g.order {
		sym.DynsymIndex = i + 1
	}

	buf := make([]byte, g.Size())
	g.Write(ctx, buf)

	bucketsOff := 16 + g.maskWords*8
	b := g.hashedHash[0] % g.nbuckets
	got := readU32(buf[bucketsOff+b*4:])
	assert.Equal(t, uint32(2), got, "bucket must hold the real dynsym index, not the zero-based hashed position")
}
