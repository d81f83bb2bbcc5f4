package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synthlink/sve/pkg/config"
	"github.com/synthlink/sve/pkg/obj"
	"github.com/synthlink/sve/pkg/target"
)

func TestGdbHashIsCaseInsensitive(t *testing.T) {
	assert.Equal(t, gdbHash("Main"), gdbHash("main"))
	assert.Equal(t, gdbHash("ABC"), gdbHash("abc"))
}

func TestGdbIndexSectionEmptyWithNoContent(t *testing.T) {
	g := NewGdbIndexSection()
	assert.True(t, g.Empty())
	assert.Equal(t, uint64(0), g.Size())
}

func TestGdbIndexSectionAddPubEntryDedupsByName(t *testing.T) {
	g := NewGdbIndexSection()
	cu := g.AddCompileUnit(0, 0x100)

	g.AddPubEntry("main", 0, cu)
	g.AddPubEntry("main", 0, cu) // exact duplicate (name, descriptor, cu)

	require.Len(t, g.symOrder, 1)
	assert.Len(t, g.cuVectors[0], 1)
}

func TestGdbIndexSectionLayoutOffsetsAreMonotonic(t *testing.T) {
	ctx := NewContext(config.Default(), target.X86_64{})
	g := NewGdbIndexSection()

	codeSec := &obj.OutputSection{Addr: 0x1000}
	cu := g.AddCompileUnit(0, 0x40)
	g.AddAddressArea(codeSec, 0, 0x40, cu)
	g.AddPubEntry("foo", 1, cu)
	g.AddPubEntry("bar", 2, cu)

	g.Finalize(ctx)

	require.False(t, g.Empty())
	assert.Less(t, g.cuListOffset, g.cuTypesOffset)
	assert.LessOrEqual(t, g.cuTypesOffset, g.symTabOffset)
	assert.LessOrEqual(t, g.symTabOffset, g.constantPoolOffset)
	assert.LessOrEqual(t, g.constantPoolOffset, g.stringPoolOffset)

	buf := make([]byte, g.Size())
	g.Write(ctx, buf) // must not panic over a realistic small index

	assert.Equal(t, uint32(7), readU32(buf[0:])) // version
}

func TestGdbIndexSectionHashTableLoadFactor(t *testing.T) {
	ctx := NewContext(config.Default(), target.X86_64{})
	g := NewGdbIndexSection()
	cu := g.AddCompileUnit(0, 1)
	for i := 0; i < 5; i++ {
		g.AddPubEntry(string(rune('a'+i)), 0, cu)
	}
	g.Finalize(ctx)

	assert.GreaterOrEqual(t, float64(g.capacity), float64(len(g.symOrder))/0.75)
	// capacity must be a power of two
	assert.Equal(t, g.capacity&(g.capacity-1), 0)
}
