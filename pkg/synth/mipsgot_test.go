package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synthlink/sve/pkg/config"
	"github.com/synthlink/sve/pkg/obj"
	"github.com/synthlink/sve/pkg/target"
)

func TestMipsGotSectionGotForCreatesOncePerFile(t *testing.T) {
	m := NewMipsGotSection()
	f := obj.NewFile("a.o")

	g1 := m.GotFor(f)
	g2 := m.GotFor(f)

	assert.Same(t, g1, g2)
	assert.Len(t, m.Gots, 1)
}

func TestMipsGotSectionEmptyOnlyWhenRelocatable(t *testing.T) {
	ctx := NewContext(config.Default(), target.X86_64{})
	ctx.Config.Relocatable = true
	m := NewMipsGotSection()
	m.Finalize(ctx)
	assert.True(t, m.Empty())
}

func TestMipsGotSectionBuildAssignsSequentialIndicesAfterHeader(t *testing.T) {
	ctx := NewContext(config.Default(), target.X86_64{})
	m := NewMipsGotSection()

	f := obj.NewFile("a.o")
	got := m.GotFor(f)
	local := obj.NewSymbol("local")
	local.Binding = obj.Local
	got.addLocal16(local, 0)

	global := obj.NewSymbol("global")
	global.Binding = obj.Global
	global.DefKind = obj.Regular
	got.addGlobal(global)

	m.Build(ctx)

	require.Len(t, m.Gots, 1)
	prim := m.Gots[0]
	assert.Equal(t, 0, prim.StartIndex)
	// a non-preemptible global is migrated into local16 during step 1, so
	// both symbols end up sharing the local16 group, indexed right after
	// the two header entries.
	require.Len(t, prim.local16, 2)
	assert.Equal(t, 2, prim.local16[0].index)
	assert.Equal(t, 3, prim.local16[1].index)
	assert.Empty(t, prim.global)
	assert.Equal(t, uint64((2+2)*8), m.Size())
}

func TestMipsGotSectionGetGpUsesFilePartitionStart(t *testing.T) {
	ctx := NewContext(config.Default(), target.X86_64{})
	m := NewMipsGotSection()
	f := obj.NewFile("a.o")
	m.GotFor(f)
	sym := obj.NewSymbol("x")
	m.Gots[0].addGlobal(sym)
	m.Build(ctx)

	gp := m.GetGp(ctx, f, 0x10000)
	assert.Equal(t, uint64(0x10000+0x7ff0), gp) // primary partition starts at index 0
}

func TestMipsGotSectionGetGpPassesThroughForUnindexedFile(t *testing.T) {
	m := NewMipsGotSection()
	assert.Equal(t, uint64(0x1234), m.GetGp(nil, nil, 0x1234))
}
