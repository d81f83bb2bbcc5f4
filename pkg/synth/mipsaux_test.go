package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synthlink/sve/pkg/config"
	"github.com/synthlink/sve/pkg/obj"
	"github.com/synthlink/sve/pkg/target"
)

func TestMipsAbiflagsSectionMergesElementwiseMax(t *testing.T) {
	ctx := NewContext(config.Default(), target.X86_64{})
	m := NewMipsAbiflagsSection()

	m.AddInput(ctx, &MipsAbiFlags{IsaLevel: 33, GprSize: 1, Ases: 0x1, Flags1: 0x10})
	m.AddInput(ctx, &MipsAbiFlags{IsaLevel: 32, GprSize: 2, Ases: 0x2, Flags1: 0x01})

	require.False(t, m.Empty())
	assert.Equal(t, uint8(33), m.merged.IsaLevel) // max
	assert.Equal(t, uint8(2), m.merged.GprSize)   // max
	assert.Equal(t, uint32(0x3), m.merged.Ases)    // OR
	assert.Equal(t, uint32(0x11), m.merged.Flags1) // OR
	assert.Equal(t, uint64(24), m.Size())
}

func TestMipsAbiflagsSectionWarnsOnMultipleDescriptors(t *testing.T) {
	ctx := NewContext(config.Default(), target.X86_64{})
	m := NewMipsAbiflagsSection()

	m.AddInput(ctx, &MipsAbiFlags{IsaLevel: 1})
	m.AddInput(ctx, &MipsAbiFlags{IsaLevel: 2})

	require.NotEmpty(t, ctx.Sink.Records)
	assert.Contains(t, ctx.Sink.Records[0].Message, "multiple input descriptors")
}

func TestMipsOptionsSectionOrsGprMask(t *testing.T) {
	ctx := NewContext(config.Default(), target.X86_64{})
	m := NewMipsOptionsSection()

	f1 := obj.NewFile("a.o")
	f2 := obj.NewFile("b.o")
	m.AddInput(ctx, f1, 0x0f, 0x1000)
	m.AddInput(ctx, f2, 0xf0, 0x2000)

	require.False(t, m.Empty())
	assert.Equal(t, uint32(0xff), m.gprMask)
	assert.Equal(t, uint64(8+regInfoSize), m.Size())
}

func TestReginfoSectionFixedSize(t *testing.T) {
	ctx := NewContext(config.Default(), target.X86_64{})
	r := NewReginfoSection()
	assert.True(t, r.Empty())

	f := obj.NewFile("a.o")
	r.AddInput(ctx, f, 0x3, 0x4000)
	assert.False(t, r.Empty())
	assert.Equal(t, uint64(regInfoSize), r.Size())
}

func TestMipsRldMapSectionOnlyPresentWhenEnabled(t *testing.T) {
	m := NewMipsRldMapSection()
	assert.True(t, m.Empty())
	m.Enable()
	assert.False(t, m.Empty())
	assert.Equal(t, uint64(8), m.Size())
}
