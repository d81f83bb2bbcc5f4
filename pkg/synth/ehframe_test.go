package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synthlink/sve/pkg/config"
	"github.com/synthlink/sve/pkg/elfabi"
	"github.com/synthlink/sve/pkg/obj"
	"github.com/synthlink/sve/pkg/target"
)

// fakeRecord returns a zero-filled fake CIE/FDE byte record of body bytes;
// callers pick 8-byte-multiple lengths so everything stays aligned.
func fakeRecord(body int) []byte {
	r := make([]byte, body)
	return r
}

func TestEhFrameSectionDedupsIdenticalCies(t *testing.T) {
	ctx := NewContext(config.Default(), target.X86_64{})
	e := NewEhFrameSection()

	cieBytes := fakeRecord(16)
	target1 := obj.NewSymbol("f1")
	target1.DefKind = obj.Absolute
	target2 := obj.NewSymbol("f2")
	target2.DefKind = obj.Absolute

	fde1 := fakeRecord(16)
	fde2 := fakeRecord(16)

	e.AddPiece(EhFramePiece{Bytes: cieBytes, IsCie: true, FdeEncoding: elfabi.DW_EH_PE_udata4})
	e.AddPiece(EhFramePiece{Bytes: fde1, Target: target1})
	e.AddPiece(EhFramePiece{Bytes: cieBytes, IsCie: true, FdeEncoding: elfabi.DW_EH_PE_udata4}) // identical CIE content
	e.AddPiece(EhFramePiece{Bytes: fde2, Target: target2})

	e.Finalize(ctx)

	assert.Len(t, e.cieOrder, 1, "identical CIEs are deduplicated by content+personality")
	assert.Len(t, e.fdes, 2)
	assert.True(t, e.HasFdes())
}

func TestEhFrameSectionDropsDeadFdes(t *testing.T) {
	ctx := NewContext(config.Default(), target.X86_64{})
	e := NewEhFrameSection()

	e.AddPiece(EhFramePiece{Bytes: fakeRecord(16), IsCie: true, FdeEncoding: elfabi.DW_EH_PE_udata4})
	e.AddPiece(EhFramePiece{Bytes: fakeRecord(16), Target: nil}) // dead, no target

	e.Finalize(ctx)

	assert.False(t, e.HasFdes())
	assert.Len(t, e.fdes, 0)
}

func TestEhFrameSectionSizeAlwaysReservesTerminator(t *testing.T) {
	ctx := NewContext(config.Default(), target.X86_64{})
	e := NewEhFrameSection()
	e.Finalize(ctx)

	assert.False(t, e.Empty())
	assert.Equal(t, uint64(4), e.Size())
}

func TestEhFrameHeaderSectionEmptyWithoutLiveFdes(t *testing.T) {
	ctx := NewContext(config.Default(), target.X86_64{})
	e := NewEhFrameSection()
	e.Finalize(ctx)

	h := NewEhFrameHeaderSection(e)
	h.Finalize(ctx)

	assert.True(t, h.Empty())
	assert.Equal(t, uint64(12), h.Size())
}

func TestEhFrameHeaderSectionSortsAndDedupsByPc(t *testing.T) {
	ctx := NewContext(config.Default(), target.X86_64{})
	e := NewEhFrameSection()

	cieBytes := fakeRecord(16)
	t1 := obj.NewSymbol("t1")
	t1.DefKind = obj.Absolute
	t2 := obj.NewSymbol("t2")
	t2.DefKind = obj.Absolute

	// Three FDEs with pc_begin values 0x2000, 0x1000, 0x1000 (udata4,
	// absolute), to confirm the header sorts them ascending and keeps one
	// entry per distinct pc.
	fdeHigh := make([]byte, 16)
	writeU32(fdeHigh[8:], 0x2000)
	fdeLow := make([]byte, 16)
	writeU32(fdeLow[8:], 0x1000)
	fdeLowDup := make([]byte, 16)
	writeU32(fdeLowDup[8:], 0x1000)

	e.AddPiece(EhFramePiece{Bytes: cieBytes, IsCie: true, FdeEncoding: elfabi.DW_EH_PE_udata4})
	e.AddPiece(EhFramePiece{Bytes: fdeHigh, Target: t1})
	e.AddPiece(EhFramePiece{Bytes: fdeLow, Target: t2})
	e.AddPiece(EhFramePiece{Bytes: fdeLowDup, Target: t2})

	e.Finalize(ctx)
	require.Len(t, e.fdes, 3)

	h := NewEhFrameHeaderSection(e)
	h.Finalize(ctx)

	require.False(t, h.Empty())
	require.Len(t, h.table, 2)
	assert.Less(t, h.table[0].relPc, h.table[1].relPc)
	assert.Equal(t, uint64(0x1000), h.table[0].relPc)
	assert.Equal(t, uint64(0x2000), h.table[1].relPc)
}
