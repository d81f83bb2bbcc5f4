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

func TestArmExidxSentinelEmptyByDefault(t *testing.T) {
	a := NewArmExidxSentinel()
	assert.True(t, a.Empty())
	assert.Equal(t, uint64(0), a.Size())
}

func TestArmExidxSentinelWritesCantUnwindTrailer(t *testing.T) {
	ctx := NewContext(config.Default(), target.X86_64{})
	a := NewArmExidxSentinel()
	a.OutSec = &obj.OutputSection{Addr: 0x3000}

	codeSec := &obj.OutputSection{Addr: 0x1000}
	a.SetHighestCoverage(ctx, codeSec, 0x40)

	a.Finalize(ctx)
	require.False(t, a.Empty())
	assert.Equal(t, uint64(8), a.Size())

	buf := make([]byte, a.Size())
	a.Write(ctx, buf)

	assert.Equal(t, elfabi.EXIDX_CANTUNWIND, readU32(buf[4:]))
}

func TestArmExidxSentinelGuardsMutationAfterFinalize(t *testing.T) {
	ctx := NewContext(config.Default(), target.X86_64{})
	a := NewArmExidxSentinel()
	codeSec := &obj.OutputSection{Addr: 0x1000}
	a.SetHighestCoverage(ctx, codeSec, 0x10)
	a.Finalize(ctx)

	assert.Panics(t, func() {
		a.SetHighestCoverage(ctx, codeSec, 0x20)
	})
}
