package synth

import (
	"debug/elf"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/synthlink/sve/pkg/config"
	"github.com/synthlink/sve/pkg/target"
)

func TestBssSectionTbssCarriesTlsFlag(t *testing.T) {
	b := NewBssSection(".tbss")
	assert.NotZero(t, b.FlagsVal&uint64(elf.SHF_TLS))

	plain := NewBssSection(".bss")
	assert.Zero(t, plain.FlagsVal&uint64(elf.SHF_TLS))
}

func TestBssSectionReserveSpaceAlignsAndGrows(t *testing.T) {
	ctx := NewContext(config.Default(), target.X86_64{})
	b := NewBssSection(".bss")

	off1 := b.ReserveSpace(ctx, 3, 1)
	off2 := b.ReserveSpace(ctx, 8, 8)

	assert.Equal(t, uint64(0), off1)
	assert.Equal(t, uint64(8), off2) // padded up from 3 to the 8-byte alignment
	assert.Equal(t, uint64(16), b.Size())
	assert.Equal(t, uint64(8), b.AlignVal)
}

func TestBssSectionEmptyUntilReserved(t *testing.T) {
	b := NewBssSection(".bss")
	assert.True(t, b.Empty())
	b.size = 1
	assert.False(t, b.Empty())
}
