package synth

import (
	"debug/elf"

	"github.com/synthlink/sve/pkg/elfabi"
	"github.com/synthlink/sve/pkg/obj"
)

// ArmExidxSentinel is the trailing two-word entry appended to
// .ARM.exidx (spec.md §4.14): a PREL31 reference to the byte immediately
// past the highest-covered code section, followed by EXIDX_CANTUNWIND.
type ArmExidxSentinel struct {
	Base

	highSec obj.Addressable
	highEnd uint64
	any     bool
}

func NewArmExidxSentinel() *ArmExidxSentinel {
	return &ArmExidxSentinel{Base: NewBase(".ARM.exidx", uint32(elf.SHT_PROGBITS), uint64(elf.SHF_ALLOC), 4, 8)}
}

// SetHighestCoverage records the section and offset (exclusive end) of
// the highest-addressed code range .ARM.exidx covers; called once the
// layout of ordinary .ARM.exidx entries is known.
func (a *ArmExidxSentinel) SetHighestCoverage(ctx *Context, sec obj.Addressable, end uint64) {
	a.guardMutable(ctx.Sink, a.NameVal)
	a.highSec = sec
	a.highEnd = end
	a.any = true
}

func (a *ArmExidxSentinel) Size() uint64 {
	if !a.any {
		return 0
	}
	return 8
}

func (a *ArmExidxSentinel) Empty() bool { return !a.any }

func (a *ArmExidxSentinel) Finalize(ctx *Context) {
	if a.Finalized() {
		return
	}
	a.MarkFinalized()
}

func (a *ArmExidxSentinel) Write(ctx *Context, buf []byte) {
	if a.Empty() {
		return
	}
	target := a.highSec.VA(a.highEnd)
	ctx.Target.ApplyPREL31(buf[:4], a.VA(0), int64(target)-int64(a.VA(0)))
	writeU32(buf[4:], elfabi.EXIDX_CANTUNWIND)
}
