package synth

import (
	"debug/elf"

	"github.com/xyproto/env/v2"
)

// compiledVersionString is the fallback .comment payload when LLD_VERSION
// is not set in the environment, per spec.md's "There is no CLI surface...
// beyond LLD_VERSION (if present, its value is emitted verbatim in
// .comment; otherwise a compiled-in version string is used)".
const compiledVersionString = "synthlink sve 0.1"

// CommentSection is .comment: a single NUL-terminated producer-identity
// string, read from LLD_VERSION via github.com/xyproto/env/v2 the same
// way config.go's FromEnv overlays settings from the environment.
type CommentSection struct {
	Base

	text string
}

func NewCommentSection() *CommentSection {
	text := compiledVersionString
	if env.Has("LLD_VERSION") {
		text = env.Str("LLD_VERSION")
	}
	return &CommentSection{
		Base: NewBase(".comment", uint32(elf.SHT_PROGBITS), uint64(elf.SHF_MERGE|elf.SHF_STRINGS), 1, 1),
		text: text,
	}
}

func (c *CommentSection) Size() uint64 { return uint64(len(c.text)) + 1 }
func (c *CommentSection) Empty() bool  { return false }

func (c *CommentSection) Finalize(ctx *Context) {
	if c.Finalized() {
		return
	}
	c.MarkFinalized()
}

func (c *CommentSection) Write(ctx *Context, buf []byte) {
	copy(buf, c.text)
}
