package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommentSectionNeverEmpty(t *testing.T) {
	c := NewCommentSection()
	assert.False(t, c.Empty())
	assert.Equal(t, uint64(len(c.text)+1), c.Size())
}

func TestCommentSectionWriteCopiesTextWithTrailingNul(t *testing.T) {
	c := &CommentSection{text: "synthlink sve 0.1"}
	buf := make([]byte, c.Size())
	c.Write(nil, buf)

	assert.Equal(t, "synthlink sve 0.1", string(buf[:len(c.text)]))
	assert.Equal(t, byte(0), buf[len(buf)-1])
}
