package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInterpSectionEmptyWhenPathUnset(t *testing.T) {
	i := NewInterpSection("")
	assert.True(t, i.Empty())
	assert.Equal(t, uint64(0), i.Size())
}

func TestInterpSectionSizeAndWrite(t *testing.T) {
	i := NewInterpSection("/lib64/ld-linux-x86-64.so.2")
	assert.False(t, i.Empty())
	assert.Equal(t, uint64(len("/lib64/ld-linux-x86-64.so.2")+1), i.Size())

	buf := make([]byte, i.Size())
	i.Write(nil, buf)

	assert.Equal(t, "/lib64/ld-linux-x86-64.so.2", string(buf[:len(buf)-1]))
	assert.Equal(t, byte(0), buf[len(buf)-1])
}
