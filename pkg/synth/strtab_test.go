package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStrtabSectionStartsWithLeadingNulAndIsEmpty(t *testing.T) {
	s := NewStrtabSection(".strtab", false)
	assert.True(t, s.Empty())
	assert.Equal(t, uint64(1), s.Size())
}

func TestStrtabSectionAddWithoutHashConsAlwaysGrows(t *testing.T) {
	s := NewStrtabSection(".strtab", false)
	off1 := s.Add("foo")
	off2 := s.Add("foo")

	assert.Equal(t, uint32(1), off1)
	assert.NotEqual(t, off1, off2, "without hash-consing, identical strings get distinct offsets")
}

func TestStrtabSectionAddWithHashConsDedups(t *testing.T) {
	s := NewStrtabSection(".dynstr", true)
	off1 := s.Add("foo")
	off2 := s.Add("foo")

	assert.Equal(t, off1, off2)
	assert.Equal(t, uint64(1+len("foo")+1), s.Size())
}

func TestStrtabSectionWriteCopiesBytesVerbatim(t *testing.T) {
	s := NewStrtabSection(".strtab", false)
	s.Add("abc")

	buf := make([]byte, s.Size())
	s.Write(nil, buf)

	assert.Equal(t, byte(0), buf[0])
	assert.Equal(t, "abc\x00", string(buf[1:]))
}
